package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ScoringSystemPrompt is sent as the system message to chat style models
const ScoringSystemPrompt = "You are a phishing detection system. Respond only with JSON."

const scoringPromptFormat = `Analyze the following email excerpt and estimate how likely it is to be a phishing attempt.
Respond with a JSON object containing:
- score: number between 0 and 1 (higher means more likely to be phishing)
- explanation: string (one sentence on the main signal)

Email excerpt:
%s

Respond only with the JSON object and nothing else.`

// ScoringResponse is the JSON object remote models are asked to produce
type ScoringResponse struct {
	Score       *float64 `json:"score"`
	Explanation string   `json:"explanation"`
}

// BuildScoringPrompt renders the user prompt for an already processed text
func BuildScoringPrompt(text string) string {
	return fmt.Sprintf(scoringPromptFormat, text)
}

// ParseScoringResponse extracts the score from a model reply. Replies that wrap
// the object in prose or code fences are accepted; the outermost braces win.
func ParseScoringResponse(responseText string) (float64, error) {
	var resp ScoringResponse
	if err := json.Unmarshal([]byte(responseText), &resp); err != nil {
		start := strings.IndexByte(responseText, '{')
		end := strings.LastIndexByte(responseText, '}')
		if start < 0 || end < start {
			return 0, fmt.Errorf("failed to extract JSON from model response: %w", err)
		}
		resp = ScoringResponse{}
		if err := json.Unmarshal([]byte(responseText[start:end+1]), &resp); err != nil {
			return 0, fmt.Errorf("failed to parse model response as JSON: %w", err)
		}
	}
	if resp.Score == nil {
		return 0, errors.New("model response has no score")
	}
	return *resp.Score, nil
}
