package openai

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/phishguard/phishguard/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Scorer asks an OpenAI chat model for a phishing probability
type Scorer struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewScorer creates a new OpenAI scorer. Sampling is pinned to an effectively
// zero temperature so repeated scans of the same text produce the same score.
// go-openai omits a literal 0 from the request body, so the smallest float32
// is sent instead.
func NewScorer(
	client *openai.Client,
	modelName string,
	maxTokens int,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Scorer {
	return &Scorer{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// ModelVersion identifies the model behind the scores
func (s *Scorer) ModelVersion() string {
	return "openai:" + s.modelName
}

// Score returns the model's phishing probability for text
func (s *Scorer) Score(ctx context.Context, text string) (float64, error) {
	prompt := utils.BuildScoringPrompt(s.textProcessor.ProcessText(text, s.maxBodySize))

	req := openai.ChatCompletionRequest{
		Model: s.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: utils.ScoringSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   s.maxTokens,
		Temperature: math.SmallestNonzeroFloat32,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, errors.New("empty response from OpenAI")
	}

	score, err := utils.ParseScoringResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return 0, err
	}

	s.logger.Debug("OpenAI score",
		zap.String("model", s.modelName),
		zap.String("completion_id", resp.ID),
		zap.Float64("score", score))
	return score, nil
}
