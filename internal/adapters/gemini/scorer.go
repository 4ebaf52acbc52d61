package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/phishguard/phishguard/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// contentGenerator is the subset of *genai.GenerativeModel the scorer calls
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Scorer asks a Gemini model for a phishing probability
type Scorer struct {
	client        *genai.Client
	model         contentGenerator
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewScorer creates a Gemini scorer with deterministic sampling
func NewScorer(
	ctx context.Context,
	apiKey string,
	modelName string,
	maxTokens int,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*Scorer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(utils.ScoringSystemPrompt))

	s := newScorer(model, modelName, maxBodySize, logger, textProcessor)
	s.client = client
	return s, nil
}

func newScorer(model contentGenerator, modelName string, maxBodySize int, logger *zap.Logger, textProcessor *utils.TextProcessor) *Scorer {
	return &Scorer{
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Close closes the Gemini client
func (s *Scorer) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// ModelVersion identifies the model behind the scores
func (s *Scorer) ModelVersion() string {
	return "gemini:" + s.modelName
}

// Score returns the model's phishing probability for text
func (s *Scorer) Score(ctx context.Context, text string) (float64, error) {
	prompt := utils.BuildScoringPrompt(s.textProcessor.ProcessText(text, s.maxBodySize))

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return 0, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	responseText := firstCandidateText(resp)
	if responseText == "" {
		return 0, errors.New("empty response from Gemini")
	}

	score, err := utils.ParseScoringResponse(responseText)
	if err != nil {
		return 0, err
	}

	s.logger.Debug("Gemini score", zap.String("model", s.modelName), zap.Float64("score", score))
	return score, nil
}

func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
