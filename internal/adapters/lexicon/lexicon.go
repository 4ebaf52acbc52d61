// Package lexicon implements an offline phishing scorer backed by a
// weighted token lexicon read from a JSON artifact. configs/lexicon.json is a
// hand-written sample keyword list, not a trained model; production
// deployments point classifier.lexicon_path at their own artifact.
package lexicon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxTokens is used when the artifact does not set max_tokens
const DefaultMaxTokens = 200

// Artifact is the on-disk model format
type Artifact struct {
	Version   string             `json:"version"`
	Bias      float64            `json:"bias"`
	MaxTokens int                `json:"max_tokens"`
	Weights   map[string]float64 `json:"weights"`
}

// Scorer scores text as the logistic of the bias plus the weights of its tokens
type Scorer struct {
	artifact Artifact
	logger   *zap.Logger
}

// Load reads an artifact from path
func Load(path string, logger *zap.Logger) (*Scorer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon %s: %w", path, err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon %s: %w", path, err)
	}

	s, err := New(artifact, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded lexicon model",
		zap.String("path", path),
		zap.String("version", artifact.Version),
		zap.Int("terms", len(artifact.Weights)))
	return s, nil
}

// New validates an artifact and wraps it in a Scorer
func New(artifact Artifact, logger *zap.Logger) (*Scorer, error) {
	if artifact.Version == "" {
		return nil, errors.New("lexicon has no version")
	}
	if len(artifact.Weights) == 0 {
		return nil, errors.New("lexicon has no weights")
	}
	if artifact.MaxTokens <= 0 {
		artifact.MaxTokens = DefaultMaxTokens
	}

	folder := cases.Fold()
	weights := make(map[string]float64, len(artifact.Weights))
	for term, w := range artifact.Weights {
		weights[folder.String(norm.NFKC.String(term))] += w
	}
	artifact.Weights = weights

	return &Scorer{artifact: artifact, logger: logger}, nil
}

// ModelVersion identifies the artifact behind the scores
func (s *Scorer) ModelVersion() string {
	return "lexicon:" + s.artifact.Version
}

// Score returns a probability in [0, 1]
func (s *Scorer) Score(ctx context.Context, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tokens := s.Tokenize(text)
	z := s.artifact.Bias
	matched := 0
	for _, tok := range tokens {
		if w, ok := s.artifact.Weights[tok]; ok {
			z += w
			matched++
		}
	}

	s.logger.Debug("Lexicon score",
		zap.Int("tokens", len(tokens)),
		zap.Int("matched", matched),
		zap.Float64("logit", z))
	return 1 / (1 + math.Exp(-z)), nil
}

// Tokenize normalises text and splits it into at most MaxTokens terms
func (s *Scorer) Tokenize(text string) []string {
	// cases.Caser is stateful; Score may run concurrently
	folded := cases.Fold().String(norm.NFKC.String(text))
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})

	tokens := make([]string, 0, min(len(fields), s.artifact.MaxTokens))
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f == "" {
			continue
		}
		tokens = append(tokens, f)
		if len(tokens) == s.artifact.MaxTokens {
			break
		}
	}
	return tokens
}
