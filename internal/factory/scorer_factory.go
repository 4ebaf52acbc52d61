package factory

import (
	"fmt"

	"github.com/phishguard/phishguard/internal/adapters/lexicon"
	"github.com/phishguard/phishguard/internal/config"
	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/utils"
	"go.uber.org/zap"
)

// ProviderNone starts the service without a model; classification reports not ready
const ProviderNone = "none"

// ScorerFactory creates scoring backends
type ScorerFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewScorerFactory creates a new scorer factory
func NewScorerFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ScorerFactory {
	return &ScorerFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateScorer creates the scorer named by classifier.provider. A lexicon that
// fails to load is logged and leaves the classifier not ready rather than
// failing startup, so the stats and latest surfaces keep working.
func (f *ScorerFactory) CreateScorer() (core.Scorer, error) {
	classifierCfg := f.cfg.GetClassifier()

	switch classifierCfg.Provider {
	case "lexicon":
		scorer, err := lexicon.Load(classifierCfg.LexiconPath, f.logger.Named("lexicon"))
		if err != nil {
			f.logger.Error("Classifier model not loaded", zap.Error(err))
			return nil, nil
		}
		return scorer, nil
	case "openai":
		return NewOpenAIFactory(f.cfg, f.logger, f.textProcessor).CreateScorer()
	case "gemini":
		return NewGeminiFactory(f.cfg, f.logger, f.textProcessor).CreateScorer()
	case "bedrock":
		return NewBedrockFactory(f.cfg, f.logger, f.textProcessor).CreateScorer()
	case ProviderNone:
		f.logger.Warn("No classifier configured")
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported classifier provider: %s", classifierCfg.Provider)
	}
}
