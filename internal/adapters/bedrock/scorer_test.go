package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/phishguard/phishguard/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockInvoker struct {
	mock.Mock
}

func (m *MockInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*bedrockruntime.InvokeModelOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestScorer(invoker modelInvoker, modelID string) *Scorer {
	logger := zap.NewNop()
	return NewScorer(invoker, modelID, 256, 4096, logger, utils.NewTextProcessor(logger))
}

func TestScorer_ModelFamilies(t *testing.T) {
	cases := []struct {
		name     string
		modelID  string
		response string
		bodyKey  string
	}{
		{
			name:     "claude messages",
			modelID:  "anthropic.claude-3-haiku-20240307-v1:0",
			response: `{"content": [{"type": "text", "text": "{\"score\": 0.66}"}]}`,
			bodyKey:  "messages",
		},
		{
			name:     "cross region claude",
			modelID:  "us.anthropic.claude-3-5-sonnet-20240620-v1:0",
			response: `{"content": [{"type": "text", "text": "{\"score\": 0.66}"}]}`,
			bodyKey:  "anthropic_version",
		},
		{
			name:     "titan",
			modelID:  "amazon.titan-text-express-v1",
			response: `{"results": [{"outputText": "{\"score\": 0.66}"}]}`,
			bodyKey:  "inputText",
		},
		{
			name:     "generic",
			modelID:  "meta.llama3-8b-instruct-v1:0",
			response: `{"generation": "{\"score\": 0.66}"}`,
			bodyKey:  "prompt",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			invoker := new(MockInvoker)
			invoker.On("InvokeModel", mock.Anything, mock.MatchedBy(func(in *bedrockruntime.InvokeModelInput) bool {
				var body map[string]interface{}
				if err := json.Unmarshal(in.Body, &body); err != nil {
					return false
				}
				_, ok := body[tc.bodyKey]
				return ok && *in.ModelId == tc.modelID
			})).Return(&bedrockruntime.InvokeModelOutput{Body: []byte(tc.response)}, nil)

			s := newTestScorer(invoker, tc.modelID)
			score, err := s.Score(context.Background(), "Reset your password")
			require.NoError(t, err)
			assert.InDelta(t, 0.66, score, 1e-9)
			assert.Equal(t, "bedrock:"+tc.modelID, s.ModelVersion())
			invoker.AssertExpectations(t)
		})
	}
}

func TestScorer_Errors(t *testing.T) {
	t.Run("invoke failure", func(t *testing.T) {
		invoker := new(MockInvoker)
		invoker.On("InvokeModel", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))
		_, err := newTestScorer(invoker, "anthropic.claude-v2").Score(context.Background(), "x")
		assert.ErrorContains(t, err, "throttled")
	})

	t.Run("empty titan results", func(t *testing.T) {
		invoker := new(MockInvoker)
		invoker.On("InvokeModel", mock.Anything, mock.Anything).
			Return(&bedrockruntime.InvokeModelOutput{Body: []byte(`{"results": []}`)}, nil)
		_, err := newTestScorer(invoker, "amazon.titan-text-lite-v1").Score(context.Background(), "x")
		assert.Error(t, err)
	})

	t.Run("claude without text", func(t *testing.T) {
		invoker := new(MockInvoker)
		invoker.On("InvokeModel", mock.Anything, mock.Anything).
			Return(&bedrockruntime.InvokeModelOutput{Body: []byte(`{"content": []}`)}, nil)
		_, err := newTestScorer(invoker, "anthropic.claude-v2").Score(context.Background(), "x")
		assert.Error(t, err)
	})
}
