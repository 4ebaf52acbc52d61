package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTextProcessor_TruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "short", tp.TruncateText("short", 100))
	assert.Equal(t, "short", tp.TruncateText("short", 0))

	out := tp.TruncateText("héllo wörld", 2)
	assert.True(t, strings.HasSuffix(out, truncationMarker))
	assert.Equal(t, "h", strings.TrimSuffix(out, truncationMarker))
	assert.True(t, utf8.ValidString(out))
}

func TestTextProcessor_SanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())
	assert.Equal(t, "ab", tp.SanitizeUTF8("a\xffb"))
	assert.Equal(t, "ok ✓", tp.SanitizeUTF8("ok ✓"))
}

func TestParseScoringResponse(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected float64
		wantErr  bool
	}{
		{"plain", `{"score": 0.82, "explanation": "credential lure"}`, 0.82, false},
		{"fenced", "```json\n{\"score\": 0.1}\n```", 0.1, false},
		{"prose", `Sure. {"score": 1, "explanation": "x"} Hope that helps.`, 1, false},
		{"zero score", `{"score": 0}`, 0, false},
		{"missing score", `{"explanation": "no idea"}`, 0, true},
		{"no json", `I cannot help with that`, 0, true},
		{"broken json", `{"score": }`, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, err := ParseScoringResponse(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, score, 1e-9)
		})
	}
}

func TestBuildScoringPrompt(t *testing.T) {
	p := BuildScoringPrompt("verify your password")
	assert.Contains(t, p, "verify your password")
	assert.Contains(t, p, "score")
}
