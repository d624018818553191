package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortform-agent/internal/agent"
	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/pkg/logger"
)

func testAgent() *Agent {
	return &Agent{log: logger.Nop()}
}

func testScenes() []models.Scene {
	return []models.Scene{
		{Number: 1, Narration: "Hook", Visual: "Headline", DurationSec: 5},
		{Number: 2, Narration: "Body", Visual: "B-roll", DurationSec: 20},
	}
}

func TestParseValidReview(t *testing.T) {
	response := `{
		"score": 8,
		"verdict": "approved",
		"comment": "Tight script with a strong hook.",
		"scene_comments": [
			{"scene_number": 1, "type": "positive", "comment": "Great opener"},
			{"scene_number": 2, "type": "suggestion", "comment": "Could trim a beat"}
		]
	}`

	result, err := testAgent().parse(response, testScenes())
	require.NoError(t, err)
	assert.Equal(t, 8, result.Score)
	assert.Equal(t, models.VerdictApproved, result.Verdict)
	require.Len(t, result.SceneComments, 2)
	assert.Equal(t, models.CommentPositive, result.SceneComments[0].Type)
}

func TestParseAllowsEmptySceneComments(t *testing.T) {
	response := `{"score": 3, "verdict": "rejected", "comment": "Not video material."}`

	result, err := testAgent().parse(response, testScenes())
	require.NoError(t, err)
	assert.Equal(t, models.VerdictRejected, result.Verdict)
	assert.Empty(t, result.SceneComments)
}

func TestParseRejectsInvalidReviews(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"malformed JSON", "no json here"},
		{"score too low", `{"score": 0, "verdict": "approved", "comment": "x"}`},
		{"score too high", `{"score": 11, "verdict": "approved", "comment": "x"}`},
		{"unknown verdict", `{"score": 5, "verdict": "meh", "comment": "x"}`},
		{"empty comment", `{"score": 5, "verdict": "approved", "comment": "  "}`},
		{"comment references missing scene", `{
			"score": 5, "verdict": "needs_revision", "comment": "x",
			"scene_comments": [{"scene_number": 9, "type": "negative", "comment": "y"}]
		}`},
		{"comment references scene zero", `{
			"score": 5, "verdict": "needs_revision", "comment": "x",
			"scene_comments": [{"scene_number": 0, "type": "negative", "comment": "y"}]
		}`},
		{"unknown comment type", `{
			"score": 5, "verdict": "needs_revision", "comment": "x",
			"scene_comments": [{"scene_number": 1, "type": "sarcastic", "comment": "y"}]
		}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testAgent().parse(tt.response, testScenes())
			require.Error(t, err)
			assert.True(t, agent.IsValidation(err), "expected a validation error, got %v", err)
		})
	}
}

func TestRenderScenes(t *testing.T) {
	rendered := renderScenes(testScenes())
	assert.Contains(t, rendered, "Scene 1 (5.0s)")
	assert.Contains(t, rendered, "Narration: Hook")
	assert.Contains(t, rendered, "Visual: B-roll")
}
