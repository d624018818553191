package scriptwriter

import (
	"strings"
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

func TestParseValidDraft(t *testing.T) {
	response := `{
		"scenes": [
			{"number": 1, "narration": "Hook", "visual": "Headline close-up", "duration_sec": 5},
			{"number": 2, "narration": "Body", "visual": "B-roll", "duration_sec": 20},
			{"number": 3, "narration": "Close", "visual": "Logo", "duration_sec": 5}
		],
		"total_sec": 999
	}`

	draft, err := testAgent().parse(response)
	require.NoError(t, err)
	require.Len(t, draft.Scenes, 3)
	assert.Equal(t, 1, draft.Scenes[0].Number)
	assert.Equal(t, "Hook", draft.Scenes[0].Narration)
	// The aggregate is recomputed, not trusted from the model
	assert.InDelta(t, 30, draft.TotalSec, 1e-9)
}

func TestParseStripsMarkdownFences(t *testing.T) {
	response := "```json\n{\"scenes\": [{\"number\": 1, \"narration\": \"n\", \"visual\": \"v\", \"duration_sec\": 10}]}\n```"

	draft, err := testAgent().parse(response)
	require.NoError(t, err)
	assert.Len(t, draft.Scenes, 1)
}

func TestParseRejectsInvalidDrafts(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"malformed JSON", "this is not json"},
		{"empty scene list", `{"scenes": []}`},
		{"numbering gap", `{"scenes": [
			{"number": 1, "narration": "a", "visual": "b", "duration_sec": 5},
			{"number": 3, "narration": "c", "visual": "d", "duration_sec": 5}
		]}`},
		{"numbering not 1-based", `{"scenes": [
			{"number": 0, "narration": "a", "visual": "b", "duration_sec": 5}
		]}`},
		{"empty narration", `{"scenes": [
			{"number": 1, "narration": "  ", "visual": "b", "duration_sec": 5}
		]}`},
		{"empty visual", `{"scenes": [
			{"number": 1, "narration": "a", "visual": "", "duration_sec": 5}
		]}`},
		{"zero duration", `{"scenes": [
			{"number": 1, "narration": "a", "visual": "b", "duration_sec": 0}
		]}`},
		{"negative duration", `{"scenes": [
			{"number": 1, "narration": "a", "visual": "b", "duration_sec": -3}
		]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testAgent().parse(tt.response)
			require.Error(t, err)
			assert.True(t, agent.IsValidation(err), "expected a validation error, got %v", err)
		})
	}
}

func TestFeedbackBlock(t *testing.T) {
	comments := models.SceneComments{
		{SceneNumber: 1, Type: models.CommentPositive, Comment: "Strong hook"},
		{SceneNumber: 2, Type: models.CommentNegative, Comment: "Claim is unsupported"},
		{SceneNumber: 3, Type: models.CommentSuggestion, Comment: "Tighten the pacing"},
	}

	block := FeedbackBlock(comments)
	lines := strings.Split(block, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[KEEP] Scene 1: Strong hook", lines[0])
	assert.Equal(t, "[FIX] Scene 2: Claim is unsupported", lines[1])
	assert.Equal(t, "[CONSIDER] Scene 3: Tighten the pacing", lines[2])
}

func TestFeedbackBlockEmpty(t *testing.T) {
	assert.Equal(t, "(no per-scene comments)", FeedbackBlock(nil))
}

func TestBuildUserPromptFirstIteration(t *testing.T) {
	req := Request{
		Item:      &models.ContentItem{Title: "Breaking story", Body: "The details"},
		Settings:  &models.AISettings{TargetDurationSec: 60},
		Iteration: 1,
	}

	prompt := testAgent().buildUserPrompt(req)
	assert.Contains(t, prompt, "Breaking story")
	assert.Contains(t, prompt, "The details")
	assert.NotContains(t, prompt, "previous draft")
}

func TestBuildUserPromptRevisionIncludesFeedback(t *testing.T) {
	req := Request{
		Item:      &models.ContentItem{Title: "Breaking story", Body: "The details"},
		Settings:  &models.AISettings{TargetDurationSec: 60},
		Iteration: 2,
		PrevReview: &models.Review{
			Score:   5,
			Verdict: models.VerdictNeedsRevision,
			Comment: "Needs a sharper hook",
			SceneComments: models.SceneComments{
				{SceneNumber: 1, Type: models.CommentNegative, Comment: "Opens too slow"},
			},
		},
	}

	prompt := testAgent().buildUserPrompt(req)
	assert.Contains(t, prompt, "Needs a sharper hook")
	assert.Contains(t, prompt, "[FIX] Scene 1: Opens too slow")
}

func TestBuildUserPromptCorrectiveAppendsReminder(t *testing.T) {
	req := Request{
		Item:       &models.ContentItem{Title: "T", Body: "B"},
		Settings:   &models.AISettings{TargetDurationSec: 60},
		Iteration:  1,
		Corrective: true,
	}

	prompt := testAgent().buildUserPrompt(req)
	assert.Contains(t, prompt, agent.SchemaReminder)
}

func TestBuildSystemPromptSections(t *testing.T) {
	base := testAgent().buildSystemPrompt(&models.AISettings{})

	withCustom := testAgent().buildSystemPrompt(&models.AISettings{
		ScriptwriterPrompt: "Always open with a question.",
	})
	assert.Greater(t, len(withCustom), len(base))
	assert.Contains(t, withCustom, "Always open with a question.")

	withExamples := testAgent().buildSystemPrompt(&models.AISettings{
		StyleExamples: models.StringSlice{"Example script one", "Example script two"},
	})
	assert.Contains(t, withExamples, "Example script one")
	assert.Contains(t, withExamples, "Example script two")
}
