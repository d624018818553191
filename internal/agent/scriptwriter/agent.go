// Package scriptwriter implements the drafting agent: it turns a content
// item (plus, on revisions, the editor's feedback) into an ordered list
// of scenes.
package scriptwriter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shortform-agent/internal/agent"
	"github.com/shortform-agent/internal/ai"
	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/pkg/logger"
)

// Scene counts outside this range are unusual but valid; they log a
// warning instead of failing validation.
const (
	softMinScenes = 3
	softMaxScenes = 8
)

// Agent drafts script versions
type Agent struct {
	aiClient *ai.Client
	log      *logger.Logger
}

// NewAgent creates a new scriptwriter agent
func NewAgent(aiClient *ai.Client, log *logger.Logger) *Agent {
	return &Agent{
		aiClient: aiClient,
		log:      log.WithComponent("scriptwriter"),
	}
}

// Request carries everything one drafting call needs. Settings is the
// snapshot captured when the iteration started.
type Request struct {
	Item       *models.ContentItem
	Settings   *models.AISettings
	Iteration  int            // 1-based
	PrevReview *models.Review // Required for Iteration >= 2
	Corrective bool           // Re-prompt after a validation failure
	Thinking   agent.ThinkingSink
}

// Draft is the parsed and validated scriptwriter output
type Draft struct {
	Scenes   []models.Scene
	TotalSec float64
	Usage    agent.Usage
}

// draftResponse mirrors the JSON the model is asked to produce
type draftResponse struct {
	Scenes []struct {
		Number      int     `json:"number"`
		Narration   string  `json:"narration"`
		Visual      string  `json:"visual"`
		DurationSec float64 `json:"duration_sec"`
	} `json:"scenes"`
	TotalSec float64 `json:"total_sec"`
}

// Draft produces one script version for the request
func (a *Agent) Draft(ctx context.Context, req Request) (*Draft, error) {
	systemPrompt := a.buildSystemPrompt(req.Settings)
	userPrompt := a.buildUserPrompt(req)

	resp, err := a.aiClient.CompleteJSON(ctx, systemPrompt, userPrompt, req.Thinking)
	if err != nil {
		return nil, err
	}

	draft, err := a.parse(resp.Text)
	if err != nil {
		a.log.Error().
			Err(err).
			Int("iteration", req.Iteration).
			Str("response", truncate(resp.Text, 500)).
			Msg("Failed to parse draft response")
		return nil, err
	}
	draft.Usage = resp.Usage

	if len(draft.Scenes) < softMinScenes || len(draft.Scenes) > softMaxScenes {
		a.log.Warn().
			Int("scene_count", len(draft.Scenes)).
			Msg("Scene count outside expected range")
	}

	a.log.Info().
		Int("iteration", req.Iteration).
		Int("scenes", len(draft.Scenes)).
		Float64("total_sec", draft.TotalSec).
		Msg("Draft produced")

	return draft, nil
}

// buildSystemPrompt assembles base instruction + custom fragment + examples
func (a *Agent) buildSystemPrompt(settings *models.AISettings) string {
	prompt := ai.ScriptwriterSystemPrompt

	if settings.ScriptwriterPrompt != "" {
		prompt += fmt.Sprintf(ai.ScriptwriterCustomSection, settings.ScriptwriterPrompt)
	}

	if len(settings.StyleExamples) > 0 {
		var examples strings.Builder
		for i, example := range settings.StyleExamples {
			fmt.Fprintf(&examples, "--- Example %d ---\n%s\n", i+1, example)
		}
		prompt += fmt.Sprintf(ai.ScriptwriterExamplesSection, examples.String())
	}

	return prompt
}

// buildUserPrompt assembles the content block and, on revisions, a
// structured restatement of the prior editor feedback
func (a *Agent) buildUserPrompt(req Request) string {
	prompt := fmt.Sprintf(ai.ScriptwriterUserPrompt,
		req.Item.Title,
		req.Item.Body,
		req.Settings.TargetDurationSec,
	)

	if req.Iteration >= 2 && req.PrevReview != nil {
		prompt += fmt.Sprintf(ai.ScriptwriterRevisionSection,
			req.Iteration,
			req.PrevReview.Score,
			req.PrevReview.Verdict,
			req.PrevReview.Comment,
			FeedbackBlock(req.PrevReview.SceneComments),
		)
	}

	if req.Corrective {
		prompt += agent.SchemaReminder
	}

	return prompt
}

// FeedbackBlock renders per-scene comments one per line, each prefixed by
// the human-readable label for its type
func FeedbackBlock(comments models.SceneComments) string {
	if len(comments) == 0 {
		return "(no per-scene comments)"
	}

	var b strings.Builder
	for _, c := range comments {
		fmt.Fprintf(&b, "[%s] Scene %d: %s\n", c.Type.Label(), c.SceneNumber, c.Comment)
	}
	return strings.TrimRight(b.String(), "\n")
}

// parse decodes and validates the model output
func (a *Agent) parse(text string) (*Draft, error) {
	var resp draftResponse
	if err := json.Unmarshal([]byte(agent.ExtractJSON(text)), &resp); err != nil {
		return nil, &agent.ValidationError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}

	if len(resp.Scenes) == 0 {
		return nil, &agent.ValidationError{Reason: "empty scene list"}
	}

	scenes := make([]models.Scene, 0, len(resp.Scenes))
	var total float64
	for i, s := range resp.Scenes {
		if s.Number != i+1 {
			return nil, &agent.ValidationError{Reason: fmt.Sprintf("scene numbering not contiguous: position %d has number %d", i+1, s.Number)}
		}
		if strings.TrimSpace(s.Narration) == "" {
			return nil, &agent.ValidationError{Reason: fmt.Sprintf("scene %d has empty narration", s.Number)}
		}
		if strings.TrimSpace(s.Visual) == "" {
			return nil, &agent.ValidationError{Reason: fmt.Sprintf("scene %d has empty visual description", s.Number)}
		}
		if s.DurationSec <= 0 {
			return nil, &agent.ValidationError{Reason: fmt.Sprintf("scene %d has non-positive duration %v", s.Number, s.DurationSec)}
		}

		scenes = append(scenes, models.Scene{
			Number:      s.Number,
			Narration:   s.Narration,
			Visual:      s.Visual,
			DurationSec: s.DurationSec,
		})
		total += s.DurationSec
	}

	// Recompute the aggregate rather than trusting the model's arithmetic
	return &Draft{Scenes: scenes, TotalSec: total}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
