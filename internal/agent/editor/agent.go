// Package editor implements the reviewing agent: it scores a script
// draft against its source content and produces a verdict with typed
// per-scene comments.
package editor

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

// Agent reviews script drafts
type Agent struct {
	aiClient *ai.Client
	log      *logger.Logger
}

// NewAgent creates a new editor agent
func NewAgent(aiClient *ai.Client, log *logger.Logger) *Agent {
	return &Agent{
		aiClient: aiClient,
		log:      log.WithComponent("editor"),
	}
}

// Request carries one review call's input: the draft under review and
// the original content for fact-checking.
type Request struct {
	Item       *models.ContentItem
	Settings   *models.AISettings
	Scenes     []models.Scene
	Corrective bool // Re-prompt after a validation failure
	Thinking   agent.ThinkingSink
}

// Result is the parsed and validated editor output
type Result struct {
	Score         int
	Verdict       models.Verdict
	Comment       string
	SceneComments models.SceneComments
	Usage         agent.Usage
}

// reviewResponse mirrors the JSON the model is asked to produce
type reviewResponse struct {
	Score         int    `json:"score"`
	Verdict       string `json:"verdict"`
	Comment       string `json:"comment"`
	SceneComments []struct {
		SceneNumber int    `json:"scene_number"`
		Type        string `json:"type"`
		Comment     string `json:"comment"`
	} `json:"scene_comments"`
}

// Review produces a review for the given draft
func (a *Agent) Review(ctx context.Context, req Request) (*Result, error) {
	systemPrompt := ai.EditorSystemPrompt
	if req.Settings.EditorPrompt != "" {
		systemPrompt += "\n\nAdditional review criteria from the channel owner:\n" + req.Settings.EditorPrompt
	}

	userPrompt := fmt.Sprintf(ai.EditorUserPrompt,
		req.Item.Title,
		req.Item.Body,
		renderScenes(req.Scenes),
	)
	if req.Corrective {
		userPrompt += agent.SchemaReminder
	}

	resp, err := a.aiClient.CompleteJSON(ctx, systemPrompt, userPrompt, req.Thinking)
	if err != nil {
		return nil, err
	}

	result, err := a.parse(resp.Text, req.Scenes)
	if err != nil {
		a.log.Error().
			Err(err).
			Str("response", truncate(resp.Text, 500)).
			Msg("Failed to parse review response")
		return nil, err
	}
	result.Usage = resp.Usage

	a.log.Info().
		Int("score", result.Score).
		Str("verdict", string(result.Verdict)).
		Int("scene_comments", len(result.SceneComments)).
		Msg("Review produced")

	return result, nil
}

// renderScenes formats the draft for the review prompt
func renderScenes(scenes []models.Scene) string {
	var b strings.Builder
	for _, s := range scenes {
		fmt.Fprintf(&b, "Scene %d (%.1fs)\nNarration: %s\nVisual: %s\n\n", s.Number, s.DurationSec, s.Narration, s.Visual)
	}
	return strings.TrimSpace(b.String())
}

// parse decodes and validates the model output against the draft
func (a *Agent) parse(text string, scenes []models.Scene) (*Result, error) {
	var resp reviewResponse
	if err := json.Unmarshal([]byte(agent.ExtractJSON(text)), &resp); err != nil {
		return nil, &agent.ValidationError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}

	if resp.Score < 1 || resp.Score > 10 {
		return nil, &agent.ValidationError{Reason: fmt.Sprintf("score %d outside [1,10]", resp.Score)}
	}

	verdict := models.Verdict(resp.Verdict)
	if !verdict.Valid() {
		return nil, &agent.ValidationError{Reason: fmt.Sprintf("unknown verdict %q", resp.Verdict)}
	}

	if strings.TrimSpace(resp.Comment) == "" {
		return nil, &agent.ValidationError{Reason: "empty overall comment"}
	}

	comments := make(models.SceneComments, 0, len(resp.SceneComments))
	for _, c := range resp.SceneComments {
		if c.SceneNumber < 1 || c.SceneNumber > len(scenes) {
			return nil, &agent.ValidationError{Reason: fmt.Sprintf("comment references nonexistent scene %d", c.SceneNumber)}
		}
		commentType := models.CommentType(c.Type)
		if !commentType.Valid() {
			return nil, &agent.ValidationError{Reason: fmt.Sprintf("unknown comment type %q", c.Type)}
		}
		comments = append(comments, models.SceneComment{
			SceneNumber: c.SceneNumber,
			Type:        commentType,
			Comment:     c.Comment,
		})
	}

	return &Result{
		Score:         resp.Score,
		Verdict:       verdict,
		Comment:       resp.Comment,
		SceneComments: comments,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
