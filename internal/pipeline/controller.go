// Package pipeline drives one content item through scoring, drafting,
// review and re-drafting cycles until a terminal outcome.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/shortform-agent/internal/agent"
	"github.com/shortform-agent/internal/agent/editor"
	"github.com/shortform-agent/internal/agent/scriptwriter"
	"github.com/shortform-agent/internal/events"
	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/internal/storage"
	"github.com/shortform-agent/pkg/logger"
)

// Scriptwriter drafts script versions
type Scriptwriter interface {
	Draft(ctx context.Context, req scriptwriter.Request) (*scriptwriter.Draft, error)
}

// Editor reviews script drafts
type Editor interface {
	Review(ctx context.Context, req editor.Request) (*editor.Result, error)
}

// Controller runs the Scriptwriter→Editor loop for one script at a time.
// Exactly one iteration runs at any moment for a given script, and a new
// iteration never starts before the previous one's review is persisted.
type Controller struct {
	writer Scriptwriter
	editor Editor
	repo   storage.Repository
	broker *events.Broker
	userID string

	maxTransportRetries int
	newBackOff          func() backoff.BackOff

	log *logger.Logger
}

// NewController creates an iteration controller
func NewController(
	writer Scriptwriter,
	editorAgent Editor,
	repo storage.Repository,
	broker *events.Broker,
	userID string,
	maxTransportRetries int,
	log *logger.Logger,
) *Controller {
	if maxTransportRetries <= 0 {
		maxTransportRetries = 3
	}
	return &Controller{
		writer:              writer,
		editor:              editorAgent,
		repo:                repo,
		broker:              broker,
		userID:              userID,
		maxTransportRetries: maxTransportRetries,
		newBackOff:          func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		log:                 log.WithComponent("pipeline"),
	}
}

// Run drives the script from pending to a terminal status. It returns
// the script in its terminal state. The caller must guarantee no other
// controller runs the same script concurrently (see Runner).
func (c *Controller) Run(ctx context.Context, scriptID uint) (*models.Script, error) {
	script, err := c.repo.GetScriptByID(ctx, scriptID)
	if err != nil {
		return nil, fmt.Errorf("script not found: %w", err)
	}
	if script.Status.IsTerminal() {
		return nil, fmt.Errorf("script %d already terminal (%s)", scriptID, script.Status)
	}
	item := script.ContentItem
	if item == nil {
		return nil, fmt.Errorf("script %d has no content item", scriptID)
	}

	// Settings snapshot: captured once here so edits during the run never
	// alter an in-flight generation.
	settings, err := c.repo.GetAISettings(ctx, c.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if script.MaxIterations <= 0 {
		script.MaxIterations = settings.MaxIterations
	}

	log := c.log.WithScriptID(script.ID)

	script.Status = models.ScriptStatusInProgress
	if err := c.repo.UpdateScript(ctx, script); err != nil {
		return nil, fmt.Errorf("failed to mark script in progress: %w", err)
	}
	c.publish(ctx, models.EventItemStarted, item.ID, models.JSON{
		"message": fmt.Sprintf("Generation started for %q", item.Title),
	})

	var prevReview *models.Review
	for version := script.CurrentIteration + 1; ; version++ {
		log.Info().Int("iteration", version).Msg("Starting iteration")

		c.publish(ctx, models.EventStage, item.ID, models.JSON{
			"stage":     version,
			"stageName": "scriptwriting",
		})

		draft, err := c.draft(ctx, item, settings, version, prevReview)
		if err != nil {
			return c.fail(ctx, script, item, version, "scriptwriter", err)
		}

		iteration := &models.Iteration{
			ScriptID: script.ID,
			Version:  version,
			Draft: &models.ScriptVersion{
				TotalSec:     draft.TotalSec,
				InputTokens:  draft.Usage.InputTokens,
				OutputTokens: draft.Usage.OutputTokens,
				CostUSD:      draft.Usage.CostUSD,
			},
		}
		if err := iteration.Draft.SetScenes(draft.Scenes); err != nil {
			return c.fail(ctx, script, item, version, "scriptwriter", err)
		}
		if err := c.repo.CreateIteration(ctx, iteration); err != nil {
			return nil, fmt.Errorf("failed to persist iteration %d: %w", version, err)
		}

		c.publish(ctx, models.EventStage, item.ID, models.JSON{
			"stage":     version,
			"stageName": "reviewing",
		})

		result, err := c.review(ctx, item, settings, draft.Scenes)
		if err != nil {
			return c.fail(ctx, script, item, version, "editor", err)
		}

		review := &models.Review{
			IterationID:   iteration.ID,
			Score:         result.Score,
			Verdict:       result.Verdict,
			Comment:       result.Comment,
			SceneComments: result.SceneComments,
			InputTokens:   result.Usage.InputTokens,
			OutputTokens:  result.Usage.OutputTokens,
			CostUSD:       result.Usage.CostUSD,
		}
		// The review is persisted before any continue/stop decision, so a
		// new iteration never starts ahead of its predecessor's review.
		if err := c.repo.SaveReview(ctx, review); err != nil {
			return nil, fmt.Errorf("failed to persist review for iteration %d: %w", version, err)
		}

		script.CurrentIteration = version
		script.TotalCostUSD += draft.Usage.CostUSD + result.Usage.CostUSD
		if err := c.repo.UpdateScript(ctx, script); err != nil {
			return nil, fmt.Errorf("failed to update script after iteration %d: %w", version, err)
		}

		if !review.ConsistentBanding() {
			// Soft invariant: verdict stays authoritative, score is a
			// display aid. Log and proceed.
			log.Warn().
				Int("score", review.Score).
				Str("verdict", string(review.Verdict)).
				Msg("Verdict/score banding mismatch")
		}

		decision := c.decide(script, settings, review, log)
		switch decision {
		case decisionRevise:
			prevReview = review
			continue
		case decisionApprove, decisionEscalate:
			score := review.Score
			script.FinalScore = &score
			script.Status = models.ScriptStatusCompleted
			if err := c.repo.UpdateScript(ctx, script); err != nil {
				return nil, fmt.Errorf("failed to complete script: %w", err)
			}
			if decision == decisionEscalate {
				script.Status = models.ScriptStatusHumanReview
			} else {
				script.Status = models.ScriptStatusApproved
			}
		case decisionReject:
			score := review.Score
			script.FinalScore = &score
			script.Status = models.ScriptStatusRejected
		case decisionExhausted:
			score := review.Score
			script.FinalScore = &score
			script.Status = models.ScriptStatusHumanReview
			script.Outcome = models.OutcomeMaxIterationsReached
		}

		if err := c.repo.UpdateScript(ctx, script); err != nil {
			return nil, fmt.Errorf("failed to finalize script: %w", err)
		}
		break
	}

	// The item has been consumed regardless of how the model judged it
	item.Status = models.ContentStatusUsed
	if err := c.repo.UpdateContentItem(ctx, item); err != nil {
		log.Warn().Err(err).Msg("Failed to mark content item used")
	}

	c.publish(ctx, models.EventItemCompleted, item.ID, models.JSON{
		"result": models.JSON{
			"status":     string(script.Status),
			"outcome":    script.Outcome,
			"finalScore": script.FinalScore,
			"iterations": script.CurrentIteration,
			"costUsd":    script.TotalCostUSD,
		},
	})

	log.Info().
		Str("status", string(script.Status)).
		Int("iterations", script.CurrentIteration).
		Float64("cost_usd", script.TotalCostUSD).
		Msg("Script terminal")

	return script, nil
}

type decision int

const (
	decisionRevise decision = iota
	decisionApprove
	decisionEscalate
	decisionReject
	decisionExhausted
)

// decide maps the persisted review onto the next transition. The verdict,
// not the numeric score, drives control flow; the score only gates final
// approval.
func (c *Controller) decide(script *models.Script, settings *models.AISettings, review *models.Review, log *logger.Logger) decision {
	switch review.Verdict {
	case models.VerdictApproved:
		if review.Score >= settings.MinApprovalScore {
			if settings.AutoEscalate {
				return decisionEscalate
			}
			return decisionApprove
		}
		// Approved below the configured bar: keep iterating
		log.Warn().
			Int("score", review.Score).
			Int("min_approval_score", settings.MinApprovalScore).
			Msg("Approval below minimum score, treating as revision")
		fallthrough
	case models.VerdictNeedsRevision:
		if script.CurrentIteration < script.MaxIterations {
			return decisionRevise
		}
		return decisionExhausted
	default: // rejected: a hard stop, no further spend
		return decisionReject
	}
}

// draft calls the scriptwriter with the controller retry policy
func (c *Controller) draft(ctx context.Context, item *models.ContentItem, settings *models.AISettings, version int, prevReview *models.Review) (*scriptwriter.Draft, error) {
	var draft *scriptwriter.Draft
	err := c.invoke(ctx, func(corrective bool) error {
		var err error
		draft, err = c.writer.Draft(ctx, scriptwriter.Request{
			Item:       item,
			Settings:   settings,
			Iteration:  version,
			PrevReview: prevReview,
			Corrective: corrective,
			Thinking:   c.thinkingSink(ctx, item.ID),
		})
		return err
	})
	return draft, err
}

// review calls the editor with the controller retry policy
func (c *Controller) review(ctx context.Context, item *models.ContentItem, settings *models.AISettings, scenes []models.Scene) (*editor.Result, error) {
	var result *editor.Result
	err := c.invoke(ctx, func(corrective bool) error {
		var err error
		result, err = c.editor.Review(ctx, editor.Request{
			Item:       item,
			Settings:   settings,
			Scenes:     scenes,
			Corrective: corrective,
			Thinking:   c.thinkingSink(ctx, item.ID),
		})
		return err
	})
	return result, err
}

// invoke applies the retry policy to one agent call: transport errors
// retry with exponential backoff a bounded number of times; a validation
// error triggers exactly one corrective re-prompt before becoming hard.
func (c *Controller) invoke(ctx context.Context, call func(corrective bool) error) error {
	err := c.retryTransport(ctx, func() error { return call(false) })
	if err == nil || !agent.IsValidation(err) {
		return err
	}

	c.log.Warn().Err(err).Msg("Validation failure, retrying once with schema reminder")
	return c.retryTransport(ctx, func() error { return call(true) })
}

// retryTransport retries transport-level failures; everything else is
// permanent
func (c *Controller) retryTransport(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxTransportRetries)), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !agent.IsTransport(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}

// fail marks the script failed, distinct from rejected so operators can
// tell infrastructure breakage from a model decision
func (c *Controller) fail(ctx context.Context, script *models.Script, item *models.ContentItem, version int, stage string, cause error) (*models.Script, error) {
	c.log.Error().
		Err(cause).
		Uint("script_id", script.ID).
		Int("iteration", version).
		Str("stage", stage).
		Msg("Iteration failed")

	script.Status = models.ScriptStatusFailed
	script.ErrorMessage = cause.Error()
	if err := c.repo.UpdateScript(ctx, script); err != nil {
		return nil, fmt.Errorf("failed to persist failure: %w", err)
	}

	// Infrastructure broke before the model judged the item: return it to
	// the scored pool so a later pass can pick it up again.
	item.Status = models.ContentStatusScored
	if err := c.repo.UpdateContentItem(ctx, item); err != nil {
		c.log.Warn().Err(err).Msg("Failed to requeue content item after failure")
	}

	c.publish(ctx, models.EventError, item.ID, models.JSON{
		"error": fmt.Sprintf("%s failed on iteration %d: %v", stage, version, cause),
	})
	c.publish(ctx, models.EventItemFailed, item.ID, models.JSON{
		"message": fmt.Sprintf("Generation failed for %q", item.Title),
		"error":   cause.Error(),
	})

	return script, fmt.Errorf("iteration %d %s failed: %w", version, stage, cause)
}

// thinkingSink forwards model thinking text as observability events
func (c *Controller) thinkingSink(ctx context.Context, itemID uint) agent.ThinkingSink {
	if c.broker == nil {
		return nil
	}
	return func(text string) {
		c.publish(ctx, models.EventThinking, itemID, models.JSON{
			"thinking": text,
		})
	}
}

func (c *Controller) publish(ctx context.Context, eventType models.EventType, itemID uint, data models.JSON) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(ctx, &models.Event{
		Type:      eventType,
		UserID:    c.userID,
		ItemID:    itemID,
		Timestamp: time.Now(),
		Data:      data,
	})
}
