// Package conveyor implements the outer scheduling loop: it selects
// eligible content items within daily and budget limits and hands them
// to the pipeline runner.
package conveyor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/internal/pipeline"
	"github.com/shortform-agent/internal/storage"
	"github.com/shortform-agent/pkg/logger"
)

// Gate refusals surfaced synchronously to the caller of Trigger
var (
	ErrPaused          = errors.New("conveyor is paused")
	ErrDisabled        = errors.New("conveyor is disabled")
	ErrDailyLimit      = errors.New("daily item limit reached")
	ErrBudgetExhausted = errors.New("monthly budget exhausted")
)

// Options tunes the learned threshold
type Options struct {
	// Terminal scripts required before the learned threshold replaces the
	// static one
	LearnedThresholdMinHistory int
	// How many recent terminal scripts inform the learned threshold
	LearnedThresholdWindow int
}

// Scheduler decides which content items to enqueue and when. Pausing only
// gates new enqueuing; in-flight scripts always run to completion.
type Scheduler struct {
	repo   storage.Repository
	runner *pipeline.Runner
	scorer *Scorer // nil skips the scoring pass
	userID string
	opts   Options
	log    *logger.Logger

	mu     sync.Mutex
	paused bool

	now func() time.Time
}

// NewScheduler creates a conveyor scheduler
func NewScheduler(
	repo storage.Repository,
	runner *pipeline.Runner,
	scorer *Scorer,
	userID string,
	opts Options,
	log *logger.Logger,
) *Scheduler {
	if opts.LearnedThresholdMinHistory <= 0 {
		opts.LearnedThresholdMinHistory = 10
	}
	if opts.LearnedThresholdWindow <= 0 {
		opts.LearnedThresholdWindow = 20
	}
	return &Scheduler{
		repo:   repo,
		runner: runner,
		scorer: scorer,
		userID: userID,
		opts:   opts,
		log:    log.WithComponent("conveyor"),
		now:    time.Now,
	}
}

// PassResult summarizes one scheduling pass
type PassResult struct {
	Scored           int
	Dismissed        int
	Enqueued         int
	SkippedThreshold int
	Errors           []error
	Duration         time.Duration
}

// Trigger runs one scheduling pass immediately. Gate refusals (paused,
// daily limit, budget) are returned as errors before anything is enqueued.
func (s *Scheduler) Trigger(ctx context.Context) (*PassResult, error) {
	if s.Paused() {
		return nil, ErrPaused
	}

	start := s.now()
	result := &PassResult{}

	settings, err := s.repo.GetConveyorSettings(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conveyor settings: %w", err)
	}
	if !settings.Enabled {
		return nil, ErrDisabled
	}
	stats, err := s.repo.GetConveyorStats(ctx, s.userID, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load conveyor stats: %w", err)
	}

	if stats.ItemsToday >= settings.DailyLimit {
		return nil, fmt.Errorf("%w: %d/%d items today", ErrDailyLimit, stats.ItemsToday, settings.DailyLimit)
	}
	if stats.MonthCostUSD >= settings.MonthlyBudgetUSD {
		return nil, fmt.Errorf("%w: $%.2f/$%.2f this month", ErrBudgetExhausted, stats.MonthCostUSD, settings.MonthlyBudgetUSD)
	}

	// Score new items first so they can compete in this pass
	s.scorePass(ctx, settings, result)

	threshold := s.effectiveThreshold(ctx, settings)

	// Select eligible scored items, best first
	scored := models.ContentStatusScored
	items, err := s.repo.ListContentItems(ctx, storage.ContentFilter{
		Status:    &scored,
		OrderBy:   "score",
		OrderDesc: true,
		Limit:     settings.DailyLimit * 2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list content items: %w", err)
	}

	capacity := settings.DailyLimit - stats.ItemsToday
	for _, item := range items {
		if result.Enqueued >= capacity {
			break
		}
		if item.Score < threshold {
			result.SkippedThreshold++
			continue
		}

		if err := s.enqueue(ctx, item); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("item %d: %w", item.ID, err))
			continue
		}
		result.Enqueued++
	}

	result.Duration = s.now().Sub(start)

	s.log.Info().
		Int("scored", result.Scored).
		Int("dismissed", result.Dismissed).
		Int("enqueued", result.Enqueued).
		Int("skipped_threshold", result.SkippedThreshold).
		Float64("threshold", threshold).
		Dur("duration", result.Duration).
		Msg("Scheduling pass completed")

	return result, nil
}

// enqueue creates the script, marks the item selected, counts it against
// the daily limit and starts the run
func (s *Scheduler) enqueue(ctx context.Context, item *models.ContentItem) error {
	script := &models.Script{
		ContentItemID: item.ID,
		Status:        models.ScriptStatusPending,
	}
	if err := s.repo.CreateScript(ctx, script); err != nil {
		return fmt.Errorf("failed to create script: %w", err)
	}

	item.Status = models.ContentStatusSelected
	if err := s.repo.UpdateContentItem(ctx, item); err != nil {
		return fmt.Errorf("failed to mark item selected: %w", err)
	}

	// Counted at enqueue time so the daily gate is a hard ceiling even
	// with runs still in flight
	if _, err := s.repo.IncrementConveyorStats(ctx, s.userID, 1, 0, s.now()); err != nil {
		return fmt.Errorf("failed to count item: %w", err)
	}

	if err := s.runner.Start(ctx, script.ID); err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}

	s.log.Info().
		Uint("item_id", item.ID).
		Uint("script_id", script.ID).
		Float64("score", item.Score).
		Msg("Item enqueued")

	return nil
}

// scorePass scores new items and dismisses those matching avoided topics
func (s *Scheduler) scorePass(ctx context.Context, settings *models.ConveyorSettings, result *PassResult) {
	newStatus := models.ContentStatusNew
	items, err := s.repo.ListContentItems(ctx, storage.ContentFilter{
		Status:  &newStatus,
		OrderBy: "created_at",
		Limit:   100,
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("failed to list new items: %w", err))
		return
	}

	for _, item := range items {
		if topic := matchAvoidedTopic(item, settings.AvoidedTopics); topic != "" {
			item.Status = models.ContentStatusDismissed
			item.Analysis = fmt.Sprintf("dismissed: matches avoided topic %q", topic)
			if err := s.repo.UpdateContentItem(ctx, item); err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			result.Dismissed++
			continue
		}

		if s.scorer == nil {
			continue
		}

		score, err := s.scorer.Score(ctx, item)
		if err != nil {
			s.log.Warn().Err(err).Uint("item_id", item.ID).Msg("Failed to score item, skipping")
			result.Errors = append(result.Errors, fmt.Errorf("item %d: %w", item.ID, err))
			continue
		}

		item.Score = score.Score
		item.Analysis = score.Analysis
		item.Status = models.ContentStatusScored
		if err := s.repo.UpdateContentItem(ctx, item); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Scored++
	}
}

// matchAvoidedTopic returns the first avoided topic the item matches
func matchAvoidedTopic(item *models.ContentItem, topics models.StringSlice) string {
	title := strings.ToLower(item.Title)
	body := strings.ToLower(item.Body)
	for _, topic := range topics {
		t := strings.ToLower(strings.TrimSpace(topic))
		if t == "" {
			continue
		}
		if strings.Contains(title, t) || strings.Contains(body, t) {
			return topic
		}
	}
	return ""
}

// effectiveThreshold returns the learned score threshold once enough
// terminal history exists, otherwise the configured static one. The
// learned value is the median source-item score of recently approved
// scripts.
func (s *Scheduler) effectiveThreshold(ctx context.Context, settings *models.ConveyorSettings) float64 {
	scripts, err := s.repo.RecentTerminalScripts(ctx, s.opts.LearnedThresholdWindow)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to load terminal history, using static threshold")
		return settings.MinScoreThreshold
	}
	if len(scripts) < s.opts.LearnedThresholdMinHistory {
		return settings.MinScoreThreshold
	}

	var approvedScores []float64
	for _, script := range scripts {
		if script.Status != models.ScriptStatusApproved || script.ContentItem == nil {
			continue
		}
		approvedScores = append(approvedScores, script.ContentItem.Score)
	}
	// Too few approvals to learn from
	if len(approvedScores) < 3 {
		return settings.MinScoreThreshold
	}

	sort.Float64s(approvedScores)
	learned := approvedScores[len(approvedScores)/2]

	s.log.Debug().
		Float64("learned", learned).
		Float64("static", settings.MinScoreThreshold).
		Int("approved_samples", len(approvedScores)).
		Msg("Using learned threshold")

	return learned
}

// RecordCompletion folds a terminal script's spend into the monthly
// counter. Wired as the runner's OnTerminal callback.
func (s *Scheduler) RecordCompletion(ctx context.Context, script *models.Script) {
	if script.TotalCostUSD <= 0 {
		return
	}
	if _, err := s.repo.IncrementConveyorStats(ctx, s.userID, 0, script.TotalCostUSD, s.now()); err != nil {
		s.log.Error().
			Err(err).
			Uint("script_id", script.ID).
			Msg("Failed to record script cost")
	}
}

// Pause stops accepting new items. In-flight scripts still finish; no
// iteration is aborted mid-call. Idempotent.
func (s *Scheduler) Pause() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return "conveyor already paused"
	}
	s.paused = true
	s.log.Info().Msg("Conveyor paused")
	return "conveyor paused; in-flight scripts will finish"
}

// Resume re-enables enqueuing. Idempotent.
func (s *Scheduler) Resume() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return "conveyor already running"
	}
	s.paused = false
	s.log.Info().Msg("Conveyor resumed")
	return "conveyor resumed"
}

// Paused reports whether new enqueuing is gated
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}
