package conveyor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortform-agent/internal/agent"
	"github.com/shortform-agent/internal/agent/editor"
	"github.com/shortform-agent/internal/agent/scriptwriter"
	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/internal/pipeline"
	"github.com/shortform-agent/internal/storage"
	"github.com/shortform-agent/internal/storage/sqlite"
	"github.com/shortform-agent/pkg/logger"
)

// approvingWriter and approvingEditor drive enqueued runs straight to
// approval so scheduler tests stay deterministic
type approvingWriter struct{}

func (approvingWriter) Draft(ctx context.Context, req scriptwriter.Request) (*scriptwriter.Draft, error) {
	return &scriptwriter.Draft{
		Scenes: []models.Scene{
			{Number: 1, Narration: "n", Visual: "v", DurationSec: 30},
		},
		TotalSec: 30,
		Usage:    agent.Usage{CostUSD: 0.01},
	}, nil
}

type approvingEditor struct{}

func (approvingEditor) Review(ctx context.Context, req editor.Request) (*editor.Result, error) {
	return &editor.Result{
		Score:   9,
		Verdict: models.VerdictApproved,
		Comment: "fine",
		Usage:   agent.Usage{CostUSD: 0.005},
	}, nil
}

type schedFixture struct {
	repo      *sqlite.Repository
	runner    *pipeline.Runner
	scheduler *Scheduler
}

func setupScheduler(t *testing.T, mutate func(*models.ConveyorSettings)) *schedFixture {
	t.Helper()
	ctx := context.Background()

	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })

	settings, err := repo.GetConveyorSettings(ctx, "default")
	require.NoError(t, err)
	settings.Enabled = true
	if mutate != nil {
		mutate(settings)
	}
	require.NoError(t, repo.SaveConveyorSettings(ctx, settings))

	ctrl := pipeline.NewController(approvingWriter{}, approvingEditor{}, repo, nil, "default", 1, logger.Nop())
	runner := pipeline.NewRunner(ctrl, logger.Nop())

	// No scorer: tests seed pre-scored items
	scheduler := NewScheduler(repo, runner, nil, "default", Options{}, logger.Nop())
	runner.OnTerminal = scheduler.RecordCompletion

	return &schedFixture{repo: repo, runner: runner, scheduler: scheduler}
}

func seedScored(t *testing.T, repo *sqlite.Repository, n int, score float64) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, repo.CreateContentItem(context.Background(), &models.ContentItem{
			ExternalID:  fmt.Sprintf("scored-%f-%d-%d", score, n, i),
			Title:       fmt.Sprintf("Item %d", i),
			Body:        "body",
			SourceType:  "rss",
			Score:       score,
			Status:      models.ContentStatusScored,
			PublishedAt: time.Now(),
		}))
	}
}

func TestTriggerDisabled(t *testing.T) {
	f := setupScheduler(t, func(s *models.ConveyorSettings) { s.Enabled = false })

	_, err := f.scheduler.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestTriggerPausedAndResume(t *testing.T) {
	f := setupScheduler(t, nil)
	ctx := context.Background()

	msg := f.scheduler.Pause()
	assert.Contains(t, msg, "paused")
	assert.True(t, f.scheduler.Paused())

	_, err := f.scheduler.Trigger(ctx)
	assert.ErrorIs(t, err, ErrPaused)

	// Idempotent
	assert.Contains(t, f.scheduler.Pause(), "already")

	f.scheduler.Resume()
	assert.False(t, f.scheduler.Paused())
	_, err = f.scheduler.Trigger(ctx)
	assert.NoError(t, err)
}

func TestTriggerEnforcesDailyLimit(t *testing.T) {
	f := setupScheduler(t, func(s *models.ConveyorSettings) { s.DailyLimit = 2 })
	ctx := context.Background()

	seedScored(t, f.repo, 4, 80)

	result, err := f.scheduler.Trigger(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Enqueued)
	f.runner.Wait()

	stats, err := f.repo.GetConveyorStats(ctx, "default", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ItemsToday)

	// The ceiling holds across repeated triggers the same day
	_, err = f.scheduler.Trigger(ctx)
	assert.ErrorIs(t, err, ErrDailyLimit)
}

func TestTriggerEnforcesBudget(t *testing.T) {
	f := setupScheduler(t, func(s *models.ConveyorSettings) { s.MonthlyBudgetUSD = 1.0 })
	ctx := context.Background()

	_, err := f.repo.IncrementConveyorStats(ctx, "default", 0, 1.5, time.Now())
	require.NoError(t, err)

	seedScored(t, f.repo, 1, 90)

	_, err = f.scheduler.Trigger(ctx)
	assert.ErrorIs(t, err, ErrBudgetExhausted)
}

func TestTriggerSkipsBelowThreshold(t *testing.T) {
	f := setupScheduler(t, func(s *models.ConveyorSettings) { s.MinScoreThreshold = 60 })
	ctx := context.Background()

	seedScored(t, f.repo, 2, 80)
	seedScored(t, f.repo, 3, 40)

	result, err := f.scheduler.Trigger(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Enqueued)
	assert.Equal(t, 3, result.SkippedThreshold)
	f.runner.Wait()
}

func TestTriggerSelectsBestFirst(t *testing.T) {
	f := setupScheduler(t, func(s *models.ConveyorSettings) {
		s.DailyLimit = 1
		s.MinScoreThreshold = 0
	})
	ctx := context.Background()

	seedScored(t, f.repo, 1, 55)
	seedScored(t, f.repo, 1, 95)
	seedScored(t, f.repo, 1, 70)

	result, err := f.scheduler.Trigger(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Enqueued)
	f.runner.Wait()

	selected := models.ContentStatusUsed
	items, err := f.repo.ListContentItems(ctx, storage.ContentFilter{Status: &selected})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 95.0, items[0].Score)
}

func TestTriggerDismissesAvoidedTopics(t *testing.T) {
	f := setupScheduler(t, func(s *models.ConveyorSettings) {
		s.AvoidedTopics = models.StringSlice{"crypto"}
	})
	ctx := context.Background()

	require.NoError(t, f.repo.CreateContentItem(ctx, &models.ContentItem{
		ExternalID:  "avoid-1",
		Title:       "New Crypto exchange collapses",
		Body:        "body",
		SourceType:  "rss",
		Status:      models.ContentStatusNew,
		PublishedAt: time.Now(),
	}))
	require.NoError(t, f.repo.CreateContentItem(ctx, &models.ContentItem{
		ExternalID:  "keep-1",
		Title:       "Local team wins championship",
		Body:        "body",
		SourceType:  "rss",
		Status:      models.ContentStatusNew,
		PublishedAt: time.Now(),
	}))

	result, err := f.scheduler.Trigger(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Dismissed)

	dismissed, err := f.repo.GetContentItemByExternalID(ctx, "avoid-1")
	require.NoError(t, err)
	assert.Equal(t, models.ContentStatusDismissed, dismissed.Status)
	assert.Contains(t, dismissed.Analysis, "crypto")

	// Without a scorer the non-matching item stays new
	kept, err := f.repo.GetContentItemByExternalID(ctx, "keep-1")
	require.NoError(t, err)
	assert.Equal(t, models.ContentStatusNew, kept.Status)
}

func TestRunCompletionFoldsCostIntoBudget(t *testing.T) {
	f := setupScheduler(t, nil)
	ctx := context.Background()

	seedScored(t, f.repo, 1, 90)

	result, err := f.scheduler.Trigger(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Enqueued)
	f.runner.Wait()

	stats, err := f.repo.GetConveyorStats(ctx, "default", time.Now())
	require.NoError(t, err)
	// One draft plus one review from the approving fakes
	assert.InDelta(t, 0.015, stats.MonthCostUSD, 1e-9)
}

func TestEffectiveThresholdFallsBackWithoutHistory(t *testing.T) {
	f := setupScheduler(t, nil)
	ctx := context.Background()

	settings, err := f.repo.GetConveyorSettings(ctx, "default")
	require.NoError(t, err)

	got := f.scheduler.effectiveThreshold(ctx, settings)
	assert.Equal(t, settings.MinScoreThreshold, got)
}

func TestEffectiveThresholdLearnsFromApprovals(t *testing.T) {
	f := setupScheduler(t, nil)
	ctx := context.Background()

	// Twelve terminal scripts, five approved with known source scores
	approvedScores := []float64{50, 60, 70, 80, 90}
	for i, score := range approvedScores {
		item := &models.ContentItem{
			ExternalID:  fmt.Sprintf("hist-appr-%d", i),
			Title:       "t",
			SourceType:  "rss",
			Score:       score,
			Status:      models.ContentStatusUsed,
			PublishedAt: time.Now(),
		}
		require.NoError(t, f.repo.CreateContentItem(ctx, item))
		require.NoError(t, f.repo.CreateScript(ctx, &models.Script{
			ContentItemID: item.ID,
			Status:        models.ScriptStatusApproved,
		}))
	}
	for i := 0; i < 7; i++ {
		item := &models.ContentItem{
			ExternalID:  fmt.Sprintf("hist-rej-%d", i),
			Title:       "t",
			SourceType:  "rss",
			Score:       20,
			Status:      models.ContentStatusUsed,
			PublishedAt: time.Now(),
		}
		require.NoError(t, f.repo.CreateContentItem(ctx, item))
		require.NoError(t, f.repo.CreateScript(ctx, &models.Script{
			ContentItemID: item.ID,
			Status:        models.ScriptStatusRejected,
		}))
	}

	settings, err := f.repo.GetConveyorSettings(ctx, "default")
	require.NoError(t, err)

	// Median of the approved source scores
	got := f.scheduler.effectiveThreshold(ctx, settings)
	assert.Equal(t, 70.0, got)
}

func TestEffectiveThresholdNeedsEnoughApprovals(t *testing.T) {
	f := setupScheduler(t, nil)
	ctx := context.Background()

	// Plenty of history but only two approvals: stay on the static threshold
	for i := 0; i < 12; i++ {
		status := models.ScriptStatusRejected
		if i < 2 {
			status = models.ScriptStatusApproved
		}
		item := &models.ContentItem{
			ExternalID:  fmt.Sprintf("sparse-%d", i),
			Title:       "t",
			SourceType:  "rss",
			Score:       80,
			Status:      models.ContentStatusUsed,
			PublishedAt: time.Now(),
		}
		require.NoError(t, f.repo.CreateContentItem(ctx, item))
		require.NoError(t, f.repo.CreateScript(ctx, &models.Script{
			ContentItemID: item.ID,
			Status:        status,
		}))
	}

	settings, err := f.repo.GetConveyorSettings(ctx, "default")
	require.NoError(t, err)

	got := f.scheduler.effectiveThreshold(ctx, settings)
	assert.Equal(t, settings.MinScoreThreshold, got)
}
