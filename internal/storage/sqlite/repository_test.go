package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/internal/storage"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedItem(t *testing.T, repo *Repository, score float64, status models.ContentStatus) *models.ContentItem {
	t.Helper()
	item := &models.ContentItem{
		ExternalID:  fmt.Sprintf("ext-%d-%f", time.Now().UnixNano(), score),
		Title:       "Test item",
		Body:        "Body text",
		SourceType:  "rss",
		SourceName:  "test-feed",
		Score:       score,
		Status:      status,
		PublishedAt: time.Now(),
	}
	require.NoError(t, repo.CreateContentItem(context.Background(), item))
	return item
}

func TestContentItemCRUD(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	item := seedItem(t, repo, 75, models.ContentStatusNew)

	got, err := repo.GetContentItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Title, got.Title)

	byExt, err := repo.GetContentItemByExternalID(ctx, item.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, byExt.ID)

	got.Status = models.ContentStatusScored
	require.NoError(t, repo.UpdateContentItem(ctx, got))

	scored := models.ContentStatusScored
	items, err := repo.ListContentItems(ctx, storage.ContentFilter{Status: &scored})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestListContentItemsOrderAndFilter(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	seedItem(t, repo, 40, models.ContentStatusScored)
	seedItem(t, repo, 90, models.ContentStatusScored)
	seedItem(t, repo, 65, models.ContentStatusScored)

	minScore := 50.0
	scored := models.ContentStatusScored
	items, err := repo.ListContentItems(ctx, storage.ContentFilter{
		Status:    &scored,
		MinScore:  &minScore,
		OrderBy:   "score",
		OrderDesc: true,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 90.0, items[0].Score)
	assert.Equal(t, 65.0, items[1].Score)
}

func TestScriptWithIterations(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	item := seedItem(t, repo, 80, models.ContentStatusSelected)
	script := &models.Script{ContentItemID: item.ID, Status: models.ScriptStatusPending}
	require.NoError(t, repo.CreateScript(ctx, script))

	// Two iterations: a revision round then an approval
	for version := 1; version <= 2; version++ {
		draft := &models.ScriptVersion{TotalSec: 45, InputTokens: 100, OutputTokens: 200, CostUSD: 0.01}
		require.NoError(t, draft.SetScenes([]models.Scene{
			{Number: 1, Narration: "n", Visual: "v", DurationSec: 45},
		}))
		iteration := &models.Iteration{ScriptID: script.ID, Version: version, Draft: draft}
		require.NoError(t, repo.CreateIteration(ctx, iteration))
		require.NotZero(t, iteration.ID)
		require.NotZero(t, iteration.Draft.ID, "draft should be persisted with the iteration")

		verdict := models.VerdictNeedsRevision
		if version == 2 {
			verdict = models.VerdictApproved
		}
		require.NoError(t, repo.SaveReview(ctx, &models.Review{
			IterationID: iteration.ID,
			Score:       5 + version*2,
			Verdict:     verdict,
			Comment:     "review comment",
		}))
	}

	iterations, err := repo.GetIterations(ctx, script.ID)
	require.NoError(t, err)
	require.Len(t, iterations, 2)
	assert.Equal(t, 1, iterations[0].Version)
	assert.Equal(t, 2, iterations[1].Version)
	require.NotNil(t, iterations[0].Draft)
	require.NotNil(t, iterations[0].Review)
	assert.Equal(t, models.VerdictNeedsRevision, iterations[0].Review.Verdict)
	assert.Equal(t, models.VerdictApproved, iterations[1].Review.Verdict)

	scenes, err := iterations[1].Draft.Scenes()
	require.NoError(t, err)
	require.Len(t, scenes, 1)
}

func TestGetScriptPreloadsContentItem(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	item := seedItem(t, repo, 70, models.ContentStatusSelected)
	script := &models.Script{ContentItemID: item.ID}
	require.NoError(t, repo.CreateScript(ctx, script))

	got, err := repo.GetScriptByID(ctx, script.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ContentItem)
	assert.Equal(t, item.ID, got.ContentItem.ID)
}

func TestRecentTerminalScripts(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	statuses := []models.ScriptStatus{
		models.ScriptStatusApproved,
		models.ScriptStatusRejected,
		models.ScriptStatusInProgress, // not terminal, must be excluded
		models.ScriptStatusHumanReview,
	}
	for _, status := range statuses {
		item := seedItem(t, repo, 60, models.ContentStatusUsed)
		require.NoError(t, repo.CreateScript(ctx, &models.Script{
			ContentItemID: item.ID,
			Status:        status,
		}))
	}

	scripts, err := repo.RecentTerminalScripts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, scripts, 3)
	for _, s := range scripts {
		assert.True(t, s.Status.IsTerminal())
		assert.NotNil(t, s.ContentItem)
	}
}

func TestSettingsDefaultsCreatedOnFirstRead(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	ai, err := repo.GetAISettings(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 3, ai.MaxIterations)
	assert.Equal(t, 7, ai.MinApprovalScore)
	assert.Equal(t, 60, ai.TargetDurationSec)

	conv, err := repo.GetConveyorSettings(ctx, "default")
	require.NoError(t, err)
	assert.False(t, conv.Enabled)
	assert.Equal(t, 5, conv.DailyLimit)
	assert.Equal(t, 10.0, conv.MonthlyBudgetUSD)

	// Second read returns the same row, not a new one
	again, err := repo.GetAISettings(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, ai.ID, again.ID)
}

func TestConveyorStatsIncrementAndLazyReset(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	day1 := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	nextMonth := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	stats, err := repo.IncrementConveyorStats(ctx, "default", 2, 1.5, day1)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ItemsToday)
	assert.InDelta(t, 1.5, stats.MonthCostUSD, 1e-9)
	assert.Equal(t, "2025-03-10", stats.DayKey)

	stats, err = repo.IncrementConveyorStats(ctx, "default", 1, 0.5, day1)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ItemsToday)
	assert.InDelta(t, 2.0, stats.MonthCostUSD, 1e-9)

	// Next day: daily counter resets, monthly cost survives
	stats, err = repo.GetConveyorStats(ctx, "default", day2)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ItemsToday)
	assert.Equal(t, "2025-03-11", stats.DayKey)
	assert.InDelta(t, 2.0, stats.MonthCostUSD, 1e-9)

	// Next month: cost counter resets too
	stats, err = repo.GetConveyorStats(ctx, "default", nextMonth)
	require.NoError(t, err)
	assert.InDelta(t, 0, stats.MonthCostUSD, 1e-9)
	assert.Equal(t, "2025-04", stats.MonthKey)
}

func TestEventsListAndPrune(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, repo.SaveEvent(ctx, &models.Event{
			Type:      models.EventStage,
			ItemID:    7,
			Timestamp: time.Now(),
			Data:      models.JSON{"stage": float64(i)},
		}))
	}
	// Events for another item must be untouched by the prune below
	require.NoError(t, repo.SaveEvent(ctx, &models.Event{
		Type:      models.EventStage,
		ItemID:    8,
		Timestamp: time.Now(),
	}))

	events, err := repo.ListEvents(ctx, 7, 5)
	require.NoError(t, err)
	require.Len(t, events, 5)
	// Emission order: oldest of the kept window first
	assert.Equal(t, float64(5), events[0].Data["stage"])
	assert.Equal(t, float64(9), events[4].Data["stage"])

	require.NoError(t, repo.PruneEvents(ctx, 7, 3))

	events, err = repo.ListEvents(ctx, 7, 100)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	other, err := repo.ListEvents(ctx, 8, 100)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
