package storage

import (
	"context"
	"time"

	"github.com/shortform-agent/internal/models"
)

// Repository defines the interface for data persistence. The orchestrator
// consumes storage exclusively through this interface.
type Repository interface {
	// Content item operations
	CreateContentItem(ctx context.Context, item *models.ContentItem) error
	GetContentItemByID(ctx context.Context, id uint) (*models.ContentItem, error)
	GetContentItemByExternalID(ctx context.Context, externalID string) (*models.ContentItem, error)
	ListContentItems(ctx context.Context, filter ContentFilter) ([]*models.ContentItem, error)
	UpdateContentItem(ctx context.Context, item *models.ContentItem) error

	// Script operations
	CreateScript(ctx context.Context, script *models.Script) error
	GetScriptByID(ctx context.Context, id uint) (*models.Script, error)
	ListScripts(ctx context.Context, filter ScriptFilter) ([]*models.Script, error)
	UpdateScript(ctx context.Context, script *models.Script) error
	// RecentTerminalScripts returns the newest terminal scripts with their
	// content items preloaded, newest first. Used for the learned threshold.
	RecentTerminalScripts(ctx context.Context, limit int) ([]*models.Script, error)

	// Iteration operations. Iterations are immutable once created; a
	// revision creates a new one.
	CreateIteration(ctx context.Context, iteration *models.Iteration) error
	GetIterations(ctx context.Context, scriptID uint) ([]*models.Iteration, error)
	SaveReview(ctx context.Context, review *models.Review) error

	// Settings operations
	GetAISettings(ctx context.Context, userID string) (*models.AISettings, error)
	SaveAISettings(ctx context.Context, settings *models.AISettings) error
	GetConveyorSettings(ctx context.Context, userID string) (*models.ConveyorSettings, error)
	SaveConveyorSettings(ctx context.Context, settings *models.ConveyorSettings) error

	// Conveyor counter operations. GetConveyorStats applies the lazy
	// day/month boundary reset; IncrementConveyorStats is a transactional
	// read-modify-write so the budget gate stays an upper bound when two
	// scripts complete at once.
	GetConveyorStats(ctx context.Context, userID string, now time.Time) (*models.ConveyorStats, error)
	IncrementConveyorStats(ctx context.Context, userID string, items int, costUSD float64, now time.Time) (*models.ConveyorStats, error)

	// Event operations
	SaveEvent(ctx context.Context, event *models.Event) error
	// ListEvents returns up to limit most recent events for the item, in
	// emission order (oldest first).
	ListEvents(ctx context.Context, itemID uint, limit int) ([]*models.Event, error)
	// PruneEvents keeps only the newest keep events per item
	PruneEvents(ctx context.Context, itemID uint, keep int) error

	// Maintenance
	Close() error
	Migrate() error
}

// ContentFilter defines filtering options for content items
type ContentFilter struct {
	Status    *models.ContentStatus
	MinScore  *float64
	Limit     int
	Offset    int
	OrderBy   string // "score", "published_at", "created_at"
	OrderDesc bool
}

// ScriptFilter defines filtering options for scripts
type ScriptFilter struct {
	Status        *models.ScriptStatus
	ContentItemID *uint
	Limit         int
	Offset        int
	OrderBy       string
	OrderDesc     bool
}

// DefaultContentFilter returns a filter with sensible defaults
func DefaultContentFilter() ContentFilter {
	return ContentFilter{
		Limit:     50,
		OrderBy:   "score",
		OrderDesc: true,
	}
}

// DefaultScriptFilter returns a filter with sensible defaults
func DefaultScriptFilter() ScriptFilter {
	return ScriptFilter{
		Limit:     50,
		OrderBy:   "created_at",
		OrderDesc: true,
	}
}
