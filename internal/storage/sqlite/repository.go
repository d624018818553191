package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.ContentItem{},
		&models.Script{},
		&models.Iteration{},
		&models.ScriptVersion{},
		&models.Review{},
		&models.AISettings{},
		&models.ConveyorSettings{},
		&models.ConveyorStats{},
		&models.Event{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Content item operations

func (r *Repository) CreateContentItem(ctx context.Context, item *models.ContentItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) GetContentItemByID(ctx context.Context, id uint) (*models.ContentItem, error) {
	var item models.ContentItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) GetContentItemByExternalID(ctx context.Context, externalID string) (*models.ContentItem, error) {
	var item models.ContentItem
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) ListContentItems(ctx context.Context, filter storage.ContentFilter) ([]*models.ContentItem, error) {
	var items []*models.ContentItem
	query := r.db.WithContext(ctx).Model(&models.ContentItem{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.MinScore != nil {
		query = query.Where("score >= ?", *filter.MinScore)
	}

	// Ordering
	orderCol := "score"
	if filter.OrderBy != "" {
		orderCol = filter.OrderBy
	}
	if filter.OrderDesc {
		query = query.Order(orderCol + " DESC")
	} else {
		query = query.Order(orderCol + " ASC")
	}

	// Pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) UpdateContentItem(ctx context.Context, item *models.ContentItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// Script operations

func (r *Repository) CreateScript(ctx context.Context, script *models.Script) error {
	return r.db.WithContext(ctx).Create(script).Error
}

func (r *Repository) GetScriptByID(ctx context.Context, id uint) (*models.Script, error) {
	var script models.Script
	if err := r.db.WithContext(ctx).Preload("ContentItem").First(&script, id).Error; err != nil {
		return nil, err
	}
	return &script, nil
}

func (r *Repository) ListScripts(ctx context.Context, filter storage.ScriptFilter) ([]*models.Script, error) {
	var scripts []*models.Script
	query := r.db.WithContext(ctx).Model(&models.Script{}).Preload("ContentItem")

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ContentItemID != nil {
		query = query.Where("content_item_id = ?", *filter.ContentItemID)
	}

	// Ordering
	orderCol := "created_at"
	if filter.OrderBy != "" {
		orderCol = filter.OrderBy
	}
	if filter.OrderDesc {
		query = query.Order(orderCol + " DESC")
	} else {
		query = query.Order(orderCol + " ASC")
	}

	// Pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&scripts).Error; err != nil {
		return nil, err
	}
	return scripts, nil
}

func (r *Repository) UpdateScript(ctx context.Context, script *models.Script) error {
	return r.db.WithContext(ctx).Save(script).Error
}

func (r *Repository) RecentTerminalScripts(ctx context.Context, limit int) ([]*models.Script, error) {
	var scripts []*models.Script
	terminal := []models.ScriptStatus{
		models.ScriptStatusApproved,
		models.ScriptStatusRejected,
		models.ScriptStatusHumanReview,
		models.ScriptStatusFailed,
	}
	query := r.db.WithContext(ctx).
		Where("status IN ?", terminal).
		Preload("ContentItem").
		Order("updated_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&scripts).Error; err != nil {
		return nil, err
	}
	return scripts, nil
}

// Iteration operations

func (r *Repository) CreateIteration(ctx context.Context, iteration *models.Iteration) error {
	// Create cascades to the attached draft via gorm association handling
	return r.db.WithContext(ctx).Create(iteration).Error
}

func (r *Repository) GetIterations(ctx context.Context, scriptID uint) ([]*models.Iteration, error) {
	var iterations []*models.Iteration
	if err := r.db.WithContext(ctx).
		Where("script_id = ?", scriptID).
		Preload("Draft").
		Preload("Review").
		Order("version ASC").
		Find(&iterations).Error; err != nil {
		return nil, err
	}
	return iterations, nil
}

func (r *Repository) SaveReview(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Save(review).Error
}

// Settings operations

func (r *Repository) GetAISettings(ctx context.Context, userID string) (*models.AISettings, error) {
	var settings models.AISettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// First read creates the default row
		settings = models.AISettings{
			UserID:            userID,
			Provider:          "anthropic",
			MaxIterations:     3,
			MinApprovalScore:  7,
			TargetDurationSec: 60,
		}
		if err := r.db.WithContext(ctx).Create(&settings).Error; err != nil {
			return nil, err
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *Repository) SaveAISettings(ctx context.Context, settings *models.AISettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}

func (r *Repository) GetConveyorSettings(ctx context.Context, userID string) (*models.ConveyorSettings, error) {
	var settings models.ConveyorSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.ConveyorSettings{
			UserID:            userID,
			DailyLimit:        5,
			MonthlyBudgetUSD:  10,
			MinScoreThreshold: 60,
		}
		if err := r.db.WithContext(ctx).Create(&settings).Error; err != nil {
			return nil, err
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *Repository) SaveConveyorSettings(ctx context.Context, settings *models.ConveyorSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}

// Conveyor counter operations

func (r *Repository) GetConveyorStats(ctx context.Context, userID string, now time.Time) (*models.ConveyorStats, error) {
	var stats *models.ConveyorStats
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := loadStats(tx, userID)
		if err != nil {
			return err
		}
		if resetBoundaries(s, now) {
			if err := tx.Save(s).Error; err != nil {
				return err
			}
		}
		stats = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *Repository) IncrementConveyorStats(ctx context.Context, userID string, items int, costUSD float64, now time.Time) (*models.ConveyorStats, error) {
	var stats *models.ConveyorStats
	// Read-modify-write inside one transaction: concurrent completions
	// serialize here so a stale budget check cannot double-spend.
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := loadStats(tx, userID)
		if err != nil {
			return err
		}
		resetBoundaries(s, now)
		s.ItemsToday += items
		s.MonthCostUSD += costUSD
		if err := tx.Save(s).Error; err != nil {
			return err
		}
		stats = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// loadStats fetches or creates the per-user counter row
func loadStats(tx *gorm.DB, userID string) (*models.ConveyorStats, error) {
	var stats models.ConveyorStats
	err := tx.Where("user_id = ?", userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = models.ConveyorStats{UserID: userID}
		if err := tx.Create(&stats).Error; err != nil {
			return nil, err
		}
		return &stats, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// resetBoundaries applies the lazy day/month counter reset. Returns true
// if anything changed.
func resetBoundaries(stats *models.ConveyorStats, now time.Time) bool {
	changed := false
	if day := models.DayKeyFor(now); stats.DayKey != day {
		stats.DayKey = day
		stats.ItemsToday = 0
		changed = true
	}
	if month := models.MonthKeyFor(now); stats.MonthKey != month {
		stats.MonthKey = month
		stats.MonthCostUSD = 0
		changed = true
	}
	return changed
}

// Event operations

func (r *Repository) SaveEvent(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *Repository) ListEvents(ctx context.Context, itemID uint, limit int) ([]*models.Event, error) {
	// Fetch the newest N, then return them oldest-first to preserve
	// emission order for replay.
	var events []*models.Event
	query := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func (r *Repository) PruneEvents(ctx context.Context, itemID uint, keep int) error {
	if keep <= 0 {
		return nil
	}
	// Delete everything older than the newest `keep` events for the item
	sub := r.db.Model(&models.Event{}).
		Select("id").
		Where("item_id = ?", itemID).
		Order("id DESC").
		Limit(keep)
	return r.db.WithContext(ctx).
		Where("item_id = ? AND id NOT IN (?)", itemID, sub).
		Delete(&models.Event{}).Error
}

// Ensure Repository implements storage.Repository
var _ storage.Repository = (*Repository)(nil)
