package models

import (
	"time"
)

// ContentStatus represents the lifecycle state of a content item
type ContentStatus string

const (
	ContentStatusNew       ContentStatus = "new"
	ContentStatusScored    ContentStatus = "scored"
	ContentStatusSelected  ContentStatus = "selected"
	ContentStatusUsed      ContentStatus = "used"
	ContentStatusDismissed ContentStatus = "dismissed"
)

// ContentItem represents a news article or social post eligible for script generation
type ContentItem struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	ExternalID  string        `gorm:"uniqueIndex;not null" json:"external_id"` // Hash of source + URL
	Title       string        `gorm:"not null" json:"title"`
	Body        string        `gorm:"type:text" json:"body"`
	URL         string        `json:"url"`
	SourceType  string        `gorm:"index;not null" json:"source_type"` // rss, instagram, manual
	SourceName  string        `json:"source_name"`
	Keywords    StringSlice   `gorm:"type:json" json:"keywords"`
	RawData     JSON          `gorm:"type:json" json:"raw_data"`
	Score       float64       `json:"score"`    // Relevance score (0-100) assigned by the scoring pass
	Analysis    string        `json:"analysis"` // Model reasoning behind the score
	Status      ContentStatus `gorm:"index;default:'new'" json:"status"`
	PublishedAt time.Time     `json:"published_at"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsFresh returns true if the item was published within the given window
func (c *ContentItem) IsFresh(window time.Duration) bool {
	return time.Since(c.PublishedAt) <= window
}
