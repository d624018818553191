package models

import (
	"time"
)

// EventType classifies a pipeline lifecycle event
type EventType string

const (
	EventItemStarted   EventType = "item:started"
	EventItemCompleted EventType = "item:completed"
	EventItemFailed    EventType = "item:failed"
	EventStage         EventType = "stage"
	EventThinking      EventType = "thinking"
	EventError         EventType = "error"
)

// Event is a lifecycle/progress event emitted by the pipeline and fanned
// out to live subscribers. The last N events per item are persisted for
// replay to late-joining observers.
type Event struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Type      EventType `gorm:"size:30;index;not null" json:"type"`
	UserID    string    `gorm:"size:64;index;default:'default'" json:"userId"`
	ItemID    uint      `gorm:"index" json:"itemId"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	Data      JSON      `gorm:"type:json" json:"data"`
}
