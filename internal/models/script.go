package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ScriptStatus represents the current state of a generation attempt
type ScriptStatus string

const (
	ScriptStatusPending     ScriptStatus = "pending"
	ScriptStatusInProgress  ScriptStatus = "in_progress"
	ScriptStatusCompleted   ScriptStatus = "completed"
	ScriptStatusHumanReview ScriptStatus = "human_review"
	ScriptStatusApproved    ScriptStatus = "approved"
	ScriptStatusRejected    ScriptStatus = "rejected"
	// ScriptStatusFailed marks infrastructure failures, distinct from
	// ScriptStatusRejected which is a model decision.
	ScriptStatusFailed ScriptStatus = "failed"
)

// Terminal outcomes recorded alongside the status
const (
	OutcomeMaxIterationsReached = "max_iterations_reached"
)

// IsTerminal returns true once the controller will no longer touch the script
func (s ScriptStatus) IsTerminal() bool {
	switch s {
	case ScriptStatusApproved, ScriptStatusRejected, ScriptStatusHumanReview, ScriptStatusFailed:
		return true
	}
	return false
}

// Script represents one full generation attempt for a content item
type Script struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	ContentItemID    uint         `gorm:"index;not null" json:"content_item_id"`
	ContentItem      *ContentItem `gorm:"foreignKey:ContentItemID" json:"content_item,omitempty"`
	Status           ScriptStatus `gorm:"index;default:'pending'" json:"status"`
	Outcome          string       `json:"outcome"` // e.g. max_iterations_reached
	CurrentIteration int          `gorm:"default:0" json:"current_iteration"`
	MaxIterations    int          `gorm:"default:3" json:"max_iterations"`
	FinalScore       *int         `json:"final_score"` // Nullable until terminal
	TotalCostUSD     float64      `json:"total_cost_usd"`
	ErrorMessage     string       `json:"error_message"`
	Iterations       []Iteration  `gorm:"foreignKey:ScriptID" json:"iterations,omitempty"`
	CreatedAt        time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// Iteration is one Scriptwriter→Editor round within a script's lifecycle.
// Immutable once created: a revision produces a new Iteration, never an
// edit of a prior one.
type Iteration struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ScriptID  uint           `gorm:"index;not null" json:"script_id"`
	Version   int            `gorm:"not null" json:"version"` // 1-based, strictly increasing, no gaps
	Draft     *ScriptVersion `gorm:"foreignKey:IterationID" json:"draft,omitempty"`
	Review    *Review        `gorm:"foreignKey:IterationID" json:"review,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// Scene is one scene of a script version
type Scene struct {
	Number      int     `json:"number"` // Contiguous, starting at 1
	Narration   string  `json:"narration"`
	Visual      string  `json:"visual"`
	DurationSec float64 `json:"duration_sec"`
}

// ScriptVersion is the Scriptwriter's output for one iteration
type ScriptVersion struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	IterationID  uint      `gorm:"index;not null" json:"iteration_id"`
	ScenesJSON   string    `gorm:"type:text;not null" json:"-"`
	TotalSec     float64   `json:"total_sec"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Scenes decodes the ordered scene list
func (v *ScriptVersion) Scenes() ([]Scene, error) {
	var scenes []Scene
	if err := json.Unmarshal([]byte(v.ScenesJSON), &scenes); err != nil {
		return nil, fmt.Errorf("failed to decode scenes: %w", err)
	}
	return scenes, nil
}

// SetScenes encodes the ordered scene list
func (v *ScriptVersion) SetScenes(scenes []Scene) error {
	data, err := json.Marshal(scenes)
	if err != nil {
		return fmt.Errorf("failed to encode scenes: %w", err)
	}
	v.ScenesJSON = string(data)
	return nil
}
