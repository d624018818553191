package models

import (
	"time"
)

// AISettings is process-wide generation configuration, one row per user.
// A running iteration captures a snapshot at invocation; later edits never
// alter an in-flight generation.
type AISettings struct {
	ID                   uint        `gorm:"primaryKey" json:"id"`
	UserID               string      `gorm:"uniqueIndex;not null;default:'default'" json:"user_id"`
	Provider             string      `gorm:"default:'anthropic'" json:"provider"`
	ScriptwriterPrompt   string      `gorm:"type:text" json:"scriptwriter_prompt"` // Custom fragment appended to the base instruction
	EditorPrompt         string      `gorm:"type:text" json:"editor_prompt"`
	StyleExamples        StringSlice `gorm:"type:json" json:"style_examples"` // Uploaded example scripts
	MaxIterations        int         `gorm:"default:3" json:"max_iterations"`
	MinApprovalScore     int         `gorm:"default:7" json:"min_approval_score"`
	AutoEscalate         bool        `gorm:"default:false" json:"auto_escalate"` // Route approvals to human review
	TargetDurationSec    int         `gorm:"default:60" json:"target_duration_sec"`
	CreatedAt            time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// ConveyorSettings is the scheduler configuration, one row per user
type ConveyorSettings struct {
	ID                uint        `gorm:"primaryKey" json:"id"`
	UserID            string      `gorm:"uniqueIndex;not null;default:'default'" json:"user_id"`
	Enabled           bool        `gorm:"default:false" json:"enabled"`
	DailyLimit        int         `gorm:"default:5" json:"daily_limit"`
	MonthlyBudgetUSD  float64     `gorm:"default:10" json:"monthly_budget_usd"`
	MinScoreThreshold float64     `gorm:"default:60" json:"min_score_threshold"` // Static fallback until enough history exists
	AvoidedTopics     StringSlice `gorm:"type:json" json:"avoided_topics"`
	CreatedAt         time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// ConveyorStats holds the running counters behind the daily and monthly
// gates. Counters reset lazily on day/month boundaries, checked on each
// scheduling decision rather than by a cron.
type ConveyorStats struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        string    `gorm:"uniqueIndex;not null;default:'default'" json:"user_id"`
	ItemsToday    int       `json:"items_today"`
	DayKey        string    `gorm:"size:10" json:"day_key"` // YYYY-MM-DD the daily counter belongs to
	MonthCostUSD  float64   `json:"month_cost_usd"`
	MonthKey      string    `gorm:"size:7" json:"month_key"` // YYYY-MM the cost counter belongs to
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DayKeyFor formats the daily counter key for a point in time
func DayKeyFor(t time.Time) string {
	return t.Format("2006-01-02")
}

// MonthKeyFor formats the monthly counter key for a point in time
func MonthKeyFor(t time.Time) string {
	return t.Format("2006-01")
}
