package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Verdict is the Editor's categorical decision driving control flow
type Verdict string

const (
	VerdictApproved      Verdict = "approved"
	VerdictNeedsRevision Verdict = "needs_revision"
	VerdictRejected      Verdict = "rejected"
)

// Valid reports whether the verdict is one of the closed three-value set
func (v Verdict) Valid() bool {
	switch v {
	case VerdictApproved, VerdictNeedsRevision, VerdictRejected:
		return true
	}
	return false
}

// CommentType classifies a per-scene editor comment
type CommentType string

const (
	CommentPositive   CommentType = "positive"
	CommentNegative   CommentType = "negative"
	CommentSuggestion CommentType = "suggestion"
	CommentInfo       CommentType = "info"
)

// Valid reports whether the comment type is known
func (t CommentType) Valid() bool {
	switch t {
	case CommentPositive, CommentNegative, CommentSuggestion, CommentInfo:
		return true
	}
	return false
}

// Label returns the human-readable label used when feeding comments back
// into the Scriptwriter prompt
func (t CommentType) Label() string {
	switch t {
	case CommentPositive:
		return "KEEP"
	case CommentNegative:
		return "FIX"
	case CommentSuggestion:
		return "CONSIDER"
	default:
		return "NOTE"
	}
}

// SceneComment is a typed editor comment referencing one scene
type SceneComment struct {
	SceneNumber int         `json:"scene_number"`
	Type        CommentType `json:"type"`
	Comment     string      `json:"comment"`
}

// SceneComments stores the comment list as JSON
type SceneComments []SceneComment

func (c SceneComments) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *SceneComments) Scan(value interface{}) error {
	data, err := scanBytes(value)
	if err != nil {
		return err
	}
	if data == nil {
		*c = nil
		return nil
	}
	return json.Unmarshal(data, c)
}

// Review is the Editor's output for one iteration
type Review struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	IterationID   uint          `gorm:"index;not null" json:"iteration_id"`
	Score         int           `gorm:"not null" json:"score"` // 1-10
	Verdict       Verdict       `gorm:"size:20;not null" json:"verdict"`
	Comment       string        `gorm:"type:text" json:"comment"`
	SceneComments SceneComments `gorm:"type:json" json:"scene_comments"`
	InputTokens   int           `json:"input_tokens"`
	OutputTokens  int           `json:"output_tokens"`
	CostUSD       float64       `json:"cost_usd"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// ConsistentBanding reports whether verdict and score agree: an approval is
// expected to carry a high score and a rejection a low one. The check is
// soft because the editor is a probabilistic generator; callers log a
// warning on mismatch and trust the verdict.
func (r *Review) ConsistentBanding() bool {
	switch r.Verdict {
	case VerdictApproved:
		return r.Score >= 7
	case VerdictRejected:
		return r.Score <= 4
	}
	return true
}
