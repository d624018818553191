package conveyor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shortform-agent/internal/agent"
	"github.com/shortform-agent/internal/ai"
	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/pkg/logger"
)

// Scorer assigns a relevance score to new content items so the conveyor
// threshold gate has something to gate
type Scorer struct {
	aiClient *ai.Client
	log      *logger.Logger
}

// NewScorer creates a new item scorer
func NewScorer(aiClient *ai.Client, log *logger.Logger) *Scorer {
	return &Scorer{
		aiClient: aiClient,
		log:      log.WithComponent("scorer"),
	}
}

// ItemScore is the model's assessment of one content item
type ItemScore struct {
	Score    float64 `json:"score"`
	Analysis string  `json:"analysis"`
}

// Score rates a single content item on its short-form potential
func (s *Scorer) Score(ctx context.Context, item *models.ContentItem) (*ItemScore, error) {
	userPrompt := fmt.Sprintf(ai.ItemScoringUserPrompt,
		item.Title,
		item.Body,
		item.SourceName,
	)

	resp, err := s.aiClient.CompleteJSON(ctx, ai.ItemScoringSystemPrompt, userPrompt, nil)
	if err != nil {
		return nil, err
	}

	var score ItemScore
	if err := json.Unmarshal([]byte(agent.ExtractJSON(resp.Text)), &score); err != nil {
		s.log.Error().
			Err(err).
			Str("response", resp.Text).
			Msg("Failed to parse scoring response")
		return nil, &agent.ValidationError{Reason: fmt.Sprintf("malformed scoring JSON: %v", err)}
	}

	return &score, nil
}
