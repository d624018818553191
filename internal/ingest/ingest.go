// Package ingest pulls raw content into the pipeline. Ingestion is a
// thin collaborator: it creates content items and nothing else.
package ingest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/internal/storage"
	"github.com/shortform-agent/pkg/logger"
)

// Source defines the interface for content sources
type Source interface {
	// Name returns the unique name of this source
	Name() string

	// Type returns the source type (rss, instagram, manual)
	Type() string

	// Fetch retrieves content items from the source
	Fetch(ctx context.Context) ([]*models.ContentItem, error)

	// HealthCheck verifies the source is accessible
	HealthCheck(ctx context.Context) error
}

// ExternalID creates a unique ID for an item based on source and URL
func ExternalID(sourceType, url string) string {
	data := fmt.Sprintf("%s:%s", sourceType, url)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:16])
}

// Ingestor fetches from all registered sources, deduplicates and persists
type Ingestor struct {
	sources []Source
	repo    storage.Repository
	log     *logger.Logger
}

// NewIngestor creates an ingestor
func NewIngestor(repo storage.Repository, log *logger.Logger) *Ingestor {
	return &Ingestor{
		repo: repo,
		log:  log.WithComponent("ingest"),
	}
}

// Register adds a source
func (i *Ingestor) Register(source Source) {
	i.sources = append(i.sources, source)
}

// Result summarizes one ingestion run
type Result struct {
	Fetched  int
	Saved    int
	Skipped  int
	Errors   []error
	Duration time.Duration
}

// Run fetches from every source concurrently, then saves items not yet known
func (i *Ingestor) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	type fetchResult struct {
		items []*models.ContentItem
		err   error
	}

	results := make(chan fetchResult, len(i.sources))
	for _, source := range i.sources {
		go func(s Source) {
			items, err := s.Fetch(ctx)
			results <- fetchResult{items: items, err: err}
		}(source)
	}

	var fetched []*models.ContentItem
	for range i.sources {
		r := <-results
		if r.err != nil {
			result.Errors = append(result.Errors, r.err)
			continue
		}
		fetched = append(fetched, r.items...)
	}
	result.Fetched = len(fetched)

	seen := make(map[string]bool)
	for _, item := range fetched {
		if item.ExternalID == "" {
			item.ExternalID = ExternalID(item.SourceType, item.URL)
		}
		if seen[item.ExternalID] {
			result.Skipped++
			continue
		}
		seen[item.ExternalID] = true

		if existing, _ := i.repo.GetContentItemByExternalID(ctx, item.ExternalID); existing != nil {
			result.Skipped++
			continue
		}

		item.Status = models.ContentStatusNew
		if err := i.repo.CreateContentItem(ctx, item); err != nil {
			i.log.Warn().Err(err).Str("title", item.Title).Msg("Failed to save content item")
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Saved++
	}

	result.Duration = time.Since(start)

	i.log.Info().
		Int("fetched", result.Fetched).
		Int("saved", result.Saved).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("Ingestion completed")

	return result, nil
}
