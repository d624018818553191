package rss

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/shortform-agent/internal/config"
	"github.com/shortform-agent/internal/ingest"
	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/pkg/logger"
)

// Source implements ingest.Source for RSS feeds
type Source struct {
	name   string
	url    string
	maxAge time.Duration
	parser *gofeed.Parser
	log    *logger.Logger
}

// New creates a new RSS source for a single feed
func New(feed config.RSSFeed, maxAge time.Duration, log *logger.Logger) *Source {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &Source{
		name:   feed.Name,
		url:    feed.URL,
		maxAge: maxAge,
		parser: gofeed.NewParser(),
		log:    log.WithComponent("rss"),
	}
}

// NewMultiple creates RSS sources from config
func NewMultiple(cfg config.RSSConfig, log *logger.Logger) []*Source {
	maxAge, err := time.ParseDuration(cfg.MaxAge)
	if err != nil {
		maxAge = 7 * 24 * time.Hour
	}
	sources := make([]*Source, 0, len(cfg.Feeds))
	for _, feed := range cfg.Feeds {
		sources = append(sources, New(feed, maxAge, log))
	}
	return sources
}

// Name returns the source name
func (s *Source) Name() string {
	return s.name
}

// Type returns "rss"
func (s *Source) Type() string {
	return "rss"
}

// Fetch retrieves content items from the RSS feed
func (s *Source) Fetch(ctx context.Context) ([]*models.ContentItem, error) {
	s.log.Debug().Str("url", s.url).Msg("Fetching RSS feed")

	feed, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed %s: %w", s.name, err)
	}

	items := make([]*models.ContentItem, 0, len(feed.Items))

	for _, entry := range feed.Items {
		publishedAt := time.Now()
		if entry.PublishedParsed != nil {
			publishedAt = *entry.PublishedParsed
			if time.Since(publishedAt) > s.maxAge {
				continue
			}
		}

		body := entry.Content
		if body == "" {
			body = entry.Description
		}

		item := &models.ContentItem{
			ExternalID:  ingest.ExternalID("rss", entry.Link),
			Title:       cleanText(entry.Title),
			Body:        cleanText(body),
			URL:         entry.Link,
			SourceType:  "rss",
			SourceName:  s.name,
			Keywords:    extractKeywords(entry),
			PublishedAt: publishedAt,
			RawData: map[string]interface{}{
				"guid":      entry.GUID,
				"author":    entry.Author,
				"published": entry.Published,
				"updated":   entry.Updated,
			},
		}

		items = append(items, item)
	}

	s.log.Info().
		Int("count", len(items)).
		Str("feed", s.name).
		Msg("Fetched RSS items")

	return items, nil
}

// HealthCheck verifies the RSS feed is accessible
func (s *Source) HealthCheck(ctx context.Context) error {
	_, err := s.parser.ParseURLWithContext(s.url, ctx)
	return err
}

// cleanText removes HTML tags and extra whitespace
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "<br>", " ")
	text = strings.ReplaceAll(text, "<br/>", " ")
	text = strings.ReplaceAll(text, "<br />", " ")
	text = strings.ReplaceAll(text, "</p>", " ")
	text = strings.ReplaceAll(text, "<p>", "")

	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
		} else if r == '>' {
			inTag = false
		} else if !inTag {
			result.WriteRune(r)
		}
	}

	text = result.String()
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(text)
}

// extractKeywords extracts keywords from a feed entry
func extractKeywords(entry *gofeed.Item) []string {
	keywords := make([]string, 0)
	keywords = append(keywords, entry.Categories...)
	if entry.Author != nil && entry.Author.Name != "" {
		keywords = append(keywords, entry.Author.Name)
	}
	return keywords
}

// Ensure Source implements ingest.Source
var _ ingest.Source = (*Source)(nil)
