// Package sse implements the event stream client: a long-lived
// subscription that backfills persisted history on every (re)connect and
// retries with a fixed delay when the stream drops.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/pkg/logger"
)

// Handler receives each decoded event
type Handler func(event *models.Event)

// Client subscribes to a server's event stream
type Client struct {
	baseURL        string
	httpClient     *http.Client
	reconnectDelay time.Duration
	historyLimit   int
	log            *logger.Logger
}

// NewClient creates an SSE client for the given server base URL
func NewClient(baseURL string, log *logger.Logger) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{},
		reconnectDelay: 3 * time.Second,
		historyLimit:   50,
		log:            log.WithComponent("sse"),
	}
}

// Watch follows events for one item until ctx is canceled. On every
// (re)connect it first fetches bounded history to backfill missed
// events, then subscribes live. A dropped stream reconnects after a
// fixed delay.
func (c *Client) Watch(ctx context.Context, itemID uint, handler Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.backfill(ctx, itemID, handler); err != nil {
			c.log.Warn().Err(err).Msg("History backfill failed")
		}

		err := c.stream(ctx, itemID, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.log.Warn().Err(err).Msg("Stream dropped, reconnecting")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

// backfill fetches persisted history before subscribing live
func (c *Client) backfill(ctx context.Context, itemID uint, handler Handler) error {
	url := fmt.Sprintf("%s/events/history?item=%d&limit=%d", c.baseURL, itemID, c.historyLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("history request returned %d", resp.StatusCode)
	}

	var history []*models.Event
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return fmt.Errorf("failed to decode history: %w", err)
	}

	for _, event := range history {
		handler(event)
	}
	return nil
}

// stream reads the live SSE stream until it terminates
func (c *Client) stream(ctx context.Context, itemID uint, handler Handler) error {
	url := fmt.Sprintf("%s/events?item=%d", c.baseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream request returned %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event models.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			c.log.Warn().Err(err).Str("line", line).Msg("Failed to decode event")
			continue
		}
		handler(&event)
	}

	return scanner.Err()
}
