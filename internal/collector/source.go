// Package collector fetches external content through rate limiting, circuit
// breaking and primary/fallback source switching.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
)

// Page is one page of items from a content source, newest first, with an
// opaque cursor for the next page. An empty cursor means the listing is
// exhausted.
type Page struct {
	Items      []models.CollectedItem `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

// RawReply is one unprocessed node of a reply tree as the source reports it.
type RawReply struct {
	ID        string     `json:"id"`
	Author    string     `json:"author,omitempty"`
	Body      string     `json:"body,omitempty"`
	Score     int        `json:"score"`
	Kind      string     `json:"kind,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Children  []RawReply `json:"children,omitempty"`
}

// Source is one external content API.
type Source interface {
	// Name identifies the source for breakers, logs and metrics.
	Name() string
	// FetchPage returns one page for a group. cursor is opaque; empty
	// requests the first page.
	FetchPage(ctx context.Context, group, cursor string, limit int) (*Page, error)
	// FetchReplies returns the reply tree for an item.
	FetchReplies(ctx context.Context, itemID string, limit int, sort string) ([]RawReply, error)
}

// HTTPSourceConfig configures an HTTP-backed content source.
type HTTPSourceConfig struct {
	Name    string
	BaseURL string
	Headers map[string]string
	Timeout time.Duration
}

// HTTPSource implements Source over a JSON HTTP API.
type HTTPSource struct {
	config HTTPSourceConfig
	client *http.Client
}

// Compile-time check.
var _ Source = (*HTTPSource)(nil)

// NewHTTPSource creates an HTTP content source.
func NewHTTPSource(config HTTPSourceConfig) *HTTPSource {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{
		config: config,
		client: &http.Client{Timeout: timeout},
	}
}

// Name identifies the source.
func (s *HTTPSource) Name() string {
	return s.config.Name
}

func (s *HTTPSource) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for k, v := range s.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", s.config.Name, models.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: HTTP %d: %s", s.config.Name, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", s.config.Name, err)
	}
	return json.Unmarshal(body, out)
}

// FetchPage returns one page for a group.
func (s *HTTPSource) FetchPage(ctx context.Context, group, cursor string, limit int) (*Page, error) {
	url := fmt.Sprintf("%s/groups/%s/items?limit=%d", s.config.BaseURL, group, limit)
	if cursor != "" {
		url += "&cursor=" + cursor
	}

	var page Page
	if err := s.get(ctx, url, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FetchReplies returns the reply tree for an item.
func (s *HTTPSource) FetchReplies(ctx context.Context, itemID string, limit int, sort string) ([]RawReply, error) {
	url := fmt.Sprintf("%s/items/%s/replies?limit=%d&sort=%s", s.config.BaseURL, itemID, limit, sort)

	var replies []RawReply
	if err := s.get(ctx, url, &replies); err != nil {
		return nil, err
	}
	return replies, nil
}
