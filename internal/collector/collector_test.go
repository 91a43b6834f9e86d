package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/breaker"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/cache"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/pkg/clock"
)

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	name string

	mu         sync.Mutex
	pages      map[string]*Page // keyed by "group|cursor"
	failGroups map[string]bool
	failN      int // fail this many page fetches, then succeed
	pageCalls  int

	replies    map[string][]RawReply
	replyFail  map[string]bool
	replyCalls int
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) FetchPage(_ context.Context, group, cursor string, _ int) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageCalls++
	if s.failGroups[group] {
		return nil, errors.New(s.name + " unavailable")
	}
	if s.failN > 0 {
		s.failN--
		return nil, errors.New(s.name + " transient")
	}
	page, ok := s.pages[group+"|"+cursor]
	if !ok {
		return &Page{}, nil
	}
	return page, nil
}

func (s *fakeSource) FetchReplies(_ context.Context, itemID string, _ int, _ string) ([]RawReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replyCalls++
	if s.replyFail[itemID] {
		return nil, errors.New("replies unavailable")
	}
	return s.replies[itemID], nil
}

func (s *fakeSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageCalls
}

func item(id string, age time.Duration) models.CollectedItem {
	return models.CollectedItem{
		ExternalID: id,
		Title:      "title " + id,
		Body:       "body " + id,
		CreatedAt:  testNow.Add(-age),
	}
}

// steadyBreakerConfig never trips during tests that exercise retries.
func steadyBreakerConfig() *breaker.Config {
	return &breaker.Config{
		FailureThreshold:  1.0,
		MinimumThroughput: 1000,
		ResetTimeout:      time.Hour,
	}
}

func newTestCollector(primary, fallback Source, breakerConfig *breaker.Config, config *Config) (*Collector, *clock.MockClock) {
	mock := clock.NewMock(testNow)
	if config == nil {
		config = DefaultConfig()
	}
	config.MinDelay = 0
	config.RequestsPerMinute = 600000
	config.BackoffBase = time.Millisecond
	config.BackoffCap = 4 * time.Millisecond
	if breakerConfig == nil {
		breakerConfig = steadyBreakerConfig()
	}
	c := New(Options{
		Primary:  primary,
		Fallback: fallback,
		Breakers: breaker.NewRegistry(breakerConfig, mock),
		Clock:    mock,
	}, config, zerolog.Nop())
	return c, mock
}

func TestCollectSinglePage(t *testing.T) {
	primary := &fakeSource{
		name: "primary",
		pages: map[string]*Page{
			"g1|": {Items: []models.CollectedItem{
				item("a", time.Hour),
				item("b", 2*time.Hour),
			}},
		},
	}
	c, _ := newTestCollector(primary, nil, nil, nil)

	result := c.Collect(context.Background(), []string{"g1"}, 30, nil, 100)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	if result.Items[0].SourceGroup != "g1" {
		t.Errorf("expected SourceGroup g1, got %q", result.Items[0].SourceGroup)
	}
}

func TestCollectStopsAtCutoff(t *testing.T) {
	// Page two carries an item past the window; page three must never be
	// requested even though a cursor for it exists.
	primary := &fakeSource{
		name: "primary",
		pages: map[string]*Page{
			"g1|": {
				Items:      []models.CollectedItem{item("a", time.Hour), item("b", 24 * time.Hour)},
				NextCursor: "c2",
			},
			"g1|c2": {
				Items:      []models.CollectedItem{item("c", 48 * time.Hour), item("old", 45 * 24 * time.Hour), item("older", 60 * 24 * time.Hour)},
				NextCursor: "c3",
			},
			"g1|c3": {
				Items: []models.CollectedItem{item("never", time.Hour)},
			},
		},
	}
	c, _ := newTestCollector(primary, nil, nil, nil)

	result := c.Collect(context.Background(), []string{"g1"}, 30, nil, 100)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(result.Items))
	}
	if got := primary.calls(); got != 2 {
		t.Errorf("expected 2 page fetches, got %d", got)
	}
}

func TestCollectHonorsMaxPerGroup(t *testing.T) {
	primary := &fakeSource{
		name: "primary",
		pages: map[string]*Page{
			"g1|": {
				Items:      []models.CollectedItem{item("a", time.Hour), item("b", time.Hour), item("c", time.Hour)},
				NextCursor: "c2",
			},
		},
	}
	c, _ := newTestCollector(primary, nil, nil, nil)

	result := c.Collect(context.Background(), []string{"g1"}, 30, nil, 2)
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	if got := primary.calls(); got != 1 {
		t.Errorf("expected 1 page fetch, got %d", got)
	}
}

func TestCollectAppliesKeywordFilter(t *testing.T) {
	pricing := item("a", time.Hour)
	pricing.Title = "Struggling with Pricing strategy"
	other := item("b", time.Hour)
	other.Title = "weekend photos"

	primary := &fakeSource{
		name:  "primary",
		pages: map[string]*Page{"g1|": {Items: []models.CollectedItem{pricing, other}}},
	}
	c, _ := newTestCollector(primary, nil, nil, nil)

	filter := NewKeywordFilter([]string{"pricing"}, nil)
	result := c.Collect(context.Background(), []string{"g1"}, 30, filter, 100)
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	if len(result.Items[0].MatchedKeywords) != 1 || result.Items[0].MatchedKeywords[0] != "pricing" {
		t.Errorf("expected matched keyword pricing, got %v", result.Items[0].MatchedKeywords)
	}
}

func TestCollectRetriesTransientErrors(t *testing.T) {
	primary := &fakeSource{
		name:  "primary",
		failN: 2,
		pages: map[string]*Page{"g1|": {Items: []models.CollectedItem{item("a", time.Hour)}}},
	}
	c, _ := newTestCollector(primary, nil, nil, nil)

	result := c.Collect(context.Background(), []string{"g1"}, 30, nil, 100)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	if got := primary.calls(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestCollectFallsBackWhenPrimaryExhausted(t *testing.T) {
	primary := &fakeSource{
		name:       "primary",
		failGroups: map[string]bool{"g1": true},
	}
	fallback := &fakeSource{
		name:  "fallback",
		pages: map[string]*Page{"g1|": {Items: []models.CollectedItem{item("a", time.Hour)}}},
	}
	c, _ := newTestCollector(primary, fallback, nil, nil)

	result := c.Collect(context.Background(), []string{"g1"}, 30, nil, 100)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item from fallback, got %d", len(result.Items))
	}
	if got := primary.calls(); got != 3 {
		t.Errorf("expected primary tried 3 times, got %d", got)
	}
	if got := fallback.calls(); got != 1 {
		t.Errorf("expected fallback tried once, got %d", got)
	}
}

func TestCollectOpenBreakerSkipsRetries(t *testing.T) {
	primary := &fakeSource{
		name:       "primary",
		failGroups: map[string]bool{"g1": true},
	}
	fallback := &fakeSource{
		name:  "fallback",
		pages: map[string]*Page{"g1|": {Items: []models.CollectedItem{item("a", time.Hour)}}},
	}
	// Trips on the first failure, so retry two hits an open circuit.
	c, _ := newTestCollector(primary, fallback, &breaker.Config{
		FailureThreshold:  0.5,
		MinimumThroughput: 1,
		ResetTimeout:      time.Hour,
	}, nil)

	result := c.Collect(context.Background(), []string{"g1"}, 30, nil, 100)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if got := primary.calls(); got != 1 {
		t.Errorf("expected primary called once before fast-fail, got %d", got)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item from fallback, got %d", len(result.Items))
	}
}

func TestCollectAccumulatesGroupErrors(t *testing.T) {
	primary := &fakeSource{
		name:       "primary",
		failGroups: map[string]bool{"broken": true},
		pages:      map[string]*Page{"good|": {Items: []models.CollectedItem{item("a", time.Hour)}}},
	}
	fallback := &fakeSource{
		name:       "fallback",
		failGroups: map[string]bool{"broken": true},
	}
	c, _ := newTestCollector(primary, fallback, nil, nil)

	result := c.Collect(context.Background(), []string{"broken", "good"}, 30, nil, 100)
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 group error, got %d", len(result.Errors))
	}
	if result.Errors[0].Group != "broken" {
		t.Errorf("expected error for group broken, got %q", result.Errors[0].Group)
	}
	if result.Errors[0].Source != "fallback" {
		t.Errorf("expected error attributed to fallback, got %q", result.Errors[0].Source)
	}
	if !errors.Is(result.Errors[0].Err, models.ErrSourceExhausted) {
		t.Errorf("expected source exhaustion error, got %v", result.Errors[0].Err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected good group still collected, got %d items", len(result.Items))
	}
}

func TestPacerEnforcesMinDelay(t *testing.T) {
	mock := clock.NewMock(testNow)
	p := newPacer(600000, 50*time.Millisecond, mock)

	ctx := context.Background()
	if err := p.wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	first := mock.Now()
	if err := p.wait(ctx); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := mock.Now().Sub(first); elapsed < 50*time.Millisecond {
		t.Errorf("expected at least 50ms between requests, got %v", elapsed)
	}
}

func TestCollectPageCacheCostAwareTTL(t *testing.T) {
	primary := &fakeSource{
		name:  "primary",
		pages: map[string]*Page{"g1|": {Items: []models.CollectedItem{item("a", time.Hour)}}},
	}
	mock := clock.NewMock(testNow)
	config := DefaultConfig()
	config.MinDelay = 0
	config.RequestsPerMinute = 600000
	config.PageTTL = time.Minute
	c := New(Options{
		Primary:  primary,
		Breakers: breaker.NewRegistry(steadyBreakerConfig(), mock),
		Cache:    cache.New(nil, nil, mock, zerolog.Nop()),
		Clock:    mock,
	}, config, zerolog.Nop())

	ctx := context.Background()
	if result := c.Collect(ctx, []string{"g1"}, 30, nil, 100); len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	if got := primary.calls(); got != 1 {
		t.Fatalf("expected 1 fetch, got %d", got)
	}

	c.Collect(ctx, []string{"g1"}, 30, nil, 100)
	if got := primary.calls(); got != 1 {
		t.Fatalf("expected cached page within base TTL, got %d fetches", got)
	}

	// Past the base TTL but inside the size-lengthened one.
	mock.Advance(config.PageTTL + time.Second)
	c.Collect(ctx, []string{"g1"}, 30, nil, 100)
	if got := primary.calls(); got != 1 {
		t.Fatalf("expected cost-lengthened TTL to keep the page cached, got %d fetches", got)
	}

	// Far past the 4x lengthening cap: the entry must be gone.
	mock.Advance(10 * config.PageTTL)
	c.Collect(ctx, []string{"g1"}, 30, nil, 100)
	if got := primary.calls(); got != 2 {
		t.Fatalf("expected expired page refetched, got %d fetches", got)
	}
}
