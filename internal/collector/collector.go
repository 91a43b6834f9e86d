package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/breaker"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/cache"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/metrics"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/pkg/clock"
)

// Config holds collector tuning.
type Config struct {
	// MinDelay is the minimum gap between any two source requests.
	MinDelay time.Duration
	// RequestsPerMinute caps the sliding request rate.
	RequestsPerMinute int
	// RetryAttempts is the per-page retry budget for transient errors.
	RetryAttempts int
	// BackoffBase and BackoffCap bound the exponential retry backoff.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// PageSize is the item count requested per page.
	PageSize int
	// PageTTL is the cache TTL for fetched pages when a cache is wired in.
	PageTTL time.Duration
	// MaxReplyDepth bounds reply traversal; clamped to the hard limit.
	MaxReplyDepth int
	// ReplyLimit and ReplySort are passed through to the source.
	ReplyLimit int
	ReplySort  string
	// HighValueProportion selects the top share of items by popularity for
	// reply collection.
	HighValueProportion float64
	// AnonymizationSalt keys the one-way author hash.
	AnonymizationSalt string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MinDelay:            time.Second,
		RequestsPerMinute:   30,
		RetryAttempts:       3,
		BackoffBase:         time.Second,
		BackoffCap:          10 * time.Second,
		PageSize:            100,
		PageTTL:             10 * time.Minute,
		MaxReplyDepth:       hardMaxReplyDepth,
		ReplyLimit:          200,
		ReplySort:           "top",
		HighValueProportion: 0.1,
	}
}

// GroupError is a per-group collection failure, returned alongside results
// so callers can inspect partial failures without parsing logs.
type GroupError struct {
	Group  string
	Source string
	Err    error
}

func (e GroupError) Error() string {
	return fmt.Sprintf("group %s via %s: %v", e.Group, e.Source, e.Err)
}

// Result is the outcome of one collection run: the items gathered plus the
// per-group errors for groups that could not be finished.
type Result struct {
	Items  []models.CollectedItem
	Errors []GroupError
}

// Options bundles the collector's collaborators.
type Options struct {
	Primary  Source
	Fallback Source
	Breakers *breaker.Registry
	// Cache enables read-through page caching when non-nil.
	Cache   *cache.Manager
	Metrics *metrics.Metrics
	Clock   clock.Clock
}

// Collector is the rate-limited, paginated, dual-source fetcher.
type Collector struct {
	primary  Source
	fallback Source
	breakers *breaker.Registry
	cache    *cache.Manager
	config   *Config
	pacer    *pacer
	clock    clock.Clock
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// New creates a Collector.
func New(opts Options, config *Config, logger zerolog.Logger) *Collector {
	if config == nil {
		config = DefaultConfig()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	breakers := opts.Breakers
	if breakers == nil {
		breakers = breaker.NewRegistry(nil, clk)
	}
	return &Collector{
		primary:  opts.Primary,
		fallback: opts.Fallback,
		breakers: breakers,
		cache:    opts.Cache,
		config:   config,
		pacer:    newPacer(config.RequestsPerMinute, config.MinDelay, clk),
		clock:    clk,
		logger:   logger.With().Str("component", "collector").Logger(),
		metrics:  opts.Metrics,
	}
}

// Collect gathers items for each group created within the last windowDays,
// filtered by keywords, up to maxPerGroup items per group. A failing group
// is recorded in Result.Errors and never aborts the other groups.
func (c *Collector) Collect(ctx context.Context, groups []string, windowDays int, filter *KeywordFilter, maxPerGroup int) *Result {
	start := c.clock.Now()
	cutoff := start.AddDate(0, 0, -windowDays)

	result := &Result{}
	for _, group := range groups {
		items, groupErr := c.collectGroup(ctx, group, cutoff, filter, maxPerGroup)
		result.Items = append(result.Items, items...)
		c.metrics.RecordItemsCollected(group, len(items))
		if groupErr != nil {
			c.logger.Warn().Str("group", group).Err(groupErr.Err).Msg("group collection abandoned")
			result.Errors = append(result.Errors, *groupErr)
		}
		if ctx.Err() != nil {
			break
		}
	}

	c.metrics.ObserveCollectDuration(c.clock.Since(start).Seconds())
	return result
}

// collectGroup pages through one group until the window cutoff, cursor
// exhaustion or the per-group cap. Pages are assumed reverse-chronological:
// the first item older than the cutoff ends pagination.
func (c *Collector) collectGroup(ctx context.Context, group string, cutoff time.Time, filter *KeywordFilter, maxPerGroup int) ([]models.CollectedItem, *GroupError) {
	source := c.primary
	degraded := false
	cursor := ""
	var items []models.CollectedItem

	for {
		page, err := c.fetchPageWithRetry(ctx, source, group, cursor)
		if err != nil {
			if !degraded && c.fallback != nil {
				c.logger.Warn().
					Str("group", group).
					Str("from", source.Name()).
					Str("to", c.fallback.Name()).
					Err(err).
					Msg("primary source failed, degrading to fallback")
				c.metrics.RecordGroupDegraded()
				source = c.fallback
				degraded = true
				continue
			}
			// Fallback failures are terminal for this group.
			if degraded {
				err = fmt.Errorf("%w: %v", models.ErrSourceExhausted, err)
			}
			return items, &GroupError{Group: group, Source: source.Name(), Err: err}
		}

		for _, item := range page.Items {
			if item.CreatedAt.Before(cutoff) {
				return items, nil
			}
			ok, matched := filter.Match(item.Title, item.Body)
			if !ok {
				continue
			}
			item.SourceGroup = group
			item.CursorOrigin = cursor
			item.MatchedKeywords = matched
			items = append(items, item)
			if len(items) >= maxPerGroup {
				return items, nil
			}
		}

		if page.NextCursor == "" {
			return items, nil
		}
		cursor = page.NextCursor
	}
}

// fetchPageWithRetry fetches one page with up to RetryAttempts tries and
// exponential backoff. A fast-fail from an open breaker is not retried; the
// caller decides whether to degrade to the fallback source.
func (c *Collector) fetchPageWithRetry(ctx context.Context, source Source, group, cursor string) (*Page, error) {
	var lastErr error
	backoff := c.config.BackoffBase

	for attempt := 1; attempt <= c.config.RetryAttempts; attempt++ {
		if err := c.pacer.wait(ctx); err != nil {
			return nil, err
		}

		page, err := c.fetchPage(ctx, source, group, cursor)
		if err == nil {
			c.metrics.RecordPageFetched(source.Name())
			return page, nil
		}
		lastErr = err

		if errors.Is(err, models.ErrCircuitOpen) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt < c.config.RetryAttempts {
			c.logger.Debug().
				Str("group", group).
				Str("source", source.Name()).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Err(err).
				Msg("page fetch failed, backing off")
			c.clock.Sleep(backoff)
			backoff *= 2
			if backoff > c.config.BackoffCap {
				backoff = c.config.BackoffCap
			}
		}
	}
	return nil, lastErr
}

// fetchPage performs one breaker-protected page fetch, read through the
// page cache when one is wired in.
func (c *Collector) fetchPage(ctx context.Context, source Source, group, cursor string) (*Page, error) {
	br := c.breakers.Get(source.Name())

	var page *Page
	op := func(ctx context.Context) error {
		p, err := source.FetchPage(ctx, group, cursor, c.config.PageSize)
		if err != nil {
			return err
		}
		page = p
		return nil
	}

	if c.cache == nil {
		if err := br.Execute(ctx, op, nil); err != nil {
			return nil, err
		}
		return page, nil
	}

	key := fmt.Sprintf("page:%s:%s:%s", source.Name(), group, cursor)
	if data, found := c.cache.Get(ctx, key); found {
		var cached Page
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		// Undecodable cached page; fetch fresh and overwrite it.
	}

	if err := br.Execute(ctx, op, nil); err != nil {
		return nil, err
	}
	if data, err := json.Marshal(page); err == nil {
		// Payload size stands in for the cost of the call: bigger pages are
		// more expensive to refetch and stay cached longer.
		ttl := cache.ResponseTTL(c.config.PageTTL, http.StatusOK, float64(len(data)))
		c.cache.Set(ctx, key, data, ttl)
	}
	return page, nil
}
