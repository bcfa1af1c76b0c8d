package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	summaryVersionKey  = "finance:summary:version"
	summaryLoadTimeout = 30 * time.Second
)

// SummaryCache keeps finance summaries in Redis under a version that every
// payment mutation bumps. Concurrent misses for one key share a single load.
// A nil cache or client loads straight through, and Redis errors fall back
// to loading without the cache.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewSummaryCache instantiates the cache.
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{client: client, ttl: ttl, logger: slog.Default()}
}

// Version returns the current cache version, initialising it when missing.
func (c *SummaryCache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, summaryVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, summaryVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, summaryVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Key composes the versioned key for criteria evaluated on asOf's day.
// Paging fields do not take part.
func (c *SummaryCache) Key(ctx context.Context, criteria FilterCriteria, asOf time.Time) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", summaryKey(criteria, asOf), ver), nil
}

// Fetch returns the cached summary for key or populates it with load. The
// boolean reports a cache hit. Callers missing the same key share one load,
// which outlives the caller that started it.
func (c *SummaryCache) Fetch(ctx context.Context, key string, load func(context.Context) (Summary, error)) (Summary, bool, error) {
	if c == nil || c.client == nil {
		s, err := load(ctx)
		return s, false, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var s Summary
		if err := json.Unmarshal(payload, &s); err == nil {
			return s, true, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("summary cache read failed", slog.String("key", key), slog.Any("error", err))
		s, err := load(ctx)
		return s, false, err
	}

	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryLoadTimeout)
		defer cancel()
		s, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.store(loadCtx, key, s)
		return s, nil
	})
	select {
	case <-ctx.Done():
		return Summary{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Summary{}, false, res.Err
		}
		return res.Val.(Summary), false, nil
	}
}

func (c *SummaryCache) store(ctx context.Context, key string, s Summary) {
	raw, err := json.Marshal(s)
	if err == nil {
		err = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("summary cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Bump invalidates every cached summary.
func (c *SummaryCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, summaryVersionKey).Err()
}

func summaryKey(c FilterCriteria, asOf time.Time) string {
	return strings.Join([]string{
		"finance", "summary",
		dayOf(asOf).Format("20060102"),
		optionalID(c.CustomerID),
		optionalID(c.ProductID),
		optionalID(c.SalespersonID),
		optionalStatus(c.Status),
		rangeToken(c.EffectiveDate),
		rangeToken(c.ExpiryDate),
		rangeToken(c.PaymentDate),
		strconv.Quote(strings.TrimSpace(c.Keyword)),
	}, ":")
}

func optionalID(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

func optionalStatus(s *OrderStatus) string {
	if s == nil {
		return "-"
	}
	return string(*s)
}

func rangeToken(r DateRange) string {
	day := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return dayOf(*t).Format("20060102")
	}
	return day(r.Start) + "~" + day(r.End)
}
