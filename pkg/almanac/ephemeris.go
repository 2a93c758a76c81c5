package almanac

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/astralpost/astralpost/pkg/config"
	"github.com/astralpost/astralpost/pkg/observability"
)

// EphemerisClient fetches planetary positions and moon phase for a day.
type EphemerisClient struct {
	baseURL string
	apiKey  string
	ttl     time.Duration
	http    *http.Client
	redis   *redis.Client
	logger  *observability.Logger
}

// NewEphemerisClient creates an ephemeris client backed by the Redis cache.
func NewEphemerisClient(cfg config.AlmanacConfig, rdb *redis.Client, logger *observability.Logger) *EphemerisClient {
	return &EphemerisClient{
		baseURL: cfg.EphemerisBaseURL,
		apiKey:  cfg.EphemerisAPIKey,
		ttl:     cfg.EphemerisTTL,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		redis:  rdb,
		logger: logger.WithField("component", "almanac.ephemeris"),
	}
}

func ephemerisKey(date time.Time) string {
	return "almanac:ephemeris:" + date.Format("2006-01-02")
}

// DailyContext returns the astronomical context for the given day, serving
// from cache when possible.
func (c *EphemerisClient) DailyContext(ctx context.Context, date time.Time) (*DailyContext, error) {
	key := ephemerisKey(date)

	if cached, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var daily DailyContext
		if err := json.Unmarshal(cached, &daily); err == nil {
			return &daily, nil
		}
		// Corrupt cache entry; fall through to a fresh fetch.
		c.logger.WithField("key", key).Warn("discarding unreadable ephemeris cache entry")
	}

	daily, err := c.fetch(ctx, date)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, daily)
	return daily, nil
}

// Refresh fetches the day's context unconditionally and rewrites the cache.
// Invoked by the cron binary ahead of the generation fan-out.
func (c *EphemerisClient) Refresh(ctx context.Context, date time.Time) error {
	daily, err := c.fetch(ctx, date)
	if err != nil {
		return err
	}
	c.store(ctx, ephemerisKey(date), daily)
	c.logger.WithField("date", daily.Date).Info("ephemeris context refreshed")
	return nil
}

func (c *EphemerisClient) fetch(ctx context.Context, date time.Time) (*DailyContext, error) {
	url := fmt.Sprintf("%s/daily?date=%s", c.baseURL, date.Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build ephemeris request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ephemeris request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ephemeris API returned status %d", resp.StatusCode)
	}

	var daily DailyContext
	if err := json.NewDecoder(resp.Body).Decode(&daily); err != nil {
		return nil, fmt.Errorf("failed to decode ephemeris response: %w", err)
	}
	if daily.Date == "" {
		daily.Date = date.Format("2006-01-02")
	}
	return &daily, nil
}

func (c *EphemerisClient) store(ctx context.Context, key string, daily *DailyContext) {
	data, err := json.Marshal(daily)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("failed to cache ephemeris context")
	}
}
