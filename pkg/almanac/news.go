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

const newsCacheKey = "almanac:news:top"

// NewsClient fetches top headlines for the optional news flavor.
type NewsClient struct {
	baseURL string
	apiKey  string
	ttl     time.Duration
	http    *http.Client
	redis   *redis.Client
	logger  *observability.Logger
}

// NewNewsClient creates a news client backed by the Redis cache.
func NewNewsClient(cfg config.AlmanacConfig, rdb *redis.Client, logger *observability.Logger) *NewsClient {
	return &NewsClient{
		baseURL: cfg.NewsBaseURL,
		apiKey:  cfg.NewsAPIKey,
		ttl:     cfg.NewsTTL,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		redis:  rdb,
		logger: logger.WithField("component", "almanac.news"),
	}
}

// TopHeadlines returns the cached headlines, fetching on a miss. News is
// flavor, not structure: callers treat an error as "no headlines today".
func (c *NewsClient) TopHeadlines(ctx context.Context) ([]Headline, error) {
	if cached, err := c.redis.Get(ctx, newsCacheKey).Bytes(); err == nil {
		var headlines []Headline
		if err := json.Unmarshal(cached, &headlines); err == nil {
			return headlines, nil
		}
		c.logger.Warn("discarding unreadable news cache entry")
	}

	headlines, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.store(ctx, headlines)
	return headlines, nil
}

// Refresh fetches headlines unconditionally and rewrites the cache.
func (c *NewsClient) Refresh(ctx context.Context) error {
	headlines, err := c.fetch(ctx)
	if err != nil {
		return err
	}
	c.store(ctx, headlines)
	c.logger.WithField("count", len(headlines)).Info("news headlines refreshed")
	return nil
}

func (c *NewsClient) fetch(ctx context.Context) ([]Headline, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/top-headlines", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build news request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news API returned status %d", resp.StatusCode)
	}

	var payload struct {
		Articles []Headline `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode news response: %w", err)
	}
	return payload.Articles, nil
}

func (c *NewsClient) store(ctx context.Context, headlines []Headline) {
	data, err := json.Marshal(headlines)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, newsCacheKey, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("failed to cache news headlines")
	}
}
