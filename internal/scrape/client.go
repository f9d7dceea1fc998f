package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sethvargo/go-retry"

	"koosseis/internal"
	"koosseis/internal/config"
	"koosseis/internal/logger"
	"koosseis/internal/util"
)

const maxAttempts = 4

type Client struct {
	httpClient  *http.Client
	urlTemplate string
	limiter     *util.RateLimiter
	backoffBase time.Duration
	logger      *log.Logger
}

func NewClient(cfg config.Config, l *log.Logger) *Client {
	if l == nil {
		l = logger.Discard()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: time.Duration(cfg.ScrapeTimeoutMs) * time.Millisecond},
		urlTemplate: cfg.ScrapeURLTemplate,
		limiter:     util.PerSecond(cfg.ScrapeRateLimitRPS),
		backoffBase: 250 * time.Millisecond,
		logger:      l,
	}
}

func (c *Client) PageURL(composerID string) string {
	return strings.ReplaceAll(c.urlTemplate, "{id}", composerID)
}

// FetchComposers scrapes each composer page in order. A failing page stops
// the walk and returns what was scraped so far with the error.
func (c *Client) FetchComposers(ctx context.Context, ids []string) ([]internal.Composer, error) {
	out := make([]internal.Composer, 0, len(ids))
	for _, id := range ids {
		composer, err := c.FetchComposer(ctx, id)
		if err != nil {
			return out, fmt.Errorf("composer %s: %w", id, err)
		}
		out = append(out, composer)
	}
	return out, nil
}

func (c *Client) FetchComposer(ctx context.Context, composerID string) (internal.Composer, error) {
	body, err := c.fetch(ctx, c.PageURL(composerID))
	if err != nil {
		return internal.Composer{}, err
	}
	composer, err := ParseComposerPage(bytes.NewReader(body))
	if err != nil {
		return internal.Composer{}, err
	}
	works := 0
	for _, g := range composer.Compositions {
		works += len(g.Works)
	}
	c.logger.Info("scraped composer", "id", composerID, "composer", composer.Composer, "categories", len(composer.Compositions), "works", works)
	return composer, nil
}

func (c *Client) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	return retry.DoValue(ctx, c.backoff(pageURL), func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/html")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, retry.RetryableError(err)
		}
		blob, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, retry.RetryableError(readErr)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := fmt.Errorf("fetch %s: status=%d", pageURL, resp.StatusCode)
			if isRetryableStatus(resp.StatusCode) {
				return nil, retry.RetryableError(statusErr)
			}
			return nil, statusErr
		}
		return blob, nil
	})
}

func (c *Client) backoff(pageURL string) retry.Backoff {
	b := retry.NewExponential(c.backoffBase)
	b = retry.WithJitter(c.backoffBase/2, b)
	b = retry.WithMaxRetries(maxAttempts-1, b)
	return retry.BackoffFunc(func() (time.Duration, bool) {
		wait, stop := b.Next()
		if !stop {
			c.logger.Warn("retrying page", "url", pageURL, "wait", wait)
		}
		return wait, stop
	})
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
