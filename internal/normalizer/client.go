package normalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sethvargo/go-retry"

	"koosseis/internal"
	"koosseis/internal/llm"
	"koosseis/internal/logger"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoffUnit = time.Second
)

// Channel carries one request to the normalizing model and returns its raw
// text answer.
type Channel interface {
	Send(ctx context.Context, message string) (string, error)
}

type Result struct {
	Document        json.RawMessage
	Instrumentation internal.Instrumentation
	Attempts        int
}

type Client struct {
	channel     Channel
	maxAttempts int
	unit        time.Duration
	jitter      func() float64
	onBackoff   func(attempt int, wait time.Duration)
	logger      *log.Logger
}

type Option func(*Client)

func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithBackoffUnit(unit time.Duration) Option {
	return func(c *Client) {
		if unit > 0 {
			c.unit = unit
		}
	}
}

// WithJitter replaces the jitter source. fn must return values in [0, 1).
func WithJitter(fn func() float64) Option {
	return func(c *Client) {
		if fn != nil {
			c.jitter = fn
		}
	}
}

// WithBackoffHook is called before every wait with the zero-based retry
// number and the wait chosen.
func WithBackoffHook(fn func(attempt int, wait time.Duration)) Option {
	return func(c *Client) {
		c.onBackoff = fn
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(channel Channel, opts ...Option) *Client {
	c := &Client{
		channel:     channel,
		maxAttempts: DefaultMaxAttempts,
		unit:        DefaultBackoffUnit,
		jitter:      rand.Float64,
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Normalize sends "Input: <text>" over the channel and decodes the answer.
//
// Rate-limit rejections are retried with a wait of 2^n units plus up to one
// unit of jitter. Other send errors, parse errors and validation errors are
// returned at once as *Error.
func (c *Client) Normalize(ctx context.Context, text string) (Result, error) {
	message := "Input: " + text

	attempts := 0
	var raw string
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempts++
		out, err := c.channel.Send(ctx, message)
		if err != nil {
			if llm.IsRateLimited(err) {
				c.logger.Warn("normalizer rate limited", "attempt", attempts, "max", c.maxAttempts)
				return retry.RetryableError(err)
			}
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		if llm.IsRateLimited(err) {
			return Result{Attempts: attempts}, &Error{
				Kind: internal.FailureRateLimited,
				Err:  fmt.Errorf("rate limit persisted after %d attempts: %w", attempts, err),
			}
		}
		return Result{Attempts: attempts}, &Error{Kind: internal.FailureTransport, Err: err}
	}

	inst, doc, err := Parse(raw)
	if err != nil {
		return Result{Attempts: attempts}, &Error{Kind: internal.FailureParse, Raw: raw, Err: err}
	}
	return Result{Document: doc, Instrumentation: inst, Attempts: attempts}, nil
}

func (c *Client) backoff() retry.Backoff {
	attempt := 0
	next := retry.BackoffFunc(func() (time.Duration, bool) {
		factor := math.Pow(2, float64(attempt)) + c.jitter()
		wait := time.Duration(factor * float64(c.unit))
		if c.onBackoff != nil {
			c.onBackoff(attempt, wait)
		}
		c.logger.Debug("normalizer backoff", "retry", attempt, "wait", wait)
		attempt++
		return wait, false
	})
	return retry.WithMaxRetries(uint64(c.maxAttempts-1), next)
}
