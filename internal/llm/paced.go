package llm

import (
	"context"

	"koosseis/internal/util"
)

// Paced spaces calls to the wrapped channel so that no more than the
// configured number of requests per minute leave the process.
type Paced struct {
	next    Channel
	limiter *util.RateLimiter
}

// NewPaced returns next unchanged when rpm is not positive.
func NewPaced(next Channel, rpm int) Channel {
	if rpm <= 0 {
		return next
	}
	return &Paced{next: next, limiter: util.PerMinute(rpm)}
}

func (p *Paced) Send(ctx context.Context, message string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return p.next.Send(ctx, message)
}
