package chat

import (
	"context"
	"math/rand"
	"time"

	"github.com/IshaanNene/chatprobe/internal/config"
)

// Driver is the browser surface the scrape sequence needs.
// *browser.Session implements it.
type Driver interface {
	Open(ctx context.Context, rawURL string) error
	Click(ctx context.Context, selector string) error
	ClickIfPresent(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	Type(ctx context.Context, selector, text string) error
	PressEnter(ctx context.Context, selector string) error
	InnerHTML(ctx context.Context, selector string) (string, error)
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
}

// Waiter blocks for a duration drawn from a window.
type Waiter interface {
	Wait(ctx context.Context, w config.Window) error
}

// JitterWaiter sleeps a uniformly random duration in [Min, Max].
type JitterWaiter struct {
	rng *rand.Rand
}

// NewJitterWaiter creates a JitterWaiter seeded from the clock.
func NewJitterWaiter() *JitterWaiter {
	return &JitterWaiter{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Duration picks a duration within w.
func (j *JitterWaiter) Duration(w config.Window) time.Duration {
	if w.Max <= w.Min {
		return w.Min
	}
	return w.Min + time.Duration(j.rng.Int63n(int64(w.Max-w.Min)+1))
}

// Wait sleeps for a duration within w, returning early if ctx is done.
func (j *JitterWaiter) Wait(ctx context.Context, w config.Window) error {
	d := j.Duration(w)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
