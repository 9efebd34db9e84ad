package riot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limit is a request quota over a window, e.g. 20 requests per second.
type Limit struct {
	Requests int
	Window   time.Duration
}

func (l Limit) String() string {
	return fmt.Sprintf("%d:%d", l.Requests, int(l.Window.Seconds()))
}

// Dev key limits are 20/1s and 100/2min; keep some headroom.
var DefaultLimits = []Limit{
	{Requests: 15, Window: time.Second},
	{Requests: 90, Window: 2 * time.Minute},
}

// Clock lets tests drive the limiter without real sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// window enforces one Limit with a token bucket that refills one token every
// Window/Requests and holds at most one. Admissions are therefore spaced at
// least Window/Requests apart, which never puts more than Requests of them
// in any span of length Window.
type window struct {
	limit  Limit
	bucket *rate.Limiter
}

func newWindow(lim Limit) *window {
	return &window{limit: lim, bucket: rate.NewLimiter(every(lim), 1)}
}

// every rounds the interval up so rounding never squeezes an extra request
// into a window.
func every(lim Limit) rate.Limit {
	n := time.Duration(lim.Requests)
	return rate.Every((lim.Window + n - 1) / n)
}

// Limiter enforces several windows at once. A request is admitted only when
// every window has room for it.
type Limiter struct {
	mu      sync.Mutex
	clock   Clock
	windows []*window
}

// NewLimiter creates a limiter enforcing all of the given limits.
func NewLimiter(clock Clock, limits ...Limit) *Limiter {
	if clock == nil {
		clock = realClock{}
	}
	l := &Limiter{clock: clock}
	for _, lim := range limits {
		if lim.Requests <= 0 || lim.Window <= 0 {
			continue
		}
		l.windows = append(l.windows, newWindow(lim))
	}
	return l
}

// Wait blocks until one more request is admitted by every window.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait := l.reserve()
		if wait <= 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(wait):
		}
	}
}

// reserve takes a token from every window and returns 0, or takes none and
// returns how long until the slowest window has one.
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	var wait time.Duration
	held := make([]*rate.Reservation, 0, len(l.windows))
	for _, w := range l.windows {
		r := w.bucket.ReserveN(now, 1)
		held = append(held, r)
		if d := r.DelayFrom(now); d > wait {
			wait = d
		}
	}
	if wait > 0 {
		for _, r := range held {
			r.CancelAt(now)
		}
	}
	return wait
}

// Tighten applies limits reported by the provider. A window is only ever
// lowered, never raised; unknown windows are added.
func (l *Limiter) Tighten(limits []Limit) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	for _, lim := range limits {
		if lim.Requests <= 0 || lim.Window <= 0 {
			continue
		}
		found := false
		for _, w := range l.windows {
			if w.limit.Window != lim.Window {
				continue
			}
			found = true
			if lim.Requests < w.limit.Requests {
				w.limit.Requests = lim.Requests
				w.bucket.SetLimitAt(now, every(w.limit))
			}
		}
		if !found {
			l.windows = append(l.windows, newWindow(lim))
		}
	}
}

// Limits returns the limits currently enforced.
func (l *Limiter) Limits() []Limit {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Limit, 0, len(l.windows))
	for _, w := range l.windows {
		out = append(out, w.limit)
	}
	return out
}

// ParseRateLimitHeader parses "requests:seconds" pairs separated by commas,
// the format of X-App-Rate-Limit and X-Method-Rate-Limit.
func ParseRateLimitHeader(value string) ([]Limit, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	var limits []Limit
	for _, item := range strings.Split(value, ",") {
		first, second, ok := strings.Cut(strings.TrimSpace(item), ":")
		if !ok {
			return nil, fmt.Errorf("could not parse rate limit %q", item)
		}
		requests, err := strconv.Atoi(first)
		if err != nil {
			return nil, fmt.Errorf("could not parse rate limit %q: %w", item, err)
		}
		seconds, err := strconv.Atoi(second)
		if err != nil {
			return nil, fmt.Errorf("could not parse rate limit %q: %w", item, err)
		}
		limits = append(limits, Limit{Requests: requests, Window: time.Duration(seconds) * time.Second})
	}
	return limits, nil
}
