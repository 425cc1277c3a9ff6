package auth

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mnehpets/rpcgate/jsonrpc"
)

// DefaultIdleTimeout is how long an unused bucket is kept.
const DefaultIdleTimeout = 10 * time.Minute

// RateLimiter is a pre-dispatch hook with one token bucket per caller.
//
// By default the caller is the project attached by BearerHook, so install it
// after that hook; calls without a project fall back to the client address.
// With KeyByAddress every call is bucketed by client address, which lets it
// run before BearerHook and throttle failed credential attempts too.
type RateLimiter struct {
	limit     rate.Limit
	burst     int
	byAddress bool
	idle      time.Duration
	now       func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	swept   time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimitOption configures a RateLimiter.
type RateLimitOption func(*RateLimiter)

// KeyByAddress buckets every call by client host, ignoring any project.
func KeyByAddress() RateLimitOption {
	return func(l *RateLimiter) {
		l.byAddress = true
	}
}

// WithIdleTimeout sets how long an unused bucket is kept before it is
// dropped. It is raised to the time a bucket needs to refill completely, so
// dropping one never hands out tokens early.
func WithIdleTimeout(d time.Duration) RateLimitOption {
	return func(l *RateLimiter) {
		l.idle = d
	}
}

// WithRateLimitClock sets the time source used for bucket expiry.
func WithRateLimitClock(now func() time.Time) RateLimitOption {
	return func(l *RateLimiter) {
		l.now = now
	}
}

// NewRateLimiter allows rps calls per second per caller with bursts of
// burst calls.
func NewRateLimiter(rps float64, burst int, opts ...RateLimitOption) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    DefaultIdleTimeout,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	if rps > 0 {
		if full := time.Duration(float64(burst) / rps * float64(time.Second)); l.idle < full {
			l.idle = full
		}
	}
	return l
}

// BeforeDispatch implements jsonrpc.PreDispatchHook.
func (l *RateLimiter) BeforeDispatch(_ context.Context, req *jsonrpc.Request) error {
	now := l.now()
	if !l.bucket(l.key(req), now).AllowN(now, 1) {
		return jsonrpc.InvalidRequestError("Rate limit exceeded")
	}
	return nil
}

// Len reports the number of live buckets.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *RateLimiter) bucket(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) >= l.idle {
		for k, b := range l.buckets {
			if now.Sub(b.seen) >= l.idle {
				delete(l.buckets, k)
			}
		}
		l.swept = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim
}

func (l *RateLimiter) key(req *jsonrpc.Request) string {
	if !l.byAddress {
		if p, ok := ProjectOf(req); ok {
			return "project:" + p.Code
		}
	}
	addr := req.HTTPRequest().RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return "addr:" + addr
}

var _ jsonrpc.PreDispatchHook = (*RateLimiter)(nil)
