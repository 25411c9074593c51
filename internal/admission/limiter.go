// Package admission implements the per-tenant sliding-window rate limit that
// every request must clear before execution.
package admission

import (
	"sync"
	"time"

	"github.com/causeway-db/causeway/internal/core/domain"
)

const (
	DefaultWindow = 60 * time.Second
	DefaultQuota  = 100
)

// Limiter is an explicitly owned registry of per-tenant request windows.
// Its lifecycle is tied to the gateway instance that owns it; separate gateway
// instances get separate registries.
type Limiter struct {
	window    time.Duration
	quota     int
	overrides map[string]int
	now       func() time.Time

	mu      sync.RWMutex // guards the tenants map, never held during a check
	tenants map[string]*tenantWindow
}

// tenantWindow holds the admitted-request timestamps for one tenant inside
// the trailing window, oldest first.
type tenantWindow struct {
	mu     sync.Mutex
	stamps []time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithQuotaOverrides sets per-tenant quotas that replace the default.
func WithQuotaOverrides(overrides map[string]int) Option {
	return func(l *Limiter) { l.overrides = overrides }
}

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func NewLimiter(window time.Duration, quota int, opts ...Option) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if quota <= 0 {
		quota = DefaultQuota
	}
	l := &Limiter{
		window:  window,
		quota:   quota,
		now:     time.Now,
		tenants: make(map[string]*tenantWindow),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check admits or rejects one request for tenant. Timestamps older than the
// window are discarded first; at quota the request is rejected with a
// retry-after hint, otherwise the current instant is recorded. Concurrent
// checks for the same tenant serialize on that tenant's lock only, so
// unrelated tenants never contend.
func (l *Limiter) Check(tenant string) error {
	w := l.tenantWindow(tenant)
	quota := l.quotaFor(tenant)
	now := l.now()
	cutoff := now.Add(-l.window)

	w.mu.Lock()
	defer w.mu.Unlock()

	keep := 0
	for keep < len(w.stamps) && !w.stamps[keep].After(cutoff) {
		keep++
	}
	w.stamps = w.stamps[keep:]

	if len(w.stamps) >= quota {
		retry := w.stamps[0].Add(l.window).Sub(now)
		if retry <= 0 {
			retry = time.Millisecond
		}
		return &domain.GatewayError{
			Kind:       domain.KindRateLimited,
			Message:    "tenant quota exhausted, retry later",
			RetryAfter: retry,
		}
	}

	w.stamps = append(w.stamps, now)
	return nil
}

func (l *Limiter) quotaFor(tenant string) int {
	if q, ok := l.overrides[tenant]; ok && q > 0 {
		return q
	}
	return l.quota
}

func (l *Limiter) tenantWindow(tenant string) *tenantWindow {
	l.mu.RLock()
	w, ok := l.tenants[tenant]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok = l.tenants[tenant]; ok {
		return w
	}
	w = &tenantWindow{}
	l.tenants[tenant] = w
	return w
}
