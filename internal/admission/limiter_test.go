package admission

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/causeway-db/causeway/internal/core/domain"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiter_AdmitsUpToQuota(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewLimiter(time.Minute, 3, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Check("acme"), "request %d", i+1)
	}

	err := l.Check("acme")
	require.Error(t, err)
	assert.Equal(t, domain.KindRateLimited, domain.KindOf(err))
	assert.Greater(t, domain.RetryAfter(err), time.Duration(0))
}

func TestLimiter_ReadmitsAfterWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewLimiter(time.Minute, 2, WithClock(clock.Now))

	require.NoError(t, l.Check("acme"))
	clock.Advance(10 * time.Second)
	require.NoError(t, l.Check("acme"))

	err := l.Check("acme")
	require.Error(t, err)

	// The oldest admit leaves the window 50s from now.
	retry := domain.RetryAfter(err)
	assert.Equal(t, 50*time.Second, retry)

	clock.Advance(retry + time.Millisecond)
	assert.NoError(t, l.Check("acme"))
}

func TestLimiter_TenantsIndependent(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewLimiter(time.Minute, 1, WithClock(clock.Now))

	require.NoError(t, l.Check("acme"))
	require.Error(t, l.Check("acme"))

	// A different tenant has its own window.
	assert.NoError(t, l.Check("globex"))
}

func TestLimiter_QuotaOverrides(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewLimiter(time.Minute, 1,
		WithClock(clock.Now),
		WithQuotaOverrides(map[string]int{"vip": 3}),
	)

	require.NoError(t, l.Check("vip"))
	require.NoError(t, l.Check("vip"))
	require.NoError(t, l.Check("vip"))
	require.Error(t, l.Check("vip"))

	require.NoError(t, l.Check("acme"))
	require.Error(t, l.Check("acme"))
}

func TestLimiter_RejectionsDoNotConsumeQuota(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewLimiter(time.Minute, 1, WithClock(clock.Now))

	require.NoError(t, l.Check("acme"))
	for i := 0; i < 5; i++ {
		require.Error(t, l.Check("acme"))
	}

	// One admitted request ages out; rejected attempts left no trace.
	clock.Advance(time.Minute + time.Second)
	assert.NoError(t, l.Check("acme"))
}

func TestLimiter_Defaults(t *testing.T) {
	t.Parallel()

	l := NewLimiter(0, 0)
	assert.Equal(t, DefaultWindow, l.window)
	assert.Equal(t, DefaultQuota, l.quota)
}

func TestLimiter_ConcurrentChecks(t *testing.T) {
	t.Parallel()

	l := NewLimiter(time.Minute, 50)

	var wg sync.WaitGroup
	admitted := make(chan struct{}, 200)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check("acme") == nil {
				admitted <- struct{}{}
			}
			if l.Check("globex") == nil {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for range admitted {
		count++
	}
	assert.Equal(t, 100, count, "exactly quota admits per tenant")
}
