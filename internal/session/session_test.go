package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"launchpad/internal/cache"
	"launchpad/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

// fakeRenewer hands out T1, T2, ... unless err is set. When gate is
// non-nil each call signals entered and blocks until gate is closed.
type fakeRenewer struct {
	calls   atomic.Int32
	mu      sync.Mutex
	err     error
	gate    chan struct{}
	entered chan struct{}
}

func (r *fakeRenewer) Renew(ctx context.Context) (*models.TokenDetails, error) {
	n := r.calls.Add(1)

	r.mu.Lock()
	gate, entered, err := r.gate, r.entered, r.err
	r.mu.Unlock()

	if gate != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &models.TokenDetails{
		AccessToken: "T" + string(rune('0'+n)),
		SessionID:   "S1",
	}, nil
}

func (r *fakeRenewer) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func newTestCache(t *testing.T, renewer Renewer, opts ...Option) (*Cache, *cache.Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := cache.New()
	store.SetClock(clock.Now)

	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	c, err := New(store, renewer, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Stop)

	return c, store, clock
}

func login(token string) *models.AuthUserDetails {
	return &models.AuthUserDetails{
		User:        models.User{ID: "u1", Email: "a@b.com"},
		AccessToken: token,
		SessionID:   "S1",
	}
}

func TestToken_EmptyCacheRenewsInBackground(t *testing.T) {
	renewer := &fakeRenewer{}
	c, _, _ := newTestCache(t, renewer)

	assert.Nil(t, c.Token(), "first read does not block on renewal")

	c.Wait()
	assert.Equal(t, int32(1), renewer.calls.Load())

	token := c.Token()
	require.NotNil(t, token)
	assert.Equal(t, "T1", token.AccessToken)
}

func TestSetFromLogin_SeedsImmediately(t *testing.T) {
	renewer := &fakeRenewer{}
	c, _, _ := newTestCache(t, renewer)

	c.SetFromLogin(login("T1"))

	token := c.Token()
	require.NotNil(t, token)
	assert.Equal(t, "T1", token.AccessToken)
	assert.Equal(t, "S1", token.SessionID)
	require.NotNil(t, c.User())
	assert.Equal(t, "a@b.com", c.User().Email)

	c.Wait()
	assert.Zero(t, renewer.calls.Load(), "a fresh token needs no renewal")
}

func TestRenew_FailureKeepsPreviousToken(t *testing.T) {
	renewer := &fakeRenewer{}
	renewer.fail(errors.New("refresh rejected"))
	c, _, _ := newTestCache(t, renewer)

	c.SetFromLogin(login("T1"))

	assert.Nil(t, c.Renew(context.Background()))
	assert.EqualError(t, c.LastRenewError(), "refresh rejected")

	token := c.Token()
	require.NotNil(t, token)
	assert.Equal(t, "T1", token.AccessToken)
}

func TestRenew_SuccessReplacesToken(t *testing.T) {
	renewer := &fakeRenewer{}
	c, _, _ := newTestCache(t, renewer)
	c.SetFromLogin(login("T0"))

	token := c.Renew(context.Background())
	require.NotNil(t, token)
	assert.Equal(t, "T1", token.AccessToken)
	assert.Equal(t, "T1", c.Token().AccessToken)
	assert.NoError(t, c.LastRenewError())
}

func TestToken_StaleWhileRevalidate(t *testing.T) {
	renewer := &fakeRenewer{}
	c, _, clock := newTestCache(t, renewer)
	c.SetFromLogin(login("T0"))

	clock.Advance(DefaultInterval + time.Second)
	assert.Equal(t, StateStale, c.Status().State)

	assert.Equal(t, "T0", c.Token().AccessToken, "stale value is served while renewing")

	c.Wait()
	assert.Equal(t, "T1", c.Token().AccessToken)
	assert.Equal(t, StateFresh, c.Status().State)
}

func TestRenew_ConcurrentCallsShareOneRequest(t *testing.T) {
	renewer := &fakeRenewer{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	c, _, _ := newTestCache(t, renewer)
	c.SetFromLogin(login("T0"))

	var wg sync.WaitGroup
	results := make([]*models.TokenDetails, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Renew(context.Background())
		}(i)
	}

	<-renewer.entered
	assert.Equal(t, "T0", c.Token().AccessToken, "readers see the previous token during renewal")

	// Give the remaining callers time to join the in-flight renewal
	time.Sleep(20 * time.Millisecond)
	close(renewer.gate)
	wg.Wait()

	assert.Equal(t, int32(1), renewer.calls.Load())
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "T1", r.AccessToken)
	}
}

func TestInvalidate_DropsTokenUserAndDependents(t *testing.T) {
	renewer := &fakeRenewer{}
	projects := cache.Key{"projects"}
	c, store, _ := newTestCache(t, renewer, WithDependents(projects, cache.Key{"profile"}))

	c.SetFromLogin(login("T1"))
	require.NoError(t, store.Set(cache.Key{"projects", ""}, []string{"a"}))
	require.NoError(t, store.Set(cache.Key{"profile"}, "me"))
	require.NoError(t, store.Set(cache.Key{"ui", "theme"}, "dark"))

	c.Invalidate()

	assert.Nil(t, c.Token())
	assert.Nil(t, c.User())
	_, ok := store.Get(cache.Key{"projects", ""})
	assert.False(t, ok)
	_, ok = store.Get(cache.Key{"profile"})
	assert.False(t, ok)
	_, ok = store.Get(cache.Key{"ui", "theme"})
	assert.True(t, ok, "unrelated entries survive")

	c.Wait()
	assert.Zero(t, renewer.calls.Load(), "an explicit sign-out does not trigger renewal")
	assert.Equal(t, StateSignedOut, c.Status().State)
}

func TestInvalidate_InFlightRenewalDoesNotRestoreSession(t *testing.T) {
	renewer := &fakeRenewer{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	c, _, _ := newTestCache(t, renewer)
	c.SetFromLogin(login("T0"))

	done := make(chan *models.TokenDetails)
	go func() {
		done <- c.Renew(context.Background())
	}()

	<-renewer.entered
	c.Invalidate()
	close(renewer.gate)

	assert.Nil(t, <-done)
	assert.Nil(t, c.Token())
}

func TestRequire(t *testing.T) {
	t.Run("uses cached token", func(t *testing.T) {
		renewer := &fakeRenewer{}
		c, _, _ := newTestCache(t, renewer)
		c.SetFromLogin(login("T0"))

		token, err := c.Require(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "T0", token.AccessToken)
		assert.Zero(t, renewer.calls.Load())
	})

	t.Run("renews when empty", func(t *testing.T) {
		renewer := &fakeRenewer{}
		c, _, _ := newTestCache(t, renewer)

		token, err := c.Require(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "T1", token.AccessToken)
	})

	t.Run("signed out when renewal fails", func(t *testing.T) {
		renewer := &fakeRenewer{}
		renewer.fail(errors.New("no cookie"))
		c, _, _ := newTestCache(t, renewer)

		_, err := c.Require(context.Background())
		assert.ErrorIs(t, err, ErrSignedOut)
		assert.Error(t, c.LastRenewError())
	})
}

func TestTicker_RenewsPeriodicallyUntilStopped(t *testing.T) {
	renewer := &fakeRenewer{}
	c, _, _ := newTestCache(t, renewer, WithInterval(10*time.Millisecond))
	c.SetFromLogin(login("T0"))

	c.Token()

	assert.Eventually(t, func() bool {
		return renewer.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	c.Stop()
	calls := renewer.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, renewer.calls.Load(), "no renewals after Stop")
}

func TestOnlySessionWritesAuthKeys(t *testing.T) {
	c, store, _ := newTestCache(t, &fakeRenewer{})
	c.SetFromLogin(login("T1"))

	err := store.Set(TokenKey, &models.TokenDetails{AccessToken: "forged"})
	assert.ErrorIs(t, err, cache.ErrReserved)
	assert.ErrorIs(t, store.Remove(UserKey), cache.ErrReserved)
	assert.Equal(t, "T1", c.Token().AccessToken)

	_, err = New(store, &fakeRenewer{})
	assert.Error(t, err, "a second session cannot share the store")
}
