// Package session owns the client's view of "am I signed in, and with what
// access token". The token and user live in the query cache under the
// reserved ["auth"] prefix; only this package writes them.
//
// Token reads never block. A token older than the renewal interval is
// served as-is while a background renewal runs, and a fixed ticker renews
// it on the same interval regardless of the token's own expiry. Failed
// renewals leave the cached token in place and are only visible through
// LastRenewError.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"launchpad/internal/cache"
	"launchpad/internal/models"

	"golang.org/x/sync/singleflight"
)

// DefaultInterval is the renewal period
const DefaultInterval = time.Minute

var (
	authPrefix = cache.Key{"auth"}

	// TokenKey holds the *models.TokenDetails, or nil when signed out
	TokenKey = cache.Key{"auth", "token"}
	// UserKey holds the *models.User of the signed-in account
	UserKey = cache.Key{"auth", "user"}
)

// ErrSignedOut is returned by Require when no token can be obtained
var ErrSignedOut = errors.New("not signed in")

// errSuperseded marks a renewal that finished after a sign-in or sign-out
var errSuperseded = errors.New("renewal superseded")

// Renewer exchanges the out-of-band refresh credential for a new token
type Renewer interface {
	Renew(ctx context.Context) (*models.TokenDetails, error)
}

// State is a coarse description of the session
type State string

const (
	StateSignedOut State = "signed out"
	StateFresh     State = "fresh"
	StateStale     State = "stale"
	StateRenewing  State = "renewing"
)

// Status is a point-in-time snapshot for diagnostics
type Status struct {
	State       State
	Token       *models.TokenDetails
	UpdatedAt   time.Time
	LastRenewAt time.Time
	LastError   error
}

// Option configures a Cache
type Option func(*Cache)

// WithInterval sets the renewal period
func WithInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithDependents lists the cache prefixes holding authenticated data.
// They are dropped on Invalidate.
func WithDependents(prefixes ...cache.Key) Option {
	return func(c *Cache) {
		c.dependents = append(c.dependents, prefixes...)
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// Cache is the session service. Construct one per process with New and
// pass it to whatever needs a token.
type Cache struct {
	store      *cache.Store
	scope      *cache.Scope
	renewer    Renewer
	interval   time.Duration
	dependents []cache.Key
	logger     *slog.Logger

	group    singleflight.Group
	inflight atomic.Bool
	asyncMu  sync.Mutex
	asyncWg  sync.WaitGroup

	bgCtx     context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	done      chan struct{}

	mu          sync.Mutex
	generation  uint64
	lastErr     error
	lastRenewAt time.Time
}

// New reserves the ["auth"] prefix of store and returns the session
func New(store *cache.Store, renewer Renewer, opts ...Option) (*Cache, error) {
	scope, err := store.Reserve(authPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve session keys: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		store:    store,
		scope:    scope,
		renewer:  renewer,
		interval: DefaultInterval,
		logger:   slog.Default(),
		bgCtx:    ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "session")

	return c, nil
}

// Interval returns the renewal period
func (c *Cache) Interval() time.Duration {
	return c.interval
}

// Token returns the cached token, or nil when signed out. The first call
// starts the renewal ticker. A missing or stale entry triggers a background
// renewal; the current value is returned without waiting for it.
func (c *Cache) Token() *models.TokenDetails {
	c.startOnce.Do(c.start)

	e, exists := c.store.Get(TokenKey)
	if !exists || (e.Value != nil && e.Age(c.store.Now()) >= c.interval) {
		c.renewAsync()
	}

	token, _ := e.Value.(*models.TokenDetails)
	return token
}

// User returns the cached account, if a sign-in seeded one
func (c *Cache) User() *models.User {
	user, _, _ := cache.Lookup[*models.User](c.store, UserKey)
	return user
}

// Renew exchanges the refresh credential for a new token. On success the
// cached token is replaced and returned. On failure the cache is left
// untouched and nil is returned. Concurrent calls share one request.
func (c *Cache) Renew(ctx context.Context) *models.TokenDetails {
	v, err, _ := c.group.Do("renew", func() (any, error) {
		return c.renew(ctx)
	})
	if err != nil {
		return nil
	}
	token, _ := v.(*models.TokenDetails)
	return token
}

func (c *Cache) renew(ctx context.Context) (*models.TokenDetails, error) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	token, err := c.renewer.Renew(ctx)
	if err == nil && (token == nil || token.AccessToken == "") {
		err = errors.New("renewal returned no access token")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastRenewAt = c.store.Now()
	if err != nil {
		c.lastErr = err
		c.logger.Debug("Token renewal failed", "error", err)
		return nil, err
	}
	c.lastErr = nil

	if gen != c.generation {
		c.logger.Debug("Discarding renewal superseded by sign-in or sign-out")
		return nil, errSuperseded
	}

	if err := c.scope.Set(TokenKey, token); err != nil {
		return nil, err
	}
	return token, nil
}

// renewAsync starts a background renewal unless one is already running
func (c *Cache) renewAsync() {
	if !c.inflight.CompareAndSwap(false, true) {
		return
	}

	c.asyncMu.Lock()
	if c.bgCtx.Err() != nil {
		c.asyncMu.Unlock()
		c.inflight.Store(false)
		return
	}
	c.asyncWg.Add(1)
	c.asyncMu.Unlock()

	go func() {
		defer c.asyncWg.Done()
		defer c.inflight.Store(false)
		c.Renew(c.bgCtx)
	}()
}

// Invalidate signs out locally: the token becomes an explicit nil, the
// user and every dependent entry are dropped. A renewal already in flight
// will not restore the old session.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if err := c.scope.Set(TokenKey, nil); err != nil {
		c.logger.Error("Failed to clear token", "error", err)
	}
	c.scope.Remove(UserKey)

	for _, prefix := range c.dependents {
		if _, err := c.store.RemovePrefix(prefix); err != nil {
			c.logger.Error("Failed to drop dependent entries", "prefix", prefix.String(), "error", err)
		}
	}
}

// SetFromLogin seeds the token and user right after an interactive
// sign-in so dependent queries are enabled immediately.
func (c *Cache) SetFromLogin(details *models.AuthUserDetails) {
	if details == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.lastErr = nil

	user := details.User
	if err := c.scope.Set(TokenKey, details.TokenDetails()); err != nil {
		c.logger.Error("Failed to seed token", "error", err)
	}
	if err := c.scope.Set(UserKey, &user); err != nil {
		c.logger.Error("Failed to seed user", "error", err)
	}
}

// Require returns the cached token, renewing synchronously when there is
// none. It is the "redirect if signed out" check run before protected
// work starts.
func (c *Cache) Require(ctx context.Context) (*models.TokenDetails, error) {
	if token, _, ok := cache.Lookup[*models.TokenDetails](c.store, TokenKey); ok && token != nil {
		return token, nil
	}
	if token := c.Renew(ctx); token != nil {
		return token, nil
	}
	return nil, ErrSignedOut
}

// LastRenewError returns the error of the most recent renewal, nil if it
// succeeded or none ran.
func (c *Cache) LastRenewError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Status describes the session without triggering a renewal
func (c *Cache) Status() Status {
	c.mu.Lock()
	s := Status{LastRenewAt: c.lastRenewAt, LastError: c.lastErr}
	c.mu.Unlock()

	e, exists := c.store.Get(TokenKey)
	s.Token, _ = e.Value.(*models.TokenDetails)
	s.UpdatedAt = e.UpdatedAt

	switch {
	case c.inflight.Load():
		s.State = StateRenewing
	case !exists || s.Token == nil:
		s.State = StateSignedOut
	case e.Age(c.store.Now()) >= c.interval:
		s.State = StateStale
	default:
		s.State = StateFresh
	}
	return s
}

// start launches the renewal ticker
func (c *Cache) start() {
	if c.bgCtx.Err() != nil {
		return
	}
	c.started.Store(true)
	go c.loop()
}

func (c *Cache) loop() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.bgCtx.Done():
			return
		case <-ticker.C:
			if c.signedOut() {
				continue
			}
			c.renewAsync()
		}
	}
}

// signedOut reports an explicit sign-out
func (c *Cache) signedOut() bool {
	e, exists := c.store.Get(TokenKey)
	return exists && e.Value == nil
}

// Stop ends the renewal ticker and waits for background renewals
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		// Prevent a later Token call from starting the ticker
		c.startOnce.Do(func() {})

		c.asyncMu.Lock()
		c.cancel()
		c.asyncMu.Unlock()

		if c.started.Load() {
			<-c.done
		}
		c.asyncWg.Wait()
	})
}

// Wait blocks until background renewals started so far have finished
func (c *Cache) Wait() {
	c.asyncWg.Wait()
}
