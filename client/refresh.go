package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultRefreshTimeout bounds a single refresh exchange
const DefaultRefreshTimeout = 10 * time.Second

// Refresher exchanges a refresh token for a new credential pair.
// TokenEndpoint is the production implementation.
type Refresher interface {
	Refresh(ctx context.Context, refresh string) (*CredentialPair, error)
}

// RefreshState is the Coordinator's state machine position
type RefreshState int

const (
	StateIdle RefreshState = iota
	StateRefreshing
	StateLoggedOut
)

func (s RefreshState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	case StateLoggedOut:
		return "logged_out"
	}
	return fmt.Sprintf("RefreshState(%d)", int(s))
}

// refreshKey is the single singleflight key: one exchange per Coordinator
const refreshKey = "refresh"

// Coordinator refreshes the credential pair with single-flight semantics: when
// many callers find the access token stale at once, exactly one exchange runs
// and every caller resumes with its outcome.
//
// Transitions: idle → refreshing → idle (success or transient failure), or
// refreshing → logged_out (fatal failure). logged_out is terminal until Reset.
type Coordinator struct {
	store     *CredentialStore
	refresher Refresher
	evaluator *Evaluator
	clock     Clock
	timeout   time.Duration
	logger    *slog.Logger

	group   singleflight.Group
	waiting atomic.Int32 // callers holding a flight handle

	mu      sync.Mutex
	state   RefreshState
	gen     uint64 // bumped by Reset and MarkLoggedOut
	onFatal func(cause error)
}

// NewCoordinator creates a Coordinator that writes refreshed pairs to store
func NewCoordinator(store *CredentialStore, refresher Refresher, evaluator *Evaluator) *Coordinator {
	return &Coordinator{
		store:     store,
		refresher: refresher,
		evaluator: evaluator,
		clock:     RealClock{},
		timeout:   DefaultRefreshTimeout,
		logger:    slog.Default(),
	}
}

// OnFatal registers the callback run after a fatal failure has cleared the
// store. It runs outside the Coordinator's lock, once per fatal exchange.
func (c *Coordinator) OnFatal(fn func(cause error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFatal = fn
}

// State returns the current state
func (c *Coordinator) State() RefreshState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset returns a logged-out Coordinator to idle. Called after a new login.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.state == StateLoggedOut {
		c.state = StateIdle
	}
}

// MarkLoggedOut moves the Coordinator to its terminal state after an explicit
// logout. An exchange still in flight will not persist its result.
func (c *Coordinator) MarkLoggedOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state = StateLoggedOut
}

// Refresh returns a fresh credential pair, joining the in-flight exchange if
// there is one. stale is the access token the caller found unusable; if the
// store already holds a different, usable token the exchange is skipped.
//
// Cancelling ctx only abandons this caller's wait: the exchange keeps running
// for the other waiters and is bounded by the refresh timeout instead.
func (c *Coordinator) Refresh(ctx context.Context, stale string) (*CredentialPair, error) {
	c.mu.Lock()
	if c.state == StateLoggedOut {
		c.mu.Unlock()
		return nil, ErrUnauthenticated
	}
	c.mu.Unlock()

	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return c.exchange(context.WithoutCancel(ctx), stale)
	})
	c.waiting.Add(1)
	defer c.waiting.Add(-1)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*CredentialPair), nil
	}
}

// exchange runs once per flight; its result is shared by every waiter.
// Every outcome is checked against the generation captured at the start, so
// a logout or a new login that lands mid-flight is never undone by it.
func (c *Coordinator) exchange(ctx context.Context, stale string) (*CredentialPair, error) {
	c.mu.Lock()
	if c.state == StateLoggedOut {
		c.mu.Unlock()
		return nil, ErrUnauthenticated
	}
	c.state = StateRefreshing
	gen := c.gen
	c.mu.Unlock()

	current := c.store.Current()
	if current != nil && current.Access != stale && c.evaluator.IsUsable(current.Access, c.clock.Now()) {
		// a previous flight already rotated the pair
		c.finish()
		return current, nil
	}
	if !current.HasRefreshToken() {
		c.mu.Lock()
		if c.gen != gen {
			defer c.mu.Unlock()
			return c.supersededLocked()
		}
		return nil, c.failLocked(ctx, fmt.Errorf("%w: no refresh token stored", ErrFatalAuth))
	}

	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("refreshing access token")
	pair, err := c.refresher.Refresh(rctx, current.Refresh)

	c.mu.Lock()
	if c.gen != gen {
		// logged out or logged in again while the exchange was in flight
		defer c.mu.Unlock()
		return c.supersededLocked()
	}
	switch {
	case err == nil:
		c.state = StateIdle
		serr := c.store.Save(ctx, pair)
		c.mu.Unlock()
		if serr != nil {
			c.logger.Warn("failed to persist refreshed credentials", "err", serr)
			return nil, fmt.Errorf("%w: %w", ErrTransientAuth, serr)
		}
		c.logger.Debug("access token refreshed")
		return pair, nil

	case errors.Is(err, ErrFatalAuth):
		return nil, c.failLocked(ctx, err)

	default:
		c.state = StateIdle
		c.mu.Unlock()
		if !errors.Is(err, ErrTransientAuth) {
			err = fmt.Errorf("%w: %w", ErrTransientAuth, err)
		}
		c.logger.Warn("token refresh failed, keeping session", "err", err)
		return nil, err
	}
}

// supersededLocked answers the waiters of a flight that a logout or login
// overtook. The store belongs to the newer session and is left alone.
func (c *Coordinator) supersededLocked() (*CredentialPair, error) {
	if c.state != StateLoggedOut {
		c.state = StateIdle
		if cur := c.store.Current(); cur != nil {
			return cur, nil
		}
	}
	return nil, ErrUnauthenticated
}

// failLocked handles a fatal failure: clear the store, enter logged_out, then
// notify. c.mu must be held and is released before the callback runs.
func (c *Coordinator) failLocked(ctx context.Context, cause error) error {
	c.logger.Error("refresh token rejected, ending session", "err", cause)
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("failed to clear credentials", "err", err)
	}
	c.state = StateLoggedOut
	onFatal := c.onFatal
	c.mu.Unlock()

	if onFatal != nil {
		onFatal(cause)
	}
	return &fatalError{cause: cause}
}

// finish ends a flight that changed nothing; a logout that landed meanwhile wins
func (c *Coordinator) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRefreshing {
		c.state = StateIdle
	}
}
