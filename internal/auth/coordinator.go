// Package auth implements the two-party cross-device authentication flow.
//
// A login attempt involves two independent request flows: the game endpoint,
// which cannot handle an OAuth redirect itself, and the player's browser,
// which performs the OAuth dance with the identity provider. The Coordinator
// proves to the game that the browser session belongs to the same player, by
// rendezvousing the two flows over per-attempt state: the browser hands over
// its access token for the game handler to verify, then displays a short code
// that the player types into the game.
package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/obstaclehub/records-api/internal/dependencies/clock"
	"github.com/obstaclehub/records-api/internal/dependencies/random"
)

// Config holds configuration for the auth coordinator
type Config struct {
	// Timeout bounds every channel await and the per-entry idle expiry.
	Timeout time.Duration
	// MaxConcurrentAttempts is the advisory cap on live attempts.
	MaxConcurrentAttempts int
	// MaxCodeTries is the number of code attempts before the flow dies.
	MaxCodeTries int
}

// DefaultConfig returns default coordinator configuration
func DefaultConfig() Config {
	return Config{
		Timeout:               5 * time.Second,
		MaxConcurrentAttempts: 50,
		MaxCodeTries:          3,
	}
}

// VerifyFunc checks an access token against the external identity provider.
// It returns false when the token does not belong to the expected player.
type VerifyFunc func(ctx context.Context, accessToken string) (bool, error)

// Coordinator owns the map of live authentication attempts and mediates all
// communication between the game-side and browser-side handlers.
type Coordinator struct {
	cfg    Config
	clock  clock.Clock
	random random.Random
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[StateID]*entry

	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a new Coordinator
func New(cfg Config, clk clock.Clock, rnd random.Random, logger *slog.Logger) *Coordinator {
	def := DefaultConfig()
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxConcurrentAttempts == 0 {
		cfg.MaxConcurrentAttempts = def.MaxConcurrentAttempts
	}
	if cfg.MaxCodeTries == 0 {
		cfg.MaxCodeTries = def.MaxCodeTries
	}
	return &Coordinator{
		cfg:     cfg,
		clock:   clk,
		random:  rnd,
		logger:  logger,
		entries: make(map[StateID]*entry),
		closed:  make(chan struct{}),
	}
}

// Close stops all entry reapers. Live attempts are abandoned.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// RequestAuth starts a new authentication attempt and returns its state ID.
//
// The size check is advisory: it reads the map under the read lock, so it is
// a floor on the cost of concurrent attempts rather than a strict capacity
// bound.
func (c *Coordinator) RequestAuth(ctx context.Context) (StateID, error) {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	if n > c.cfg.MaxConcurrentAttempts {
		return "", ErrTooManyRequests
	}

	id := newStateID(c.random)
	e := newEntry(c.clock.Now())

	c.mu.Lock()
	c.entries[id] = e
	c.mu.Unlock()

	go c.reap(id, e)

	return id, nil
}

// reap expires the entry once no transition happens within a timeout window.
func (c *Coordinator) reap(id StateID, e *entry) {
	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()
	for {
		select {
		case <-e.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(c.cfg.Timeout)
		case <-timer.C:
			c.mu.Lock()
			delete(c.entries, id)
			c.mu.Unlock()
			close(e.done)
			c.logger.Info("removing authentication state", slog.String("state_id", string(id)))
			return
		case <-c.closed:
			return
		}
	}
}

// sync locks the entry of the given state ID and runs f on it. The entry lock
// is released before sync returns, so f must not suspend.
func (c *Coordinator) sync(id StateID, f func(e *entry) error) error {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return ErrStateNotReceived
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return f(e)
}

// WaitForOAuth is called by the game handler after it asked the player to
// begin the browser flow. It waits for the browser's access token, verifies
// it, and reports the verdict back to the browser.
//
// On a false verdict the browser side is not notified; its verdict await
// observes the dropped channel and fails.
func (c *Coordinator) WaitForOAuth(ctx context.Context, id StateID, verify VerifyFunc) error {
	var (
		verdictTx chan error
		tokenRx   chan string
		done      chan struct{}
	)
	err := c.sync(id, func(e *entry) error {
		switch st := e.transition().(type) {
		case stateWaiting:
			verdictTx, tokenRx = crossChannel(e, c.clock.Now(), func(tx chan string, rx chan error) authState {
				return stateOAuthByGame{tokenTx: tx, verdictRx: rx}
			})
		case stateOAuthByBrowser:
			verdictTx, tokenRx = st.verdictTx, st.tokenRx
		default:
			e.restore(st)
			return ErrInvalidAuthState
		}
		done = e.done
		return nil
	})
	if err != nil {
		return err
	}

	token, err := recv(ctx, tokenRx, done, c.cfg.Timeout)
	if err != nil {
		close(verdictTx)
		return err
	}

	ok, err := verify(ctx, token)
	switch {
	case err != nil:
		close(verdictTx)
		return &AccessTokenCheckError{Err: err}
	case !ok:
		close(verdictTx)
		return ErrInvalidAccessToken
	}

	return send(verdictTx, nil)
}

// NotifyInGame is called by the browser handler once it obtained an access
// token from the identity provider. It hands the token to the game handler,
// waits for the verification verdict, and on success generates the code to be
// displayed to the player.
func (c *Coordinator) NotifyInGame(ctx context.Context, id StateID, accessToken string) (Code, error) {
	var (
		tokenTx   chan string
		verdictRx chan error
		done      chan struct{}
	)
	err := c.sync(id, func(e *entry) error {
		switch st := e.transition().(type) {
		case stateWaiting:
			tokenTx, verdictRx = crossChannel(e, c.clock.Now(), func(tx chan error, rx chan string) authState {
				return stateOAuthByBrowser{verdictTx: tx, tokenRx: rx}
			})
		case stateOAuthByGame:
			tokenTx, verdictRx = st.tokenTx, st.verdictRx
		default:
			e.restore(st)
			return ErrInvalidAuthState
		}
		done = e.done
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := send(tokenTx, accessToken); err != nil {
		return "", err
	}
	verdict, err := recv(ctx, verdictRx, done, c.cfg.Timeout)
	if err != nil {
		return "", err
	}
	if verdict != nil {
		return "", verdict
	}

	code := newCode(c.random)
	hash := hashCode(code, id)

	// The code never leaves this function in cleartext again; the entry only
	// retains the hash.
	err = c.sync(id, func(e *entry) error {
		e.setState(stateCodeGenerated{hash: hash}, c.clock.Now())
		return nil
	})
	if err != nil {
		return "", err
	}

	return code, nil
}

// ValidateCode is called by the game handler once the player typed the
// displayed code. On success it issues the authentication token.
func (c *Coordinator) ValidateCode(ctx context.Context, id StateID, code Code) (Token, error) {
	var (
		codeTx      chan Code
		verdictRx   chan error
		done        chan struct{}
		browserSide bool
	)
	err := c.sync(id, func(e *entry) error {
		switch st := e.transition().(type) {
		case stateCodeGenerated:
			return c.tryValidate(e, id, code, st.hash, 0)
		case stateCodeInvalidByGame:
			return c.tryValidate(e, id, code, st.hash, st.tries)
		case stateCodeInvalidTerminate:
			e.restore(st)
			return ErrCodeFailed
		case stateCodeByBrowser:
			codeTx, verdictRx = st.codeTx, st.verdictRx
			done = e.done
			browserSide = true
			return nil
		default:
			e.restore(st)
			return ErrInvalidAuthState
		}
	})
	if err != nil {
		return "", err
	}

	if browserSide {
		// The browser reached the code step first; let it judge the code.
		if err := send(codeTx, code); err != nil {
			return "", err
		}
		verdict, err := recv(ctx, verdictRx, done, c.cfg.Timeout)
		if err != nil {
			return "", err
		}
		if verdict != nil {
			return "", verdict
		}
	}

	return NewToken(c.random), nil
}

// tryValidate compares the candidate code against the retained hash, with
// tries attempts already consumed. Must be called with the entry lock held.
func (c *Coordinator) tryValidate(e *entry, id StateID, code Code, hash CodeHash, tries int) error {
	if hashCode(code, id).equal(hash) {
		e.setState(stateCodeValidByGame{}, c.clock.Now())
		return nil
	}
	tries++
	if tries >= c.cfg.MaxCodeTries {
		e.setState(stateCodeInvalidTerminate{}, c.clock.Now())
		return ErrCodeFailed
	}
	e.setState(stateCodeInvalidByGame{hash: hash, tries: tries}, c.clock.Now())
	return ErrInvalidCode
}

// WaitCodeValidation is called by the browser handler after NotifyInGame
// returned. It waits for the game to send the entered code and judges it,
// looping over retries. Attempts the game already consumed on its own while
// the browser was absent count against the cap.
func (c *Coordinator) WaitCodeValidation(ctx context.Context, id StateID) error {
	attempt := 1
	for {
		var (
			verdictTx chan error
			codeRx    chan Code
			hash      CodeHash
			done      chan struct{}
			resolved  bool
		)
		err := c.sync(id, func(e *entry) error {
			switch st := e.transition().(type) {
			case stateCodeGenerated:
				hash = st.hash
				verdictTx, codeRx = crossChannel(e, c.clock.Now(), func(tx chan Code, rx chan error) authState {
					return stateCodeByBrowser{codeTx: tx, verdictRx: rx}
				})
				done = e.done
			case stateCodeValidByGame:
				// The game validated without ever waiting for us.
				e.restore(st)
				resolved = true
			case stateCodeInvalidByGame:
				// The game consumed tries on its own; put the target back so
				// the next iteration crosses channels against the same hash.
				attempt += st.tries
				e.setState(stateCodeGenerated{hash: st.hash}, c.clock.Now())
				resolved = false
			case stateCodeInvalidTerminate:
				e.restore(st)
				return ErrCodeFailed
			default:
				e.restore(st)
				return ErrInvalidAuthState
			}
			return nil
		})
		if err != nil {
			return err
		}
		if resolved {
			return nil
		}
		if codeRx == nil {
			// Solo tries were folded into the counter; rendezvous on the next turn.
			if attempt > c.cfg.MaxCodeTries {
				return ErrCodeFailed
			}
			continue
		}

		code, err := recv(ctx, codeRx, done, c.cfg.Timeout)
		if err != nil {
			close(verdictTx)
			return err
		}

		switch {
		case hashCode(code, id).equal(hash):
			if err := send(verdictTx, nil); err != nil {
				return err
			}
			return nil
		case attempt < c.cfg.MaxCodeTries:
			if err := send(verdictTx, ErrInvalidCode); err != nil {
				return err
			}
			attempt++
			// Re-place the hash so a future game retry checks the same target.
			err := c.sync(id, func(e *entry) error {
				e.setState(stateCodeGenerated{hash: hash}, c.clock.Now())
				return nil
			})
			if err != nil {
				return err
			}
		default:
			_ = send(verdictTx, ErrCodeFailed)
			err := c.sync(id, func(e *entry) error {
				e.setState(stateCodeInvalidTerminate{}, c.clock.Now())
				return nil
			})
			if err != nil {
				return err
			}
			return ErrCodeFailed
		}
	}
}

// send delivers a value on a single-use channel without blocking.
func send[T any](ch chan T, v T) error {
	select {
	case ch <- v:
		return nil
	default:
		return ErrChannelClosed
	}
}

// recv waits for a value on a single-use channel, bounded by the timeout, the
// entry's removal and the caller's context.
func recv[T any](ctx context.Context, ch chan T, done chan struct{}, timeout time.Duration) (T, error) {
	var zero T
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v, ok := <-ch:
		if !ok {
			return zero, ErrChannelClosed
		}
		return v, nil
	case <-done:
		return zero, ErrChannelClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, ErrTimeout
	}
}
