package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/obstaclehub/records-api/internal/dependencies/clock"
	"github.com/obstaclehub/records-api/internal/dependencies/mocks"
	"github.com/obstaclehub/records-api/internal/dependencies/random"
	"github.com/obstaclehub/records-api/internal/testutil"
)

func verifyOK(context.Context, string) (bool, error)   { return true, nil }
func verifyFail(context.Context, string) (bool, error) { return false, nil }

type CoordinatorSuite struct {
	suite.Suite
	c   *Coordinator
	ctx context.Context
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.c = New(Config{Timeout: 2 * time.Second}, clock.New(), random.New(), testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *CoordinatorSuite) TearDownTest() {
	s.c.Close()
}

// stateName reads the current state of an attempt, for ordering assertions.
func (s *CoordinatorSuite) stateName(id StateID) string {
	s.c.mu.RLock()
	e, ok := s.c.entries[id]
	s.c.mu.RUnlock()
	if !ok {
		return ""
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.stateName()
}

func (s *CoordinatorSuite) waitState(id StateID, name string) {
	s.Require().Eventually(func() bool {
		return s.stateName(id) == name
	}, time.Second, 2*time.Millisecond)
}

// runOAuth drives both sides through the OAuth step and returns the code
// displayed in the browser.
func (s *CoordinatorSuite) runOAuth(id StateID) Code {
	gameErr := make(chan error, 1)
	go func() {
		gameErr <- s.c.WaitForOAuth(s.ctx, id, verifyOK)
	}()

	code, err := s.c.NotifyInGame(s.ctx, id, "access-token")
	s.Require().NoError(err)
	s.Require().NoError(<-gameErr)
	s.Require().Len(string(code), 10)
	return code
}

func (s *CoordinatorSuite) TestFullFlowGameFirst() {
	id, err := s.c.RequestAuth(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(string(id), 20)

	gameErr := make(chan error, 1)
	go func() {
		gameErr <- s.c.WaitForOAuth(s.ctx, id, verifyOK)
	}()
	s.waitState(id, "OAuthByGame")

	code, err := s.c.NotifyInGame(s.ctx, id, "access-token")
	s.Require().NoError(err)
	s.Require().NoError(<-gameErr)

	browserErr := make(chan error, 1)
	go func() {
		browserErr <- s.c.WaitCodeValidation(s.ctx, id)
	}()
	s.waitState(id, "CodeByBrowser")

	token, err := s.c.ValidateCode(s.ctx, id, code)
	s.Require().NoError(err)
	s.Len(string(token), 256)
	s.Require().NoError(<-browserErr)
}

func (s *CoordinatorSuite) TestFullFlowBrowserFirst() {
	id, err := s.c.RequestAuth(s.ctx)
	s.Require().NoError(err)

	type browserResult struct {
		code Code
		err  error
	}
	browserCh := make(chan browserResult, 1)
	go func() {
		code, err := s.c.NotifyInGame(s.ctx, id, "access-token")
		browserCh <- browserResult{code, err}
	}()
	s.waitState(id, "OAuthByBrowser")

	s.Require().NoError(s.c.WaitForOAuth(s.ctx, id, verifyOK))

	res := <-browserCh
	s.Require().NoError(res.err)

	// Game validates before the browser starts waiting; the browser's wait
	// then observes the already-valid state.
	token, err := s.c.ValidateCode(s.ctx, id, res.code)
	s.Require().NoError(err)
	s.Len(string(token), 256)

	s.Require().NoError(s.c.WaitCodeValidation(s.ctx, id))
}

func (s *CoordinatorSuite) TestInvalidAccessToken() {
	id, err := s.c.RequestAuth(s.ctx)
	s.Require().NoError(err)

	gameErr := make(chan error, 1)
	go func() {
		gameErr <- s.c.WaitForOAuth(s.ctx, id, verifyFail)
	}()
	s.waitState(id, "OAuthByGame")

	_, err = s.c.NotifyInGame(s.ctx, id, "stolen-token")
	s.ErrorIs(err, ErrChannelClosed)
	s.ErrorIs(<-gameErr, ErrInvalidAccessToken)
}

func (s *CoordinatorSuite) TestVerifierError() {
	id, err := s.c.RequestAuth(s.ctx)
	s.Require().NoError(err)

	boom := errors.New("provider unreachable")
	gameErr := make(chan error, 1)
	go func() {
		gameErr <- s.c.WaitForOAuth(s.ctx, id, func(context.Context, string) (bool, error) {
			return false, boom
		})
	}()
	s.waitState(id, "OAuthByGame")

	_, err = s.c.NotifyInGame(s.ctx, id, "access-token")
	s.ErrorIs(err, ErrChannelClosed)

	err = <-gameErr
	var checkErr *AccessTokenCheckError
	s.Require().ErrorAs(err, &checkErr)
	s.ErrorIs(checkErr.Err, boom)
}

func (s *CoordinatorSuite) TestWrongCodeSolo() {
	id, err := s.c.RequestAuth(s.ctx)
	s.Require().NoError(err)
	s.runOAuth(id)

	_, err = s.c.ValidateCode(s.ctx, id, "wrong000001")
	s.ErrorIs(err, ErrInvalidCode)
	_, err = s.c.ValidateCode(s.ctx, id, "wrong000002")
	s.ErrorIs(err, ErrInvalidCode)
	_, err = s.c.ValidateCode(s.ctx, id, "wrong000003")
	s.ErrorIs(err, ErrCodeFailed)

	// The attempt stays dead.
	_, err = s.c.ValidateCode(s.ctx, id, "wrong000004")
	s.ErrorIs(err, ErrCodeFailed)
}

func (s *CoordinatorSuite) TestWrongCodeThenCorrectSolo() {
	id, err := s.c.RequestAuth(s.ctx)
	s.Require().NoError(err)
	code := s.runOAuth(id)

	_, err = s.c.ValidateCode(s.ctx, id, "wrong000001")
	s.ErrorIs(err, ErrInvalidCode)

	token, err := s.c.ValidateCode(s.ctx, id, code)
	s.Require().NoError(err)
	s.Len(string(token), 256)
}

func (s *CoordinatorSuite) TestWrongCodeWithBrowserWaiting() {
	id, err := s.c.RequestAuth(s.ctx)
	s.Require().NoError(err)
	code := s.runOAuth(id)

	browserErr := make(chan error, 1)
	go func() {
		browserErr <- s.c.WaitCodeValidation(s.ctx, id)
	}()
	s.waitState(id, "CodeByBrowser")

	_, err = s.c.ValidateCode(s.ctx, id, "wrong000001")
	s.ErrorIs(err, ErrInvalidCode)
	s.waitState(id, "CodeByBrowser")

	token, err := s.c.ValidateCode(s.ctx, id, code)
	s.Require().NoError(err)
	s.Len(string(token), 256)
	s.Require().NoError(<-browserErr)
}

func (s *CoordinatorSuite) TestCodeFailedWithBrowserWaiting() {
	id, err := s.c.RequestAuth(s.ctx)
	s.Require().NoError(err)
	s.runOAuth(id)

	browserErr := make(chan error, 1)
	go func() {
		browserErr <- s.c.WaitCodeValidation(s.ctx, id)
	}()
	s.waitState(id, "CodeByBrowser")

	_, err = s.c.ValidateCode(s.ctx, id, "wrong000001")
	s.ErrorIs(err, ErrInvalidCode)
	s.waitState(id, "CodeByBrowser")
	_, err = s.c.ValidateCode(s.ctx, id, "wrong000002")
	s.ErrorIs(err, ErrInvalidCode)
	s.waitState(id, "CodeByBrowser")
	_, err = s.c.ValidateCode(s.ctx, id, "wrong000003")
	s.ErrorIs(err, ErrCodeFailed)

	s.ErrorIs(<-browserErr, ErrCodeFailed)
}

func (s *CoordinatorSuite) TestTokenIssuedAtMostOnce() {
	id, err := s.c.RequestAuth(s.ctx)
	s.Require().NoError(err)
	code := s.runOAuth(id)

	_, err = s.c.ValidateCode(s.ctx, id, code)
	s.Require().NoError(err)

	// Replaying the code does not mint a second token.
	_, err = s.c.ValidateCode(s.ctx, id, code)
	s.ErrorIs(err, ErrInvalidAuthState)
}

func (s *CoordinatorSuite) TestUnknownState() {
	err := s.c.WaitForOAuth(s.ctx, "AAAAAAAAAAAAAAAAAAAA", verifyOK)
	s.ErrorIs(err, ErrStateNotReceived)

	_, err = s.c.NotifyInGame(s.ctx, "AAAAAAAAAAAAAAAAAAAA", "token")
	s.ErrorIs(err, ErrStateNotReceived)
}

func (s *CoordinatorSuite) TestWrongOrderKeepsState() {
	id, err := s.c.RequestAuth(s.ctx)
	s.Require().NoError(err)

	// Jumping to the code step before OAuth is rejected and does not corrupt
	// the attempt.
	_, err = s.c.ValidateCode(s.ctx, id, "some-code1")
	s.ErrorIs(err, ErrInvalidAuthState)
	err = s.c.WaitCodeValidation(s.ctx, id)
	s.ErrorIs(err, ErrInvalidAuthState)

	code := s.runOAuth(id)
	token, err := s.c.ValidateCode(s.ctx, id, code)
	s.Require().NoError(err)
	s.Len(string(token), 256)
}

func (s *CoordinatorSuite) TestNoBrowserTimesOut() {
	c := New(Config{Timeout: 100 * time.Millisecond}, clock.New(), random.New(), testutil.NopLogger())
	defer c.Close()

	id, err := c.RequestAuth(s.ctx)
	s.Require().NoError(err)

	err = c.WaitForOAuth(s.ctx, id, verifyOK)
	// The entry reaper runs on the same window, so the wait observes either
	// its own timeout or the entry removal.
	s.True(errors.Is(err, ErrTimeout) || errors.Is(err, ErrChannelClosed), "got %v", err)
}

func (s *CoordinatorSuite) TestIdleExpiry() {
	c := New(Config{Timeout: 50 * time.Millisecond}, clock.New(), random.New(), testutil.NopLogger())
	defer c.Close()

	id, err := c.RequestAuth(s.ctx)
	s.Require().NoError(err)

	s.Require().Eventually(func() bool {
		c.mu.RLock()
		_, ok := c.entries[id]
		c.mu.RUnlock()
		return !ok
	}, time.Second, 5*time.Millisecond)

	err = c.WaitForOAuth(s.ctx, id, verifyOK)
	s.ErrorIs(err, ErrStateNotReceived)
}

func (s *CoordinatorSuite) TestTooManyRequests() {
	c := New(Config{MaxConcurrentAttempts: 2, Timeout: time.Minute}, clock.New(), random.New(), testutil.NopLogger())
	defer c.Close()

	for i := 0; i < 3; i++ {
		_, err := c.RequestAuth(s.ctx)
		s.Require().NoError(err)
	}
	_, err := c.RequestAuth(s.ctx)
	s.ErrorIs(err, ErrTooManyRequests)
}

func (s *CoordinatorSuite) TestMockedSecrets() {
	rnd := mocks.NewMockRandom()
	rnd.QueueString("AAAAAAAAAAAAAAAAAAAA", "CODE123456", "TOKENVALUE")
	clk := mocks.NewMockClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	c := New(Config{Timeout: time.Second}, clk, rnd, testutil.NopLogger())
	defer c.Close()

	id, err := c.RequestAuth(s.ctx)
	s.Require().NoError(err)
	s.Equal(StateID("AAAAAAAAAAAAAAAAAAAA"), id)

	gameErr := make(chan error, 1)
	go func() {
		gameErr <- c.WaitForOAuth(s.ctx, id, verifyOK)
	}()
	code, err := c.NotifyInGame(s.ctx, id, "access-token")
	s.Require().NoError(err)
	s.Require().NoError(<-gameErr)
	s.Equal(Code("CODE123456"), code)

	token, err := c.ValidateCode(s.ctx, id, code)
	s.Require().NoError(err)
	s.Equal(Token("TOKENVALUE"), token)
}

func (s *CoordinatorSuite) TestContextCancelled() {
	id, err := s.c.RequestAuth(s.ctx)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.ctx)
	gameErr := make(chan error, 1)
	go func() {
		gameErr <- s.c.WaitForOAuth(ctx, id, verifyOK)
	}()
	s.waitState(id, "OAuthByGame")

	cancel()
	s.ErrorIs(<-gameErr, context.Canceled)
}
