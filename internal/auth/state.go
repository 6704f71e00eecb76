package auth

import (
	"sync"
	"time"
)

// authState is the per-attempt state machine. Exactly one variant is held by
// an entry at any instant; the transition sentinel is held while a handler
// computes the next variant and must be replaced before the handler suspends.
type authState interface {
	stateName() string
}

// stateTransition is the sentinel held while a handler inspects the previous
// variant to decide the next one.
type stateTransition struct{}

// stateWaiting is the initial state: the game requested an authentication and
// neither endpoint has started the OAuth step yet.
type stateWaiting struct{}

// stateOAuthByGame means the game arrived first at the OAuth step. It carries
// the browser's ends of the crossed channels: the browser sends the access
// token and receives the verification verdict.
type stateOAuthByGame struct {
	tokenTx   chan string
	verdictRx chan error
}

// stateOAuthByBrowser means the browser arrived first at the OAuth step. It
// carries the game's ends: the game receives the access token and sends the
// verification verdict.
type stateOAuthByBrowser struct {
	verdictTx chan error
	tokenRx   chan string
}

// stateCodeGenerated holds the hash of the code displayed in the browser.
type stateCodeGenerated struct {
	hash CodeHash
}

// stateCodeValidByGame means the game validated the code on its own, without
// the browser waiting. Terminal on the next browser poll.
type stateCodeValidByGame struct{}

// stateCodeInvalidByGame means the game mis-validated on its own. tries counts
// the attempts consumed so far; it is always below the configured cap, since
// reaching the cap transitions to stateCodeInvalidTerminate instead.
type stateCodeInvalidByGame struct {
	hash  CodeHash
	tries int
}

// stateCodeInvalidTerminate means the tries are exhausted. Terminal.
type stateCodeInvalidTerminate struct{}

// stateCodeByBrowser means the browser arrived first at the code step. It
// carries the game's ends: the game sends the entered code and receives the
// validation verdict.
type stateCodeByBrowser struct {
	codeTx    chan Code
	verdictRx chan error
}

func (stateTransition) stateName() string          { return "Transition" }
func (stateWaiting) stateName() string             { return "WaitingForAuthentication" }
func (stateOAuthByGame) stateName() string         { return "OAuthByGame" }
func (stateOAuthByBrowser) stateName() string      { return "OAuthByBrowser" }
func (stateCodeGenerated) stateName() string       { return "CodeGenerated" }
func (stateCodeValidByGame) stateName() string     { return "CodeValidByGame" }
func (stateCodeInvalidByGame) stateName() string   { return "CodeInvalidByGame" }
func (stateCodeInvalidTerminate) stateName() string { return "CodeInvalidTerminate" }
func (stateCodeByBrowser) stateName() string       { return "CodeByBrowser" }

// entry is the per-attempt record. Its mutex is never held across a channel
// await; handlers mutate the state under the lock and release it before
// suspending.
type entry struct {
	mu           sync.Mutex
	state        authState
	lastActivity time.Time

	// wake restarts the reaper's idle countdown; notified on every setState.
	wake chan struct{}
	// done is closed when the reaper removes the entry, so endpoints blocked
	// on a channel from this entry observe the drop.
	done chan struct{}
}

func newEntry(now time.Time) *entry {
	return &entry{
		state:        stateWaiting{},
		lastActivity: now,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// setState replaces the state, bumps the activity timestamp and notifies the
// reaper. Must be called with e.mu held.
func (e *entry) setState(s authState, now time.Time) {
	if now.After(e.lastActivity) {
		e.lastActivity = now
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
	e.state = s
}

// transition returns the current state, leaving the sentinel in place. Must be
// called with e.mu held, and the sentinel must be replaced before the caller
// releases the lock on any path that keeps the attempt alive.
func (e *entry) transition() authState {
	s := e.state
	e.state = stateTransition{}
	return s
}

// restore puts back a state taken by transition without extending the entry's
// lifetime, used on wrong-order calls and terminal observations.
func (e *entry) restore(s authState) {
	e.state = s
}

// crossChannel is the rendezvous primitive. It creates two single-use
// channels, stores the state built from one end of each in the entry, and
// hands the opposite ends to the caller:
//
//	caller                  stored state
//	  tx A ------------------- rx A
//	  rx B ------------------- tx B
//
// Its correctness relies on the entry lock being held during the state swap.
func crossChannel[A, B any](e *entry, now time.Time, with func(tx chan B, rx chan A) authState) (chan A, chan B) {
	a := make(chan A, 1)
	b := make(chan B, 1)
	e.setState(with(b, a), now)
	return a, b
}
