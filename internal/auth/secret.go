package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/obstaclehub/records-api/internal/dependencies/random"
)

const (
	stateIDLen = 20
	codeLen    = 10
	tokenLen   = 256

	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// StateID identifies one authentication attempt across the game and browser
// request flows. It is a 20-character alphanumeric string.
type StateID string

// Code is the 10-character secret displayed in the browser for the player to
// type into the game. It is never retained in cleartext; only its hash is.
type Code string

// Token is the 256-character credential issued to the game on success.
type Token string

// CodeHash is the SHA-224 digest of a code salted with its state ID.
type CodeHash [sha256.Size224]byte

func newStateID(rnd random.Random) StateID {
	return StateID(rnd.String(stateIDLen, alphanumeric))
}

func newCode(rnd random.Random) Code {
	return Code(rnd.String(codeLen, alphanumeric))
}

// NewToken mints a fresh 256-character credential. The coordinator issues one
// to the game on code validation; the HTTP layer mints a second one for the
// browser session.
func NewToken(rnd random.Random) Token {
	return Token(rnd.String(tokenLen, alphanumeric))
}

// ParseStateID validates the shape of a state ID received on the wire.
func ParseStateID(s string) (StateID, error) {
	if len(s) != stateIDLen {
		return "", fmt.Errorf("invalid state id length %d", len(s))
	}
	return StateID(s), nil
}

// hashCode digests the code with the state ID as a second input, so the same
// code displayed for two different attempts hashes differently.
func hashCode(code Code, id StateID) CodeHash {
	h := sha256.New224()
	h.Write([]byte(code))
	h.Write([]byte(id))
	var out CodeHash
	copy(out[:], h.Sum(nil))
	return out
}

// equal compares two hashes in constant time.
func (h CodeHash) equal(other CodeHash) bool {
	return subtle.ConstantTimeCompare(h[:], other[:]) == 1
}
