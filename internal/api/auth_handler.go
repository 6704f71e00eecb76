package api

import (
	"encoding/json"
	"net/http"

	"github.com/obstaclehub/records-api/internal/auth"
	"github.com/obstaclehub/records-api/internal/dependencies/random"
)

// AuthHandler handles the two-party authentication endpoints. The game calls
// request, oauth/wait and code/validate; the browser calls oauth/give and
// code/wait.
type AuthHandler struct {
	coordinator *auth.Coordinator
	tokens      *auth.TokenCache
	verifier    TokenVerifier
	random      random.Random
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(coordinator *auth.Coordinator, tokens *auth.TokenCache, verifier TokenVerifier, rnd random.Random) *AuthHandler {
	return &AuthHandler{
		coordinator: coordinator,
		tokens:      tokens,
		verifier:    verifier,
		random:      rnd,
	}
}

type requestAuthResponse struct {
	StateID string `json:"state_id"`
}

// RequestAuth handles POST /auth/request
func (h *AuthHandler) RequestAuth(w http.ResponseWriter, r *http.Request) {
	id, err := h.coordinator.RequestAuth(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, requestAuthResponse{StateID: string(id)})
}

type waitOAuthRequest struct {
	StateID string `json:"state_id"`
}

// WaitOAuth handles POST /auth/oauth/wait
func (h *AuthHandler) WaitOAuth(w http.ResponseWriter, r *http.Request) {
	var req waitOAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, newInvalidRequestError("invalid request body"))
		return
	}

	id, err := auth.ParseStateID(req.StateID)
	if err != nil {
		writeError(w, newInvalidRequestError("invalid state_id"))
		return
	}

	if err := h.coordinator.WaitForOAuth(r.Context(), id, h.verifier.Verify); err != nil {
		writeError(w, err)
		return
	}

	writeNoContent(w)
}

type giveTokenRequest struct {
	StateID     string `json:"state_id"`
	AccessToken string `json:"access_token"`
}

type giveTokenResponse struct {
	Code string `json:"code"`
}

// GiveToken handles POST /auth/oauth/give
func (h *AuthHandler) GiveToken(w http.ResponseWriter, r *http.Request) {
	var req giveTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, newInvalidRequestError("invalid request body"))
		return
	}
	if req.AccessToken == "" {
		writeError(w, newInvalidRequestError("access_token is required"))
		return
	}

	id, err := auth.ParseStateID(req.StateID)
	if err != nil {
		writeError(w, newInvalidRequestError("invalid state_id"))
		return
	}

	code, err := h.coordinator.NotifyInGame(r.Context(), id, req.AccessToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, giveTokenResponse{Code: string(code)})
}

type validateCodeRequest struct {
	StateID string `json:"state_id"`
	Code    string `json:"code"`
	Login   string `json:"login"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// ValidateCode handles POST /auth/code/validate
func (h *AuthHandler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	var req validateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, newInvalidRequestError("invalid request body"))
		return
	}
	if req.Code == "" {
		writeError(w, newInvalidRequestError("code is required"))
		return
	}
	if req.Login == "" {
		writeError(w, newInvalidRequestError("login is required"))
		return
	}

	id, err := auth.ParseStateID(req.StateID)
	if err != nil {
		writeError(w, newInvalidRequestError("invalid state_id"))
		return
	}

	token, err := h.coordinator.ValidateCode(r.Context(), id, auth.Code(req.Code))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.tokens.Store(r.Context(), req.Login, auth.TokenKindMP, token); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}

type waitCodeRequest struct {
	StateID string `json:"state_id"`
	Login   string `json:"login"`
}

// WaitCode handles POST /auth/code/wait
func (h *AuthHandler) WaitCode(w http.ResponseWriter, r *http.Request) {
	var req waitCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, newInvalidRequestError("invalid request body"))
		return
	}
	if req.Login == "" {
		writeError(w, newInvalidRequestError("login is required"))
		return
	}

	id, err := auth.ParseStateID(req.StateID)
	if err != nil {
		writeError(w, newInvalidRequestError("invalid state_id"))
		return
	}

	if err := h.coordinator.WaitCodeValidation(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	// The browser session gets its own credential, distinct from the one
	// issued to the game.
	token := auth.NewToken(h.random)
	if err := h.tokens.Store(r.Context(), req.Login, auth.TokenKindWeb, token); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}
