package api

import (
	"encoding/json"
	"net/http"

	"github.com/obstaclehub/records-api/internal/auth"
	"github.com/obstaclehub/records-api/internal/dependencies/clock"
	"github.com/obstaclehub/records-api/internal/model"
	"github.com/obstaclehub/records-api/internal/ranking"
	"github.com/obstaclehub/records-api/internal/storage"
)

// RecordsHandler handles record submission and leaderboard reads
type RecordsHandler struct {
	engine *ranking.Engine
	store  storage.RecordStore
	tokens *auth.TokenCache
	clock  clock.Clock
}

// NewRecordsHandler creates a new records handler
func NewRecordsHandler(engine *ranking.Engine, store storage.RecordStore, tokens *auth.TokenCache, clk clock.Clock) *RecordsHandler {
	return &RecordsHandler{
		engine: engine,
		store:  store,
		tokens: tokens,
		clock:  clk,
	}
}

// authorizeGame checks the Login/Authorization headers against the gamemode
// token issued by the auth flow.
func (h *RecordsHandler) authorizeGame(r *http.Request) (string, error) {
	login := r.Header.Get("Login")
	token := r.Header.Get("Authorization")
	if login == "" || token == "" {
		return "", newUnauthorizedError("missing credentials")
	}

	ok, err := h.tokens.Check(r.Context(), login, auth.TokenKindMP, auth.Token(token))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", newUnauthorizedError("invalid or expired token")
	}
	return login, nil
}

type finishedRequest struct {
	Time         int32   `json:"time"`
	RespawnCount int32   `json:"respawn_count"`
	MapUID       string  `json:"map_uid"`
	Flags        uint32  `json:"flags"`
	Cps          []int32 `json:"cps"`
}

type finishedResponse struct {
	HasImproved bool   `json:"has_improved"`
	Login       string `json:"login"`
	Old         int32  `json:"old"`
	New         int32  `json:"new"`
	CurrentRank int32  `json:"current_rank"`
}

// Finished handles POST /player/finished
func (h *RecordsHandler) Finished(w http.ResponseWriter, r *http.Request) {
	login, err := h.authorizeGame(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req finishedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, newInvalidRequestError("invalid request body"))
		return
	}
	if req.MapUID == "" {
		writeError(w, newInvalidRequestError("map_uid is required"))
		return
	}

	ctx := r.Context()
	event, err := eventFromQuery(ctx, h.store, r)
	if err != nil {
		writeError(w, err)
		return
	}

	m, err := h.store.GetMapByUID(ctx, req.MapUID)
	if err != nil {
		writeError(w, err)
		return
	}
	player, err := h.store.GetPlayerByLogin(ctx, login)
	if err != nil {
		writeError(w, err)
		return
	}

	// The checkpoint count (when the map declares one) and the split sum must
	// both agree with the final time.
	var sum int32
	for _, t := range req.Cps {
		sum += t
	}
	if m.CpsNumber != nil && int(*m.CpsNumber)+1 != len(req.Cps) || sum != req.Time {
		writeError(w, model.ErrInvalidTimes)
		return
	}

	old, hadRecord, err := h.store.PlayerBestTime(ctx, m.ID, player.ID, event)
	if err != nil {
		writeError(w, err)
		return
	}
	hasImproved := !hadRecord || req.Time < old
	if !hadRecord {
		old = req.Time
	}

	rec := &model.Record{
		PlayerID:     player.ID,
		MapID:        m.ID,
		Time:         req.Time,
		RespawnCount: req.RespawnCount,
		RecordDate:   h.clock.Now(),
		Flags:        req.Flags,
	}
	cps := make([]model.CheckpointTime, len(req.Cps))
	for i, t := range req.Cps {
		cps[i] = model.CheckpointTime{CpNum: int32(i), Time: t}
	}
	if _, err := h.store.InsertRecord(ctx, rec, cps, event); err != nil {
		writeError(w, err)
		return
	}

	// The index gets the submitted time even when it is not a personal best;
	// GetRank reconciles against the authoritative view below.
	if err := h.engine.UpdateRank(ctx, m.ID, player.ID, req.Time, event); err != nil {
		writeError(w, err)
		return
	}

	best := req.Time
	if old < best {
		best = old
	}
	rank, err := h.engine.GetRank(ctx, m.ID, player.ID, best, event)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, finishedResponse{
		HasImproved: hasImproved,
		Login:       login,
		Old:         old,
		New:         req.Time,
		CurrentRank: rank,
	})
}
