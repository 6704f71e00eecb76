package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/obstaclehub/records-api/internal/model"
	"github.com/obstaclehub/records-api/internal/storage"
)

const defaultLeaderboardLimit = 15

// eventFromQuery resolves the optional event/edition query parameters to an
// overlay. Absent parameters select the global view.
func eventFromQuery(ctx context.Context, store storage.RecordStore, r *http.Request) (model.OptEvent, error) {
	handle := r.URL.Query().Get("event")
	if handle == "" {
		return model.OptEvent{}, nil
	}

	editionID, err := strconv.ParseUint(r.URL.Query().Get("edition"), 10, 32)
	if err != nil {
		return model.OptEvent{}, newInvalidRequestError("edition must be an integer")
	}

	event, edition, err := store.GetEventEdition(ctx, handle, uint32(editionID))
	if err != nil {
		return model.OptEvent{}, err
	}
	return model.NewOptEvent(event, edition), nil
}

// Leaderboard handles GET /map/{uid}/leaderboard
func (h *RecordsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	m, err := h.store.GetMapByUID(ctx, mux.Vars(r)["uid"])
	if err != nil {
		writeError(w, err)
		return
	}
	event, err := eventFromQuery(ctx, h.store, r)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	offset := int64(0)
	if s := q.Get("offset"); s != "" {
		offset, err = strconv.ParseInt(s, 10, 64)
		if err != nil || offset < 0 {
			writeError(w, newInvalidRequestError("offset must be a non-negative integer"))
			return
		}
	}
	limit := int64(defaultLeaderboardLimit)
	if s := q.Get("limit"); s != "" {
		limit, err = strconv.ParseInt(s, 10, 64)
		if err != nil || limit <= 0 {
			writeError(w, newInvalidRequestError("limit must be a positive integer"))
			return
		}
	}

	rows, err := h.engine.LeaderboardSlice(ctx, m.ID, offset, limit, event)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rows)
}

// Overview handles GET /overview
func (h *RecordsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	login := q.Get("playerId")
	if login == "" {
		writeError(w, newInvalidRequestError("playerId is required"))
		return
	}
	mapUID := q.Get("mapId")
	if mapUID == "" {
		writeError(w, newInvalidRequestError("mapId is required"))
		return
	}

	player, err := h.store.GetPlayerByLogin(ctx, login)
	if err != nil {
		writeError(w, err)
		return
	}
	m, err := h.store.GetMapByUID(ctx, mapUID)
	if err != nil {
		writeError(w, err)
		return
	}
	event, err := eventFromQuery(ctx, h.store, r)
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := h.engine.Overview(ctx, m.ID, player.ID, event)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rows)
}
