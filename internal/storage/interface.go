// Package storage defines the authoritative record store consumed by the
// ranking engine and the HTTP handlers. The store is the truth about records;
// the Redis fast index is only the truth about ranks.
package storage

import (
	"context"

	"github.com/obstaclehub/records-api/internal/model"
)

// PlayerBest is a player's best time on a map under an event overlay.
type PlayerBest struct {
	PlayerID model.PlayerID
	Time     int32
}

// RecordRow is a hydrated leaderboard row, before rank computation.
type RecordRow struct {
	PlayerID model.PlayerID
	Login    string
	Nickname string
	Time     int32
}

// RecordStore defines the interface to the authoritative relational store
type RecordStore interface {
	// CountPlayersWithRecords returns the number of distinct players holding
	// at least one record on the map under the overlay.
	CountPlayersWithRecords(ctx context.Context, mapID model.MapID, event model.OptEvent) (int64, error)

	// BestTimes returns (player, best time) pairs for the map under the
	// overlay, ordered by (time ASC, player_id ASC). This ordering is what
	// makes the fast-index tie-breaking deterministic; see ranking.
	BestTimes(ctx context.Context, mapID model.MapID, event model.OptEvent) ([]PlayerBest, error)

	// PlayerBestTime returns the player's best time on the map, with found=false
	// when the player has no record under the overlay.
	PlayerBestTime(ctx context.Context, mapID model.MapID, playerID model.PlayerID, event model.OptEvent) (time int32, found bool, err error)

	// LeaderboardRows hydrates login/nickname/best-time rows for the given
	// players, ordered by (time ASC, record_date ASC).
	LeaderboardRows(ctx context.Context, mapID model.MapID, playerIDs []model.PlayerID, event model.OptEvent) ([]RecordRow, error)

	// InsertRecord persists a record with its per-checkpoint rows atomically,
	// plus the event linkage row when the overlay is set. Returns the record ID.
	InsertRecord(ctx context.Context, rec *model.Record, cps []model.CheckpointTime, event model.OptEvent) (uint32, error)

	// Entity lookups
	GetMapByUID(ctx context.Context, uid string) (*model.Map, error)
	GetPlayerByLogin(ctx context.Context, login string) (*model.Player, error)
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	GetEventEdition(ctx context.Context, handle string, editionID uint32) (*model.Event, *model.EventEdition, error)
}
