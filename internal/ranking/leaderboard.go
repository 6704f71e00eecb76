package ranking

import (
	"context"

	"github.com/obstaclehub/records-api/internal/model"
	"github.com/obstaclehub/records-api/internal/rediskey"
)

// Row is one entry of a served leaderboard.
type Row struct {
	Rank     int32  `json:"rank"`
	Login    string `json:"login"`
	Nickname string `json:"nickname"`
	Time     int32  `json:"time"`
}

// LeaderboardSlice returns a window of the leaderboard in fast-index order,
// hydrated from the authoritative store. The coherence check runs first, so
// the window reflects the authoritative view.
func (e *Engine) LeaderboardSlice(ctx context.Context, mapID model.MapID, offset, limit int64, event model.OptEvent) ([]Row, error) {
	if _, err := e.UpdateLeaderboard(ctx, mapID, event); err != nil {
		return nil, err
	}
	return e.sliceRows(ctx, mapID, offset, offset+limit, event)
}

// sliceRows fetches fast-index members in [start, end) and hydrates them.
func (e *Engine) sliceRows(ctx context.Context, mapID model.MapID, start, end int64, event model.OptEvent) ([]Row, error) {
	key := rediskey.MapLeaderboard(mapID, event)

	members, err := e.rdb.ZRange(ctx, key, start, end-1).Result()
	if err != nil {
		return nil, &IndexError{Err: err}
	}
	if len(members) == 0 {
		return nil, nil
	}

	playerIDs := make([]model.PlayerID, 0, len(members))
	for _, m := range members {
		id, err := parseMember(m)
		if err != nil {
			return nil, &IndexError{Err: err}
		}
		playerIDs = append(playerIDs, id)
	}

	recordRows, err := e.store.LeaderboardRows(ctx, mapID, playerIDs, event)
	if err != nil {
		return nil, &DBError{Err: err}
	}

	rows := make([]Row, 0, len(recordRows))
	for _, rr := range recordRows {
		rank, err := e.GetRank(ctx, mapID, rr.PlayerID, rr.Time, event)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{
			Rank:     rank,
			Login:    rr.Login,
			Nickname: rr.Nickname,
			Time:     rr.Time,
		})
	}
	return rows, nil
}

// CompetRank maps each item of a slice sorted by key to its standard
// competition rank (1224): tied items share the lowest rank of the tie and
// the next rank skips accordingly.
func CompetRank[T any](items []T, key func(T) int32) []int {
	ranks := make([]int, len(items))
	rank := 0
	offset := 1
	for i, item := range items {
		switch {
		case i == 0:
			rank = 1
		case key(items[i-1]) == key(item):
			offset++
		default:
			rank += offset
			offset = 1
		}
		ranks[i] = rank
	}
	return ranks
}
