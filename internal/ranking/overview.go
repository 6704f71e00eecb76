package ranking

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/obstaclehub/records-api/internal/model"
	"github.com/obstaclehub/records-api/internal/rediskey"
)

const (
	overviewTotalRows = 15
	// One row is kept free for a player who has no record yet.
	overviewNoRecordRows = overviewTotalRows - 1
)

// Overview returns up to 15 leaderboard rows around the given player:
//
//   - player in the top 15: the top 15;
//   - player ranked below: the top 3, then 12 rows centered on the player,
//     clamped to the leaderboard bounds;
//   - player absent and more than 14 records: the top 11 and the last 3,
//     leaving one slot for the absent player;
//   - player absent otherwise: the top 14.
func (e *Engine) Overview(ctx context.Context, mapID model.MapID, playerID model.PlayerID, event model.OptEvent) ([]Row, error) {
	count, err := e.UpdateLeaderboard(ctx, mapID, event)
	if err != nil {
		return nil, err
	}

	key := rediskey.MapLeaderboard(mapID, event)
	playerRank, err := e.rdb.ZRank(ctx, key, member(playerID)).Result()
	hasRank := true
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, &IndexError{Err: err}
		}
		hasRank = false
	}

	var rows []Row
	appendRange := func(start, end int64) error {
		part, err := e.sliceRows(ctx, mapID, start, end, event)
		if err != nil {
			return err
		}
		rows = append(rows, part...)
		return nil
	}

	switch {
	case hasRank && playerRank < overviewTotalRows:
		if err := appendRange(0, overviewTotalRows); err != nil {
			return nil, err
		}

	case hasRank:
		// Top 3, then the rest centered around the player.
		if err := appendRange(0, 3); err != nil {
			return nil, err
		}
		half := int64(overviewTotalRows-3) / 2
		start := playerRank - half
		end := playerRank + half
		if end > count {
			start -= end - count
			end = count
		}
		if err := appendRange(start, end); err != nil {
			return nil, err
		}

	case count > overviewNoRecordRows:
		if err := appendRange(0, overviewNoRecordRows-3); err != nil {
			return nil, err
		}
		if err := appendRange(count-3, count); err != nil {
			return nil, err
		}

	default:
		if err := appendRange(0, overviewNoRecordRows); err != nil {
			return nil, err
		}
	}

	return rows, nil
}
