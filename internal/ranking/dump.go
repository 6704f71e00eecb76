package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/obstaclehub/records-api/internal/model"
	"github.com/obstaclehub/records-api/internal/rediskey"
)

// dumpDivergence logs a side-by-side table of the fast index and the
// authoritative view of a map, marking mismatched rows and the searched
// player. Emitted when GetRank cannot resolve a rank even after a rebuild;
// this is the sole observability contract of the engine.
func (e *Engine) dumpDivergence(ctx context.Context, mapID model.MapID, playerID model.PlayerID, time int32, event model.OptEvent) {
	key := rediskey.MapLeaderboard(mapID, event)

	indexSide, err := e.rdb.ZRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		e.logger.Error("leaderboard dump failed reading fast index",
			slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	storeSide, err := e.store.BestTimes(ctx, mapID, event)
	if err != nil {
		e.logger.Error("leaderboard dump failed reading authoritative store",
			slog.Uint64("map_id", uint64(mapID)), slog.String("error", err.Error()))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-12s || %-12s %-12s\n", "player", "time", "player", "time")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 54))

	n := len(indexSide)
	if len(storeSide) > n {
		n = len(storeSide)
	}
	for i := 0; i < n; i++ {
		left := fmt.Sprintf("%-12s %-12s", "", "")
		right := left
		mark := "  "

		var leftID model.PlayerID
		var leftTime int32
		haveLeft := i < len(indexSide)
		if haveLeft {
			id, err := parseMember(fmt.Sprint(indexSide[i].Member))
			if err == nil {
				leftID = id
			}
			leftTime = int32(indexSide[i].Score)
			left = fmt.Sprintf("%-12d %-12d", leftID, leftTime)
		}

		haveRight := i < len(storeSide)
		if haveRight {
			right = fmt.Sprintf("%-12d %-12d", storeSide[i].PlayerID, storeSide[i].Time)
		}

		switch {
		case !haveLeft || !haveRight,
			leftID != storeSide[i].PlayerID, leftTime != storeSide[i].Time:
			mark = "!!"
		case leftID == playerID:
			mark = "->"
		}

		fmt.Fprintf(&b, "%s %s || %s\n", mark, left, right)
	}

	e.logger.Error("missing player rank in fast index",
		slog.Uint64("player_id", uint64(playerID)),
		slog.Uint64("map_id", uint64(mapID)),
		slog.Int("time", int(time)),
		slog.String("key", key),
		slog.String("leaderboards", b.String()),
	)
}
