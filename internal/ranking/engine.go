// Package ranking maintains the coherence between the authoritative records
// store and the per-map Redis sorted sets, and computes competition ranks.
//
// The API uses the standard competition ranking system (1224) while Redis
// sorted sets only provide ordinal (dense) ranking. Given a time to rank, the
// engine fetches the first member holding that time (ZRANGEBYSCORE) and takes
// its ordinal rank (ZRANK): because rebuilds insert members ordered by
// (time ASC, player_id ASC), the first member of any tie is the one whose
// dense rank equals the 1224 rank of the whole tie. Any change to the rebuild
// order must revisit GetRank.
//
// Index reads and updates for the same map can race, so every operation
// touching a map's sorted set goes through its per-map advisory lock.
package ranking

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/obstaclehub/records-api/internal/model"
	"github.com/obstaclehub/records-api/internal/rediskey"
	"github.com/obstaclehub/records-api/internal/storage"
)

// Engine owns the coherence relationship between the record store and the
// fast ranking index.
type Engine struct {
	rdb    *redis.Client
	store  storage.RecordStore
	locks  *lockSet
	logger *slog.Logger
}

// New creates a ranking engine
func New(rdb *redis.Client, store storage.RecordStore, logger *slog.Logger) *Engine {
	return &Engine{
		rdb:    rdb,
		store:  store,
		locks:  newLockSet(logger),
		logger: logger,
	}
}

func member(playerID model.PlayerID) string {
	return strconv.FormatUint(uint64(playerID), 10)
}

func parseMember(s string) (model.PlayerID, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return model.PlayerID(id), nil
}

// UpdateRank records the player's time in the fast index. ZADD is idempotent
// for an equal (member, score) pair and replaces the score otherwise.
func (e *Engine) UpdateRank(ctx context.Context, mapID model.MapID, playerID model.PlayerID, time int32, event model.OptEvent) error {
	key := rediskey.MapLeaderboard(mapID, event)
	return e.locks.within(ctx, mapID, func() error {
		err := e.rdb.ZAdd(ctx, key, redis.Z{
			Score:  float64(time),
			Member: member(playerID),
		}).Err()
		if err != nil {
			return &IndexError{Err: err}
		}
		return nil
	})
}

// UpdateLeaderboard checks that the fast index holds as many members as the
// authoritative view holds players, and rebuilds the index when the counts
// diverge. It returns the authoritative count.
func (e *Engine) UpdateLeaderboard(ctx context.Context, mapID model.MapID, event model.OptEvent) (int64, error) {
	count, err := e.store.CountPlayersWithRecords(ctx, mapID, event)
	if err != nil {
		return 0, &DBError{Err: err}
	}

	key := rediskey.MapLeaderboard(mapID, event)
	err = e.locks.within(ctx, mapID, func() error {
		indexCount, err := e.rdb.ZCard(ctx, key).Result()
		if err != nil {
			return &IndexError{Err: err}
		}
		if indexCount != count {
			return e.rebuildLocked(ctx, mapID, event)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ForceRebuild regenerates the fast index of a map from the authoritative view.
func (e *Engine) ForceRebuild(ctx context.Context, mapID model.MapID, event model.OptEvent) error {
	return e.locks.within(ctx, mapID, func() error {
		return e.rebuildLocked(ctx, mapID, event)
	})
}

// rebuildLocked deletes the sorted set and reinserts every (player, best time)
// pair in one atomic pipeline. The authoritative read is a snapshot taken
// before the pipeline executes; inserts racing the commit are caught by the
// next coherence check. Must be called with the map lock held.
func (e *Engine) rebuildLocked(ctx context.Context, mapID model.MapID, event model.OptEvent) error {
	best, err := e.store.BestTimes(ctx, mapID, event)
	if err != nil {
		return &DBError{Err: err}
	}

	key := rediskey.MapLeaderboard(mapID, event)
	pipe := e.rdb.TxPipeline()
	pipe.Del(ctx, key)
	for _, pb := range best {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(pb.Time),
			Member: member(pb.PlayerID),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return &IndexError{Err: err}
	}
	return nil
}

// GetRank returns the 1224 rank of the given time on the map. When the index
// does not hold the queried time for the player, the index is rebuilt from
// the authoritative view first.
//
// If the index held a time strictly lower than the queried one, that better
// time is put back after the rank is computed, so a stale-but-better personal
// best is not lost to the rebuild.
func (e *Engine) GetRank(ctx context.Context, mapID model.MapID, playerID model.PlayerID, time int32, event model.OptEvent) (int32, error) {
	key := rediskey.MapLeaderboard(mapID, event)

	var rank int32
	err := e.locks.within(ctx, mapID, func() error {
		score, err := e.rdb.ZScore(ctx, key, member(playerID)).Result()
		known := true
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				return &IndexError{Err: err}
			}
			known = false
		}

		var betterTime *int32
		if !known || int32(score) != time {
			if err := e.rebuildLocked(ctx, mapID, event); err != nil {
				return err
			}
			if known && int32(score) < time {
				t := int32(score)
				betterTime = &t
			}
		}

		r, found, err := e.rankOfLocked(ctx, key, time)
		if err != nil {
			return err
		}
		if !found {
			e.dumpDivergence(ctx, mapID, playerID, time, event)
			return ErrInconsistent
		}

		if betterTime != nil {
			err := e.rdb.ZAdd(ctx, key, redis.Z{
				Score:  float64(*betterTime),
				Member: member(playerID),
			}).Err()
			if err != nil {
				return &IndexError{Err: err}
			}
		}

		rank = r
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rank, nil
}

// rankOfLocked resolves a time to its 1224 rank: the dense rank of the first
// member holding that time, plus one. Must be called with the map lock held.
func (e *Engine) rankOfLocked(ctx context.Context, key string, time int32) (int32, bool, error) {
	t := strconv.FormatInt(int64(time), 10)
	members, err := e.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:    t,
		Max:    t,
		Offset: 0,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, false, &IndexError{Err: err}
	}
	if len(members) == 0 {
		return 0, false, nil
	}

	rank, err := e.rdb.ZRank(ctx, key, members[0]).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, &IndexError{Err: err}
	}
	return int32(rank) + 1, true, nil
}
