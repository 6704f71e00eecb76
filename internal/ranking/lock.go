package ranking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/obstaclehub/records-api/internal/model"
)

// LockBreak is how long a waiter blocks on a per-map lock before proceeding
// anyway. The lock is advisory: every operation it guards starts by
// re-checking coherence, so a broken lock degrades to extra work, not to a
// wrong rank.
const LockBreak = 10 * time.Second

type mapLock struct {
	sem  chan struct{}
	refs int
}

// lockSet serializes fast-index mutations per map ID. All event overlays of a
// map share the same lock. Entries are refcounted and removed when the last
// waiter leaves.
type lockSet struct {
	mu     sync.Mutex
	locks  map[model.MapID]*mapLock
	logger *slog.Logger
}

func newLockSet(logger *slog.Logger) *lockSet {
	return &lockSet{
		locks:  make(map[model.MapID]*mapLock),
		logger: logger,
	}
}

// within runs f while holding the lock of the given map, waiting at most
// LockBreak for the current holder.
func (l *lockSet) within(ctx context.Context, mapID model.MapID, f func() error) error {
	l.mu.Lock()
	ml, ok := l.locks[mapID]
	if !ok {
		ml = &mapLock{sem: make(chan struct{}, 1)}
		l.locks[mapID] = ml
	}
	ml.refs++
	l.mu.Unlock()

	release := func() {
		l.mu.Lock()
		ml.refs--
		if ml.refs == 0 {
			delete(l.locks, mapID)
		}
		l.mu.Unlock()
	}

	acquired := false
	timer := time.NewTimer(LockBreak)
	select {
	case ml.sem <- struct{}{}:
		acquired = true
		timer.Stop()
	case <-timer.C:
		l.logger.Warn("breaking leaderboard lock held too long",
			slog.Uint64("map_id", uint64(mapID)))
	case <-ctx.Done():
		timer.Stop()
		release()
		return ctx.Err()
	}

	err := f()

	if acquired {
		<-ml.sem
	}
	release()
	return err
}
