// Package memory is an in-memory implementation of the record store, used by
// tests and as a development backend.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/obstaclehub/records-api/internal/model"
	"github.com/obstaclehub/records-api/internal/storage"
)

type eventLink struct {
	eventID   uint32
	editionID uint32
}

type storedRecord struct {
	model.Record
	cps  []model.CheckpointTime
	link *eventLink
}

// Store is an in-memory implementation of the storage interface
type Store struct {
	mu sync.RWMutex

	players  map[model.PlayerID]*model.Player
	maps     map[model.MapID]*model.Map
	events   map[string]*model.Event
	editions map[uint32]map[uint32]*model.EventEdition

	records []storedRecord
	nextID  uint32
}

// Ensure Store implements the interface
var _ storage.RecordStore = (*Store)(nil)

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		players:  make(map[model.PlayerID]*model.Player),
		maps:     make(map[model.MapID]*model.Map),
		events:   make(map[string]*model.Event),
		editions: make(map[uint32]map[uint32]*model.EventEdition),
		nextID:   1,
	}
}

// AddPlayer registers a player. Test/seeding helper.
func (s *Store) AddPlayer(p *model.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.ID] = p
}

// AddMap registers a map. Test/seeding helper.
func (s *Store) AddMap(m *model.Map) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maps[m.ID] = m
}

// AddEventEdition registers an event edition. Test/seeding helper.
func (s *Store) AddEventEdition(ev *model.Event, ed *model.EventEdition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.Handle] = ev
	if s.editions[ev.ID] == nil {
		s.editions[ev.ID] = make(map[uint32]*model.EventEdition)
	}
	s.editions[ev.ID][ed.ID] = ed
}

func (s *Store) matchesEvent(rec *storedRecord, event model.OptEvent) bool {
	if !event.IsSet() {
		return true
	}
	return rec.link != nil &&
		rec.link.eventID == event.Event.ID &&
		rec.link.editionID == event.Edition.ID
}

// bestByPlayer computes each player's best record on the map under the
// overlay. Must be called with s.mu held.
func (s *Store) bestByPlayer(mapID model.MapID, event model.OptEvent) map[model.PlayerID]*storedRecord {
	best := make(map[model.PlayerID]*storedRecord)
	for i := range s.records {
		rec := &s.records[i]
		if rec.MapID != mapID || !s.matchesEvent(rec, event) {
			continue
		}
		cur, ok := best[rec.PlayerID]
		if !ok || rec.Time < cur.Time ||
			(rec.Time == cur.Time && rec.RecordDate.Before(cur.RecordDate)) {
			best[rec.PlayerID] = rec
		}
	}
	return best
}

func (s *Store) CountPlayersWithRecords(ctx context.Context, mapID model.MapID, event model.OptEvent) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.bestByPlayer(mapID, event))), nil
}

func (s *Store) BestTimes(ctx context.Context, mapID model.MapID, event model.OptEvent) ([]storage.PlayerBest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := s.bestByPlayer(mapID, event)
	out := make([]storage.PlayerBest, 0, len(best))
	for id, rec := range best {
		out = append(out, storage.PlayerBest{PlayerID: id, Time: rec.Time})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out, nil
}

func (s *Store) PlayerBestTime(ctx context.Context, mapID model.MapID, playerID model.PlayerID, event model.OptEvent) (int32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.bestByPlayer(mapID, event)[playerID]
	if !ok {
		return 0, false, nil
	}
	return rec.Time, true, nil
}

func (s *Store) LeaderboardRows(ctx context.Context, mapID model.MapID, playerIDs []model.PlayerID, event model.OptEvent) ([]storage.RecordRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[model.PlayerID]struct{}, len(playerIDs))
	for _, id := range playerIDs {
		wanted[id] = struct{}{}
	}

	best := s.bestByPlayer(mapID, event)
	recs := make([]*storedRecord, 0, len(wanted))
	for id, rec := range best {
		if _, ok := wanted[id]; ok {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Time != recs[j].Time {
			return recs[i].Time < recs[j].Time
		}
		return recs[i].RecordDate.Before(recs[j].RecordDate)
	})

	rows := make([]storage.RecordRow, 0, len(recs))
	for _, rec := range recs {
		player, ok := s.players[rec.PlayerID]
		if !ok {
			return nil, model.ErrPlayerNotFound
		}
		rows = append(rows, storage.RecordRow{
			PlayerID: rec.PlayerID,
			Login:    player.Login,
			Nickname: player.Nickname,
			Time:     rec.Time,
		})
	}
	return rows, nil
}

func (s *Store) InsertRecord(ctx context.Context, rec *model.Record, cps []model.CheckpointTime, event model.OptEvent) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := storedRecord{
		Record: *rec,
		cps:    append([]model.CheckpointTime(nil), cps...),
	}
	stored.ID = s.nextID
	s.nextID++
	if event.IsSet() {
		stored.link = &eventLink{
			eventID:   event.Event.ID,
			editionID: event.Edition.ID,
		}
	}
	s.records = append(s.records, stored)
	return stored.ID, nil
}

func (s *Store) GetMapByUID(ctx context.Context, uid string) (*model.Map, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.maps {
		if m.UID == uid {
			return m, nil
		}
	}
	return nil, model.ErrMapNotFound
}

func (s *Store) GetPlayerByLogin(ctx context.Context, login string) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.players {
		if p.Login == login {
			return p, nil
		}
	}
	return nil, model.ErrPlayerNotFound
}

func (s *Store) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return p, nil
}

func (s *Store) GetEventEdition(ctx context.Context, handle string, editionID uint32) (*model.Event, *model.EventEdition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[handle]
	if !ok {
		return nil, nil, model.ErrEventEditionNotFound
	}
	ed, ok := s.editions[ev.ID][editionID]
	if !ok {
		return nil, nil, model.ErrEventEditionNotFound
	}
	return ev, ed, nil
}
