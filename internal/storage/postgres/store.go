// Package postgres is the pgx-backed implementation of the record store.
//
// Records are written to the records table plus the checkpoint_times table in
// one transaction; event-scoped records also get a row in the
// event_edition_records join table. Reads go through the same shapes the
// ranking engine expects: grouped best times ordered by (time, player_id).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/obstaclehub/records-api/internal/model"
	"github.com/obstaclehub/records-api/internal/storage"
)

// Store is a Postgres-backed implementation of the storage interface
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements the interface
var _ storage.RecordStore = (*Store)(nil)

// New creates a store from a connection string and verifies the connection.
func New(ctx context.Context, connString string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

// NewWithPool creates a store with an existing pool (for testing)
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the connection pool
func (s *Store) Close() {
	s.pool.Close()
}

// eventFragments returns the join and filter clauses selecting the
// event-scoped record view, with the bind positions following base args.
func eventFragments(event model.OptEvent, firstArg int) (join, filter string, args []any) {
	if !event.IsSet() {
		return "", "", nil
	}
	join = "INNER JOIN event_edition_records eer ON eer.record_id = r.id"
	filter = fmt.Sprintf("AND eer.event_id = $%d AND eer.edition_id = $%d", firstArg, firstArg+1)
	args = []any{event.Event.ID, event.Edition.ID}
	return join, filter, args
}

func (s *Store) CountPlayersWithRecords(ctx context.Context, mapID model.MapID, event model.OptEvent) (int64, error) {
	join, filter, eventArgs := eventFragments(event, 2)
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM (
			SELECT r.record_player_id FROM records r
			%s
			WHERE r.map_id = $1 %s
			GROUP BY r.record_player_id
		) grouped`, join, filter)

	args := append([]any{mapID}, eventArgs...)
	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) BestTimes(ctx context.Context, mapID model.MapID, event model.OptEvent) ([]storage.PlayerBest, error) {
	join, filter, eventArgs := eventFragments(event, 2)
	query := fmt.Sprintf(
		`SELECT r.record_player_id, MIN(r.time) AS time
		FROM records r
		%s
		WHERE r.map_id = $1 %s
		GROUP BY r.record_player_id
		ORDER BY time ASC, r.record_player_id ASC`, join, filter)

	args := append([]any{mapID}, eventArgs...)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.PlayerBest
	for rows.Next() {
		var pb storage.PlayerBest
		if err := rows.Scan(&pb.PlayerID, &pb.Time); err != nil {
			return nil, err
		}
		out = append(out, pb)
	}
	return out, rows.Err()
}

func (s *Store) PlayerBestTime(ctx context.Context, mapID model.MapID, playerID model.PlayerID, event model.OptEvent) (int32, bool, error) {
	join, filter, eventArgs := eventFragments(event, 3)
	query := fmt.Sprintf(
		`SELECT MIN(r.time) FROM records r
		%s
		WHERE r.map_id = $1 AND r.record_player_id = $2 %s`, join, filter)

	args := append([]any{mapID, playerID}, eventArgs...)
	var best *int32
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&best); err != nil {
		return 0, false, err
	}
	if best == nil {
		return 0, false, nil
	}
	return *best, true, nil
}

func (s *Store) LeaderboardRows(ctx context.Context, mapID model.MapID, playerIDs []model.PlayerID, event model.OptEvent) ([]storage.RecordRow, error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}

	join, filter, eventArgs := eventFragments(event, 3)
	query := fmt.Sprintf(
		`SELECT r.record_player_id, p.login, p.name, MIN(r.time) AS time
		FROM records r
		%s
		INNER JOIN players p ON p.id = r.record_player_id
		WHERE r.map_id = $1 AND r.record_player_id = ANY($2) %s
		GROUP BY r.record_player_id, p.login, p.name
		ORDER BY time ASC, MIN(r.record_date) ASC`, join, filter)

	ids := make([]int64, len(playerIDs))
	for i, id := range playerIDs {
		ids[i] = int64(id)
	}

	args := append([]any{mapID, ids}, eventArgs...)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.RecordRow
	for rows.Next() {
		var row storage.RecordRow
		if err := rows.Scan(&row.PlayerID, &row.Login, &row.Nickname, &row.Time); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) InsertRecord(ctx context.Context, rec *model.Record, cps []model.CheckpointTime, event model.OptEvent) (uint32, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var recordID uint32
	err = tx.QueryRow(ctx,
		`INSERT INTO records (record_player_id, map_id, time, respawn_count, record_date, flags)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		rec.PlayerID, rec.MapID, rec.Time, rec.RespawnCount, rec.RecordDate, rec.Flags,
	).Scan(&recordID)
	if err != nil {
		return 0, err
	}

	if len(cps) > 0 {
		batch := &pgx.Batch{}
		for _, cp := range cps {
			batch.Queue(
				`INSERT INTO checkpoint_times (cp_num, map_id, record_id, time) VALUES ($1, $2, $3, $4)`,
				cp.CpNum, rec.MapID, recordID, cp.Time,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return 0, err
		}
	}

	if event.IsSet() {
		_, err = tx.Exec(ctx,
			`INSERT INTO event_edition_records (record_id, event_id, edition_id) VALUES ($1, $2, $3)`,
			recordID, event.Event.ID, event.Edition.ID,
		)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return recordID, nil
}

func (s *Store) GetMapByUID(ctx context.Context, uid string) (*model.Map, error) {
	var m model.Map
	err := s.pool.QueryRow(ctx,
		`SELECT id, game_id, name, player_id, cps_number, linked_map FROM maps WHERE game_id = $1`,
		uid,
	).Scan(&m.ID, &m.UID, &m.Name, &m.PlayerID, &m.CpsNumber, &m.LinkedMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrMapNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *Store) GetPlayerByLogin(ctx context.Context, login string) (*model.Player, error) {
	var p model.Player
	err := s.pool.QueryRow(ctx,
		`SELECT id, login, name, join_date FROM players WHERE login = $1`,
		login,
	).Scan(&p.ID, &p.Login, &p.Nickname, &p.JoinDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var p model.Player
	err := s.pool.QueryRow(ctx,
		`SELECT id, login, name, join_date FROM players WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Login, &p.Nickname, &p.JoinDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetEventEdition(ctx context.Context, handle string, editionID uint32) (*model.Event, *model.EventEdition, error) {
	var ev model.Event
	var ed model.EventEdition
	err := s.pool.QueryRow(ctx,
		`SELECT e.id, e.handle, ee.id, ee.event_id, ee.name
		FROM event e
		INNER JOIN event_edition ee ON ee.event_id = e.id
		WHERE e.handle = $1 AND ee.id = $2`,
		handle, editionID,
	).Scan(&ev.ID, &ev.Handle, &ed.ID, &ed.EventID, &ed.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, model.ErrEventEditionNotFound
		}
		return nil, nil, err
	}
	return &ev, &ed, nil
}
