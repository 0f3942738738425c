package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chameleon-party/chameleon-backend/internal/engine"
)

// The room doc is stored whole as JSONB next to a version counter; players
// are rows so the roster can be read in join order. Every mutation locks
// the room row first, which serializes transactions per room the same way
// the memory store's version check does.
const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	code       text PRIMARY KEY,
	doc        jsonb NOT NULL,
	version    bigint NOT NULL DEFAULT 0,
	updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS players (
	room_code text NOT NULL REFERENCES rooms(code) ON DELETE CASCADE,
	id        text NOT NULL,
	doc       jsonb NOT NULL,
	joined_at timestamptz NOT NULL,
	PRIMARY KEY (room_code, id)
);
CREATE INDEX IF NOT EXISTS players_join_order ON players (room_code, joined_at);
`

// Postgres is the durable Store. Change notification stays in-process via
// the same broadcaster the memory store uses; a multi-server deployment
// would swap this for LISTEN/NOTIFY.
type Postgres struct {
	pool *pgxpool.Pool
	b    *broadcaster
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Postgres{pool: pool, b: newBroadcaster()}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) CreateRoom(ctx context.Context, room engine.Room) error {
	doc, err := json.Marshal(room)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO rooms (code, doc, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (code) DO NOTHING`,
		room.Code, doc, room.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}

	rooms, err := p.ListRooms(ctx)
	if err == nil {
		p.b.publishDirectory(rooms)
	}
	return nil
}

func (p *Postgres) Room(ctx context.Context, code string) (Snapshot, error) {
	room, err := p.loadRoom(ctx, p.pool, code, false)
	if err != nil {
		return Snapshot{}, err
	}
	players, err := p.loadPlayers(ctx, p.pool, code)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Room: room, Players: players}, nil
}

func (p *Postgres) ListRooms(ctx context.Context) ([]engine.Room, error) {
	rows, err := p.pool.Query(ctx, `SELECT doc FROM rooms ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Room
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var room engine.Room
		if err := json.Unmarshal(doc, &room); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (p *Postgres) Update(ctx context.Context, code string, fn func(*Tx) error) (Snapshot, error) {
	var snap Snapshot
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := p.updateOnce(ctx, code, fn, &snap)
		if err == nil {
			p.b.publish(code, snap)
			rooms, lerr := p.ListRooms(ctx)
			if lerr == nil {
				p.b.publishDirectory(rooms)
			}
			return snap, nil
		}
		if isSerializationFailure(err) {
			continue
		}
		return Snapshot{}, err
	}
	return Snapshot{}, ErrConflict
}

func (p *Postgres) updateOnce(ctx context.Context, code string, fn func(*Tx) error, snap *Snapshot) error {
	dbtx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer dbtx.Rollback(ctx)

	room, err := p.loadRoom(ctx, dbtx, code, true)
	if err != nil {
		return err
	}
	players, err := p.loadPlayers(ctx, dbtx, code)
	if err != nil {
		return err
	}

	tx := newTx(room, players)
	if err := fn(tx); err != nil {
		return err
	}

	doc, err := json.Marshal(tx.room)
	if err != nil {
		return err
	}
	if _, err := dbtx.Exec(ctx,
		`UPDATE rooms SET doc = $2, version = version + 1, updated_at = $3 WHERE code = $1`,
		code, doc, tx.room.UpdatedAt); err != nil {
		return err
	}

	if tx.deleteAll {
		if _, err := dbtx.Exec(ctx, `DELETE FROM players WHERE room_code = $1`, code); err != nil {
			return err
		}
	}
	for id := range tx.deleted {
		if _, err := dbtx.Exec(ctx, `DELETE FROM players WHERE room_code = $1 AND id = $2`, code, id); err != nil {
			return err
		}
	}
	for id := range tx.put {
		player := tx.players[id]
		pdoc, err := json.Marshal(player)
		if err != nil {
			return err
		}
		if _, err := dbtx.Exec(ctx,
			`INSERT INTO players (room_code, id, doc, joined_at) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (room_code, id) DO UPDATE SET doc = EXCLUDED.doc`,
			code, id, pdoc, player.JoinedAt); err != nil {
			return err
		}
	}

	if err := dbtx.Commit(ctx); err != nil {
		return err
	}

	*snap = Snapshot{Room: tx.room, Players: tx.Players()}
	return nil
}

func (p *Postgres) DeleteRoom(ctx context.Context, code string) error {
	snap, err := p.Room(ctx, code)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM rooms WHERE code = $1`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	snap.Deleted = true
	p.b.publish(code, snap)
	rooms, err := p.ListRooms(ctx)
	if err == nil {
		p.b.publishDirectory(rooms)
	}
	return nil
}

func (p *Postgres) Watch(ctx context.Context, code string) (<-chan Snapshot, error) {
	snap, err := p.Room(ctx, code)
	if err != nil {
		return nil, err
	}
	return p.b.subscribe(ctx, code, snap), nil
}

func (p *Postgres) WatchDirectory(ctx context.Context) (<-chan []engine.Room, error) {
	rooms, err := p.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	return p.b.subscribeDirectory(ctx, rooms), nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (p *Postgres) loadRoom(ctx context.Context, q querier, code string, forUpdate bool) (engine.Room, error) {
	sql := `SELECT doc FROM rooms WHERE code = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var doc []byte
	if err := q.QueryRow(ctx, sql, code).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engine.Room{}, ErrNotFound
		}
		return engine.Room{}, err
	}
	var room engine.Room
	if err := json.Unmarshal(doc, &room); err != nil {
		return engine.Room{}, err
	}
	return room, nil
}

func (p *Postgres) loadPlayers(ctx context.Context, q querier, code string) ([]engine.Player, error) {
	rows, err := q.Query(ctx,
		`SELECT doc FROM players WHERE room_code = $1 ORDER BY joined_at, id`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Player
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var player engine.Player
		if err := json.Unmarshal(doc, &player); err != nil {
			return nil, err
		}
		out = append(out, player)
	}
	return out, rows.Err()
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure or deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
