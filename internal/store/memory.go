package store

import (
	"context"
	"sync"

	"github.com/chameleon-party/chameleon-backend/internal/engine"
)

// maxTxRetries bounds the optimistic retry loop in Update.
const maxTxRetries = 32

type memRoom struct {
	version int64
	room    engine.Room
	players map[string]engine.Player
}

// Memory is the in-process Store. Updates are optimistic: a transaction
// works on a copy of the room, and committing re-checks the version it
// read; a concurrent commit forces a re-read and re-run of fn, the same
// discipline the Postgres store gets from its database transaction.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]*memRoom
	b     *broadcaster
}

func NewMemory() *Memory {
	return &Memory{
		rooms: make(map[string]*memRoom),
		b:     newBroadcaster(),
	}
}

func (m *Memory) CreateRoom(ctx context.Context, room engine.Room) error {
	m.mu.Lock()
	if _, ok := m.rooms[room.Code]; ok {
		m.mu.Unlock()
		return ErrExists
	}
	m.rooms[room.Code] = &memRoom{
		room:    cloneRoom(room),
		players: make(map[string]engine.Player),
	}
	rooms := m.listLocked()
	m.mu.Unlock()

	m.b.publishDirectory(rooms)
	return nil
}

func (m *Memory) Room(ctx context.Context, code string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mr, ok := m.rooms[code]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return mr.snapshot(), nil
}

func (m *Memory) ListRooms(ctx context.Context) ([]engine.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(), nil
}

func (m *Memory) Update(ctx context.Context, code string, fn func(*Tx) error) (Snapshot, error) {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Snapshot{}, err
		}

		m.mu.RLock()
		mr, ok := m.rooms[code]
		if !ok {
			m.mu.RUnlock()
			return Snapshot{}, ErrNotFound
		}
		readVersion := mr.version
		tx := newTx(mr.room, mr.playerList())
		m.mu.RUnlock()

		if err := fn(tx); err != nil {
			return Snapshot{}, err
		}

		m.mu.Lock()
		mr, ok = m.rooms[code]
		if !ok {
			m.mu.Unlock()
			return Snapshot{}, ErrNotFound
		}
		if mr.version != readVersion {
			// Lost the race; re-read and run fn again.
			m.mu.Unlock()
			continue
		}
		mr.version++
		mr.room = tx.room
		if tx.deleteAll {
			mr.players = make(map[string]engine.Player)
		}
		for id := range tx.deleted {
			delete(mr.players, id)
		}
		for id := range tx.put {
			mr.players[id] = tx.players[id]
		}
		snap := mr.snapshot()
		rooms := m.listLocked()
		m.mu.Unlock()

		m.b.publish(code, snap)
		m.b.publishDirectory(rooms)
		return snap, nil
	}
	return Snapshot{}, ErrConflict
}

func (m *Memory) DeleteRoom(ctx context.Context, code string) error {
	m.mu.Lock()
	mr, ok := m.rooms[code]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	snap := mr.snapshot()
	snap.Deleted = true
	delete(m.rooms, code)
	rooms := m.listLocked()
	m.mu.Unlock()

	m.b.publish(code, snap)
	m.b.publishDirectory(rooms)
	return nil
}

func (m *Memory) Watch(ctx context.Context, code string) (<-chan Snapshot, error) {
	snap, err := m.Room(ctx, code)
	if err != nil {
		return nil, err
	}
	return m.b.subscribe(ctx, code, snap), nil
}

func (m *Memory) WatchDirectory(ctx context.Context) (<-chan []engine.Room, error) {
	rooms, err := m.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	return m.b.subscribeDirectory(ctx, rooms), nil
}

func (m *Memory) listLocked() []engine.Room {
	out := make([]engine.Room, 0, len(m.rooms))
	for _, mr := range m.rooms {
		out = append(out, cloneRoom(mr.room))
	}
	sortRoomsByUpdated(out)
	return out
}

func (mr *memRoom) playerList() []engine.Player {
	out := make([]engine.Player, 0, len(mr.players))
	for _, p := range mr.players {
		out = append(out, p)
	}
	sortPlayers(out)
	return out
}

func (mr *memRoom) snapshot() Snapshot {
	return Snapshot{
		Room:    cloneRoom(mr.room),
		Players: mr.playerList(),
	}
}
