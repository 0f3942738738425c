package store

import (
	"context"
	"errors"
	"sort"

	"github.com/chameleon-party/chameleon-backend/internal/engine"
)

var ErrExists = errors.New("room already exists")
var ErrNotFound = errors.New("room not found")
var ErrConflict = errors.New("transaction conflict")

// Snapshot is one full observed state of a room: the doc plus the roster
// ordered by join time. Clients re-derive their whole view from each
// snapshot; there is no incremental merging.
type Snapshot struct {
	Room    engine.Room
	Players []engine.Player
	Deleted bool
}

// Store is the persistence substrate the coordinators run against. Every
// state change is either a conditional create or an atomic
// read-modify-write transaction; subscribers receive a push snapshot on
// every committed change.
type Store interface {
	// CreateRoom inserts iff absent, returning ErrExists to the loser of
	// a code collision.
	CreateRoom(ctx context.Context, room engine.Room) error
	Room(ctx context.Context, code string) (Snapshot, error)
	// ListRooms returns all rooms ordered by updatedAt descending.
	ListRooms(ctx context.Context) ([]engine.Room, error)
	// Update runs fn as one atomic transaction against the room and its
	// players, retrying on conflicting concurrent commits. fn returning
	// an error aborts with no write.
	Update(ctx context.Context, code string, fn func(*Tx) error) (Snapshot, error)
	DeleteRoom(ctx context.Context, code string) error
	// Watch delivers the current snapshot immediately, then one snapshot
	// per committed change, until ctx ends. Slow consumers are dropped.
	Watch(ctx context.Context, code string) (<-chan Snapshot, error)
	WatchDirectory(ctx context.Context) (<-chan []engine.Room, error)
}

// Tx is the working view a transaction function mutates. Player bookkeeping
// keeps the room's playerCount equal to the roster cardinality; the two can
// never be committed out of step.
type Tx struct {
	room      engine.Room
	players   map[string]engine.Player
	put       map[string]bool
	deleted   map[string]bool
	deleteAll bool
}

func newTx(room engine.Room, players []engine.Player) *Tx {
	m := make(map[string]engine.Player, len(players))
	for _, p := range players {
		m[p.ID] = p
	}
	return &Tx{
		room:    cloneRoom(room),
		players: m,
		put:     make(map[string]bool),
		deleted: make(map[string]bool),
	}
}

func (tx *Tx) Room() *engine.Room { return &tx.room }

func (tx *Tx) Player(id string) (engine.Player, bool) {
	p, ok := tx.players[id]
	return p, ok
}

// Players returns the working roster ordered by joinedAt ascending.
func (tx *Tx) Players() []engine.Player {
	out := make([]engine.Player, 0, len(tx.players))
	for _, p := range tx.players {
		out = append(out, p)
	}
	sortPlayers(out)
	return out
}

// PutPlayer upserts a roster entry. Inserting increments playerCount;
// updating an existing entry does not.
func (tx *Tx) PutPlayer(p engine.Player) {
	if _, ok := tx.players[p.ID]; !ok {
		tx.room.PlayerCount++
	}
	tx.players[p.ID] = p
	tx.put[p.ID] = true
	delete(tx.deleted, p.ID)
}

// DeletePlayer removes a roster entry and decrements playerCount. No-op if
// the player already left.
func (tx *Tx) DeletePlayer(id string) {
	if _, ok := tx.players[id]; !ok {
		return
	}
	delete(tx.players, id)
	delete(tx.put, id)
	tx.deleted[id] = true
	tx.room.PlayerCount--
}

// DeleteAllPlayers clears the roster and resets playerCount in one batch.
func (tx *Tx) DeleteAllPlayers() {
	tx.players = make(map[string]engine.Player)
	tx.put = make(map[string]bool)
	tx.deleted = make(map[string]bool)
	tx.deleteAll = true
	tx.room.PlayerCount = 0
}

func sortPlayers(players []engine.Player) {
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].ID < players[j].ID
		}
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})
}

func cloneRoom(r engine.Room) engine.Room {
	out := r
	if r.RoundPlayerIDs != nil {
		out.RoundPlayerIDs = append([]string(nil), r.RoundPlayerIDs...)
	}
	if r.TopicBag != nil {
		out.TopicBag = append([]int(nil), r.TopicBag...)
	}
	if r.Votes != nil {
		votes := make(map[string]string, len(r.Votes))
		for k, v := range r.Votes {
			votes[k] = v
		}
		out.Votes = votes
	}
	if r.VoteResults != nil {
		out.VoteResults = append([]engine.VoteResult(nil), r.VoteResults...)
	}
	return out
}

func sortRoomsByUpdated(rooms []engine.Room) {
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt)
	})
}
