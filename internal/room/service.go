package room

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chameleon-party/chameleon-backend/internal/catalog"
	"github.com/chameleon-party/chameleon-backend/internal/engine"
	"github.com/chameleon-party/chameleon-backend/internal/store"
)

var ErrNotJoined = errors.New("join the room first")

// errRejected aborts a store transaction without a write; callers translate
// it into an accepted=false outcome instead of an error.
var errRejected = errors.New("rejected")

// Service runs every state-changing room operation as a store transaction,
// so concurrent clients can only interleave at commit points.
type Service struct {
	store store.Store
	cat   *catalog.Catalog
	log   *zap.Logger

	// newRNG seeds one rng per draw; tests swap it for a fixed seed.
	newRNG func() *rand.Rand

	// finalizing holds codes with a finalize attempt already in flight in
	// this process, so one client cannot race itself.
	finalizing sync.Map
}

func NewService(st store.Store, cat *catalog.Catalog, log *zap.Logger) *Service {
	return &Service{
		store:  st,
		cat:    cat,
		log:    log,
		newRNG: func() *rand.Rand { return rand.New(rand.NewSource(rand.Int63())) },
	}
}

// Join upserts the caller into the roster. Re-joining updates name and
// lastSeen only; the player counter moves only on first join.
func (s *Service) Join(ctx context.Context, code, playerID, name string) (store.Snapshot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Snapshot{}, engine.ErrNameRequired
	}
	return s.store.Update(ctx, code, func(tx *store.Tx) error {
		now := time.Now()
		p, ok := tx.Player(playerID)
		if ok {
			p.Name = name
			p.LastSeen = now
		} else {
			p = engine.Player{ID: playerID, Name: name, JoinedAt: now, LastSeen: now}
		}
		tx.PutPlayer(p)
		tx.Room().UpdatedAt = now
		return nil
	})
}

// Leave removes the caller from the roster. Already gone is a no-op. The
// membership snapshot of a running round is left untouched.
func (s *Service) Leave(ctx context.Context, code, playerID string) (store.Snapshot, error) {
	return s.store.Update(ctx, code, func(tx *store.Tx) error {
		if _, ok := tx.Player(playerID); !ok {
			return nil
		}
		tx.DeletePlayer(playerID)
		tx.Room().UpdatedAt = time.Now()
		return nil
	})
}

// Clear empties the roster. Only allowed while waiting, so an in-flight
// round's membership cannot be pulled out from under it.
func (s *Service) Clear(ctx context.Context, code string) (store.Snapshot, error) {
	return s.store.Update(ctx, code, func(tx *store.Tx) error {
		if tx.Room().Status != engine.StatusWaiting {
			return engine.ErrInvalidState
		}
		tx.DeleteAllPlayers()
		tx.Room().UpdatedAt = time.Now()
		return nil
	})
}

// StartRound snapshots the roster, draws a topic and picks the chameleon.
// The caller must be on the roster. The Waiting check happens inside the
// transaction, so of two concurrent starters exactly one commits.
func (s *Service) StartRound(ctx context.Context, code, playerID string) (store.Snapshot, error) {
	rng := s.newRNG()
	snap, err := s.store.Update(ctx, code, func(tx *store.Tx) error {
		if _, ok := tx.Player(playerID); !ok {
			return ErrNotJoined
		}
		next, err := engine.StartRound(*tx.Room(), tx.Players(), s.cat, rng, time.Now())
		if err != nil {
			return err
		}
		*tx.Room() = next
		return nil
	})
	if err != nil {
		return snap, err
	}
	s.log.Info("round started",
		zap.String("room", code),
		zap.Int("round", snap.Room.Round),
		zap.String("topic", snap.Room.Topic),
		zap.Int("players", len(snap.Room.RoundPlayerIDs)))
	return snap, nil
}

func (s *Service) EndRound(ctx context.Context, code string) (store.Snapshot, error) {
	return s.store.Update(ctx, code, func(tx *store.Tx) error {
		*tx.Room() = engine.EndRound(*tx.Room(), time.Now())
		return nil
	})
}

// CallVote opens voting. accepted=false means the precondition failed
// (not in progress, or a vote is already open) and nothing changed.
func (s *Service) CallVote(ctx context.Context, code string) (store.Snapshot, bool, error) {
	return s.tryUpdate(ctx, code, func(r engine.Room) (engine.Room, bool) {
		return engine.CallVote(r, time.Now())
	})
}

// CastVote records an accusation. Votes stay mutable until finalization.
func (s *Service) CastVote(ctx context.Context, code, voterID, targetID string) (store.Snapshot, bool, error) {
	return s.tryUpdate(ctx, code, func(r engine.Room) (engine.Room, bool) {
		return engine.CastVote(r, voterID, targetID, time.Now())
	})
}

func (s *Service) CancelVote(ctx context.Context, code string) (store.Snapshot, bool, error) {
	return s.tryUpdate(ctx, code, func(r engine.Room) (engine.Room, bool) {
		return engine.CancelVote(r, time.Now())
	})
}

// Finalize closes an Open vote once all round members have voted. Every
// attached client may race to call this; the in-flight guard stops a
// single process from racing itself, and the re-check inside the
// transaction guarantees at most one commit per vote cycle.
func (s *Service) Finalize(ctx context.Context, code string) (store.Snapshot, bool, error) {
	if _, loaded := s.finalizing.LoadOrStore(code, struct{}{}); loaded {
		return store.Snapshot{}, false, nil
	}
	defer s.finalizing.Delete(code)

	accepted := false
	snap, err := s.store.Update(ctx, code, func(tx *store.Tx) error {
		next, ok := engine.Finalize(*tx.Room(), tx.Players(), time.Now())
		if !ok {
			return errRejected
		}
		accepted = true
		*tx.Room() = next
		return nil
	})
	if errors.Is(err, errRejected) {
		return store.Snapshot{}, false, nil
	}
	if err != nil {
		return store.Snapshot{}, false, err
	}
	if accepted {
		s.log.Info("vote finalized", zap.String("room", code), zap.Int("round", snap.Room.Round))
	}
	return snap, accepted, nil
}

// MaybeFinalize is the auto-finalize trigger run against each observed
// snapshot: if the vote looks complete, attempt the conditional finalize.
func (s *Service) MaybeFinalize(ctx context.Context, snap store.Snapshot) {
	if !engine.FinalizeReady(snap.Room) {
		return
	}
	if _, _, err := s.Finalize(ctx, snap.Room.Code); err != nil {
		s.log.Warn("finalize failed", zap.String("room", snap.Room.Code), zap.Error(err))
	}
}

// Reveal is a read-only projection of the caller's secret for the current
// round.
func (s *Service) Reveal(ctx context.Context, code, playerID string) (engine.Reveal, error) {
	snap, err := s.store.Room(ctx, code)
	if err != nil {
		return engine.Reveal{}, err
	}
	if snap.Room.Status != engine.StatusInProgress {
		return engine.Reveal{}, engine.ErrInvalidState
	}
	return engine.RevealFor(snap.Room, playerID), nil
}

func (s *Service) tryUpdate(ctx context.Context, code string, apply func(engine.Room) (engine.Room, bool)) (store.Snapshot, bool, error) {
	accepted := false
	snap, err := s.store.Update(ctx, code, func(tx *store.Tx) error {
		next, ok := apply(*tx.Room())
		if !ok {
			return errRejected
		}
		accepted = true
		*tx.Room() = next
		return nil
	})
	if errors.Is(err, errRejected) {
		return store.Snapshot{}, false, nil
	}
	if err != nil {
		return store.Snapshot{}, false, err
	}
	return snap, accepted, nil
}
