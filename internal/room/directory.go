package room

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/chameleon-party/chameleon-backend/internal/engine"
	"github.com/chameleon-party/chameleon-backend/internal/store"
)

// createAttempts bounds how many candidate codes Create tries before
// giving up.
const createAttempts = 5

var ErrCodeExhausted = errors.New("could not allocate a unique room code")

// Directory lists and creates rooms and routes clients into them.
type Directory struct {
	store store.Store
	log   *zap.Logger

	// overridable in tests
	generateCode func() (string, error)
}

func NewDirectory(st store.Store, log *zap.Logger) *Directory {
	return &Directory{
		store:        st,
		log:          log,
		generateCode: GenerateCode,
	}
}

// Create allocates a code and creates the room as one conditional insert
// per attempt. A concurrent creator winning the same code surfaces as
// ErrExists from the store, and this creator retries with a fresh code.
func (d *Directory) Create(ctx context.Context, name string) (engine.Room, error) {
	for attempt := 0; attempt < createAttempts; attempt++ {
		code, err := d.generateCode()
		if err != nil {
			return engine.Room{}, err
		}
		r := engine.NewRoom(code, name, time.Now())
		err = d.store.CreateRoom(ctx, r)
		if errors.Is(err, store.ErrExists) {
			d.log.Info("room code collision, retrying", zap.String("code", code))
			continue
		}
		if err != nil {
			return engine.Room{}, err
		}
		d.log.Info("room created", zap.String("code", code))
		return r, nil
	}
	return engine.Room{}, ErrCodeExhausted
}

func (d *Directory) Get(ctx context.Context, code string) (store.Snapshot, error) {
	return d.store.Room(ctx, NormalizeCode(code))
}

func (d *Directory) List(ctx context.Context) ([]engine.Room, error) {
	return d.store.ListRooms(ctx)
}

func (d *Directory) Delete(ctx context.Context, code string) error {
	return d.store.DeleteRoom(ctx, NormalizeCode(code))
}
