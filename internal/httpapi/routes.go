package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chameleon-party/chameleon-backend/internal/room"
	"github.com/chameleon-party/chameleon-backend/internal/store"
	"github.com/chameleon-party/chameleon-backend/internal/ws"
)

func SetupRoutes(st store.Store, d *room.Directory, svc *room.Service, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/rooms", CreateRoom(d, log))
	r.Get("/rooms", ListRooms(d, log))
	r.Get("/rooms/{code}", GetRoom(d, log))
	r.Delete("/rooms/{code}", DeleteRoom(d, log))
	r.Get("/rooms/{code}/qr", RoomQR(d, log))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(st, svc, log))
	return r
}
