package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/chameleon-party/chameleon-backend/internal/engine"
	"github.com/chameleon-party/chameleon-backend/internal/room"
	"github.com/chameleon-party/chameleon-backend/internal/store"
)

type createRequest struct {
	Name string `json:"name"`
}

type createResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func CreateRoom(d *room.Directory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if r.Body != nil {
			// Body is optional; an empty one creates an unnamed lobby.
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		created, err := d.Create(r.Context(), req.Name)
		if errors.Is(err, room.ErrCodeExhausted) {
			http.Error(w, "unable to create a lobby, try again", http.StatusConflict)
			return
		}
		if err != nil {
			log.Error("create room failed", zap.Error(err))
			http.Error(w, "failed to create lobby", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createResponse{Code: created.Code, Name: created.Name})
	}
}

func ListRooms(d *room.Directory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := d.List(r.Context())
		if err != nil {
			log.Error("list rooms failed", zap.Error(err))
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		if rooms == nil {
			rooms = []engine.Room{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rooms)
	}
}

type snapshotResponse struct {
	Room    engine.Room     `json:"room"`
	Players []engine.Player `json:"players"`
}

func GetRoom(d *room.Directory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := d.Get(r.Context(), chi.URLParam(r, "code"))
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error("get room failed", zap.Error(err))
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		if snap.Players == nil {
			snap.Players = []engine.Player{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snapshotResponse{Room: snap.Room, Players: snap.Players})
	}
}

func DeleteRoom(d *room.Directory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := d.Delete(r.Context(), chi.URLParam(r, "code"))
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error("delete room failed", zap.Error(err))
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// RoomQR renders the join link as a PNG so the code can be shared by
// pointing a phone at the host's screen.
func RoomQR(d *room.Directory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := d.Get(r.Context(), chi.URLParam(r, "code"))
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		joinURL := fmt.Sprintf("%s://%s/?code=%s", scheme, r.Host, snap.Room.Code)

		png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
		if err != nil {
			log.Error("qr encode failed", zap.Error(err))
			http.Error(w, "failed to render qr code", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
