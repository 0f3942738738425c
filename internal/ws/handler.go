package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chameleon-party/chameleon-backend/internal/engine"
	"github.com/chameleon-party/chameleon-backend/internal/room"
	"github.com/chameleon-party/chameleon-backend/internal/store"
	"github.com/chameleon-party/chameleon-backend/internal/types"
)

const identityCookie = "chameleon_id"

// Handler attaches a client to a room: it streams a full snapshot on every
// committed change and applies the client's commands through the room
// service. Identity is an opaque uuid pinned to a cookie on first contact.
func Handler(st store.Store, svc *room.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := room.NormalizeCode(r.URL.Query().Get("code"))
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		if _, err := st.Room(r.Context(), code); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "room not found", http.StatusNotFound)
				return
			}
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}

		playerID := playerIdentity(w, r)

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		log := log.With(zap.String("room", code), zap.String("player", playerID))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		snapshots, err := st.Watch(ctx, code)
		if err != nil {
			return
		}

		// Writer: push snapshots, and run the auto-finalize check against
		// each one. Every client observes the completing vote; the service
		// guarantees only one finalize commits.
		go func() {
			defer cancel()
			for snap := range snapshots {
				if snap.Deleted {
					writeMsg(ctx, conn, types.ServerMessage{Type: "room_closed", PlayerID: playerID})
					return
				}
				msg := types.ServerMessage{
					Type:     "snapshot",
					PlayerID: playerID,
					Room:     &snap.Room,
					Players:  snap.Players,
				}
				if err := writeMsg(ctx, conn, msg); err != nil {
					return
				}
				svc.MaybeFinalize(ctx, snap)
			}
		}()

		// Reader loop
		for {
			var cm types.ClientMessage
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if ctx.Err() == nil {
						log.Debug("read failed", zap.Error(err))
					}
				}
				return
			}
			if err := json.Unmarshal(data, &cm); err != nil {
				writeMsg(ctx, conn, types.ServerMessage{Type: "error", Error: "bad json"})
				continue
			}
			if errText := apply(ctx, svc, conn, code, playerID, cm); errText != "" {
				writeMsg(ctx, conn, types.ServerMessage{Type: "error", Error: errText})
			}
		}
	}
}

// apply dispatches one client command. The returned string is a user-facing
// validation message, empty when the command was applied or was a harmless
// no-op rejection.
func apply(ctx context.Context, svc *room.Service, conn *websocket.Conn, code, playerID string, cm types.ClientMessage) string {
	var err error
	switch cm.Type {
	case "join":
		_, err = svc.Join(ctx, code, playerID, cm.Name)
	case "leave":
		_, err = svc.Leave(ctx, code, playerID)
	case "clear_players":
		_, err = svc.Clear(ctx, code)
	case "start_round":
		_, err = svc.StartRound(ctx, code, playerID)
	case "end_round":
		_, err = svc.EndRound(ctx, code)
	case "call_vote":
		_, _, err = svc.CallVote(ctx, code)
	case "cast_vote":
		// Rejections (self-vote, not in round) are silent no-ops; the
		// client UI already filters illegal targets.
		_, _, err = svc.CastVote(ctx, code, playerID, cm.TargetID)
	case "cancel_vote":
		_, _, err = svc.CancelVote(ctx, code)
	case "reveal":
		var rv engine.Reveal
		rv, err = svc.Reveal(ctx, code, playerID)
		if err == nil {
			writeMsg(ctx, conn, types.ServerMessage{Type: "reveal", PlayerID: playerID, Reveal: &rv})
		}
	default:
		return "unknown type"
	}
	return userMessage(err)
}

func userMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, engine.ErrNameRequired):
		return "Enter a name to join."
	case errors.Is(err, engine.ErrNoPlayers):
		return "Add at least one player."
	case errors.Is(err, engine.ErrNoTopics):
		return "No topics available."
	case errors.Is(err, engine.ErrAlreadyStarted):
		return "A round is already in progress."
	case errors.Is(err, engine.ErrInvalidState):
		return "Not available right now."
	case errors.Is(err, room.ErrNotJoined):
		return "Join the lobby to start a round."
	case errors.Is(err, store.ErrNotFound):
		return "Lobby no longer exists."
	case errors.Is(err, store.ErrConflict):
		return "Lobby is busy, try again."
	default:
		return "Something went wrong."
	}
}

func writeMsg(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

func playerIdentity(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(identityCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     identityCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
