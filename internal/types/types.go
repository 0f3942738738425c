package types

import "github.com/chameleon-party/chameleon-backend/internal/engine"

type ClientMessage struct {
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	TargetID string `json:"target_id,omitempty"`
}

type ServerMessage struct {
	Type     string          `json:"type"` // "snapshot" | "reveal" | "room_closed" | "error"
	PlayerID string          `json:"player_id,omitempty"`
	Room     *engine.Room    `json:"room,omitempty"`
	Players  []engine.Player `json:"players,omitempty"`
	Reveal   *engine.Reveal  `json:"reveal,omitempty"`
	Error    string          `json:"error,omitempty"`
}
