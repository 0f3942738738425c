package engine

import "time"

type RoomStatus string

const (
	StatusWaiting    RoomStatus = "waiting"
	StatusInProgress RoomStatus = "in_progress"
)

type VoteStatus string

const (
	VoteInactive VoteStatus = "inactive"
	VoteOpen     VoteStatus = "open"
	VoteComplete VoteStatus = "complete"
)

// Room is the shared per-session document. Every attached client sees the
// full doc and derives its view from it; reveal is a projection, not a
// separate secret channel.
type Room struct {
	Code           string            `json:"code"`
	Name           string            `json:"name"`
	Status         RoomStatus        `json:"status"`
	Round          int               `json:"round"`
	RoundPlayerIDs []string          `json:"roundPlayerIds,omitempty"`
	TopicBag       []int             `json:"topicBag"`
	Topic          string            `json:"topic,omitempty"`
	TopicIndex     int               `json:"topicIndex"` // -1 until first round
	Word           string            `json:"word,omitempty"`
	ChameleonID    string            `json:"chameleonId,omitempty"`
	VoteStatus     VoteStatus        `json:"voteStatus"`
	Votes          map[string]string `json:"votes,omitempty"`
	VoteResults    []VoteResult      `json:"voteResults,omitempty"`
	PlayerCount    int               `json:"playerCount"`
	CreatedAt      time.Time         `json:"createdAt"`
	StartedAt      time.Time         `json:"startedAt,omitzero"`
	VoteStartedAt  time.Time         `json:"voteStartedAt,omitzero"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Player is one roster entry, keyed by the client's stable identity.
type Player struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
	LastSeen time.Time `json:"lastSeen"`
}

type VoteResult struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func NewRoom(code, name string, now time.Time) Room {
	if name == "" {
		name = "Lobby " + code
	}
	return Room{
		Code:       code,
		Name:       name,
		Status:     StatusWaiting,
		TopicBag:   []int{},
		TopicIndex: -1,
		VoteStatus: VoteInactive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// InRound reports whether the player is part of the current round's
// frozen membership snapshot.
func (r Room) InRound(playerID string) bool {
	for _, id := range r.RoundPlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

func cloneVotes(votes map[string]string) map[string]string {
	out := make(map[string]string, len(votes))
	for k, v := range votes {
		out[k] = v
	}
	return out
}
