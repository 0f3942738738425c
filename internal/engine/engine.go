package engine

import (
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/chameleon-party/chameleon-backend/internal/catalog"
)

var ErrAlreadyStarted = errors.New("round already in progress")
var ErrNoPlayers = errors.New("no players in room")
var ErrNoTopics = errors.New("topic catalog is empty")
var ErrNameRequired = errors.New("player name required")
var ErrInvalidState = errors.New("operation not allowed in current state")

// StartRound transitions Waiting -> InProgress. The player list passed in
// becomes the round membership snapshot; players joining afterwards wait
// for the next round. The caller must run this inside a store transaction
// so two concurrent starters cannot both observe Waiting.
func StartRound(r Room, players []Player, cat *catalog.Catalog, rng *rand.Rand, now time.Time) (Room, error) {
	if r.Status == StatusInProgress {
		return r, ErrAlreadyStarted
	}
	if len(players) == 0 {
		return r, ErrNoPlayers
	}
	if cat.Len() == 0 {
		return r, ErrNoTopics
	}

	idx, bag, err := DrawTopic(r.TopicBag, cat.Len(), rng)
	if err != nil {
		return r, err
	}
	topic := cat.Topic(idx)

	word := ""
	if len(topic.Options) > 0 {
		word = topic.Options[rng.Intn(len(topic.Options))]
	}

	roundIDs := make([]string, 0, len(players))
	for _, p := range players {
		roundIDs = append(roundIDs, p.ID)
	}

	r.Status = StatusInProgress
	r.Round++
	r.RoundPlayerIDs = roundIDs
	r.TopicBag = bag
	r.Topic = topic.Name
	r.TopicIndex = idx
	r.Word = word
	r.ChameleonID = roundIDs[rng.Intn(len(roundIDs))]
	r.VoteStatus = VoteInactive
	r.Votes = nil
	r.VoteResults = nil
	r.StartedAt = now
	r.UpdatedAt = now
	return r, nil
}

// EndRound resets the room to Waiting. Idempotent.
func EndRound(r Room, now time.Time) Room {
	r.Status = StatusWaiting
	r.VoteStatus = VoteInactive
	r.Votes = nil
	r.VoteResults = nil
	r.UpdatedAt = now
	return r
}

// CallVote opens voting. Re-opening an already-open vote is rejected so an
// accidental second click cannot wipe votes already cast.
func CallVote(r Room, now time.Time) (Room, bool) {
	if r.Status != StatusInProgress || r.VoteStatus == VoteOpen {
		return r, false
	}
	r.VoteStatus = VoteOpen
	r.Votes = nil
	r.VoteResults = nil
	r.VoteStartedAt = now
	r.UpdatedAt = now
	return r, true
}

// CastVote records voter -> target, overwriting any earlier vote by the
// same voter. Rejections (wrong state, non-member, self-vote) leave the
// room untouched and report accepted=false.
func CastVote(r Room, voterID, targetID string, now time.Time) (Room, bool) {
	if r.Status != StatusInProgress || r.VoteStatus != VoteOpen {
		return r, false
	}
	if !r.InRound(voterID) || !r.InRound(targetID) || voterID == targetID {
		return r, false
	}
	votes := cloneVotes(r.Votes)
	votes[voterID] = targetID
	r.Votes = votes
	r.UpdatedAt = now
	return r, true
}

func CancelVote(r Room, now time.Time) (Room, bool) {
	if r.Status != StatusInProgress || r.VoteStatus != VoteOpen {
		return r, false
	}
	r.VoteStatus = VoteInactive
	r.Votes = nil
	r.VoteResults = nil
	r.UpdatedAt = now
	return r, true
}

// FinalizeReady reports whether every round member has a recorded vote.
func FinalizeReady(r Room) bool {
	if r.Status != StatusInProgress || r.VoteStatus != VoteOpen {
		return false
	}
	if len(r.RoundPlayerIDs) == 0 {
		return false
	}
	for _, id := range r.RoundPlayerIDs {
		if r.Votes[id] == "" {
			return false
		}
	}
	return true
}

// Finalize closes an Open vote into a Complete tally. It re-checks
// readiness on the room value it is given, so when run inside a store
// transaction a losing finalizer re-reads Complete and becomes a no-op.
func Finalize(r Room, players []Player, now time.Time) (Room, bool) {
	if !FinalizeReady(r) {
		return r, false
	}
	r.VoteStatus = VoteComplete
	r.VoteResults = Tally(r, players)
	r.UpdatedAt = now
	return r, true
}

// Tally produces one result per round member, sorted by count descending.
// Ties keep round-membership order. Votes from or at non-members are not
// counted.
func Tally(r Room, players []Player) []VoteResult {
	names := make(map[string]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
	}

	counts := make(map[string]int, len(r.RoundPlayerIDs))
	for _, voterID := range r.RoundPlayerIDs {
		targetID := r.Votes[voterID]
		if targetID == "" || !r.InRound(targetID) {
			continue
		}
		counts[targetID]++
	}

	results := make([]VoteResult, 0, len(r.RoundPlayerIDs))
	for _, id := range r.RoundPlayerIDs {
		name := names[id]
		if name == "" {
			name = "Player"
		}
		results = append(results, VoteResult{ID: id, Name: name, Count: counts[id]})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Count > results[j].Count
	})
	return results
}

type RevealRole string

const (
	RevealChameleon RevealRole = "chameleon"
	RevealWord      RevealRole = "word"
	RevealQueued    RevealRole = "queued"
)

type Reveal struct {
	Role RevealRole `json:"role"`
	Word string     `json:"word,omitempty"`
}

// RevealFor projects a player's secret view of the round. Players outside
// the membership snapshot are queued for the next round; the chameleon
// never sees the word.
func RevealFor(r Room, playerID string) Reveal {
	if !r.InRound(playerID) {
		return Reveal{Role: RevealQueued}
	}
	if playerID == r.ChameleonID {
		return Reveal{Role: RevealChameleon}
	}
	return Reveal{Role: RevealWord, Word: r.Word}
}
