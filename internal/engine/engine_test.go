package engine

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/chameleon-party/chameleon-backend/internal/catalog"
)

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Topic{
		{Name: "Animals", Options: []string{"Cat", "Dog"}},
		{Name: "Food", Options: []string{"Pizza"}},
		{Name: "Silence", Options: nil},
	})
}

func testPlayers(ids ...string) []Player {
	now := time.Now()
	players := make([]Player, 0, len(ids))
	for i, id := range ids {
		players = append(players, Player{
			ID:       id,
			Name:     "Player " + id,
			JoinedAt: now.Add(time.Duration(i) * time.Second),
			LastSeen: now,
		})
	}
	return players
}

func startedRoom(t *testing.T, ids ...string) Room {
	t.Helper()
	r := NewRoom("ABCDE", "", time.Now())
	r, err := StartRound(r, testPlayers(ids...), testCatalog(), rand.New(rand.NewSource(1)), time.Now())
	if err != nil {
		t.Fatalf("start round: %v", err)
	}
	return r
}

func TestNewRoom_Defaults(t *testing.T) {
	r := NewRoom("QZ2MV", "", time.Now())
	if r.Name != "Lobby QZ2MV" {
		t.Fatalf("want default name, got %q", r.Name)
	}
	if r.Status != StatusWaiting || r.VoteStatus != VoteInactive {
		t.Fatalf("unexpected initial state: %+v", r)
	}
	if r.TopicIndex != -1 || r.Round != 0 {
		t.Fatalf("expected no round yet: %+v", r)
	}
}

func TestStartRound_SnapshotsMembershipAndAssignsSecret(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	r := NewRoom("ABCDE", "", time.Now())
	players := testPlayers("a", "b", "c")

	r, err := StartRound(r, players, testCatalog(), rng, time.Now())
	if err != nil {
		t.Fatalf("start round: %v", err)
	}

	if r.Status != StatusInProgress || r.Round != 1 {
		t.Fatalf("expected round 1 in progress, got %+v", r)
	}
	if len(r.RoundPlayerIDs) != 3 {
		t.Fatalf("expected 3 round members, got %v", r.RoundPlayerIDs)
	}
	if !r.InRound(r.ChameleonID) {
		t.Fatalf("chameleon %q not in round %v", r.ChameleonID, r.RoundPlayerIDs)
	}
	if r.TopicIndex < 0 || r.TopicIndex > 2 {
		t.Fatalf("topic index out of range: %d", r.TopicIndex)
	}
	if r.VoteStatus != VoteInactive || r.Votes != nil || r.VoteResults != nil {
		t.Fatalf("voting not reset: %+v", r)
	}
}

func TestStartRound_Validation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	r := NewRoom("ABCDE", "", time.Now())

	if _, err := StartRound(r, nil, testCatalog(), rng, time.Now()); !errors.Is(err, ErrNoPlayers) {
		t.Fatalf("want ErrNoPlayers, got %v", err)
	}
	if _, err := StartRound(r, testPlayers("a"), catalog.New(nil), rng, time.Now()); !errors.Is(err, ErrNoTopics) {
		t.Fatalf("want ErrNoTopics, got %v", err)
	}

	started := startedRoom(t, "a", "b")
	if _, err := StartRound(started, testPlayers("a", "b"), testCatalog(), rng, time.Now()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("want ErrAlreadyStarted, got %v", err)
	}
}

func TestStartRound_EmptyOptionsMeansEmptyWord(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cat := catalog.New([]catalog.Topic{{Name: "Silence"}})
	r := NewRoom("ABCDE", "", time.Now())

	r, err := StartRound(r, testPlayers("a", "b"), cat, rng, time.Now())
	if err != nil {
		t.Fatalf("start round: %v", err)
	}
	if r.Word != "" {
		t.Fatalf("expected empty word, got %q", r.Word)
	}
	if r.Topic != "Silence" {
		t.Fatalf("expected topic name, got %q", r.Topic)
	}
}

func TestEndRound_Idempotent(t *testing.T) {
	r := startedRoom(t, "a", "b")
	r, _ = CallVote(r, time.Now())

	r = EndRound(r, time.Now())
	if r.Status != StatusWaiting || r.VoteStatus != VoteInactive {
		t.Fatalf("round not ended: %+v", r)
	}
	again := EndRound(r, time.Now())
	if again.Status != StatusWaiting {
		t.Fatalf("end round should be idempotent: %+v", again)
	}
}

func TestCallVote_DoesNotWipeOpenVote(t *testing.T) {
	r := startedRoom(t, "a", "b", "c")

	r, ok := CallVote(r, time.Now())
	if !ok || r.VoteStatus != VoteOpen {
		t.Fatalf("call vote rejected: %+v", r)
	}
	r, ok = CastVote(r, "a", "b", time.Now())
	if !ok {
		t.Fatalf("cast vote rejected")
	}

	// A second call while open must be a no-op rejection, not a reset.
	r2, ok := CallVote(r, time.Now())
	if ok {
		t.Fatalf("re-opening an open vote should be rejected")
	}
	if r2.Votes["a"] != "b" {
		t.Fatalf("in-flight vote wiped: %+v", r2.Votes)
	}
}

func TestCastVote_Rejections(t *testing.T) {
	r := startedRoom(t, "a", "b", "c")
	r, _ = CallVote(r, time.Now())

	cases := []struct {
		name   string
		voter  string
		target string
	}{
		{"self vote", "a", "a"},
		{"voter not in round", "z", "a"},
		{"target not in round", "a", "z"},
	}
	for _, tc := range cases {
		if _, ok := CastVote(r, tc.voter, tc.target, time.Now()); ok {
			t.Fatalf("%s: expected rejection", tc.name)
		}
	}

	closed := EndRound(r, time.Now())
	if _, ok := CastVote(closed, "a", "b", time.Now()); ok {
		t.Fatalf("vote outside open voting should be rejected")
	}
}

func TestCastVote_OverwritesPriorVote(t *testing.T) {
	r := startedRoom(t, "a", "b", "c")
	r, _ = CallVote(r, time.Now())

	r, _ = CastVote(r, "a", "b", time.Now())
	r, _ = CastVote(r, "a", "c", time.Now())
	if r.Votes["a"] != "c" {
		t.Fatalf("expected overwrite to c, got %q", r.Votes["a"])
	}
	if len(r.Votes) != 1 {
		t.Fatalf("expected a single recorded vote, got %v", r.Votes)
	}
}

func TestCancelVote_ClearsEverything(t *testing.T) {
	r := startedRoom(t, "a", "b")
	r, _ = CallVote(r, time.Now())
	r, _ = CastVote(r, "a", "b", time.Now())

	r, ok := CancelVote(r, time.Now())
	if !ok {
		t.Fatalf("cancel rejected")
	}
	if r.VoteStatus != VoteInactive || len(r.Votes) != 0 {
		t.Fatalf("cancel did not clear voting: %+v", r)
	}
	if _, ok := CancelVote(r, time.Now()); ok {
		t.Fatalf("cancel without an open vote should be rejected")
	}
}

func TestFinalize_TallyScenario(t *testing.T) {
	players := testPlayers("a", "b", "c")
	r := NewRoom("ABCDE", "", time.Now())
	r, err := StartRound(r, players, testCatalog(), rand.New(rand.NewSource(7)), time.Now())
	if err != nil {
		t.Fatalf("start round: %v", err)
	}
	r, _ = CallVote(r, time.Now())

	r, _ = CastVote(r, "a", "c", time.Now())
	r, _ = CastVote(r, "b", "c", time.Now())
	if FinalizeReady(r) {
		t.Fatalf("finalize should wait for all round members")
	}
	r, _ = CastVote(r, "c", "a", time.Now())
	if !FinalizeReady(r) {
		t.Fatalf("finalize should be ready once everyone voted")
	}

	r, ok := Finalize(r, players, time.Now())
	if !ok {
		t.Fatalf("finalize rejected")
	}
	if r.VoteStatus != VoteComplete {
		t.Fatalf("want complete, got %s", r.VoteStatus)
	}

	want := []VoteResult{
		{ID: "c", Name: "Player c", Count: 2},
		{ID: "a", Name: "Player a", Count: 1},
		{ID: "b", Name: "Player b", Count: 0},
	}
	if len(r.VoteResults) != len(want) {
		t.Fatalf("results length: got %d want %d", len(r.VoteResults), len(want))
	}
	for i := range want {
		if r.VoteResults[i] != want[i] {
			t.Fatalf("result %d: got %+v want %+v", i, r.VoteResults[i], want[i])
		}
	}

	// A losing finalizer re-reads Complete and becomes a no-op.
	if _, ok := Finalize(r, players, time.Now()); ok {
		t.Fatalf("second finalize must lose")
	}
}

func TestTally_TiesKeepRoundOrder(t *testing.T) {
	players := testPlayers("a", "b", "c", "d")
	r := startedRoom(t, "a", "b", "c", "d")
	r, _ = CallVote(r, time.Now())
	r, _ = CastVote(r, "a", "b", time.Now())
	r, _ = CastVote(r, "b", "a", time.Now())
	r, _ = CastVote(r, "c", "d", time.Now())
	r, _ = CastVote(r, "d", "c", time.Now())

	results := Tally(r, players)
	// Everyone has one vote; order must follow round membership.
	for i, id := range []string{"a", "b", "c", "d"} {
		if results[i].ID != id || results[i].Count != 1 {
			t.Fatalf("result %d: got %+v", i, results[i])
		}
	}
}

func TestTally_CountsSumToValidVotes(t *testing.T) {
	players := testPlayers("a", "b", "c")
	r := startedRoom(t, "a", "b", "c")
	r, _ = CallVote(r, time.Now())
	r, _ = CastVote(r, "a", "b", time.Now())
	r, _ = CastVote(r, "b", "a", time.Now())

	results := Tally(r, players)
	if len(results) != 3 {
		t.Fatalf("expected a result per round member, got %d", len(results))
	}
	sum := 0
	for _, res := range results {
		sum += res.Count
	}
	if sum != 2 {
		t.Fatalf("counts should sum to cast votes: got %d", sum)
	}
}

func TestRevealFor(t *testing.T) {
	r := startedRoom(t, "a", "b", "c")
	r.ChameleonID = "b"
	r.Word = "Cat"

	if rv := RevealFor(r, "b"); rv.Role != RevealChameleon || rv.Word != "" {
		t.Fatalf("chameleon reveal leaked: %+v", rv)
	}
	if rv := RevealFor(r, "a"); rv.Role != RevealWord || rv.Word != "Cat" {
		t.Fatalf("word reveal wrong: %+v", rv)
	}
	// Joined mid-round: not in the membership snapshot.
	if rv := RevealFor(r, "d"); rv.Role != RevealQueued {
		t.Fatalf("late joiner should be queued: %+v", rv)
	}
}
