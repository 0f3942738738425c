package types

// Client -> Server (websocket, JSON)
//
// join:
//   name: string (display name; trimmed, must be non-empty)
//
// leave: {}
//
// clear_players: {} (waiting rooms only)
//
// start_round: {} (sender must be on the roster)
//
// end_round: {}
//
// call_vote: {}
//
// cast_vote:
//   target_id: string (another current-round member)
//
// cancel_vote: {}
//
// reveal: {} (answered only to the sender)

// Server -> Client
//
// snapshot:
//   player_id: string (the receiver's identity)
//   room: full room doc (code, name, status, round, roundPlayerIds,
//         topic, word, chameleonId, voteStatus, votes, voteResults,
//         playerCount, timestamps)
//   players: roster ordered by joinedAt ascending
//
// reveal:
//   reveal: { role: "chameleon" | "word" | "queued", word?: string }
//
// room_closed: {} (room was deleted; return to the directory)
//
// error:
//   error: string (user-facing message)
