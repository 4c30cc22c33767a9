// Package turn maps overall pick numbers to snake-draft turns. It is a
// pure calculation shared by every caller that needs to answer "whose
// turn is pick N": the resolver, the timer engine and any replica must
// all derive the answer from here so they can never disagree.
package turn

// Turn locates one pick on the draft board.
type Turn struct {
	Round            int // 1-indexed
	SlotInRound      int // 0-indexed position within the round
	ParticipantIndex int // seat that owns the pick
}

// For computes the turn for a 1-indexed overall pick number under snake
// ordering: odd rounds run seat 0..N-1, even rounds reverse.
//
// pickNumber outside [1, totalPicks] is a caller contract violation and
// must be rejected upstream; For does not clamp.
func For(pickNumber, participantCount int) Turn {
	round := (pickNumber-1)/participantCount + 1
	slot := (pickNumber - 1) % participantCount

	participant := slot
	if round%2 == 0 {
		participant = participantCount - 1 - slot
	}

	return Turn{
		Round:            round,
		SlotInRound:      slot,
		ParticipantIndex: participant,
	}
}
