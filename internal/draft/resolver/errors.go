package resolver

import (
	"errors"

	"github.com/mcdev12/draftroom/internal/draft/ledger"
)

// Expected, recoverable rejection reasons. Callers resync their view of
// the current pick and may resubmit; none of these corrupt state.
var (
	// ErrNotActive means the draft is waiting, paused or complete.
	ErrNotActive = errors.New("draft is not active")

	// ErrStalePick means the turn already advanced past the requested
	// pick number. The caller must re-read state before retrying.
	ErrStalePick = errors.New("pick number is stale")

	// ErrNotYourTurn means the requester does not own the current pick.
	ErrNotYourTurn = errors.New("not the requester's turn")

	// ErrPlayerUnavailable means the player is unknown to the catalog or
	// already drafted.
	ErrPlayerUnavailable = errors.New("player is unavailable")

	// ErrDuplicatePlayer is the ledger-level conflict surfaced unchanged
	// when an append loses the race on player uniqueness.
	ErrDuplicatePlayer = ledger.ErrDuplicatePlayer
)
