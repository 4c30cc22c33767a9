package models

// Slot is a roster slot requirement, e.g. QB or FLEX. Bench slots accept
// any position and never count as a required need for auto-pick.
type Slot string

const (
	SlotQB    Slot = "QB"
	SlotRB    Slot = "RB"
	SlotWR    Slot = "WR"
	SlotTE    Slot = "TE"
	SlotK     Slot = "K"
	SlotDST   Slot = "DST"
	SlotFlex  Slot = "FLEX"
	SlotBench Slot = "BN"
)

// Valid reports whether s is a known slot type.
func (s Slot) Valid() bool {
	switch s {
	case SlotQB, SlotRB, SlotWR, SlotTE, SlotK, SlotDST, SlotFlex, SlotBench:
		return true
	default:
		return false
	}
}

// Required reports whether the slot must be filled before bench depth.
func (s Slot) Required() bool {
	return s != SlotBench
}

// Accepts reports whether a player at position p can fill the slot.
func (s Slot) Accepts(p Position) bool {
	switch s {
	case SlotBench:
		return true
	case SlotFlex:
		return p == PositionRB || p == PositionWR || p == PositionTE
	default:
		return Position(s) == p
	}
}
