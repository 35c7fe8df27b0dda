package lottery

import "math/bits"

// EpochsPerRound is the number of time-boxed epochs in one round. Deposits
// are accepted in epochs 1 and 2; epoch 3 blocks deposits and awaits
// finalization.
const EpochsPerRound = 3

// Winner is the drawn identity of a completed round. Valid distinguishes
// "not yet drawn" from a draw that landed on the zero identity.
type Winner struct {
	Address [20]byte
	Valid   bool
}

// ProtocolState is the process-wide singleton: admin identity, current
// round pointer and the protocol's settlement accounting.
type ProtocolState struct {
	Admin           [20]byte
	Validator       [20]byte
	CurrentRound    uint64
	PrizeSeedAmount uint64
	// UnclaimedPrizes equals the sum of PrizeAmount over all issued,
	// unclaimed claim tickets. Teardown requires it to be zero.
	UnclaimedPrizes uint64
}

// Clone returns a copy callers can mutate safely.
func (p *ProtocolState) Clone() *ProtocolState {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Round is one lottery cycle. EpochInRound only moves forward; Winner is
// set at most once, when Complete transitions to true.
type Round struct {
	RoundID          uint64
	EpochInRound     uint8
	StartTimeMS      uint64
	EndTimeMS        uint64
	TotalStaked      uint64
	TotalPrize       uint64
	TotalTicketsSold uint64
	Winner           Winner
	WinningTicket    uint64
	Complete         bool
	PrizeClaimed     bool
}

// Clone returns a copy callers can mutate safely.
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// Participant is one record per identity, reused across rounds. The ticket
// range is inclusive and only meaningful for the round in RoundJoined.
type Participant struct {
	Owner                   [20]byte
	Balance                 uint64
	TicketStart             uint64
	TicketEnd               uint64
	SnapshotBalances        [EpochsPerRound]uint64
	SnapshotMask            uint8
	RoundJoined             uint64
	PendingWithdrawalAmount uint64
	PendingWithdrawalRound  uint64
}

// Clone returns a copy callers can mutate safely.
func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// HoldsTicket reports whether the participant's range covers the ticket for
// the given round. Stale records from other rounds never match.
func (p *Participant) HoldsTicket(roundID, ticket uint64) bool {
	if p == nil || p.RoundJoined != roundID {
		return false
	}
	return ticket >= p.TicketStart && ticket <= p.TicketEnd
}

// resetForRound clears all per-round state when the participant joins a new
// round with a stale record.
func (p *Participant) resetForRound() {
	p.Balance = 0
	p.TicketStart = 0
	p.TicketEnd = 0
	p.SnapshotBalances = [EpochsPerRound]uint64{}
	p.SnapshotMask = 0
	p.PendingWithdrawalAmount = 0
	p.PendingWithdrawalRound = 0
}

// ClaimTicket fixes the exact payout owed to a round's winner. It is created
// once per (round, winner) and immutable except for the Claimed flag.
type ClaimTicket struct {
	RoundID     uint64
	Winner      [20]byte
	PrizeAmount uint64
	StakeAmount uint64
	Claimed     bool
}

// Clone returns a copy callers can mutate safely.
func (c *ClaimTicket) Clone() *ClaimTicket {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// checkedAdd adds two amounts, failing instead of wrapping.
func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

// checkedSub subtracts b from a, failing instead of wrapping.
func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrArithmeticUnderflow
	}
	return diff, nil
}

// saturatingSub subtracts b from a, clamping at zero.
func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
