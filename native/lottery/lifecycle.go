package lottery

import "time"

// SeedSource produces the draw seed used at finalization. The default
// implementation derives it from the host clock and is publicly
// predictable; it is a placeholder, not a fair draw. Deployments that need
// verifiable fairness plug in their own source.
type SeedSource interface {
	DrawSeed(now time.Time) uint64
}

const (
	slotMillis         = 400
	slotsPerClockEpoch = 432_000
)

// ClockSeed combines a slot counter, the unix timestamp and an epoch
// counter with wraparound multiply-add.
type ClockSeed struct{}

// DrawSeed implements the SeedSource interface. uint64 arithmetic wraps,
// which is the intended behaviour here.
func (ClockSeed) DrawSeed(now time.Time) uint64 {
	slot := uint64(now.UnixMilli()) / slotMillis
	ts := uint64(now.Unix())
	epoch := slot / slotsPerClockEpoch
	return slot*ts + epoch
}

// FixedSeed always draws the same seed. Intended for tests and for the
// admin-triggered manual selection path.
type FixedSeed uint64

// DrawSeed implements the SeedSource interface.
func (s FixedSeed) DrawSeed(time.Time) uint64 { return uint64(s) }

// lifecycleResult reports what a lifecycle step changed on the round.
type lifecycleResult struct {
	EpochAdvanced bool
	FromEpoch     uint8
	ToEpoch       uint8
	Finalized     bool
}

// Changed reports whether the step mutated the round at all.
func (r lifecycleResult) Changed() bool {
	return r.EpochAdvanced || r.Finalized
}

// lifecycleStep applies time-driven epoch advancement and, when eligible,
// finalization to round, mutating it in place. It is the single function
// behind both trigger paths (deposit processing and the permissionless
// crank), so the two stay identical by construction.
//
// The target epoch is min(elapsed/duration + 1, 3). Finalization requires
// epoch 3, the end of the third epoch window, and at least one sold ticket.
// When the drawn ticket matches no candidate range the round is left
// incomplete; the crank will retry on its next invocation.
func lifecycleStep(round *Round, nowMS, epochDurationMS, prizePool, seed uint64, candidates []*Participant) lifecycleResult {
	res := lifecycleResult{}
	if round == nil || round.Complete || epochDurationMS == 0 {
		return res
	}

	elapsedMS := saturatingSub(nowMS, round.StartTimeMS)
	targetEpoch := uint8(EpochsPerRound)
	if passed := elapsedMS / epochDurationMS; passed < EpochsPerRound-1 {
		targetEpoch = uint8(passed) + 1
	}
	if targetEpoch > round.EpochInRound {
		res.EpochAdvanced = true
		res.FromEpoch = round.EpochInRound
		res.ToEpoch = targetEpoch
		round.EpochInRound = targetEpoch
	}

	if round.EpochInRound < EpochsPerRound {
		return res
	}
	roundEndMS := round.StartTimeMS + EpochsPerRound*epochDurationMS
	if nowMS < roundEndMS || round.TotalTicketsSold == 0 {
		return res
	}

	winningTicket := seed % round.TotalTicketsSold
	winner, found := findTicketOwner(round.RoundID, winningTicket, candidates)
	if !found {
		return res
	}

	round.Winner = winner
	round.WinningTicket = winningTicket
	round.TotalPrize = prizePool
	round.EndTimeMS = nowMS
	round.Complete = true
	res.Finalized = true
	return res
}

// findTicketOwner scans the candidate set in order and returns the first
// participant whose range covers the ticket in the given round. Nil entries
// (records that failed to parse) are skipped; the candidate list is
// externally supplied and may contain unrelated records.
func findTicketOwner(roundID, ticket uint64, candidates []*Participant) (Winner, bool) {
	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		if candidate.HoldsTicket(roundID, ticket) {
			return Winner{Address: candidate.Owner, Valid: true}, true
		}
	}
	return Winner{}, false
}
