package lottery

import (
	"testing"
	"time"
)

const durMS = 120_000

func openRound(start uint64, tickets uint64) *Round {
	return &Round{RoundID: 1, EpochInRound: 1, StartTimeMS: start, TotalTicketsSold: tickets}
}

func soloCandidate(tickets uint64) []*Participant {
	return []*Participant{{
		Owner:       newTestAddress(0x01),
		Balance:     tickets * testTicketPrice,
		TicketStart: 0,
		TicketEnd:   tickets - 1,
		RoundJoined: 1,
	}}
}

func TestLifecycleEpochTargets(t *testing.T) {
	cases := []struct {
		name      string
		elapsedMS uint64
		want      uint8
	}{
		{"start", 0, 1},
		{"just before first boundary", durMS - 1, 1},
		{"first boundary", durMS, 2},
		{"mid second epoch", durMS + durMS/2, 2},
		{"second boundary", 2 * durMS, 3},
		{"far past the end", 10 * durMS, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			round := openRound(1_000, 0)
			lifecycleStep(round, 1_000+tc.elapsedMS, durMS, 0, 0, nil)
			if round.EpochInRound != tc.want {
				t.Fatalf("epoch = %d, want %d", round.EpochInRound, tc.want)
			}
		})
	}
}

func TestLifecycleEpochNeverMovesBackward(t *testing.T) {
	round := openRound(1_000, 0)
	round.EpochInRound = 3
	res := lifecycleStep(round, 1_000, durMS, 0, 0, nil)
	if res.EpochAdvanced {
		t.Fatal("epoch must not regress to the time-derived target")
	}
	if round.EpochInRound != 3 {
		t.Fatalf("epoch = %d, want 3", round.EpochInRound)
	}
}

func TestLifecycleFinalizesAtWindowEnd(t *testing.T) {
	round := openRound(1_000, 4)
	candidates := soloCandidate(4)

	res := lifecycleStep(round, 1_000+3*durMS-1, durMS, 500, 6, candidates)
	if res.Finalized || round.Complete {
		t.Fatal("finalized before the window closed")
	}

	res = lifecycleStep(round, 1_000+3*durMS, durMS, 500, 6, candidates)
	if !res.Finalized || !round.Complete {
		t.Fatal("did not finalize at the window end")
	}
	if round.WinningTicket != 6%4 {
		t.Fatalf("winning ticket = %d, want %d", round.WinningTicket, 6%4)
	}
	if round.TotalPrize != 500 {
		t.Fatalf("prize = %d, want the pool amount", round.TotalPrize)
	}
	if round.EndTimeMS != 1_000+3*durMS {
		t.Fatalf("end time = %d", round.EndTimeMS)
	}
}

func TestLifecycleNoTicketsNoDraw(t *testing.T) {
	round := openRound(1_000, 0)
	res := lifecycleStep(round, 1_000+3*durMS, durMS, 500, 6, nil)
	if res.Finalized || round.Complete {
		t.Fatal("round with no tickets must not finalize")
	}
	if round.EpochInRound != EpochsPerRound {
		t.Fatalf("epoch = %d, want %d", round.EpochInRound, EpochsPerRound)
	}
}

func TestLifecycleUnmatchedTicketLeavesRoundOpen(t *testing.T) {
	round := openRound(1_000, 4)
	// The only candidate belongs to another round, so no range matches.
	candidates := soloCandidate(4)
	candidates[0].RoundJoined = 2

	res := lifecycleStep(round, 1_000+3*durMS, durMS, 500, 6, candidates)
	if res.Finalized || round.Complete {
		t.Fatal("round must stay open when the drawn ticket has no owner")
	}
}

func TestLifecycleCompleteRoundUntouched(t *testing.T) {
	round := openRound(1_000, 4)
	round.Complete = true
	round.EpochInRound = 3
	res := lifecycleStep(round, 1_000+10*durMS, durMS, 500, 6, soloCandidate(4))
	if res.Changed() {
		t.Fatal("complete round must not change")
	}
}

func TestFindTicketOwnerFirstMatchWins(t *testing.T) {
	first := &Participant{Owner: newTestAddress(0x01), TicketStart: 0, TicketEnd: 2, RoundJoined: 1}
	overlap := &Participant{Owner: newTestAddress(0x02), TicketStart: 2, TicketEnd: 3, RoundJoined: 1}

	winner, found := findTicketOwner(1, 2, []*Participant{nil, first, overlap})
	if !found {
		t.Fatal("owner not found")
	}
	if winner.Address != first.Owner {
		t.Fatalf("winner = %x, want the first in-order match", winner.Address[:1])
	}

	if _, found := findTicketOwner(1, 9, []*Participant{first, overlap}); found {
		t.Fatal("found owner for an unsold ticket")
	}
}

func TestClockSeedDeterministicPerInstant(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	a := ClockSeed{}.DrawSeed(now)
	b := ClockSeed{}.DrawSeed(now)
	if a != b {
		t.Fatalf("seed not deterministic: %d vs %d", a, b)
	}
	if c := (ClockSeed{}).DrawSeed(now.Add(time.Second)); c == a {
		t.Fatal("seed did not change with the clock")
	}
}
