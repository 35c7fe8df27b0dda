package lottery

import (
	"errors"
	"testing"
)

func TestSnapshotBatchRecordsEpochBalances(t *testing.T) {
	f := newFixture(t)
	f.initProtocol(t)
	f.initRound(t, 1)
	f.deposit(t, alice, 2*testTicketPrice)
	f.deposit(t, bob, testTicketPrice)

	updated, err := f.engine.SnapshotBatch(1, [][20]byte{alice, bob, carol})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	// carol has no record and is skipped, not reported.
	if updated != 2 {
		t.Fatalf("updated = %d, want 2", updated)
	}

	a := f.state.participants[alice]
	if a.SnapshotBalances[0] != 2*testTicketPrice {
		t.Fatalf("epoch-1 snapshot = %d, want %d", a.SnapshotBalances[0], 2*testTicketPrice)
	}
	if a.SnapshotMask != 0b001 {
		t.Fatalf("mask = %b, want 001", a.SnapshotMask)
	}
}

func TestSnapshotBatchIdempotentPerEpoch(t *testing.T) {
	f := newFixture(t)
	f.initProtocol(t)
	f.initRound(t, 1)
	f.deposit(t, alice, testTicketPrice)

	if _, err := f.engine.SnapshotBatch(1, [][20]byte{alice}); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	f.deposit(t, alice, testTicketPrice)
	updated, err := f.engine.SnapshotBatch(1, [][20]byte{alice})
	if err != nil {
		t.Fatalf("second snapshot: %v", err)
	}
	if updated != 0 {
		t.Fatalf("updated = %d, repeat in the same epoch must be a no-op", updated)
	}
	// The slot keeps the balance seen at the first snapshot.
	if got := f.state.participants[alice].SnapshotBalances[0]; got != testTicketPrice {
		t.Fatalf("epoch-1 snapshot = %d, want %d", got, testTicketPrice)
	}
}

func TestSnapshotBatchTracksEpochSlots(t *testing.T) {
	f := newFixture(t)
	f.initProtocol(t)
	f.initRound(t, 1)
	f.deposit(t, alice, testTicketPrice)

	if _, err := f.engine.SnapshotBatch(1, [][20]byte{alice}); err != nil {
		t.Fatalf("epoch 1 snapshot: %v", err)
	}
	if err := f.engine.AdvanceEpoch(admin, 1); err != nil {
		t.Fatalf("advance: %v", err)
	}
	f.deposit(t, alice, testTicketPrice)
	if _, err := f.engine.SnapshotBatch(1, [][20]byte{alice}); err != nil {
		t.Fatalf("epoch 2 snapshot: %v", err)
	}

	p := f.state.participants[alice]
	if p.SnapshotMask != 0b011 {
		t.Fatalf("mask = %b, want 011", p.SnapshotMask)
	}
	if p.SnapshotBalances[0] != testTicketPrice || p.SnapshotBalances[1] != 2*testTicketPrice {
		t.Fatalf("snapshots = %v", p.SnapshotBalances)
	}
}

func TestSnapshotBatchUnknownRound(t *testing.T) {
	f := newFixture(t)
	f.initProtocol(t)
	if _, err := f.engine.SnapshotBatch(9, [][20]byte{alice}); !errors.Is(err, ErrMissingRound) {
		t.Fatalf("expected ErrMissingRound, got %v", err)
	}
}
