package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rafa/native/lottery"
	"rafa/storage"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewMemDB())
}

func TestProtocolRoundTrip(t *testing.T) {
	store := newTestStore(t)

	_, ok, err := store.ProtocolGet()
	require.NoError(t, err)
	require.False(t, ok)

	protocol := &lottery.ProtocolState{
		Admin:           testAddr(0xAA),
		Validator:       testAddr(0xAB),
		CurrentRound:    3,
		PrizeSeedAmount: 1_000_000,
		UnclaimedPrizes: 42,
	}
	require.NoError(t, store.ProtocolPut(protocol))

	loaded, ok, err := store.ProtocolGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, protocol, loaded)

	require.NoError(t, store.ProtocolDelete())
	_, ok, err = store.ProtocolGet()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRoundRoundTripKeepsWinner(t *testing.T) {
	store := newTestStore(t)

	round := &lottery.Round{
		RoundID:          7,
		EpochInRound:     3,
		StartTimeMS:      1_000,
		EndTimeMS:        361_000,
		TotalStaked:      30_000_000,
		TotalPrize:       1_000_000,
		TotalTicketsSold: 3,
		Winner:           lottery.Winner{Address: testAddr(0x02), Valid: true},
		WinningTicket:    1,
		Complete:         true,
	}
	require.NoError(t, store.RoundPut(round))

	loaded, ok, err := store.RoundGet(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, round, loaded)

	// A winner drawn at the zero identity survives the round trip.
	round.Winner = lottery.Winner{Valid: true}
	require.NoError(t, store.RoundPut(round))
	loaded, _, err = store.RoundGet(7)
	require.NoError(t, err)
	require.True(t, loaded.Winner.Valid)
	require.Equal(t, [20]byte{}, loaded.Winner.Address)
}

func TestParticipantIndexFirstSeenOrder(t *testing.T) {
	store := newTestStore(t)

	first := &lottery.Participant{Owner: testAddr(0x01), Balance: 10, RoundJoined: 1}
	second := &lottery.Participant{Owner: testAddr(0x02), Balance: 20, RoundJoined: 1}
	require.NoError(t, store.ParticipantPut(first))
	require.NoError(t, store.ParticipantPut(second))
	// Rewriting an existing record must not duplicate the index entry.
	first.Balance = 30
	require.NoError(t, store.ParticipantPut(first))

	index, err := store.ParticipantIndex()
	require.NoError(t, err)
	require.Equal(t, [][20]byte{testAddr(0x01), testAddr(0x02)}, index)

	candidates, err := store.ParticipantCandidates()
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.Equal(t, uint64(30), candidates[0].Balance)
}

func TestParticipantSnapshotBalancesSurviveEncoding(t *testing.T) {
	store := newTestStore(t)

	participant := &lottery.Participant{
		Owner:                   testAddr(0x01),
		Balance:                 50,
		TicketStart:             2,
		TicketEnd:               6,
		SnapshotBalances:        [3]uint64{10, 20, 0},
		SnapshotMask:            0b011,
		RoundJoined:             4,
		PendingWithdrawalAmount: 5,
		PendingWithdrawalRound:  4,
	}
	require.NoError(t, store.ParticipantPut(participant))

	loaded, ok, err := store.ParticipantGet(testAddr(0x01))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, participant, loaded)
}

func TestClaimTicketCreateRejectsDuplicates(t *testing.T) {
	store := newTestStore(t)

	ticket := &lottery.ClaimTicket{RoundID: 1, Winner: testAddr(0x01), PrizeAmount: 100, StakeAmount: 50}
	require.NoError(t, store.ClaimTicketCreate(ticket))
	require.ErrorIs(t, store.ClaimTicketCreate(ticket), lottery.ErrClaimTicketExists)

	// Updating via Put is allowed; creation is the only guarded path.
	ticket.Claimed = true
	require.NoError(t, store.ClaimTicketPut(ticket))
	loaded, ok, err := store.ClaimTicketGet(1, testAddr(0x01))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, loaded.Claimed)

	// A different round for the same winner is a distinct ticket.
	require.NoError(t, store.ClaimTicketCreate(&lottery.ClaimTicket{RoundID: 2, Winner: testAddr(0x01)}))
}

func TestBalanceAccounting(t *testing.T) {
	store := newTestStore(t)
	addr := testAddr(0x05)

	balance, err := store.AccountBalance(addr)
	require.NoError(t, err)
	require.Zero(t, balance)

	require.NoError(t, store.AccountCredit(addr, 100))
	require.NoError(t, store.AccountDebit(addr, 40))
	balance, err = store.AccountBalance(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(60), balance)

	require.ErrorIs(t, store.AccountDebit(addr, 61), lottery.ErrInsufficientFunds)

	require.NoError(t, store.PoolCredit(1_000))
	require.NoError(t, store.PoolDebit(400))
	pool, err := store.PoolBalance()
	require.NoError(t, err)
	require.Equal(t, uint64(600), pool)
	require.ErrorIs(t, store.PoolDebit(601), lottery.ErrInsufficientFunds)
}

func TestCreditOverflowRejected(t *testing.T) {
	store := newTestStore(t)
	addr := testAddr(0x06)

	require.NoError(t, store.AccountCredit(addr, ^uint64(0)))
	require.ErrorIs(t, store.AccountCredit(addr, 1), lottery.ErrArithmeticOverflow)
}
