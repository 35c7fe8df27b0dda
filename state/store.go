package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"rafa/native/lottery"
	"rafa/storage"
)

// Store persists raffle records as RLP-encoded values in a key-value
// database and implements the engine's state interface. The database is
// the single writer authority; the store performs no in-process locking.
type Store struct {
	db storage.Database
}

// NewStore constructs a Store backed by the provided database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

type storedProtocol struct {
	Admin           [20]byte
	Validator       [20]byte
	CurrentRound    uint64
	PrizeSeedAmount uint64
	UnclaimedPrizes uint64
}

type storedRound struct {
	RoundID          uint64
	EpochInRound     uint8
	StartTimeMS      uint64
	EndTimeMS        uint64
	TotalStaked      uint64
	TotalPrize       uint64
	TotalTicketsSold uint64
	WinnerSet        bool
	Winner           [20]byte
	WinningTicket    uint64
	Complete         bool
	PrizeClaimed     bool
}

type storedParticipant struct {
	Owner                   [20]byte
	Balance                 uint64
	TicketStart             uint64
	TicketEnd               uint64
	SnapshotBalances        []uint64
	SnapshotMask            uint8
	RoundJoined             uint64
	PendingWithdrawalAmount uint64
	PendingWithdrawalRound  uint64
}

type storedClaimTicket struct {
	RoundID     uint64
	Winner      [20]byte
	PrizeAmount uint64
	StakeAmount uint64
	Claimed     bool
}

func (s *Store) get(key []byte, out interface{}) (bool, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (s *Store) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return s.db.Put(key, encoded)
}

// --- Protocol singleton ---

func (s *Store) ProtocolGet() (*lottery.ProtocolState, bool, error) {
	var stored storedProtocol
	ok, err := s.get([]byte(protocolKey), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &lottery.ProtocolState{
		Admin:           stored.Admin,
		Validator:       stored.Validator,
		CurrentRound:    stored.CurrentRound,
		PrizeSeedAmount: stored.PrizeSeedAmount,
		UnclaimedPrizes: stored.UnclaimedPrizes,
	}, true, nil
}

func (s *Store) ProtocolPut(p *lottery.ProtocolState) error {
	if p == nil {
		return fmt.Errorf("state: nil protocol state")
	}
	return s.put([]byte(protocolKey), &storedProtocol{
		Admin:           p.Admin,
		Validator:       p.Validator,
		CurrentRound:    p.CurrentRound,
		PrizeSeedAmount: p.PrizeSeedAmount,
		UnclaimedPrizes: p.UnclaimedPrizes,
	})
}

func (s *Store) ProtocolDelete() error {
	return s.db.Delete([]byte(protocolKey))
}

// --- Rounds ---

func (s *Store) RoundGet(roundID uint64) (*lottery.Round, bool, error) {
	var stored storedRound
	ok, err := s.get(roundKey(roundID), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &lottery.Round{
		RoundID:          stored.RoundID,
		EpochInRound:     stored.EpochInRound,
		StartTimeMS:      stored.StartTimeMS,
		EndTimeMS:        stored.EndTimeMS,
		TotalStaked:      stored.TotalStaked,
		TotalPrize:       stored.TotalPrize,
		TotalTicketsSold: stored.TotalTicketsSold,
		Winner:           lottery.Winner{Address: stored.Winner, Valid: stored.WinnerSet},
		WinningTicket:    stored.WinningTicket,
		Complete:         stored.Complete,
		PrizeClaimed:     stored.PrizeClaimed,
	}, true, nil
}

func (s *Store) RoundPut(r *lottery.Round) error {
	if r == nil {
		return fmt.Errorf("state: nil round")
	}
	return s.put(roundKey(r.RoundID), &storedRound{
		RoundID:          r.RoundID,
		EpochInRound:     r.EpochInRound,
		StartTimeMS:      r.StartTimeMS,
		EndTimeMS:        r.EndTimeMS,
		TotalStaked:      r.TotalStaked,
		TotalPrize:       r.TotalPrize,
		TotalTicketsSold: r.TotalTicketsSold,
		WinnerSet:        r.Winner.Valid,
		Winner:           r.Winner.Address,
		WinningTicket:    r.WinningTicket,
		Complete:         r.Complete,
		PrizeClaimed:     r.PrizeClaimed,
	})
}

// --- Participants ---

func (s *Store) ParticipantGet(addr [20]byte) (*lottery.Participant, bool, error) {
	var stored storedParticipant
	ok, err := s.get(participantKey(addr), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	participant := &lottery.Participant{
		Owner:                   stored.Owner,
		Balance:                 stored.Balance,
		TicketStart:             stored.TicketStart,
		TicketEnd:               stored.TicketEnd,
		SnapshotMask:            stored.SnapshotMask,
		RoundJoined:             stored.RoundJoined,
		PendingWithdrawalAmount: stored.PendingWithdrawalAmount,
		PendingWithdrawalRound:  stored.PendingWithdrawalRound,
	}
	for i := 0; i < len(participant.SnapshotBalances) && i < len(stored.SnapshotBalances); i++ {
		participant.SnapshotBalances[i] = stored.SnapshotBalances[i]
	}
	return participant, true, nil
}

func (s *Store) ParticipantPut(p *lottery.Participant) error {
	if p == nil {
		return fmt.Errorf("state: nil participant")
	}
	known, err := s.db.Has(participantKey(p.Owner))
	if err != nil {
		return err
	}
	if err := s.put(participantKey(p.Owner), &storedParticipant{
		Owner:                   p.Owner,
		Balance:                 p.Balance,
		TicketStart:             p.TicketStart,
		TicketEnd:               p.TicketEnd,
		SnapshotBalances:        p.SnapshotBalances[:],
		SnapshotMask:            p.SnapshotMask,
		RoundJoined:             p.RoundJoined,
		PendingWithdrawalAmount: p.PendingWithdrawalAmount,
		PendingWithdrawalRound:  p.PendingWithdrawalRound,
	}); err != nil {
		return err
	}
	if !known {
		return s.indexParticipant(p.Owner)
	}
	return nil
}

func (s *Store) indexParticipant(addr [20]byte) error {
	index, err := s.ParticipantIndex()
	if err != nil {
		return err
	}
	for _, known := range index {
		if known == addr {
			return nil
		}
	}
	index = append(index, addr)
	return s.put([]byte(participantIndexKey), index)
}

// ParticipantIndex returns every identity that ever held a participant
// record, in first-seen order.
func (s *Store) ParticipantIndex() ([][20]byte, error) {
	var index [][20]byte
	ok, err := s.get([]byte(participantIndexKey), &index)
	if err != nil || !ok {
		return nil, err
	}
	return index, nil
}

// ParticipantCandidates loads the full participant scan set. Records that
// fail to decode are skipped; the winner search and snapshot batch treat
// the candidate list as best-effort.
func (s *Store) ParticipantCandidates() ([]*lottery.Participant, error) {
	index, err := s.ParticipantIndex()
	if err != nil {
		return nil, err
	}
	candidates := make([]*lottery.Participant, 0, len(index))
	for _, addr := range index {
		participant, ok, err := s.ParticipantGet(addr)
		if err != nil || !ok {
			continue
		}
		candidates = append(candidates, participant)
	}
	return candidates, nil
}

// --- Claim tickets ---

func (s *Store) ClaimTicketGet(roundID uint64, winner [20]byte) (*lottery.ClaimTicket, bool, error) {
	var stored storedClaimTicket
	ok, err := s.get(claimTicketKey(roundID, winner), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &lottery.ClaimTicket{
		RoundID:     stored.RoundID,
		Winner:      stored.Winner,
		PrizeAmount: stored.PrizeAmount,
		StakeAmount: stored.StakeAmount,
		Claimed:     stored.Claimed,
	}, true, nil
}

func (s *Store) ClaimTicketCreate(t *lottery.ClaimTicket) error {
	if t == nil {
		return fmt.Errorf("state: nil claim ticket")
	}
	key := claimTicketKey(t.RoundID, t.Winner)
	exists, err := s.db.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return lottery.ErrClaimTicketExists
	}
	return s.ClaimTicketPut(t)
}

func (s *Store) ClaimTicketPut(t *lottery.ClaimTicket) error {
	if t == nil {
		return fmt.Errorf("state: nil claim ticket")
	}
	return s.put(claimTicketKey(t.RoundID, t.Winner), &storedClaimTicket{
		RoundID:     t.RoundID,
		Winner:      t.Winner,
		PrizeAmount: t.PrizeAmount,
		StakeAmount: t.StakeAmount,
		Claimed:     t.Claimed,
	})
}

// --- Accounts and the escrow pool ---

func (s *Store) AccountBalance(addr [20]byte) (uint64, error) {
	return s.balanceAt(accountKey(addr))
}

func (s *Store) AccountCredit(addr [20]byte, amount uint64) error {
	return s.adjust(accountKey(addr), amount, true)
}

func (s *Store) AccountDebit(addr [20]byte, amount uint64) error {
	return s.adjust(accountKey(addr), amount, false)
}

func (s *Store) PoolBalance() (uint64, error) {
	return s.balanceAt([]byte(poolKey))
}

func (s *Store) PoolCredit(amount uint64) error {
	return s.adjust([]byte(poolKey), amount, true)
}

func (s *Store) PoolDebit(amount uint64) error {
	return s.adjust([]byte(poolKey), amount, false)
}

func (s *Store) balanceAt(key []byte) (uint64, error) {
	var balance uint64
	ok, err := s.get(key, &balance)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return balance, nil
}

func (s *Store) adjust(key []byte, amount uint64, credit bool) error {
	balance, err := s.balanceAt(key)
	if err != nil {
		return err
	}
	var next uint64
	if credit {
		next = balance + amount
		if next < balance {
			return lottery.ErrArithmeticOverflow
		}
	} else {
		if balance < amount {
			return lottery.ErrInsufficientFunds
		}
		next = balance - amount
	}
	return s.put(key, next)
}
