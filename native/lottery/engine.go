package lottery

import (
	"errors"
	"time"

	"rafa/core/events"
)

var errNilState = errors.New("lottery engine: state not configured")

// engineState is the record substrate the engine runs against. The host
// storage layer guarantees single-writer access per record and reliable
// fund transfer between the accounts and the escrow pool.
type engineState interface {
	ProtocolGet() (*ProtocolState, bool, error)
	ProtocolPut(*ProtocolState) error
	ProtocolDelete() error

	RoundGet(roundID uint64) (*Round, bool, error)
	RoundPut(*Round) error

	ParticipantGet(addr [20]byte) (*Participant, bool, error)
	ParticipantPut(*Participant) error
	// ParticipantCandidates returns the ordered scan set for winner search
	// and snapshotting. Records that fail to decode are skipped, not
	// reported as errors.
	ParticipantCandidates() ([]*Participant, error)

	ClaimTicketGet(roundID uint64, winner [20]byte) (*ClaimTicket, bool, error)
	// ClaimTicketCreate fails with ErrClaimTicketExists when a ticket for
	// the same (round, winner) was already issued.
	ClaimTicketCreate(*ClaimTicket) error
	ClaimTicketPut(*ClaimTicket) error

	AccountBalance(addr [20]byte) (uint64, error)
	AccountCredit(addr [20]byte, amount uint64) error
	AccountDebit(addr [20]byte, amount uint64) error

	PoolBalance() (uint64, error)
	PoolCredit(amount uint64) error
	PoolDebit(amount uint64) error
}

// Params carries the deployment constants of the protocol.
type Params struct {
	// TicketPrice is the fixed price of one ticket in base units.
	TicketPrice uint64
	// EpochDuration is the wall-clock length of one epoch.
	EpochDuration time.Duration
	// ReserveFloor is the pool balance that must survive any payout.
	ReserveFloor uint64
}

// Engine wires the raffle business logic with external state and event
// emitters. Every operation validates first and persists last, so a
// rejected operation leaves all touched records unchanged.
type Engine struct {
	state   engineState
	params  Params
	emitter events.Emitter
	nowFn   func() time.Time
	seeds   SeedSource
}

// NewEngine creates a raffle engine with a no-op emitter and the clock
// seed. Callers override collaborators via the Set helpers.
func NewEngine(params Params) *Engine {
	return &Engine{
		params:  params,
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
		seeds:   ClockSeed{},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetNowFunc overrides the time source used by the engine. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

// SetSeedSource overrides the draw seed source.
func (e *Engine) SetSeedSource(seeds SeedSource) {
	if seeds == nil {
		e.seeds = ClockSeed{}
		return
	}
	e.seeds = seeds
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Params returns the deployment constants the engine runs with.
func (e *Engine) Params() Params { return e.params }

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() time.Time {
	if e == nil || e.nowFn == nil {
		return time.Now()
	}
	return e.nowFn()
}

func (e *Engine) nowMS() uint64 {
	now := e.now().UnixMilli()
	if now < 0 {
		return 0
	}
	return uint64(now)
}

func (e *Engine) epochDurationMS() uint64 {
	return uint64(e.params.EpochDuration / time.Millisecond)
}

func (e *Engine) loadProtocol() (*ProtocolState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	protocol, ok, err := e.state.ProtocolGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return protocol, nil
}

func (e *Engine) requireAdmin(caller [20]byte) (*ProtocolState, error) {
	protocol, err := e.loadProtocol()
	if err != nil {
		return nil, err
	}
	if protocol.Admin != caller {
		return nil, ErrNotAuthorized
	}
	return protocol, nil
}

func (e *Engine) loadRound(roundID uint64) (*Round, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	round, ok, err := e.state.RoundGet(roundID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMissingRound
	}
	return round, nil
}

// availablePool returns the pool balance payable without breaching the
// reserve floor.
func (e *Engine) availablePool() (uint64, error) {
	pool, err := e.state.PoolBalance()
	if err != nil {
		return 0, err
	}
	return saturatingSub(pool, e.params.ReserveFloor), nil
}

// Initialize creates the protocol singleton. It fails when one already
// exists; teardown via CloseProtocolState is required first.
func (e *Engine) Initialize(admin, validator [20]byte) (*ProtocolState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	_, ok, err := e.state.ProtocolGet()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, ErrAlreadyInitialized
	}
	protocol := &ProtocolState{Admin: admin, Validator: validator}
	if err := e.state.ProtocolPut(protocol); err != nil {
		return nil, err
	}
	e.emit(NewInitializedEvent(protocol))
	return protocol.Clone(), nil
}

// FundAccount credits an address's spendable balance. This is the sole
// entry point for value into the ledger; the RPC layer restricts it to the
// operator token.
func (e *Engine) FundAccount(addr [20]byte, amount uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	if err := e.state.AccountCredit(addr, amount); err != nil {
		return 0, err
	}
	balance, err := e.state.AccountBalance(addr)
	if err != nil {
		return 0, err
	}
	e.emit(NewAccountFundedEvent(addr, amount, balance))
	return balance, nil
}

// SeedPrize moves funds from the admin account into the escrow pool and
// tracks the cumulative seeded amount.
func (e *Engine) SeedPrize(caller [20]byte, amount uint64) error {
	protocol, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	seeded, err := checkedAdd(protocol.PrizeSeedAmount, amount)
	if err != nil {
		return err
	}
	if err := e.state.AccountDebit(caller, amount); err != nil {
		return err
	}
	if err := e.state.PoolCredit(amount); err != nil {
		return err
	}
	protocol.PrizeSeedAmount = seeded
	if err := e.state.ProtocolPut(protocol); err != nil {
		return err
	}
	e.emit(NewPrizeSeededEvent(caller, amount, seeded))
	return nil
}

// InitRound creates a round in epoch 1 and points the protocol at it. No
// implicit round creation happens anywhere else; deposits require the
// round to exist.
func (e *Engine) InitRound(roundID, startTimeMS uint64) (*Round, error) {
	protocol, err := e.loadProtocol()
	if err != nil {
		return nil, err
	}
	_, ok, err := e.state.RoundGet(roundID)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, ErrRoundExists
	}
	round := &Round{
		RoundID:      roundID,
		EpochInRound: 1,
		StartTimeMS:  startTimeMS,
	}
	if err := e.state.RoundPut(round); err != nil {
		return nil, err
	}
	protocol.CurrentRound = roundID
	if err := e.state.ProtocolPut(protocol); err != nil {
		return nil, err
	}
	e.emit(NewRoundStartedEvent(round))
	return round.Clone(), nil
}

// Deposit buys tickets in the current round. The lifecycle step runs first:
// when it completes the round, that completion is persisted even though the
// deposit itself is then rejected with ErrRoundComplete. A plain epoch
// advance discovered here is not persisted on rejection paths; the next
// crank or deposit recomputes it from the same wall clock.
func (e *Engine) Deposit(payer [20]byte, amount uint64) (*Participant, error) {
	protocol, err := e.loadProtocol()
	if err != nil {
		return nil, err
	}
	round, err := e.loadRound(protocol.CurrentRound)
	if err != nil {
		return nil, err
	}

	candidates, err := e.state.ParticipantCandidates()
	if err != nil {
		return nil, err
	}
	res := lifecycleStep(round, e.nowMS(), e.epochDurationMS(), protocol.PrizeSeedAmount, e.seeds.DrawSeed(e.now()), candidates)
	if round.Complete {
		if res.Changed() {
			if err := e.state.RoundPut(round); err != nil {
				return nil, err
			}
			e.emitLifecycle(round, res)
		}
		return nil, ErrRoundComplete
	}
	if round.EpochInRound >= EpochsPerRound {
		return nil, ErrDepositsClosed
	}

	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if amount%e.params.TicketPrice != 0 {
		return nil, ErrInvalidTicketAmount
	}
	numTickets := amount / e.params.TicketPrice
	if numTickets == 0 {
		return nil, ErrInvalidAmount
	}

	ticketStart := round.TotalTicketsSold
	ticketEnd := ticketStart + numTickets - 1
	totalTickets, err := checkedAdd(round.TotalTicketsSold, numTickets)
	if err != nil {
		return nil, err
	}
	totalStaked, err := checkedAdd(round.TotalStaked, amount)
	if err != nil {
		return nil, err
	}

	participant, ok, err := e.state.ParticipantGet(payer)
	if err != nil {
		return nil, err
	}
	if !ok {
		participant = &Participant{Owner: payer}
	}
	if participant.RoundJoined != round.RoundID {
		participant.resetForRound()
	}
	if participant.Balance == 0 {
		participant.TicketStart = ticketStart
		participant.TicketEnd = ticketEnd
	} else {
		participant.TicketEnd = ticketEnd
	}
	balance, err := checkedAdd(participant.Balance, amount)
	if err != nil {
		return nil, err
	}
	participant.Balance = balance
	participant.RoundJoined = round.RoundID

	// All validation passed; move funds and write records back.
	if err := e.state.AccountDebit(payer, amount); err != nil {
		return nil, err
	}
	if err := e.state.PoolCredit(amount); err != nil {
		return nil, err
	}
	round.TotalTicketsSold = totalTickets
	round.TotalStaked = totalStaked
	if err := e.state.RoundPut(round); err != nil {
		return nil, err
	}
	if err := e.state.ParticipantPut(participant); err != nil {
		return nil, err
	}
	e.emitLifecycle(round, res)
	e.emit(NewDepositEvent(round, participant, amount, numTickets))
	return participant.Clone(), nil
}

// RequestWithdrawal moves part of the live balance into the pending
// withdrawal bucket before the round completes. The participant forfeits
// snapshot history but, in this simplified design, keeps their ticket
// range and with it winner eligibility.
func (e *Engine) RequestWithdrawal(caller [20]byte, amount uint64) error {
	protocol, err := e.loadProtocol()
	if err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	participant, ok, err := e.state.ParticipantGet(caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMissingParticipant
	}
	if participant.Balance < amount {
		return ErrInvalidAmount
	}
	balance, err := checkedSub(participant.Balance, amount)
	if err != nil {
		return err
	}
	pending, err := checkedAdd(participant.PendingWithdrawalAmount, amount)
	if err != nil {
		return err
	}
	participant.SnapshotMask = 0
	participant.Balance = balance
	participant.PendingWithdrawalAmount = pending
	participant.PendingWithdrawalRound = protocol.CurrentRound
	if err := e.state.ParticipantPut(participant); err != nil {
		return err
	}
	e.emit(NewWithdrawalRequestedEvent(participant, amount))
	return nil
}

// AdvanceEpoch bumps the round epoch manually. Admin-gated; rejected once
// the final epoch is reached.
func (e *Engine) AdvanceEpoch(caller [20]byte, roundID uint64) error {
	if _, err := e.requireAdmin(caller); err != nil {
		return err
	}
	round, err := e.loadRound(roundID)
	if err != nil {
		return err
	}
	if round.EpochInRound >= EpochsPerRound {
		return ErrInvalidEpoch
	}
	from := round.EpochInRound
	round.EpochInRound++
	if err := e.state.RoundPut(round); err != nil {
		return err
	}
	e.emit(NewEpochAdvancedEvent(round, from, round.EpochInRound))
	return nil
}

// SelectWinnerLocal draws the winner from an admin-supplied seed. Unlike
// the automatic path, it fails explicitly when no candidate owns the drawn
// ticket, and it completes the round without setting prize or end time.
func (e *Engine) SelectWinnerLocal(caller [20]byte, roundID, seed uint64) (*Round, error) {
	if _, err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	round, err := e.loadRound(roundID)
	if err != nil {
		return nil, err
	}
	if round.TotalTicketsSold == 0 {
		return nil, ErrNoTicketsSold
	}
	winningTicket := seed % round.TotalTicketsSold
	candidates, err := e.state.ParticipantCandidates()
	if err != nil {
		return nil, err
	}
	winner, found := findTicketOwner(roundID, winningTicket, candidates)
	if !found {
		return nil, ErrNoTicketOwner
	}
	round.Winner = winner
	round.WinningTicket = winningTicket
	round.Complete = true
	if err := e.state.RoundPut(round); err != nil {
		return nil, err
	}
	e.emit(NewRoundFinalizedEvent(round))
	return round.Clone(), nil
}

// Crank advances epoch state and triggers finalization purely from elapsed
// wall-clock time. It is permissionless and idempotent: a second call with
// no intervening time or deposits changes nothing.
func (e *Engine) Crank() (*Round, error) {
	protocol, err := e.loadProtocol()
	if err != nil {
		return nil, err
	}
	round, err := e.loadRound(protocol.CurrentRound)
	if err != nil {
		return nil, err
	}
	if round.Complete {
		return round.Clone(), nil
	}
	candidates, err := e.state.ParticipantCandidates()
	if err != nil {
		return nil, err
	}
	res := lifecycleStep(round, e.nowMS(), e.epochDurationMS(), protocol.PrizeSeedAmount, e.seeds.DrawSeed(e.now()), candidates)
	if res.Changed() {
		if err := e.state.RoundPut(round); err != nil {
			return nil, err
		}
		e.emitLifecycle(round, res)
	}
	return round.Clone(), nil
}

func (e *Engine) emitLifecycle(round *Round, res lifecycleResult) {
	if res.EpochAdvanced {
		e.emit(NewEpochAdvancedEvent(round, res.FromEpoch, res.ToEpoch))
	}
	if res.Finalized {
		e.emit(NewRoundFinalizedEvent(round))
	}
}

// CreateClaimTicket issues the claim record with admin-supplied payout
// amounts. Exactly one ticket may exist per (round, winner); the storage
// layer rejects duplicates.
func (e *Engine) CreateClaimTicket(caller [20]byte, roundID, prizeAmount, stakeAmount uint64) (*ClaimTicket, error) {
	protocol, err := e.requireAdmin(caller)
	if err != nil {
		return nil, err
	}
	round, err := e.loadRound(roundID)
	if err != nil {
		return nil, err
	}
	return e.issueClaimTicket(protocol, round, prizeAmount, stakeAmount)
}

// CreateClaimTicketWinner is the permissionless variant: the winner issues
// their own ticket, with prize computed as the staked total minus their own
// balance and stake equal to that balance.
func (e *Engine) CreateClaimTicketWinner(caller [20]byte, roundID uint64) (*ClaimTicket, error) {
	protocol, err := e.loadProtocol()
	if err != nil {
		return nil, err
	}
	round, err := e.loadRound(roundID)
	if err != nil {
		return nil, err
	}
	if !round.Complete {
		return nil, ErrRoundNotComplete
	}
	if !round.Winner.Valid {
		return nil, ErrNoTicketsSold
	}
	if round.Winner.Address != caller {
		return nil, ErrNotWinner
	}
	participant, ok, err := e.state.ParticipantGet(caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMissingParticipant
	}
	prizeAmount := saturatingSub(round.TotalStaked, participant.Balance)
	return e.issueClaimTicket(protocol, round, prizeAmount, participant.Balance)
}

func (e *Engine) issueClaimTicket(protocol *ProtocolState, round *Round, prizeAmount, stakeAmount uint64) (*ClaimTicket, error) {
	if !round.Complete {
		return nil, ErrRoundNotComplete
	}
	if !round.Winner.Valid {
		return nil, ErrNoTicketsSold
	}
	liability, err := checkedAdd(protocol.UnclaimedPrizes, prizeAmount)
	if err != nil {
		return nil, err
	}
	ticket := &ClaimTicket{
		RoundID:     round.RoundID,
		Winner:      round.Winner.Address,
		PrizeAmount: prizeAmount,
		StakeAmount: stakeAmount,
	}
	if err := e.state.ClaimTicketCreate(ticket); err != nil {
		return nil, err
	}
	protocol.UnclaimedPrizes = liability
	if err := e.state.ProtocolPut(protocol); err != nil {
		return nil, err
	}
	e.emit(NewClaimTicketCreatedEvent(ticket))
	return ticket.Clone(), nil
}

// ClaimPrize settles the winner path: stake plus prize from the claim
// ticket, never recomputed from live participant state. The pool keeps its
// reserve floor or the whole claim fails.
func (e *Engine) ClaimPrize(caller [20]byte, roundID uint64) (uint64, error) {
	protocol, err := e.loadProtocol()
	if err != nil {
		return 0, err
	}
	round, err := e.loadRound(roundID)
	if err != nil {
		return 0, err
	}
	if !round.Complete {
		return 0, ErrRoundNotComplete
	}
	ticket, ok, err := e.state.ClaimTicketGet(roundID, caller)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotWinner
	}
	if ticket.Claimed {
		return 0, ErrAlreadyClaimed
	}
	payout, err := checkedAdd(ticket.StakeAmount, ticket.PrizeAmount)
	if err != nil {
		return 0, err
	}
	available, err := e.availablePool()
	if err != nil {
		return 0, err
	}
	if available < payout {
		return 0, ErrInsufficientFunds
	}

	if err := e.state.PoolDebit(payout); err != nil {
		return 0, err
	}
	if err := e.state.AccountCredit(caller, payout); err != nil {
		return 0, err
	}
	ticket.Claimed = true
	if err := e.state.ClaimTicketPut(ticket); err != nil {
		return 0, err
	}
	protocol.UnclaimedPrizes = saturatingSub(protocol.UnclaimedPrizes, ticket.PrizeAmount)
	if err := e.state.ProtocolPut(protocol); err != nil {
		return 0, err
	}
	round.PrizeClaimed = true
	if err := e.state.RoundPut(round); err != nil {
		return 0, err
	}
	participant, ok, err := e.state.ParticipantGet(caller)
	if err != nil {
		return 0, err
	}
	if ok && participant.RoundJoined == roundID {
		participant.Balance = 0
		participant.TicketStart = 0
		participant.TicketEnd = 0
		if err := e.state.ParticipantPut(participant); err != nil {
			return 0, err
		}
	}
	e.emit(NewPrizeClaimedEvent(round, ticket, payout))
	return payout, nil
}

// ProcessWithdrawal settles the non-winner path: pending withdrawal plus
// any remaining live balance. The recorded winner is steered to ClaimPrize.
func (e *Engine) ProcessWithdrawal(caller [20]byte, roundID uint64) (uint64, error) {
	if _, err := e.loadProtocol(); err != nil {
		return 0, err
	}
	round, err := e.loadRound(roundID)
	if err != nil {
		return 0, err
	}
	if !round.Complete {
		return 0, ErrRoundNotComplete
	}
	if round.Winner.Valid && round.Winner.Address == caller {
		return 0, ErrWinnerMustClaim
	}
	participant, ok, err := e.state.ParticipantGet(caller)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrMissingParticipant
	}
	if participant.RoundJoined != roundID {
		return 0, ErrWrongRound
	}
	payout, err := checkedAdd(participant.PendingWithdrawalAmount, participant.Balance)
	if err != nil {
		return 0, err
	}
	if payout == 0 {
		return 0, ErrNothingToWithdraw
	}
	available, err := e.availablePool()
	if err != nil {
		return 0, err
	}
	if available < payout {
		return 0, ErrInsufficientFunds
	}

	if err := e.state.PoolDebit(payout); err != nil {
		return 0, err
	}
	if err := e.state.AccountCredit(caller, payout); err != nil {
		return 0, err
	}
	participant.Balance = 0
	participant.PendingWithdrawalAmount = 0
	participant.TicketStart = 0
	participant.TicketEnd = 0
	if err := e.state.ParticipantPut(participant); err != nil {
		return 0, err
	}
	e.emit(NewWithdrawalProcessedEvent(round, participant, payout))
	return payout, nil
}

// CloseProtocolState tears the protocol singleton down. Guarded by the
// zero-liability invariant: every issued claim ticket must be settled
// first.
func (e *Engine) CloseProtocolState(caller [20]byte) error {
	protocol, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	if protocol.UnclaimedPrizes != 0 {
		return ErrUnclaimedPrizes
	}
	return e.state.ProtocolDelete()
}
