package lottery

import "errors"

// Validation failures abort the whole operation with no partial state
// change; callers re-invoke later, there is no retry inside the engine.
var (
	ErrNotInitialized      = errors.New("lottery: protocol state not initialized")
	ErrAlreadyInitialized  = errors.New("lottery: protocol state already initialized")
	ErrNotAuthorized       = errors.New("lottery: caller is not the protocol admin")
	ErrInvalidAmount       = errors.New("lottery: invalid amount")
	ErrInvalidTicketAmount = errors.New("lottery: amount must be an exact multiple of the ticket price")
	ErrArithmeticOverflow  = errors.New("lottery: arithmetic overflow")
	ErrArithmeticUnderflow = errors.New("lottery: arithmetic underflow")
	ErrMissingRound        = errors.New("lottery: round record missing or invalid")
	ErrRoundExists         = errors.New("lottery: round already exists")
	ErrMissingParticipant  = errors.New("lottery: participant record missing or invalid")
	ErrInsufficientFunds   = errors.New("lottery: insufficient funds in escrow pool")
	ErrDepositsClosed      = errors.New("lottery: deposits closed, final epoch has started")
	ErrRoundComplete       = errors.New("lottery: round is complete, deposits blocked")
	ErrRoundNotComplete    = errors.New("lottery: round not complete yet")
	ErrInvalidEpoch        = errors.New("lottery: invalid epoch state")
	ErrNoTicketsSold       = errors.New("lottery: no tickets sold in this round")
	ErrNoTicketOwner       = errors.New("lottery: no participant owns the winning ticket")
	ErrAlreadyClaimed      = errors.New("lottery: prize already claimed")
	ErrNotWinner           = errors.New("lottery: caller is not the winner of this round")
	ErrWinnerMustClaim     = errors.New("lottery: winner must claim the prize, not withdraw")
	ErrNothingToWithdraw   = errors.New("lottery: nothing to withdraw")
	ErrWrongRound          = errors.New("lottery: participant did not join this round")
	ErrClaimTicketExists   = errors.New("lottery: claim ticket already issued for this round and winner")
	ErrUnclaimedPrizes     = errors.New("lottery: unclaimed prize liability exists")
)
