package lottery

import (
	"strconv"

	"rafa/core/events"
	"rafa/crypto"
)

const (
	EventTypeAccountFunded       = "lottery.account_funded"
	EventTypeInitialized         = "lottery.initialized"
	EventTypePrizeSeeded         = "lottery.prize_seeded"
	EventTypeRoundStarted        = "lottery.round_started"
	EventTypeDeposit             = "lottery.deposit"
	EventTypeWithdrawalRequested = "lottery.withdrawal_requested"
	EventTypeEpochAdvanced       = "lottery.epoch_advanced"
	EventTypeRoundFinalized      = "lottery.round_finalized"
	EventTypeClaimTicketCreated  = "lottery.claim_ticket_created"
	EventTypePrizeClaimed        = "lottery.prize_claimed"
	EventTypeWithdrawalProcessed = "lottery.withdrawal_processed"
)

func formatAddress(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.RafaPrefix, addr).String()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// NewAccountFundedEvent returns the canonical payload for an operator
// ledger credit.
func NewAccountFundedEvent(addr [20]byte, amount, balance uint64) *events.Payload {
	return &events.Payload{
		Type: EventTypeAccountFunded,
		Attributes: map[string]string{
			"address": formatAddress(addr),
			"amount":  formatUint(amount),
			"balance": formatUint(balance),
		},
	}
}

// NewInitializedEvent returns the canonical payload emitted when the
// protocol singleton is created.
func NewInitializedEvent(p *ProtocolState) *events.Payload {
	return &events.Payload{
		Type: EventTypeInitialized,
		Attributes: map[string]string{
			"admin":     formatAddress(p.Admin),
			"validator": formatAddress(p.Validator),
		},
	}
}

// NewPrizeSeededEvent returns the canonical payload for a prize-pool seed.
func NewPrizeSeededEvent(admin [20]byte, amount, total uint64) *events.Payload {
	return &events.Payload{
		Type: EventTypePrizeSeeded,
		Attributes: map[string]string{
			"admin":  formatAddress(admin),
			"amount": formatUint(amount),
			"total":  formatUint(total),
		},
	}
}

// NewRoundStartedEvent returns the canonical payload for a newly opened round.
func NewRoundStartedEvent(r *Round) *events.Payload {
	return &events.Payload{
		Type: EventTypeRoundStarted,
		Attributes: map[string]string{
			"round": formatUint(r.RoundID),
			"start": formatUint(r.StartTimeMS),
		},
	}
}

// NewDepositEvent returns the canonical payload for an accepted deposit.
func NewDepositEvent(r *Round, p *Participant, amount, tickets uint64) *events.Payload {
	return &events.Payload{
		Type: EventTypeDeposit,
		Attributes: map[string]string{
			"round":       formatUint(r.RoundID),
			"payer":       formatAddress(p.Owner),
			"amount":      formatUint(amount),
			"tickets":     formatUint(tickets),
			"ticketStart": formatUint(p.TicketStart),
			"ticketEnd":   formatUint(p.TicketEnd),
		},
	}
}

// NewWithdrawalRequestedEvent returns the payload for a mid-round
// withdrawal request.
func NewWithdrawalRequestedEvent(p *Participant, amount uint64) *events.Payload {
	return &events.Payload{
		Type: EventTypeWithdrawalRequested,
		Attributes: map[string]string{
			"owner":   formatAddress(p.Owner),
			"amount":  formatUint(amount),
			"pending": formatUint(p.PendingWithdrawalAmount),
			"round":   formatUint(p.PendingWithdrawalRound),
		},
	}
}

// NewEpochAdvancedEvent returns the payload for an epoch transition.
func NewEpochAdvancedEvent(r *Round, from, to uint8) *events.Payload {
	return &events.Payload{
		Type: EventTypeEpochAdvanced,
		Attributes: map[string]string{
			"round": formatUint(r.RoundID),
			"from":  formatUint(uint64(from)),
			"to":    formatUint(uint64(to)),
		},
	}
}

// NewRoundFinalizedEvent returns the payload emitted when a winner is drawn.
func NewRoundFinalizedEvent(r *Round) *events.Payload {
	attrs := map[string]string{
		"round":         formatUint(r.RoundID),
		"winningTicket": formatUint(r.WinningTicket),
		"prize":         formatUint(r.TotalPrize),
	}
	if r.Winner.Valid {
		attrs["winner"] = formatAddress(r.Winner.Address)
	}
	return &events.Payload{Type: EventTypeRoundFinalized, Attributes: attrs}
}

// NewClaimTicketCreatedEvent returns the payload for an issued claim ticket.
func NewClaimTicketCreatedEvent(t *ClaimTicket) *events.Payload {
	return &events.Payload{
		Type: EventTypeClaimTicketCreated,
		Attributes: map[string]string{
			"round":  formatUint(t.RoundID),
			"winner": formatAddress(t.Winner),
			"prize":  formatUint(t.PrizeAmount),
			"stake":  formatUint(t.StakeAmount),
		},
	}
}

// NewPrizeClaimedEvent returns the payload for a settled winner claim.
func NewPrizeClaimedEvent(r *Round, t *ClaimTicket, payout uint64) *events.Payload {
	return &events.Payload{
		Type: EventTypePrizeClaimed,
		Attributes: map[string]string{
			"round":  formatUint(r.RoundID),
			"winner": formatAddress(t.Winner),
			"payout": formatUint(payout),
		},
	}
}

// NewWithdrawalProcessedEvent returns the payload for a settled non-winner
// withdrawal.
func NewWithdrawalProcessedEvent(r *Round, p *Participant, payout uint64) *events.Payload {
	return &events.Payload{
		Type: EventTypeWithdrawalProcessed,
		Attributes: map[string]string{
			"round":  formatUint(r.RoundID),
			"owner":  formatAddress(p.Owner),
			"payout": formatUint(payout),
		},
	}
}
