package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"rafa/crypto"
	"rafa/native/lottery"
)

const (
	codeLotteryInvalidParams = -32061
	codeLotteryNotFound      = -32062
	codeLotteryForbidden     = -32063
	codeLotteryConflict      = -32064
	codeLotteryInternal      = -32065
)

type fundAccountParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type fundAccountResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type initializeParams struct {
	Admin     string `json:"admin"`
	Validator string `json:"validator"`
}

type seedPrizeParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type initRoundParams struct {
	RoundID   uint64 `json:"roundId"`
	StartTime uint64 `json:"startTime"`
}

type depositParams struct {
	Payer  string `json:"payer"`
	Amount string `json:"amount"`
}

type requestWithdrawalParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type snapshotParams struct {
	RoundID    uint64   `json:"roundId"`
	Candidates []string `json:"candidates,omitempty"`
}

type roundActorParams struct {
	Caller  string `json:"caller"`
	RoundID uint64 `json:"roundId"`
}

type selectWinnerParams struct {
	Caller  string `json:"caller"`
	RoundID uint64 `json:"roundId"`
	Seed    string `json:"seed"`
}

type createClaimTicketParams struct {
	Caller  string `json:"caller"`
	RoundID uint64 `json:"roundId"`
	Prize   string `json:"prize"`
	Stake   string `json:"stake"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type roundIDParams struct {
	RoundID uint64 `json:"roundId"`
}

type addressParams struct {
	Address string `json:"address"`
}

type stateJSON struct {
	Admin           string `json:"admin"`
	Validator       string `json:"validator"`
	CurrentRound    uint64 `json:"currentRound"`
	PrizeSeedAmount string `json:"prizeSeedAmount"`
	UnclaimedPrizes string `json:"unclaimedPrizes"`
	PoolBalance     string `json:"poolBalance"`
}

type roundJSON struct {
	RoundID          uint64  `json:"roundId"`
	EpochInRound     uint8   `json:"epochInRound"`
	StartTimeMS      uint64  `json:"startTimeMs"`
	EndTimeMS        uint64  `json:"endTimeMs"`
	TotalStaked      string  `json:"totalStaked"`
	TotalPrize       string  `json:"totalPrize"`
	TotalTicketsSold uint64  `json:"totalTicketsSold"`
	Winner           *string `json:"winner,omitempty"`
	WinningTicket    uint64  `json:"winningTicket"`
	Complete         bool    `json:"complete"`
	PrizeClaimed     bool    `json:"prizeClaimed"`
}

type participantJSON struct {
	Owner                   string   `json:"owner"`
	Balance                 string   `json:"balance"`
	TicketStart             uint64   `json:"ticketStart"`
	TicketEnd               uint64   `json:"ticketEnd"`
	SnapshotBalances        []string `json:"snapshotBalances"`
	SnapshotMask            uint8    `json:"snapshotMask"`
	RoundJoined             uint64   `json:"roundJoined"`
	PendingWithdrawalAmount string   `json:"pendingWithdrawalAmount"`
	PendingWithdrawalRound  uint64   `json:"pendingWithdrawalRound"`
}

type payoutResult struct {
	RoundID uint64 `json:"roundId"`
	Payout  string `json:"payout"`
}

type snapshotResult struct {
	RoundID uint64 `json:"roundId"`
	Updated int    `json:"updated"`
}

func formatRound(r *lottery.Round) roundJSON {
	out := roundJSON{
		RoundID:          r.RoundID,
		EpochInRound:     r.EpochInRound,
		StartTimeMS:      r.StartTimeMS,
		EndTimeMS:        r.EndTimeMS,
		TotalStaked:      strconv.FormatUint(r.TotalStaked, 10),
		TotalPrize:       strconv.FormatUint(r.TotalPrize, 10),
		TotalTicketsSold: r.TotalTicketsSold,
		WinningTicket:    r.WinningTicket,
		Complete:         r.Complete,
		PrizeClaimed:     r.PrizeClaimed,
	}
	if r.Winner.Valid {
		winner := crypto.MustNewAddress(crypto.RafaPrefix, r.Winner.Address).String()
		out.Winner = &winner
	}
	return out
}

func formatParticipant(p *lottery.Participant) participantJSON {
	snapshots := make([]string, 0, len(p.SnapshotBalances))
	for _, balance := range p.SnapshotBalances {
		snapshots = append(snapshots, strconv.FormatUint(balance, 10))
	}
	return participantJSON{
		Owner:                   crypto.MustNewAddress(crypto.RafaPrefix, p.Owner).String(),
		Balance:                 strconv.FormatUint(p.Balance, 10),
		TicketStart:             p.TicketStart,
		TicketEnd:               p.TicketEnd,
		SnapshotBalances:        snapshots,
		SnapshotMask:            p.SnapshotMask,
		RoundJoined:             p.RoundJoined,
		PendingWithdrawalAmount: strconv.FormatUint(p.PendingWithdrawalAmount, 10),
		PendingWithdrawalRound:  p.PendingWithdrawalRound,
	}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Raw(), nil
}

func parseAmount(value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("amount required")
	}
	amount, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func writeInvalidParams(w http.ResponseWriter, id interface{}, err error) {
	writeError(w, http.StatusBadRequest, id, codeLotteryInvalidParams, "invalid_params", err.Error())
}

// writeLotteryError maps engine sentinel errors onto the module's RPC code
// block.
func writeLotteryError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, lottery.ErrInvalidAmount),
		errors.Is(err, lottery.ErrInvalidTicketAmount),
		errors.Is(err, lottery.ErrInvalidEpoch):
		writeError(w, http.StatusBadRequest, id, codeLotteryInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, lottery.ErrNotInitialized),
		errors.Is(err, lottery.ErrMissingRound),
		errors.Is(err, lottery.ErrMissingParticipant):
		writeError(w, http.StatusNotFound, id, codeLotteryNotFound, "not_found", err.Error())
	case errors.Is(err, lottery.ErrNotAuthorized),
		errors.Is(err, lottery.ErrNotWinner),
		errors.Is(err, lottery.ErrWinnerMustClaim):
		writeError(w, http.StatusForbidden, id, codeLotteryForbidden, "forbidden", err.Error())
	case errors.Is(err, lottery.ErrAlreadyInitialized),
		errors.Is(err, lottery.ErrRoundExists),
		errors.Is(err, lottery.ErrRoundComplete),
		errors.Is(err, lottery.ErrRoundNotComplete),
		errors.Is(err, lottery.ErrDepositsClosed),
		errors.Is(err, lottery.ErrNoTicketsSold),
		errors.Is(err, lottery.ErrNoTicketOwner),
		errors.Is(err, lottery.ErrAlreadyClaimed),
		errors.Is(err, lottery.ErrNothingToWithdraw),
		errors.Is(err, lottery.ErrWrongRound),
		errors.Is(err, lottery.ErrClaimTicketExists),
		errors.Is(err, lottery.ErrUnclaimedPrizes),
		errors.Is(err, lottery.ErrInsufficientFunds),
		errors.Is(err, lottery.ErrArithmeticOverflow),
		errors.Is(err, lottery.ErrArithmeticUnderflow):
		writeError(w, http.StatusConflict, id, codeLotteryConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeLotteryInternal, "internal_error", err.Error())
	}
}

func (s *Server) handleFundAccount(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params fundAccountParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	balance, err := s.engine.FundAccount(addr, amount)
	if err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, fundAccountResult{
		Address: params.Address,
		Balance: strconv.FormatUint(balance, 10),
	})
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params initializeParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	admin, err := parseAddress(params.Admin)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	validator, err := parseAddress(params.Validator)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	protocol, err := s.engine.Initialize(admin, validator)
	if err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	s.refreshGauges()
	writeResult(w, req.ID, stateJSON{
		Admin:           crypto.MustNewAddress(crypto.RafaPrefix, protocol.Admin).String(),
		Validator:       crypto.MustNewAddress(crypto.RafaPrefix, protocol.Validator).String(),
		CurrentRound:    protocol.CurrentRound,
		PrizeSeedAmount: strconv.FormatUint(protocol.PrizeSeedAmount, 10),
		UnclaimedPrizes: strconv.FormatUint(protocol.UnclaimedPrizes, 10),
	})
}

func (s *Server) handleSeedPrize(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params seedPrizeParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.SeedPrize(caller, amount); err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	s.refreshGauges()
	writeResult(w, req.ID, map[string]string{"status": "seeded", "amount": params.Amount})
}

func (s *Server) handleInitRound(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params initRoundParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	round, err := s.engine.InitRound(params.RoundID, params.StartTime)
	if err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatRound(round))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params depositParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	payer, err := parseAddress(params.Payer)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	participant, err := s.engine.Deposit(payer, amount)
	if err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	s.metrics.ObserveDeposit(amount / s.engine.Params().TicketPrice)
	s.refreshGauges()
	writeResult(w, req.ID, formatParticipant(participant))
}

func (s *Server) handleRequestWithdrawal(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params requestWithdrawalParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.RequestWithdrawal(caller, amount); err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "requested", "amount": params.Amount})
}

func (s *Server) handleTakeSnapshot(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params snapshotParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	var candidates [][20]byte
	if len(params.Candidates) > 0 {
		candidates = make([][20]byte, 0, len(params.Candidates))
		for _, raw := range params.Candidates {
			addr, err := parseAddress(raw)
			if err != nil {
				writeInvalidParams(w, req.ID, err)
				return
			}
			candidates = append(candidates, addr)
		}
	} else {
		index, err := s.store.ParticipantIndex()
		if err != nil {
			writeLotteryError(w, req.ID, err)
			return
		}
		candidates = index
	}
	updated, err := s.engine.SnapshotBatch(params.RoundID, candidates)
	if err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, snapshotResult{RoundID: params.RoundID, Updated: updated})
}

func (s *Server) handleAdvanceEpoch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params roundActorParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.AdvanceEpoch(caller, params.RoundID); err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	s.metrics.ObserveEpochAdvance()
	writeResult(w, req.ID, map[string]string{"status": "advanced"})
}

func (s *Server) handleSelectWinner(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params selectWinnerParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	seed, err := parseAmount(params.Seed)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	round, err := s.engine.SelectWinnerLocal(caller, params.RoundID, seed)
	if err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	s.metrics.ObserveFinalization()
	writeResult(w, req.ID, formatRound(round))
}

func (s *Server) handleClaimPrize(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params roundActorParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	payout, err := s.engine.ClaimPrize(caller, params.RoundID)
	if err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	s.metrics.ObserveClaim()
	s.refreshGauges()
	writeResult(w, req.ID, payoutResult{RoundID: params.RoundID, Payout: strconv.FormatUint(payout, 10)})
}

func (s *Server) handleProcessWithdrawal(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params roundActorParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	payout, err := s.engine.ProcessWithdrawal(caller, params.RoundID)
	if err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	s.metrics.ObserveWithdrawal()
	s.refreshGauges()
	writeResult(w, req.ID, payoutResult{RoundID: params.RoundID, Payout: strconv.FormatUint(payout, 10)})
}

func (s *Server) handleCreateClaimTicket(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params createClaimTicketParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	prize, err := parseAmount(params.Prize)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	stake, err := parseAmount(params.Stake)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	ticket, err := s.engine.CreateClaimTicket(caller, params.RoundID, prize, stake)
	if err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	s.refreshGauges()
	writeResult(w, req.ID, map[string]string{
		"round":  strconv.FormatUint(ticket.RoundID, 10),
		"winner": crypto.MustNewAddress(crypto.RafaPrefix, ticket.Winner).String(),
		"prize":  strconv.FormatUint(ticket.PrizeAmount, 10),
		"stake":  strconv.FormatUint(ticket.StakeAmount, 10),
	})
}

func (s *Server) handleCreateClaimTicketWinner(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params roundActorParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	ticket, err := s.engine.CreateClaimTicketWinner(caller, params.RoundID)
	if err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	s.refreshGauges()
	writeResult(w, req.ID, map[string]string{
		"round":  strconv.FormatUint(ticket.RoundID, 10),
		"winner": crypto.MustNewAddress(crypto.RafaPrefix, ticket.Winner).String(),
		"prize":  strconv.FormatUint(ticket.PrizeAmount, 10),
		"stake":  strconv.FormatUint(ticket.StakeAmount, 10),
	})
}

func (s *Server) handleCrank(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	round, err := s.engine.Crank()
	if err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	s.metrics.ObserveCrank()
	writeResult(w, req.ID, formatRound(round))
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.CloseProtocolState(caller); err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "closed"})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	protocol, ok, err := s.store.ProtocolGet()
	if err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	if !ok {
		writeLotteryError(w, req.ID, lottery.ErrNotInitialized)
		return
	}
	pool, err := s.store.PoolBalance()
	if err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, stateJSON{
		Admin:           crypto.MustNewAddress(crypto.RafaPrefix, protocol.Admin).String(),
		Validator:       crypto.MustNewAddress(crypto.RafaPrefix, protocol.Validator).String(),
		CurrentRound:    protocol.CurrentRound,
		PrizeSeedAmount: strconv.FormatUint(protocol.PrizeSeedAmount, 10),
		UnclaimedPrizes: strconv.FormatUint(protocol.UnclaimedPrizes, 10),
		PoolBalance:     strconv.FormatUint(pool, 10),
	})
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params roundIDParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	round, ok, err := s.store.RoundGet(params.RoundID)
	if err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	if !ok {
		writeLotteryError(w, req.ID, lottery.ErrMissingRound)
		return
	}
	writeResult(w, req.ID, formatRound(round))
}

func (s *Server) handleGetParticipant(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	participant, ok, err := s.store.ParticipantGet(addr)
	if err != nil {
		writeLotteryError(w, req.ID, err)
		return
	}
	if !ok {
		writeLotteryError(w, req.ID, lottery.ErrMissingParticipant)
		return
	}
	writeResult(w, req.ID, formatParticipant(participant))
}
