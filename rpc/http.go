package rpc

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rafa/native/lottery"
	"rafa/observability/metrics"
	"rafa/state"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "RAFA_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the raffle engine over JSON-RPC 2.0.
type Server struct {
	engine    *lottery.Engine
	store     *state.Store
	log       *slog.Logger
	metrics   *metrics.LotteryMetrics
	authToken string
}

// NewServer wires a server around the engine and its backing store. The
// admin bearer token is read from the environment; when unset, admin
// methods are rejected.
func NewServer(engine *lottery.Engine, store *state.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		store:     store,
		log:       logger,
		metrics:   metrics.Lottery(),
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
	}
}

// Router builds the HTTP handler: the RPC endpoint plus health and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router on addr until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", slog.String("addr", addr))
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("rpc request",
			slog.String("requestId", requestID),
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "admin token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "missing bearer token"}
	}
	if strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")) != s.authToken {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid bearer token"}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	if req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid_request", "jsonrpc must be 2.0")
		return
	}

	switch req.Method {
	case "lottery_fundAccount":
		s.handleFundAccount(w, r, &req)
	case "lottery_initialize":
		s.handleInitialize(w, r, &req)
	case "lottery_seedPrize":
		s.handleSeedPrize(w, r, &req)
	case "lottery_initRound":
		s.handleInitRound(w, r, &req)
	case "lottery_deposit":
		s.handleDeposit(w, r, &req)
	case "lottery_requestWithdrawal":
		s.handleRequestWithdrawal(w, r, &req)
	case "lottery_takeSnapshot":
		s.handleTakeSnapshot(w, r, &req)
	case "lottery_advanceEpoch":
		s.handleAdvanceEpoch(w, r, &req)
	case "lottery_selectWinner":
		s.handleSelectWinner(w, r, &req)
	case "lottery_claimPrize":
		s.handleClaimPrize(w, r, &req)
	case "lottery_processWithdrawal":
		s.handleProcessWithdrawal(w, r, &req)
	case "lottery_createClaimTicket":
		s.handleCreateClaimTicket(w, r, &req)
	case "lottery_createClaimTicketWinner":
		s.handleCreateClaimTicketWinner(w, r, &req)
	case "lottery_crank":
		s.handleCrank(w, r, &req)
	case "lottery_close":
		s.handleClose(w, r, &req)
	case "lottery_getState":
		s.handleGetState(w, r, &req)
	case "lottery_getRound":
		s.handleGetRound(w, r, &req)
	case "lottery_getParticipant":
		s.handleGetParticipant(w, r, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", req.Method)
	}
}

// refreshGauges mirrors the settlement accounting into prometheus after a
// successful mutation.
func (s *Server) refreshGauges() {
	if s.store == nil {
		return
	}
	if pool, err := s.store.PoolBalance(); err == nil {
		s.metrics.SetPoolBalance(pool)
	}
	if protocol, ok, err := s.store.ProtocolGet(); err == nil && ok {
		s.metrics.SetUnclaimedLiability(protocol.UnclaimedPrizes)
	}
}
