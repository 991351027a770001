package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	nativecommon "stakevault/native/common"
	"stakevault/native/staking"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
	codeModulePaused   = -32030
)

// ModuleName is the pause-registry key guarding the staking surface.
const ModuleName = "staking"

// Config carries the tunables the daemon resolves from its configuration
// file before constructing the server.
type Config struct {
	// JWTSecret signs and verifies admin bearer tokens. Admin methods are
	// rejected outright when empty.
	JWTSecret string
	// RateLimitPerMin bounds mutating calls per client address. Zero or
	// negative disables limiting.
	RateLimitPerMin float64
}

// AuditReader exposes the journal queries served over RPC. The concrete
// implementation lives in the audit package.
type AuditReader interface {
	Recent(limit int) ([]AuditRecord, error)
}

// AuditRecord mirrors a journal row in wire form.
type AuditRecord struct {
	ID        string `json:"id"`
	EventType string `json:"eventType"`
	Owner     string `json:"owner,omitempty"`
	Index     uint64 `json:"stakeIndex"`
	Amount    string `json:"amount,omitempty"`
	Reward    string `json:"reward,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// Server terminates the JSON-RPC surface in front of the staking engine.
type Server struct {
	engine *staking.Engine
	pauses *nativecommon.PauseSet
	stream *EventStream
	audit  AuditReader
	logger *slog.Logger

	jwtSecret []byte
	limitRate rate.Limit
	limitMu   sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewServer wires the RPC surface. Engine and pauses are required; stream and
// audit are optional extras.
func NewServer(engine *staking.Engine, pauses *nativecommon.PauseSet, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	var limit rate.Limit
	if cfg.RateLimitPerMin > 0 {
		limit = rate.Limit(cfg.RateLimitPerMin / 60)
	}
	return &Server{
		engine:    engine,
		pauses:    pauses,
		logger:    logger,
		jwtSecret: []byte(strings.TrimSpace(cfg.JWTSecret)),
		limitRate: limit,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// SetStream attaches the websocket event broadcaster served at /ws/events.
func (s *Server) SetStream(stream *EventStream) { s.stream = stream }

// SetAudit attaches the audit journal backing the audit_recent method.
func (s *Server) SetAudit(reader AuditReader) { s.audit = reader }

// Router assembles the HTTP routes: JSON-RPC at /, liveness at /healthz,
// Prometheus at /metrics and the event stream at /ws/events.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Post("/", s.handle)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if s.stream != nil {
		r.Get("/ws/events", s.stream.handleWS)
	}
	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"paused": s.pauses.IsPaused(ModuleName),
	})
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
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

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "stake_deposit":
		if !s.allowMutation(w, r, req) {
			return
		}
		s.handleDeposit(w, r, req)
	case "stake_withdraw":
		if !s.allowMutation(w, r, req) {
			return
		}
		s.handleWithdraw(w, r, req)
	case "stake_claim":
		if !s.allowMutation(w, r, req) {
			return
		}
		s.handleClaim(w, r, req)
	case "stake_emergencyWithdraw":
		if !s.allowMutation(w, r, req) {
			return
		}
		s.handleEmergencyWithdraw(w, r, req)
	case "stake_pendingReward":
		s.handlePendingReward(w, r, req)
	case "stake_position":
		s.handlePosition(w, r, req)
	case "stake_pool":
		s.handlePool(w, r, req)
	case "stake_tiers":
		s.handleTiers(w, r, req)
	case "audit_recent":
		s.handleAuditRecent(w, r, req)
	case "stake_setRewardRate":
		if authErr := s.requireAdmin(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetRewardRate(w, r, req)
	case "stake_setTierLockDuration":
		if authErr := s.requireAdmin(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetTierLockDuration(w, r, req)
	case "stake_pause":
		if authErr := s.requireAdmin(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.pauses.Pause(ModuleName)
		writeResult(w, req.ID, map[string]bool{"paused": true})
	case "stake_unpause":
		if authErr := s.requireAdmin(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.pauses.Resume(ModuleName)
		writeResult(w, req.ID, map[string]bool{"paused": false})
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

// requireAdmin validates the HS256 bearer token on privileged methods.
func (s *Server) requireAdmin(r *http.Request) *RPCError {
	if len(s.jwtSecret) == 0 {
		return &RPCError{Code: codeUnauthorized, Message: "admin interface disabled"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "bearer token required"}
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		s.logger.Warn("rejected admin call", "source", clientSource(r), "err", err)
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

// allowMutation applies the per-client rate limit to state-changing methods.
func (s *Server) allowMutation(w http.ResponseWriter, r *http.Request, req *RPCRequest) bool {
	if s.limitRate <= 0 {
		return true
	}
	source := clientSource(r)
	s.limitMu.Lock()
	limiter, ok := s.limiters[source]
	if !ok {
		burst := int(s.limitRate * 60)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(s.limitRate, burst)
		s.limiters[source] = limiter
	}
	s.limitMu.Unlock()
	if !limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", source)
		return false
	}
	return true
}

func clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
