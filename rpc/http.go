package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"shopchain/core"
	"shopchain/integrations/archive"
	"shopchain/native/common"
	"shopchain/observability"
	"shopchain/observability/logging"
)

const (
	jsonRPCVersion      = "2.0"
	defaultMaxBodyBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError       = -32700
	codeInvalidRequest   = -32600
	codeMethodNotFound   = -32601
	codeInvalidParams    = -32602
	codeServerError      = -32000
	codeUnauthorized     = -32001
	codeNotInitialized   = -32002
	codeModulePaused     = -32003
	codeNotFound         = -32004
	codeRejected         = -32010
	codeInsufficient     = -32011
	codePriceUnavailable = -32012
	codeRateLimited      = -32020
)

// EventArchive serves market_listEvents. It is optional.
type EventArchive interface {
	List(ctx context.Context, f archive.Filter) ([]archive.Record, error)
}

type Config struct {
	JWTSecret          string
	JWTIssuer          string
	RateLimitPerSecond float64
	RateLimitBurst     int
	MaxBodyBytes       int64
	ReadHeaderTimeout  time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	Archive            EventArchive
}

type handlerFunc func(ctx context.Context, caller ethcommon.Address, params json.RawMessage) (interface{}, error)

type method struct {
	// auth requires a bearer token whose subject becomes the caller.
	auth bool
	fn   handlerFunc
}

type Server struct {
	node    *core.Node
	cfg     Config
	auth    *authenticator
	limiter *clientLimiter
	methods map[string]method
	logger  *slog.Logger
}

func NewServer(node *core.Node, cfg Config, logger *slog.Logger) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:    node,
		cfg:     cfg,
		auth:    newAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		limiter: newClientLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		logger:  logger.With("component", "rpc"),
	}
	s.methods = s.registerMethods()
	return s
}

// Handler returns the HTTP surface: JSON-RPC on POST /, health, metrics and
// the archived event export.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.With(s.rateLimit).Get("/events/export", s.handleExport)
	r.With(s.rateLimit).Post("/", otelhttp.NewHandler(http.HandlerFunc(s.handle), "jsonrpc").ServeHTTP)
	return r
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("json-rpc listening", "address", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if err := s.node.Ready(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(err.Error()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handle decodes one JSON-RPC request and dispatches it.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
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
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes)
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
	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	module := moduleOf(req.Method)
	metrics := observability.ModuleMetrics()
	start := time.Now()

	var caller ethcommon.Address
	if m.auth {
		caller, err = s.auth.caller(r)
		if err != nil {
			metrics.RecordThrottle(module, "unauthenticated")
			s.logger.Debug("rejected credentials", "method", req.Method,
				logging.Attr("authorization", r.Header.Get("Authorization")), "error", err)
			writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", err.Error())
			return
		}
		if err := s.node.Ready(); err != nil {
			metrics.Observe(module, req.Method, codeNotInitialized, time.Since(start))
			writeError(w, http.StatusServiceUnavailable, req.ID, codeNotInitialized, err.Error(), nil)
			return
		}
	}
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "at most one parameter object expected", nil)
		return
	}
	var params json.RawMessage
	if len(req.Params) == 1 {
		params = req.Params[0]
	}

	result, err := m.fn(r.Context(), caller, params)
	if err != nil {
		status, rpcErr := toRPCError(err)
		metrics.Observe(module, req.Method, rpcErr.Code, time.Since(start))
		if rpcErr.Code == codeServerError {
			attrs := append([]any{"method", req.Method, "error", err}, logging.Attrs(common.Params(err))...)
			s.logger.Error("rpc method failed", attrs...)
		}
		writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	metrics.Observe(module, req.Method, 0, time.Since(start))
	writeResult(w, req.ID, result)
}

func moduleOf(method string) string {
	if idx := strings.Index(method, "_"); idx > 0 {
		return method[:idx]
	}
	return method
}
