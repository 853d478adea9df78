package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/teahouse-finance/tvault/internal/chain"
	"github.com/teahouse-finance/tvault/internal/logger"
	"github.com/teahouse-finance/tvault/internal/metrics"
	"github.com/teahouse-finance/tvault/internal/types"
	"github.com/teahouse-finance/tvault/internal/vault"
)

var webLogger = logger.GetForComponent("web_server")

// ReceiptReader lists committed operation receipts, newest first.
type ReceiptReader interface {
	RecentReceipts(ctx context.Context, limit int) ([]types.OperationReceipt, error)
}

// ServerConfig wires the web server to a vault.
type ServerConfig struct {
	Addr       string
	CORSOrigin string
	Vault      vault.Service
	Receipts   ReceiptReader
	Metrics    *metrics.Collector
	// HealthCheck reports store connectivity; nil means always healthy.
	HealthCheck func() error
	// Stream, when set, serves committed receipts on /ws/receipts.
	Stream *ReceiptHub

	// Devnet enables the mutating POST endpoints. Callers are taken from the
	// request body, so these must never be exposed outside a simulated chain.
	Devnet bool
	Router chain.Router
	Faucet Faucet
	// DevnetLock serializes devnet writes with other writers on the same
	// simulated chain. Faucet mints must not interleave with a vault
	// operation that may revert the shared journal. Defaults to a private mutex.
	DevnetLock sync.Locker
}

// Faucet funds accounts and moves time on a simulated chain.
type Faucet interface {
	// Fund mints both tokens to account and approves the vault to pull them.
	Fund(ctx context.Context, account common.Address, amount0, amount1 sdkmath.Int) error
	// AdvanceTime moves the block time forward and returns the new block time.
	AdvanceTime(seconds uint64) uint64
}

// WebServer serves the vault's JSON API.
type WebServer struct {
	cfg     ServerConfig
	router  *mux.Router
	server  *http.Server
	started time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg ServerConfig) *WebServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.DevnetLock == nil {
		cfg.DevnetLock = &sync.Mutex{}
	}

	ws := &WebServer{
		cfg:     cfg,
		router:  mux.NewRouter(),
		started: time.Now(),
	}
	ws.setupRoutes()
	return ws
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	if ws.cfg.Metrics != nil {
		ws.router.Handle("/metrics", ws.cfg.Metrics.Handler()).Methods("GET")
	}

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vault", ws.handleGetVault).Methods("GET")
	api.HandleFunc("/vault/assets", ws.handleGetAssets).Methods("GET")
	api.HandleFunc("/positions", ws.handleGetPositions).Methods("GET")
	api.HandleFunc("/positions/{index:[0-9]+}", ws.handleGetPosition).Methods("GET")
	api.HandleFunc("/balances/{address}", ws.handleGetBalance).Methods("GET")
	api.HandleFunc("/pool", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/receipts", ws.handleGetReceipts).Methods("GET")
	if ws.cfg.Stream != nil {
		ws.router.HandleFunc("/ws/receipts", ws.cfg.Stream.ServeWS).Methods("GET")
	}

	if ws.cfg.Devnet {
		api := api.NewRoute().Subrouter()
		api.Use(ws.serializeMiddleware)
		api.HandleFunc("/deposit", ws.handleDeposit).Methods("POST")
		api.HandleFunc("/withdraw", ws.handleWithdraw).Methods("POST")
		api.HandleFunc("/transfer", ws.handleTransfer).Methods("POST")
		api.HandleFunc("/collect-management-fee", ws.handleCollectManagementFee).Methods("POST")

		api.HandleFunc("/admin/fee-config", ws.handleSetFeeConfig).Methods("POST")
		api.HandleFunc("/admin/manager", ws.handleAssignManager).Methods("POST")

		api.HandleFunc("/manager/in-pool-swap", ws.handleInPoolSwap).Methods("POST")
		api.HandleFunc("/manager/execute-swap", ws.handleExecuteSwap).Methods("POST")
		api.HandleFunc("/manager/add-liquidity", ws.handleAddLiquidity).Methods("POST")
		api.HandleFunc("/manager/remove-liquidity", ws.handleRemoveLiquidity).Methods("POST")
		api.HandleFunc("/manager/collect-swap-fees", ws.handleCollectSwapFees).Methods("POST")

		if ws.cfg.Faucet != nil {
			api.HandleFunc("/devnet/fund", ws.handleFund).Methods("POST")
			api.HandleFunc("/devnet/advance-time", ws.handleAdvanceTime).Methods("POST")
		}
	}

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler exposes the routed handler, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start starts the web server and blocks until it stops.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("addr", ws.cfg.Addr).Bool("devnet", ws.cfg.Devnet).Msg("Starting web server")

	ws.server = &http.Server{
		Addr:         ws.cfg.Addr,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops a started server.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	if ws.server == nil {
		return nil
	}
	return ws.server.Shutdown(ctx)
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	storeHealthy := true
	if ws.cfg.HealthCheck != nil {
		if err := ws.cfg.HealthCheck(); err != nil {
			webLogger.Warn().Err(err).Msg("Store health check failed")
			storeHealthy = false
		}
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !storeHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "tvault",
			"version": "1.0.0",
		},
		"vault": map[string]interface{}{
			"address":       ws.cfg.Vault.Address().Hex(),
			"store_healthy": storeHealthy,
			"total_supply":  ws.cfg.Vault.TotalSupply().String(),
			"devnet":        ws.cfg.Devnet,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// writeVaultError maps a vault error to its HTTP status.
func (ws *WebServer) writeVaultError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		webLogger.Error().Err(err).Msg("Vault call failed")
	}
	ws.writeErrorResponse(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, vault.ErrCallerIsNotManager), errors.Is(err, vault.ErrCallerIsNotOwner):
		return http.StatusForbidden
	case errors.Is(err, vault.ErrPositionNotFound):
		return http.StatusNotFound
	case vault.IsRejection(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", ws.cfg.CORSOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (ws *WebServer) serializeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.cfg.DevnetLock.Lock()
		defer ws.cfg.DevnetLock.Unlock()
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests and records them in the API metrics
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		ws.cfg.Metrics.RecordAPIRequest(r.Method, path, strconv.Itoa(wrapper.statusCode), timer.ElapsedMs())

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Float64("duration_ms", timer.ElapsedMs()).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Hijack lets websocket upgrades through the wrapper.
func (w *responseWriterWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}
