package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/nexusyield/yvm/internal/ledger"
	"github.com/nexusyield/yvm/internal/logger"
	"github.com/nexusyield/yvm/internal/provider"
	"github.com/nexusyield/yvm/internal/state"
	"github.com/nexusyield/yvm/internal/vault"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the vault facade over HTTP for wallets, front-ends or a
// higher-level router.
type WebServer struct {
	router *mux.Router
	port   string
	vault  *vault.Vault
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, v *vault.Vault) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		vault:  v,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vault/deposit", ws.handleDeposit).Methods("POST")
	api.HandleFunc("/vault/withdraw", ws.handleWithdraw).Methods("POST")
	api.HandleFunc("/vault/rebalance", ws.handleRebalance).Methods("POST")
	api.HandleFunc("/vault/info", ws.handleGetInfo).Methods("GET")
	api.HandleFunc("/vault/users/{id}", ws.handleGetUserAccount).Methods("GET")
	api.HandleFunc("/operations", ws.handleGetOperations).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

type depositRequest struct {
	User   string `json:"user"`
	Amount string `json:"amount"` // Token base units as a decimal string
}

type withdrawRequest struct {
	User   string `json:"user"`
	Shares string `json:"shares"` // Share units as a decimal string
}

// handleDeposit mints shares for a deposit and routes the capital.
func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.User == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "user is required")
		return
	}
	amount, ok := sdkmath.NewIntFromString(req.Amount)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "amount must be a base-10 integer string")
		return
	}

	resp, err := ws.vault.Deposit(r.Context(), req.User, amount)
	if err != nil {
		ws.writeOperationError(w, "deposit", asCommitted(resp), err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, resp)
}

// handleWithdraw burns shares and pulls the proportional liquidity.
func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.User == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "user is required")
		return
	}
	shares, ok := sdkmath.NewIntFromString(req.Shares)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "shares must be a base-10 integer string")
		return
	}

	resp, err := ws.vault.Withdraw(r.Context(), req.User, shares)
	if err != nil {
		ws.writeOperationError(w, "withdraw", asCommitted(resp), err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, resp)
}

// handleRebalance triggers a rebalance manually.
func (ws *WebServer) handleRebalance(w http.ResponseWriter, r *http.Request) {
	resp, err := ws.vault.Rebalance(r.Context())
	if err != nil {
		ws.writeOperationError(w, "rebalance", asCommitted(resp), err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, resp)
}

// handleGetInfo returns the vault aggregate snapshot.
func (ws *WebServer) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.vault.GetInfo())
}

// handleGetUserAccount returns a user's refreshed position.
func (ws *WebServer) handleGetUserAccount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["id"]

	info, err := ws.vault.GetUserAccount(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, err.Error())
			return
		}
		webLogger.Error().Err(err).Str("user", userID).Msg("Failed to get user account")
		ws.writeErrorResponse(w, http.StatusBadGateway, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, info)
}

// handleGetOperations returns recent operation receipts.
func (ws *WebServer) handleGetOperations(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	receipts, err := state.GetRecentOperations(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent operations")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve operations")
		return
	}

	response := map[string]interface{}{
		"operations": receipts,
		"count":      len(receipts),
		"limit":      limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
	}

	info := ws.vault.GetInfo()

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
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
		},
		"component": map[string]interface{}{
			"name":    "yvm-yield-vault-manager",
			"version": "1.0.0",
		},
		"vault_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"current_pool":     ws.vault.CurrentPool(),
			"total_shares":     info.TotalShares,
			"share_price":      info.SharePrice,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// asCommitted flattens typed nil pointers so writeOperationError can report
// whether a ledger mutation committed before the failure.
func asCommitted[T any](resp *T) interface{} {
	if resp == nil {
		return nil
	}
	return resp
}

// writeOperationError distinguishes ledger-level rejections (no state was
// mutated) from provider-level failures where the ledger mutation already
// committed and only the external liquidity movement needs a retry.
func (ws *WebServer) writeOperationError(w http.ResponseWriter, op string, committed interface{}, err error) {
	var provErr *provider.Error
	if errors.As(err, &provErr) {
		webLogger.Error().Err(err).Str("operation", op).Msg("Provider step failed after ledger commit")
		ws.writeJSONResponse(w, http.StatusBadGateway, map[string]interface{}{
			"error":            true,
			"message":          err.Error(),
			"ledger_committed": committed != nil,
			"result":           committed,
			"retry_pool":       provErr.Pool,
			"retry_op":         provErr.Op,
			"timestamp":        time.Now().UTC(),
		})
		return
	}

	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInsufficientShares):
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrUserNotFound):
		ws.writeErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, vault.ErrNoPoolSelected):
		ws.writeJSONResponse(w, http.StatusConflict, map[string]interface{}{
			"error":            true,
			"message":          err.Error(),
			"ledger_committed": committed != nil,
			"result":           committed,
			"timestamp":        time.Now().UTC(),
		})
	default:
		webLogger.Error().Err(err).Str("operation", op).Msg("Operation failed")
		ws.writeErrorResponse(w, http.StatusInternalServerError, err.Error())
	}
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

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
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
