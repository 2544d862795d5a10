package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/meridianlabs/pvm/internal/logger"
	"github.com/meridianlabs/pvm/internal/shares"
	"github.com/meridianlabs/pvm/internal/state"
	"github.com/meridianlabs/pvm/internal/utils"
	"github.com/meridianlabs/pvm/internal/vault"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer handles HTTP requests for vault valuation data. All endpoints
// are read-only; state mutation stays with the manager loop.
type WebServer struct {
	router *mux.Router
	port   string

	vault  *vault.Vault
	shares *shares.Book
}

// NewWebServer creates a new web server instance over the given vault.
func NewWebServer(port string, v *vault.Vault, shareBook *shares.Book) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		vault:  v,
		shares: shareBook,
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
	api.HandleFunc("/valuation", ws.handleGetValuation).Methods("GET")
	api.HandleFunc("/share-price", ws.handleGetSharePrice).Methods("GET")
	api.HandleFunc("/snapshots", ws.handleGetSnapshots).Methods("GET")

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

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	valuationHealthy := true
	if _, err := ws.vault.TotalAssets(); err != nil {
		valuationHealthy = false
		hasErrors = true
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if hasErrors {
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
			"name":    "pvm-pooled-vault-manager",
			"version": "1.0.0",
		},
		"vault_status": map[string]interface{}{
			"database_healthy":  dbHealthy,
			"valuation_healthy": valuationHealthy,
			"pool":              string(ws.vault.Pool().Address()),
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetValuation returns a live valuation breakdown
func (ws *WebServer) handleGetValuation(w http.ResponseWriter, r *http.Request) {
	breakdown, err := ws.vault.Valuation()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to compute valuation")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to compute valuation")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, breakdown)
}

// handleGetSharePrice returns the current share price and its inputs
func (ws *WebServer) handleGetSharePrice(w http.ResponseWriter, r *http.Request) {
	total, err := ws.vault.TotalAssets()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to compute total assets")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to compute total assets")
		return
	}

	supply := ws.shares.TotalSupply()
	sharePrice, err := utils.RatioFloat64(total, supply)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to compute share price")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to compute share price")
		return
	}

	response := map[string]interface{}{
		"total_assets": total.String(),
		"share_supply": supply.String(),
		"share_price":  sharePrice,
		"timestamp":    time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSnapshots returns paginated valuation snapshots
func (ws *WebServer) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	snapshots, err := state.GetRecentSnapshots(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent snapshots")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve snapshots")
		return
	}

	response := map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
		"limit":     limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
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
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
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

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
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
