// Package web exposes the pool engine over HTTP: execute endpoints that run
// one operation and queue its outbound messages, and read endpoints that
// mirror the contract queries.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/openpool/pam/internal/gateway"
	"github.com/openpool/pam/internal/history"
	"github.com/openpool/pam/internal/ledger"
	"github.com/openpool/pam/internal/logger"
	"github.com/openpool/pam/internal/pool"
	"github.com/openpool/pam/internal/state"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer handles HTTP requests against the pool engine.
type WebServer struct {
	router     *mux.Router
	port       string
	pool       *pool.Pool
	dispatcher ledger.Dispatcher
	history    *history.Store // may be nil; receipts are then skipped
}

// NewWebServer creates a new web server instance.
func NewWebServer(port string, p *pool.Pool, dispatcher ledger.Dispatcher, hist *history.Store) *WebServer {
	if port == "" {
		port = "8080"
	}
	if dispatcher == nil {
		dispatcher = ledger.NopDispatcher{}
	}

	server := &WebServer{
		router:     mux.NewRouter(),
		port:       port,
		pool:       p,
		dispatcher: dispatcher,
		history:    hist,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api := ws.router.PathPrefix("/v1").Subrouter()

	// Execute endpoints
	api.HandleFunc("/pool/join", ws.handleJoinPool).Methods("POST")
	api.HandleFunc("/pool/exit", ws.handleExitPool).Methods("POST")
	api.HandleFunc("/pool/bid", ws.handleTryBid).Methods("POST")
	api.HandleFunc("/pool/settle", ws.handleSettleAuction).Methods("POST")
	api.HandleFunc("/admin/config", ws.handleUpdateConfig).Methods("POST")
	api.HandleFunc("/admin/whitelist", ws.handleUpdateWhitelist).Methods("POST")
	api.HandleFunc("/admin/ownership", ws.handleUpdateOwnership).Methods("POST")

	// Query endpoints
	api.HandleFunc("/config", ws.handleGetConfig).Methods("GET")
	api.HandleFunc("/ownership", ws.handleGetOwnership).Methods("GET")
	api.HandleFunc("/whitelist", ws.handleGetWhitelist).Methods("GET")
	api.HandleFunc("/bidding-balance", ws.handleGetBiddingBalance).Methods("GET")
	api.HandleFunc("/funds-locked", ws.handleGetFundsLocked).Methods("GET")
	api.HandleFunc("/unsettled-auction", ws.handleGetUnsettledAuction).Methods("GET")
	api.HandleFunc("/treasure-chests", ws.handleGetTreasureChests).Methods("GET")
	api.HandleFunc("/current-basket", ws.handleGetCurrentBasket).Methods("GET")

	// Audit trail (available only when the history database is configured)
	api.HandleFunc("/history/settlements", ws.handleGetSettlementHistory).Methods("GET")
	api.HandleFunc("/history/bids", ws.handleGetBidHistory).Methods("GET")

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

// handleHealth reports server, state store, and history database health.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	hasErrors := false

	stateHealthy := true
	if _, err := ws.pool.GetFundsLocked(); err != nil && !errors.Is(err, state.ErrNotFound) {
		stateHealthy = false
		hasErrors = true
	}

	dbHealthy := true
	if ws.history != nil {
		if err := ws.history.Ping(); err != nil {
			dbHealthy = false
			hasErrors = true
		}
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"component": map[string]interface{}{
			"name":    "pam-pooled-auction-manager",
			"version": "1.0.0",
		},
		"pool_status": map[string]interface{}{
			"address":          ws.pool.Address(),
			"state_healthy":    stateHealthy,
			"database_healthy": dbHealthy,
			"history_enabled":  ws.history != nil,
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}
	ws.writeJSONResponse(w, statusCode, response)
}

type joinPoolRequest struct {
	Caller       string       `json:"caller"`
	Height       uint64       `json:"height"`
	AuctionRound uint64       `json:"auction_round"`
	Payment      sdk.Coin     `json:"payment"`
	BasketValue  *sdkmath.Int `json:"basket_value,omitempty"`
}

func (ws *WebServer) handleJoinPool(w http.ResponseWriter, r *http.Request) {
	var req joinPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := ws.pool.JoinPool(r.Context(), pool.CallContext{Caller: req.Caller, Height: req.Height},
		req.AuctionRound, req.Payment, req.BasketValue)
	if err != nil {
		ws.writeExecutionError(w, err)
		return
	}
	ws.finishExecution(w, r, res)
}

type exitPoolRequest struct {
	Caller  string   `json:"caller"`
	Height  uint64   `json:"height"`
	Payment sdk.Coin `json:"payment"`
}

func (ws *WebServer) handleExitPool(w http.ResponseWriter, r *http.Request) {
	var req exitPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := ws.pool.ExitPool(r.Context(), pool.CallContext{Caller: req.Caller, Height: req.Height}, req.Payment)
	if err != nil {
		ws.writeExecutionError(w, err)
		return
	}
	ws.finishExecution(w, r, res)
}

type tryBidRequest struct {
	Caller       string      `json:"caller"`
	Height       uint64      `json:"height"`
	AuctionRound uint64      `json:"auction_round"`
	BasketValue  sdkmath.Int `json:"basket_value"`
}

func (ws *WebServer) handleTryBid(w http.ResponseWriter, r *http.Request) {
	var req tryBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.BasketValue.IsNil() {
		ws.writeErrorResponse(w, http.StatusBadRequest, "basket_value is required")
		return
	}

	res, err := ws.pool.TryBid(r.Context(), pool.CallContext{Caller: req.Caller, Height: req.Height},
		req.AuctionRound, req.BasketValue)
	if err != nil {
		ws.writeExecutionError(w, err)
		return
	}

	if ws.history != nil {
		receipt := history.BidReceipt{
			AuctionRound: req.AuctionRound,
			Caller:       req.Caller,
			Action:       res.Action,
			BasketValue:  &req.BasketValue,
		}
		for _, attr := range res.Attributes {
			switch attr.Key {
			case "reason":
				receipt.Reason = attr.Value
			case "amount":
				if v, ok := sdkmath.NewIntFromString(attr.Value); ok {
					receipt.BidAmount = &v
				}
			}
		}
		if err := ws.history.RecordBidAttempt(r.Context(), receipt); err != nil {
			webLogger.Error().Err(err).Msg("Failed to record bid receipt")
		}
	}

	ws.finishExecution(w, r, res)
}

type settleAuctionRequest struct {
	Caller            string      `json:"caller"`
	Height            uint64      `json:"height"`
	AuctionRound      uint64      `json:"auction_round"`
	AuctionWinner     string      `json:"auction_winner"`
	AuctionWinningBid sdkmath.Int `json:"auction_winning_bid"`
}

func (ws *WebServer) handleSettleAuction(w http.ResponseWriter, r *http.Request) {
	var req settleAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := ws.pool.SettleAuction(r.Context(), pool.CallContext{Caller: req.Caller, Height: req.Height},
		req.AuctionRound, req.AuctionWinner, req.AuctionWinningBid)
	if err != nil {
		ws.writeExecutionError(w, err)
		return
	}

	if ws.history != nil {
		receipt := history.SettlementReceipt{
			AuctionRound:      req.AuctionRound,
			Caller:            req.Caller,
			AuctionWinner:     req.AuctionWinner,
			AuctionWinningBid: req.AuctionWinningBid,
			PoolWon:           req.AuctionWinner == ws.pool.Address(),
		}
		for _, attr := range res.Attributes {
			if attr.Key == "treasure_chest_address" {
				receipt.TreasureChestAddress = attr.Value
			}
		}
		if err := ws.history.RecordSettlement(r.Context(), receipt); err != nil {
			webLogger.Error().Err(err).Msg("Failed to record settlement receipt")
		}
	}

	ws.finishExecution(w, r, res)
}

type updateConfigRequest struct {
	Caller string                  `json:"caller"`
	Update pool.UpdateConfigParams `json:"update"`
}

func (ws *WebServer) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := ws.pool.UpdateConfig(r.Context(), pool.CallContext{Caller: req.Caller}, req.Update)
	if err != nil {
		ws.writeExecutionError(w, err)
		return
	}
	ws.finishExecution(w, r, res)
}

type updateWhitelistRequest struct {
	Caller string   `json:"caller"`
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

func (ws *WebServer) handleUpdateWhitelist(w http.ResponseWriter, r *http.Request) {
	var req updateWhitelistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := ws.pool.UpdateWhitelistedAddresses(r.Context(), pool.CallContext{Caller: req.Caller}, req.Remove, req.Add)
	if err != nil {
		ws.writeExecutionError(w, err)
		return
	}
	ws.finishExecution(w, r, res)
}

type updateOwnershipRequest struct {
	Caller   string `json:"caller"`
	Action   string `json:"action"`
	NewOwner string `json:"new_owner,omitempty"`
}

func (ws *WebServer) handleUpdateOwnership(w http.ResponseWriter, r *http.Request) {
	var req updateOwnershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := ws.pool.UpdateOwnership(r.Context(), pool.CallContext{Caller: req.Caller},
		pool.OwnershipUpdate{Action: req.Action, NewOwner: req.NewOwner})
	if err != nil {
		ws.writeExecutionError(w, err)
		return
	}
	ws.finishExecution(w, r, res)
}

func (ws *WebServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := ws.pool.GetConfig()
	if err != nil {
		ws.writeQueryError(w, err, "Failed to retrieve config")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, cfg)
}

func (ws *WebServer) handleGetOwnership(w http.ResponseWriter, r *http.Request) {
	ownership, err := ws.pool.GetOwnership()
	if err != nil {
		ws.writeQueryError(w, err, "Failed to retrieve ownership")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, ownership)
}

func (ws *WebServer) handleGetWhitelist(w http.ResponseWriter, r *http.Request) {
	addrs, err := ws.pool.GetWhitelistedAddresses()
	if err != nil {
		ws.writeQueryError(w, err, "Failed to retrieve whitelist")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"addresses": addrs,
		"count":     len(addrs),
	})
}

func (ws *WebServer) handleGetBiddingBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := ws.pool.GetBiddingBalance()
	if err != nil {
		ws.writeQueryError(w, err, "Failed to retrieve bidding balance")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"bidding_balance": balance})
}

func (ws *WebServer) handleGetFundsLocked(w http.ResponseWriter, r *http.Request) {
	locked, err := ws.pool.GetFundsLocked()
	if err != nil {
		ws.writeQueryError(w, err, "Failed to retrieve lock state")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"funds_locked": locked})
}

func (ws *WebServer) handleGetUnsettledAuction(w http.ResponseWriter, r *http.Request) {
	auction, err := ws.pool.GetUnsettledAuction()
	if err != nil {
		ws.writeQueryError(w, err, "Failed to retrieve unsettled auction")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, auction)
}

func (ws *WebServer) handleGetTreasureChests(w http.ResponseWriter, r *http.Request) {
	var startAfter *uint64
	if s := r.URL.Query().Get("start_after"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid start_after parameter")
			return
		}
		startAfter = &v
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 || v > 100 {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = v
	}

	chests, err := ws.pool.GetTreasureChestContracts(startAfter, limit)
	if err != nil {
		ws.writeQueryError(w, err, "Failed to retrieve treasure chests")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"treasure_chest_contracts": chests,
		"count":                    len(chests),
	})
}

func (ws *WebServer) handleGetCurrentBasket(w http.ResponseWriter, r *http.Request) {
	basket, err := ws.pool.GetCurrentAuctionBasket(r.Context())
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to query current auction basket")
		ws.writeErrorResponse(w, http.StatusBadGateway, "Failed to query external auction module")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, basket)
}

func (ws *WebServer) handleGetSettlementHistory(w http.ResponseWriter, r *http.Request) {
	if ws.history == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "History database not configured")
		return
	}

	limit := parseLimitParam(r, 20)
	receipts, err := ws.history.RecentSettlements(r.Context(), limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get settlement history")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve settlement history")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"settlements": receipts,
		"count":       len(receipts),
	})
}

func (ws *WebServer) handleGetBidHistory(w http.ResponseWriter, r *http.Request) {
	if ws.history == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "History database not configured")
		return
	}

	limit := parseLimitParam(r, 20)
	receipts, err := ws.history.RecentBidAttempts(r.Context(), limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get bid history")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve bid history")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"bid_attempts": receipts,
		"count":        len(receipts),
	})
}

func parseLimitParam(r *http.Request, def int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= 100 {
			return v
		}
	}
	return def
}

// finishExecution queues the result's outbound messages and returns the
// result to the caller. The state transaction has already committed; a queue
// failure is reported but cannot roll it back.
func (ws *WebServer) finishExecution(w http.ResponseWriter, r *http.Request, res *pool.Result) {
	batchID := uuid.NewString()
	if len(res.Messages) > 0 {
		if err := ws.dispatcher.Dispatch(r.Context(), batchID, res.Messages); err != nil {
			webLogger.Error().Err(err).
				Str("batch_id", batchID).
				Str("action", res.Action).
				Msg("Failed to queue outbound messages for committed operation")
			ws.writeErrorResponse(w, http.StatusInternalServerError, "Operation committed but message dispatch failed")
			return
		}
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"batch_id": batchID,
		"result":   res,
	})
}

// writeExecutionError maps engine errors onto HTTP status codes.
func (ws *WebServer) writeExecutionError(w http.ResponseWriter, err error) {
	ws.writeErrorResponse(w, executionStatusCode(err), err.Error())
}

func executionStatusCode(err error) int {
	var (
		roundErr       pool.InvalidAuctionRoundError
		rateErr        pool.InvalidRateError
		whitelistedErr pool.AddressAlreadyWhitelistedError
		notListedErr   pool.AddressNotWhitelistedError
		denomErr       pool.PaymentDenomError
		fundingErr     pool.InsufficientFundingError
	)

	switch {
	case errors.Is(err, pool.ErrUnauthorized),
		errors.Is(err, pool.ErrNotPendingOwner):
		return http.StatusForbidden
	case errors.Is(err, pool.ErrPooledAuctionLocked),
		errors.Is(err, pool.ErrAuctionRoundHasNotFinished),
		errors.Is(err, pool.ErrAlreadyInitialized),
		errors.As(err, &roundErr):
		return http.StatusConflict
	case errors.Is(err, pool.ErrMissingAuctionWinner),
		errors.Is(err, pool.ErrMissingAuctionWinningBid),
		errors.Is(err, pool.ErrNoPendingOwner),
		errors.Is(err, pool.ErrZeroPayment),
		errors.Is(err, ledger.ErrEmptyAddress),
		errors.Is(err, ledger.ErrInvalidAddress),
		errors.As(err, &rateErr),
		errors.As(err, &whitelistedErr),
		errors.As(err, &notListedErr),
		errors.As(err, &denomErr),
		errors.As(err, &fundingErr):
		return http.StatusBadRequest
	case errors.Is(err, state.ErrInsufficientBiddingBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, state.ErrNotInitialized), errors.Is(err, state.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrCurrentAuctionQuery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeQueryError distinguishes missing state from internal failures.
func (ws *WebServer) writeQueryError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, state.ErrNotFound) || errors.Is(err, state.ErrNotInitialized) {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool is not initialized")
		return
	}
	webLogger.Error().Err(err).Msg(message)
	ws.writeErrorResponse(w, http.StatusInternalServerError, message)
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
