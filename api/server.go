package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/openalpha/tranche-protocol/api/handlers"
	"github.com/openalpha/tranche-protocol/api/middleware"
	"github.com/openalpha/tranche-protocol/api/types"
	"github.com/openalpha/tranche-protocol/api/websocket"
)

// Server represents the API server
type Server struct {
	httpServer *http.Server
	wsServer   *websocket.Server
	config     *Config
	mockMode   bool

	// Services
	custodianService types.CustodianService
	riskService      types.RiskService
	auctionService   types.AuctionService

	// Handlers
	custodianHandler *handlers.CustodianHandler
	riskHandler      *handlers.RiskHandler
	auctionHandler   *handlers.AuctionHandler

	// Rate limiter
	rateLimiter *middleware.RateLimiter
}

// Config contains server configuration
type Config struct {
	Host             string
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	MockMode         bool
	DisableRateLimit bool // For testing purposes
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		MockMode:     false,
	}
}

// NewServer creates a new API server backed by mock data
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	mockService := NewMockService()
	return newServerWithServices(config, mockService, mockService, mockService, true)
}

// NewServerWithKeeperService creates an API server backed by real keepers on
// an in-memory multistore
func NewServerWithKeeperService(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	keeperService := NewKeeperService()
	return newServerWithServices(config, keeperService, keeperService, keeperService, false)
}

// NewServerWithServices creates a new API server with custom services
func NewServerWithServices(config *Config, custodianSvc types.CustodianService, riskSvc types.RiskService, auctionSvc types.AuctionService) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return newServerWithServices(config, custodianSvc, riskSvc, auctionSvc, config.MockMode)
}

func newServerWithServices(config *Config, custodianSvc types.CustodianService, riskSvc types.RiskService, auctionSvc types.AuctionService, mockMode bool) *Server {
	wsConfig := websocket.DefaultServerConfig()
	wsConfig.Port = config.Port

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())

	s := &Server{
		config:           config,
		wsServer:         websocket.NewServer(wsConfig),
		mockMode:         mockMode,
		custodianService: custodianSvc,
		riskService:      riskSvc,
		auctionService:   auctionSvc,
		rateLimiter:      rateLimiter,
	}

	s.custodianHandler = handlers.NewCustodianHandler(s.custodianService)
	s.riskHandler = handlers.NewRiskHandler(s.riskService)
	s.auctionHandler = handlers.NewAuctionHandler(s.auctionService)

	return s
}

// Start starts the API server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Health check (support both /health and /v1/health for compatibility)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/health", s.handleHealth)

	// Tier and price endpoints (read-only)
	mux.HandleFunc("/v1/tiers", s.custodianHandler.HandleTiers)
	mux.HandleFunc("/v1/price", s.custodianHandler.HandlePrice)
	mux.HandleFunc("/v1/ledger", s.custodianHandler.HandleLedger)

	// Mint and burn endpoints (POST)
	mux.HandleFunc("/v1/mint", s.custodianHandler.HandleMint)
	mux.HandleFunc("/v1/burn", s.custodianHandler.HandleBurn)

	// Position endpoints (GET)
	mux.HandleFunc("/v1/positions", s.custodianHandler.HandlePositions)
	mux.HandleFunc("/v1/positions/", s.custodianHandler.HandlePosition)

	// Risk and liquidation endpoints
	mux.HandleFunc("/v1/risk/", s.riskHandler.HandleRiskStatus)
	mux.HandleFunc("/v1/bark", s.riskHandler.HandleBark)
	mux.HandleFunc("/v1/liquidations", s.riskHandler.HandleRecords)

	// Auction endpoints
	mux.HandleFunc("/v1/auctions", s.auctionHandler.HandleAuctions)
	mux.HandleFunc("/v1/auctions/", s.auctionHandler.HandleAuction)

	// WebSocket
	mux.HandleFunc("/ws", s.wsServer.GetHub().ServeWS)

	// Apply middleware chain: CORS -> RateLimit -> Handler
	var handler http.Handler
	if s.config.DisableRateLimit {
		handler = corsMiddleware(mux)
	} else {
		handler = corsMiddleware(
			middleware.RateLimitMiddleware(s.rateLimiter)(mux),
		)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	// Start WebSocket hub
	go s.wsServer.GetHub().Run()

	// Push state snapshots into the hub buffers
	go s.startBroadcaster()

	log.Printf("API server starting on %s (mock mode: %v)", addr, s.mockMode)
	if s.config.DisableRateLimit {
		log.Printf("Rate limiting DISABLED (for testing)")
	} else {
		log.Printf("Rate limiting enabled: %d req/s per IP", 100)
	}
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	mode := "keeper"
	modeDescription := "Using real keepers on an in-memory multistore (standalone mode)"
	if s.mockMode {
		mode = "mock"
		modeDescription = "Using mock data for development/testing"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "healthy",
		"timestamp":        time.Now().Unix(),
		"mode":             mode,
		"mode_description": modeDescription,
		"warning":          "This API uses in-memory storage. For production, connect to a running chain.",
	})
}

// startBroadcaster polls the services and refreshes the hub snapshot buffers.
// The hub flushes the buffers to subscribers on its own intervals.
func (s *Server) startBroadcaster() {
	hub := s.wsServer.GetHub()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)

		if price, err := s.custodianService.GetPrice(ctx); err == nil {
			hub.UpdatePrice(&websocket.PriceMessage{
				Price:     price.Price,
				Valid:     price.Valid,
				Timestamp: types.NowMillis(),
			})
		}

		if ledger, err := s.custodianService.GetLedger(ctx); err == nil {
			hub.UpdateLedger(&websocket.LedgerMessage{
				TotalCollateral: ledger.TotalCollateral,
				TotalStable:     ledger.TotalStable,
				TotalLever:      ledger.TotalLever,
				Deficit:         ledger.Deficit,
				Timestamp:       types.NowMillis(),
			})
		}

		if auctions, err := s.auctionService.ListAuctions(ctx); err == nil {
			for _, auction := range auctions {
				hub.BroadcastAuction(&websocket.AuctionMessage{
					AuctionID:       auction.AuctionID,
					Event:           "open",
					ValueToBeBurned: auction.ValueToBeBurned,
					Underlying:      auction.UnderlyingAmount,
					CurrentPrice:    auction.CurrentPrice,
					Timestamp:       types.NowMillis(),
				})
			}
		}

		cancel()
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Owner-Address")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
