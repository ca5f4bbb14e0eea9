package e2e_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdktypes "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/tranche-protocol/api"
	"github.com/openalpha/tranche-protocol/api/handlers"
	"github.com/openalpha/tranche-protocol/api/types"
	"github.com/openalpha/tranche-protocol/sdk"
)

// addr derives a bech32 fixture address; the keepers reject hand-typed ones
func addr(name string) string {
	return sdktypes.AccAddress(name).String()
}

// ============================================================================
// True E2E Tests - HTTP API -> Keepers -> In-Memory Multistore
// ============================================================================
// These tests make actual HTTP requests through the SDK client to a real API
// server connected to real keepers (with in-memory storage)
// ============================================================================

// TestServer wraps the API server for testing
type TestServer struct {
	server  *httptest.Server
	service *api.KeeperService
	client  *sdk.Client
}

// NewTestServer creates a new test server backed by real keepers
func NewTestServer() *TestServer {
	service := api.NewKeeperService()

	custodianHandler := handlers.NewCustodianHandler(service)
	riskHandler := handlers.NewRiskHandler(service)
	auctionHandler := handlers.NewAuctionHandler(service)

	// Register endpoints (same as api/server.go)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "healthy",
			"mode":   "keeper",
		})
	})
	mux.HandleFunc("/v1/tiers", custodianHandler.HandleTiers)
	mux.HandleFunc("/v1/price", custodianHandler.HandlePrice)
	mux.HandleFunc("/v1/ledger", custodianHandler.HandleLedger)
	mux.HandleFunc("/v1/mint", custodianHandler.HandleMint)
	mux.HandleFunc("/v1/burn", custodianHandler.HandleBurn)
	mux.HandleFunc("/v1/positions", custodianHandler.HandlePositions)
	mux.HandleFunc("/v1/positions/", custodianHandler.HandlePosition)
	mux.HandleFunc("/v1/risk/", riskHandler.HandleRiskStatus)
	mux.HandleFunc("/v1/bark", riskHandler.HandleBark)
	mux.HandleFunc("/v1/liquidations", riskHandler.HandleRecords)
	mux.HandleFunc("/v1/auctions", auctionHandler.HandleAuctions)
	mux.HandleFunc("/v1/auctions/", auctionHandler.HandleAuction)

	server := httptest.NewServer(mux)
	return &TestServer{
		server:  server,
		service: service,
		client:  sdk.NewClient(server.URL),
	}
}

func (ts *TestServer) Close() {
	ts.server.Close()
}

func TestHealthAndPrice(t *testing.T) {
	ts := NewTestServer()
	defer ts.Close()
	ctx := context.Background()

	if err := ts.client.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}

	// No price posted yet
	price, err := ts.client.Price(ctx)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Valid {
		t.Errorf("expected no valid price before posting, got %+v", price)
	}

	if err := ts.service.PostPrice("100"); err != nil {
		t.Fatalf("post price: %v", err)
	}
	price, err = ts.client.Price(ctx)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !price.Valid || price.Price != "100.000000000000000000" {
		t.Errorf("posted price: got %+v", price)
	}

	tiers, err := ts.client.Tiers(ctx)
	if err != nil {
		t.Fatalf("tiers: %v", err)
	}
	if len(tiers) != 3 {
		t.Errorf("expected 3 tiers, got %d", len(tiers))
	}
	t.Logf("Tiers: %d, price: %s", len(tiers), price.Price)
}

func TestMintBurnLifecycleHTTP(t *testing.T) {
	ts := NewTestServer()
	defer ts.Close()
	ctx := context.Background()

	if err := ts.service.PostPrice("100"); err != nil {
		t.Fatalf("post price: %v", err)
	}

	alice := addr("alice")

	// Mint without a price would have failed; with one it splits the deposit
	t.Log("1. Minting aggressive position: 1000 collateral at price 100...")
	mint, err := ts.client.Mint(ctx, &types.MintRequest{
		Creditor:   alice,
		Collateral: "1000",
		Tier:       2,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if mint.StableMinted != "50000.000000000000000000" || mint.LeverCredited != "50000.000000000000000000" {
		t.Errorf("aggressive split: stable=%s, lever=%s", mint.StableMinted, mint.LeverCredited)
	}

	t.Log("2. Listing alice's positions...")
	positions, err := ts.client.Positions(ctx, alice)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if len(positions) != 1 || positions[0].PositionID != mint.PositionID {
		t.Fatalf("positions: got %d", len(positions))
	}
	t.Logf("   Position %d: L=%s, NAV=%s", positions[0].PositionID, positions[0].LBalance, positions[0].NetNav)

	t.Log("3. Burning half the position...")
	burn, err := ts.client.Burn(ctx, &types.BurnRequest{
		Owner:      alice,
		PositionID: mint.PositionID,
		Percentage: "50",
	})
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if burn.LeverBurned != "25000.000000000000000000" {
		t.Errorf("burn: lever=%s", burn.LeverBurned)
	}

	ledger, err := ts.client.Ledger(ctx)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if ledger.TotalLever != "25000.000000000000000000" {
		t.Errorf("ledger lever after burn: %s", ledger.TotalLever)
	}

	// Burning as the wrong owner surfaces a structured API error
	_, err = ts.client.Burn(ctx, &types.BurnRequest{
		Owner:      addr("mallory"),
		PositionID: mint.PositionID,
		Percentage: "50",
	})
	var apiErr *sdk.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected API error, got %v", err)
	}
	t.Logf("   Wrong-owner burn rejected: %v", apiErr)
}

func TestLiquidationFlowHTTP(t *testing.T) {
	ts := NewTestServer()
	defer ts.Close()
	ctx := context.Background()

	bob := addr("bob")
	keeper := addr("keeper1")

	if err := ts.service.PostPrice("100"); err != nil {
		t.Fatalf("post price: %v", err)
	}
	mint, err := ts.client.Mint(ctx, &types.MintRequest{Creditor: bob, Collateral: "1000", Tier: 2})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// Above the threshold the bark is rejected
	t.Log("1. Price drops to 80, bark should be rejected...")
	if err := ts.service.PostPrice("80"); err != nil {
		t.Fatalf("post price: %v", err)
	}
	_, err = ts.client.Bark(ctx, &types.BarkRequest{Owner: bob, PositionID: mint.PositionID, Triggerer: keeper})
	var apiErr *sdk.APIError
	if !errors.As(err, &apiErr) || !strings.Contains(apiErr.Message, "NAV above liquidation threshold") {
		t.Fatalf("expected threshold rejection, got %v", err)
	}

	t.Log("2. Price drops to 60, bark should seize the position...")
	if err := ts.service.PostPrice("60"); err != nil {
		t.Fatalf("post price: %v", err)
	}
	record, err := ts.client.Bark(ctx, &types.BarkRequest{Owner: bob, PositionID: mint.PositionID, Triggerer: keeper})
	if err != nil {
		t.Fatalf("bark: %v", err)
	}
	if record.LeverSeized != "50000.000000000000000000" {
		t.Errorf("lever seized: %s", record.LeverSeized)
	}
	t.Logf("   Barked: auction %d, seized %s, reward %s", record.AuctionID, record.LeverSeized, record.KeeperReward)

	t.Log("3. Risk status reflects the freeze...")
	risk, err := ts.client.RiskStatus(ctx, mint.PositionID)
	if err != nil {
		t.Fatalf("risk status: %v", err)
	}
	if !risk.Frozen || risk.AuctionID != record.AuctionID {
		t.Errorf("risk status: frozen=%v, auction=%d", risk.Frozen, risk.AuctionID)
	}

	t.Log("4. The auction is open and priced...")
	auctions, err := ts.client.Auctions(ctx)
	if err != nil {
		t.Fatalf("auctions: %v", err)
	}
	if len(auctions) != 1 || auctions[0].AuctionID != record.AuctionID {
		t.Fatalf("auctions: got %d", len(auctions))
	}

	t.Log("5. Buying a slice of the collateral...")
	purchase, err := ts.client.Purchase(ctx, &types.PurchaseRequest{
		Buyer:         addr("carol"),
		AuctionID:     record.AuctionID,
		MaxUnderlying: "10",
		MaxPrice:      "60",
	})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if purchase.UnderlyingSold != "10.000000000000000000" || purchase.AuctionClosed {
		t.Errorf("purchase: sold=%s, closed=%v", purchase.UnderlyingSold, purchase.AuctionClosed)
	}

	records, err := ts.client.Liquidations(ctx, 10)
	if err != nil {
		t.Fatalf("liquidations: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("liquidation records: got %d", len(records))
	}
	t.Log("=== Liquidation flow complete ===")
}

func TestConcurrentMintsHTTP(t *testing.T) {
	ts := NewTestServer()
	defer ts.Close()
	ctx := context.Background()

	if err := ts.service.PostPrice("100"); err != nil {
		t.Fatalf("post price: %v", err)
	}

	numWorkers := 8
	mintsPerWorker := 50
	t.Logf("Running concurrent test: %d workers x %d mints", numWorkers, mintsPerWorker)

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	start := time.Now()

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			creditor := addr(fmt.Sprintf("worker%d", workerID))
			for i := 0; i < mintsPerWorker; i++ {
				_, err := ts.client.Mint(ctx, &types.MintRequest{
					Creditor:   creditor,
					Collateral: "10",
					Tier:       uint8(i % 3),
				})
				if err != nil {
					errorCount.Add(1)
				} else {
					successCount.Add(1)
				}
			}
		}(w)
	}

	wg.Wait()
	duration := time.Since(start)
	total := int64(numWorkers * mintsPerWorker)

	t.Logf("Results:")
	t.Logf("  Total mints: %d", total)
	t.Logf("  Success: %d", successCount.Load())
	t.Logf("  Errors: %d", errorCount.Load())
	t.Logf("  Duration: %v", duration)
	t.Logf("  Throughput: %.2f mints/sec", float64(total)/duration.Seconds())

	if successCount.Load() != total {
		t.Errorf("expected all mints to succeed, got %d/%d", successCount.Load(), total)
	}

	// All mints at one price merge into one bucket per worker and tier
	for w := 0; w < numWorkers; w++ {
		positions, err := ts.client.Positions(ctx, addr(fmt.Sprintf("worker%d", w)))
		if err != nil {
			t.Fatalf("positions: %v", err)
		}
		if len(positions) != 3 {
			t.Errorf("worker%d buckets: got %d, want 3", w, len(positions))
		}
	}
}
