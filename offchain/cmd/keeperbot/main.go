package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmossdk.io/math"

	"github.com/openalpha/tranche-protocol/offchain/keeperbot"
	custodiantypes "github.com/openalpha/tranche-protocol/x/custodian/types"
)

// Config holds the application configuration
type Config struct {
	BatchSize     int           `json:"batch_size"`
	BatchInterval time.Duration `json:"batch_interval"`
	WebSocketURL  string        `json:"websocket_url"`
	ChainRPCURL   string        `json:"chain_rpc_url"`
	GRPCAddr      string        `json:"grpc_addr"`
	SubmitterType string        `json:"submitter_type"` // "mock" or "grpc"
	PrivKeyHex    string        `json:"priv_key_hex"`
	Demo          bool          `json:"demo"` // run demo mode
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		BatchSize:     100,
		BatchInterval: 500 * time.Millisecond,
		WebSocketURL:  "ws://localhost:26657/websocket",
		ChainRPCURL:   "http://localhost:26657",
		GRPCAddr:      "localhost:9090",
		SubmitterType: "mock",
		Demo:          false,
	}
}

// LoadConfig loads configuration from a file
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	batchSize := flag.Int("batch-size", 0, "Maximum barks per batch")
	batchInterval := flag.Duration("batch-interval", 0, "Time interval for batch submission")
	rpcURL := flag.String("rpc", "", "Chain RPC URL")
	grpcAddr := flag.String("grpc", "", "Chain gRPC address")
	wsURL := flag.String("ws", "", "WebSocket URL")
	submitterType := flag.String("submitter", "", "Submitter type (mock or grpc)")
	privKey := flag.String("privkey", "", "Hex-encoded signing key for the grpc submitter")
	demo := flag.Bool("demo", false, "Run demo mode with sample positions")
	flag.Parse()

	// Load configuration
	config, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Override with command line flags
	if *batchSize > 0 {
		config.BatchSize = *batchSize
	}
	if *batchInterval > 0 {
		config.BatchInterval = *batchInterval
	}
	if *rpcURL != "" {
		config.ChainRPCURL = *rpcURL
	}
	if *grpcAddr != "" {
		config.GRPCAddr = *grpcAddr
	}
	if *wsURL != "" {
		config.WebSocketURL = *wsURL
	}
	if *submitterType != "" {
		config.SubmitterType = *submitterType
	}
	if *privKey != "" {
		config.PrivKeyHex = *privKey
	}
	if *demo {
		config.Demo = true
	}

	// Print configuration
	log.Println("=== TrancheFi Keeper Bot ===")
	log.Printf("Batch Size: %d", config.BatchSize)
	log.Printf("Batch Interval: %v", config.BatchInterval)
	log.Printf("Chain RPC: %s", config.ChainRPCURL)
	log.Printf("Chain gRPC: %s", config.GRPCAddr)
	log.Printf("WebSocket: %s", config.WebSocketURL)
	log.Printf("Submitter: %s", config.SubmitterType)
	log.Println("============================")

	// Create submitter
	factory := keeperbot.NewSubmitterFactory()
	submitter := factory.Create(config.SubmitterType, &keeperbot.GRPCSubmitterConfig{
		GRPCAddr:      config.GRPCAddr,
		PrivKeyHex:    config.PrivKeyHex,
		BatchSize:     config.BatchSize,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	})

	// Create bot
	botConfig := keeperbot.DefaultConfig()
	botConfig.BatchSize = config.BatchSize
	botConfig.BatchInterval = config.BatchInterval
	botConfig.WebSocketURL = config.WebSocketURL
	botConfig.ChainRPCURL = config.ChainRPCURL
	bot := keeperbot.NewKeeperBot(botConfig, submitter)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the bot
	if err := bot.Start(ctx); err != nil {
		log.Fatalf("Failed to start keeper bot: %v", err)
	}

	// Run demo if requested
	if config.Demo {
		go runDemo(bot)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Periodic stats logging
	statsTicker := time.NewTicker(10 * time.Second)
	defer statsTicker.Stop()

	log.Println("Keeper bot is running. Press Ctrl+C to stop.")

	for {
		select {
		case sig := <-sigCh:
			log.Printf("Received signal: %v", sig)
			cancel()
			if err := bot.Stop(); err != nil {
				log.Printf("Error stopping keeper bot: %v", err)
			}
			log.Println("Keeper bot stopped")
			return
		case <-statsTicker.C:
			stats := bot.GetStats()
			log.Printf("Stats: Positions=%d, Auctions=%d, PendingBarks=%d, LastPrice=%s",
				stats.PositionCount, stats.AuctionCount, stats.PendingBarks, stats.LastPrice)
		}
	}
}

// runDemo tracks sample positions and walks the price down until the
// aggressive tier goes underwater
func runDemo(bot *keeperbot.KeeperBot) {
	log.Println("Starting demo mode...")
	time.Sleep(time.Second)

	now := time.Now().Unix()
	mintPrice := math.LegacyNewDec(100)

	// An aggressive position barks first on a falling price
	aggressive := custodiantypes.NewPosition(1, "ltc1demoaggressive", custodiantypes.TierAggressive, mintPrice, now)
	aggressive.LBalance = math.LegacyNewDec(50000)
	aggressive.Collateral = math.LegacyNewDec(1000)
	log.Printf("Tracking position %d: tier %s, mint price %s", aggressive.PositionID, custodiantypes.TierName(aggressive.Tier), mintPrice.String())
	bot.TrackPosition(aggressive)

	// A conservative position at the same mint price stays solvent much longer
	conservative := custodiantypes.NewPosition(2, "ltc1democonservative", custodiantypes.TierConservative, mintPrice, now)
	conservative.LBalance = math.LegacyNewDec(88888)
	conservative.Collateral = math.LegacyNewDec(1000)
	log.Printf("Tracking position %d: tier %s, mint price %s", conservative.PositionID, custodiantypes.TierName(conservative.Tier), mintPrice.String())
	bot.TrackPosition(conservative)

	// Walk the price down. Aggressive net NAV is (2*Pt - P0)/P0, so it
	// crosses the 0.3 default threshold just under Pt = 65.
	prices := []string{"100", "90", "80", "70", "64"}
	for _, p := range prices {
		price := math.LegacyMustNewDecFromStr(p)
		log.Printf("Feeding price: %s", p)
		bot.SubmitPriceUpdate(price)
		time.Sleep(300 * time.Millisecond)
	}

	time.Sleep(time.Second)
	stats := bot.GetStats()
	log.Printf("After crash: Positions=%d, PendingBarks=%d", stats.PositionCount, stats.PendingBarks)

	// Simulate the auction opened by the bark: starts above oracle and
	// decays through it
	log.Println("\n=== Tracking auction from the bark ===")
	bot.TrackAuction(&keeperbot.AuctionInfo{
		AuctionID:           1,
		PositionID:          1,
		ValueToBeBurned:     math.LegacyNewDec(15000),
		UnderlyingRemaining: math.LegacyNewDec(200),
		CurrentPrice:        math.LegacyNewDec(64),
		StartingPrice:       math.LegacyNewDec(64),
		Active:              true,
	})
	time.Sleep(300 * time.Millisecond)

	// Price decays below the bid ceiling, the bot should bid
	bot.TrackAuction(&keeperbot.AuctionInfo{
		AuctionID:           1,
		PositionID:          1,
		ValueToBeBurned:     math.LegacyNewDec(15000),
		UnderlyingRemaining: math.LegacyNewDec(200),
		CurrentPrice:        math.LegacyNewDec(58),
		StartingPrice:       math.LegacyNewDec(64),
		Active:              true,
	})
	time.Sleep(500 * time.Millisecond)

	log.Println("\nDemo completed!")
}
