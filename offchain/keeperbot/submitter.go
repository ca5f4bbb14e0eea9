package keeperbot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"cosmossdk.io/math"

	"github.com/openalpha/tranche-protocol/pkg/grpcclient"
)

// TxSubmitter defines the interface for submitting transactions to the chain
type TxSubmitter interface {
	// SubmitPrice posts a fresh oracle price
	SubmitPrice(ctx context.Context, price math.LegacyDec) error

	// SubmitBarks triggers liquidation of a batch of positions
	SubmitBarks(ctx context.Context, targets []BarkTarget) error

	// SubmitBid bids for underlying in an open auction
	SubmitBid(ctx context.Context, auctionID uint64, maxUnderlying, maxPrice math.LegacyDec) error

	// GetStatus returns the submitter status
	GetStatus() SubmitterStatus
}

// SubmitterStatus represents the status of a submitter
type SubmitterStatus struct {
	Connected         bool
	PendingTxCount    int
	LastSubmitTime    time.Time
	LastError         string
	TotalSubmissions  int64
	FailedSubmissions int64
}

// MockSubmitter is a mock implementation for testing
type MockSubmitter struct {
	mu              sync.Mutex
	prices          []math.LegacyDec
	barks           []BarkTarget
	bids            []MockBid
	status          SubmitterStatus
	simulateFailure bool
}

// MockBid records one submitted auction bid (for testing)
type MockBid struct {
	AuctionID     uint64
	MaxUnderlying math.LegacyDec
	MaxPrice      math.LegacyDec
}

// NewMockSubmitter creates a new mock submitter
func NewMockSubmitter() *MockSubmitter {
	return &MockSubmitter{
		prices: make([]math.LegacyDec, 0),
		barks:  make([]BarkTarget, 0),
		bids:   make([]MockBid, 0),
		status: SubmitterStatus{
			Connected: true,
		},
	}
}

// SubmitPrice posts a price (mock implementation)
func (s *MockSubmitter) SubmitPrice(ctx context.Context, price math.LegacyDec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.simulateFailure {
		s.status.FailedSubmissions++
		s.status.LastError = "simulated failure"
		return fmt.Errorf("simulated failure")
	}

	s.prices = append(s.prices, price)
	s.status.TotalSubmissions++
	s.status.LastSubmitTime = time.Now()

	log.Printf("[MockSubmitter] Posted price: %s", price.String())
	return nil
}

// SubmitBarks triggers barks (mock implementation)
func (s *MockSubmitter) SubmitBarks(ctx context.Context, targets []BarkTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.simulateFailure {
		s.status.FailedSubmissions++
		s.status.LastError = "simulated failure"
		return fmt.Errorf("simulated failure")
	}

	s.barks = append(s.barks, targets...)
	s.status.TotalSubmissions++
	s.status.LastSubmitTime = time.Now()

	log.Printf("[MockSubmitter] Submitted %d barks", len(targets))
	for _, target := range targets {
		log.Printf("  Bark: position %d, owner %s", target.PositionID, target.Owner)
	}

	return nil
}

// SubmitBid bids in an auction (mock implementation)
func (s *MockSubmitter) SubmitBid(ctx context.Context, auctionID uint64, maxUnderlying, maxPrice math.LegacyDec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.simulateFailure {
		s.status.FailedSubmissions++
		s.status.LastError = "simulated failure"
		return fmt.Errorf("simulated failure")
	}

	s.bids = append(s.bids, MockBid{
		AuctionID:     auctionID,
		MaxUnderlying: maxUnderlying,
		MaxPrice:      maxPrice,
	})
	s.status.TotalSubmissions++
	s.status.LastSubmitTime = time.Now()

	log.Printf("[MockSubmitter] Bid on auction %d: up to %s @ max %s", auctionID, maxUnderlying.String(), maxPrice.String())
	return nil
}

// GetStatus returns the mock submitter status
func (s *MockSubmitter) GetStatus() SubmitterStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// GetSubmittedBarks returns all submitted bark targets (for testing)
func (s *MockSubmitter) GetSubmittedBarks() []BarkTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]BarkTarget, len(s.barks))
	copy(result, s.barks)
	return result
}

// GetSubmittedPrices returns all posted prices (for testing)
func (s *MockSubmitter) GetSubmittedPrices() []math.LegacyDec {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]math.LegacyDec, len(s.prices))
	copy(result, s.prices)
	return result
}

// GetSubmittedBids returns all submitted bids (for testing)
func (s *MockSubmitter) GetSubmittedBids() []MockBid {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]MockBid, len(s.bids))
	copy(result, s.bids)
	return result
}

// SetSimulateFailure enables or disables failure simulation
func (s *MockSubmitter) SetSimulateFailure(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simulateFailure = fail
}

// Clear clears all submitted data (for testing)
func (s *MockSubmitter) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = make([]math.LegacyDec, 0)
	s.barks = make([]BarkTarget, 0)
	s.bids = make([]MockBid, 0)
}

// GRPCSubmitter submits signed transactions through the pooled gRPC client
type GRPCSubmitter struct {
	client        *grpcclient.Client
	batchSize     int
	retryAttempts int
	retryDelay    time.Duration

	mu     sync.Mutex
	status SubmitterStatus
}

// GRPCSubmitterConfig holds configuration for GRPCSubmitter
type GRPCSubmitterConfig struct {
	GRPCAddr      string
	ChainID       string
	PrivKeyHex    string
	BatchSize     int
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultGRPCSubmitterConfig returns default configuration
func DefaultGRPCSubmitterConfig() *GRPCSubmitterConfig {
	return &GRPCSubmitterConfig{
		GRPCAddr:      "localhost:9090",
		ChainID:       "tranchefi-1",
		BatchSize:     100,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}
}

// NewGRPCSubmitter creates a new gRPC submitter
func NewGRPCSubmitter(config *GRPCSubmitterConfig) (*GRPCSubmitter, error) {
	if config == nil {
		config = DefaultGRPCSubmitterConfig()
	}

	clientConfig := grpcclient.DefaultConfig()
	clientConfig.GRPCAddr = config.GRPCAddr
	clientConfig.ChainID = config.ChainID
	clientConfig.BatchSize = config.BatchSize

	client, err := grpcclient.NewClient(clientConfig, config.PrivKeyHex)
	if err != nil {
		return nil, fmt.Errorf("create gRPC client: %w", err)
	}

	return &GRPCSubmitter{
		client:        client,
		batchSize:     config.BatchSize,
		retryAttempts: config.RetryAttempts,
		retryDelay:    config.RetryDelay,
		status: SubmitterStatus{
			Connected: true,
		},
	}, nil
}

// SubmitPrice posts a fresh oracle price. No retry here, a stale price is
// worthless and the next tick supersedes it.
func (s *GRPCSubmitter) SubmitPrice(ctx context.Context, price math.LegacyDec) error {
	result := s.client.UpdatePrice(ctx, price.String())
	s.record(result.Error)
	if result.Error != nil {
		return fmt.Errorf("post price: %w", result.Error)
	}
	return nil
}

// SubmitBarks triggers liquidations in batches
func (s *GRPCSubmitter) SubmitBarks(ctx context.Context, targets []BarkTarget) error {
	if len(targets) == 0 {
		return nil
	}

	s.mu.Lock()
	s.status.PendingTxCount = len(targets)
	s.mu.Unlock()

	for i := 0; i < len(targets); i += s.batchSize {
		end := i + s.batchSize
		if end > len(targets) {
			end = len(targets)
		}
		batch := targets[i:end]

		if err := s.submitBatchWithRetry(ctx, batch); err != nil {
			s.record(err)
			return fmt.Errorf("submit bark batch: %w", err)
		}
	}

	s.mu.Lock()
	s.status.TotalSubmissions++
	s.status.LastSubmitTime = time.Now()
	s.status.PendingTxCount = 0
	s.mu.Unlock()

	return nil
}

// submitBatchWithRetry submits one bark batch with retry logic
func (s *GRPCSubmitter) submitBatchWithRetry(ctx context.Context, batch []BarkTarget) error {
	clientTargets := make([]grpcclient.BarkTarget, len(batch))
	for i, target := range batch {
		clientTargets[i] = grpcclient.BarkTarget{
			Owner:      target.Owner,
			PositionID: target.PositionID,
		}
	}

	var lastErr error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		result := s.client.BatchBark(ctx, clientTargets)
		if result.Error == nil {
			return nil
		}
		lastErr = result.Error
		log.Printf("Bark batch attempt %d failed: %v", attempt+1, result.Error)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
	return fmt.Errorf("all retry attempts failed: %w", lastErr)
}

// SubmitBid bids in an open auction
func (s *GRPCSubmitter) SubmitBid(ctx context.Context, auctionID uint64, maxUnderlying, maxPrice math.LegacyDec) error {
	result := s.client.PurchaseUnderlying(ctx, auctionID, maxUnderlying, maxPrice)
	s.record(result.Error)
	if result.Error != nil {
		return fmt.Errorf("submit bid: %w", result.Error)
	}
	return nil
}

// record updates the submission counters
func (s *GRPCSubmitter) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.status.FailedSubmissions++
		s.status.LastError = err.Error()
		return
	}
	s.status.TotalSubmissions++
	s.status.LastSubmitTime = time.Now()
}

// GetStatus returns the submitter status
func (s *GRPCSubmitter) GetStatus() SubmitterStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Close closes the underlying gRPC client
func (s *GRPCSubmitter) Close() error {
	return s.client.Close()
}

// SubmitterFactory creates submitters based on configuration
type SubmitterFactory struct{}

// NewSubmitterFactory creates a new submitter factory
func NewSubmitterFactory() *SubmitterFactory {
	return &SubmitterFactory{}
}

// Create creates a new submitter based on the type. Falls back to the mock
// submitter when the gRPC submitter cannot be constructed.
func (f *SubmitterFactory) Create(submitterType string, config *GRPCSubmitterConfig) TxSubmitter {
	switch submitterType {
	case "grpc":
		submitter, err := NewGRPCSubmitter(config)
		if err != nil {
			log.Printf("Failed to create gRPC submitter, using mock: %v", err)
			return NewMockSubmitter()
		}
		return submitter
	case "mock":
		return NewMockSubmitter()
	default:
		return NewMockSubmitter()
	}
}
