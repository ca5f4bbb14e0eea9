// Package keeperbot implements an off-chain keeper that mirrors the chain's
// risk classification. It ingests oracle prices and position events, rescans
// its position cache on every price move, and batches bark transactions for
// anything that drops below the liquidation threshold. It also watches open
// auctions and bids once the decaying price falls under the live oracle price.
package keeperbot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"cosmossdk.io/math"

	custodiantypes "github.com/openalpha/tranche-protocol/x/custodian/types"
	liquidationtypes "github.com/openalpha/tranche-protocol/x/liquidation/types"
)

// Config holds the keeper bot configuration
type Config struct {
	BatchSize     int            // Maximum barks per batch submission
	BatchInterval time.Duration  // Time interval for batch submission
	WebSocketURL  string         // WebSocket URL for event listening
	ChainRPCURL   string         // Chain RPC URL for submission
	BidDiscount   math.LegacyDec // Required discount vs oracle price before bidding
	PostPrices    bool           // Forward ingested prices to the chain
}

// DefaultConfig returns the default keeper bot configuration
func DefaultConfig() *Config {
	return &Config{
		BatchSize:     100,
		BatchInterval: 500 * time.Millisecond,
		WebSocketURL:  "ws://localhost:26657/websocket",
		ChainRPCURL:   "http://localhost:26657",
		BidDiscount:   math.LegacyNewDecWithPrec(2, 2), // 2%
		PostPrices:    true,
	}
}

// KeeperBot is the main off-chain liquidation keeper
type KeeperBot struct {
	config     *Config
	positions  *PositionCache
	auctions   *AuctionCache
	barkBuffer *BarkBuffer
	submitter  TxSubmitter

	// Chain parameters mirrored locally so NAV math matches the chain
	custodianParams custodiantypes.Params
	riskParams      liquidationtypes.Params

	// Last ingested oracle price
	lastPrice math.LegacyDec
	priceTime time.Time
	mu        sync.RWMutex

	// Event channel for simulated WebSocket events
	eventCh chan Event

	// Control channels
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Event represents an incoming event from the chain
type Event struct {
	Type      EventType
	Price     math.LegacyDec
	Position  *custodiantypes.Position
	Auction   *AuctionInfo
	ID        uint64
	Timestamp time.Time
}

// EventType represents the type of chain event
type EventType int

const (
	EventTypePriceUpdate EventType = iota
	EventTypePositionUpdate
	EventTypePositionClosed
	EventTypeAuctionUpdate
	EventTypeAuctionClosed
)

func (e EventType) String() string {
	switch e {
	case EventTypePriceUpdate:
		return "price_update"
	case EventTypePositionUpdate:
		return "position_update"
	case EventTypePositionClosed:
		return "position_closed"
	case EventTypeAuctionUpdate:
		return "auction_update"
	case EventTypeAuctionClosed:
		return "auction_closed"
	default:
		return "unknown"
	}
}

// NewKeeperBot creates a new keeper bot instance
func NewKeeperBot(config *Config, submitter TxSubmitter) *KeeperBot {
	if config == nil {
		config = DefaultConfig()
	}
	if submitter == nil {
		submitter = NewMockSubmitter()
	}

	return &KeeperBot{
		config:          config,
		positions:       NewPositionCache(),
		auctions:        NewAuctionCache(),
		barkBuffer:      NewBarkBuffer(config.BatchSize),
		submitter:       submitter,
		custodianParams: custodiantypes.DefaultParams(),
		riskParams:      liquidationtypes.DefaultParams(),
		eventCh:         make(chan Event, 1000),
		stopCh:          make(chan struct{}),
	}
}

// SetParams overrides the mirrored chain parameters
func (b *KeeperBot) SetParams(custodianParams custodiantypes.Params, riskParams liquidationtypes.Params) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.custodianParams = custodianParams
	b.riskParams = riskParams
}

// Start starts the keeper bot
func (b *KeeperBot) Start(ctx context.Context) error {
	log.Println("Starting keeper bot...")

	// Start event listener
	b.wg.Add(1)
	go b.eventLoop(ctx)

	// Start batch submission loop
	b.wg.Add(1)
	go b.batchLoop(ctx)

	log.Println("Keeper bot started")
	return nil
}

// Stop stops the keeper bot
func (b *KeeperBot) Stop() error {
	log.Println("Stopping keeper bot...")
	close(b.stopCh)
	b.wg.Wait()
	log.Println("Keeper bot stopped")
	return nil
}

// eventLoop processes incoming events
func (b *KeeperBot) eventLoop(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case event := <-b.eventCh:
			if err := b.handleEvent(ctx, event); err != nil {
				log.Printf("Error handling event: %v", err)
			}
		}
	}
}

// batchLoop periodically submits pending barks to the chain
func (b *KeeperBot) batchLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.BatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Submit any remaining barks before stopping
			b.submitPendingBarks(ctx)
			return
		case <-b.stopCh:
			b.submitPendingBarks(ctx)
			return
		case <-ticker.C:
			b.submitPendingBarks(ctx)
		}
	}
}

// submitPendingBarks submits pending barks to the chain
func (b *KeeperBot) submitPendingBarks(ctx context.Context) {
	targets := b.barkBuffer.Flush()
	if len(targets) == 0 {
		return
	}

	log.Printf("Submitting %d barks to chain...", len(targets))
	if err := b.submitter.SubmitBarks(ctx, targets); err != nil {
		log.Printf("Error submitting barks: %v", err)
		// Re-add targets to buffer for retry
		b.barkBuffer.AddBatch(targets)
	}
}

// handleEvent handles an incoming event
func (b *KeeperBot) handleEvent(ctx context.Context, event Event) error {
	switch event.Type {
	case EventTypePriceUpdate:
		return b.handlePriceUpdate(ctx, event.Price, event.Timestamp)
	case EventTypePositionUpdate:
		return b.handlePositionUpdate(event.Position)
	case EventTypePositionClosed:
		b.positions.Delete(event.ID)
		return nil
	case EventTypeAuctionUpdate:
		return b.handleAuctionUpdate(ctx, event.Auction)
	case EventTypeAuctionClosed:
		b.auctions.Delete(event.ID)
		return nil
	default:
		return fmt.Errorf("unknown event type: %v", event.Type)
	}
}

// handlePriceUpdate records the new price, forwards it to the chain and
// rescans the position cache
func (b *KeeperBot) handlePriceUpdate(ctx context.Context, price math.LegacyDec, timestamp time.Time) error {
	if price.IsNil() || !price.IsPositive() {
		return fmt.Errorf("invalid price: %s", price)
	}

	b.mu.Lock()
	b.lastPrice = price
	b.priceTime = timestamp
	b.mu.Unlock()

	if b.config.PostPrices {
		if err := b.submitter.SubmitPrice(ctx, price); err != nil {
			log.Printf("Error posting price: %v", err)
		}
	}

	b.scanPositions(price, timestamp)
	b.evaluateAuctions(ctx, price)
	return nil
}

// handlePositionUpdate refreshes one position in the cache
func (b *KeeperBot) handlePositionUpdate(position *custodiantypes.Position) error {
	if position == nil {
		return fmt.Errorf("nil position in event")
	}
	if position.IsInert() {
		b.positions.Delete(position.PositionID)
		return nil
	}
	b.positions.Set(position)
	return nil
}

// handleAuctionUpdate refreshes one auction and evaluates it against the
// current oracle price
func (b *KeeperBot) handleAuctionUpdate(ctx context.Context, auction *AuctionInfo) error {
	if auction == nil {
		return fmt.Errorf("nil auction in event")
	}
	b.auctions.Set(auction)

	b.mu.RLock()
	price := b.lastPrice
	b.mu.RUnlock()
	if !price.IsNil() && price.IsPositive() {
		b.evaluateAuction(ctx, auction, price)
	}
	return nil
}

// scanPositions recomputes net NAV for every scannable position and queues
// barks for anything below the liquidation threshold. Queued positions are
// marked frozen locally so one sweep cannot enqueue them twice; the chain's
// position events are the source of truth for unfreezing.
func (b *KeeperBot) scanPositions(price math.LegacyDec, timestamp time.Time) {
	b.mu.RLock()
	riskParams := b.riskParams
	interestRate := b.custodianParams.InterestRate
	b.mu.RUnlock()

	now := timestamp.Unix()
	for _, position := range b.positions.GetScanTargets() {
		netNav := b.netNav(position, price, interestRate, now)
		if netNav.GTE(riskParams.LiquidationThreshold) {
			continue
		}

		log.Printf("Position %d underwater: net NAV %s < %s", position.PositionID, netNav.String(), riskParams.LiquidationThreshold.String())
		position.Frozen = true
		b.positions.Set(position)
		b.barkBuffer.Add(BarkTarget{
			Owner:      position.Owner,
			PositionID: position.PositionID,
		})
	}
}

// netNav computes net NAV per lever unit the same way the chain does:
// gross NAV from the tier formula minus interest accrued since the last
// on-chain accrual.
func (b *KeeperBot) netNav(position *custodiantypes.Position, price, interestRate math.LegacyDec, now int64) math.LegacyDec {
	gross := custodiantypes.GrossNav(position.Tier, position.MintPrice, price)
	interest := custodiantypes.AccruedInterest(interestRate, position.LastAccrualTime, now)
	return gross.Sub(interest)
}

// evaluateAuctions checks every open auction against the oracle price
func (b *KeeperBot) evaluateAuctions(ctx context.Context, price math.LegacyDec) {
	for _, auction := range b.auctions.GetActive() {
		b.evaluateAuction(ctx, auction, price)
	}
}

// evaluateAuction bids when the decaying auction price sits far enough under
// the oracle price to cover gas and slippage
func (b *KeeperBot) evaluateAuction(ctx context.Context, auction *AuctionInfo, price math.LegacyDec) {
	if !auction.Active || auction.CurrentPrice.IsNil() || !auction.CurrentPrice.IsPositive() {
		return
	}
	if auction.UnderlyingRemaining.IsNil() || !auction.UnderlyingRemaining.IsPositive() {
		return
	}

	bidCeiling := price.Mul(math.LegacyOneDec().Sub(b.config.BidDiscount))
	if auction.CurrentPrice.GT(bidCeiling) {
		return
	}

	log.Printf("Bidding on auction %d: current %s <= ceiling %s", auction.AuctionID, auction.CurrentPrice.String(), bidCeiling.String())
	if err := b.submitter.SubmitBid(ctx, auction.AuctionID, auction.UnderlyingRemaining, auction.CurrentPrice); err != nil {
		log.Printf("Error bidding on auction %d: %v", auction.AuctionID, err)
	}
}

// SubmitPriceUpdate feeds a price into the bot (simulated WebSocket)
func (b *KeeperBot) SubmitPriceUpdate(price math.LegacyDec) {
	b.eventCh <- Event{
		Type:      EventTypePriceUpdate,
		Price:     price,
		Timestamp: time.Now(),
	}
}

// TrackPosition feeds a position event into the bot
func (b *KeeperBot) TrackPosition(position *custodiantypes.Position) {
	b.eventCh <- Event{
		Type:      EventTypePositionUpdate,
		Position:  position,
		Timestamp: time.Now(),
	}
}

// ClosePosition removes a position from tracking
func (b *KeeperBot) ClosePosition(positionID uint64) {
	b.eventCh <- Event{
		Type:      EventTypePositionClosed,
		ID:        positionID,
		Timestamp: time.Now(),
	}
}

// TrackAuction feeds an auction event into the bot
func (b *KeeperBot) TrackAuction(auction *AuctionInfo) {
	b.eventCh <- Event{
		Type:      EventTypeAuctionUpdate,
		Auction:   auction,
		Timestamp: time.Now(),
	}
}

// CloseAuction removes an auction from tracking
func (b *KeeperBot) CloseAuction(auctionID uint64) {
	b.eventCh <- Event{
		Type:      EventTypeAuctionClosed,
		ID:        auctionID,
		Timestamp: time.Now(),
	}
}

// GetPosition returns a tracked position by ID
func (b *KeeperBot) GetPosition(positionID uint64) *custodiantypes.Position {
	position, _ := b.positions.Get(positionID)
	return position
}

// GetLastPrice returns the last ingested oracle price
func (b *KeeperBot) GetLastPrice() (math.LegacyDec, time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastPrice, b.priceTime
}

// Stats returns keeper bot statistics
type Stats struct {
	PositionCount int
	AuctionCount  int
	PendingBarks  int
	LastPrice     string
}

// GetStats returns current keeper bot statistics
func (b *KeeperBot) GetStats() Stats {
	b.mu.RLock()
	lastPrice := "0"
	if !b.lastPrice.IsNil() {
		lastPrice = b.lastPrice.String()
	}
	b.mu.RUnlock()

	return Stats{
		PositionCount: b.positions.Len(),
		AuctionCount:  b.auctions.Len(),
		PendingBarks:  b.barkBuffer.Len(),
		LastPrice:     lastPrice,
	}
}
