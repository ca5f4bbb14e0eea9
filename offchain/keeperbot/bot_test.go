package keeperbot

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/math"

	custodiantypes "github.com/openalpha/tranche-protocol/x/custodian/types"
)

func newTestPosition(id uint64, tier uint8, mintPrice string, now int64) *custodiantypes.Position {
	position := custodiantypes.NewPosition(id, "ltc1testowner", tier, math.LegacyMustNewDecFromStr(mintPrice), now)
	position.LBalance = math.LegacyNewDec(1000)
	position.Collateral = math.LegacyNewDec(100)
	return position
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestScanQueuesBarkBelowThreshold(t *testing.T) {
	bot := NewKeeperBot(nil, NewMockSubmitter())
	now := time.Now().Unix()

	// Aggressive at mint price 100: net NAV hits 0.3 at price 65
	bot.positions.Set(newTestPosition(1, custodiantypes.TierAggressive, "100", now))

	bot.scanPositions(math.LegacyNewDec(80), time.Now())
	if got := bot.barkBuffer.Len(); got != 0 {
		t.Fatalf("expected no barks at price 80, got %d", got)
	}

	bot.scanPositions(math.LegacyNewDec(60), time.Now())
	targets := bot.barkBuffer.Peek()
	if len(targets) != 1 {
		t.Fatalf("expected 1 bark at price 60, got %d", len(targets))
	}
	if targets[0].PositionID != 1 || targets[0].Owner != "ltc1testowner" {
		t.Fatalf("unexpected target: %+v", targets[0])
	}
}

func TestScanDoesNotRequeueFrozenPosition(t *testing.T) {
	bot := NewKeeperBot(nil, NewMockSubmitter())
	now := time.Now().Unix()
	bot.positions.Set(newTestPosition(1, custodiantypes.TierAggressive, "100", now))

	bot.scanPositions(math.LegacyNewDec(60), time.Now())
	bot.scanPositions(math.LegacyNewDec(55), time.Now())

	if got := bot.barkBuffer.Len(); got != 1 {
		t.Fatalf("expected a single queued bark, got %d", got)
	}
	position, _ := bot.positions.Get(1)
	if !position.Frozen {
		t.Fatal("expected position to be marked frozen after queueing")
	}
}

func TestConservativeSurvivesDeeperDrawdown(t *testing.T) {
	bot := NewKeeperBot(nil, NewMockSubmitter())
	now := time.Now().Unix()
	bot.positions.Set(newTestPosition(1, custodiantypes.TierConservative, "100", now))
	bot.positions.Set(newTestPosition(2, custodiantypes.TierAggressive, "100", now))

	// Conservative NAV is (9*Pt - P0)/(8*P0): still 0.8375 at price 60
	bot.scanPositions(math.LegacyNewDec(60), time.Now())
	targets := bot.barkBuffer.Peek()
	if len(targets) != 1 {
		t.Fatalf("expected only the aggressive position barked, got %d targets", len(targets))
	}
	if targets[0].PositionID != 2 {
		t.Fatalf("expected position 2 barked, got %d", targets[0].PositionID)
	}
}

func TestBatchLoopSubmitsAndRetries(t *testing.T) {
	submitter := NewMockSubmitter()
	config := DefaultConfig()
	config.BatchInterval = 20 * time.Millisecond
	config.PostPrices = false
	bot := NewKeeperBot(config, submitter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := bot.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer bot.Stop()

	submitter.SetSimulateFailure(true)
	bot.barkBuffer.Add(BarkTarget{Owner: "ltc1testowner", PositionID: 1})

	// The failed submission must land back in the buffer
	waitFor(t, time.Second, func() bool {
		return submitter.GetStatus().FailedSubmissions > 0
	})
	waitFor(t, time.Second, func() bool {
		return bot.barkBuffer.Len() == 1
	})

	submitter.SetSimulateFailure(false)
	waitFor(t, time.Second, func() bool {
		return len(submitter.GetSubmittedBarks()) == 1
	})
	if got := bot.barkBuffer.Len(); got != 0 {
		t.Fatalf("expected empty buffer after successful submit, got %d", got)
	}
}

func TestPriceUpdateForwardsToChain(t *testing.T) {
	submitter := NewMockSubmitter()
	bot := NewKeeperBot(nil, submitter)

	if err := bot.handlePriceUpdate(context.Background(), math.LegacyNewDec(120), time.Now()); err != nil {
		t.Fatalf("handlePriceUpdate: %v", err)
	}

	prices := submitter.GetSubmittedPrices()
	if len(prices) != 1 || !prices[0].Equal(math.LegacyNewDec(120)) {
		t.Fatalf("expected one posted price of 120, got %v", prices)
	}

	last, _ := bot.GetLastPrice()
	if !last.Equal(math.LegacyNewDec(120)) {
		t.Fatalf("expected last price 120, got %s", last)
	}
}

func TestRejectsNonPositivePrice(t *testing.T) {
	bot := NewKeeperBot(nil, NewMockSubmitter())
	if err := bot.handlePriceUpdate(context.Background(), math.LegacyZeroDec(), time.Now()); err == nil {
		t.Fatal("expected error for zero price")
	}
	if err := bot.handlePriceUpdate(context.Background(), math.LegacyNewDec(-1), time.Now()); err == nil {
		t.Fatal("expected error for negative price")
	}
}

func TestAuctionBidOnlyBelowDiscountedOracle(t *testing.T) {
	submitter := NewMockSubmitter()
	config := DefaultConfig()
	config.PostPrices = false
	bot := NewKeeperBot(config, submitter)

	auction := &AuctionInfo{
		AuctionID:           1,
		PositionID:          5,
		ValueToBeBurned:     math.LegacyNewDec(1000),
		UnderlyingRemaining: math.LegacyNewDec(50),
		CurrentPrice:        math.LegacyNewDec(99),
		StartingPrice:       math.LegacyNewDec(110),
		Active:              true,
	}
	bot.auctions.Set(auction)

	// 99 > 100 * 0.98, no bid yet
	bot.evaluateAuctions(context.Background(), math.LegacyNewDec(100))
	if got := len(submitter.GetSubmittedBids()); got != 0 {
		t.Fatalf("expected no bids above the ceiling, got %d", got)
	}

	auction.CurrentPrice = math.LegacyNewDec(95)
	bot.auctions.Set(auction)
	bot.evaluateAuctions(context.Background(), math.LegacyNewDec(100))

	bids := submitter.GetSubmittedBids()
	if len(bids) != 1 {
		t.Fatalf("expected one bid, got %d", len(bids))
	}
	if bids[0].AuctionID != 1 || !bids[0].MaxPrice.Equal(math.LegacyNewDec(95)) {
		t.Fatalf("unexpected bid: %+v", bids[0])
	}
	if !bids[0].MaxUnderlying.Equal(math.LegacyNewDec(50)) {
		t.Fatalf("expected bid for full remaining underlying, got %s", bids[0].MaxUnderlying)
	}
}

func TestInertPositionDropsFromCache(t *testing.T) {
	bot := NewKeeperBot(nil, NewMockSubmitter())
	now := time.Now().Unix()

	position := newTestPosition(1, custodiantypes.TierModerate, "100", now)
	if err := bot.handlePositionUpdate(position); err != nil {
		t.Fatalf("handlePositionUpdate: %v", err)
	}
	if bot.positions.Len() != 1 {
		t.Fatal("expected position tracked")
	}

	position.LBalance = math.LegacyZeroDec()
	if err := bot.handlePositionUpdate(position); err != nil {
		t.Fatalf("handlePositionUpdate: %v", err)
	}
	if bot.positions.Len() != 0 {
		t.Fatal("expected inert position evicted")
	}
}

func TestBarkBufferFlushBatch(t *testing.T) {
	buffer := NewBarkBuffer(2)
	for i := uint64(1); i <= 5; i++ {
		buffer.Add(BarkTarget{Owner: "ltc1testowner", PositionID: i})
	}

	if !buffer.IsFull() {
		t.Fatal("expected full buffer")
	}

	batch := buffer.FlushBatch()
	if len(batch) != 2 {
		t.Fatalf("expected batch of 2, got %d", len(batch))
	}
	if buffer.Len() != 3 {
		t.Fatalf("expected 3 remaining, got %d", buffer.Len())
	}

	all := buffer.Flush()
	if len(all) != 3 || buffer.Len() != 0 {
		t.Fatalf("expected full drain, got %d remaining", buffer.Len())
	}
}
