package keeperbot

import (
	"sync"

	"cosmossdk.io/math"

	custodiantypes "github.com/openalpha/tranche-protocol/x/custodian/types"
)

// PositionCache is a thread-safe cache of tracked positions
type PositionCache struct {
	positions map[uint64]*custodiantypes.Position
	mu        sync.RWMutex
}

// NewPositionCache creates a new position cache
func NewPositionCache() *PositionCache {
	return &PositionCache{
		positions: make(map[uint64]*custodiantypes.Position),
	}
}

// Get retrieves a position from the cache
func (c *PositionCache) Get(positionID uint64) (*custodiantypes.Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	position, exists := c.positions[positionID]
	return position, exists
}

// Set stores a position in the cache
func (c *PositionCache) Set(position *custodiantypes.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions[position.PositionID] = position
}

// Delete removes a position from the cache
func (c *PositionCache) Delete(positionID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.positions, positionID)
}

// Len returns the number of positions in the cache
func (c *PositionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.positions)
}

// Clear removes all positions from the cache
func (c *PositionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions = make(map[uint64]*custodiantypes.Position)
}

// GetAll returns all positions in the cache
func (c *PositionCache) GetAll() []*custodiantypes.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	positions := make([]*custodiantypes.Position, 0, len(c.positions))
	for _, position := range c.positions {
		positions = append(positions, position)
	}
	return positions
}

// GetByOwner returns all positions for a specific owner
func (c *PositionCache) GetByOwner(owner string) []*custodiantypes.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	positions := make([]*custodiantypes.Position, 0)
	for _, position := range c.positions {
		if position.Owner == owner {
			positions = append(positions, position)
		}
	}
	return positions
}

// GetScanTargets returns positions that carry lever claims and are not
// already frozen. Frozen positions are in the auction pipeline and cannot
// be barked again.
func (c *PositionCache) GetScanTargets() []*custodiantypes.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	positions := make([]*custodiantypes.Position, 0)
	for _, position := range c.positions {
		if !position.IsInert() && !position.Frozen {
			positions = append(positions, position)
		}
	}
	return positions
}

// BarkTarget identifies one position queued for liquidation
type BarkTarget struct {
	Owner      string
	PositionID uint64
}

// BarkBuffer is a thread-safe buffer of bark targets pending submission
type BarkBuffer struct {
	targets []BarkTarget
	maxSize int
	mu      sync.Mutex
}

// NewBarkBuffer creates a new bark buffer with the given max size
func NewBarkBuffer(maxSize int) *BarkBuffer {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &BarkBuffer{
		targets: make([]BarkTarget, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add adds a target to the buffer
func (b *BarkBuffer) Add(target BarkTarget) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targets = append(b.targets, target)
}

// AddBatch adds multiple targets to the buffer
func (b *BarkBuffer) AddBatch(targets []BarkTarget) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targets = append(b.targets, targets...)
}

// Flush returns all targets and clears the buffer
func (b *BarkBuffer) Flush() []BarkTarget {
	b.mu.Lock()
	defer b.mu.Unlock()
	targets := b.targets
	b.targets = make([]BarkTarget, 0, b.maxSize)
	return targets
}

// FlushBatch returns up to maxSize targets and removes them from the buffer
func (b *BarkBuffer) FlushBatch() []BarkTarget {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.targets) == 0 {
		return nil
	}

	count := b.maxSize
	if len(b.targets) < count {
		count = len(b.targets)
	}

	batch := b.targets[:count]
	b.targets = b.targets[count:]
	return batch
}

// Len returns the number of targets in the buffer
func (b *BarkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.targets)
}

// IsFull returns true if the buffer is at or above max size
func (b *BarkBuffer) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.targets) >= b.maxSize
}

// Clear removes all targets from the buffer
func (b *BarkBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targets = make([]BarkTarget, 0, b.maxSize)
}

// Peek returns the targets without removing them (for inspection)
func (b *BarkBuffer) Peek() []BarkTarget {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]BarkTarget, len(b.targets))
	copy(result, b.targets)
	return result
}

// AuctionInfo holds the cached state of one open auction
type AuctionInfo struct {
	AuctionID           uint64
	PositionID          uint64
	ValueToBeBurned     math.LegacyDec
	UnderlyingRemaining math.LegacyDec
	CurrentPrice        math.LegacyDec
	StartingPrice       math.LegacyDec
	Active              bool
}

// AuctionCache is a thread-safe cache of open auctions
type AuctionCache struct {
	auctions map[uint64]*AuctionInfo
	mu       sync.RWMutex
}

// NewAuctionCache creates a new auction cache
func NewAuctionCache() *AuctionCache {
	return &AuctionCache{
		auctions: make(map[uint64]*AuctionInfo),
	}
}

// Get retrieves auction info from the cache
func (c *AuctionCache) Get(auctionID uint64) (*AuctionInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, exists := c.auctions[auctionID]
	return info, exists
}

// Set stores auction info in the cache
func (c *AuctionCache) Set(info *AuctionInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auctions[info.AuctionID] = info
}

// Delete removes auction info from the cache
func (c *AuctionCache) Delete(auctionID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.auctions, auctionID)
}

// GetActive returns all open auctions in the cache
func (c *AuctionCache) GetActive() []*AuctionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	auctions := make([]*AuctionInfo, 0, len(c.auctions))
	for _, info := range c.auctions {
		if info.Active {
			auctions = append(auctions, info)
		}
	}
	return auctions
}

// Len returns the number of auctions in the cache
func (c *AuctionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.auctions)
}
