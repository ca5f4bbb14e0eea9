package keeper

import (
	"sync"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/btree"

	"github.com/openalpha/tranche-protocol/x/auction/types"
)

const staleIndexDegree = 8

// staleItem orders open auctions by the time they go stale.
// Implements btree.Item interface
type staleItem struct {
	staleAt   int64
	auctionID uint64
}

// Less implements btree.Item interface - ascending by stale time, then ID
func (a *staleItem) Less(b btree.Item) bool {
	other := b.(*staleItem)
	if a.staleAt != other.staleAt {
		return a.staleAt < other.staleAt
	}
	return a.auctionID < other.auctionID
}

// staleIndex is an in-memory btree of open auctions keyed by the block time
// at which each needs a reset. Rebuilt from the store after a restart.
type staleIndex struct {
	mu    sync.RWMutex
	tree  *btree.BTree
	byID  map[uint64]*staleItem
	built bool
}

func newStaleIndex() *staleIndex {
	return &staleIndex{
		tree: btree.New(staleIndexDegree),
		byID: make(map[uint64]*staleItem),
	}
}

// staleTime returns the block time at which an auction needs a reset: the
// earlier of the reset deadline and the moment the decayed price crosses the
// drop threshold. Both bounds are deterministic in start time.
func staleTime(auction *types.Auction, params types.Params) int64 {
	// The deadline check is strict, so the entry fires one second past it
	deadline := auction.ResetDeadline(params.ResetTime) + 1

	// price(t) < threshold * startingPrice once t > (1 - threshold) * tau
	dropElapsed := math.LegacyOneDec().Sub(params.PriceDropThreshold).
		MulInt64(params.Tau).TruncateInt64() + 1
	dropAt := auction.StartTime + dropElapsed

	if dropAt < deadline {
		return dropAt
	}
	return deadline
}

func (idx *staleIndex) insert(auction *types.Auction, params types.Params) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.byID[auction.AuctionID]; ok {
		idx.tree.Delete(existing)
	}
	item := &staleItem{staleAt: staleTime(auction, params), auctionID: auction.AuctionID}
	idx.tree.ReplaceOrInsert(item)
	idx.byID[auction.AuctionID] = item
}

func (idx *staleIndex) remove(auctionID uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.byID[auctionID]; ok {
		idx.tree.Delete(existing)
		delete(idx.byID, auctionID)
	}
}

// staleBefore returns the IDs of auctions whose stale time has passed
func (idx *staleIndex) staleBefore(now int64) []uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var ids []uint64
	pivot := &staleItem{staleAt: now + 1}
	idx.tree.AscendLessThan(pivot, func(item btree.Item) bool {
		ids = append(ids, item.(*staleItem).auctionID)
		return true
	})
	return ids
}

// RebuildStaleIndex repopulates the in-memory index from the store
func (k *Keeper) RebuildStaleIndex(ctx sdk.Context) {
	params := k.GetParams(ctx)

	k.staleIndex.mu.Lock()
	k.staleIndex.tree = btree.New(staleIndexDegree)
	k.staleIndex.byID = make(map[uint64]*staleItem)
	k.staleIndex.built = true
	k.staleIndex.mu.Unlock()

	count := 0
	for _, auction := range k.GetActiveAuctions(ctx) {
		k.staleIndex.insert(auction, params)
		count++
	}

	k.logger.Debug("stale index rebuilt", "open_auctions", count)
}
