package keeper

import (
	"sync"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/huandu/skiplist"

	custodiantypes "github.com/openalpha/tranche-protocol/x/custodian/types"
)

// mintPriceDesc orders the index by mint price, highest first. For a fixed
// live price the liquidation cutoff is monotonic in mint price, so the scan
// walks from the top and stops at the first safe bucket.
type mintPriceDesc struct{}

func (c mintPriceDesc) Compare(lhs, rhs interface{}) int {
	l := lhs.(math.LegacyDec)
	r := rhs.(math.LegacyDec)
	if l.GT(r) {
		return -1
	}
	if l.LT(r) {
		return 1
	}
	return 0
}

func (c mintPriceDesc) CalcScore(key interface{}) float64 {
	dec := key.(math.LegacyDec)
	f, _ := dec.Float64()
	return -f
}

// riskIndex is an in-memory acceleration structure over the position arena:
// one skip list per tier keyed by mint price, each entry holding the set of
// position IDs minted at that price. The store remains the source of truth;
// the index is rebuilt lazily from it.
type riskIndex struct {
	mu    sync.RWMutex
	tiers map[uint8]*skiplist.SkipList
	built bool
}

func newRiskIndex() *riskIndex {
	return &riskIndex{
		tiers: map[uint8]*skiplist.SkipList{
			custodiantypes.TierConservative: skiplist.New(mintPriceDesc{}),
			custodiantypes.TierModerate:     skiplist.New(mintPriceDesc{}),
			custodiantypes.TierAggressive:   skiplist.New(mintPriceDesc{}),
		},
	}
}

func (ri *riskIndex) insert(position *custodiantypes.Position) {
	list := ri.tiers[position.Tier]
	if list == nil {
		return
	}
	if elem := list.Get(position.MintPrice); elem != nil {
		ids := elem.Value.(map[uint64]struct{})
		ids[position.PositionID] = struct{}{}
		return
	}
	list.Set(position.MintPrice, map[uint64]struct{}{position.PositionID: {}})
}

func (ri *riskIndex) remove(position *custodiantypes.Position) {
	list := ri.tiers[position.Tier]
	if list == nil {
		return
	}
	elem := list.Get(position.MintPrice)
	if elem == nil {
		return
	}
	ids := elem.Value.(map[uint64]struct{})
	delete(ids, position.PositionID)
	if len(ids) == 0 {
		list.Remove(position.MintPrice)
	}
}

// RebuildRiskIndex reloads the index from the position arena
func (k *Keeper) RebuildRiskIndex(ctx sdk.Context) {
	k.riskIndex.mu.Lock()
	defer k.riskIndex.mu.Unlock()

	for tier := range k.riskIndex.tiers {
		k.riskIndex.tiers[tier] = skiplist.New(mintPriceDesc{})
	}
	for _, position := range k.custodianKeeper.GetAllPositions(ctx) {
		if position.IsInert() || position.Frozen {
			continue
		}
		k.riskIndex.insert(position)
	}
	k.riskIndex.built = true
}

// TouchPosition keeps the index aligned with a position after a mutation
func (k *Keeper) TouchPosition(position *custodiantypes.Position) {
	k.riskIndex.mu.Lock()
	defer k.riskIndex.mu.Unlock()
	if !k.riskIndex.built {
		return
	}
	k.riskIndex.remove(position)
	if !position.IsInert() && !position.Frozen {
		k.riskIndex.insert(position)
	}
}

// liquidatableCutoff returns the mint price above which a position of the
// given tier is at or below the liquidation threshold at the live price,
// ignoring accrued interest. Candidates above the cutoff still get a full
// NetNav check before any action.
//
// gross = (d*Pt - P0) / (r*P0) < t  <=>  P0 > d*Pt / (1 + r*t)
func liquidatableCutoff(tier uint8, livePrice, threshold math.LegacyDec) math.LegacyDec {
	divisor := custodiantypes.TierDivisor(tier)
	ratio := custodiantypes.TierLeverageRatio(tier)
	denom := math.LegacyOneDec().Add(ratio.Mul(threshold))
	return divisor.Mul(livePrice).Quo(denom)
}

// CandidatePositions walks each tier's index from the highest mint price
// down to the liquidation cutoff and returns the position IDs found.
func (k *Keeper) CandidatePositions(ctx sdk.Context, livePrice math.LegacyDec) []uint64 {
	k.riskIndex.mu.RLock()
	defer k.riskIndex.mu.RUnlock()

	params := k.GetParams(ctx)
	var candidates []uint64

	for tier, list := range k.riskIndex.tiers {
		cutoff := liquidatableCutoff(tier, livePrice, params.LiquidationThreshold)
		for elem := list.Front(); elem != nil; elem = elem.Next() {
			mintPrice := elem.Key().(math.LegacyDec)
			if mintPrice.LTE(cutoff) {
				break
			}
			for id := range elem.Value.(map[uint64]struct{}) {
				candidates = append(candidates, id)
			}
		}
	}
	return candidates
}
