package market

import (
	"cosmossdk.io/math"

	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
)

type pricedBid struct {
	bid   *ledger.Bid
	price math.LegacyDec
}

// ValidBids drops records without a bid payload, without a provider or with
// a price that is not a decimal number. It returns the usable bids and the
// number of records dropped.
func ValidBids(records []ledger.BidRecord) ([]*ledger.Bid, int) {
	var (
		bids    []*ledger.Bid
		dropped int
	)
	for _, record := range records {
		if record.Bid == nil || record.Bid.Provider() == "" {
			dropped++
			continue
		}
		if _, err := math.LegacyNewDecFromStr(record.Bid.Price.Amount); err != nil {
			dropped++
			continue
		}
		bids = append(bids, record.Bid)
	}
	return bids, dropped
}

// SelectBid picks the cheapest bid of a preferred provider, or the cheapest
// bid overall when no preferred provider bid. Prices compare as decimals.
// Ties keep the earlier bid. It returns nil when bids is empty.
func SelectBid(bids []*ledger.Bid, preferred []string) *ledger.Bid {
	allowed := make(map[string]struct{}, len(preferred))
	for _, p := range preferred {
		allowed[p] = struct{}{}
	}

	var cheapest, cheapestPreferred *pricedBid
	for _, bid := range bids {
		price, err := math.LegacyNewDecFromStr(bid.Price.Amount)
		if err != nil {
			continue
		}
		candidate := &pricedBid{bid: bid, price: price}
		if cheapest == nil || price.LT(cheapest.price) {
			cheapest = candidate
		}
		if _, ok := allowed[bid.Provider()]; ok {
			if cheapestPreferred == nil || price.LT(cheapestPreferred.price) {
				cheapestPreferred = candidate
			}
		}
	}

	switch {
	case cheapestPreferred != nil:
		return cheapestPreferred.bid
	case cheapest != nil:
		return cheapest.bid
	default:
		return nil
	}
}
