package pipeline

import (
	"sort"

	"github.com/sbj175/trade-journal/internal/models"
)

type edge struct {
	a, b string
}

// BuildOrderGraph is the pure core of chain derivation: edge lists in,
// connected components of order ids out.
func BuildOrderGraph(lotEdges, derivedEdges []edge) map[string][]string {
	uf := newUnionFind()
	for _, e := range append(lotEdges, derivedEdges...) {
		uf.add(e.a)
		uf.add(e.b)
		uf.union(e.a, e.b)
	}
	return uf.components()
}

// DeriveChains rebuilds chains from this run's lots and closings. Nodes are
// opening order ids; every lot closing links its lot's opening order to the
// closing order, and every derived lot links back to its parent's chain.
// Orders touching no edge become singleton chains.
func DeriveChains(orders []*models.Order, lots []*models.Lot, closings []*models.LotClosing) []*models.Chain {
	lotByID := make(map[int64]*models.Lot, len(lots))
	for _, lot := range lots {
		lotByID[lot.ID] = lot
	}

	var lotEdges, derivedEdges []edge

	for _, c := range closings {
		lot := lotByID[c.LotID]
		if lot == nil || lot.OpeningOrderID == "" || c.ClosingOrderID == "" {
			continue
		}
		lotEdges = append(lotEdges, edge{lot.OpeningOrderID, c.ClosingOrderID})
	}

	for _, lot := range lots {
		if lot.DerivedFromLotID == nil {
			continue
		}
		parent := lotByID[*lot.DerivedFromLotID]
		if parent == nil || parent.OpeningOrderID == "" {
			continue
		}

		// A derived lot with no opening order (stock side of an assignment)
		// bridges through the parent's closing that created it
		derivedOpener := lot.OpeningOrderID
		if derivedOpener == "" {
			for _, c := range closings {
				if c.LotID == parent.ID && c.ResultingLotID != nil && *c.ResultingLotID == lot.ID {
					derivedOpener = c.ClosingOrderID
					break
				}
			}
		}
		if derivedOpener != "" {
			derivedEdges = append(derivedEdges, edge{derivedOpener, parent.OpeningOrderID})
		}
	}

	components := BuildOrderGraph(lotEdges, derivedEdges)

	orderMap := make(map[string]*models.Order, len(orders))
	for _, o := range orders {
		orderMap[o.OrderID] = o
	}

	used := make(map[string]struct{})
	var chains []*models.Chain

	for _, members := range components {
		var componentOrders []*models.Order
		for _, oid := range members {
			if o, ok := orderMap[oid]; ok {
				componentOrders = append(componentOrders, o)
				used[oid] = struct{}{}
			}
		}
		if len(componentOrders) == 0 {
			continue
		}

		sort.SliceStable(componentOrders, func(i, j int) bool {
			return componentOrders[i].ExecutedAt.Before(componentOrders[j].ExecutedAt)
		})
		earliest := componentOrders[0]

		chain := &models.Chain{
			ChainID:       synthesizeChainID(earliest.Underlying, earliest.ExecutedAt, earliest.OrderID),
			Underlying:    earliest.Underlying,
			AccountNumber: earliest.AccountNumber,
			Orders:        componentOrders,
		}
		chain.Status = determineChainStatus(memberSet(componentOrders), lots, closings)
		chains = append(chains, chain)
	}

	// Orders not in any component become singleton chains
	for _, order := range orders {
		if _, ok := used[order.OrderID]; ok {
			continue
		}
		chain := &models.Chain{
			ChainID:       synthesizeChainID(order.Underlying, order.ExecutedAt, order.OrderID),
			Underlying:    order.Underlying,
			AccountNumber: order.AccountNumber,
			Orders:        []*models.Order{order},
		}
		chain.Status = determineChainStatus(map[string]struct{}{order.OrderID: {}}, lots, closings)
		chains = append(chains, chain)
	}

	sort.SliceStable(chains, func(i, j int) bool {
		oi, oj := chains[i].OpeningDate(), chains[j].OpeningDate()
		if !oi.Equal(oj) {
			return oi.Before(oj)
		}
		return chains[i].ChainID < chains[j].ChainID
	})

	return chains
}

func memberSet(orders []*models.Order) map[string]struct{} {
	set := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		set[o.OrderID] = struct{}{}
	}
	return set
}

// determineChainStatus inspects the chain's lots (including derived lots
// parented to them): any open lot means OPEN, upgraded to ASSIGNED when an
// assignment closing is present; all closed means CLOSED.
func determineChainStatus(orderIDs map[string]struct{}, lots []*models.Lot, closings []*models.LotClosing) string {
	chainLots := make(map[int64]*models.Lot)
	for _, lot := range lots {
		if _, ok := orderIDs[lot.OpeningOrderID]; ok {
			chainLots[lot.ID] = lot
		}
	}
	for _, lot := range lots {
		if lot.DerivedFromLotID == nil {
			continue
		}
		if _, ok := chainLots[*lot.DerivedFromLotID]; ok {
			chainLots[lot.ID] = lot
		}
	}

	if len(chainLots) == 0 {
		return models.ChainStatusOpen
	}

	hasOpen := false
	for _, lot := range chainLots {
		if lot.RemainingQuantity != 0 {
			hasOpen = true
			break
		}
	}
	if !hasOpen {
		return models.ChainStatusClosed
	}

	for _, c := range closings {
		if c.ClosingType != models.ClosingTypeAssignment {
			continue
		}
		if _, ok := chainLots[c.LotID]; ok {
			return models.ChainStatusAssigned
		}
	}
	return models.ChainStatusOpen
}

// AssignChainIDs rewrites each lot's provisional chain id to the final
// graph-derived id; derived lots follow their parent.
func AssignChainIDs(chains []*models.Chain, lots []*models.Lot) {
	byOrder := make(map[string]string)
	for _, chain := range chains {
		for _, o := range chain.Orders {
			byOrder[o.OrderID] = chain.ChainID
		}
	}

	lotByID := make(map[int64]*models.Lot, len(lots))
	for _, lot := range lots {
		lotByID[lot.ID] = lot
	}

	for _, lot := range lots {
		if lot.OpeningOrderID != "" {
			if cid, ok := byOrder[lot.OpeningOrderID]; ok {
				lot.ChainID = cid
			}
		}
	}
	for _, lot := range lots {
		if lot.DerivedFromLotID == nil {
			continue
		}
		if parent := lotByID[*lot.DerivedFromLotID]; parent != nil && parent.ChainID != "" {
			lot.ChainID = parent.ChainID
		}
	}
}
