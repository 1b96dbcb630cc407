package game

import (
	"math/rand"
)

// OrderKind selects how the turn order is produced.
type OrderKind int

const (
	// OrderDefault projects the current player list in roster order.
	OrderDefault OrderKind = iota
	// OrderRandom applies a uniform random permutation of the players.
	OrderRandom
	// OrderExplicit uses the supplied identifier sequence verbatim. The
	// caller is responsible for it being a permutation of the current
	// players; it is not validated.
	OrderExplicit
)

// OrderRequest asks for a turn order. Use DefaultOrder, RandomOrder or
// ExplicitOrder to build one.
type OrderRequest struct {
	Kind  OrderKind
	Order []string
}

func DefaultOrder() OrderRequest {
	return OrderRequest{Kind: OrderDefault}
}

func RandomOrder() OrderRequest {
	return OrderRequest{Kind: OrderRandom}
}

func ExplicitOrder(ids ...string) OrderRequest {
	return OrderRequest{Kind: OrderExplicit, Order: ids}
}

// resolveOrder computes the identifier sequence for a request against
// the given player list.
func resolveOrder(req OrderRequest, players []*Player) []string {
	switch req.Kind {
	case OrderExplicit:
		order := make([]string, len(req.Order))
		copy(order, req.Order)
		return order
	case OrderRandom:
		order := make([]string, len(players))
		for i, p := range players {
			order[i] = p.ID
		}
		rand.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		return order
	default:
		order := make([]string, len(players))
		for i, p := range players {
			order[i] = p.ID
		}
		return order
	}
}

// SetTurnOrder replaces the turn order. It may be called at setup time
// (e.g. from a Setup hook) or between rounds; the new order takes effect
// at the next turn lookup. The order has its own lock so hooks can call
// this while the lifecycle lock is held.
func (g *Game) SetTurnOrder(req OrderRequest) {
	g.orderMu.Lock()
	defer g.orderMu.Unlock()
	g.playerOrder = resolveOrder(req, g.players)
}

// TurnOrder returns a copy of the current identifier sequence.
func (g *Game) TurnOrder() []string {
	g.orderMu.RLock()
	defer g.orderMu.RUnlock()
	order := make([]string, len(g.playerOrder))
	copy(order, g.playerOrder)
	return order
}

// orderLen and orderAt are the controller's reads of the sequence.

func (g *Game) orderLen() int {
	g.orderMu.RLock()
	defer g.orderMu.RUnlock()
	return len(g.playerOrder)
}

func (g *Game) orderAt(i int) (string, bool) {
	g.orderMu.RLock()
	defer g.orderMu.RUnlock()
	if i < 0 || i >= len(g.playerOrder) {
		return "", false
	}
	return g.playerOrder[i], true
}

// dropFromOrder removes one identifier, keeping the relative order of
// the rest. Used by the skip leave policy.
func (g *Game) dropFromOrder(id string) {
	g.orderMu.Lock()
	defer g.orderMu.Unlock()
	for i, existing := range g.playerOrder {
		if existing == id {
			g.playerOrder = append(g.playerOrder[:i], g.playerOrder[i+1:]...)
			return
		}
	}
}
