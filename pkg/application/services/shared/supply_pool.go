package shared

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Supply holds what is left of one material for netting demand
type Supply struct {
	OnHand  decimal.Decimal
	OnOrder decimal.Decimal

	DrawnFromStock  decimal.Decimal
	DrawnFromOrders decimal.Decimal
	Unmet           decimal.Decimal
}

// Draw is the outcome of netting one demand against a supply
type Draw struct {
	FromStock  decimal.Decimal
	FromOrders decimal.Decimal
	Short      decimal.Decimal
}

// SupplyPool tracks stock and open order quantities per material while
// demands are netted against them in priority order
type SupplyPool map[string]*Supply

// NewSupplyPool creates an empty pool
func NewSupplyPool() SupplyPool {
	return make(SupplyPool)
}

func (p SupplyPool) supply(materialID string) *Supply {
	s, ok := p[materialID]
	if !ok {
		s = &Supply{}
		p[materialID] = s
	}
	return s
}

// AddStock adds available stock of a material
func (p SupplyPool) AddStock(materialID string, qty decimal.Decimal) {
	if qty.IsPositive() {
		s := p.supply(materialID)
		s.OnHand = s.OnHand.Add(qty)
	}
}

// AddOnOrder adds quantity still expected from open purchase orders
func (p SupplyPool) AddOnOrder(materialID string, qty decimal.Decimal) {
	if qty.IsPositive() {
		s := p.supply(materialID)
		s.OnOrder = s.OnOrder.Add(qty)
	}
}

// Draw takes demand from stock first, then from open orders; whatever is
// left is reported short
func (p SupplyPool) Draw(materialID string, demand decimal.Decimal) Draw {
	s := p.supply(materialID)
	var d Draw

	d.FromStock = decimal.Min(demand, s.OnHand)
	s.OnHand = s.OnHand.Sub(d.FromStock)
	s.DrawnFromStock = s.DrawnFromStock.Add(d.FromStock)
	rest := demand.Sub(d.FromStock)

	d.FromOrders = decimal.Min(rest, s.OnOrder)
	s.OnOrder = s.OnOrder.Sub(d.FromOrders)
	s.DrawnFromOrders = s.DrawnFromOrders.Add(d.FromOrders)

	d.Short = rest.Sub(d.FromOrders)
	s.Unmet = s.Unmet.Add(d.Short)
	return d
}

// Materials returns the materials in the pool, sorted
func (p SupplyPool) Materials() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TotalDemand returns everything drawn or left unmet across materials
func (p SupplyPool) TotalDemand() decimal.Decimal {
	total := decimal.Zero
	for _, s := range p {
		total = total.Add(s.DrawnFromStock).Add(s.DrawnFromOrders).Add(s.Unmet)
	}
	return total
}

// CoverageRatio returns the share of demand covered by stock or orders (0 to 1)
func (p SupplyPool) CoverageRatio() decimal.Decimal {
	demand := p.TotalDemand()
	if !demand.IsPositive() {
		return decimal.Zero
	}
	unmet := decimal.Zero
	for _, s := range p {
		unmet = unmet.Add(s.Unmet)
	}
	return demand.Sub(unmet).Div(demand).Round(4)
}

func (p SupplyPool) String() string {
	if len(p) == 0 {
		return "SupplyPool{empty}"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SupplyPool{%d materials:\n", len(p))
	for _, id := range p.Materials() {
		s := p[id]
		fmt.Fprintf(&b, "  %s: onHand=%s, onOrder=%s, unmet=%s\n", id, s.OnHand, s.OnOrder, s.Unmet)
	}
	b.WriteString("}")
	return b.String()
}
