package sales

import (
	"fmt"
	"strings"

	"github.com/importpro/importpro/internal/groupage"
)

// CartLine is one raw cart entry as submitted by the client UI. Unit is
// optional; quantities below one are clamped to one.
type CartLine struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Unit      string `json:"unit"`
	Quantity  int    `json:"quantity"`
}

// ResolveCartLine prices a cart line against a product. Unit resolution
// order: the explicitly requested unit, then the product's default selling
// option, then the first option, then the buying unit at the headline
// selling price.
func ResolveCartLine(p groupage.Product, line CartLine) (OrderItem, error) {
	qty := line.Quantity
	if qty < 1 {
		qty = 1
	}

	unit := strings.TrimSpace(line.Unit)
	if unit != "" {
		for _, opt := range p.SellingOptions {
			if strings.EqualFold(opt.Unit, unit) {
				return OrderItem{
					ProductID:   p.ID,
					ProductName: p.Name,
					Unit:        opt.Unit,
					UnitPrice:   opt.Price,
					Quantity:    qty,
				}, nil
			}
		}
		return OrderItem{}, fmt.Errorf("%w: product %d has no unit %q", ErrInvalidOrder, p.ID, unit)
	}

	if opt, ok := p.DefaultOption(); ok {
		return OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Unit:        opt.Unit,
			UnitPrice:   opt.Price,
			Quantity:    qty,
		}, nil
	}
	return OrderItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Unit:        p.BuyingUnit,
		UnitPrice:   p.SellingPrice,
		Quantity:    qty,
	}, nil
}

// MergeItems folds duplicate (product, unit) lines into one item, summing
// quantities and keeping first-seen order.
func MergeItems(items []OrderItem) []OrderItem {
	type key struct {
		productID int64
		unit      string
	}
	index := make(map[key]int, len(items))
	merged := make([]OrderItem, 0, len(items))
	for _, item := range items {
		k := key{item.ProductID, item.Unit}
		if pos, ok := index[k]; ok {
			merged[pos].Quantity += item.Quantity
			continue
		}
		index[k] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

// CartTotal sums the line totals.
func CartTotal(items []OrderItem) float64 {
	var total float64
	for _, item := range items {
		total += item.LineTotal()
	}
	return total
}
