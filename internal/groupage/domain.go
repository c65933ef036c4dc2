package groupage

import (
	"errors"
	"time"
)

// Status enumerates groupage lifecycle states. Any status may be assigned
// from any other; there is deliberately no transition table.
type Status string

const (
	// StatusOpen accepts new orders.
	StatusOpen Status = "OPEN"
	// StatusClosed no longer accepts orders.
	StatusClosed Status = "CLOSED"
	// StatusInTransit is on the way from the origin country.
	StatusInTransit Status = "IN_TRANSIT"
	// StatusArrived is ready for delivery.
	StatusArrived Status = "ARRIVED"
	// StatusCompleted is fully delivered and settled.
	StatusCompleted Status = "COMPLETED"
)

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusInTransit, StatusArrived, StatusCompleted:
		return true
	}
	return false
}

// SellingOption is one (unit, price) pair a product can be sold under.
// Exactly one option per product carries IsDefault.
type SellingOption struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"product_id"`
	Unit      string  `json:"unit"`
	Price     float64 `json:"price"`
	IsDefault bool    `json:"is_default"`
}

// Product is a priced, stock-tracked line item owned by exactly one groupage.
type Product struct {
	ID             int64           `json:"id"`
	GroupageID     int64           `json:"groupage_id"`
	Name           string          `json:"name"`
	BuyingPrice    float64         `json:"buying_price"`
	BuyingUnit     string          `json:"buying_unit"`
	CostPrice      float64         `json:"cost_price"`
	SellingPrice   float64         `json:"selling_price"`
	TransportFee   float64         `json:"transport_fee"`
	CustomsFee     float64         `json:"customs_fee"`
	QuantityTotal  int             `json:"quantity_total"`
	QuantitySold   int             `json:"quantity_sold"`
	ImageURL       string          `json:"image_url,omitempty"`
	Supplier       string          `json:"supplier,omitempty"`
	DateAdded      *time.Time      `json:"date_added,omitempty"`
	SellingOptions []SellingOption `json:"selling_options"`
}

// QuantityRemaining returns the unsold stock.
func (p Product) QuantityRemaining() int {
	return p.QuantityTotal - p.QuantitySold
}

// DefaultOption returns the default selling option, falling back to the
// first option when none is flagged.
func (p Product) DefaultOption() (SellingOption, bool) {
	for _, opt := range p.SellingOptions {
		if opt.IsDefault {
			return opt, true
		}
	}
	if len(p.SellingOptions) > 0 {
		return p.SellingOptions[0], true
	}
	return SellingOption{}, false
}

// Groupage is a consolidated import batch owning its products. Deleting a
// groupage deletes its products.
type Groupage struct {
	ID                     int64     `json:"id"`
	Name                   string    `json:"name"`
	StartDate              time.Time `json:"start_date"`
	EndDate                time.Time `json:"end_date"`
	Status                 Status    `json:"status"`
	OriginCountry          string    `json:"origin_country"`
	TransportMode          string    `json:"transport_mode"`
	MinAdvanceAmount       float64   `json:"min_advance_amount"`
	IsShippingIncluded     bool      `json:"is_shipping_included"`
	EstimatedTransportCost float64   `json:"estimated_transport_cost"`
	EstimatedCustomsCost   float64   `json:"estimated_customs_cost"`
	Products               []Product `json:"products"`
}

// EstimatedProfit is the realized-margin estimate over all products:
// the sum of (sellingPrice - costPrice) * quantitySold.
func (g Groupage) EstimatedProfit() float64 {
	var total float64
	for _, p := range g.Products {
		total += (p.SellingPrice - p.CostPrice) * float64(p.QuantitySold)
	}
	return total
}

var (
	// ErrNotFound indicates a missing groupage or product.
	ErrNotFound = errors.New("groupage: not found")
	// ErrInvalidDraft indicates a product draft that failed validation.
	ErrInvalidDraft = errors.New("groupage: invalid product draft")
	// ErrInvalidStatus indicates an unknown lifecycle state.
	ErrInvalidStatus = errors.New("groupage: invalid status")
	// ErrLastOption indicates an attempt to remove a product's only selling option.
	ErrLastOption = errors.New("groupage: product must keep at least one selling option")
)
