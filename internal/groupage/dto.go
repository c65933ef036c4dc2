package groupage

import "time"

// SellingOptionDraft is one selling option as entered on a product form.
type SellingOptionDraft struct {
	Unit      string  `json:"unit"`
	Price     float64 `json:"price"`
	IsDefault bool    `json:"is_default"`
}

// ProductDraft is the product form payload validated before insertion.
type ProductDraft struct {
	Name           string               `json:"name"`
	BuyingPrice    float64              `json:"buying_price"`
	BuyingUnit     string               `json:"buying_unit"`
	TransportFee   float64              `json:"transport_fee"`
	CustomsFee     float64              `json:"customs_fee"`
	QuantityTotal  int                  `json:"quantity_total"`
	ImageURL       string               `json:"image_url"`
	SellingOptions []SellingOptionDraft `json:"selling_options"`
}

// CreateGroupageRequest carries the groupage creation form plus its
// initial product drafts.
type CreateGroupageRequest struct {
	Name                   string         `json:"name" validate:"required"`
	StartDate              time.Time      `json:"start_date" validate:"required"`
	EndDate                time.Time      `json:"end_date"`
	Status                 Status         `json:"status"`
	OriginCountry          string         `json:"origin_country"`
	TransportMode          string         `json:"transport_mode"`
	MinAdvanceAmount       float64        `json:"min_advance_amount" validate:"gte=0"`
	IsShippingIncluded     bool           `json:"is_shipping_included"`
	EstimatedTransportCost float64        `json:"estimated_transport_cost" validate:"gte=0"`
	EstimatedCustomsCost   float64        `json:"estimated_customs_cost" validate:"gte=0"`
	Products               []ProductDraft `json:"products"`
}

// UpdateGroupageRequest merges editable groupage fields. Nil pointers
// leave the stored value untouched.
type UpdateGroupageRequest struct {
	Name               *string    `json:"name,omitempty"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	Status             *Status    `json:"status,omitempty"`
	OriginCountry      *string    `json:"origin_country,omitempty"`
	TransportMode      *string    `json:"transport_mode,omitempty"`
	MinAdvanceAmount   *float64   `json:"min_advance_amount,omitempty"`
	IsShippingIncluded *bool      `json:"is_shipping_included,omitempty"`
}

// RecordPurchaseRequest records a stock purchase into an existing
// groupage from an article template.
type RecordPurchaseRequest struct {
	GroupageID       int64   `json:"groupage_id" validate:"required,gt=0"`
	ArticleID        int64   `json:"article_id" validate:"required,gt=0"`
	Supplier         string  `json:"supplier"`
	BuyingPrice      float64 `json:"buying_price" validate:"required,gt=0"`
	BuyingUnit       string  `json:"buying_unit" validate:"required"`
	Quantity         int     `json:"quantity" validate:"required,gt=0"`
	SellingUnitEst   string  `json:"selling_unit_est" validate:"required"`
	SellingPriceEst  float64 `json:"selling_price_est" validate:"gte=0"`
}
