package delivery

import (
	"errors"
	"time"
)

// UnassignedDriver is stored when a delivery is processed without naming
// a driver.
const UnassignedDriver = "Non assigné"

// Delivery is the dispatch view of an order joined with its client.
type Delivery struct {
	OrderID        int64      `json:"order_id"`
	ClientID       int64      `json:"client_id"`
	ClientName     string     `json:"client_name"`
	ClientPhone    string     `json:"client_phone"`
	Date           time.Time  `json:"date"`
	Status         string     `json:"status"`
	Total          float64    `json:"total"`
	Advance        float64    `json:"advance"`
	Balance        float64    `json:"balance"`
	DeliveryFee    float64    `json:"delivery_fee"`
	IsDeliveryPaid bool       `json:"is_delivery_paid"`
	PaymentMethod  string     `json:"payment_method,omitempty"`
	DriverName     string     `json:"driver_name,omitempty"`
	VehicleNumber  string     `json:"vehicle_number,omitempty"`
	Note           string     `json:"note,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	ItemCount      int        `json:"item_count"`
}

// SlipItem is one line of the printable delivery slip.
type SlipItem struct {
	ProductName string  `json:"product_name"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
	LineTotal   float64 `json:"line_total"`
}

// Slip is the delivery slip projection handed to the client on drop-off.
type Slip struct {
	OrderID      int64      `json:"order_id"`
	ClientName   string     `json:"client_name"`
	ClientPhone  string     `json:"client_phone"`
	Address      string     `json:"address,omitempty"`
	Date         time.Time  `json:"date"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	DriverName   string     `json:"driver_name,omitempty"`
	Items        []SlipItem `json:"items"`
	Total        float64    `json:"total"`
	Advance      float64    `json:"advance"`
	Balance      float64    `json:"balance"`
	DeliveryFee  float64    `json:"delivery_fee"`
	AmountDue    float64    `json:"amount_due"`
}

var (
	// ErrNotFound indicates a missing order.
	ErrNotFound = errors.New("delivery: order not found")
	// ErrDriverRequired indicates a cash collection without a named driver.
	ErrDriverRequired = errors.New("delivery: driver name required to collect payment")
	// ErrNotDeliverable indicates an order outside the deliverable states.
	ErrNotDeliverable = errors.New("delivery: order cannot be delivered")
)
