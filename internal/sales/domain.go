package sales

import (
	"errors"
	"time"
)

// OrderStatus enumerates the order workflow states.
type OrderStatus string

const (
	// StatusPending awaits stock confirmation.
	StatusPending OrderStatus = "PENDING"
	// StatusReady is confirmed and awaiting delivery.
	StatusReady OrderStatus = "READY"
	// StatusDelivered has been handed to the client.
	StatusDelivered OrderStatus = "DELIVERED"
	// StatusCancelled is terminal; no transition leads back out of it.
	StatusCancelled OrderStatus = "CANCELLED"
)

// Valid reports whether the status is a known workflow state.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// OrderItem is one immutable line of an order, priced at the unit it was
// sold under.
type OrderItem struct {
	ID          int64   `json:"id"`
	OrderID     int64   `json:"order_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
}

// LineTotal is the item's contribution to the order total.
func (i OrderItem) LineTotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

// DeliveryInfo records how a delivered order reached the client. It is
// empty until the delivery is processed.
type DeliveryInfo struct {
	DriverName    string     `json:"driver_name,omitempty"`
	VehicleNumber string     `json:"vehicle_number,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Address       string     `json:"address,omitempty"`
	Note          string     `json:"note,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
}

// Order is a client sale. Totals are fixed at creation; only payment and
// delivery state move afterwards.
type Order struct {
	ID             int64        `json:"id"`
	ClientID       int64        `json:"client_id"`
	GroupageID     *int64       `json:"groupage_id,omitempty"`
	Date           time.Time    `json:"date"`
	Status         OrderStatus  `json:"status"`
	Total          float64      `json:"total"`
	Advance        float64      `json:"advance"`
	Balance        float64      `json:"balance"`
	DeliveryFee    float64      `json:"delivery_fee"`
	IsDeliveryPaid bool         `json:"is_delivery_paid"`
	PaymentMethod  string       `json:"payment_method,omitempty"`
	Delivery       DeliveryInfo `json:"delivery"`
	Items          []OrderItem  `json:"items"`
}

var (
	// ErrNotFound indicates a missing order.
	ErrNotFound = errors.New("sales: order not found")
	// ErrEmptyCart indicates an order submitted without items.
	ErrEmptyCart = errors.New("sales: cart is empty")
	// ErrInvalidOrder indicates an order payload that failed validation.
	ErrInvalidOrder = errors.New("sales: invalid order")
	// ErrInsufficientStock indicates a line exceeding the product's remaining quantity.
	ErrInsufficientStock = errors.New("sales: insufficient stock")
	// ErrNothingDue indicates a settle attempt on a fully paid order.
	ErrNothingDue = errors.New("sales: no balance remaining")
	// ErrInvalidTransition indicates a status change the workflow forbids.
	ErrInvalidTransition = errors.New("sales: invalid status transition")
)
