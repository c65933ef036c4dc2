package clients

import (
	"errors"
	"time"
)

// Client is one customer in the registry. PhoneNormalized is the E.164
// form of Phone and carries the uniqueness constraint.
type Client struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	PhoneNormalized string    `json:"phone_normalized"`
	Whatsapp        string    `json:"whatsapp,omitempty"`
	City            string    `json:"city,omitempty"`
	Email           string    `json:"email,omitempty"`
	Address         string    `json:"address,omitempty"`
	TotalOrders     int       `json:"total_orders"`
	TotalSpent      float64   `json:"total_spent"`
	DateAdded       time.Time `json:"date_added"`
}

// OrderSummary is the slim order projection shown in a client's history.
type OrderSummary struct {
	ID        int64     `json:"id"`
	Date      time.Time `json:"date"`
	Status    string    `json:"status"`
	Total     float64   `json:"total"`
	Advance   float64   `json:"advance"`
	Balance   float64   `json:"balance"`
	ItemCount int       `json:"item_count"`
}

var (
	// ErrNotFound indicates a missing client.
	ErrNotFound = errors.New("clients: not found")
	// ErrInvalidClient indicates a client payload that failed validation.
	ErrInvalidClient = errors.New("clients: invalid client")
	// ErrDuplicatePhone indicates another client already holds the phone number.
	ErrDuplicatePhone = errors.New("clients: phone already registered")
	// ErrHasOrders indicates a delete blocked by existing orders.
	ErrHasOrders = errors.New("clients: client has orders and cannot be deleted")
)
