package catalog

import (
	"errors"
	"time"
)

// Article is a reusable product template: something the business knows
// how to buy, independent of any groupage or stock.
type Article struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Supplier    string    `json:"supplier,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	// ErrNotFound indicates a missing article.
	ErrNotFound = errors.New("catalog: article not found")
	// ErrInvalidArticle indicates an article payload that failed validation.
	ErrInvalidArticle = errors.New("catalog: invalid article")
)
