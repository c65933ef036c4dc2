package finance

import (
	"errors"
	"time"
)

// EntryType distinguishes cash in from cash out.
type EntryType string

const (
	// EntryIncome is money received.
	EntryIncome EntryType = "INCOME"
	// EntryExpense is money paid out.
	EntryExpense EntryType = "EXPENSE"
)

// Category classifies a ledger entry.
type Category string

const (
	// CategorySale covers order advances and balance settlements.
	CategorySale Category = "VENTE"
	// CategoryStockPurchase covers goods bought into a groupage.
	CategoryStockPurchase Category = "ACHAT_STOCK"
	// CategoryTransport covers freight and delivery service fees.
	CategoryTransport Category = "TRANSPORT"
	// CategoryCustoms covers customs duties.
	CategoryCustoms Category = "DOUANE"
	// CategoryOther is everything else.
	CategoryOther Category = "AUTRE"
)

// Entry is one append-only row of the cash ledger. Entries are never
// updated or deleted; the read model only aggregates them.
type Entry struct {
	ID          int64     `json:"id"`
	Date        time.Time `json:"date"`
	Type        EntryType `json:"type"`
	Category    Category  `json:"category"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	RefModule   string    `json:"ref_module,omitempty"`
	RefID       int64     `json:"ref_id,omitempty"`
}

// Ref modules recorded on ledger entries.
const (
	RefModuleOrder   = "order"
	RefModuleProduct = "product"
)

// Summary is the aggregated finance read model.
type Summary struct {
	TotalIncome  float64 `json:"total_income"`
	TotalExpense float64 `json:"total_expense"`
	Balance      float64 `json:"balance"`

	IncomeSales    float64 `json:"income_sales"`
	IncomeDelivery float64 `json:"income_delivery"`
	IncomeOther    float64 `json:"income_other"`

	ExpenseStock         float64 `json:"expense_stock"`
	ExpenseTransportDuty float64 `json:"expense_transport_duty"`
	ExpenseOther         float64 `json:"expense_other"`

	StockUnitsSold      int `json:"stock_units_sold"`
	StockUnitsRemaining int `json:"stock_units_remaining"`
}

// ErrInvalidEntry indicates an entry that cannot be appended.
var ErrInvalidEntry = errors.New("finance: invalid ledger entry")

// Validate checks the fields required before an entry is appended.
func (e Entry) Validate() error {
	if e.Type != EntryIncome && e.Type != EntryExpense {
		return ErrInvalidEntry
	}
	switch e.Category {
	case CategorySale, CategoryStockPurchase, CategoryTransport, CategoryCustoms, CategoryOther:
	default:
		return ErrInvalidEntry
	}
	if e.Amount <= 0 {
		return ErrInvalidEntry
	}
	return nil
}
