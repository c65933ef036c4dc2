package sales

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/importpro/importpro/internal/finance"
	"github.com/importpro/importpro/internal/groupage"
	"github.com/importpro/importpro/internal/shared"
)

// DefaultAdvanceRate is the share of the total proposed as advance when
// no manual amount is supplied.
const DefaultAdvanceRate = 0.30

// CreateOrderRequest carries the order form: a client, the raw cart and
// an optional manual advance. GroupageID pins the order to one groupage;
// when absent the order inherits the groupage only if every line shares it.
type CreateOrderRequest struct {
	ClientID   int64      `json:"client_id" validate:"required,gt=0"`
	GroupageID *int64     `json:"groupage_id,omitempty"`
	Lines      []CartLine `json:"lines" validate:"required,dive"`
	Advance    *float64   `json:"advance,omitempty"`

	// IdempotencyKey comes from the Idempotency-Key header, not the body.
	IdempotencyKey string `json:"-"`
}

// ProductSource resolves products referenced by cart lines.
type ProductSource interface {
	GetProduct(ctx context.Context, id int64) (*groupage.Product, error)
}

// AuditRecorder captures audit events for mutations.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SummaryInvalidator drops the cached finance read model after ledger
// writes.
type SummaryInvalidator interface {
	InvalidateSummary(ctx context.Context)
}

// Service implements the order workflow.
type Service struct {
	repo        RepositoryPort
	products    ProductSource
	audit       AuditRecorder
	summary     SummaryInvalidator
	idempotency *shared.IdempotencyStore
	logger      *slog.Logger
}

// NewService constructs the sales service. idem may be nil, in which case
// duplicate submissions are not detected.
func NewService(repo RepositoryPort, products ProductSource, audit AuditRecorder, summary SummaryInvalidator, idem *shared.IdempotencyStore, logger *slog.Logger) *Service {
	return &Service{repo: repo, products: products, audit: audit, summary: summary, idempotency: idem, logger: logger}
}

func (s *Service) invalidateSummary(ctx context.Context) {
	if s.summary != nil {
		s.summary.InvalidateSummary(ctx)
	}
}

// Get returns one order with items.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of orders matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter, page int) ([]Order, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidOrder, filter.Status)
	}
	return s.repo.List(ctx, filter, shared.NewPagination(page, 0, 0))
}

// Create places an order: prices and merges the cart, reserves stock,
// books the advance in the ledger and bumps the client's spend, all in
// one transaction. Orders start READY since most sales are from stock on
// hand.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	if req.Advance != nil && *req.Advance < 0 {
		return nil, fmt.Errorf("%w: advance cannot be negative", ErrInvalidOrder)
	}

	items := make([]OrderItem, 0, len(req.Lines))
	groupageIDs := make(map[int64]struct{})
	for _, line := range req.Lines {
		p, err := s.products.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: product %d", ErrInvalidOrder, line.ProductID)
		}
		item, err := ResolveCartLine(*p, line)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		groupageIDs[p.GroupageID] = struct{}{}
	}
	items = MergeItems(items)

	total := CartTotal(items)
	advance := math.Round(total * DefaultAdvanceRate)
	if req.Advance != nil {
		advance = *req.Advance
	}
	balance := math.Max(0, total-advance)

	groupageID := req.GroupageID
	if groupageID == nil && len(groupageIDs) == 1 {
		for id := range groupageIDs {
			gid := id
			groupageID = &gid
		}
	}

	now := time.Now().UTC()
	order := Order{
		ClientID:   req.ClientID,
		GroupageID: groupageID,
		Date:       now,
		Status:     StatusReady,
		Total:      total,
		Advance:    advance,
		Balance:    balance,
	}

	insertedKey := false
	if s.idempotency != nil && req.IdempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, req.IdempotencyKey, "sales.order"); err != nil {
			return nil, err
		}
		insertedKey = true
	}

	var orderID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, item := range items {
			if err := tx.ReserveStock(ctx, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("product %d: %w", item.ProductID, err)
			}
		}
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		orderID = id
		if err := tx.InsertItems(ctx, id, items); err != nil {
			return err
		}
		if advance > 0 {
			label := "Avance"
			if advance >= total {
				label = "Solde Total"
			}
			entry := finance.Entry{
				Date:        now,
				Type:        finance.EntryIncome,
				Category:    finance.CategorySale,
				Amount:      advance,
				Description: "Encaissement Commande - " + label,
				RefModule:   finance.RefModuleOrder,
				RefID:       id,
			}
			if _, err := tx.AppendLedgerEntry(ctx, entry); err != nil {
				return err
			}
		}
		return tx.AddClientSpend(ctx, req.ClientID, total)
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, req.IdempotencyKey)
		}
		return nil, err
	}

	s.invalidateSummary(ctx)
	s.recordAudit(ctx, "order_create", orderID, map[string]any{
		"client_id": req.ClientID,
		"total":     total,
		"advance":   advance,
	})
	return s.repo.Get(ctx, orderID)
}

// Validate confirms a pending order. Validating an order that is already
// READY is a no-op; delivered or cancelled orders cannot go back.
func (s *Service) Validate(ctx context.Context, id int64) (*Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case StatusReady:
		return order, nil
	case StatusPending:
	default:
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, StatusReady)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateOrderStatus(ctx, id, StatusReady)
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "order_validate", id, nil)
	return s.repo.Get(ctx, id)
}

// SettleBalance collects the remaining balance before delivery. The full
// balance is booked as sales income and the order drops to zero due.
func (s *Service) SettleBalance(ctx context.Context, id int64, paymentMethod string) (*Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Balance <= 0 {
		return nil, ErrNothingDue
	}

	amount := order.Balance
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry := finance.Entry{
			Date:        time.Now().UTC(),
			Type:        finance.EntryIncome,
			Category:    finance.CategorySale,
			Amount:      amount,
			Description: fmt.Sprintf("Solde Commande #%d (Paiement anticipé)", id),
			RefModule:   finance.RefModuleOrder,
			RefID:       id,
		}
		if _, err := tx.AppendLedgerEntry(ctx, entry); err != nil {
			return err
		}
		return tx.SettleOrder(ctx, id, strings.TrimSpace(paymentMethod))
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSummary(ctx)
	s.recordAudit(ctx, "order_settle", id, map[string]any{"amount": amount})
	return s.repo.Get(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID, _ := shared.ActorFromContext(ctx)
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "orders",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}
