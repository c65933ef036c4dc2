package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/importpro/importpro/internal/finance"
	"github.com/importpro/importpro/internal/shared"
)

// ProcessRequest carries the dispatch form for one order.
type ProcessRequest struct {
	OrderID        int64      `json:"order_id" validate:"required,gt=0"`
	Driver         string     `json:"driver"`
	DriverPhone    string     `json:"driver_phone"`
	Vehicle        string     `json:"vehicle"`
	Address        string     `json:"address"`
	Note           string     `json:"note"`
	Date           *time.Time `json:"date,omitempty"`
	DeliveryFee    float64    `json:"delivery_fee" validate:"gte=0"`
	CollectPayment bool       `json:"collect_payment"`
	PaymentMethod  string     `json:"payment_method"`
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

// Service implements the delivery workflow.
type Service struct {
	repo    RepositoryPort
	audit   AuditRecorder
	summary SummaryInvalidator
	logger  *slog.Logger
}

// NewService constructs the delivery service.
func NewService(repo RepositoryPort, audit AuditRecorder, summary SummaryInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, summary: summary, logger: logger}
}

// ListPending returns READY orders awaiting dispatch.
func (s *Service) ListPending(ctx context.Context, search string) ([]Delivery, error) {
	return s.repo.ListPending(ctx, strings.TrimSpace(search))
}

// ListHistory returns delivered orders, most recent first.
func (s *Service) ListHistory(ctx context.Context, search string) ([]Delivery, error) {
	return s.repo.ListHistory(ctx, strings.TrimSpace(search))
}

// Slip builds the delivery slip for one order.
func (s *Service) Slip(ctx context.Context, orderID int64) (*Slip, error) {
	return s.repo.Slip(ctx, orderID)
}

// Process marks an order delivered. When payment is collected on the
// doorstep a named driver is mandatory, the balance drops to zero and up
// to two income entries hit the ledger: the goods balance under VENTE and
// the delivery fee under TRANSPORT. The validation failure leaves the
// order untouched.
func (s *Service) Process(ctx context.Context, req ProcessRequest) (*Delivery, error) {
	order, err := s.repo.Get(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case "DELIVERED", "CANCELLED":
		return nil, fmt.Errorf("%w: status %s", ErrNotDeliverable, order.Status)
	}

	driver := strings.TrimSpace(req.Driver)
	if req.CollectPayment && (order.Balance > 0 || req.DeliveryFee > 0) && driver == "" {
		return nil, ErrDriverRequired
	}
	if driver == "" {
		driver = UnassignedDriver
	}

	deliveredAt := time.Now().UTC()
	if req.Date != nil {
		deliveredAt = *req.Date
	}

	update := DeliveryUpdate{
		OrderID:        req.OrderID,
		Status:         "DELIVERED",
		DriverName:     driver,
		VehicleNumber:  strings.TrimSpace(req.Vehicle),
		Phone:          strings.TrimSpace(req.DriverPhone),
		Address:        strings.TrimSpace(req.Address),
		Note:           composeNote(req.Note, req.DriverPhone, req.Vehicle),
		DeliveredAt:    deliveredAt,
		DeliveryFee:    req.DeliveryFee,
		Balance:        order.Balance,
		IsDeliveryPaid: order.IsDeliveryPaid,
		PaymentMethod:  "",
	}
	if req.CollectPayment {
		update.Balance = 0
		update.IsDeliveryPaid = true
		update.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ApplyDelivery(ctx, update); err != nil {
			return err
		}
		if req.CollectPayment && order.Balance > 0 {
			entry := finance.Entry{
				Date:        deliveredAt,
				Type:        finance.EntryIncome,
				Category:    finance.CategorySale,
				Amount:      order.Balance,
				Description: fmt.Sprintf("Solde Commande #%d - %s", order.OrderID, order.ClientName),
				RefModule:   finance.RefModuleOrder,
				RefID:       order.OrderID,
			}
			if _, err := tx.AppendLedgerEntry(ctx, entry); err != nil {
				return err
			}
		}
		if req.CollectPayment && req.DeliveryFee > 0 {
			entry := finance.Entry{
				Date:        deliveredAt,
				Type:        finance.EntryIncome,
				Category:    finance.CategoryTransport,
				Amount:      req.DeliveryFee,
				Description: fmt.Sprintf("Service Livraison - Commande #%d", order.OrderID),
				RefModule:   finance.RefModuleOrder,
				RefID:       order.OrderID,
			}
			if _, err := tx.AppendLedgerEntry(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.summary != nil && req.CollectPayment {
		s.summary.InvalidateSummary(ctx)
	}
	s.recordAudit(ctx, req.OrderID, map[string]any{
		"driver":          driver,
		"collect_payment": req.CollectPayment,
		"delivery_fee":    req.DeliveryFee,
	})
	return s.repo.Get(ctx, req.OrderID)
}

func composeNote(note, driverPhone, vehicle string) string {
	return fmt.Sprintf("%s [Livreur: %s, Vehicule: %s]",
		strings.TrimSpace(note), strings.TrimSpace(driverPhone), strings.TrimSpace(vehicle))
}

func (s *Service) recordAudit(ctx context.Context, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID, _ := shared.ActorFromContext(ctx)
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   "delivery_process",
		Entity:   "orders",
		EntityID: strconv.FormatInt(orderID, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", "action", "delivery_process", "error", err)
	}
}
