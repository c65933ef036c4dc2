package groupage

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

// ArticleTemplate is the slice of a catalog article a stock purchase
// copies into a new product.
type ArticleTemplate struct {
	ID       int64
	Name     string
	Category string
	ImageURL string
	Supplier string
}

// ArticleSource resolves catalog articles referenced by purchases.
type ArticleSource interface {
	ArticleTemplate(ctx context.Context, id int64) (ArticleTemplate, error)
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

// Service implements groupage and stock purchase workflows.
type Service struct {
	repo     RepositoryPort
	articles ArticleSource
	audit    AuditRecorder
	summary  SummaryInvalidator
	logger   *slog.Logger
}

// NewService constructs the groupage service.
func NewService(repo RepositoryPort, articles ArticleSource, audit AuditRecorder, summary SummaryInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, articles: articles, audit: audit, summary: summary, logger: logger}
}

// Get returns one groupage with products.
func (s *Service) Get(ctx context.Context, id int64) (*Groupage, error) {
	return s.repo.Get(ctx, id)
}

// List returns all groupages, newest first.
func (s *Service) List(ctx context.Context) ([]Groupage, error) {
	return s.repo.List(ctx)
}

// GetProduct returns one product with its selling options.
func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// Create opens a new groupage together with its initial products. Product
// cost price at creation is the bare buying price; transport and customs
// estimates are carried on the groupage, not per product.
func (s *Service) Create(ctx context.Context, req CreateGroupageRequest) (*Groupage, error) {
	status := req.Status
	if status == "" {
		status = StatusOpen
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}
	for _, draft := range req.Products {
		if err := validateDraft(draft); err != nil {
			return nil, err
		}
	}

	var groupageID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		g := Groupage{
			Name:                   strings.TrimSpace(req.Name),
			StartDate:              req.StartDate,
			EndDate:                req.EndDate,
			Status:                 status,
			OriginCountry:          req.OriginCountry,
			TransportMode:          req.TransportMode,
			MinAdvanceAmount:       req.MinAdvanceAmount,
			IsShippingIncluded:     req.IsShippingIncluded,
			EstimatedTransportCost: req.EstimatedTransportCost,
			EstimatedCustomsCost:   req.EstimatedCustomsCost,
		}
		id, err := tx.InsertGroupage(ctx, g)
		if err != nil {
			return err
		}
		groupageID = id

		now := time.Now().UTC()
		for _, draft := range req.Products {
			opts := normalizeOptions(draft.SellingOptions)
			p := Product{
				GroupageID:    id,
				Name:          strings.TrimSpace(draft.Name),
				BuyingPrice:   draft.BuyingPrice,
				BuyingUnit:    draft.BuyingUnit,
				CostPrice:     draft.BuyingPrice,
				SellingPrice:  opts[0].Price,
				QuantityTotal: draft.QuantityTotal,
				ImageURL:      draft.ImageURL,
				DateAdded:     &now,
			}
			productID, err := tx.InsertProduct(ctx, p)
			if err != nil {
				return err
			}
			if err := tx.ReplaceOptions(ctx, productID, toOptions(productID, opts)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.summary != nil && len(req.Products) > 0 {
		s.summary.InvalidateSummary(ctx)
	}
	s.recordAudit(ctx, "groupage_create", "groupages", groupageID, map[string]any{"name": req.Name})
	return s.repo.Get(ctx, groupageID)
}

// AddProduct appends a product to an existing groupage. Unlike creation,
// the cost price here folds in the per-unit transport and customs fees.
func (s *Service) AddProduct(ctx context.Context, groupageID int64, draft ProductDraft) (*Product, error) {
	if _, err := s.repo.Get(ctx, groupageID); err != nil {
		return nil, err
	}
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	opts := normalizeOptions(draft.SellingOptions)
	now := time.Now().UTC()
	p := Product{
		GroupageID:    groupageID,
		Name:          strings.TrimSpace(draft.Name),
		BuyingPrice:   draft.BuyingPrice,
		BuyingUnit:    draft.BuyingUnit,
		CostPrice:     draft.BuyingPrice + draft.TransportFee + draft.CustomsFee,
		TransportFee:  draft.TransportFee,
		CustomsFee:    draft.CustomsFee,
		SellingPrice:  opts[0].Price,
		QuantityTotal: draft.QuantityTotal,
		ImageURL:      draft.ImageURL,
		DateAdded:     &now,
	}

	var productID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertProduct(ctx, p)
		if err != nil {
			return err
		}
		productID = id
		return tx.ReplaceOptions(ctx, id, toOptions(id, opts))
	})
	if err != nil {
		return nil, err
	}

	if s.summary != nil {
		s.summary.InvalidateSummary(ctx)
	}
	s.recordAudit(ctx, "groupage_add_product", "products", productID, map[string]any{"groupage_id": groupageID})
	return s.repo.GetProduct(ctx, productID)
}

// RecordPurchase creates stock in a groupage from a catalog article and
// books the matching ACHAT_STOCK expense in the same transaction.
func (s *Service) RecordPurchase(ctx context.Context, req RecordPurchaseRequest) (*Product, error) {
	article, err := s.articles.ArticleTemplate(ctx, req.ArticleID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, req.GroupageID); err != nil {
		return nil, err
	}

	supplier := strings.TrimSpace(req.Supplier)
	if supplier == "" {
		supplier = article.Supplier
	}
	draft := ProductDraft{
		Name:          article.Name,
		BuyingPrice:   req.BuyingPrice,
		BuyingUnit:    req.BuyingUnit,
		QuantityTotal: req.Quantity,
		ImageURL:      article.ImageURL,
		SellingOptions: []SellingOptionDraft{
			{Unit: req.SellingUnitEst, Price: req.SellingPriceEst, IsDefault: true},
		},
	}
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := Product{
		GroupageID:    req.GroupageID,
		Name:          article.Name,
		BuyingPrice:   req.BuyingPrice,
		BuyingUnit:    req.BuyingUnit,
		CostPrice:     req.BuyingPrice,
		SellingPrice:  req.SellingPriceEst,
		QuantityTotal: req.Quantity,
		ImageURL:      article.ImageURL,
		Supplier:      supplier,
		DateAdded:     &now,
	}

	var productID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertProduct(ctx, p)
		if err != nil {
			return err
		}
		productID = id
		if err := tx.ReplaceOptions(ctx, id, toOptions(id, normalizeOptions(draft.SellingOptions))); err != nil {
			return err
		}
		entry := finance.Entry{
			Date:        now,
			Type:        finance.EntryExpense,
			Category:    finance.CategoryStockPurchase,
			Amount:      req.BuyingPrice * float64(req.Quantity),
			Description: fmt.Sprintf("Achat stock: %s x%d", article.Name, req.Quantity),
			RefModule:   finance.RefModuleProduct,
			RefID:       id,
		}
		_, err = tx.AppendLedgerEntry(ctx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.summary != nil {
		s.summary.InvalidateSummary(ctx)
	}
	s.recordAudit(ctx, "purchase_record", "products", productID, map[string]any{
		"groupage_id": req.GroupageID,
		"article_id":  req.ArticleID,
		"amount":      req.BuyingPrice * float64(req.Quantity),
	})
	return s.repo.GetProduct(ctx, productID)
}

// UpdateMeta applies the non-nil fields of the request onto the stored
// groupage.
func (s *Service) UpdateMeta(ctx context.Context, id int64, req UpdateGroupageRequest) (*Groupage, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		current.Name = strings.TrimSpace(*req.Name)
	}
	if req.StartDate != nil {
		current.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		current.EndDate = *req.EndDate
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *req.Status)
		}
		current.Status = *req.Status
	}
	if req.OriginCountry != nil {
		current.OriginCountry = *req.OriginCountry
	}
	if req.TransportMode != nil {
		current.TransportMode = *req.TransportMode
	}
	if req.MinAdvanceAmount != nil {
		current.MinAdvanceAmount = *req.MinAdvanceAmount
	}
	if req.IsShippingIncluded != nil {
		current.IsShippingIncluded = *req.IsShippingIncluded
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateGroupage(ctx, *current)
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "groupage_update", "groupages", id, nil)
	return s.repo.Get(ctx, id)
}

// UpdateStatus sets the lifecycle state. Every state is reachable from
// every other.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, status)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "groupage_status", "groupages", id, map[string]any{"status": status})
	return nil
}

// Delete removes the groupage and, through cascade, its products and
// selling options.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rows, err := tx.DeleteGroupage(ctx, id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "groupage_delete", "groupages", id, nil)
	return nil
}

// AddOption appends a selling option to a product. A new default demotes
// the previous one and updates the product's headline selling price.
func (s *Service) AddOption(ctx context.Context, productID int64, draft SellingOptionDraft) (*Product, error) {
	if strings.TrimSpace(draft.Unit) == "" {
		return nil, fmt.Errorf("%w: selling option unit required", ErrInvalidDraft)
	}
	if draft.Price <= 0 {
		return nil, fmt.Errorf("%w: selling option price must be positive", ErrInvalidDraft)
	}
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	opts := append([]SellingOption{}, p.SellingOptions...)
	if draft.IsDefault {
		for i := range opts {
			opts[i].IsDefault = false
		}
	}
	opts = append(opts, SellingOption{ProductID: productID, Unit: draft.Unit, Price: draft.Price, IsDefault: draft.IsDefault})
	return s.saveOptions(ctx, productID, opts)
}

// RemoveOption drops a selling option. The last option cannot be removed,
// and removing the default promotes the first remaining option.
func (s *Service) RemoveOption(ctx context.Context, productID, optionID int64) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(p.SellingOptions) <= 1 {
		return nil, ErrLastOption
	}

	var (
		kept       []SellingOption
		wasDefault bool
		found      bool
	)
	for _, opt := range p.SellingOptions {
		if opt.ID == optionID {
			found = true
			wasDefault = opt.IsDefault
			continue
		}
		kept = append(kept, opt)
	}
	if !found {
		return nil, ErrNotFound
	}
	if wasDefault {
		kept[0].IsDefault = true
	}
	return s.saveOptions(ctx, productID, kept)
}

// SetDefaultOption marks one option as default and demotes the rest.
func (s *Service) SetDefaultOption(ctx context.Context, productID, optionID int64) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	found := false
	opts := append([]SellingOption{}, p.SellingOptions...)
	for i := range opts {
		opts[i].IsDefault = opts[i].ID == optionID
		if opts[i].IsDefault {
			found = true
		}
	}
	if !found {
		return nil, ErrNotFound
	}
	return s.saveOptions(ctx, productID, opts)
}

func (s *Service) saveOptions(ctx context.Context, productID int64, opts []SellingOption) (*Product, error) {
	var defaultPrice float64
	for _, opt := range opts {
		if opt.IsDefault {
			defaultPrice = opt.Price
		}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ReplaceOptions(ctx, productID, opts); err != nil {
			return err
		}
		return tx.UpdateProductSellingPrice(ctx, productID, defaultPrice)
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "product_options_update", "products", productID, nil)
	return s.repo.GetProduct(ctx, productID)
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID, _ := shared.ActorFromContext(ctx)
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}

func toOptions(productID int64, drafts []SellingOptionDraft) []SellingOption {
	out := make([]SellingOption, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, SellingOption{ProductID: productID, Unit: d.Unit, Price: d.Price, IsDefault: d.IsDefault})
	}
	return out
}
