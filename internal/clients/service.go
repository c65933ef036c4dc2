package clients

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/importpro/importpro/internal/shared"
)

// DefaultPerPage is the registry page size.
const DefaultPerPage = 10

// CreateClientRequest carries the client form payload.
type CreateClientRequest struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Whatsapp string `json:"whatsapp"`
	City     string `json:"city"`
	Email    string `json:"email" validate:"omitempty,email"`
	Address  string `json:"address"`
}

// UpdateClientRequest merges editable client fields. Nil pointers leave
// the stored value untouched.
type UpdateClientRequest struct {
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Whatsapp *string `json:"whatsapp,omitempty"`
	City     *string `json:"city,omitempty"`
	Email    *string `json:"email,omitempty"`
	Address  *string `json:"address,omitempty"`
}

// AuditRecorder captures audit events for mutations.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements the client registry workflows.
type Service struct {
	repo        RepositoryPort
	audit       AuditRecorder
	logger      *slog.Logger
	phoneRegion string
}

// NewService constructs the client service. phoneRegion is the ISO 3166-1
// region used to parse numbers entered without a country prefix.
func NewService(repo RepositoryPort, audit AuditRecorder, logger *slog.Logger, phoneRegion string) *Service {
	return &Service{repo: repo, audit: audit, logger: logger, phoneRegion: phoneRegion}
}

// Create registers a new client. The phone number is normalized to E.164
// and must be unique across the registry.
func (s *Service) Create(ctx context.Context, req CreateClientRequest) (*Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidClient)
	}
	normalized, err := NormalizePhone(req.Phone, s.phoneRegion)
	if err != nil {
		return nil, err
	}

	whatsapp := strings.TrimSpace(req.Whatsapp)
	if whatsapp == "" {
		whatsapp = strings.TrimSpace(req.Phone)
	}
	city := strings.TrimSpace(req.City)
	if city == "" {
		city = "Non renseigné"
	}
	c := Client{
		Name:            name,
		Phone:           strings.TrimSpace(req.Phone),
		PhoneNormalized: normalized,
		Whatsapp:        whatsapp,
		City:            city,
		Email:           strings.TrimSpace(req.Email),
		Address:         strings.TrimSpace(req.Address),
		DateAdded:       time.Now().UTC(),
	}
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "client_create", id, map[string]any{"name": name})
	return s.repo.Get(ctx, id)
}

// Update applies the non-nil fields of the request onto the stored client.
func (s *Service) Update(ctx context.Context, id int64, req UpdateClientRequest) (*Client, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name required", ErrInvalidClient)
		}
		current.Name = name
	}
	if req.Phone != nil {
		normalized, err := NormalizePhone(*req.Phone, s.phoneRegion)
		if err != nil {
			return nil, err
		}
		current.Phone = strings.TrimSpace(*req.Phone)
		current.PhoneNormalized = normalized
	}
	if req.Whatsapp != nil {
		current.Whatsapp = strings.TrimSpace(*req.Whatsapp)
	}
	if req.City != nil {
		current.City = strings.TrimSpace(*req.City)
	}
	if req.Email != nil {
		current.Email = strings.TrimSpace(*req.Email)
	}
	if req.Address != nil {
		current.Address = strings.TrimSpace(*req.Address)
	}

	if err := s.repo.Update(ctx, *current); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "client_update", id, nil)
	return s.repo.Get(ctx, id)
}

// Delete removes a client. Clients with order history stay.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "client_delete", id, nil)
	return nil
}

// Get returns one client.
func (s *Service) Get(ctx context.Context, id int64) (*Client, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of clients filtered by a free-text search over name
// and phone.
func (s *Service) List(ctx context.Context, search string, page int) ([]Client, int, error) {
	p := shared.NewPagination(page, DefaultPerPage, 0)
	return s.repo.List(ctx, strings.TrimSpace(search), p)
}

// History returns the client's orders, most recent first.
func (s *Service) History(ctx context.Context, id int64) ([]OrderSummary, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID, _ := shared.ActorFromContext(ctx)
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "clients",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}
