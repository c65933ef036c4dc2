package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/importpro/importpro/internal/groupage"
	"github.com/importpro/importpro/internal/shared"
)

// DefaultPerPage is the catalog page size.
const DefaultPerPage = 8

// ArticleRequest carries the article form payload.
type ArticleRequest struct {
	Name        string `json:"name" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Supplier    string `json:"supplier"`
}

// AuditRecorder captures audit events for mutations.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements the article catalog workflows.
type Service struct {
	repo   RepositoryPort
	audit  AuditRecorder
	logger *slog.Logger
}

// NewService constructs the catalog service.
func NewService(repo RepositoryPort, audit AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Create registers a new article template.
func (s *Service) Create(ctx context.Context, req ArticleRequest) (*Article, error) {
	a, err := articleFromRequest(req)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = time.Now().UTC()
	id, err := s.repo.Create(ctx, a)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "article_create", id, map[string]any{"name": a.Name})
	return s.repo.Get(ctx, id)
}

// Update rewrites an article.
func (s *Service) Update(ctx context.Context, id int64, req ArticleRequest) (*Article, error) {
	a, err := articleFromRequest(req)
	if err != nil {
		return nil, err
	}
	a.ID = id
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "article_update", id, nil)
	return s.repo.Get(ctx, id)
}

// Delete removes an article. Stock already purchased from it is not
// touched.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "article_delete", id, nil)
	return nil
}

// Get returns one article.
func (s *Service) Get(ctx context.Context, id int64) (*Article, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of articles filtered by search term and category.
func (s *Service) List(ctx context.Context, search, category string, page int) ([]Article, int, error) {
	p := shared.NewPagination(page, DefaultPerPage, 0)
	return s.repo.List(ctx, strings.TrimSpace(search), strings.TrimSpace(category), p)
}

// Categories returns the distinct categories in use.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

// ArticleTemplate resolves an article for the stock purchase flow.
func (s *Service) ArticleTemplate(ctx context.Context, id int64) (groupage.ArticleTemplate, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return groupage.ArticleTemplate{}, fmt.Errorf("%w: article %d", groupage.ErrNotFound, id)
	}
	return groupage.ArticleTemplate{
		ID:       a.ID,
		Name:     a.Name,
		Category: a.Category,
		ImageURL: a.ImageURL,
		Supplier: a.Supplier,
	}, nil
}

func articleFromRequest(req ArticleRequest) (Article, error) {
	name := strings.TrimSpace(req.Name)
	category := strings.TrimSpace(req.Category)
	if name == "" {
		return Article{}, fmt.Errorf("%w: name required", ErrInvalidArticle)
	}
	if category == "" {
		return Article{}, fmt.Errorf("%w: category required", ErrInvalidArticle)
	}
	return Article{
		Name:        name,
		Category:    category,
		Description: strings.TrimSpace(req.Description),
		ImageURL:    strings.TrimSpace(req.ImageURL),
		Supplier:    strings.TrimSpace(req.Supplier),
	}, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID, _ := shared.ActorFromContext(ctx)
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "articles",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}

var _ groupage.ArticleSource = (*Service)(nil)
