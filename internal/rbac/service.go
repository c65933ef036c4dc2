package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested user does not exist.
var ErrNotFound = errors.New("rbac: not found")

// ErrPermissionDenied indicates a capability check failure at the service layer.
var ErrPermissionDenied = errors.New("rbac: permission denied")

// Service resolves user roles and effective permissions.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// UserRole fetches the role assigned to a user.
func (s *Service) UserRole(ctx context.Context, userID int64) (Role, error) {
	var role string
	err := s.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 AND is_active`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("rbac: query role: %w", err)
	}
	return Role(role), nil
}

// EffectivePermissions returns the permission names granted to a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	role, err := s.UserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Permissions(role), nil
}

// Require checks a single permission for the user, for use inside services
// that must stay guarded even when invoked off the HTTP path.
func (s *Service) Require(ctx context.Context, userID int64, perm string) error {
	granted, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return err
	}
	for _, p := range granted {
		if p == perm {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrPermissionDenied, perm)
}
