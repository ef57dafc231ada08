package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ticketflow/ticketflow/internal/auth"
	"github.com/ticketflow/ticketflow/internal/authz"
	"github.com/ticketflow/ticketflow/internal/domain"
	"github.com/ticketflow/ticketflow/internal/repository"
	apperrors "github.com/ticketflow/ticketflow/pkg/util"
)

// UserService handles administrator user management.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, bcryptCost int) *UserService {
	return &UserService{users: users, bcryptCost: bcryptCost}
}

// UserCreateInput describes an admin-created account.
type UserCreateInput struct {
	Username string
	Email    string
	Password string
	FullName string
	Role     domain.Role
}

// List returns all users.
func (s *UserService) List(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if err := authz.Check(actor, authz.ActionManageUsers, nil); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// Get returns one user by ID.
func (s *UserService) Get(ctx context.Context, actor *domain.User, id string) (*domain.User, error) {
	if err := authz.Check(actor, authz.ActionManageUsers, nil); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// ListAgents returns enabled support agents, for the assignment flow.
// Available to staff, not just administrators.
func (s *UserService) ListAgents(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if err := authz.Check(actor, authz.ActionAssign, nil); err != nil {
		return nil, err
	}
	agents, err := s.users.ListByRole(ctx, domain.RoleSupportAgent)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	enabled := agents[:0]
	for _, agent := range agents {
		if agent.Enabled {
			enabled = append(enabled, agent)
		}
	}
	return enabled, nil
}

// Create adds a user with an explicit role.
func (s *UserService) Create(ctx context.Context, actor *domain.User, input UserCreateInput) (*domain.User, error) {
	if err := authz.Check(actor, authz.ActionManageUsers, nil); err != nil {
		return nil, err
	}
	if input.Username == "" || input.Email == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("username, email, password required", nil)
	}
	if !domain.ValidRole(input.Role) {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": input.Role})
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		FullName:     input.FullName,
		Role:         input.Role,
		Enabled:      true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("username or email already registered", nil)
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// UpdateRole changes a user's role. Roles are immutable except through
// this administrator action.
func (s *UserService) UpdateRole(ctx context.Context, actor *domain.User, id string, role domain.Role) (*domain.User, error) {
	if err := authz.Check(actor, authz.ActionManageUsers, nil); err != nil {
		return nil, err
	}
	if !domain.ValidRole(role) {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Role = role
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ToggleEnabled flips the enabled flag. Disabling a user locks them out of
// login and every guarded action; their tickets and comments remain.
func (s *UserService) ToggleEnabled(ctx context.Context, actor *domain.User, id string) (*domain.User, error) {
	if err := authz.Check(actor, authz.ActionManageUsers, nil); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Enabled = !user.Enabled
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Delete removes a user account.
func (s *UserService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if err := authz.Check(actor, authz.ActionManageUsers, nil); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", map[string]any{"user_id": id})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *UserService) load(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// SeedDefaultUsers creates the default admin/agent/user accounts when the
// users table is empty.
func SeedDefaultUsers(ctx context.Context, users repository.UserRepository, bcryptCost int, logger *zap.Logger) error {
	count, err := users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []struct {
		username, email, password, fullName string
		role                                domain.Role
	}{
		{"admin", "admin@ticketflow.local", "admin123", "System Administrator", domain.RoleAdmin},
		{"agent", "agent@ticketflow.local", "agent123", "Support Agent", domain.RoleSupportAgent},
		{"user", "user@ticketflow.local", "user123", "Test User", domain.RoleUser},
	}
	for _, d := range defaults {
		hash, err := auth.HashPassword(d.password, bcryptCost)
		if err != nil {
			return err
		}
		user := &domain.User{
			Username:     d.username,
			Email:        d.email,
			PasswordHash: hash,
			FullName:     d.fullName,
			Role:         d.role,
			Enabled:      true,
		}
		if err := users.Create(ctx, user); err != nil {
			return err
		}
		logger.Info("seeded default user", zap.String("username", d.username), zap.String("role", string(d.role)))
	}
	return nil
}
