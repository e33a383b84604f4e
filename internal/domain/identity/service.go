package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medstock/medstock/internal/domain/shared"
	"github.com/medstock/medstock/internal/platform/auth"
)

type Service struct {
	repo     Repository
	jwtCfg   auth.JWTConfig
	tokenTTL time.Duration
}

func NewService(repo Repository, jwtCfg auth.JWTConfig, tokenTTL time.Duration) *Service {
	return &Service{repo: repo, jwtCfg: jwtCfg, tokenTTL: tokenTTL}
}

func requireAdmin(ctx context.Context) error {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return fmt.Errorf("no authenticated principal: %w", shared.ErrPermissionDenied)
	}
	if p.Role != auth.RoleAdmin {
		return fmt.Errorf("role %s may not administer users: %w", p.Role, shared.ErrPermissionDenied)
	}
	return nil
}

// CreateInput carries a new account. The plaintext password is hashed here
// and never stored.
type CreateInput struct {
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Password   string    `json:"password"`
	Role       auth.Role `json:"role"`
	LocationID uuid.UUID `json:"location_id"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	u, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateBootstrap creates an account without a principal check. Used by the
// CLI to seed the first administrator; never exposed over HTTP.
func (s *Service) CreateBootstrap(ctx context.Context, in CreateInput) (*User, error) {
	return s.create(ctx, in)
}

func (s *Service) create(ctx context.Context, in CreateInput) (*User, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("name is required: %w", shared.ErrValidation)
	}
	if !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("valid email is required: %w", shared.ErrValidation)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters: %w", shared.ErrValidation)
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q: %w", in.Role, shared.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         in.Role,
		LocationID:   in.LocationID,
		Active:       true,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, limit, offset)
}

// AssignRole changes a user's role and unit assignment.
func (s *Service) AssignRole(ctx context.Context, id uuid.UUID, role auth.Role, locationID uuid.UUID) (*User, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q: %w", role, shared.ErrValidation)
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Role = role
	u.LocationID = locationID
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SetActive enables or disables an account. Disabled accounts cannot log in.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Active = active
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate verifies credentials and returns the user plus a signed
// token. Unknown emails and wrong passwords produce the same error so the
// response does not reveal which accounts exist.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, string, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("invalid credentials: %w", shared.ErrPermissionDenied)
	}
	if !u.Active {
		return nil, "", fmt.Errorf("account disabled: %w", shared.ErrPermissionDenied)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", fmt.Errorf("invalid credentials: %w", shared.ErrPermissionDenied)
	}
	token, err := auth.IssueToken(u.Principal(), s.jwtCfg, s.tokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return u, token, nil
}
