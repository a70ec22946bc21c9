package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/skolar-erp/skolar/internal/shared"
	"github.com/skolar-erp/skolar/internal/users"
)

// UserStore resolves identities for credential checks.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*users.User, error)
}

// Service wraps authentication business rules. Identity itself is owned by
// the users package; this service only verifies credentials and feeds the
// audit trail through its caller.
type Service struct {
	store UserStore
}

// NewService constructs a new Service.
func NewService(store UserStore) *Service {
	return &Service{store: store}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*users.User, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}
