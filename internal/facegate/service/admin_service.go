package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/BrandonDHaskell/facegate/internal/apperrors"
	"github.com/BrandonDHaskell/facegate/internal/auth"
	"github.com/BrandonDHaskell/facegate/internal/facegate/store"
)

const minPasswordLength = 6

var (
	ErrInvalidUsername = errors.New("username is required")
	ErrWeakPassword    = fmt.Errorf("password must be at least %d characters", minPasswordLength)
)

// AdminService manages administrator accounts and API logins.
type AdminService struct {
	store  store.AdminStore
	tokens *auth.TokenIssuer
	logger *zap.Logger
	cost   int
}

// NewAdminService builds the service. tokens may be nil for callers that
// only manage accounts, such as the CLI.
func NewAdminService(as store.AdminStore, tokens *auth.TokenIssuer, logger *zap.Logger) *AdminService {
	return &AdminService{store: as, tokens: tokens, logger: logger, cost: bcrypt.DefaultCost}
}

// SetHashCost lowers the bcrypt cost. Test-only.
func (s *AdminService) SetHashCost(cost int) { s.cost = cost }

// EnsureDefaultAdmin creates the given account when no admin exists yet.
func (s *AdminService) EnsureDefaultAdmin(ctx context.Context, username, password string) (bool, error) {
	n, err := s.store.CountAdmins(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := s.CreateAdmin(ctx, username, password); err != nil {
		return false, err
	}
	s.logger.Warn("default admin account created; change its password", zap.String("username", username))
	return true, nil
}

func (s *AdminService) CreateAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrInvalidUsername
	}
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.CreateAdmin(ctx, username, string(hash), time.Now().UTC()); err != nil {
		return err
	}
	s.logger.Info("admin created", zap.String("username", username))
	return nil
}

// Login checks the password and issues a bearer token. Unknown users and
// wrong passwords both return apperrors.ErrInvalidCredentials.
func (s *AdminService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	if s.tokens == nil {
		return "", time.Time{}, errors.New("token issuer not configured")
	}
	hash, err := s.store.GetAdminHash(ctx, strings.TrimSpace(username))
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", time.Time{}, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return "", time.Time{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		s.logger.Warn("admin login failed", zap.String("username", username))
		return "", time.Time{}, apperrors.ErrInvalidCredentials
	}
	return s.tokens.Issue(username)
}
