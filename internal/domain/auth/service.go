package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bread/internal/core/apperror"
	"bread/internal/core/id"
	"bread/internal/core/tx"
	"bread/pkg/logger"
)

// ServiceConfig holds auth service configuration.
type ServiceConfig struct {
	MaxLoginAttempts  int
	LockDuration      time.Duration
	PasswordMinLength int
}

// DefaultServiceConfig returns default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxLoginAttempts:  5,
		LockDuration:      15 * time.Minute,
		PasswordMinLength: 8,
	}
}

// Permission builds the code "<app>.<verb>_<model>" checked by the views.
func Permission(app, verb, model string) string {
	return app + "." + verb + "_" + model
}

// Service provides authentication logic.
type Service struct {
	users      UserRepository
	txManager  tx.Manager
	jwtService *JWTService
	config     ServiceConfig
	now        func() time.Time
}

// NewService creates a new auth service.
func NewService(users UserRepository, txManager tx.Manager, jwtService *JWTService, config ServiceConfig) *Service {
	return &Service{
		users:      users,
		txManager:  txManager,
		jwtService: jwtService,
		config:     config,
		now:        time.Now,
	}
}

// JWT returns the token service used to validate requests.
func (s *Service) JWT() *JWTService {
	return s.jwtService
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CreateUser registers a user with the given permissions.
func (s *Service) CreateUser(ctx context.Context, email, password string, permissions []string, isAdmin bool) (*User, error) {
	email = strings.TrimSpace(email)
	fields := apperror.FieldErrors{}
	if email == "" {
		fields.Add("email", "This field is required.")
	}
	if len(password) < s.config.PasswordMinLength {
		fields.Add("password", fmt.Sprintf("Ensure this value has at least %d characters.", s.config.PasswordMinLength))
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email exists: %w", err)
	}
	if exists {
		return nil, apperror.NewDuplicate("user", "email", email)
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := NewUser(email, passwordHash)
	user.Permissions = permissions
	user.IsAdmin = isAdmin

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "user created",
		"user_id", user.ID,
		"email", user.Email,
		"admin", isAdmin)

	return user, nil
}

// Login authenticates user and returns an access token.
func (s *Service) Login(ctx context.Context, creds Credentials) (*Token, *User, error) {
	now := s.now()

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(creds.Email))
	if err != nil {
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}
	if err := user.CanLogin(now); err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		user.RecordFailedLogin(now, s.config.MaxLoginAttempts, s.config.LockDuration)
		if err := s.users.Update(ctx, user); err != nil {
			logger.Warn(ctx, "failed to record login attempt", "user_id", user.ID, "error", err)
		}
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}

	accessToken, expiresAt, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate access token: %w", err)
	}

	user.RecordSuccessfulLogin(now)
	if err := s.users.Update(ctx, user); err != nil {
		logger.Warn(ctx, "failed to record login", "user_id", user.ID, "error", err)
	}

	logger.Info(ctx, "user logged in",
		"user_id", user.ID,
		"email", user.Email)

	return &Token{AccessToken: accessToken, ExpiresAt: expiresAt, TokenType: "Bearer"}, user, nil
}

// GetUserByID retrieves a user.
func (s *Service) GetUserByID(ctx context.Context, userID id.ID) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.NewNotFound("user", userID.String())
	}
	return user, nil
}
