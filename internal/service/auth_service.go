package service

import (
	"context"
	"fmt"
	"strings"

	"boopsite/internal/domain"
)

// TokenIssuer mints session tokens for authenticated users.
type TokenIssuer interface {
	Issue(user *domain.User) (string, error)
}

// Session is the outcome of a successful login.
type Session struct {
	AccessToken string
	User        *domain.User
}

// AuthService describes credential checks and session issuance.
type AuthService interface {
	// ValidateCredentials returns the sanitized user when email and password
	// match, and (nil, nil) when they do not.
	ValidateCredentials(ctx context.Context, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	LoginWithFingerprint(ctx context.Context, hash string) (*Session, error)
	// RegisterFingerprint links hash to the account under email. It does not
	// check a password; callers verify credentials first.
	RegisterFingerprint(ctx context.Context, email, hash string) (*domain.User, error)
}

type authService struct {
	users  UserService
	hasher PasswordHasher
	tokens TokenIssuer
}

func NewAuthService(users UserService, hasher PasswordHasher, tokens TokenIssuer) AuthService {
	return &authService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
	}
}

func (s *authService) ValidateCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, nil
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return sanitizeUser(user), nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.ValidateCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	return s.issue(user)
}

func (s *authService) LoginWithFingerprint(ctx context.Context, hash string) (*Session, error) {
	user, err := s.users.FindByFingerprint(ctx, strings.TrimSpace(hash))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("invalid fingerprint: %w", domain.ErrUnauthorized)
	}
	return s.issue(sanitizeUser(user))
}

func (s *authService) RegisterFingerprint(ctx context.Context, email, hash string) (*domain.User, error) {
	return s.users.LinkFingerprint(ctx, email, hash)
}

func (s *authService) issue(user *domain.User) (*Session, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: token, User: user}, nil
}
