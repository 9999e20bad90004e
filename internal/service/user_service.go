package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"boopsite/internal/domain"
	"boopsite/internal/repository"
)

const minPasswordLength = 6

// PasswordHasher is the one-way hash used for stored secrets.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

// CreateUserInput carries the fields accepted when a user is created.
// An empty Role means domain.RoleUser.
type CreateUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domain.Role
}

// UpdateUserInput carries optional field changes; nil fields are left as is.
type UpdateUserInput struct {
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
	Role      *domain.Role
}

// UserService describes user directory operations.
//
// FindByEmail and FindByFingerprint are lookup primitives for authentication:
// they return (nil, nil) when nothing matches and the record still carries its
// hashes. Every other method returns sanitized users.
type UserService interface {
	Create(ctx context.Context, in CreateUserInput) (*domain.User, error)
	FindAll(ctx context.Context) ([]domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByFingerprint(ctx context.Context, hash string) (*domain.User, error)
	Update(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error)
	Remove(ctx context.Context, id string) error
	LinkFingerprint(ctx context.Context, email, hash string) (*domain.User, error)
	EnsureAdmin(ctx context.Context, email, password string) error
}

type userService struct {
	users  repository.UserRepository
	hasher PasswordHasher
	log    logrus.FieldLogger
}

func NewUserService(users repository.UserRepository, hasher PasswordHasher, log logrus.FieldLogger) UserService {
	return &userService{
		users:  users,
		hasher: hasher,
		log:    log,
	}
}

func (s *userService) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrInvalidInput)
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", role, domain.ErrInvalidInput)
	}

	existing, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("user with this email already exists: %w", domain.ErrConflict)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		IsActive:     true,
	}

	// a concurrent registration may still win the race; the store reports it
	// as domain.ErrConflict
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("user with this email already exists: %w", domain.ErrConflict)
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) FindAll(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, len(users))
	for i := range users {
		out[i] = *sanitizeUser(&users[i])
	}
	return out, nil
}

func (s *userService) FindByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

func (s *userService) FindByFingerprint(ctx context.Context, hash string) (*domain.User, error) {
	if hash == "" {
		return nil, nil
	}
	user, err := s.users.GetByFingerprint(ctx, hash)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

func (s *userService) Update(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error) {
	return s.apply(ctx, id, in)
}

// UpdateProfile is the self-service path: only names, email and password are
// applied; a supplied role is dropped.
func (s *userService) UpdateProfile(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error) {
	return s.apply(ctx, id, UpdateUserInput{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
}

func (s *userService) apply(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email == "" {
			return nil, fmt.Errorf("email must not be empty: %w", domain.ErrInvalidInput)
		}
		if email != user.Email {
			other, err := s.FindByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if other != nil {
				return nil, fmt.Errorf("user with this email already exists: %w", domain.ErrConflict)
			}
			user.Email = email
		}
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, fmt.Errorf("unknown role %q: %w", *in.Role, domain.ErrInvalidInput)
		}
		user.Role = *in.Role
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) Remove(ctx context.Context, id string) error {
	return s.users.Delete(ctx, id)
}

// LinkFingerprint attaches hash to the account registered under email.
// A hash already linked to a different account is a conflict.
func (s *userService) LinkFingerprint(ctx context.Context, email, hash string) (*domain.User, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, fmt.Errorf("fingerprint hash is required: %w", domain.ErrInvalidInput)
	}

	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", normalizeEmail(email), domain.ErrNotFound)
	}

	owner, err := s.FindByFingerprint(ctx, hash)
	if err != nil {
		return nil, err
	}
	if owner != nil && owner.ID != user.ID {
		return nil, fmt.Errorf("fingerprint already registered: %w", domain.ErrConflict)
	}

	user.FingerprintHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

// EnsureAdmin creates the bootstrap admin account when no user is registered
// under email yet.
func (s *userService) EnsureAdmin(ctx context.Context, email, password string) error {
	log := s.log.WithField("email", normalizeEmail(email))
	log.Info("checking for admin user")

	existing, err := s.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup admin user: %w", err)
	}
	if existing != nil {
		log.WithField("user_id", existing.ID).Info("admin user already exists")
		return nil
	}

	admin, err := s.Create(ctx, CreateUserInput{
		Email:     email,
		Password:  password,
		FirstName: "Admin",
		LastName:  "User",
		Role:      domain.RoleAdmin,
	})
	if err != nil {
		log.WithError(err).Error("failed to create admin user")
		return fmt.Errorf("create admin user: %w", err)
	}

	log.WithFields(logrus.Fields{
		"user_id": admin.ID,
		"role":    admin.Role,
	}).Info("admin user created")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password is required: %w", domain.ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, domain.ErrInvalidInput)
	}
	return nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
