package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidEmail indicates the supplied email is empty or unusable as a key.
	ErrInvalidEmail = errors.New("users: invalid email")
	// ErrUserNotFound indicates no identity exists for the requested id.
	ErrUserNotFound = errors.New("users: user not found")
)

// Attributes carries the optional profile fields supplied by a login provider.
// FallbackName is used only when creating a brand new identity with no
// provider-supplied name; it never overwrites an existing record.
type Attributes struct {
	Name         string
	FallbackName string
	Picture      string
	Provider     string
}

// ServiceConfig describes the dependencies required for identity resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service manages canonical user identities keyed by email.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, now: clock}, nil
}

// ResolveOrCreate returns the identity for the email, creating it when absent.
// Creation races on the same email collapse onto the unique index: the insert
// uses ON CONFLICT DO NOTHING and the winner is read back, so concurrent
// first-logins produce exactly one row.
//
// For an existing identity only a non-empty provider-supplied name is written;
// picture and provider are left untouched.
func (s *Service) ResolveOrCreate(ctx context.Context, email string, attrs Attributes) (User, error) {
	email = normalize(email)
	if email == "" {
		return User{}, ErrInvalidEmail
	}

	candidate := User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      normalize(attrs.Name),
		Picture:   normalize(attrs.Picture),
		Provider:  attrs.Provider,
		CreatedAt: s.now().UTC(),
	}
	if candidate.Name == "" {
		candidate.Name = normalize(attrs.FallbackName)
	}
	if candidate.Provider == "" {
		candidate.Provider = ProviderGoogle
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&candidate).
		Error
	if err != nil {
		return User{}, err
	}

	var user User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return User{}, err
	}

	if name := normalize(attrs.Name); name != "" && name != user.Name {
		if err := s.db.WithContext(ctx).Model(&User{}).
			Where("email = ?", email).
			Update("name", name).
			Error; err != nil {
			return User{}, err
		}
		user.Name = name
	}

	return user, nil
}

// GetByID fetches the identity for a canonical user id.
func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, ErrUserNotFound
	}
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}
