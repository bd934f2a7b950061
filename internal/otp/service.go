package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	codeMin      = 100000
	codeSpan     = 900000
	defaultTTL   = 10 * time.Minute
	bcryptRounds = 10
)

var (
	// ErrInvalidEmail indicates the issue request carried no usable address.
	ErrInvalidEmail = errors.New("otp: invalid email")
	// ErrInvalidOrExpired is returned for every verification failure: missing
	// record, expired record, and code mismatch are deliberately
	// indistinguishable so callers cannot enumerate which one occurred.
	ErrInvalidOrExpired = errors.New("otp: invalid or expired code")

	errMissingDatabase = errors.New("otp: database connection required")
	errMissingSender   = errors.New("otp: sender required")
)

// Sender delivers a plaintext passcode out-of-band to the address.
type Sender interface {
	SendCode(ctx context.Context, email, code string) error
}

// ServiceConfig bundles the dependencies for issuing and verifying passcodes.
type ServiceConfig struct {
	Database *gorm.DB
	Sender   Sender
	TTL      time.Duration
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service issues hashed one-time passcodes and consumes them on verification.
type Service struct {
	db     *gorm.DB
	sender Sender
	ttl    time.Duration
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the OTP service with sane defaults.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Sender == nil {
		return nil, errMissingSender
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		sender: cfg.Sender,
		ttl:    ttl,
		clock:  clock,
		logger: logger,
	}, nil
}

// Issue draws a fresh 6-digit code, persists its hash with a 10 minute expiry
// and attempts delivery. A delivery failure is logged but does not fail the
// call: the ledger entry is already persisted and stays consumable should the
// code reach the user through another channel. Outstanding codes for the same
// email are not invalidated.
func (s *Service) Issue(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("otp: generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcryptRounds)
	if err != nil {
		return fmt.Errorf("otp: hash code: %w", err)
	}

	now := s.clock().UTC()
	record := Record{
		Email:     email,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("otp: store record: %w", err)
	}

	if err := s.sender.SendCode(ctx, email, code); err != nil {
		s.logger.Warn("otp delivery failed", zap.String("email", email), zap.Error(err))
	}

	return nil
}

// Verify consumes the newest outstanding code for the email. On a match every
// ledger entry for the email is deleted, invalidating any other outstanding
// codes. All failure modes collapse into ErrInvalidOrExpired.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return ErrInvalidOrExpired
	}

	var record Record
	err := s.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC, id DESC").
		First(&record).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidOrExpired
	}
	if err != nil {
		return fmt.Errorf("otp: lookup record: %w", err)
	}

	// expiry boundary counts as expired
	if !record.ExpiresAt.After(s.clock().UTC()) {
		return ErrInvalidOrExpired
	}

	if bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(code)) != nil {
		return ErrInvalidOrExpired
	}

	if err := s.db.WithContext(ctx).Where("email = ?", email).Delete(&Record{}).Error; err != nil {
		return fmt.Errorf("otp: consume records: %w", err)
	}

	return nil
}

func generateCode() (string, error) {
	offset, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(codeMin+offset.Int64(), 10), nil
}
