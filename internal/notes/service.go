package notes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultTitle = "Untitled Note"

var (
	// ErrNoteNotFound covers both absent notes and notes owned by another user.
	ErrNoteNotFound = errors.New("notes: note not found")
	// ErrInvalidUserID indicates an empty owner identifier.
	ErrInvalidUserID = errors.New("notes: user id required")

	errMissingDatabase = errors.New("notes: database connection required")
)

// ServiceConfig describes the dependencies of the notes service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service provides per-user note CRUD.
type Service struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewService constructs the notes service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, clock: clock}, nil
}

// List returns all notes owned by the user, most recently updated first.
func (s *Service) List(ctx context.Context, userID string) ([]Note, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	var records []Note
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&records).
		Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Create stores a new note for the user. Empty titles fall back to a default.
func (s *Service) Create(ctx context.Context, userID, title, content string) (Note, error) {
	if strings.TrimSpace(userID) == "" {
		return Note{}, ErrInvalidUserID
	}
	if strings.TrimSpace(title) == "" {
		title = defaultTitle
	}
	now := s.clock().UTC()
	record := Note{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return Note{}, err
	}
	return record, nil
}

// Get fetches a single note owned by the user.
func (s *Service) Get(ctx context.Context, userID, noteID string) (Note, error) {
	if strings.TrimSpace(userID) == "" {
		return Note{}, ErrInvalidUserID
	}
	var record Note
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", noteID, userID).
		First(&record).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Note{}, ErrNoteNotFound
	}
	if err != nil {
		return Note{}, err
	}
	return record, nil
}

// Update overwrites the title and content of a note owned by the user.
func (s *Service) Update(ctx context.Context, userID, noteID, title, content string) (Note, error) {
	if strings.TrimSpace(userID) == "" {
		return Note{}, ErrInvalidUserID
	}
	result := s.db.WithContext(ctx).
		Model(&Note{}).
		Where("id = ? AND user_id = ?", noteID, userID).
		Updates(map[string]interface{}{
			"title":      title,
			"content":    content,
			"updated_at": s.clock().UTC(),
		})
	if result.Error != nil {
		return Note{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Note{}, ErrNoteNotFound
	}
	return s.Get(ctx, userID, noteID)
}

// Delete removes a note owned by the user.
func (s *Service) Delete(ctx context.Context, userID, noteID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", noteID, userID).
		Delete(&Note{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}
