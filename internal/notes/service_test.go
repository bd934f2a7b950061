package notes

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Note{}); err != nil {
		t.Fatalf("failed to migrate note schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{Database: openTestDB(t)})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func TestCreateAndListNotes(t *testing.T) {
	service := newTestService(t)

	created, err := service.Create(context.Background(), "user-1", "Groceries", "milk, eggs")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated note id")
	}

	records, err := service.List(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 1 || records[0].Title != "Groceries" {
		t.Fatalf("unexpected listing %#v", records)
	}
}

func TestCreateDefaultsEmptyTitle(t *testing.T) {
	service := newTestService(t)

	created, err := service.Create(context.Background(), "user-1", "  ", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Title != "Untitled Note" {
		t.Fatalf("unexpected default title %q", created.Title)
	}
}

func TestUpdateNote(t *testing.T) {
	clockNow := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service, err := NewService(ServiceConfig{
		Database: openTestDB(t),
		Clock:    func() time.Time { return clockNow },
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}

	created, err := service.Create(context.Background(), "user-1", "Draft", "v1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	clockNow = clockNow.Add(time.Hour)
	updated, err := service.Update(context.Background(), "user-1", created.ID, "Final", "v2")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Title != "Final" || updated.Content != "v2" {
		t.Fatalf("unexpected note after update %#v", updated)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("expected updated_at to advance")
	}
}

func TestNotesAreScopedByUser(t *testing.T) {
	service := newTestService(t)

	created, err := service.Create(context.Background(), "owner", "Private", "secret")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := service.Get(context.Background(), "intruder", created.ID); !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("foreign note must be indistinguishable from absent, got %v", err)
	}
	if _, err := service.Update(context.Background(), "intruder", created.ID, "x", "y"); !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("foreign update must report not found, got %v", err)
	}
	if err := service.Delete(context.Background(), "intruder", created.ID); !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("foreign delete must report not found, got %v", err)
	}

	if _, err := service.Get(context.Background(), "owner", created.ID); err != nil {
		t.Fatalf("owner access failed: %v", err)
	}
}

func TestDeleteNote(t *testing.T) {
	service := newTestService(t)

	created, err := service.Create(context.Background(), "user-1", "Trash me", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := service.Delete(context.Background(), "user-1", created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := service.Delete(context.Background(), "user-1", created.ID); !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
