package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/apperrors"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/database"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/testhelpers"
)

func TestConnectionRepository_CRUD(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewConnectionRepository(&database.DB{Pool: testDB.Pool})
	ctx := context.Background()

	userID := uuid.New()
	conn := &models.Connection{
		UserID:           userID,
		Name:             "warehouse",
		ConnectionString: "postgres://u:p@localhost:5432/wh",
		SourceType:       models.SourcePostgres,
	}

	if err := repo.Create(ctx, conn); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if conn.ID == uuid.Nil {
		t.Fatal("Create() should fill in the generated ID")
	}

	got, err := repo.GetByID(ctx, conn.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "warehouse" || got.UserID != userID {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.ConnectionString != conn.ConnectionString {
		t.Error("stored connection string does not round-trip")
	}

	list, err := repo.ListByUser(ctx, userID, models.SourcePostgres)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != conn.ID {
		t.Errorf("ListByUser() = %+v", list)
	}

	// Other users see nothing.
	other, err := repo.ListByUser(ctx, uuid.New(), models.SourcePostgres)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other user sees %d connections", len(other))
	}

	if err := repo.Delete(ctx, conn.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, err = repo.GetByID(ctx, conn.ID)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("GetByID after delete = %v, want ErrNotFound", err)
	}
	var cErr *apperrors.ConnectionError
	if !errors.As(err, &cErr) {
		t.Errorf("GetByID after delete = %T, want *apperrors.ConnectionError", err)
	}
}

func TestConnectionRepository_ListOrdersByCreation(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewConnectionRepository(&database.DB{Pool: testDB.Pool})
	ctx := context.Background()

	userID := uuid.New()
	for _, name := range []string{"first", "second", "third"} {
		conn := &models.Connection{
			UserID:           userID,
			Name:             name,
			ConnectionString: "postgres://u:p@localhost:5432/" + name,
			SourceType:       models.SourcePostgres,
		}
		if err := repo.Create(ctx, conn); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}

	list, err := repo.ListByUser(ctx, userID, models.SourcePostgres)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d connections, want 3", len(list))
	}
	if list[0].Name != "first" {
		t.Errorf("oldest connection should come first, got %q", list[0].Name)
	}
}

func TestConnectionRepository_DeleteUnknown(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewConnectionRepository(&database.DB{Pool: testDB.Pool})

	err := repo.Delete(context.Background(), uuid.New())
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Delete(unknown) = %v, want ErrNotFound", err)
	}
}
