package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/conduit/conduit/config"
	"github.com/conduit/conduit/internal/core/schema"
	"github.com/conduit/conduit/internal/storage/database"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.NewClient(&config.DatabaseConfig{Driver: database.DriverSQLite, Path: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sc := userSchema()
	sc.CreatedAt = time.Now().UTC()
	sc.UpdatedAt = sc.CreatedAt
	if err := schema.NewRepository(db).Create(ctx, sc); err != nil {
		t.Fatalf("seed schema: %v", err)
	}
	return NewRepository(db)
}

func storedDefinition(t *testing.T, id, name string) *Definition {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	draft := mustDraft(t, adultsDraft)
	draft.Name = name
	return newDefinition(id, draft, now, now)
}

func TestRepository_RoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	def := storedDefinition(t, "ep1", "adults")
	if err := repo.Create(ctx, def); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.FindByID(ctx, "ep1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("expected definition, got nil")
	}

	want, _ := json.Marshal(def.Queries)
	have, _ := json.Marshal(got.Queries)
	if string(want) != string(have) {
		t.Errorf("queries changed in storage:\n%s\n%s", want, have)
	}
	if got.Operation != OperationGet || got.SelectedSchema != "users" {
		t.Errorf("unexpected definition %+v", got)
	}
	if len(got.Inputs) != 1 || got.Inputs[0].Location != LocationQuery {
		t.Errorf("unexpected inputs %+v", got.Inputs)
	}
	if got.Assignments == nil {
		t.Error("expected empty assignments to load as an empty list")
	}
}

func TestRepository_FindByIDMissing(t *testing.T) {
	repo := newTestRepository(t)

	got, err := repo.FindByID(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
}

func TestRepository_UniqueName(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.Create(ctx, storedDefinition(t, "ep1", "adults")); err != nil {
		t.Fatal(err)
	}
	err := repo.Create(ctx, storedDefinition(t, "ep2", "adults"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	taken, err := repo.ExistsByName(ctx, "adults", "")
	if err != nil || !taken {
		t.Errorf("ExistsByName() = %v, %v; want true", taken, err)
	}
	taken, err = repo.ExistsByName(ctx, "adults", "ep1")
	if err != nil || taken {
		t.Errorf("ExistsByName() excluding itself = %v, %v; want false", taken, err)
	}
}

func TestRepository_FindAllAndCount(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, name := range []string{"adults", "admins", "teens"} {
		if err := repo.Create(ctx, storedDefinition(t, "id-"+name, name)); err != nil {
			t.Fatal(err)
		}
	}

	defs, total, err := repo.FindAll(ctx, ListFilter{Name: "AD", Limit: 10})
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	if total != 2 || len(defs) != 2 {
		t.Errorf("expected 2 matches for prefix ad, got total=%d len=%d", total, len(defs))
	}

	get := int(OperationGet)
	defs, total, err = repo.FindAll(ctx, ListFilter{Schema: "users", Operation: &get, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(defs) != 1 {
		t.Errorf("expected total 3 with one row returned, got total=%d len=%d", total, len(defs))
	}

	n, err := repo.CountBySchema(ctx, "users")
	if err != nil || n != 3 {
		t.Errorf("CountBySchema() = %d, %v; want 3", n, err)
	}
}

func TestRepository_UpdateAndDelete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	def := storedDefinition(t, "ep1", "adults")
	if err := repo.Create(ctx, def); err != nil {
		t.Fatal(err)
	}

	def.Paginated = true
	def.UpdatedAt = def.UpdatedAt.Add(time.Minute)
	if err := repo.Update(ctx, def); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.FindByID(ctx, "ep1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Paginated {
		t.Error("update was not persisted")
	}

	if err := repo.Delete(ctx, "ep1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, _ := repo.FindByID(ctx, "ep1"); got != nil {
		t.Error("expected definition to be gone")
	}
}
