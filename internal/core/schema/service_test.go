package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/conduit/conduit/internal/core/validation"
	"github.com/conduit/conduit/internal/logging"
)

// mockStore keeps schemas in memory and mirrors the repository contract:
// lookups return nil, nil when nothing matches.
type mockStore struct {
	byID map[string]*Schema
}

func newMockStore() *mockStore {
	return &mockStore{byID: make(map[string]*Schema)}
}

func (m *mockStore) Create(ctx context.Context, s *Schema) error {
	for _, existing := range m.byID {
		if existing.Name == s.Name {
			return ErrConflict
		}
	}
	m.byID[s.ID] = s
	return nil
}

func (m *mockStore) GetByID(ctx context.Context, id string) (*Schema, error) {
	return m.byID[id], nil
}

func (m *mockStore) GetByName(ctx context.Context, name string) (*Schema, error) {
	for _, s := range m.byID {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockStore) List(ctx context.Context) ([]*Schema, error) {
	var out []*Schema
	for _, s := range m.byID {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockStore) Update(ctx context.Context, s *Schema) error {
	m.byID[s.ID] = s
	return nil
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	delete(m.byID, id)
	return nil
}

type staticRefs int

func (n staticRefs) CountBySchema(ctx context.Context, schemaID string) (int, error) {
	return int(n), nil
}

func newTestService(refs ReferenceCounter) (*Service, *mockStore) {
	store := newMockStore()
	return NewService(store, refs, validation.NewValidator(), logging.Discard()), store
}

func TestService_CreateAndGet(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, &CreateSchemaRequest{Name: "User", Fields: testSchema().Fields})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Error("Create should assign an id")
	}
	if created.CreatedAt.IsZero() || !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Error("Create should stamp matching created/updated times")
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "User" {
		t.Errorf("expected User, got %s", got.Name)
	}

	byName, err := svc.GetByName(ctx, "User")
	if err != nil || byName.ID != created.ID {
		t.Errorf("GetByName returned %v, %v", byName, err)
	}
}

func TestService_CreateDuplicate(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()
	req := &CreateSchemaRequest{Name: "User", Fields: testSchema().Fields}

	if _, err := svc.Create(ctx, req); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, req); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestService_CreateInvalid(t *testing.T) {
	svc, store := newTestService(nil)

	_, err := svc.Create(context.Background(), &CreateSchemaRequest{
		Name:   "User",
		Fields: map[string]*Field{"createdAt": {Type: TypeDate}},
	})
	if !validation.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.byID) != 0 {
		t.Error("invalid schema must not be stored")
	}
}

func TestService_GetNotFound(t *testing.T) {
	svc, _ := newTestService(nil)
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Fields(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from Fields, got %v", err)
	}
}

func TestService_Update(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, &CreateSchemaRequest{Name: "User", Fields: testSchema().Fields})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.Update(ctx, created.ID, &UpdateSchemaRequest{
		Fields: map[string]*Field{"email": {Type: TypeString}},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "User" {
		t.Errorf("name should be kept, got %s", updated.Name)
	}
	if _, ok := updated.Fields["email"]; !ok || len(updated.Fields) != 1 {
		t.Errorf("fields should be replaced, got %v", updated.Fields)
	}

	if _, err := svc.Update(ctx, "missing", &UpdateSchemaRequest{Name: "X"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_DeleteInUse(t *testing.T) {
	svc, store := newTestService(staticRefs(2))
	ctx := context.Background()

	created, err := svc.Create(ctx, &CreateSchemaRequest{Name: "User", Fields: testSchema().Fields})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, created.ID); !errors.Is(err, ErrInUse) {
		t.Errorf("expected ErrInUse, got %v", err)
	}
	if _, ok := store.byID[created.ID]; !ok {
		t.Error("schema in use must not be deleted")
	}
}

func TestService_Delete(t *testing.T) {
	svc, store := newTestService(staticRefs(0))
	ctx := context.Background()

	created, err := svc.Create(ctx, &CreateSchemaRequest{Name: "User", Fields: testSchema().Fields})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(store.byID) != 0 {
		t.Error("schema should be removed")
	}
	if err := svc.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestService_Fields(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, &CreateSchemaRequest{Name: "User", Fields: testSchema().Fields})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := svc.Fields(ctx, created.ID)
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if resp.Fields["address.geo.lat"].Type != TypeNumber {
		t.Errorf("expected nested path in flattened fields, got %+v", resp.Fields["address.geo.lat"])
	}
}
