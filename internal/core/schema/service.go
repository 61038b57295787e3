package schema

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conduit/conduit/internal/core/validation"
)

var (
	ErrNotFound      = errors.New("schema not found")
	ErrAlreadyExists = errors.New("schema already exists")
	ErrInUse         = errors.New("schema is referenced by custom endpoints")
)

type Store interface {
	Create(ctx context.Context, s *Schema) error
	GetByID(ctx context.Context, id string) (*Schema, error)
	GetByName(ctx context.Context, name string) (*Schema, error)
	List(ctx context.Context) ([]*Schema, error)
	Update(ctx context.Context, s *Schema) error
	Delete(ctx context.Context, id string) error
}

// ReferenceCounter reports how many stored definitions use a schema.
type ReferenceCounter interface {
	CountBySchema(ctx context.Context, schemaID string) (int, error)
}

type Service struct {
	repo      Store
	refs      ReferenceCounter
	validator *validation.Validator
	logger    *slog.Logger
}

func NewService(repo Store, refs ReferenceCounter, validator *validation.Validator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		refs:      refs,
		validator: validator,
		logger:    logger.With("component", "schema"),
	}
}

func (s *Service) Create(ctx context.Context, req *CreateSchemaRequest) (*Schema, error) {
	if err := ValidateDefinition(s.validator, req.Name, req.Fields); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByName(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyExists
	}

	now := time.Now().UTC()
	sc := &Schema{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Fields:    req.Fields,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, sc); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}

	s.logger.Info("schema created", "id", sc.ID, "name", sc.Name, "fields", len(sc.Fields))
	return sc, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Schema, error) {
	sc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, ErrNotFound
	}
	return sc, nil
}

func (s *Service) GetByName(ctx context.Context, name string) (*Schema, error) {
	sc, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, ErrNotFound
	}
	return sc, nil
}

func (s *Service) List(ctx context.Context) (*ListSchemasResponse, error) {
	schemas, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	if schemas == nil {
		schemas = []*Schema{}
	}

	return &ListSchemasResponse{
		Schemas: schemas,
		Total:   len(schemas),
	}, nil
}

// Update replaces the name and/or field tree. Stored endpoints are not
// touched; they are re-validated against the new fields on their next save.
func (s *Service) Update(ctx context.Context, id string, req *UpdateSchemaRequest) (*Schema, error) {
	sc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, ErrNotFound
	}

	name, fields := sc.Name, sc.Fields
	if req.Name != "" {
		name = req.Name
	}
	if req.Fields != nil {
		fields = req.Fields
	}

	if err := ValidateDefinition(s.validator, name, fields); err != nil {
		return nil, err
	}

	sc.Name = name
	sc.Fields = fields
	sc.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, sc); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}

	s.logger.Info("schema updated", "id", sc.ID, "name", sc.Name)
	return sc, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	sc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sc == nil {
		return ErrNotFound
	}

	if s.refs != nil {
		n, err := s.refs.CountBySchema(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrInUse
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("schema deleted", "id", id, "name", sc.Name)
	return nil
}

// Fields returns the flattened field map of a schema, nested group paths
// and reserved fields included.
func (s *Service) Fields(ctx context.Context, id string) (*FieldsResponse, error) {
	sc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &FieldsResponse{SchemaID: sc.ID, Fields: sc.Flatten()}, nil
}
