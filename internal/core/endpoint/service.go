package endpoint

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/conduit/conduit/internal/core/schema"
)

const (
	DefaultMaxQueryNodes = 256
	DefaultListLimit     = 50
	MaxListLimit         = 100
)

type Store interface {
	Create(ctx context.Context, def *Definition) error
	FindByID(ctx context.Context, id string) (*Definition, error)
	FindAll(ctx context.Context, filter ListFilter) ([]*Definition, int, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Update(ctx context.Context, def *Definition) error
	Delete(ctx context.Context, id string) error
}

// Schemas looks up the live schema an endpoint is bound to. It returns
// schema.ErrNotFound for unknown ids.
type Schemas interface {
	Get(ctx context.Context, id string) (*schema.Schema, error)
}

type Service struct {
	store    Store
	schemas  Schemas
	maxNodes int
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store Store, schemas Schemas, maxNodes int, logger *slog.Logger) *Service {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxQueryNodes
	}
	if maxNodes > MaxDecodedNodes {
		maxNodes = MaxDecodedNodes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		schemas:  schemas,
		maxNodes: maxNodes,
		logger:   logger.With("component", "endpoint"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// DecodeDraft parses a submitted draft, enforcing the node ceiling while the
// query forest is read rather than after.
func (s *Service) DecodeDraft(data []byte) (*Draft, error) {
	var draft Draft
	if err := draft.decode(data, s.maxNodes); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (s *Service) Create(ctx context.Context, draft *Draft) (*Definition, error) {
	if _, err := s.check(ctx, draft, "", true); err != nil {
		s.logger.Debug("endpoint rejected", "name", draft.Name, "error", err)
		return nil, err
	}

	now := s.now()
	def := newDefinition(uuid.New().String(), draft, now, now)

	if err := s.store.Create(ctx, def); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, &DuplicateNameError{Kind: "endpoint", Name: def.Name}
		}
		return nil, err
	}

	s.logger.Info("endpoint created",
		"id", def.ID,
		"name", def.Name,
		"operation", def.Operation.String(),
		"schema", def.SelectedSchema,
	)
	return def, nil
}

func (s *Service) Update(ctx context.Context, id string, draft *Draft) (*Definition, error) {
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	if _, err := s.check(ctx, draft, id, true); err != nil {
		s.logger.Debug("endpoint update rejected", "id", id, "error", err)
		return nil, err
	}

	def := newDefinition(id, draft, existing.CreatedAt, s.now())

	if err := s.store.Update(ctx, def); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, &DuplicateNameError{Kind: "endpoint", Name: def.Name}
		}
		return nil, err
	}

	s.logger.Info("endpoint updated", "id", def.ID, "name", def.Name)
	return def, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("endpoint deleted", "id", id, "name", existing.Name)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Definition, error) {
	def, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, ErrNotFound
	}
	return def, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) (*ListEndpointsResponse, error) {
	if filter.Limit <= 0 || filter.Limit > MaxListLimit {
		filter.Limit = DefaultListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	defs, total, err := s.store.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	if defs == nil {
		defs = []*Definition{}
	}

	return &ListEndpointsResponse{
		Endpoints: defs,
		Total:     total,
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	}, nil
}

// Validate runs every check Create would, against the live schema, without
// writing. Name uniqueness is not checked.
func (s *Service) Validate(ctx context.Context, draft *Draft) error {
	_, err := s.check(ctx, draft, "", false)
	return err
}

// Revalidate checks a stored definition against the current version of its
// schema, which may have changed since the definition was saved.
func (s *Service) Revalidate(ctx context.Context, id string) error {
	def, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.check(ctx, def.Draft(), id, false)
	return err
}

// Plan compiles a stored definition after re-validating it.
func (s *Service) Plan(ctx context.Context, id string) (*Plan, error) {
	def, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sc, err := s.check(ctx, def.Draft(), id, false)
	if err != nil {
		return nil, err
	}
	return Compile(sc, def)
}

// check runs the full validation sequence and returns the schema the draft
// was validated against. The first failure wins.
func (s *Service) check(ctx context.Context, draft *Draft, excludeID string, checkName bool) (*schema.Schema, error) {
	if err := s.checkEnvelope(draft); err != nil {
		return nil, err
	}

	var (
		sc    *schema.Schema
		taken bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.schemas.Get(gctx, draft.SelectedSchema)
		if errors.Is(err, schema.ErrNotFound) {
			return &SchemaNotFoundError{SchemaID: draft.SelectedSchema}
		}
		sc = found
		return err
	})
	if checkName {
		g.Go(func() error {
			exists, err := s.store.ExistsByName(gctx, draft.Name, excludeID)
			taken = exists
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if taken {
		return nil, &DuplicateNameError{Kind: "endpoint", Name: draft.Name}
	}

	if err := ValidateDraft(sc, draft); err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *Service) checkEnvelope(draft *Draft) error {
	if draft == nil {
		return &InvalidDraftError{Field: "body", Reason: "required"}
	}

	if err := validate.Struct(draft); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return envelopeError(fieldErrs[0])
		}
		return err
	}

	if draft.Operation != OperationGet {
		if draft.Paginated {
			return &InvalidDraftError{Field: "paginated", Reason: "only GET endpoints can be paginated"}
		}
		if draft.Sorted {
			return &InvalidDraftError{Field: "sorted", Reason: "only GET endpoints can be sorted"}
		}
	}

	if n := CountNodes(draft.Queries); n > s.maxNodes {
		return &TreeTooLargeError{Count: n, Limit: s.maxNodes}
	}

	seen := make(map[string]bool)
	return Walk(draft.Queries, func(n Node) error {
		if seen[n.NodeID()] {
			return &DuplicateNodeError{NodeID: n.NodeID()}
		}
		seen[n.NodeID()] = true
		return nil
	})
}

func envelopeError(fe validator.FieldError) error {
	reason := fe.Tag()
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "min":
		if fe.Field() == "queries" {
			reason = "must contain at least one query group"
		} else {
			reason = "must be at least " + fe.Param()
		}
	case "max":
		reason = "must be at most " + fe.Param()
	}
	return &InvalidDraftError{Field: fe.Field(), Reason: reason}
}

// ValidateDraft runs the pure validators in order: inputs, queries, then
// assignments. It performs no I/O.
func ValidateDraft(s *schema.Schema, draft *Draft) error {
	if err := ValidateInputs(draft.Inputs); err != nil {
		return err
	}
	if err := ValidateQueries(s, draft.Inputs, draft.Queries); err != nil {
		return err
	}
	return ValidateAssignments(s, draft.Inputs, draft.Operation, draft.Assignments)
}
