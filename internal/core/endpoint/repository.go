package endpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/conduit/conduit/internal/storage/database"
)

// ErrConflict is returned when a write hits the unique name constraint.
var ErrConflict = errors.New("custom endpoint name conflict")

const endpointColumns = `id, name, operation, selected_schema, authentication, paginated, sorted,
		inputs, queries, assignments, created_at, updated_at`

type Repository struct {
	db *database.Client
}

func NewRepository(db *database.Client) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, def *Definition) error {
	inputs, queries, assignments, err := encodeTrees(def)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO custom_endpoints (` + endpointColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.db.ExecContext(ctx, query,
		def.ID, def.Name, int(def.Operation), def.SelectedSchema,
		def.Authentication, def.Paginated, def.Sorted,
		inputs, queries, assignments, def.CreatedAt, def.UpdatedAt,
	)
	if r.db.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *Repository) FindByID(ctx context.Context, id string) (*Definition, error) {
	query := `SELECT ` + endpointColumns + ` FROM custom_endpoints WHERE id = $1`

	def, err := scanDefinition(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return def, err
}

// FindAll returns the definitions matching filter, newest first, and the
// total count before pagination.
func (r *Repository) FindAll(ctx context.Context, filter ListFilter) ([]*Definition, int, error) {
	where := []string{"1=1"}
	args := []any{}
	argIndex := 1

	if filter.Schema != "" {
		where = append(where, fmt.Sprintf("selected_schema = $%d", argIndex))
		args = append(args, filter.Schema)
		argIndex++
	}
	if filter.Operation != nil {
		where = append(where, fmt.Sprintf("operation = $%d", argIndex))
		args = append(args, *filter.Operation)
		argIndex++
	}
	if filter.Name != "" {
		where = append(where, fmt.Sprintf("LOWER(name) LIKE $%d", argIndex))
		args = append(args, strings.ToLower(filter.Name)+"%")
		argIndex++
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM custom_endpoints WHERE " + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM custom_endpoints
		WHERE %s
		ORDER BY created_at DESC, name ASC
		LIMIT $%d OFFSET $%d`, endpointColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, 0, err
		}
		defs = append(defs, def)
	}

	return defs, total, rows.Err()
}

// ExistsByName reports whether another endpoint already uses name.
// excludeID skips the endpoint being updated.
func (r *Repository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := `SELECT COUNT(*) FROM custom_endpoints WHERE name = $1 AND id != $2`

	var n int
	if err := r.db.QueryRowContext(ctx, query, name, excludeID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountBySchema counts endpoints bound to a schema. The schema registry uses
// it to refuse deleting schemas that are still referenced.
func (r *Repository) CountBySchema(ctx context.Context, schemaID string) (int, error) {
	query := `SELECT COUNT(*) FROM custom_endpoints WHERE selected_schema = $1`

	var n int
	err := r.db.QueryRowContext(ctx, query, schemaID).Scan(&n)
	return n, err
}

func (r *Repository) Update(ctx context.Context, def *Definition) error {
	inputs, queries, assignments, err := encodeTrees(def)
	if err != nil {
		return err
	}

	query := `
		UPDATE custom_endpoints
		SET name = $1, operation = $2, selected_schema = $3, authentication = $4,
			paginated = $5, sorted = $6, inputs = $7, queries = $8, assignments = $9,
			updated_at = $10
		WHERE id = $11`

	_, err = r.db.ExecContext(ctx, query,
		def.Name, int(def.Operation), def.SelectedSchema, def.Authentication,
		def.Paginated, def.Sorted, inputs, queries, assignments,
		def.UpdatedAt, def.ID,
	)
	if r.db.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM custom_endpoints WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func encodeTrees(def *Definition) (string, string, string, error) {
	inputs, err := json.Marshal(def.Inputs)
	if err != nil {
		return "", "", "", fmt.Errorf("encode inputs: %w", err)
	}
	queries, err := json.Marshal(def.Queries)
	if err != nil {
		return "", "", "", fmt.Errorf("encode queries: %w", err)
	}
	assignments, err := json.Marshal(def.Assignments)
	if err != nil {
		return "", "", "", fmt.Errorf("encode assignments: %w", err)
	}
	return string(inputs), string(queries), string(assignments), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row scanner) (*Definition, error) {
	def := &Definition{}
	var op int
	var inputs, queries, assignments string

	err := row.Scan(
		&def.ID, &def.Name, &op, &def.SelectedSchema,
		&def.Authentication, &def.Paginated, &def.Sorted,
		&inputs, &queries, &assignments, &def.CreatedAt, &def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	def.Operation = Operation(op)

	if err := json.Unmarshal([]byte(inputs), &def.Inputs); err != nil {
		return nil, fmt.Errorf("decode inputs of %s: %w", def.ID, err)
	}
	if err := json.Unmarshal([]byte(queries), &def.Queries); err != nil {
		return nil, fmt.Errorf("decode queries of %s: %w", def.ID, err)
	}
	if err := json.Unmarshal([]byte(assignments), &def.Assignments); err != nil {
		return nil, fmt.Errorf("decode assignments of %s: %w", def.ID, err)
	}
	return def, nil
}
