package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/conduit/conduit/internal/storage/database"
)

// ErrConflict is returned by the repository when a write hits the unique
// name constraint.
var ErrConflict = errors.New("schema name conflict")

type Repository struct {
	db *database.Client
}

func NewRepository(db *database.Client) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, s *Schema) error {
	fields, err := json.Marshal(s.Fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO schema_definitions (id, name, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = r.db.ExecContext(ctx, query, s.ID, s.Name, string(fields), s.CreatedAt, s.UpdatedAt)
	if r.db.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Schema, error) {
	query := `
		SELECT id, name, fields, created_at, updated_at
		FROM schema_definitions
		WHERE id = $1`

	return r.scanSchema(r.db.QueryRowContext(ctx, query, id))
}

func (r *Repository) GetByName(ctx context.Context, name string) (*Schema, error) {
	query := `
		SELECT id, name, fields, created_at, updated_at
		FROM schema_definitions
		WHERE name = $1`

	return r.scanSchema(r.db.QueryRowContext(ctx, query, name))
}

func (r *Repository) List(ctx context.Context) ([]*Schema, error) {
	query := `
		SELECT id, name, fields, created_at, updated_at
		FROM schema_definitions
		ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schemas []*Schema
	for rows.Next() {
		s := &Schema{}
		var fields string
		if err := rows.Scan(&s.ID, &s.Name, &fields, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fields), &s.Fields); err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}

	return schemas, rows.Err()
}

func (r *Repository) Update(ctx context.Context, s *Schema) error {
	fields, err := json.Marshal(s.Fields)
	if err != nil {
		return err
	}

	query := `
		UPDATE schema_definitions
		SET name = $1, fields = $2, updated_at = $3
		WHERE id = $4`

	_, err = r.db.ExecContext(ctx, query, s.Name, string(fields), s.UpdatedAt, s.ID)
	if r.db.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM schema_definitions WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *Repository) scanSchema(row *sql.Row) (*Schema, error) {
	s := &Schema{}
	var fields string

	err := row.Scan(&s.ID, &s.Name, &fields, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(fields), &s.Fields); err != nil {
		return nil, err
	}
	return s, nil
}
