package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/conduit/conduit/config"
	"github.com/conduit/conduit/internal/core/endpoint"
	"github.com/conduit/conduit/internal/core/schema"
	"github.com/conduit/conduit/internal/core/validation"
	"github.com/conduit/conduit/internal/logging"
	"github.com/conduit/conduit/internal/storage/database"
)

// seedFile is the YAML layout:
//
//	schemas:
//	  - name: User
//	    fields:
//	      name: {type: String}
//	      tags: {type: String, array: true}
type seedFile struct {
	Schemas []schema.CreateSchemaRequest `yaml:"schemas"`
}

func main() {
	path := flag.String("file", os.Getenv("SEED_FILE"), "YAML file with schema definitions")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "a seed file is required (-file or SEED_FILE)")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Logging.Format, cfg.Logging.Level)

	seeds, err := readSeeds(*path)
	if err != nil {
		logger.Error("failed to read seed file", "path", *path, "error", err)
		os.Exit(1)
	}

	db, err := database.NewClient(&cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	svc := schema.NewService(schema.NewRepository(db), endpoint.NewRepository(db), validation.NewValidator(), logger)

	created, updated, err := apply(ctx, svc, seeds)
	if err != nil {
		logger.Error("seeding stopped", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Seeded schemas: %d created, %d updated\n", created, updated)
}

func readSeeds(path string) ([]schema.CreateSchemaRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Schemas, nil
}

// apply creates missing schemas and replaces the fields of existing ones,
// so running it twice is harmless.
func apply(ctx context.Context, svc *schema.Service, seeds []schema.CreateSchemaRequest) (created, updated int, err error) {
	for i := range seeds {
		seed := &seeds[i]

		existing, err := svc.GetByName(ctx, seed.Name)
		switch {
		case errors.Is(err, schema.ErrNotFound):
			if _, err := svc.Create(ctx, seed); err != nil {
				return created, updated, fmt.Errorf("create %s: %w", seed.Name, err)
			}
			created++
		case err != nil:
			return created, updated, fmt.Errorf("look up %s: %w", seed.Name, err)
		default:
			req := &schema.UpdateSchemaRequest{Fields: seed.Fields}
			if _, err := svc.Update(ctx, existing.ID, req); err != nil {
				return created, updated, fmt.Errorf("update %s: %w", seed.Name, err)
			}
			updated++
		}
	}
	return created, updated, nil
}
