package postgres

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Dialer opens a connection pool scoped to one batch store.
type Dialer interface {
	Open(ctx context.Context, slug string) (*gorm.DB, error)
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]{1,32}$`)

// SchemaName is the Postgres schema that isolates a batch store.
func SchemaName(slug string) (string, error) {
	if !slugPattern.MatchString(slug) {
		return "", fmt.Errorf("invalid batch slug %q", slug)
	}
	return "batch_" + slug, nil
}

// SchemaDialer isolates each batch in its own schema of the shared database
// and gives it a dedicated pool whose search_path points at that schema.
type SchemaDialer struct {
	admin       *gorm.DB
	databaseURL string
	maxConns    int32
}

func NewSchemaDialer(admin *gorm.DB, databaseURL string, maxConns int32) *SchemaDialer {
	return &SchemaDialer{admin: admin, databaseURL: databaseURL, maxConns: maxConns}
}

func (d *SchemaDialer) Open(ctx context.Context, slug string) (*gorm.DB, error) {
	schema, err := SchemaName(slug)
	if err != nil {
		return nil, err
	}
	if err := d.admin.WithContext(ctx).Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, schema)).Error; err != nil {
		return nil, fmt.Errorf("create batch schema: %w", err)
	}
	dsn, err := withSearchPath(d.databaseURL, schema)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("connect batch store %s: %w", slug, err)
	}
	if err := configurePool(ctx, db, d.maxConns); err != nil {
		return nil, err
	}
	return db, nil
}

// withSearchPath supports both URL and key=value connection strings.
func withSearchPath(databaseURL, schema string) (string, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		parsed, err := url.Parse(databaseURL)
		if err != nil {
			return "", fmt.Errorf("parse database url: %w", err)
		}
		query := parsed.Query()
		query.Set("search_path", schema)
		parsed.RawQuery = query.Encode()
		return parsed.String(), nil
	}
	return strings.TrimSpace(databaseURL) + " search_path=" + schema, nil
}
