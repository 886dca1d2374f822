package database

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/pseudomuto/pgkeeper/pkg/config"
	"github.com/pseudomuto/pgkeeper/pkg/consts"
	log "github.com/sirupsen/logrus"
)

// Manager creates and drops the application's database objects.
//
// CreateAll runs the DDL in SCHEMA_FILE. DropAll drops every schema listed in
// SCHEMAS (with everything inside it) and recreates it empty. Both talk to
// PostgreSQL directly through pgx; the sqlite3 dialect is only supported by
// the migration engine.
type Manager struct {
	cfg *config.Config
}

// New creates a Manager for cfg.
func New(cfg *config.Config) *Manager {
	return &Manager{cfg: cfg}
}

// CreateAll executes the schema file against the database.
//
// The file is sent as a single simple-protocol query so it may hold any number
// of statements.
func (m *Manager) CreateAll(ctx context.Context) error {
	path := m.schemaFile()
	ddl, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read schema file: %s", path)
	}

	conn, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(ctx) }()

	if _, err := conn.Exec(ctx, string(ddl)); err != nil {
		return errors.Wrapf(err, "failed to execute schema file: %s", path)
	}

	log.WithField("file", path).Info("Created database objects")
	return nil
}

// DropAll drops and recreates every configured schema in one transaction.
func (m *Manager) DropAll(ctx context.Context) error {
	conn, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(ctx) }()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range DropStatements(m.schemas()) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to execute: %s", stmt)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	log.WithField("schemas", m.schemas()).Info("Dropped database objects")
	return nil
}

// DropStatements returns the statements DropAll runs for schemas.
//
//	DropStatements([]string{"public"})
//	// DROP SCHEMA IF EXISTS "public" CASCADE
//	// CREATE SCHEMA "public"
func DropStatements(schemas []string) []string {
	stmts := make([]string, 0, 2*len(schemas))
	for _, schema := range schemas {
		ident := pgx.Identifier{schema}.Sanitize()
		stmts = append(stmts,
			"DROP SCHEMA IF EXISTS "+ident+" CASCADE",
			"CREATE SCHEMA "+ident,
		)
	}

	return stmts
}

func (m *Manager) connect(ctx context.Context) (*pgx.Conn, error) {
	if m.cfg.Dialect() != "postgres" {
		return nil, errors.Errorf("schema management requires PostgreSQL, not %s", m.cfg.Driver)
	}

	conn, err := pgx.Connect(ctx, m.cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	return conn, nil
}

func (m *Manager) schemaFile() string {
	if m.cfg.SchemaFile != "" {
		return m.cfg.SchemaFile
	}

	return consts.DefaultSchemaFile
}

func (m *Manager) schemas() []string {
	if len(m.cfg.Schemas) > 0 {
		return m.cfg.Schemas
	}

	return []string{consts.DefaultSchema}
}
