package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
)

// store wraps the sql-migrate MigrationSet bound to one database connection.
type store struct {
	db      *sql.DB
	dialect string
	set     migrate.MigrationSet
}

func openStore(ctx context.Context, cfg *Config) (*store, error) {
	db, err := cfg.Open()
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	set := migrate.MigrationSet{TableName: cfg.Table()}
	if cfg.Dialect != "sqlite3" {
		set.SchemaName = cfg.Schema()
	}

	return &store{db: db, dialect: cfg.Dialect, set: set}, nil
}

func (s *store) Close() error {
	return s.db.Close()
}

// records returns the applied revisions ordered by id. The version table is
// created when it doesn't exist yet.
func (s *store) records() ([]*migrate.MigrationRecord, error) {
	recs, err := s.set.GetMigrationRecords(s.db, s.dialect)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read applied revisions")
	}

	return recs, nil
}

func (s *store) applied() (map[string]bool, error) {
	recs, err := s.records()
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(recs))
	for _, r := range recs {
		out[r.Id] = true
	}

	return out, nil
}

func (s *store) exec(src migrate.MigrationSource, dir migrate.MigrationDirection, ignoreUnknown bool) (int, error) {
	set := s.set
	set.IgnoreUnknown = ignoreUnknown

	n, err := set.ExecMax(s.db, s.dialect, src, dir, 0)
	if err != nil {
		return n, errors.Wrap(err, "failed to apply revisions")
	}

	return n, nil
}

// stamp rewrites version table rows without running any script.
func (s *store) stamp(ctx context.Context, insert, remove []string, now time.Time) error {
	// Make sure the table exists before touching it.
	if _, err := s.records(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	table := versionTable(s.set.SchemaName, s.set.TableName)
	for _, id := range remove {
		q := fmt.Sprintf("DELETE FROM %s WHERE id = %s", table, s.placeholder(1))
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return errors.Wrapf(err, "failed to remove %s", id)
		}
	}

	for _, id := range insert {
		q := fmt.Sprintf("INSERT INTO %s (id, applied_at) VALUES (%s, %s)", table, s.placeholder(1), s.placeholder(2))
		if _, err := tx.ExecContext(ctx, q, id, now); err != nil {
			return errors.Wrapf(err, "failed to record %s", id)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit stamp")
}

func (s *store) placeholder(n int) string {
	if s.dialect == "sqlite3" {
		return "?"
	}

	return fmt.Sprintf("$%d", n)
}

// versionTable quotes the (optionally schema qualified) version table.
func versionTable(schema, table string) string {
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}

	return pgx.Identifier{schema, table}.Sanitize()
}

// literal quotes a string for inclusion in generated SQL.
func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
