package migrate_test

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pseudomuto/pgkeeper/pkg/consts"
	. "github.com/pseudomuto/pgkeeper/pkg/migrate"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

type fixture struct {
	t    *testing.T
	cfg  *Config
	out  *bytes.Buffer
	root string
}

// newFixture creates an empty migrations directory backed by a sqlite database.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	dir := filepath.Join(root, "migrations")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, consts.DefaultVersionLocation), consts.ModeDir))

	cfg, err := NewConfig(dir)
	require.NoError(t, err)

	out := new(bytes.Buffer)
	cfg.Output = out
	cfg.Driver = "sqlite3"
	cfg.Dialect = "sqlite3"
	cfg.DSN = filepath.Join(root, "app.db")
	cfg.Now = func() time.Time { return fixedNow }

	return &fixture{t: t, cfg: cfg, out: out, root: root}
}

type scriptDef struct {
	name   string
	rev    string
	downs  []string
	labels []string
	deps   []string
	up     string
	down   string
}

func (f *fixture) write(defs ...scriptDef) {
	f.t.Helper()

	for _, d := range defs {
		content := fmt.Sprintf(
			"-- Revision ID: %s\n-- Revises: %s\n-- Create Date: 2024-01-01 00:00:00\n-- Branch Labels: %s\n-- Depends On: %s\n-- Message: %s\n\n-- +migrate Up\n%s\n\n-- +migrate Down\n%s\n",
			d.rev,
			strings.Join(d.downs, ", "),
			strings.Join(d.labels, ", "),
			strings.Join(d.deps, ", "),
			"create "+d.rev,
			d.up,
			d.down,
		)

		path := filepath.Join(f.cfg.ScriptLocation, consts.DefaultVersionLocation, d.name)
		require.NoError(f.t, os.WriteFile(path, []byte(content), consts.ModeFile))
	}
}

func (f *fixture) load() *ScriptDirectory {
	f.t.Helper()

	dir, err := LoadScriptDirectory(f.cfg)
	require.NoError(f.t, err)
	return dir
}

func (f *fixture) db() *sql.DB {
	f.t.Helper()

	db, err := sql.Open("sqlite3", f.cfg.DSN)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { _ = db.Close() })
	return db
}

func (f *fixture) tables() []string {
	f.t.Helper()

	rows, err := f.db().Query("SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	require.NoError(f.t, err)
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(f.t, rows.Scan(&name))
		names = append(names, name)
	}

	require.NoError(f.t, rows.Err())
	return names
}

func (f *fixture) applied() []string {
	f.t.Helper()

	rows, err := f.db().Query("SELECT id FROM " + consts.DefaultVersionTable + " ORDER BY id")
	require.NoError(f.t, err)
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		require.NoError(f.t, rows.Scan(&id))
		ids = append(ids, id)
	}

	require.NoError(f.t, rows.Err())
	return ids
}

// linear is a -> b.
var linear = []scriptDef{
	{
		name: "20240101000000_aaaa0001_accounts.sql",
		rev:  "aaaa0001",
		up:   "CREATE TABLE accounts (id INTEGER PRIMARY KEY);",
		down: "DROP TABLE accounts;",
	},
	{
		name:  "20240102000000_bbbb0002_orders.sql",
		rev:   "bbbb0002",
		downs: []string{"aaaa0001"},
		up:    "CREATE TABLE orders (id INTEGER PRIMARY KEY);",
		down:  "DROP TABLE orders;",
	},
}

// branched adds two heads on top of linear: c (labelled shop) and d.
var branched = append(append([]scriptDef(nil), linear...),
	scriptDef{
		name:   "20240103000000_cafe0003_carts.sql",
		rev:    "cafe0003",
		downs:  []string{"bbbb0002"},
		labels: []string{"shop"},
		up:     "CREATE TABLE carts (id INTEGER PRIMARY KEY);",
		down:   "DROP TABLE carts;",
	},
	scriptDef{
		name:  "20240104000000_cafe0004_invoices.sql",
		rev:   "cafe0004",
		downs: []string{"bbbb0002"},
		up:    "CREATE TABLE invoices (id INTEGER PRIMARY KEY);",
		down:  "DROP TABLE invoices;",
	},
)

func revisions(scripts []*Script) []string {
	out := make([]string, len(scripts))
	for i, s := range scripts {
		out[i] = s.Revision
	}

	return out
}
