package migrate

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// sqlWriter renders offline migration scripts.
type sqlWriter struct {
	w     io.Writer
	table string
}

func newSQLWriter(cfg *Config) *sqlWriter {
	schema := cfg.Schema()
	if cfg.Dialect == "sqlite3" {
		schema = ""
	}

	return &sqlWriter{w: cfg.Output, table: versionTable(schema, cfg.Table())}
}

func (sw *sqlWriter) begin(tag string) {
	if tag != "" {
		fmt.Fprintf(sw.w, "-- Tag: %s\n\n", tag)
	}

	fmt.Fprint(sw.w, "BEGIN;\n\n")
}

func (sw *sqlWriter) createTable() {
	fmt.Fprintf(sw.w, "CREATE TABLE IF NOT EXISTS %s (id text NOT NULL PRIMARY KEY, applied_at timestamp with time zone);\n\n", sw.table)
}

func (sw *sqlWriter) migration(header string, queries []string) {
	fmt.Fprintf(sw.w, "-- %s\n\n", header)
	for _, q := range queries {
		fmt.Fprintf(sw.w, "%s\n", strings.TrimSpace(q))
	}

	if len(queries) > 0 {
		fmt.Fprintln(sw.w)
	}
}

func (sw *sqlWriter) insert(id string) {
	fmt.Fprintf(sw.w, "INSERT INTO %s (id, applied_at) VALUES (%s, CURRENT_TIMESTAMP);\n\n", sw.table, literal(id))
}

func (sw *sqlWriter) delete(id string) {
	fmt.Fprintf(sw.w, "DELETE FROM %s WHERE id = %s;\n\n", sw.table, literal(id))
}

func (sw *sqlWriter) commit() {
	fmt.Fprint(sw.w, "COMMIT;\n")
}

// renderUpgradeRange prints the upgrade from expr.Start (base when omitted)
// to expr.End (every head when omitted). A relative end is taken from the start.
func renderUpgradeRange(cfg *Config, dir *ScriptDirectory, expr *Expression, tag string) error {
	lower, err := dir.Resolve(expr.Start, nil)
	if err != nil {
		return err
	}

	upper, err := rangeEnd(dir, expr.End, lower, dir.Heads())
	if err != nil {
		return err
	}

	scripts := between(dir, lower, upper)
	sw := newSQLWriter(cfg)
	sw.begin(tag)
	if lower == nil {
		sw.createTable()
	}

	for _, s := range scripts {
		sw.migration(fmt.Sprintf("Running upgrade %s -> %s", downLabel(s), s.Revision), s.Migration.Up)
		sw.insert(s.Name)
	}

	sw.commit()
	return nil
}

// renderDowngradeRange prints the downgrade from expr.Start to expr.End
// (base when omitted). `head:-1` reverts the newest revision.
func renderDowngradeRange(cfg *Config, dir *ScriptDirectory, expr *Expression, tag string) error {
	if expr.Start == nil {
		return errors.New("downgrade range needs a starting revision, e.g. head:-1")
	}

	uppers, err := dir.ResolveAll(expr.Start, nil)
	if err != nil {
		return err
	}

	var lower *Script
	if expr.End != nil {
		var anchor []*Script
		if expr.End.IsRelative() {
			anchor = uppers
		}

		if lower, err = dir.Resolve(expr.End, anchor); err != nil {
			return err
		}
	}

	scripts := between(dir, lower, uppers)
	sw := newSQLWriter(cfg)
	sw.begin(tag)

	for i := len(scripts) - 1; i >= 0; i-- {
		s := scripts[i]
		sw.migration(fmt.Sprintf("Running downgrade %s -> %s", s.Revision, downLabel(s)), s.Migration.Down)
		sw.delete(s.Name)
	}

	sw.commit()
	return nil
}

// renderStamp prints statements that reset the version table to scripts.
func renderStamp(cfg *Config, scripts []*Script, tag string) error {
	sw := newSQLWriter(cfg)
	sw.begin(tag)
	sw.createTable()
	fmt.Fprintf(sw.w, "DELETE FROM %s;\n\n", sw.table)

	for _, s := range scripts {
		sw.insert(s.Name)
	}

	sw.commit()
	return nil
}

func rangeEnd(dir *ScriptDirectory, ref *Reference, start *Script, fallback []*Script) ([]*Script, error) {
	if ref == nil {
		return fallback, nil
	}

	var anchor []*Script
	if ref.IsRelative() && start != nil {
		anchor = []*Script{start}
	}

	return dir.ResolveAll(ref, anchor)
}

// between returns the ancestors of uppers that are not ancestors of lower.
func between(dir *ScriptDirectory, lower *Script, uppers []*Script) []*Script {
	exclude := make(map[string]bool)
	for _, s := range dir.Ancestors(lower) {
		exclude[s.Revision] = true
	}

	var out []*Script
	for _, s := range dir.Ancestors(uppers...) {
		if !exclude[s.Revision] {
			out = append(out, s)
		}
	}

	return out
}
