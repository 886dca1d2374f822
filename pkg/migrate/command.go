package migrate

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
)

type (
	// UpgradeOptions controls Upgrade.
	UpgradeOptions struct {
		// Revision is the target expression ("head" when empty)
		Revision string

		// SQL prints the statements instead of running them
		SQL bool

		// Tag is an arbitrary label echoed in logs and generated SQL
		Tag string
	}

	// DowngradeOptions controls Downgrade.
	DowngradeOptions struct {
		// Revision is the target expression ("-1" when empty)
		Revision string
		SQL      bool
		Tag      string
	}

	// StampOptions controls Stamp.
	StampOptions struct {
		// Revision is the revision to record ("head" when empty)
		Revision string
		SQL      bool
		Tag      string
	}

	// CurrentOptions controls Current.
	CurrentOptions struct {
		Verbose bool
	}
)

// Upgrade applies every unapplied script the target revision depends on,
// parents before children.
//
// `heads` applies everything. With SQL the upgrade is rendered from the
// scripts without touching the database: a single target is rendered from
// base, and a range such as `ae10:head` from its start.
//
// Example usage:
//
//	err := migrate.Upgrade(ctx, cfg, migrate.UpgradeOptions{Revision: "head"})
func Upgrade(ctx context.Context, cfg *Config, opts UpgradeOptions) error {
	dir, expr, err := prepare(cfg, opts.Revision, symbolHead)
	if err != nil {
		return err
	}

	if opts.SQL {
		if !expr.Range {
			expr = &Expression{Range: true, End: expr.Start}
		}

		return renderUpgradeRange(cfg, dir, expr, opts.Tag)
	}

	if expr.Range {
		return errors.New("revision ranges are only supported with --sql")
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	applied, err := st.applied()
	if err != nil {
		return err
	}

	targets, err := dir.ResolveAll(expr.Start, dir.currentHeads(applied))
	if err != nil {
		return err
	}

	var pending, done []*Script
	for _, s := range dir.Ancestors(targets...) {
		if applied[s.Name] {
			continue
		}

		pending = append(pending, s)
	}

	logger := log.WithFields(log.Fields{"target": opts.revision(), "tag": opts.Tag})
	if len(pending) == 0 {
		logger.Info("Database is already at the requested revision")
		return nil
	}

	for _, s := range dir.Scripts() {
		if applied[s.Name] {
			done = append(done, s)
		}
	}

	// sql-migrate orders by id, so each script is applied on its own with the
	// applied ones alongside it.
	var n int
	for _, s := range pending {
		logger.WithField("revision", s.Revision).Infof("Running upgrade %s -> %s", downLabel(s), s.Revision)

		src := &migrate.MemoryMigrationSource{Migrations: migrations(append(slices.Clip(done), s))}
		if _, err := st.exec(src, migrate.Up, false); err != nil {
			return err
		}

		done = append(done, s)
		n++
	}

	logger.WithField("count", n).Info("Upgrade complete")
	return nil
}

// Downgrade reverts every applied script that the target revision does not
// depend on, children before parents.
//
// The default target "-1" steps back from the single current revision.
// `base` reverts everything. With SQL the downgrade is rendered from the
// scripts without touching the database, starting at every head for a
// single target.
func Downgrade(ctx context.Context, cfg *Config, opts DowngradeOptions) error {
	dir, expr, err := prepare(cfg, opts.Revision, "-1")
	if err != nil {
		return err
	}

	if opts.SQL {
		if !expr.Range {
			expr = &Expression{Range: true, Start: &Reference{Name: symbolHeads}, End: expr.Start}
		}

		return renderDowngradeRange(cfg, dir, expr, opts.Tag)
	}

	if expr.Range {
		return errors.New("revision ranges are only supported with --sql")
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	applied, err := st.applied()
	if err != nil {
		return err
	}

	target, err := dir.Resolve(expr.Start, dir.currentHeads(applied))
	if err != nil {
		return err
	}

	if target != nil && !applied[target.Name] {
		return errors.Errorf("revision %s is not applied; cannot downgrade to it", target.Revision)
	}

	keep := make(map[string]bool)
	for _, s := range dir.Ancestors(target) {
		keep[s.Name] = true
	}

	var remove []*Script
	for _, s := range dir.Scripts() {
		if applied[s.Name] && !keep[s.Name] {
			remove = append(remove, s)
		}
	}

	logger := log.WithFields(log.Fields{"target": opts.revision(), "tag": opts.Tag})
	if len(remove) == 0 {
		logger.Info("Nothing to downgrade")
		return nil
	}

	var n int
	for i := len(remove) - 1; i >= 0; i-- {
		s := remove[i]
		logger.WithField("revision", s.Revision).Infof("Running downgrade %s -> %s", s.Revision, downLabel(s))

		src := &migrate.MemoryMigrationSource{Migrations: migrations([]*Script{s})}
		if _, err := st.exec(src, migrate.Down, true); err != nil {
			return err
		}

		n++
	}

	logger.WithField("count", n).Info("Downgrade complete")
	return nil
}

// Stamp sets the version table to the target revision (and everything it
// depends on) without running any script.
func Stamp(ctx context.Context, cfg *Config, opts StampOptions) error {
	dir, expr, err := prepare(cfg, opts.Revision, symbolHead)
	if err != nil {
		return err
	}

	if expr.Range {
		return errors.New("stamp needs a single revision, not a range")
	}

	if opts.SQL {
		targets, err := dir.ResolveAll(expr.Start, nil)
		if err != nil {
			return err
		}

		return renderStamp(cfg, dir.Ancestors(targets...), opts.Tag)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	recs, err := st.records()
	if err != nil {
		return err
	}

	applied := make(map[string]bool, len(recs))
	for _, r := range recs {
		applied[r.Id] = true
	}

	targets, err := dir.ResolveAll(expr.Start, dir.currentHeads(applied))
	if err != nil {
		return err
	}

	desired := make(map[string]bool)
	var insert []string
	for _, s := range dir.Ancestors(targets...) {
		desired[s.Name] = true
		if !applied[s.Name] {
			insert = append(insert, s.Name)
		}
	}

	var remove []string
	for _, r := range recs {
		if !desired[r.Id] {
			remove = append(remove, r.Id)
		}
	}

	if err := st.stamp(ctx, insert, remove, cfg.Now()); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"target":   opts.revision(),
		"tag":      opts.Tag,
		"recorded": len(insert),
		"removed":  len(remove),
	}).Info("Stamped revision table")

	return nil
}

// Current prints the revisions the database is at: applied revisions none of
// whose children are applied.
func Current(ctx context.Context, cfg *Config, opts CurrentOptions) error {
	dir, err := LoadScriptDirectory(cfg)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	recs, err := st.records()
	if err != nil {
		return err
	}

	applied := make(map[string]bool, len(recs))
	for _, r := range recs {
		applied[r.Id] = true
		if dir.ScriptByName(r.Id) == nil {
			log.WithField("id", r.Id).Warn("Applied revision has no script")
		}
	}

	heads := dir.currentHeads(applied)
	if opts.Verbose {
		fmt.Fprintf(cfg.Output, "Current revision(s) in %s:\n", versionTable(st.set.SchemaName, st.set.TableName))
	}

	for _, s := range heads {
		if !opts.Verbose {
			fmt.Fprintln(cfg.Output, format(dir, s, formatOptions{heads: true, labels: true}))
			continue
		}

		for _, r := range recs {
			if r.Id == s.Name {
				fmt.Fprint(cfg.Output, entry(dir, s, "Applied: "+r.AppliedAt.Format("2006-01-02 15:04:05")))
			}
		}
	}

	return nil
}

// Rehash rewrites migrate.sum from the scripts on disk.
func Rehash(cfg *Config) error {
	dir, err := LoadScriptDirectory(cfg)
	if err != nil {
		return err
	}

	if err := writeSumFile(cfg, dir); err != nil {
		return err
	}

	fmt.Fprintf(cfg.Output, "Rehashed %d revision script(s)\n", len(dir.Scripts()))
	log.WithFields(log.Fields{
		"scripts": len(dir.Scripts()),
		"path":    sumFilePath(cfg),
	}).Info("Rehashed revision scripts")

	return nil
}

// prepare loads and verifies the script directory and parses the target.
func prepare(cfg *Config, revision, fallback string) (*ScriptDirectory, *Expression, error) {
	dir, err := LoadScriptDirectory(cfg)
	if err != nil {
		return nil, nil, err
	}

	if err := verifySumFile(cfg, dir); err != nil {
		return nil, nil, err
	}

	if strings.TrimSpace(revision) == "" {
		revision = fallback
	}

	expr, err := ParseTarget(revision)
	if err != nil {
		return nil, nil, err
	}

	return dir, expr, nil
}

func (o UpgradeOptions) revision() string   { return orDefault(o.Revision, symbolHead) }
func (o DowngradeOptions) revision() string { return orDefault(o.Revision, "-1") }
func (o StampOptions) revision() string     { return orDefault(o.Revision, symbolHead) }

func orDefault(s, def string) string {
	if s == "" {
		return def
	}

	return s
}

func downLabel(s *Script) string {
	if s.IsBase() {
		return "<base>"
	}

	return strings.Join(s.DownRevisions, ", ")
}
