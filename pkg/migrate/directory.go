package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	// ErrMultipleHeads is returned when a single revision was requested but the
	// script directory (or the database) has more than one head.
	ErrMultipleHeads = errors.New("multiple heads are present")

	// ErrRevisionNotFound is returned when no revision or branch label matches.
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrAmbiguousRevision is returned when a revision prefix matches several revisions.
	ErrAmbiguousRevision = errors.New("ambiguous revision")
)

// ScriptDirectory is the graph of revision scripts found in the configured
// version locations.
type ScriptDirectory struct {
	scripts  []*Script
	byRev    map[string]*Script
	byName   map[string]*Script
	children map[string][]*Script
	labels   map[string]*Script
}

// LoadScriptDirectory reads every `.sql` file in the configured version
// locations and links the scripts through their Revises headers.
//
// Scripts are ordered parents first, then by file name. Unknown down
// revisions, duplicate revision ids, duplicate branch labels and cycles are
// reported as errors.
//
// Example usage:
//
//	cfg, _ := migrate.NewConfig("migrations")
//	dir, err := migrate.LoadScriptDirectory(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, head := range dir.Heads() {
//		fmt.Println(head.Revision)
//	}
func LoadScriptDirectory(cfg *Config) (*ScriptDirectory, error) {
	if info, err := os.Stat(cfg.ScriptLocation); err != nil || !info.IsDir() {
		return nil, errors.Errorf("migrations directory %s does not exist; run `db migrate init` first", cfg.ScriptLocation)
	}

	d := &ScriptDirectory{
		byRev:    make(map[string]*Script),
		byName:   make(map[string]*Script),
		children: make(map[string][]*Script),
		labels:   make(map[string]*Script),
	}

	for _, loc := range cfg.Locations() {
		if err := d.loadLocation(loc); err != nil {
			return nil, err
		}
	}

	sort.Slice(d.scripts, func(i, j int) bool { return d.scripts[i].Name < d.scripts[j].Name })

	if err := d.link(); err != nil {
		return nil, err
	}

	if err := d.order(); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *ScriptDirectory) loadLocation(loc string) error {
	// Version locations are created on demand by Revision.
	if _, err := os.Stat(loc); os.IsNotExist(err) {
		return nil
	}

	root := os.DirFS(loc)

	// NB: WalkDir always walks in lexical order.
	err := fs.WalkDir(root, ".", func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			if path != "." {
				return fs.SkipDir
			}

			return nil
		}

		if filepath.Ext(path) != ".sql" {
			return nil
		}

		content, err := fs.ReadFile(root, path)
		if err != nil {
			return errors.Wrapf(err, "failed to read script: %s", path)
		}

		s, err := ParseScript(entry.Name(), content)
		if err != nil {
			return err
		}
		s.Path = filepath.Join(loc, path)

		if other, ok := d.byName[s.Name]; ok {
			return errors.Errorf("duplicate script name %s (%s and %s)", s.Name, other.Path, s.Path)
		}

		if other, ok := d.byRev[s.Revision]; ok {
			return errors.Errorf("revision %s is defined twice (%s and %s)", s.Revision, other.Path, s.Path)
		}

		d.scripts = append(d.scripts, s)
		d.byRev[s.Revision] = s
		d.byName[s.Name] = s
		return nil
	})

	return errors.Wrapf(err, "failed to load version location: %s", loc)
}

func (d *ScriptDirectory) link() error {
	for _, s := range d.scripts {
		for _, down := range s.DownRevisions {
			if _, ok := d.byRev[down]; !ok {
				return errors.Errorf("revision %s revises unknown revision %s", s.Revision, down)
			}

			d.children[down] = append(d.children[down], s)
		}

		for _, dep := range s.Dependencies {
			if _, ok := d.byRev[dep]; !ok {
				return errors.Errorf("revision %s depends on unknown revision %s", s.Revision, dep)
			}
		}

		for _, label := range s.BranchLabels {
			if other, ok := d.labels[label]; ok {
				return errors.Errorf("branch label %s is used by %s and %s", label, other.Revision, s.Revision)
			}

			d.labels[label] = s
		}
	}

	return nil
}

// Scripts returns every script, each one after the scripts it revises or
// depends on. Unrelated scripts keep file name order.
func (d *ScriptDirectory) Scripts() []*Script {
	return d.scripts
}

// Script returns the script with exactly the given revision id, or nil.
func (d *ScriptDirectory) Script(rev string) *Script {
	return d.byRev[rev]
}

// ScriptByName returns the script with the given file name (sql-migrate id), or nil.
func (d *ScriptDirectory) ScriptByName(name string) *Script {
	return d.byName[name]
}

// Children returns the scripts that revise rev.
func (d *ScriptDirectory) Children(rev string) []*Script {
	return d.children[rev]
}

// Heads returns the scripts nothing revises.
//
// With resolveDependencies, scripts that another script depends on are not
// heads either.
func (d *ScriptDirectory) Heads(resolveDependencies ...bool) []*Script {
	required := make(map[string]bool)
	if len(resolveDependencies) > 0 && resolveDependencies[0] {
		for _, s := range d.scripts {
			for _, dep := range s.Dependencies {
				required[dep] = true
			}
		}
	}

	var heads []*Script
	for _, s := range d.scripts {
		if len(d.children[s.Revision]) == 0 && !required[s.Revision] {
			heads = append(heads, s)
		}
	}

	return heads
}

// Bases returns the scripts that revise nothing.
func (d *ScriptDirectory) Bases() []*Script {
	var bases []*Script
	for _, s := range d.scripts {
		if s.IsBase() {
			bases = append(bases, s)
		}
	}

	return bases
}

// IsHead reports whether nothing revises s.
func (d *ScriptDirectory) IsHead(s *Script) bool {
	return len(d.children[s.Revision]) == 0
}

// IsBranchPoint reports whether more than one script revises s.
func (d *ScriptDirectory) IsBranchPoint(s *Script) bool {
	return len(d.children[s.Revision]) > 1
}

// Ancestors returns the given scripts plus everything they revise or depend
// on, transitively, in Scripts order.
func (d *ScriptDirectory) Ancestors(scripts ...*Script) []*Script {
	seen := make(map[string]bool)
	stack := append([]*Script(nil), scripts...)

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s == nil || seen[s.Revision] {
			continue
		}

		seen[s.Revision] = true
		for _, rev := range s.DownRevisions {
			stack = append(stack, d.byRev[rev])
		}

		for _, rev := range s.Dependencies {
			stack = append(stack, d.byRev[rev])
		}
	}

	return d.filter(func(s *Script) bool { return seen[s.Revision] })
}

// Descendants returns s plus every script that transitively revises it, in
// Scripts order.
func (d *ScriptDirectory) Descendants(s *Script) []*Script {
	seen := make(map[string]bool)
	stack := []*Script{s}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur.Revision] {
			continue
		}

		seen[cur.Revision] = true
		stack = append(stack, d.children[cur.Revision]...)
	}

	return d.filter(func(s *Script) bool { return seen[s.Revision] })
}

// Lookup finds a script by exact revision id, branch label or unique
// revision prefix.
func (d *ScriptDirectory) Lookup(id string) (*Script, error) {
	if s, ok := d.byRev[id]; ok {
		return s, nil
	}

	if s, ok := d.labels[id]; ok {
		return s, nil
	}

	matches := d.filter(func(s *Script) bool { return strings.HasPrefix(s.Revision, id) })
	switch len(matches) {
	case 0:
		return nil, errors.Wrapf(ErrRevisionNotFound, "%s", id)
	case 1:
		return matches[0], nil
	default:
		revs := make([]string, len(matches))
		for i, m := range matches {
			revs[i] = m.Revision
		}

		return nil, errors.Wrapf(ErrAmbiguousRevision, "%s matches %s", id, strings.Join(revs, ", "))
	}
}

// Resolve turns a reference into a single script. A nil script means base.
//
// current holds the revisions the database is at and anchors relative
// references such as "-1" and "+2".
func (d *ScriptDirectory) Resolve(ref *Reference, current []*Script) (*Script, error) {
	if ref.IsZero() {
		return nil, nil
	}

	var start *Script
	switch sym := ref.Symbol(); sym {
	case "":
		if len(current) > 1 {
			return nil, errors.Wrap(ErrMultipleHeads, "relative revision needs a single current revision")
		}

		if len(current) == 1 {
			start = current[0]
		}
	case symbolBase:
	case symbolHead, symbolHeads:
		heads, err := d.headsOf(ref.Branch())
		if err != nil {
			return nil, err
		}

		if len(heads) > 1 {
			return nil, errors.Wrapf(ErrMultipleHeads, "%s", ref)
		}

		if len(heads) == 1 {
			start = heads[0]
		}
	default:
		s, err := d.Lookup(sym)
		if err != nil {
			return nil, err
		}

		start = s
	}

	return d.walk(start, ref.Steps())
}

// ResolveAll is Resolve, except that `heads` yields every head.
func (d *ScriptDirectory) ResolveAll(ref *Reference, current []*Script) ([]*Script, error) {
	if !ref.IsZero() && ref.Symbol() == symbolHeads && ref.Steps() == 0 {
		return d.headsOf(ref.Branch())
	}

	s, err := d.Resolve(ref, current)
	if err != nil || s == nil {
		return nil, err
	}

	return []*Script{s}, nil
}

// SumFile hashes the scripts in Scripts order.
func (d *ScriptDirectory) SumFile() *SumFile {
	sf := NewSumFile()
	for _, s := range d.scripts {
		sf.Add(s.Name, s.content)
	}

	return sf
}

// order sorts the scripts so parents always come first. Among the scripts
// that are ready, the smallest file name goes next, so a directory whose
// timestamps already follow the graph keeps file name order.
func (d *ScriptDirectory) order() error {
	waiting := make(map[string]int, len(d.scripts))
	dependents := make(map[string][]*Script)
	for _, s := range d.scripts {
		for _, rev := range slices.Concat(s.DownRevisions, s.Dependencies) {
			waiting[s.Revision]++
			dependents[rev] = append(dependents[rev], s)
		}
	}

	ordered := make([]*Script, 0, len(d.scripts))
	placed := make(map[string]bool, len(d.scripts))
	for len(ordered) < len(d.scripts) {
		i := slices.IndexFunc(d.scripts, func(s *Script) bool {
			return !placed[s.Revision] && waiting[s.Revision] == 0
		})

		if i < 0 {
			var cycle []string
			for _, s := range d.scripts {
				if !placed[s.Revision] {
					cycle = append(cycle, s.Revision)
				}
			}

			return errors.Errorf("revisions %s form a cycle", strings.Join(cycle, ", "))
		}

		s := d.scripts[i]
		placed[s.Revision] = true
		ordered = append(ordered, s)
		for _, c := range dependents[s.Revision] {
			waiting[c.Revision]--
		}
	}

	d.scripts = ordered
	return nil
}

func (d *ScriptDirectory) headsOf(label string) ([]*Script, error) {
	heads := d.Heads()
	if label == "" {
		return heads, nil
	}

	root, ok := d.labels[label]
	if !ok {
		return nil, errors.Wrapf(ErrRevisionNotFound, "branch label %s", label)
	}

	var out []*Script
	for _, h := range heads {
		for _, a := range d.Ancestors(h) {
			if a == root {
				out = append(out, h)
				break
			}
		}
	}

	return out, nil
}

func (d *ScriptDirectory) walk(start *Script, steps int) (*Script, error) {
	cur := start
	for i := 0; i > steps; i-- {
		switch {
		case cur == nil:
			return nil, errors.Errorf("relative revision %d goes past base", steps)
		case cur.IsBase():
			cur = nil
		case cur.IsMergePoint():
			return nil, errors.Errorf("ambiguous walk: %s revises %s", cur.Revision, strings.Join(cur.DownRevisions, ", "))
		default:
			cur = d.byRev[cur.DownRevisions[0]]
		}
	}

	for i := 0; i < steps; i++ {
		next := d.Bases()
		if cur != nil {
			next = d.children[cur.Revision]
		}

		switch len(next) {
		case 0:
			return nil, errors.Errorf("relative revision +%d goes past head", steps)
		case 1:
			cur = next[0]
		default:
			return nil, errors.Errorf("ambiguous walk: %d revisions follow %s", len(next), describe(cur))
		}
	}

	return cur, nil
}

// currentHeads returns the applied scripts none of whose children are applied.
func (d *ScriptDirectory) currentHeads(applied map[string]bool) []*Script {
	return d.filter(func(s *Script) bool {
		if !applied[s.Name] {
			return false
		}

		for _, c := range d.children[s.Revision] {
			if applied[c.Name] {
				return false
			}
		}

		return true
	})
}

func (d *ScriptDirectory) filter(keep func(*Script) bool) []*Script {
	var out []*Script
	for _, s := range d.scripts {
		if keep(s) {
			out = append(out, s)
		}
	}

	return out
}

func migrations(scripts []*Script) []*migrate.Migration {
	out := make([]*migrate.Migration, len(scripts))
	for i, s := range scripts {
		out[i] = s.Migration
	}

	return out
}

func describe(s *Script) string {
	if s == nil {
		return "<base>"
	}

	return s.Revision
}
