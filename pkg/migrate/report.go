package migrate

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type (
	// HistoryOptions controls History.
	HistoryOptions struct {
		// Range limits the output to `[start]:[end]`
		Range   string
		Verbose bool
	}

	// HeadsOptions controls Heads.
	HeadsOptions struct {
		Verbose bool

		// ResolveDependencies treats `Depends On` links like down revisions
		ResolveDependencies bool
	}

	// BranchesOptions controls Branches.
	BranchesOptions struct {
		Verbose bool
	}

	formatOptions struct {
		parents bool
		heads   bool
		tree    bool
		labels  bool
		message bool
	}
)

// Show prints the details of the revisions rev refers to.
func Show(cfg *Config, rev string) error {
	dir, err := LoadScriptDirectory(cfg)
	if err != nil {
		return err
	}

	expr, err := ParseTarget(orDefault(rev, symbolHead))
	if err != nil {
		return err
	}

	if expr.Range {
		return errors.Errorf("show needs a single revision, got %q", rev)
	}

	scripts, err := dir.ResolveAll(expr.Start, nil)
	if err != nil {
		return err
	}

	for _, s := range scripts {
		fmt.Fprint(cfg.Output, entry(dir, s, ""))
	}

	return nil
}

// History prints the revisions newest first.
//
// Range accepts `start:end`, `start:` and `:end`; both ends are included.
func History(cfg *Config, opts HistoryOptions) error {
	dir, err := LoadScriptDirectory(cfg)
	if err != nil {
		return err
	}

	scripts := dir.Scripts()
	if opts.Range != "" {
		if scripts, err = historyRange(dir, opts.Range); err != nil {
			return err
		}
	}

	for i := len(scripts) - 1; i >= 0; i-- {
		s := scripts[i]
		if opts.Verbose {
			fmt.Fprint(cfg.Output, entry(dir, s, ""))
			continue
		}

		fmt.Fprintln(cfg.Output, format(dir, s, formatOptions{
			parents: true,
			heads:   true,
			tree:    true,
			labels:  true,
			message: true,
		}))
	}

	return nil
}

// Heads prints every head revision.
func Heads(cfg *Config, opts HeadsOptions) error {
	dir, err := LoadScriptDirectory(cfg)
	if err != nil {
		return err
	}

	for _, s := range dir.Heads(opts.ResolveDependencies) {
		if opts.Verbose {
			fmt.Fprint(cfg.Output, entry(dir, s, ""))
			continue
		}

		fmt.Fprintln(cfg.Output, format(dir, s, formatOptions{heads: true, labels: true}))
	}

	return nil
}

// Branches prints every branch point followed by the revisions it branches into.
func Branches(cfg *Config, opts BranchesOptions) error {
	dir, err := LoadScriptDirectory(cfg)
	if err != nil {
		return err
	}

	scripts := dir.Scripts()
	for i := len(scripts) - 1; i >= 0; i-- {
		s := scripts[i]
		if !dir.IsBranchPoint(s) {
			continue
		}

		if opts.Verbose {
			fmt.Fprint(cfg.Output, entry(dir, s, ""))
		} else {
			fmt.Fprintln(cfg.Output, format(dir, s, formatOptions{tree: true, labels: true}))
		}

		indent := strings.Repeat(" ", len(s.Revision))
		for _, c := range dir.Children(s.Revision) {
			fmt.Fprintf(cfg.Output, "%s -> %s\n", indent, format(dir, c, formatOptions{
				heads:   true,
				tree:    true,
				labels:  true,
				message: opts.Verbose,
			}))
		}
	}

	return nil
}

func historyRange(dir *ScriptDirectory, rng string) ([]*Script, error) {
	expr, err := ParseTarget(rng)
	if err != nil {
		return nil, err
	}

	if !expr.Range {
		return nil, errors.Errorf("history range must be [start]:[end], [start]: or :[end], got %q", rng)
	}

	lower, err := dir.Resolve(expr.Start, nil)
	if err != nil {
		return nil, err
	}

	inRange := make(map[string]bool)
	if lower == nil {
		for _, s := range dir.Scripts() {
			inRange[s.Revision] = true
		}
	} else {
		for _, s := range dir.Descendants(lower) {
			inRange[s.Revision] = true
		}
	}

	upper := dir.Heads()
	if expr.End != nil {
		if upper, err = dir.ResolveAll(expr.End, nil); err != nil {
			return nil, err
		}
	}

	return dir.filter(func(s *Script) bool {
		if !inRange[s.Revision] {
			return false
		}

		for _, a := range dir.Ancestors(upper...) {
			if a == s {
				return true
			}
		}

		return false
	}), nil
}

// format renders the one line summary of a script, e.g.
//
//	ae1027a6acf4 -> 1975ea83b712 (head) (shop), add accounts
func format(dir *ScriptDirectory, s *Script, opts formatOptions) string {
	var sb strings.Builder
	if opts.parents {
		sb.WriteString(downLabel(s))
		sb.WriteString(" -> ")
	}

	sb.WriteString(s.Revision)

	if opts.heads && dir.IsHead(s) {
		sb.WriteString(" (head)")
	}

	if opts.tree {
		if dir.IsBranchPoint(s) {
			sb.WriteString(" (branchpoint)")
		}

		if s.IsMergePoint() {
			sb.WriteString(" (mergepoint)")
		}
	}

	if opts.labels && len(s.BranchLabels) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(s.BranchLabels, ", "))
	}

	if opts.message {
		fmt.Fprintf(&sb, ", %s", s.Message)
	}

	return sb.String()
}

// entry renders the verbose, multi-line description of a script.
func entry(dir *ScriptDirectory, s *Script, extra string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Rev: %s\n", format(dir, s, formatOptions{heads: true, tree: true}))
	if s.IsMergePoint() {
		fmt.Fprintf(&sb, "Merges: %s\n", strings.Join(s.DownRevisions, ", "))
	} else {
		fmt.Fprintf(&sb, "Parent: %s\n", downLabel(s))
	}

	if dir.IsBranchPoint(s) {
		kids := dir.Children(s.Revision)
		revs := make([]string, len(kids))
		for i, k := range kids {
			revs[i] = k.Revision
		}

		fmt.Fprintf(&sb, "Branches into: %s\n", strings.Join(revs, ", "))
	}

	if len(s.BranchLabels) > 0 {
		fmt.Fprintf(&sb, "Branch names: %s\n", strings.Join(s.BranchLabels, ", "))
	}

	if len(s.Dependencies) > 0 {
		fmt.Fprintf(&sb, "Also depends on: %s\n", strings.Join(s.Dependencies, ", "))
	}

	fmt.Fprintf(&sb, "Path: %s\n", s.Path)
	if s.CreateDate != "" {
		fmt.Fprintf(&sb, "Create Date: %s\n", s.CreateDate)
	}

	if extra != "" {
		fmt.Fprintf(&sb, "%s\n", extra)
	}

	fmt.Fprintf(&sb, "\n    %s\n\n", s.Message)
	return sb.String()
}
