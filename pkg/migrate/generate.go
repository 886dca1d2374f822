package migrate

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"testing/fstest"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pseudomuto/pgkeeper/pkg/consts"
	log "github.com/sirupsen/logrus"
)

var (
	//go:embed embed/migrate.yaml
	defaultEngineConfig []byte

	//go:embed embed/script.sql.tmpl
	defaultScriptTemplate string

	image = fstest.MapFS{
		consts.DefaultVersionLocation: {Mode: os.ModeDir | consts.ModeDir},
		consts.EngineConfigFile:       {Data: defaultEngineConfig},
		consts.ScriptTemplateFile:     {Data: []byte(defaultScriptTemplate)},
	}

	revIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	reserved     = []string{symbolHead, symbolHeads, symbolBase}
)

type (
	// RevisionOptions controls Revision.
	RevisionOptions struct {
		// Message is stored in the header and slugged into the file name
		Message string

		// Autogenerate asks for statements derived from model metadata. None
		// is configured, so the revision is written empty with a warning.
		Autogenerate bool

		// SQL is accepted for parity with the other commands and has no
		// effect on generation
		SQL bool

		// Head is the revision the new one revises ("head" when empty)
		Head string

		// Splice allows Head to be a revision that is not a head
		Splice bool

		// BranchLabel is attached to the new revision
		BranchLabel string

		// VersionPath picks the version location the script is written to
		VersionPath string

		// RevID replaces the generated revision id
		RevID string
	}

	// MergeOptions controls Merge.
	MergeOptions struct {
		// Revisions to merge. "heads" expands to every head.
		Revisions   []string
		Message     string
		BranchLabel string
		RevID       string
	}

	scriptData struct {
		Revision      string
		DownRevisions []string
		BranchLabels  []string
		Dependencies  []string
		CreateDate    string
		Message       string
		Upgrades      string
		Downgrades    string
	}
)

// Init creates a migrations directory at cfg.ScriptLocation holding the
// engine configuration, the revision template and an empty version location.
//
// The directory may exist, but it must be empty.
func Init(cfg *Config) error {
	entries, err := os.ReadDir(cfg.ScriptLocation)
	switch {
	case err == nil && len(entries) > 0:
		return errors.Errorf("directory %s already exists and is not empty", cfg.ScriptLocation)
	case err != nil && !os.IsNotExist(err):
		return errors.Wrapf(err, "failed to read %s", cfg.ScriptLocation)
	}

	if err := os.MkdirAll(cfg.ScriptLocation, consts.ModeDir); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", cfg.ScriptLocation)
	}
	fmt.Fprintf(cfg.Output, "  Creating directory %s ...  done\n", cfg.ScriptLocation)

	paths := make([]string, 0, len(image))
	for path := range image {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		entry := image[path]
		fullPath := filepath.Join(cfg.ScriptLocation, path)

		if entry.Mode.IsDir() {
			if err := os.MkdirAll(fullPath, entry.Mode.Perm()); err != nil {
				return errors.Wrapf(err, "failed to create directory %s", fullPath)
			}

			fmt.Fprintf(cfg.Output, "  Creating directory %s ...  done\n", fullPath)
			continue
		}

		if err := os.WriteFile(fullPath, entry.Data, consts.ModeFile); err != nil {
			return errors.Wrapf(err, "failed to write file %s", fullPath)
		}

		fmt.Fprintf(cfg.Output, "  Generating %s ...  done\n", fullPath)
	}

	log.WithField("directory", cfg.ScriptLocation).Info("Initialized migrations directory")
	return nil
}

// Revision writes a new, empty revision script on top of opts.Head.
//
// Without Splice the parent must be a head, and when the directory has more
// than one head an explicit Head is required. migrate.sum is rewritten
// afterwards.
//
// Example usage:
//
//	script, err := migrate.Revision(cfg, migrate.RevisionOptions{Message: "add accounts"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Println(script.Path) // migrations/versions/20240102150405_1975ea83b712_add_accounts.sql
func Revision(cfg *Config, opts RevisionOptions) (*Script, error) {
	dir, err := LoadScriptDirectory(cfg)
	if err != nil {
		return nil, err
	}

	head := opts.Head
	if head == "" {
		head = symbolHead
	}

	expr, err := ParseTarget(head)
	if err != nil {
		return nil, err
	}

	if expr.Range {
		return nil, errors.Errorf("--head must be a single revision, got %q", head)
	}

	parent, err := dir.Resolve(expr.Start, nil)
	if err != nil {
		if errors.Cause(err) == ErrMultipleHeads {
			return nil, errors.Wrap(err, "pass --head to pick a parent or merge the heads first")
		}

		return nil, err
	}

	if parent != nil && !dir.IsHead(parent) && !opts.Splice {
		return nil, errors.Errorf("revision %s is not a head revision; pass --splice to branch from it", parent.Revision)
	}

	if opts.Autogenerate {
		log.Warn("Autogenerate requested but no model metadata is available; writing an empty revision")
	}

	if opts.SQL {
		log.Debug("Offline mode has no effect on revision generation")
	}

	data := scriptData{Message: opts.Message}
	if parent != nil {
		data.DownRevisions = []string{parent.Revision}
	}

	return generate(cfg, dir, data, opts.RevID, opts.BranchLabel, opts.VersionPath)
}

// Merge writes a revision that revises every one of opts.Revisions, joining
// their branches.
func Merge(cfg *Config, opts MergeOptions) (*Script, error) {
	dir, err := LoadScriptDirectory(cfg)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var parents []string
	for _, rev := range opts.Revisions {
		expr, err := ParseTarget(rev)
		if err != nil {
			return nil, err
		}

		if expr.Range {
			return nil, errors.Errorf("cannot merge a revision range: %q", rev)
		}

		scripts, err := dir.ResolveAll(expr.Start, nil)
		if err != nil {
			return nil, err
		}

		for _, s := range scripts {
			if !seen[s.Revision] {
				seen[s.Revision] = true
				parents = append(parents, s.Revision)
			}
		}
	}

	if len(parents) < 2 {
		return nil, errors.Errorf("merge needs at least two distinct revisions, got %d", len(parents))
	}

	return generate(cfg, dir, scriptData{Message: opts.Message, DownRevisions: parents}, opts.RevID, opts.BranchLabel, "")
}

const fileTimeLayout = "20060102150405"

// fileTime returns the timestamp for a new script's file name. It is moved
// past the timestamp of every parent so that file names sort parents first.
func fileTime(dir *ScriptDirectory, now time.Time, parents []string) time.Time {
	now = now.Truncate(time.Second)
	for _, rev := range parents {
		p := dir.Script(rev)
		if p == nil || len(p.Name) < len(fileTimeLayout) {
			continue
		}

		t, err := time.ParseInLocation(fileTimeLayout, p.Name[:len(fileTimeLayout)], now.Location())
		if err == nil && !now.After(t) {
			now = t.Add(time.Second)
		}
	}

	return now
}

func generate(cfg *Config, dir *ScriptDirectory, data scriptData, revID, label, versionPath string) (*Script, error) {
	rev, err := newRevisionID(dir, revID)
	if err != nil {
		return nil, err
	}

	if label != "" {
		if !revIDPattern.MatchString(label) {
			return nil, errors.Errorf("invalid branch label %q", label)
		}

		if _, ok := dir.labels[label]; ok {
			return nil, errors.Errorf("branch label %s is already in use", label)
		}

		data.BranchLabels = []string{label}
	}

	loc, err := versionLocation(cfg, versionPath)
	if err != nil {
		return nil, err
	}

	now := cfg.Now()
	data.Revision = rev
	data.CreateDate = now.Format("2006-01-02 15:04:05")
	data.Message = strings.Join(strings.Fields(data.Message), " ")

	stamp := fileTime(dir, now, slices.Concat(data.DownRevisions, data.Dependencies))
	name := stamp.Format(fileTimeLayout) + "_" + rev
	if slug := slugify(data.Message, cfg.TruncateSlugLength); slug != "" {
		name += "_" + slug
	}
	name += ".sql"

	content, err := render(cfg, data)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(loc, consts.ModeDir); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory %s", loc)
	}

	path := filepath.Join(loc, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, consts.ModeFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", path)
	}

	_, err = f.Write(content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", path)
	}
	fmt.Fprintf(cfg.Output, "  Generating %s ...  done\n", path)

	script, err := ParseScript(name, content)
	if err != nil {
		return nil, err
	}
	script.Path = path

	updated, err := LoadScriptDirectory(cfg)
	if err != nil {
		return nil, err
	}

	if err := writeSumFile(cfg, updated); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"revision": rev,
		"revises":  strings.Join(data.DownRevisions, ","),
		"path":     path,
	}).Info("Generated revision")

	return script, nil
}

func render(cfg *Config, data scriptData) ([]byte, error) {
	text := defaultScriptTemplate

	path := filepath.Join(cfg.ScriptLocation, consts.ScriptTemplateFile)
	if b, err := os.ReadFile(path); err == nil {
		text = string(b)
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	tmpl, err := template.New(consts.ScriptTemplateFile).
		Funcs(template.FuncMap{"join": strings.Join}).
		Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", consts.ScriptTemplateFile)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errors.Wrapf(err, "failed to render %s", consts.ScriptTemplateFile)
	}

	return buf.Bytes(), nil
}

func newRevisionID(dir *ScriptDirectory, rev string) (string, error) {
	if rev == "" {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")
		return id[len(id)-12:], nil
	}

	if !revIDPattern.MatchString(rev) {
		return "", errors.Errorf("invalid revision id %q; use letters, digits and underscores", rev)
	}

	for _, r := range reserved {
		if rev == r {
			return "", errors.Errorf("revision id %q is reserved", rev)
		}
	}

	if dir.Script(rev) != nil {
		return "", errors.Errorf("revision %s already exists", rev)
	}

	return rev, nil
}

func versionLocation(cfg *Config, path string) (string, error) {
	locs := cfg.Locations()
	if path == "" {
		return locs[0], nil
	}

	want, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %s", path)
	}

	for _, loc := range locs {
		if abs, err := filepath.Abs(loc); err == nil && abs == want {
			return loc, nil
		}
	}

	return "", errors.Errorf("version path %s is not one of the configured version locations (%s)", path, strings.Join(locs, ", "))
}

func slugify(msg string, max int) string {
	var sb strings.Builder
	sep := false

	for _, r := range strings.ToLower(msg) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if sep && sb.Len() > 0 {
				sb.WriteByte('_')
			}

			sb.WriteRune(r)
			sep = false
			continue
		}

		sep = true
	}

	slug := sb.String()
	if len(slug) > max {
		slug = strings.TrimRight(slug[:max], "_")
	}

	return slug
}
