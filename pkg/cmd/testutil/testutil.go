package testutil

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pseudomuto/pgkeeper/pkg/config"
	"github.com/pseudomuto/pgkeeper/pkg/consts"
	"github.com/pseudomuto/pgkeeper/pkg/migrate"
	"github.com/stretchr/testify/require"
)

// ProjectFixture is an isolated migrations directory backed by a sqlite
// database in a temp directory.
type ProjectFixture struct {
	Dir    string
	Config *config.Config
	t      *testing.T
}

// RevisionFile describes a revision script written by WithRevisions
type RevisionFile struct {
	Name    string
	Content string
}

// TestProject creates an isolated temp directory with an application config
// pointing at it. The migrations directory is not created.
func TestProject(t *testing.T) *ProjectFixture {
	t.Helper()

	tmpDir := t.TempDir()

	return &ProjectFixture{
		Dir: tmpDir,
		Config: &config.Config{
			Driver:        "sqlite3",
			DatabaseURL:   filepath.Join(tmpDir, "app.db"),
			MigrationsDir: filepath.Join(tmpDir, consts.DefaultMigrationsDir),
			SchemaFile:    filepath.Join(tmpDir, consts.DefaultSchemaFile),
			Schemas:       []string{consts.DefaultSchema},
			BackupPath:    filepath.Join(tmpDir, consts.DefaultBackupPath),
		},
		t: t,
	}
}

// WithMigrations initializes the migrations directory
func (p *ProjectFixture) WithMigrations() *ProjectFixture {
	p.t.Helper()

	cfg, err := migrate.NewConfig(p.Config.MigrationsDir)
	require.NoError(p.t, err)

	cfg.Output = io.Discard
	require.NoError(p.t, migrate.Init(cfg), "Failed to initialize migrations directory")

	return p
}

// WithRevisions writes revision scripts to the default version location
func (p *ProjectFixture) WithRevisions(files ...RevisionFile) *ProjectFixture {
	p.t.Helper()

	dir := p.GetVersionsDir()
	require.NoError(p.t, os.MkdirAll(dir, consts.ModeDir))

	for _, file := range files {
		err := os.WriteFile(filepath.Join(dir, file.Name), []byte(file.Content), consts.ModeFile)
		require.NoError(p.t, err, "Failed to write revision file: %s", file.Name)
	}

	return p
}

// GetMigrationsDir returns the migrations directory
func (p *ProjectFixture) GetMigrationsDir() string {
	return p.Config.MigrationsDir
}

// GetVersionsDir returns the default version location
func (p *ProjectFixture) GetVersionsDir() string {
	return filepath.Join(p.Config.MigrationsDir, consts.DefaultVersionLocation)
}

// FindRevision returns the path of the script for rev
func (p *ProjectFixture) FindRevision(rev string) string {
	p.t.Helper()

	matches, err := filepath.Glob(filepath.Join(p.GetVersionsDir(), "*_"+rev+"*.sql"))
	require.NoError(p.t, err)
	require.Len(p.t, matches, 1, "Expected exactly one script for revision %s", rev)

	return matches[0]
}

// EditRevision rewrites the script for rev, inserting up and down statements
// after the section markers.
func (p *ProjectFixture) EditRevision(rev, up, down string) {
	p.t.Helper()

	path := p.FindRevision(rev)
	data, err := os.ReadFile(path)
	require.NoError(p.t, err)

	content := strings.Replace(string(data), "-- +migrate Up\n", "-- +migrate Up\n"+up+"\n", 1)
	content = strings.Replace(content, "-- +migrate Down\n", "-- +migrate Down\n"+down+"\n", 1)
	require.NoError(p.t, os.WriteFile(path, []byte(content), consts.ModeFile))
}

// Revision returns a minimal revision script
func Revision(rev, revises, up, down string) RevisionFile {
	return RevisionFile{
		Name: "20240101000000_" + rev + ".sql",
		Content: "-- Revision ID: " + rev + "\n" +
			"-- Revises: " + revises + "\n" +
			"-- Create Date: 2024-01-01 00:00:00\n\n" +
			"-- +migrate Up\n" + up + "\n\n" +
			"-- +migrate Down\n" + down + "\n",
	}
}
