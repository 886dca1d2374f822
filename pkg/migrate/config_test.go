package migrate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pseudomuto/pgkeeper/pkg/consts"
	. "github.com/pseudomuto/pgkeeper/pkg/migrate"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "migrations")

		cfg, err := NewConfig(dir)
		require.NoError(t, err)
		require.Equal(t, dir, cfg.ScriptLocation)
		require.Equal(t, []string{consts.DefaultVersionLocation}, cfg.VersionLocations)
		require.Equal(t, []string{filepath.Join(dir, consts.DefaultVersionLocation)}, cfg.Locations())
		require.Equal(t, consts.DefaultVersionTable, cfg.Table())
		require.Empty(t, cfg.Schema())
		require.Empty(t, cfg.XArgs)
		require.NotNil(t, cfg.Output)
		require.NotNil(t, cfg.Now)
	})

	t.Run("engine config file", func(t *testing.T) {
		dir := t.TempDir()
		yaml := "version_locations:\n  - v1\n  - /abs/v2\nversion_table: versions\nversion_table_schema: meta\ntruncate_slug_length: 12\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, consts.EngineConfigFile), []byte(yaml), consts.ModeFile))

		cfg, err := NewConfig(dir)
		require.NoError(t, err)
		require.Equal(t, dir, cfg.ScriptLocation)
		require.Equal(t, []string{filepath.Join(dir, "v1"), "/abs/v2"}, cfg.Locations())
		require.Equal(t, "versions", cfg.Table())
		require.Equal(t, "meta", cfg.Schema())
		require.Equal(t, 12, cfg.TruncateSlugLength)
	})

	t.Run("malformed engine config", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, consts.EngineConfigFile), []byte("version_locations: ["), consts.ModeFile))

		_, err := NewConfig(dir)
		require.ErrorContains(t, err, "failed to unmarshal")
	})
}

func TestConfig_XArgs(t *testing.T) {
	cfg, err := NewConfig(t.TempDir())
	require.NoError(t, err)

	cfg.AppendXArg("table=first")
	cfg.AppendXArg("flag")
	cfg.AppendXArg("table = second")
	cfg.AppendXArg("schema=audit")

	require.Equal(t, []string{"table=first", "flag", "table = second", "schema=audit"}, cfg.XArgs)

	v, ok := cfg.XArg("table")
	require.True(t, ok)
	require.Equal(t, "second", v)
	require.Equal(t, "second", cfg.Table())
	require.Equal(t, "audit", cfg.Schema())

	_, ok = cfg.XArg("flag")
	require.False(t, ok)
}

func TestConfig_Open(t *testing.T) {
	cfg, err := NewConfig(t.TempDir())
	require.NoError(t, err)

	_, err = cfg.Open()
	require.ErrorContains(t, err, "no database driver configured")

	cfg.Driver = "sqlite3"
	cfg.DSN = filepath.Join(t.TempDir(), "app.db")
	db, err := cfg.Open()
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	require.NoError(t, db.Close())
}
