package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pseudomuto/pgkeeper/pkg/cmd/testutil"
	"github.com/pseudomuto/pgkeeper/pkg/consts"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func TestRehashCommand_WithRevisions(t *testing.T) {
	fixture := testutil.TestProject(t).
		WithMigrations().
		WithRevisions(
			testutil.Revision("aaaa0001", "", "CREATE TABLE a (id INTEGER);", "DROP TABLE a;"),
			testutil.Revision("bbbb0002", "aaaa0001", "CREATE TABLE b (id INTEGER);", "DROP TABLE b;"),
		)

	command := rehash(migrateParams{Config: fixture.Config})

	var buf bytes.Buffer
	testCmd := &cli.Command{
		Flags:  command.Flags,
		Writer: &buf,
	}

	err := command.Action(context.Background(), testCmd)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "Rehashed 2 revision script(s)")

	sumPath := filepath.Join(fixture.GetMigrationsDir(), consts.SumFileName)
	testutil.RequireSumFileValid(t, sumPath)
	testutil.RequireFileExists(t, sumPath,
		testutil.RequireFileContains(t, "20240101000000_aaaa0001.sql h1:"),
		testutil.RequireFileContains(t, "20240101000000_bbbb0002.sql h1:"),
	)
}

func TestRehashCommand_NoMigrationsDirectory(t *testing.T) {
	fixture := testutil.TestProject(t)
	command := rehash(migrateParams{Config: fixture.Config})

	var buf bytes.Buffer
	testCmd := &cli.Command{
		Flags:  command.Flags,
		Writer: &buf,
	}

	err := command.Action(context.Background(), testCmd)
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestRehashCommand_UpdatesExistingSumFile(t *testing.T) {
	fixture := testutil.TestProject(t).
		WithMigrations().
		WithRevisions(testutil.Revision("aaaa0001", "", "SELECT 1;", "SELECT 1;"))

	sumPath := filepath.Join(fixture.GetMigrationsDir(), consts.SumFileName)
	require.NoError(t, os.WriteFile(sumPath, []byte("h1:oldhash=\n20240101000000_aaaa0001.sql h1:oldfilehash=\n"), consts.ModeFile))

	require.NoError(t, testutil.RunCommand(t, rehash(migrateParams{Config: fixture.Config}), nil))

	content, err := os.ReadFile(sumPath)
	require.NoError(t, err)
	require.NotContains(t, string(content), "oldhash")
	testutil.RequireSumFileValid(t, sumPath)
}
