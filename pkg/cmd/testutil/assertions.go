package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// RequireFileExists asserts that a file exists and optionally validates its content
func RequireFileExists(t *testing.T, path string, checks ...func(content string)) {
	t.Helper()

	require.FileExists(t, path, "File should exist: %s", path)

	if len(checks) > 0 {
		content, err := os.ReadFile(path)
		require.NoError(t, err, "Should be able to read file: %s", path)

		for _, check := range checks {
			check(string(content))
		}
	}
}

// RequireFileContains returns a check function that verifies file contains expected text
func RequireFileContains(t *testing.T, expected string) func(string) {
	return func(content string) {
		require.Contains(t, content, expected, "File should contain: %s", expected)
	}
}

// RequireRevisionCount asserts the number of revision scripts in a directory
func RequireRevisionCount(t *testing.T, versionsDir string, expectedCount int) {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(versionsDir, "*.sql"))
	require.NoError(t, err)
	require.Len(t, matches, expectedCount, "Should have expected number of revision scripts")
}

// RequireSumFileValid asserts that a sum file exists and has valid format
func RequireSumFileValid(t *testing.T, sumPath string) {
	t.Helper()

	RequireFileExists(t, sumPath, func(content string) {
		lines := strings.Split(strings.TrimSpace(content), "\n")
		require.NotEmpty(t, lines, "Sum file should not be empty")

		// First line should be total hash
		require.True(t, strings.HasPrefix(lines[0], "h1:"),
			"First line should be total hash")

		// Subsequent lines should be file hashes
		for i := 1; i < len(lines); i++ {
			parts := strings.Fields(lines[i])
			require.Len(t, parts, 2, "Each line should have filename and hash")
			require.True(t, strings.HasSuffix(parts[0], ".sql"),
				"First part should be SQL filename")
			require.True(t, strings.HasPrefix(parts[1], "h1:"),
				"Second part should be hash")
		}
	})
}

// RequireTables asserts the user tables present in a sqlite database
func RequireTables(t *testing.T, dbPath string, expected ...string) {
	t.Helper()

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	require.NoError(t, err)
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		tables = append(tables, name)
	}
	require.NoError(t, rows.Err())

	if len(expected) == 0 {
		require.Empty(t, tables)
		return
	}

	require.Equal(t, expected, tables)
}
