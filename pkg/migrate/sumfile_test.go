package migrate_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pseudomuto/pgkeeper/pkg/consts"
	. "github.com/pseudomuto/pgkeeper/pkg/migrate"
	"github.com/stretchr/testify/require"
)

func TestSumFile(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		sf := NewSumFile()
		require.Equal(t, 0, sf.Len())
		require.Empty(t, sf.Sum())
	})

	t.Run("chained hashing", func(t *testing.T) {
		a := NewSumFile()
		a.Add("001.sql", []byte("CREATE TABLE a;"))
		a.Add("002.sql", []byte("CREATE TABLE b;"))

		b := NewSumFile()
		b.Add("001.sql", []byte("CREATE TABLE a; -- changed"))
		b.Add("002.sql", []byte("CREATE TABLE b;"))

		require.True(t, strings.HasPrefix(a.Sum(), "h1:"))
		require.NotEqual(t, a.Sum(), b.Sum())

		// the change in 001 ripples into 002 through the chain
		require.Equal(t, []string{"001.sql", "002.sql"}, b.Mismatched(a))
	})

	t.Run("round trip", func(t *testing.T) {
		sf := NewSumFile()
		sf.Add("001.sql", []byte("CREATE TABLE a;"))
		sf.Add("002.sql", []byte("CREATE TABLE b;"))

		var buf bytes.Buffer
		n, err := sf.WriteTo(&buf)
		require.NoError(t, err)
		require.Equal(t, int64(buf.Len()), n)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		require.Equal(t, sf.Sum(), lines[0])
		require.True(t, strings.HasPrefix(lines[1], "001.sql h1:"))

		loaded, total, err := LoadSumFile(&buf)
		require.NoError(t, err)
		require.Equal(t, sf.Sum(), total)
		require.Equal(t, 2, loaded.Len())
		require.Equal(t, sf.Sum(), loaded.Sum())
		require.Empty(t, sf.Mismatched(loaded))
	})

	t.Run("load errors", func(t *testing.T) {
		_, _, err := LoadSumFile(strings.NewReader("nope\n"))
		require.ErrorContains(t, err, "invalid total hash format")

		_, _, err = LoadSumFile(strings.NewReader("h1:abc=\n001.sql\n"))
		require.ErrorContains(t, err, "invalid sum entry")

		_, _, err = LoadSumFile(strings.NewReader("h1:abc=\n001.sql h1:!!!\n"))
		require.ErrorContains(t, err, "failed to decode hash")

		sf, total, err := LoadSumFile(strings.NewReader(""))
		require.NoError(t, err)
		require.Empty(t, total)
		require.Equal(t, 0, sf.Len())
	})
}

func TestRehash(t *testing.T) {
	f := newFixture(t)
	f.write(linear...)

	require.NoError(t, Rehash(f.cfg))

	sumPath := filepath.Join(f.cfg.ScriptLocation, consts.SumFileName)
	data, err := os.ReadFile(sumPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "20240101000000_aaaa0001_accounts.sql h1:")
	require.Contains(t, string(data), "20240102000000_bbbb0002_orders.sql h1:")

	t.Run("verified before upgrade", func(t *testing.T) {
		path := filepath.Join(f.cfg.ScriptLocation, consts.DefaultVersionLocation, linear[1].name)
		edited := linear[1]
		edited.up = "CREATE TABLE orders (id INTEGER PRIMARY KEY, total INTEGER);"
		f.write(edited)

		err := Upgrade(context.Background(), f.cfg, UpgradeOptions{})
		require.Error(t, err)
		require.Contains(t, err.Error(), "migrate.sum does not match the revision scripts")
		require.Contains(t, err.Error(), filepath.Base(path))
		require.Empty(t, f.tables())

		require.NoError(t, Rehash(f.cfg))
		require.NoError(t, Upgrade(context.Background(), f.cfg, UpgradeOptions{}))
		require.Contains(t, f.tables(), "orders")
	})
}
