package migrate_test

import (
	"context"
	"strings"
	"testing"

	. "github.com/pseudomuto/pgkeeper/pkg/migrate"
	"github.com/stretchr/testify/require"
)

func TestUpgrade_OfflineRange(t *testing.T) {
	f := newFixture(t)
	f.write(linear...)

	require.NoError(t, Upgrade(context.Background(), f.cfg, UpgradeOptions{Revision: "base:head", SQL: true, Tag: "v1"}))
	require.Equal(t, ""+
		"-- Tag: v1\n\n"+
		"BEGIN;\n\n"+
		"CREATE TABLE IF NOT EXISTS \"pgkeeper_revisions\" (id text NOT NULL PRIMARY KEY, applied_at timestamp with time zone);\n\n"+
		"-- Running upgrade <base> -> aaaa0001\n\n"+
		"CREATE TABLE accounts (id INTEGER PRIMARY KEY);\n\n"+
		"INSERT INTO \"pgkeeper_revisions\" (id, applied_at) VALUES ('20240101000000_aaaa0001_accounts.sql', CURRENT_TIMESTAMP);\n\n"+
		"-- Running upgrade aaaa0001 -> bbbb0002\n\n"+
		"CREATE TABLE orders (id INTEGER PRIMARY KEY);\n\n"+
		"INSERT INTO \"pgkeeper_revisions\" (id, applied_at) VALUES ('20240102000000_bbbb0002_orders.sql', CURRENT_TIMESTAMP);\n\n"+
		"COMMIT;\n",
		f.out.String(),
	)

	// no database was touched
	require.NoFileExists(t, f.cfg.DSN)

	t.Run("partial", func(t *testing.T) {
		f.out.Reset()
		require.NoError(t, Upgrade(context.Background(), f.cfg, UpgradeOptions{Revision: "aaaa0001:", SQL: true}))
		out := f.out.String()
		require.NotContains(t, out, "CREATE TABLE IF NOT EXISTS")
		require.NotContains(t, out, "accounts")
		require.Contains(t, out, "-- Running upgrade aaaa0001 -> bbbb0002")
	})

	t.Run("requires sql", func(t *testing.T) {
		err := Upgrade(context.Background(), f.cfg, UpgradeOptions{Revision: "base:head"})
		require.ErrorContains(t, err, "revision ranges are only supported with --sql")
	})
}

func TestDowngrade_OfflineRange(t *testing.T) {
	f := newFixture(t)
	f.write(linear...)

	require.NoError(t, Downgrade(context.Background(), f.cfg, DowngradeOptions{Revision: "head:-1", SQL: true}))
	require.Equal(t, ""+
		"BEGIN;\n\n"+
		"-- Running downgrade bbbb0002 -> aaaa0001\n\n"+
		"DROP TABLE orders;\n\n"+
		"DELETE FROM \"pgkeeper_revisions\" WHERE id = '20240102000000_bbbb0002_orders.sql';\n\n"+
		"COMMIT;\n",
		f.out.String(),
	)

	f.out.Reset()
	require.NoError(t, Downgrade(context.Background(), f.cfg, DowngradeOptions{Revision: "head:base", SQL: true}))
	out := f.out.String()
	require.Contains(t, out, "DROP TABLE orders;")
	require.Contains(t, out, "DROP TABLE accounts;")
	require.Less(t, strings.Index(out, "DROP TABLE orders;"), strings.Index(out, "DROP TABLE accounts;"))

	err := Downgrade(context.Background(), f.cfg, DowngradeOptions{Revision: ":aaaa0001", SQL: true})
	require.ErrorContains(t, err, "downgrade range needs a starting revision")
}

func TestSQL_SingleTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.write(linear...)

	// nothing listens here, so any connection attempt fails
	f.cfg.Driver = "pgx"
	f.cfg.Dialect = "postgres"
	f.cfg.DSN = "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1"

	t.Run("upgrade", func(t *testing.T) {
		f.out.Reset()
		require.NoError(t, Upgrade(ctx, f.cfg, UpgradeOptions{SQL: true}))
		out := f.out.String()
		require.Contains(t, out, "CREATE TABLE IF NOT EXISTS")
		require.Contains(t, out, "-- Running upgrade <base> -> aaaa0001\n\nCREATE TABLE accounts (id INTEGER PRIMARY KEY);\n")
		require.Contains(t, out, "-- Running upgrade aaaa0001 -> bbbb0002\n\nCREATE TABLE orders (id INTEGER PRIMARY KEY);\n")
	})

	t.Run("upgrade to revision", func(t *testing.T) {
		f.out.Reset()
		require.NoError(t, Upgrade(ctx, f.cfg, UpgradeOptions{Revision: "aaaa0001", SQL: true}))
		out := f.out.String()
		require.Contains(t, out, "CREATE TABLE accounts")
		require.NotContains(t, out, "bbbb0002")
	})

	t.Run("downgrade", func(t *testing.T) {
		f.out.Reset()
		require.NoError(t, Downgrade(ctx, f.cfg, DowngradeOptions{SQL: true}))
		out := f.out.String()
		require.Contains(t, out, "-- Running downgrade bbbb0002 -> aaaa0001\n\nDROP TABLE orders;\n")
		require.NotContains(t, out, "DROP TABLE accounts")
	})

	t.Run("downgrade to base", func(t *testing.T) {
		f.out.Reset()
		require.NoError(t, Downgrade(ctx, f.cfg, DowngradeOptions{Revision: "base", SQL: true}))
		out := f.out.String()
		require.Contains(t, out, "-- Running downgrade aaaa0001 -> <base>\n\nDROP TABLE accounts;\n")
		require.Less(t, strings.Index(out, "DROP TABLE orders;"), strings.Index(out, "DROP TABLE accounts;"))
	})

	t.Run("without sql", func(t *testing.T) {
		require.Error(t, Upgrade(ctx, f.cfg, UpgradeOptions{}))
	})
}

func TestStamp_SQL(t *testing.T) {
	f := newFixture(t)
	f.write(linear...)

	require.NoError(t, Stamp(context.Background(), f.cfg, StampOptions{Revision: "aaaa0001", SQL: true}))
	out := f.out.String()
	require.Contains(t, out, "DELETE FROM \"pgkeeper_revisions\";\n")
	require.Contains(t, out, "VALUES ('20240101000000_aaaa0001_accounts.sql', CURRENT_TIMESTAMP)")
	require.NotContains(t, out, "bbbb0002")
	require.NoFileExists(t, f.cfg.DSN)
}
