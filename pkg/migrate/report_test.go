package migrate_test

import (
	"testing"

	. "github.com/pseudomuto/pgkeeper/pkg/migrate"
	"github.com/stretchr/testify/require"
)

func TestHistory(t *testing.T) {
	f := newFixture(t)
	f.write(branched...)
	f.write(scriptDef{name: "20240105000000_dddd0005_merge.sql", rev: "dddd0005", downs: []string{"cafe0003", "cafe0004"}})

	t.Run("all", func(t *testing.T) {
		f.out.Reset()
		require.NoError(t, History(f.cfg, HistoryOptions{}))
		require.Equal(t, ""+
			"cafe0003, cafe0004 -> dddd0005 (head) (mergepoint), create dddd0005\n"+
			"bbbb0002 -> cafe0004, create cafe0004\n"+
			"bbbb0002 -> cafe0003 (shop), create cafe0003\n"+
			"aaaa0001 -> bbbb0002 (branchpoint), create bbbb0002\n"+
			"<base> -> aaaa0001, create aaaa0001\n",
			f.out.String(),
		)
	})

	t.Run("range", func(t *testing.T) {
		f.out.Reset()
		require.NoError(t, History(f.cfg, HistoryOptions{Range: "bbbb0002:cafe0003"}))
		require.Equal(t, ""+
			"bbbb0002 -> cafe0003 (shop), create cafe0003\n"+
			"aaaa0001 -> bbbb0002 (branchpoint), create bbbb0002\n",
			f.out.String(),
		)

		f.out.Reset()
		require.NoError(t, History(f.cfg, HistoryOptions{Range: ":aaaa0001"}))
		require.Equal(t, "<base> -> aaaa0001, create aaaa0001\n", f.out.String())

		f.out.Reset()
		require.NoError(t, History(f.cfg, HistoryOptions{Range: "cafe0004:"}))
		require.Equal(t, ""+
			"cafe0003, cafe0004 -> dddd0005 (head) (mergepoint), create dddd0005\n"+
			"bbbb0002 -> cafe0004, create cafe0004\n",
			f.out.String(),
		)

		require.ErrorContains(t, History(f.cfg, HistoryOptions{Range: "cafe0004"}), "history range must be")
	})

	t.Run("verbose", func(t *testing.T) {
		f.out.Reset()
		require.NoError(t, History(f.cfg, HistoryOptions{Range: "dddd0005:", Verbose: true}))
		out := f.out.String()
		require.Contains(t, out, "Rev: dddd0005 (head) (mergepoint)\n")
		require.Contains(t, out, "Merges: cafe0003, cafe0004\n")
		require.Contains(t, out, "\n    create dddd0005\n")
	})
}

func TestHeads(t *testing.T) {
	f := newFixture(t)
	f.write(branched...)

	require.NoError(t, Heads(f.cfg, HeadsOptions{}))
	require.Equal(t, "cafe0003 (head) (shop)\ncafe0004 (head)\n", f.out.String())

	f.out.Reset()
	require.NoError(t, Heads(f.cfg, HeadsOptions{Verbose: true}))
	require.Contains(t, f.out.String(), "Rev: cafe0003 (head)\nParent: bbbb0002\nBranch names: shop\n")
}

func TestBranches(t *testing.T) {
	f := newFixture(t)
	f.write(branched...)

	require.NoError(t, Branches(f.cfg, BranchesOptions{}))
	require.Equal(t, ""+
		"bbbb0002 (branchpoint)\n"+
		"         -> cafe0003 (head) (shop)\n"+
		"         -> cafe0004 (head)\n",
		f.out.String(),
	)

	f.out.Reset()
	require.NoError(t, Branches(f.cfg, BranchesOptions{Verbose: true}))
	out := f.out.String()
	require.Contains(t, out, "Branches into: cafe0003, cafe0004\n")
	require.Contains(t, out, "-> cafe0004 (head), create cafe0004\n")
}

func TestShow(t *testing.T) {
	f := newFixture(t)
	f.write(branched...)

	require.NoError(t, Show(f.cfg, "shop"))
	require.Equal(t, ""+
		"Rev: cafe0003 (head)\n"+
		"Parent: bbbb0002\n"+
		"Branch names: shop\n"+
		"Path: "+f.load().Script("cafe0003").Path+"\n"+
		"Create Date: 2024-01-01 00:00:00\n"+
		"\n"+
		"    create cafe0003\n"+
		"\n",
		f.out.String(),
	)

	f.out.Reset()
	require.NoError(t, Show(f.cfg, "heads"))
	require.Contains(t, f.out.String(), "Rev: cafe0003 (head)")
	require.Contains(t, f.out.String(), "Rev: cafe0004 (head)")

	require.Error(t, Show(f.cfg, "head"))
	require.Error(t, Show(f.cfg, "a:b"))
}
