package linker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdgen/internal/doctree"
)

func compiledAutolink(t *testing.T, tree *doctree.Tree) *Autolink {
	t.Helper()
	l := NewAutolink()
	require.NoError(t, l.Compile(tree, ".md", nil))
	return l
}

func sampleTree() *doctree.Tree {
	return &doctree.Tree{
		Project: "sample",
		Nodes: []*doctree.Node{
			{
				Kind: doctree.KindModule, ID: "store", Title: "Store",
				Children: []*doctree.Node{
					{Kind: doctree.KindFunction, ID: "store.put", Title: "put"},
					{Kind: doctree.KindType, ID: "entry", Title: "entry"},
					{Kind: doctree.KindCallback, ID: "on_evict", Title: "on_evict"},
				},
			},
			{Kind: doctree.KindException, ID: "store-error", Title: "StoreError"},
		},
	}
}

func TestForMode_SelectsImplementation(t *testing.T) {
	l, err := ForMode(ModeAuto)
	require.NoError(t, err)
	require.IsType(t, &Autolink{}, l)

	l, err = ForMode("")
	require.NoError(t, err)
	require.IsType(t, &Autolink{}, l)

	l, err = ForMode(ModeOff)
	require.NoError(t, err)
	require.IsType(t, Noop{}, l)

	_, err = ForMode("aggressive")
	require.ErrorContains(t, err, "unknown linker mode")
}

func TestNoop_LeavesEverythingAlone(t *testing.T) {
	l := Noop{}
	tree := sampleTree()
	require.NoError(t, l.Compile(tree, ".md", nil))

	linked, err := l.ResolveAll(tree)
	require.NoError(t, err)
	require.Same(t, tree, linked)

	prose, err := l.ResolveProse("see `store`")
	require.NoError(t, err)
	require.Equal(t, "see `store`", prose)
}

func TestAutolink_RewritesKnownReference(t *testing.T) {
	l := compiledAutolink(t, sampleTree())

	out, err := l.ResolveProse("Open the `store` module first.")

	require.NoError(t, err)
	require.Equal(t, "Open the [`store`](store.md) module first.", out)
}

func TestAutolink_ChildReferencesTargetContainerPage(t *testing.T) {
	l := compiledAutolink(t, sampleTree())

	out, err := l.ResolveProse("Call `store.put` to insert.")

	require.NoError(t, err)
	require.Equal(t, "Call [`store.put`](store.md) to insert.", out)
}

func TestAutolink_KindPrefixSelectsTargetAndIsStripped(t *testing.T) {
	l := compiledAutolink(t, sampleTree())

	out, err := l.ResolveProse("Accepts a `t:entry` and fires `c:on_evict`.")

	require.NoError(t, err)
	require.Equal(t, "Accepts a [`entry`](store.md) and fires [`on_evict`](store.md).", out)
}

func TestAutolink_UnknownReferenceUntouched(t *testing.T) {
	l := compiledAutolink(t, sampleTree())

	out, err := l.ResolveProse("Run `make docs` before release.")

	require.NoError(t, err)
	require.Equal(t, "Run `make docs` before release.", out)
}

func TestAutolink_FencedBlocksUntouched(t *testing.T) {
	l := compiledAutolink(t, sampleTree())
	in := "Use `store` here.\n```\n`store` stays literal\n```\nAnd `store` again."

	out, err := l.ResolveProse(in)

	require.NoError(t, err)
	require.Equal(t, "Use [`store`](store.md) here.\n```\n`store` stays literal\n```\nAnd [`store`](store.md) again.", out)
}

func TestAutolink_ExistingLinksNotWrappedTwice(t *testing.T) {
	l := compiledAutolink(t, sampleTree())
	in := "Already linked: [`store`](store.md)."

	out, err := l.ResolveProse(in)

	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestAutolink_ResolveAllRewritesCopyOnly(t *testing.T) {
	tree := sampleTree()
	tree.Nodes[1].Doc = "Raised by `store.put`."
	tree.Nodes[1].Deprecated = "Use `store` directly."
	l := compiledAutolink(t, tree)

	linked, err := l.ResolveAll(tree)

	require.NoError(t, err)
	require.Equal(t, "Raised by [`store.put`](store.md).", linked.Nodes[1].Doc)
	require.Equal(t, "Use [`store`](store.md) directly.", linked.Nodes[1].Deprecated)
	require.Equal(t, "Raised by `store.put`.", tree.Nodes[1].Doc)
	require.Equal(t, "Use `store` directly.", tree.Nodes[1].Deprecated)
}

func TestAutolink_DuplicateIDFirstInTreeOrderWins(t *testing.T) {
	tree := &doctree.Tree{
		Project: "dup",
		Nodes: []*doctree.Node{
			{Kind: doctree.KindModule, ID: "alpha", Title: "Alpha",
				Children: []*doctree.Node{{Kind: doctree.KindType, ID: "config", Title: "config"}}},
			{Kind: doctree.KindModule, ID: "beta", Title: "Beta",
				Children: []*doctree.Node{{Kind: doctree.KindType, ID: "config", Title: "config"}}},
		},
	}
	l := compiledAutolink(t, tree)

	out, err := l.ResolveProse("`t:config`")

	require.NoError(t, err)
	require.Equal(t, "[`config`](alpha.md)", out)
}

func TestAutolink_EmptyIndexPassesThrough(t *testing.T) {
	l := NewAutolink()
	require.NoError(t, l.Compile(&doctree.Tree{Project: "empty"}, "", nil))

	out, err := l.ResolveProse("nothing to do with `refs`")

	require.NoError(t, err)
	require.Equal(t, "nothing to do with `refs`", out)
}
