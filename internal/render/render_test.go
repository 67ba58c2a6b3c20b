package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdgen/internal/doctree"
)

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

func TestRenderEntityPage_FullModulePage(t *testing.T) {
	node := &doctree.Node{
		Kind:      doctree.KindModule,
		ID:        "store",
		Title:     "Store",
		Doc:       "Key-value store.",
		SourceURL: "https://git.example/store/blob/main/store.ex#L1",
		Children: []*doctree.Node{
			{Kind: doctree.KindFunction, ID: "store.put", Title: "put",
				Signature: "put(key, value)", Doc: "Inserts a value."},
			{Kind: doctree.KindType, ID: "entry", Title: "entry",
				Signature: "entry()", Doc: "Stored pair."},
			{Kind: doctree.KindCallback, ID: "on_evict", Title: "on_evict",
				Signature: "on_evict(key)", Deprecated: "Use `hooks` instead."},
		},
	}

	out, err := NewMarkdown().RenderEntityPage(node, &doctree.NodesMap{}, Config{})

	require.NoError(t, err)
	require.Equal(t, lines(
		"# Store",
		"",
		"Key-value store.",
		"",
		"[View source](https://git.example/store/blob/main/store.ex#L1)",
		"",
		"## Types",
		"",
		"### `entry()` (type)",
		"",
		"Stored pair.",
		"",
		"## Callbacks",
		"",
		"### `on_evict(key)` (callback)",
		"",
		"> **Deprecated.** Use `hooks` instead.",
		"",
		"## Functions",
		"",
		"### `put(key, value)`",
		"",
		"Inserts a value.",
	), out)
}

func TestRenderEntityPage_BareNodeIsJustAHeading(t *testing.T) {
	node := &doctree.Node{Kind: doctree.KindModule, ID: "empty", Title: "Empty"}

	out, err := NewMarkdown().RenderEntityPage(node, &doctree.NodesMap{}, Config{})

	require.NoError(t, err)
	require.Equal(t, "# Empty\n", out)
}

func TestRenderEntityPage_AnnotatedTitleForExceptions(t *testing.T) {
	node := &doctree.Node{Kind: doctree.KindException, ID: "store-error", Title: "StoreError"}

	out, err := NewMarkdown().RenderEntityPage(node, &doctree.NodesMap{}, Config{})

	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "# StoreError (exception)\n"), out)
}

func TestRenderEntityPage_DeprecatedModuleBlockquote(t *testing.T) {
	node := &doctree.Node{
		Kind: doctree.KindModule, ID: "legacy", Title: "Legacy",
		Deprecated: "Use Store instead.",
		Doc:        "Old interface.",
	}

	out, err := NewMarkdown().RenderEntityPage(node, &doctree.NodesMap{}, Config{})

	require.NoError(t, err)
	require.Equal(t, lines(
		"# Legacy",
		"",
		"> **Deprecated.** Use Store instead.",
		"",
		"Old interface.",
	), out)
}

func TestRenderEntityPage_DeprecationTextIsHTMLEscaped(t *testing.T) {
	node := &doctree.Node{
		Kind: doctree.KindModule, ID: "legacy", Title: "Legacy",
		Deprecated: "Use <t> & friends instead.",
	}

	out, err := NewMarkdown().RenderEntityPage(node, &doctree.NodesMap{}, Config{})

	require.NoError(t, err)
	require.Contains(t, out, "> **Deprecated.** Use &lt;t&gt; &amp; friends instead.")
}

func TestRenderEntityPage_SignatureFallsBackToTitle(t *testing.T) {
	node := &doctree.Node{
		Kind: doctree.KindModule, ID: "m", Title: "M",
		Children: []*doctree.Node{
			{Kind: doctree.KindFunction, ID: "m.run", Title: "run"},
		},
	}

	out, err := NewMarkdown().RenderEntityPage(node, &doctree.NodesMap{}, Config{})

	require.NoError(t, err)
	require.Contains(t, out, "### `run`\n")
}

func TestRenderEntityPage_NilNodeFails(t *testing.T) {
	_, err := NewMarkdown().RenderEntityPage(nil, &doctree.NodesMap{}, Config{})

	require.ErrorContains(t, err, "nil node")
}

func TestAPIReference_ListsBucketsWithSynopses(t *testing.T) {
	nodes := &doctree.NodesMap{
		Modules: []*doctree.Node{
			{Kind: doctree.KindModule, ID: "store", Title: "Store",
				Doc: "Key-value store.\n\nLonger text."},
		},
		Exceptions: []*doctree.Node{
			{Kind: doctree.KindException, ID: "store-error", Title: "StoreError"},
		},
	}

	pg, err := APIReference(nodes, Config{ProjectName: "sample", ProjectVersion: "1.2.0"})

	require.NoError(t, err)
	require.Equal(t, APIReferenceID, pg.ID)
	require.Equal(t, "API Reference", pg.Title)
	require.Equal(t, "api-reference.md", pg.Filename())
	require.Equal(t, lines(
		"# API Reference",
		"",
		"Generated reference for `sample` v1.2.0.",
		"",
		"## Modules",
		"",
		"- [`Store`](store.md): Key-value store.",
		"",
		"## Exceptions",
		"",
		"- [`StoreError`](store-error.md)",
	), pg.Content)
}

func TestAPIReference_EmptyTreeStillProducesLandingPage(t *testing.T) {
	pg, err := APIReference(&doctree.NodesMap{}, Config{ProjectName: "bare"})

	require.NoError(t, err)
	require.Equal(t, lines(
		"# API Reference",
		"",
		"Generated reference for `bare`.",
	), pg.Content)
}

func TestSynopsis_FirstContentLine(t *testing.T) {
	require.Equal(t, "Opens the store.", Synopsis("\n# Heading\n\nOpens the store.\nSecond line."))
	require.Equal(t, "", Synopsis("## only headings\n"))
	require.Equal(t, "", Synopsis(""))
}

func TestCodeSpan_WidensDelimiterAndPads(t *testing.T) {
	require.Equal(t, "`x`", codeSpan("x"))
	require.Equal(t, "``a`b``", codeSpan("a`b"))
	require.Equal(t, "`` `lead ``", codeSpan("`lead"))
}
