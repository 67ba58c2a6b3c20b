// Package linker resolves cross-references between documented entities. The
// pipeline compiles a linker once per run against the full tree, applies it to
// every node doc, and runs it over prose content before titles are extracted.
package linker

import (
	"fmt"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/mdgen/internal/doctree"
)

// Linker is the cross-reference collaborator consumed by the pipeline.
// Compile is called exactly once per run, before ResolveAll or ResolveProse.
type Linker interface {
	// Compile indexes the tree's referenceable entities. extension is the
	// output page extension (".md" when empty); deps names external projects
	// whose entities a linker may link to published docs.
	Compile(tree *doctree.Tree, extension string, deps []string) error
	// ResolveAll returns a link-resolved copy of the tree. The input tree is
	// not mutated.
	ResolveAll(tree *doctree.Tree) (*doctree.Tree, error)
	// ResolveProse rewrites entity references in prose content.
	ResolveProse(content string) (string, error)
}

// Modes accepted by ForMode.
const (
	ModeAuto = "auto"
	ModeOff  = "off"
)

// ForMode returns the built-in linker for a configured mode.
func ForMode(mode string) (Linker, error) {
	switch mode {
	case ModeAuto, "":
		return NewAutolink(), nil
	case ModeOff:
		return Noop{}, nil
	}
	return nil, fmt.Errorf("unknown linker mode %q", mode)
}

// Noop leaves every document untouched. Used when linking is disabled.
type Noop struct{}

func (Noop) Compile(*doctree.Tree, string, []string) error { return nil }

func (Noop) ResolveAll(tree *doctree.Tree) (*doctree.Tree, error) { return tree, nil }

func (Noop) ResolveProse(content string) (string, error) { return content, nil }

// codeSpanRe matches single-backtick code spans outside fenced blocks. The
// optional bracket groups detect spans already wrapped in a Markdown link so
// they are not wrapped twice.
var codeSpanRe = regexp.MustCompile("(\\[)?`([^`\n]+)`(\\])?")

// Autolink rewrites code spans naming a known entity into Markdown links to
// that entity's page. References use the bare node id, optionally carrying
// the kind prefix ("t:" for types, "c:" for callbacks); the prefix selects
// the target but is stripped from the displayed text.
type Autolink struct {
	targets map[string]string
}

// NewAutolink returns an autolinker with an empty index. Compile must run
// before any resolve call.
func NewAutolink() *Autolink {
	return &Autolink{}
}

// Compile walks the tree and records a page target for every node id. Child
// nodes point at their container's page. When two nodes share an id the first
// in tree order wins. The dependency list is ignored: the bundled linker
// rewrites tree-local references only.
//
// TODO: link child references to their section anchors once the renderer
// emits stable heading ids.
func (l *Autolink) Compile(tree *doctree.Tree, extension string, _ []string) error {
	if extension == "" {
		extension = ".md"
	}
	targets := make(map[string]string)
	if tree != nil {
		for _, top := range tree.Nodes {
			pageFile := top.ID + extension
			register(targets, top, pageFile)
			for _, child := range descendants(top) {
				register(targets, child, pageFile)
			}
		}
	}
	l.targets = targets
	return nil
}

func register(targets map[string]string, n *doctree.Node, pageFile string) {
	if n.ID == "" {
		return
	}
	keys := []string{n.ID}
	if prefix := n.Kind.RefPrefix(); prefix != "" {
		keys = append(keys, prefix+n.ID)
	}
	for _, key := range keys {
		if _, taken := targets[key]; !taken {
			targets[key] = pageFile
		}
	}
}

func descendants(n *doctree.Node) []*doctree.Node {
	var out []*doctree.Node
	for _, c := range n.Children {
		out = append(out, c)
		out = append(out, descendants(c)...)
	}
	return out
}

// ResolveAll rewrites references in every node's doc and deprecation text on
// a deep copy of the tree.
func (l *Autolink) ResolveAll(tree *doctree.Tree) (*doctree.Tree, error) {
	linked := tree.Clone()
	if linked == nil {
		return nil, nil
	}
	linked.Walk(func(n *doctree.Node) {
		n.Doc = l.rewrite(n.Doc)
		if n.Deprecated != "" {
			n.Deprecated = l.rewrite(n.Deprecated)
		}
	})
	return linked, nil
}

// ResolveProse rewrites references in a prose document.
func (l *Autolink) ResolveProse(content string) (string, error) {
	return l.rewrite(content), nil
}

// rewrite replaces matching code spans line by line, leaving fenced code
// blocks untouched.
func (l *Autolink) rewrite(text string) string {
	if len(l.targets) == 0 || text == "" {
		return text
	}

	lines := strings.Split(text, "\n")
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		lines[i] = codeSpanRe.ReplaceAllStringFunc(line, l.replaceSpan)
	}
	return strings.Join(lines, "\n")
}

func (l *Autolink) replaceSpan(match string) string {
	groups := codeSpanRe.FindStringSubmatch(match)
	if groups[1] != "" || groups[3] != "" {
		return match
	}
	ref := groups[2]
	target, ok := l.targets[ref]
	if !ok {
		return match
	}
	display := strings.TrimPrefix(strings.TrimPrefix(ref, "t:"), "c:")
	return "[`" + display + "`](" + target + ")"
}
