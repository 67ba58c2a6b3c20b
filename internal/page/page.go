// Package page defines the unit of generated output and the naming rules
// shared by prose and entity pages.
package page

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Extension is the output format every page is written in.
const Extension = ".md"

// Page is one rendered Markdown output unit. Immutable once built: the
// pipeline writes each page to disk exactly once per run.
type Page struct {
	ID           string
	Title        string
	Group        string
	Content      string
	CanonicalURL string
}

// Filename returns the output filename derived from the page id.
func (p Page) Filename() string { return p.ID + Extension }

// slugFolder strips combining marks so accented characters slug to their
// base letter ("Guía" -> "guia").
var slugFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify derives a page id from a display name: diacritics folded, case
// folded, every non-alphanumeric run collapsed to a single hyphen.
func Slugify(name string) string {
	folded, _, err := transform.String(slugFolder, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	lastHyphen := true // suppress leading hyphens
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// ExtractTitle returns the text of the first level-1 heading in the Markdown
// content. ok is false when the document has no such heading.
func ExtractTitle(content string) (string, bool) {
	src := []byte(content)
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level != 1 {
			continue
		}
		title := strings.TrimSpace(inlineText(h, src))
		if title != "" {
			return title, true
		}
	}
	return "", false
}

// inlineText flattens the inline children of a block node into plain text.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.CodeSpan:
			for g := t.FirstChild(); g != nil; g = g.NextSibling() {
				if seg, ok := g.(*ast.Text); ok {
					buf.Write(seg.Value(src))
				}
			}
		default:
			buf.WriteString(inlineText(c, src))
		}
	}
	return buf.String()
}
