// Package render turns documentation nodes into Markdown pages. The default
// renderer groups a container's members into Types, Callbacks and Functions
// sections; an alternative Renderer can be supplied by the embedding caller.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"git.home.luguber.info/inful/mdgen/internal/doctree"
	"git.home.luguber.info/inful/mdgen/internal/page"
)

// Config carries the project-level values every render sees.
type Config struct {
	ProjectName    string
	ProjectVersion string
	// Canonical is the base URL pages are published under. The Markdown
	// renderer emits relative links only; the value is available to
	// renderers that produce absolute ones.
	Canonical string
}

// Renderer produces one Markdown page per entity node. The NodesMap is shared
// read-only context so a page can reference sibling entities.
type Renderer interface {
	RenderEntityPage(node *doctree.Node, nodes *doctree.NodesMap, cfg Config) (string, error)
}

type entityData struct {
	Title      string
	Deprecated string
	Doc        string
	SourceURL  string
	Sections   []sectionData
}

type sectionData struct {
	Title   string
	Entries []entryData
}

type entryData struct {
	Display    string
	Suffix     string
	Target     string
	Deprecated string
	Doc        string
	SourceURL  string
	Synopsis   string
}

var helpers = template.FuncMap{
	"codespan": codeSpan,
	"escape":   escapeHTML,
}

const entityTemplateText = `# {{ .Title }}

{{ if .Deprecated }}> **Deprecated.** {{ escape .Deprecated }}

{{ end -}}
{{ if .Doc }}{{ .Doc }}

{{ end -}}
{{ if .SourceURL }}[View source]({{ .SourceURL }})

{{ end -}}
{{ range .Sections }}## {{ .Title }}

{{ range .Entries }}### {{ codespan .Display }}{{ .Suffix }}

{{ if .Deprecated }}> **Deprecated.** {{ escape .Deprecated }}

{{ end -}}
{{ if .Doc }}{{ .Doc }}

{{ end -}}
{{ if .SourceURL }}[View source]({{ .SourceURL }})

{{ end -}}
{{ end }}{{ end }}`

var entityTmpl = template.Must(
	template.New("entity").Funcs(helpers).Option("missingkey=error").Parse(entityTemplateText))

// Markdown is the built-in Renderer.
type Markdown struct{}

// NewMarkdown returns the default Markdown renderer.
func NewMarkdown() Markdown { return Markdown{} }

// RenderEntityPage renders one container node with its member sections.
func (Markdown) RenderEntityPage(node *doctree.Node, nodes *doctree.NodesMap, cfg Config) (string, error) {
	if node == nil {
		return "", fmt.Errorf("render entity page: nil node")
	}
	data := entityData{
		Title:      node.Title + suffixFor(node.Kind),
		Deprecated: node.Deprecated,
		Doc:        strings.TrimSpace(node.Doc),
		SourceURL:  node.SourceURL,
		Sections:   memberSections(node.Children),
	}

	var buf bytes.Buffer
	if err := entityTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render entity page %s: %w", node.ID, err)
	}
	return strings.TrimRight(buf.String(), "\n") + "\n", nil
}

// Section order is fixed so regenerated pages diff cleanly.
var sectionOrder = []struct {
	title string
	kinds []doctree.Kind
}{
	{"Types", []doctree.Kind{doctree.KindType, doctree.KindOpaque}},
	{"Callbacks", []doctree.Kind{doctree.KindCallback, doctree.KindMacroCallback}},
	{"Functions", []doctree.Kind{doctree.KindFunction, doctree.KindMacro, doctree.KindGuard}},
}

// suffixFor formats a kind's heading annotation, e.g. " (type)".
func suffixFor(k doctree.Kind) string {
	if s := k.TitleSuffix(); s != "" {
		return " (" + s + ")"
	}
	return ""
}

func memberSections(children []*doctree.Node) []sectionData {
	var sections []sectionData
	for _, sec := range sectionOrder {
		var entries []entryData
		for _, child := range children {
			if !kindIn(child.Kind, sec.kinds) {
				continue
			}
			display := child.Signature
			if display == "" {
				display = child.Title
			}
			entries = append(entries, entryData{
				Display:    display,
				Suffix:     suffixFor(child.Kind),
				Deprecated: child.Deprecated,
				Doc:        strings.TrimSpace(child.Doc),
				SourceURL:  child.SourceURL,
			})
		}
		if len(entries) > 0 {
			sections = append(sections, sectionData{Title: sec.title, Entries: entries})
		}
	}
	return sections
}

func kindIn(k doctree.Kind, kinds []doctree.Kind) bool {
	for _, candidate := range kinds {
		if k == candidate {
			return true
		}
	}
	return false
}

const apiReferenceTemplateText = `# API Reference

Generated reference for {{ codespan .Project }}{{ if .Version }} v{{ .Version }}{{ end }}.

{{ range .Sections }}## {{ .Title }}

{{ range .Entries }}- [{{ codespan .Display }}]({{ .Target }}){{ if .Synopsis }}: {{ .Synopsis }}{{ end }}
{{ end }}
{{ end }}`

var apiReferenceTmpl = template.Must(
	template.New("api-reference").Funcs(helpers).Option("missingkey=error").Parse(apiReferenceTemplateText))

// APIReferenceID is the reserved page id for the generated entity index.
const APIReferenceID = "api-reference"

type apiReferenceData struct {
	Project  string
	Version  string
	Sections []sectionData
}

// APIReference builds the landing page listing every entity page with a
// one-line synopsis.
func APIReference(nodes *doctree.NodesMap, cfg Config) (page.Page, error) {
	data := apiReferenceData{Project: cfg.ProjectName, Version: cfg.ProjectVersion}
	for _, sec := range []struct {
		title string
		items []*doctree.Node
	}{
		{"Modules", nodes.Modules},
		{"Exceptions", nodes.Exceptions},
		{"Tasks", nodes.Tasks},
	} {
		var entries []entryData
		for _, n := range sec.items {
			entries = append(entries, entryData{
				Display:  n.Title,
				Target:   n.ID + ".md",
				Synopsis: Synopsis(n.Doc),
			})
		}
		if len(entries) > 0 {
			data.Sections = append(data.Sections, sectionData{Title: sec.title, Entries: entries})
		}
	}

	var buf bytes.Buffer
	if err := apiReferenceTmpl.Execute(&buf, data); err != nil {
		return page.Page{}, fmt.Errorf("render api reference: %w", err)
	}
	return page.Page{
		ID:      APIReferenceID,
		Title:   "API Reference",
		Content: strings.TrimRight(buf.String(), "\n") + "\n",
	}, nil
}

// Synopsis returns the first content line of a doc body, skipping headings.
func Synopsis(doc string) string {
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escapeHTML neutralizes HTML-special characters in prose interpolated
// outside code spans, so downstream HTML renderers cannot misread them as
// markup.
func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// codeSpan wraps text in a Markdown code span, widening the delimiter when
// the text itself contains backticks.
func codeSpan(s string) string {
	delim := "`"
	for strings.Contains(s, delim) {
		delim += "`"
	}
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		return delim + " " + s + " " + delim
	}
	return delim + s + delim
}
