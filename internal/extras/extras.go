// Package extras builds Page models from prose source documents. An extra is
// any hand-written Markdown file shipped alongside the generated entity pages,
// such as a README, guide or changelog.
package extras

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/mdgen/internal/grouping"
	"git.home.luguber.info/inful/mdgen/internal/linker"
	"git.home.luguber.info/inful/mdgen/internal/page"
)

// SourceExtension is the only accepted prose format. The check is a plain
// extension comparison; any other extension is a configuration error that
// aborts the run before output is touched.
const SourceExtension = ".md"

// Source is one configured prose entry: a path plus optional overrides.
type Source struct {
	Path string
	// Filename overrides the derived output filename; a ".md" suffix is
	// accepted and stripped when deriving the page id.
	Filename string
	// Title overrides both the extracted heading and the filename fallback.
	Title string
}

// UnsupportedFormatError reports a prose source whose extension is not
// SourceExtension.
type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported source format %q: only %s files are accepted", e.Path, SourceExtension)
}

// CheckSource validates a source entry without reading it. The pipeline runs
// this over every entry before the output directory is cleared so that a
// misconfigured entry cannot destroy a previous run's output.
func CheckSource(src Source) error {
	if src.Path == "" {
		return fmt.Errorf("prose source with empty path")
	}
	if filepath.Ext(src.Path) != SourceExtension {
		return &UnsupportedFormatError{Path: src.Path}
	}
	return nil
}

// Builder turns Sources into Pages. The linker must already be compiled; the
// matcher may be nil when no grouping rules are configured.
type Builder struct {
	Linker  linker.Linker
	Matcher *grouping.Matcher
}

// Build reads one prose source and derives its Page. Link resolution runs
// before title extraction so extracted titles carry resolved text. A missing
// file is fatal for the run.
func (b *Builder) Build(src Source) (page.Page, error) {
	if err := CheckSource(src); err != nil {
		return page.Page{}, err
	}

	raw, err := os.ReadFile(src.Path)
	if err != nil {
		return page.Page{}, fmt.Errorf("read prose source %s: %w", src.Path, err)
	}

	content := string(raw)
	if b.Linker != nil {
		content, err = b.Linker.ResolveProse(content)
		if err != nil {
			return page.Page{}, fmt.Errorf("resolve links in %s: %w", src.Path, err)
		}
	}

	base := strings.TrimSuffix(filepath.Base(src.Path), SourceExtension)

	id := page.Slugify(base)
	if src.Filename != "" {
		id = strings.TrimSuffix(src.Filename, SourceExtension)
	}

	title := src.Title
	if title == "" {
		if extracted, ok := page.ExtractTitle(content); ok {
			title = extracted
		} else {
			title = base
		}
	}

	return page.Page{
		ID:      id,
		Title:   title,
		Group:   b.Matcher.Match(src.Path),
		Content: content,
	}, nil
}
