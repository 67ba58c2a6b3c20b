// Package grouping assigns pages to named groups and orders the final page
// collection deterministically.
package grouping

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"git.home.luguber.info/inful/mdgen/internal/page"
)

// Rank returns the sort key for a group label: its index in the configured
// ordering, or len(ordering) when the label is unknown or absent so that
// unranked pages sort after every ranked one.
func Rank(ordering []string, label string) int {
	if label != "" {
		for i, g := range ordering {
			if g == label {
				return i
			}
		}
	}
	return len(ordering)
}

// SortPages orders pages stably: primary key group rank, secondary key the
// original insertion order. Pages may have been built concurrently and out
// of order; this restores a deterministic sequence.
func SortPages(pages []page.Page, ordering []string) {
	sort.SliceStable(pages, func(i, j int) bool {
		return Rank(ordering, pages[i].Group) < Rank(ordering, pages[j].Group)
	})
}

// Rule maps one group label to the path patterns that select it. Rule order
// is the group ordering: earlier rules rank earlier and win ties when a path
// matches several groups.
type Rule struct {
	Name     string
	Patterns []string
}

// Matcher resolves a source path to a group label.
type Matcher struct {
	rules []compiledRule
	names []string
}

type compiledRule struct {
	name     string
	patterns []*regexp.Regexp
}

// NewMatcher compiles the group rules. A rule without patterns participates
// in the ordering but never matches a path.
func NewMatcher(rules []Rule) (*Matcher, error) {
	m := &Matcher{}
	for _, r := range rules {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("group rule with empty name")
		}
		cr := compiledRule{name: r.Name}
		for _, g := range r.Patterns {
			if strings.TrimSpace(g) == "" {
				continue
			}
			rx, err := regexp.Compile(globToRegex(g))
			if err != nil {
				return nil, fmt.Errorf("compile group pattern %s: %w", g, err)
			}
			cr.patterns = append(cr.patterns, rx)
		}
		m.rules = append(m.rules, cr)
		m.names = append(m.names, r.Name)
	}
	return m, nil
}

// Ordering returns the group labels in configured order.
func (m *Matcher) Ordering() []string {
	if m == nil {
		return nil
	}
	return m.names
}

// Match returns the label of the first rule with a pattern matching the
// source path (slash form), or "" when no rule matches.
func (m *Matcher) Match(path string) string {
	if m == nil {
		return ""
	}
	normalized := strings.ReplaceAll(path, "\\", "/")
	for _, r := range m.rules {
		for _, rx := range r.patterns {
			if rx.MatchString(normalized) {
				return r.name
			}
		}
	}
	return ""
}

// globToRegex converts a shell-style glob to a regex string (anchored).
func globToRegex(glob string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '.', '+', '(', ')', '|', '^', '$', '{', '}', '[', ']', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteString("$")
	return b.String()
}
