package doctree

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Load reads an extracted documentation tree from a JSON file.
func Load(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse tree %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates a tree document. Node kinds outside the closed
// set fail the decode.
func Parse(data []byte) (*Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Tree) validate() error {
	if t.Project == "" {
		return fmt.Errorf("tree is missing a project name")
	}
	var check func(nodes []*Node, parent string) error
	check = func(nodes []*Node, parent string) error {
		for _, n := range nodes {
			if n == nil {
				return fmt.Errorf("nil node under %q", parent)
			}
			if n.ID == "" {
				return fmt.Errorf("node under %q is missing an id", parent)
			}
			if n.Title == "" {
				n.Title = n.ID
			}
			if err := check(n.Children, n.ID); err != nil {
				return err
			}
		}
		return nil
	}
	return check(t.Nodes, "root")
}

// SourceLink configures source-URL derivation for nodes that carry a source
// path but no explicit URL. Pattern placeholders: %ref%, %path%, %line%.
type SourceLink struct {
	Pattern string
	Ref     string
}

// ApplySourceLinks fills in SourceURL for every node that has a source path
// but no URL of its own. Nodes with an explicit URL keep it.
func ApplySourceLinks(t *Tree, link SourceLink) {
	if t == nil || link.Pattern == "" {
		return
	}
	t.Walk(func(n *Node) {
		if n.SourceURL != "" || n.SourcePath == "" {
			return
		}
		n.SourceURL = link.expand(n.SourcePath, n.SourceLine)
	})
}

func (l SourceLink) expand(path string, line int) string {
	r := strings.NewReplacer(
		"%ref%", l.Ref,
		"%path%", path,
		"%line%", strconv.Itoa(line),
	)
	return r.Replace(l.Pattern)
}
