// Package doctree defines the documentation tree consumed by the generation
// pipeline. The tree is produced by an upstream extraction step and read-only
// here: nodes are loaded, partitioned, and handed to the linker/renderer,
// never mutated in place.
package doctree

// Node is one documented entity. Top-level nodes are containers (modules,
// exceptions, tasks, protocol impls); children are their members (functions,
// macros, callbacks, types).
type Node struct {
	Kind       Kind    `json:"kind"`
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Group      string  `json:"group,omitempty"`
	Signature  string  `json:"signature,omitempty"`
	Doc        string  `json:"doc,omitempty"`
	Deprecated string  `json:"deprecated,omitempty"`
	SourcePath string  `json:"source_path,omitempty"`
	SourceLine int     `json:"source_line,omitempty"`
	SourceURL  string  `json:"source_url,omitempty"`
	Children   []*Node `json:"children,omitempty"`
}

// Tree is the full extracted documentation set for one project version.
type Tree struct {
	Project string  `json:"project"`
	Version string  `json:"version,omitempty"`
	Nodes   []*Node `json:"nodes"`
}

// NodesMap partitions the top-level nodes into the buckets shared read-only
// with every concurrent page render.
type NodesMap struct {
	Modules    []*Node
	Exceptions []*Node
	Tasks      []*Node
}

// Partition splits the tree's top-level nodes by bucket membership. Node
// order within each bucket preserves tree order.
func Partition(t *Tree) *NodesMap {
	nm := &NodesMap{}
	if t == nil {
		return nm
	}
	for _, n := range t.Nodes {
		switch n.Kind.Bucket() {
		case BucketModules:
			nm.Modules = append(nm.Modules, n)
		case BucketExceptions:
			nm.Exceptions = append(nm.Exceptions, n)
		case BucketTasks:
			nm.Tasks = append(nm.Tasks, n)
		case BucketNone:
			// impl nodes document protocol implementations; they render
			// nowhere on their own.
		}
	}
	return nm
}

// All returns every partitioned node in bucket order: modules, exceptions,
// tasks. The returned slice is freshly allocated.
func (nm *NodesMap) All() []*Node {
	out := make([]*Node, 0, len(nm.Modules)+len(nm.Exceptions)+len(nm.Tasks))
	out = append(out, nm.Modules...)
	out = append(out, nm.Exceptions...)
	out = append(out, nm.Tasks...)
	return out
}

// Len reports the total number of partitioned nodes.
func (nm *NodesMap) Len() int {
	return len(nm.Modules) + len(nm.Exceptions) + len(nm.Tasks)
}

// Clone deep-copies the tree. The linker returns a resolved copy rather than
// rewriting the caller's tree.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	out := &Tree{Project: t.Project, Version: t.Version}
	out.Nodes = cloneNodes(t.Nodes)
	return out
}

func cloneNodes(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		c := *n
		c.Children = cloneNodes(n.Children)
		out[i] = &c
	}
	return out
}

// Walk visits every node depth-first, parents before children.
func (t *Tree) Walk(fn func(n *Node)) {
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			fn(n)
			walk(n.Children)
		}
	}
	walk(t.Nodes)
}
