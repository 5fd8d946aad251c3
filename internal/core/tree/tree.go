// Package tree contains the pure hierarchy math shared by cascade close
// and ancestor regrooming. The parent/child relationship is logically a
// forest, but malformed data can contain cycles, so every traversal
// works over a flat id index and carries its own visited set instead of
// chasing pointers.
package tree

// Node is the minimal task view the traversals need.
type Node struct {
	ID     string
	Parent string // empty for roots
	Closed bool
}

// Index holds a flat id lookup and the parent → children adjacency
// built from one flat task list. Children keep list order.
type Index struct {
	ByID     map[string]*Node
	Children map[string][]*Node
}

// BuildIndex builds the id and children indexes from a flat node list.
// Nodes with an unknown parent id are still indexed; they simply hang
// off a parent that resolves to nothing.
func BuildIndex(nodes []*Node) *Index {
	idx := &Index{
		ByID:     make(map[string]*Node, len(nodes)),
		Children: make(map[string][]*Node),
	}
	for _, n := range nodes {
		idx.ByID[n.ID] = n
		if n.Parent != "" {
			idx.Children[n.Parent] = append(idx.Children[n.Parent], n)
		}
	}
	return idx
}

// OpenDescendants returns the ids of all open descendants of root in
// post-order: leaves before their parents. Closing in this order
// guarantees no node is closed while it still has open descendants.
// The root itself is never included. Cycles terminate via the visited
// set and contribute each node at most once.
func (idx *Index) OpenDescendants(rootID string) []string {
	visited := map[string]bool{rootID: true}
	var out []string

	var walk func(id string)
	walk = func(id string) {
		for _, child := range idx.Children[id] {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			walk(child.ID)
			if !child.Closed {
				out = append(out, child.ID)
			}
		}
	}
	walk(rootID)
	return out
}

// AncestorChain returns the ids of the node's ancestors bottom-up,
// starting with the immediate parent. Self-referential and mutual
// cycles terminate via the visited set. Unknown parents end the chain.
func (idx *Index) AncestorChain(id string) []string {
	visited := map[string]bool{id: true}
	var out []string

	node := idx.ByID[id]
	for node != nil && node.Parent != "" {
		if visited[node.Parent] {
			break
		}
		parent := idx.ByID[node.Parent]
		if parent == nil {
			break
		}
		visited[parent.ID] = true
		out = append(out, parent.ID)
		node = parent
	}
	return out
}

// AllChildrenClosed reports whether every direct child of id is closed.
// A childless node reports true vacuously; callers that must skip
// childless ancestors check HasChildren first.
func (idx *Index) AllChildrenClosed(id string) bool {
	for _, child := range idx.Children[id] {
		if !child.Closed {
			return false
		}
	}
	return true
}

// HasChildren reports whether id has at least one direct child.
func (idx *Index) HasChildren(id string) bool {
	return len(idx.Children[id]) > 0
}
