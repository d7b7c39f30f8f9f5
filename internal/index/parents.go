package index

import "github.com/dusk-indust/flowscope/internal/ast"

// Link records the nearest non-synthetic ancestor of a node and its depth
// below the root, counting only non-synthetic nodes.
type Link struct {
	Parent *ast.Node
	Depth  int
}

// Parents is the output of ResolveParents for one document.
type Parents struct {
	Links map[*ast.Node]Link
	// Nodes lists every non-synthetic node in pre-order.
	Nodes []*ast.Node
}

// ResolveParents walks the tree under root once and links every
// non-synthetic node to its nearest non-synthetic ancestor. The root maps
// to a nil parent. A node reachable twice is recorded only the first time.
func ResolveParents(root *ast.Node) *Parents {
	p := &Parents{Links: make(map[*ast.Node]Link)}
	if root == nil {
		return p
	}
	p.walk(root, nil, 0)
	return p
}

func (p *Parents) walk(n, parent *ast.Node, depth int) {
	if n.Synthetic {
		// Children of a synthetic node belong to the synthetic node's own
		// visible ancestor.
		for _, c := range n.Children {
			p.walk(c, parent, depth)
		}
		return
	}
	if _, seen := p.Links[n]; seen {
		return
	}
	p.Links[n] = Link{Parent: parent, Depth: depth}
	p.Nodes = append(p.Nodes, n)
	for _, c := range n.Children {
		p.walk(c, n, depth+1)
	}
}
