package lang

import sitter "github.com/smacker/go-tree-sitter"

// FindNodeAtRange walks root for the node whose own start/end position
// exactly matches rng, preferring the outermost such match (a definition's
// wrapping node -- e.g. Python's decorated_definition -- shares its inner
// function_definition's enclosing_range in the spec's data model, but the
// wrapper is what carries decorators). Returns nil if nothing matches.
func FindNodeAtRange(root *sitter.Node, rng Range) *sitter.Node {
	if root == nil {
		return nil
	}
	if RangeOfNode(root) == rng {
		return root
	}
	if !nodeContainsRange(root, rng) {
		return nil
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if found := FindNodeAtRange(root.NamedChild(i), rng); found != nil {
			return found
		}
	}
	return nil
}

func nodeContainsRange(n *sitter.Node, rng Range) bool {
	nr := RangeOfNode(n)
	startsBefore := nr.StartLine < rng.StartLine || (nr.StartLine == rng.StartLine && nr.StartCol <= rng.StartCol)
	endsAfter := nr.EndLine > rng.EndLine || (nr.EndLine == rng.EndLine && nr.EndCol >= rng.EndCol)
	return startsBefore && endsAfter
}

// decoratorNodeTypes are the node kinds tree-sitter's Python, JavaScript, and
// TypeScript grammars use for an attached decorator/annotation.
var decoratorNodeTypes = map[string]bool{
	"decorator": true,
}

// Decorators collects the source text of every decorator directly attached
// to node: Python's decorated_definition wraps the def alongside its
// decorator children, while JS/TS class members carry decorator nodes as
// preceding siblings of the member itself.
func Decorators(node *sitter.Node, src []byte) []string {
	if node == nil {
		return nil
	}
	var out []string
	if parent := node.Parent(); parent != nil && parent.Type() == "decorated_definition" {
		for i := 0; i < int(parent.NamedChildCount()); i++ {
			child := parent.NamedChild(i)
			if decoratorNodeTypes[child.Type()] {
				out = append(out, NodeText(child, src))
			}
		}
		return out
	}
	for prev := node.PrevNamedSibling(); prev != nil && decoratorNodeTypes[prev.Type()]; prev = prev.PrevNamedSibling() {
		out = append([]string{NodeText(prev, src)}, out...)
	}
	return out
}
