package pyast

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/specvital/pyloader/pkg/domain"
	"github.com/specvital/pyloader/pkg/parser/tspool"
)

// Text returns the source text of node, or "" for a nil node or a byte
// range outside source.
func Text(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// Span returns the 1-based line range and columns of node in file.
func Span(node *sitter.Node, file string) domain.Location {
	start, end := node.StartPoint(), node.EndPoint()
	return domain.Location{
		File:      file,
		StartLine: int(start.Row) + 1,
		EndLine:   int(end.Row) + 1,
		StartCol:  int(start.Column),
		EndCol:    int(end.Column),
	}
}

// ChildOfType returns the first direct child of node with type typ.
func ChildOfType(node *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == typ {
			return child
		}
	}
	return nil
}

// Walk visits node and its descendants in source order. Returning false
// from visit skips the children of that node. Nodes nested deeper than
// tspool.MaxTreeDepth are not visited.
func Walk(node *sitter.Node, visit func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	type frame struct {
		node  *sitter.Node
		depth int
	}
	stack := []frame{{node, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > tspool.MaxTreeDepth || !visit(f.node) {
			continue
		}
		for i := int(f.node.ChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Child(i), f.depth + 1})
		}
	}
}
