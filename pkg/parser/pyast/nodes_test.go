package pyast

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/specvital/pyloader/pkg/parser/tspool"
)

func TestWalk_SourceOrderAndSkip(t *testing.T) {
	source := []byte("def test_a():\n    def inner():\n        pass\n\nclass TestB:\n    pass\n")
	tree, err := tspool.Parse(context.Background(), source)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	defer tree.Close()

	var names []string
	Walk(tree.RootNode(), func(n *sitter.Node) bool {
		switch n.Type() {
		case NodeFunctionDefinition, NodeClassDefinition:
			names = append(names, Text(n.ChildByFieldName("name"), source))
			return false
		}
		return true
	})

	if len(names) != 2 || names[0] != "test_a" || names[1] != "TestB" {
		t.Errorf("visited %v, want [test_a TestB]", names)
	}
}

func TestText_OutOfRange(t *testing.T) {
	source := []byte("x = 1\n")
	tree, err := tspool.Parse(context.Background(), source)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	defer tree.Close()

	if got := Text(nil, source); got != "" {
		t.Errorf("Text(nil) = %q", got)
	}
	if got := Text(tree.RootNode(), source[:2]); got != "" {
		t.Errorf("Text with short source = %q", got)
	}

	assign := tree.RootNode().NamedChild(0)
	loc := Span(assign, "m.py")
	if loc.StartLine != 1 || loc.EndLine != 1 || loc.File != "m.py" {
		t.Errorf("Span = %+v", loc)
	}
	if ChildOfType(assign, NodeAssignment) == nil {
		t.Error("expected assignment child")
	}
}
