package tspool_test

import (
	"context"
	"sync"
	"testing"

	"github.com/specvital/pyloader/pkg/parser/tspool"
)

func TestParse_RaceFree(t *testing.T) {
	t.Parallel()

	const goroutines = 50
	source := []byte("def test_one():\n    pass\n")

	var wg sync.WaitGroup
	wg.Add(goroutines)

	errCh := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			tree, err := tspool.Parse(context.Background(), source)
			if err != nil {
				errCh <- err
				return
			}
			defer tree.Close()
		}()
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("Parse failed: %v", err)
	}
}

func TestParse_ContextCancellation(t *testing.T) {
	t.Parallel()

	// tree-sitter's ParseCtx may not honor cancellation for small inputs.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tree, err := tspool.Parse(ctx, []byte("x = 1\n"))

	if err == nil && tree != nil {
		tree.Close()
	}
}

func TestGetLanguage_NotNil(t *testing.T) {
	t.Parallel()

	if tspool.GetLanguage() == nil {
		t.Fatal("GetLanguage returned nil")
	}
}

func TestParse_ValidOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
		first  string
	}{
		{
			name:   "function",
			source: "def test_x():\n    pass\n",
			first:  "function_definition",
		},
		{
			name:   "class",
			source: "class TestX(object):\n    def test_y(self):\n        pass\n",
			first:  "class_definition",
		},
		{
			name:   "import",
			source: "import unittest\n",
			first:  "import_statement",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tree, err := tspool.Parse(context.Background(), []byte(tt.source))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			defer tree.Close()

			root := tree.RootNode()
			if root.ChildCount() == 0 {
				t.Fatal("Expected children in parsed tree")
			}
			if got := root.Child(0).Type(); got != tt.first {
				t.Errorf("first child = %q, want %q", got, tt.first)
			}
		})
	}
}

func TestQueryWithCache(t *testing.T) {
	t.Parallel()

	source := []byte("def test_a():\n    pass\n\ndef helper():\n    pass\n")
	tree, err := tspool.Parse(context.Background(), source)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	defer tree.Close()

	const q = `(function_definition name: (identifier) @name)`

	for i := 0; i < 2; i++ {
		results, err := tspool.QueryWithCache(tree.RootNode(), q)
		if err != nil {
			t.Fatalf("QueryWithCache failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 matches, got %d", len(results))
		}
		if got := results[0].Captures["name"].Content(source); got != "test_a" {
			t.Errorf("first capture = %q, want test_a", got)
		}
	}
}

func TestQueryWithCache_InvalidQuery(t *testing.T) {
	t.Parallel()

	tree, err := tspool.Parse(context.Background(), []byte("x = 1\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	defer tree.Close()

	if _, err := tspool.QueryWithCache(tree.RootNode(), "(not_a_node_type"); err == nil {
		t.Error("expected error for invalid query")
	}
}
