package tspool

import (
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// QueryResult is one match of a query.
type QueryResult struct {
	// Node is the first captured node of the match.
	Node *sitter.Node
	// Captures maps capture names to the nodes they matched.
	Captures map[string]*sitter.Node
}

type compiledQuery struct {
	once  sync.Once
	query *sitter.Query
	names []string // capture names by index
	err   error
}

// queries holds compiled queries keyed by their source. Cached queries
// are shared and must not be closed by callers.
var queries = struct {
	sync.Mutex
	compiled map[string]*compiledQuery
}{compiled: make(map[string]*compiledQuery)}

func compile(src string) (*compiledQuery, error) {
	queries.Lock()
	c, ok := queries.compiled[src]
	if !ok {
		c = &compiledQuery{}
		queries.compiled[src] = c
	}
	queries.Unlock()

	c.once.Do(func() {
		c.query, c.err = sitter.NewQuery([]byte(src), GetLanguage())
		if c.err != nil {
			return
		}
		c.names = make([]string, c.query.CaptureCount())
		for i := range c.names {
			c.names[i] = c.query.CaptureNameForId(uint32(i))
		}
	})
	return c, c.err
}

// QueryWithCache runs the query src against root, compiling it once per
// process.
func QueryWithCache(root *sitter.Node, src string) ([]QueryResult, error) {
	c, err := compile(src)
	if err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(c.query, root)

	var results []QueryResult
	for match, ok := cursor.NextMatch(); ok; match, ok = cursor.NextMatch() {
		r := QueryResult{Captures: make(map[string]*sitter.Node, len(match.Captures))}
		for _, capture := range match.Captures {
			r.Captures[c.names[capture.Index]] = capture.Node
			if r.Node == nil {
				r.Node = capture.Node
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// ClearQueryCache drops and closes every cached query. Only for testing.
func ClearQueryCache() {
	queries.Lock()
	old := queries.compiled
	queries.compiled = make(map[string]*compiledQuery)
	queries.Unlock()

	for _, c := range old {
		c.once.Do(func() {})
		if c.err == nil && c.query != nil {
			c.query.Close()
		}
	}
}
