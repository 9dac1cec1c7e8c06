//go:build ignore

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/specvital/pyloader/pkg/parser"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/scan.go <path>\n")
		os.Exit(1)
	}

	path := os.Args[1]

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := parser.Scan(ctx, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan error: %v\n", err)
		os.Exit(1)
	}

	output := map[string]interface{}{
		"filesScanned": result.Stats.FilesScanned,
		"filesParsed":  result.Stats.FilesParsed,
		"filesFailed":  result.Stats.FilesFailed,
		"modules":      len(result.Modules),
		"duration":     result.Stats.Duration.String(),
		"packages":     countPackages(result),
	}
	json.NewEncoder(os.Stdout).Encode(output)
}

// countPackages counts preloaded modules per top-level package.
func countPackages(result *parser.ScanResult) map[string]int {
	counts := make(map[string]int)
	for _, mod := range result.Modules {
		top, _, _ := strings.Cut(mod.Name, ".")
		counts[top]++
	}
	return counts
}
