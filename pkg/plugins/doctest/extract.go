package doctest

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

var (
	promptPattern = regexp.MustCompile(`^(\s*)>>>(?: (.*)|$)`)
	continuation  = regexp.MustCompile(`^(\s*)\.\.\.(?: (.*)|$)`)
)

// Example is one interactive statement and its expected output.
type Example struct {
	Source []string
	Want   []string
	Line   int
}

// Block is a run of examples not interrupted by prose.
type Block struct {
	Examples  []Example
	StartLine int
	EndLine   int
}

// Extract finds the example blocks of a text document.
func Extract(src []byte) []Block {
	var (
		blocks  []Block
		block   *Block
		example *Example
		indent  string
	)

	closeBlock := func() {
		if block != nil {
			blocks = append(blocks, *block)
		}
		block, example = nil, nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")

		if m := promptPattern.FindStringSubmatch(text); m != nil {
			if block == nil {
				block = &Block{StartLine: line}
			}
			block.Examples = append(block.Examples, Example{Source: []string{m[2]}, Line: line})
			example = &block.Examples[len(block.Examples)-1]
			indent = m[1]
			block.EndLine = line
			continue
		}

		if example != nil && len(example.Want) == 0 {
			if m := continuation.FindStringSubmatch(text); m != nil && m[1] == indent {
				example.Source = append(example.Source, m[2])
				block.EndLine = line
				continue
			}
		}

		if strings.TrimSpace(text) == "" {
			example = nil
			continue
		}

		if example != nil && strings.HasPrefix(text, indent) {
			example.Want = append(example.Want, strings.TrimPrefix(text, indent))
			block.EndLine = line
			continue
		}

		closeBlock()
	}
	closeBlock()

	return blocks
}
