package domain

// Location represents a position in source code.
type Location struct {
	File      string `json:"file" yaml:"file"`
	StartLine int    `json:"startLine" yaml:"startLine"`
	EndLine   int    `json:"endLine" yaml:"endLine"`
	StartCol  int    `json:"startCol,omitempty" yaml:"startCol,omitempty"`
	EndCol    int    `json:"endCol,omitempty" yaml:"endCol,omitempty"`
}

// IsZero reports whether the location carries no position.
func (l Location) IsZero() bool {
	return l.File == "" && l.StartLine == 0
}
