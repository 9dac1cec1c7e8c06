package pyast

import (
	"strings"

	"github.com/specvital/pyloader/pkg/domain"
)

// decoratorName strips the "@" and any call arguments.
func decoratorName(text string) string {
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "@"))
	if idx := strings.Index(text, "("); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func lastSegment(dotted string) string {
	if idx := strings.LastIndex(dotted, "."); idx >= 0 {
		return dotted[idx+1:]
	}
	return dotted
}

// StatusFromDecorators maps unittest and pytest skip markers to a status.
func StatusFromDecorators(decorators []string) domain.TestStatus {
	for _, dec := range decorators {
		name := decoratorName(dec)

		switch {
		case name == "pytest.mark.xfail", lastSegment(name) == "expectedFailure":
			return domain.TestStatusXfail
		case strings.HasPrefix(name, "pytest.mark.skip"):
			return domain.TestStatusSkipped
		case strings.HasPrefix(lastSegment(name), "skip") && (strings.Contains(name, "unittest") || name == lastSegment(name)):
			return domain.TestStatusSkipped
		}
	}
	return domain.TestStatusActive
}

// DeclaredTest reads nose's istest/nottest decorators.
func DeclaredTest(decorators []string) *bool {
	for _, dec := range decorators {
		switch lastSegment(decoratorName(dec)) {
		case "istest":
			v := true
			return &v
		case "nottest":
			v := false
			return &v
		}
	}
	return nil
}

func isStaticMethod(decorators []string) bool {
	for _, dec := range decorators {
		if decoratorName(dec) == "staticmethod" {
			return true
		}
	}
	return false
}
