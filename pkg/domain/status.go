package domain

// TestStatus represents the execution behavior of a test.
type TestStatus string

const (
	// TestStatusActive indicates a normal test that runs and expects success.
	TestStatusActive TestStatus = "active"
	// TestStatusSkipped indicates a test intentionally excluded from execution.
	TestStatusSkipped TestStatus = "skipped"
	// TestStatusXfail indicates a test expected to fail (unittest.expectedFailure, pytest xfail).
	TestStatusXfail TestStatus = "xfail"
)
