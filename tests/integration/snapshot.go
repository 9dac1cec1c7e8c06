//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/specvital/pyloader/pkg/domain"
	"github.com/specvital/pyloader/pkg/parser"
)

// Snapshot represents a golden snapshot of the tests loaded from a repository.
type Snapshot struct {
	Repository    string           `json:"repository"`
	Ref           string           `json:"ref"`
	ModuleCount   int              `json:"moduleCount"`
	TestCount     int              `json:"testCount"`
	FailureCount  int              `json:"failureCount"`
	KindCounts    map[string]int   `json:"kindCounts"`
	FailureKinds  map[string]int   `json:"failureKinds"`
	SampleModules []SnapshotModule `json:"sampleModules"`
	Stats         SnapshotStats    `json:"stats"`
}

// SnapshotModule samples one loaded test module.
type SnapshotModule struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	ClassCount int    `json:"classCount"`
	TestCount  int    `json:"testCount"`
}

// SnapshotStats contains preload statistics for comparison.
type SnapshotStats struct {
	FilesParsed  int `json:"filesParsed"`
	FilesScanned int `json:"filesScanned"`
}

// SnapshotFromInventory creates a Snapshot from a loaded inventory and the
// preload result that fed it.
func SnapshotFromInventory(repo Repository, inv domain.Inventory, scan *parser.ScanResult) *Snapshot {
	snapshot := &Snapshot{
		Repository:   repo.Name,
		Ref:          repo.Ref,
		TestCount:    inv.CountTests(),
		FailureCount: inv.CountFailures(),
		KindCounts:   make(map[string]int),
		FailureKinds: make(map[string]int),
	}
	if scan != nil {
		snapshot.Stats = SnapshotStats{
			FilesParsed:  scan.Stats.FilesParsed,
			FilesScanned: scan.Stats.FilesScanned,
		}
	}

	var modules []SnapshotModule
	var visit func(s domain.TestSuite)
	visit = func(s domain.TestSuite) {
		for _, test := range s.Tests {
			snapshot.KindCounts[string(test.Kind)]++
		}
		for _, f := range s.Failures {
			snapshot.FailureKinds[f.Kind]++
		}
		if s.Context == domain.ContextModule {
			modules = append(modules, moduleSample(s, inv.RootPath))
		}
		for _, sub := range s.Suites {
			visit(sub)
		}
	}
	for _, s := range inv.Suites {
		visit(s)
	}

	snapshot.ModuleCount = len(modules)
	snapshot.SampleModules = sampleModules(modules, 20)
	return snapshot
}

func moduleSample(s domain.TestSuite, rootPath string) SnapshotModule {
	relPath, err := filepath.Rel(rootPath, s.Location.File)
	if err != nil {
		relPath = s.Location.File
	}
	classes := 0
	for _, sub := range s.Suites {
		if sub.Context == domain.ContextClass {
			classes++
		}
	}
	return SnapshotModule{
		Path:       filepath.ToSlash(relPath),
		Name:       s.Name,
		ClassCount: classes,
		TestCount:  s.CountTests(),
	}
}

// sampleModules keeps up to maxSamples modules, sorted by path for determinism.
func sampleModules(modules []SnapshotModule, maxSamples int) []SnapshotModule {
	if len(modules) == 0 {
		return nil
	}
	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Path < modules[j].Path
	})
	if len(modules) > maxSamples {
		modules = modules[:maxSamples]
	}
	return modules
}

// SaveSnapshot saves a snapshot to the golden directory.
func SaveSnapshot(snapshot *Snapshot) error {
	goldenDir, err := getGoldenDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(goldenDir, 0755); err != nil {
		return fmt.Errorf("create golden dir: %w", err)
	}

	path := filepath.Join(goldenDir, snapshotFilename(snapshot.Repository, snapshot.Ref))
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot loads a snapshot from the golden directory.
func LoadSnapshot(repoName, ref string) (*Snapshot, error) {
	goldenDir, err := getGoldenDir()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(goldenDir, snapshotFilename(repoName, ref))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot not found: %s (run with -update to create)", path)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

// SnapshotDiff represents differences between expected and actual snapshots.
type SnapshotDiff struct {
	ModuleCountDiff  int
	TestCountDiff    int
	FailureCountDiff int
	KindCountDiffs   map[string]CountDiff
	MissingModules   []string
	ExtraModules     []string
}

// CountDiff represents the difference in test count for one kind.
type CountDiff struct {
	Expected int
	Actual   int
}

// IsEmpty returns true if there are no differences.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.ModuleCountDiff == 0 &&
		d.TestCountDiff == 0 &&
		d.FailureCountDiff == 0 &&
		len(d.KindCountDiffs) == 0 &&
		len(d.MissingModules) == 0 &&
		len(d.ExtraModules) == 0
}

// String returns a human-readable diff summary.
func (d *SnapshotDiff) String() string {
	if d.IsEmpty() {
		return "no differences"
	}

	var sb strings.Builder

	if d.ModuleCountDiff != 0 {
		fmt.Fprintf(&sb, "  module count: %+d\n", d.ModuleCountDiff)
	}
	if d.TestCountDiff != 0 {
		fmt.Fprintf(&sb, "  test count: %+d\n", d.TestCountDiff)
	}
	if d.FailureCountDiff != 0 {
		fmt.Fprintf(&sb, "  failure count: %+d\n", d.FailureCountDiff)
	}

	kinds := make([]string, 0, len(d.KindCountDiffs))
	for kind := range d.KindCountDiffs {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		diff := d.KindCountDiffs[kind]
		fmt.Fprintf(&sb, "  kind %s: expected %d, got %d\n", kind, diff.Expected, diff.Actual)
	}

	writePaths(&sb, "missing modules", "-", d.MissingModules)
	writePaths(&sb, "extra modules", "+", d.ExtraModules)

	return sb.String()
}

func writePaths(sb *strings.Builder, title, marker string, paths []string) {
	if len(paths) == 0 {
		return
	}
	fmt.Fprintf(sb, "  %s (%d):\n", title, len(paths))
	for i, p := range paths {
		if i == 10 {
			fmt.Fprintf(sb, "    ... and %d more\n", len(paths)-10)
			break
		}
		fmt.Fprintf(sb, "    %s %s\n", marker, p)
	}
}

// CompareSnapshots compares an expected snapshot with an actual one.
func CompareSnapshots(expected *Snapshot, actual *Snapshot) *SnapshotDiff {
	diff := &SnapshotDiff{
		ModuleCountDiff:  actual.ModuleCount - expected.ModuleCount,
		TestCountDiff:    actual.TestCount - expected.TestCount,
		FailureCountDiff: actual.FailureCount - expected.FailureCount,
		KindCountDiffs:   make(map[string]CountDiff),
	}

	allKinds := make(map[string]bool)
	for kind := range expected.KindCounts {
		allKinds[kind] = true
	}
	for kind := range actual.KindCounts {
		allKinds[kind] = true
	}
	for kind := range allKinds {
		expectedCount := expected.KindCounts[kind]
		actualCount := actual.KindCounts[kind]
		if expectedCount != actualCount {
			diff.KindCountDiffs[kind] = CountDiff{
				Expected: expectedCount,
				Actual:   actualCount,
			}
		}
	}

	expectedPaths := make(map[string]bool)
	for _, m := range expected.SampleModules {
		expectedPaths[m.Path] = true
	}
	actualPaths := make(map[string]bool)
	for _, m := range actual.SampleModules {
		actualPaths[m.Path] = true
	}

	for path := range expectedPaths {
		if !actualPaths[path] {
			diff.MissingModules = append(diff.MissingModules, path)
		}
	}
	for path := range actualPaths {
		if !expectedPaths[path] {
			diff.ExtraModules = append(diff.ExtraModules, path)
		}
	}

	sort.Strings(diff.MissingModules)
	sort.Strings(diff.ExtraModules)

	return diff
}

func getGoldenDir() (string, error) {
	testDataDir, err := getTestDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(testDataDir, "golden"), nil
}

func snapshotFilename(repoName, ref string) string {
	safeName := unsafePathChars.ReplaceAllString(repoName, "_")
	safeRef := unsafePathChars.ReplaceAllString(ref, "_")
	return fmt.Sprintf("%s-%s.json", safeName, safeRef)
}
