//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
)

// cacheEnv overrides the clone cache directory, e.g. to share it between
// checkouts.
const cacheEnv = "PYLOADER_INTEGRATION_CACHE"

// doneMarker is written after a clone finishes; directories without it are
// partial and cloned again.
const doneMarker = ".pyloader_clone_done"

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// CloneResult locates a checked-out repository.
type CloneResult struct {
	FromCache bool
	Path      string
}

// CloneRepo shallow-clones repo at its ref into the cache, reusing a
// finished clone when there is one.
func CloneRepo(ctx context.Context, repo Repository) (*CloneResult, error) {
	cacheDir, err := getCacheDir()
	if err != nil {
		return nil, err
	}
	dest := filepath.Join(cacheDir, sanitizeDirName(repo.Name, repo.Ref))

	if _, err := os.Stat(filepath.Join(dest, doneMarker)); err == nil {
		return &CloneResult{FromCache: true, Path: dest}, nil
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("remove partial clone: %w", err)
	}

	if err := git(ctx, "clone", "--quiet", "--depth=1", "--branch="+repo.Ref, "--single-branch", repo.URL, dest); err != nil {
		_ = os.RemoveAll(dest)
		return nil, fmt.Errorf("clone %s@%s: %w", repo.Name, repo.Ref, err)
	}
	if err := os.WriteFile(filepath.Join(dest, doneMarker), nil, 0o644); err != nil {
		return nil, fmt.Errorf("mark clone done: %w", err)
	}
	return &CloneResult{Path: dest}, nil
}

func git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git %s: %w\n%s", args[0], err, out)
	}
	return nil
}

func getCacheDir() (string, error) {
	if dir := os.Getenv(cacheEnv); dir != "" {
		return dir, nil
	}
	testDataDir, err := getTestDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(testDataDir, "cache"), nil
}

func sanitizeDirName(name, ref string) string {
	return unsafePathChars.ReplaceAllString(name, "_") + "-" + unsafePathChars.ReplaceAllString(ref, "_")
}
