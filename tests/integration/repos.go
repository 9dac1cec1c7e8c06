//go:build integration

package integration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Repository is a Python project loaded by the integration run.
type Repository struct {
	Name string `yaml:"name"`
	// Names are loaded relative to the clone; empty means the whole tree.
	Names []string `yaml:"names"`
	Ref   string   `yaml:"ref"`
	URL   string   `yaml:"url"`
	// SrcDirs overrides the non-package directories descended into.
	SrcDirs []string `yaml:"srcDirs"`
}

// ReposConfig is the content of repos.yaml.
type ReposConfig struct {
	Repositories []Repository `yaml:"repositories"`
}

// LoadRepos reads repos.yaml next to this package.
func LoadRepos() (*ReposConfig, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return readRepos(filepath.Join(dir, "repos.yaml"))
}

func readRepos(path string) (*ReposConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var config ReposConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &config, nil
}

func (c *ReposConfig) validate() error {
	if len(c.Repositories) == 0 {
		return errors.New("no repositories defined")
	}
	seen := make(map[string]bool)
	for i, repo := range c.Repositories {
		switch {
		case repo.Name == "":
			return fmt.Errorf("repository %d: name is required", i)
		case seen[repo.Name]:
			return fmt.Errorf("repository %s: defined twice", repo.Name)
		case repo.URL == "":
			return fmt.Errorf("repository %s: url is required", repo.Name)
		case repo.Ref == "":
			return fmt.Errorf("repository %s: ref is required", repo.Name)
		}
		seen[repo.Name] = true
	}
	return nil
}

func getTestDataDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return filepath.Join(dir, "testdata"), nil
}
