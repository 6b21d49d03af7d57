// Package util holds small filesystem helpers shared by the CLI and config.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands a leading tilde to the user home directory, expands
// $VAR and ${VAR} references, and cleans the result. An empty path stays
// empty.
//
//	"~/.graphqa/data/notes.db" -> "/home/user/.graphqa/data/notes.db"
//	"${GRAPHQA_HOME}/cases.yaml" -> "/srv/graphqa/cases.yaml"
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		if path == "~" {
			return homeDir, nil
		}
		path = filepath.Join(homeDir, path[2:])
	}

	return filepath.Clean(os.ExpandEnv(path)), nil
}

// ExpandPaths expands each path in place and stops at the first failure.
func ExpandPaths(paths ...*string) error {
	for _, p := range paths {
		if p == nil {
			continue
		}
		expanded, err := ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}
