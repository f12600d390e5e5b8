package storage

import (
	"fmt"
	"strings"
)

// ResolveCommit expands a commit hash prefix against the stored graphs.
// An exact match wins outright; otherwise the prefix must select exactly
// one stored commit.
func ResolveCommit(s GraphStore, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("empty commit")
	}
	commits, err := s.ListGraphs()
	if err != nil {
		return "", fmt.Errorf("listing graphs: %w", err)
	}

	var matches []string
	for _, c := range commits {
		if c == prefix {
			return c, nil
		}
		if strings.HasPrefix(c, prefix) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no stored graph matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("commit %q is ambiguous (%d matches)", prefix, len(matches))
	}
}
