package storage

import (
	"regexp"
	"strings"
)

var (
	separatorPattern = regexp.MustCompile(`[/_\.\-\s]+`)
	camelCasePattern = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	numberPattern    = regexp.MustCompile(`([a-zA-Z])(\d)|(\d)([a-zA-Z])`)
)

// tokenize splits a canonical node name (or a search query) into lowercase
// tokens: path segments are split on separators, then on camelCase and
// letter/digit boundaries, deduplicated. "repo/scope_tree.py/BuildScope"
// yields repo, scope, tree, py, buildscope, build.
func tokenize(text string) []string {
	seen := make(map[string]bool)
	var tokens []string
	add := func(tok string) {
		tok = strings.ToLower(tok)
		if tok == "" || seen[tok] {
			return
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}

	for _, part := range separatorPattern.Split(text, -1) {
		add(part)
		split := camelCasePattern.ReplaceAllString(part, "$1 $2")
		split = numberPattern.ReplaceAllString(split, "$1$3 $2$4")
		for _, sub := range strings.Fields(split) {
			add(sub)
		}
	}
	return tokens
}
