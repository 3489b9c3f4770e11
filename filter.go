// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/unityfs

package unityfs

import (
	"fmt"

	"github.com/woozymasta/pathrules"
)

// entryMatcher holds compiled include rules for extraction.
type entryMatcher struct {
	matcher *pathrules.Matcher
}

// newEntryMatcher compiles include rules. Empty rule set selects every entry.
func newEntryMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*entryMatcher, error) {
	rules = normalizeIncludeRules(rules)
	if len(rules) == 0 {
		return &entryMatcher{}, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidIncludePattern, err)
	}

	return &entryMatcher{matcher: matcher}, nil
}

// normalizeIncludeRules normalizes rule patterns and drops empty patterns.
func normalizeIncludeRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := normalizePathForMatching(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether entry path is selected for extraction.
func (m *entryMatcher) Match(entryPath string) bool {
	if m == nil || m.matcher == nil {
		return true
	}

	normalized := NormalizePath(entryPath)
	if normalized == "" {
		return false
	}

	return m.matcher.Included(normalized, false)
}
