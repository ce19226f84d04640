package javaidx

import (
	"path/filepath"
	"strings"
)

// DefaultSkipGlobs excludes hidden directories, common build outputs, and
// test trees from a repo walk, via a configurable glob list.
var DefaultSkipGlobs = []string{
	"**/.git/**",
	"**/.git",
	"**/.*",
	"**/target/**",
	"**/build/**",
	"**/out/**",
	"**/node_modules/**",
	"**/test/**",
	"**/src/test/**",
}

// MatchesAnyGlob reports whether relPath (slash-separated, repo-relative)
// matches any of globs. The matcher is a from-scratch glob engine
// supporting *, **, ?, and [...] character classes, generalized from the
// path-exclusion matcher used for ingestion filtering elsewhere in the
// pack.
func MatchesAnyGlob(relPath string, globs []string) bool {
	normalized := filepath.ToSlash(relPath)

	for _, pattern := range globs {
		if matchesGlob(normalized, pattern) {
			return true
		}
	}

	return false
}

func matchesGlob(path, pattern string) bool {
	pattern = filepath.ToSlash(pattern)

	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}

		parts := strings.Split(path, "/")
		for i := range parts {
			subpath := strings.Join(parts[i:], "/")
			if subpath == prefix || strings.HasPrefix(subpath, prefix+"/") {
				return true
			}
		}
	}

	if strings.HasPrefix(pattern, "*.") && !strings.Contains(pattern, "/") {
		return strings.HasSuffix(path, pattern[1:])
	}

	if strings.HasPrefix(pattern, "**/") {
		suffix := pattern[3:]
		if path == suffix || strings.HasSuffix(path, "/"+suffix) {
			return true
		}

		if matchGlobPattern(path, suffix) {
			return true
		}

		parts := strings.Split(path, "/")
		for i := range parts {
			subpath := strings.Join(parts[i:], "/")
			if matchGlobPattern(subpath, suffix) {
				return true
			}
		}

		return false
	}

	if !strings.ContainsAny(pattern, "*?[") {
		return path == pattern || strings.HasSuffix(path, "/"+pattern) || strings.HasPrefix(path, pattern+"/")
	}

	if matchGlobPattern(path, pattern) {
		return true
	}

	parts := strings.Split(path, "/")
	for i := range parts {
		subpath := strings.Join(parts[i:], "/")
		if matchGlobPattern(subpath, pattern) {
			return true
		}
	}

	return false
}

func matchGlobPattern(path, pattern string) bool {
	return matchGlobRecursive(path, pattern, 0, 0)
}

func matchGlobRecursive(path, pattern string, pi, pti int) bool {
	for pi < len(path) || pti < len(pattern) {
		if pti >= len(pattern) {
			return false
		}

		if pti+1 < len(pattern) && pattern[pti] == '*' && pattern[pti+1] == '*' {
			nextPti := pti + 2
			if nextPti < len(pattern) && pattern[nextPti] == '/' {
				nextPti++
			}

			if nextPti >= len(pattern) {
				return true
			}

			for i := pi; i <= len(path); i++ {
				if matchGlobRecursive(path, pattern, i, nextPti) {
					return true
				}
			}

			return false
		}

		if pattern[pti] == '*' {
			nextPti := pti + 1

			if nextPti >= len(pattern) {
				for i := pi; i <= len(path); i++ {
					if i == len(path) || path[i] == '/' {
						if i == len(path) {
							return true
						}
					}
				}

				return false
			}

			for i := pi; i <= len(path); i++ {
				if i > pi && path[i-1] == '/' {
					break
				}

				if matchGlobRecursive(path, pattern, i, nextPti) {
					return true
				}
			}

			return false
		}

		if pattern[pti] == '?' {
			if pi >= len(path) || path[pi] == '/' {
				return false
			}

			pi++
			pti++

			continue
		}

		if pattern[pti] == '[' {
			if pi >= len(path) {
				return false
			}

			closeIdx := pti + 1
			if closeIdx < len(pattern) && (pattern[closeIdx] == '!' || pattern[closeIdx] == '^') {
				closeIdx++
			}

			for closeIdx < len(pattern) && pattern[closeIdx] != ']' {
				closeIdx++
			}

			if closeIdx >= len(pattern) {
				if path[pi] != '[' {
					return false
				}

				pi++
				pti++

				continue
			}

			classContent := pattern[pti+1 : closeIdx]
			if !matchCharClass(path[pi], classContent) {
				return false
			}

			pi++
			pti = closeIdx + 1

			continue
		}

		if pi >= len(path) || path[pi] != pattern[pti] {
			return false
		}

		pi++
		pti++
	}

	return pi == len(path) && pti == len(pattern)
}

func matchCharClass(c byte, class string) bool {
	if len(class) == 0 {
		return false
	}

	negated := false
	idx := 0

	if class[0] == '!' || class[0] == '^' {
		negated = true
		idx = 1
	}

	matched := false

	for idx < len(class) {
		if idx+2 < len(class) && class[idx+1] == '-' {
			if c >= class[idx] && c <= class[idx+2] {
				matched = true
			}

			idx += 3

			continue
		}

		if class[idx] == c {
			matched = true
		}

		idx++
	}

	if negated {
		return !matched
	}

	return matched
}
