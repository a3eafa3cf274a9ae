package policy

import "strings"

// Path patterns cover registry keys and filesystem paths with the same
// language: matching is case-insensitive over separator-normalized paths,
// `*` matches within one segment, `**` matches any remaining segments.
// There are no character classes. `HKCU\Software\OtherVendor\Key` must not
// match `HKCU\Software\Example\App\**`.

// Pattern is one compiled allow pattern.
type Pattern struct {
	raw      string
	segments []string
}

// CompilePattern normalizes and splits a pattern once so matching stays
// allocation-free on the hot path.
func CompilePattern(raw string) Pattern {
	return Pattern{
		raw:      raw,
		segments: splitPath(raw),
	}
}

// CompilePatterns compiles a pattern list, skipping empty entries.
func CompilePatterns(raws []string) []Pattern {
	patterns := make([]Pattern, 0, len(raws))
	for _, raw := range raws {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		patterns = append(patterns, CompilePattern(raw))
	}
	return patterns
}

// String returns the pattern as written in the rule set.
func (p Pattern) String() string {
	return p.raw
}

// Match reports whether path satisfies the pattern. Paths carrying relative
// segments ("." or "..") never match: the matcher is lexical, and a `**`
// would otherwise swallow `..` hops that resolve outside the allowed tree.
func (p Pattern) Match(path string) bool {
	segments := splitPath(path)
	if hasDotSegments(segments) {
		return false
	}
	return matchSegments(p.segments, segments)
}

// MatchAny reports whether any pattern matches path, returning the first
// matching pattern for the audit trail.
func MatchAny(patterns []Pattern, path string) (Pattern, bool) {
	for _, p := range patterns {
		if p.Match(path) {
			return p, true
		}
	}
	return Pattern{}, false
}

// splitPath lowercases and splits on both separator styles so Windows
// registry paths and Unix file paths go through the same matcher.
func splitPath(path string) []string {
	norm := strings.ToLower(path)
	norm = strings.ReplaceAll(norm, "\\", "/")
	parts := strings.Split(norm, "/")
	segments := parts[:0]
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// hasDotSegments reports whether any segment is "." or "..". Such paths are
// rejected outright rather than normalized; the broker never second-guesses
// what the OS would resolve them to.
func hasDotSegments(segments []string) bool {
	for _, s := range segments {
		if s == "." || s == ".." {
			return true
		}
	}
	return false
}

func matchSegments(pattern, path []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			// `**` must be the last segment; it swallows any remainder,
			// including an empty one.
			if len(pattern) == 1 {
				return true
			}
			// A `**` in the middle matches zero or more segments.
			for i := 0; i <= len(path); i++ {
				if matchSegments(pattern[1:], path[i:]) {
					return true
				}
			}
			return false
		}
		if len(path) == 0 {
			return false
		}
		if !matchSegment(pattern[0], path[0]) {
			return false
		}
		pattern = pattern[1:]
		path = path[1:]
	}
	return len(path) == 0
}

// matchSegment matches one path segment against one pattern segment where
// `*` matches any run of characters within the segment.
func matchSegment(pattern, segment string) bool {
	// Iterative glob: remember the last `*` position and backtrack to it.
	var (
		p, s         int
		starP, starS = -1, 0
	)
	for s < len(segment) {
		switch {
		case p < len(pattern) && (pattern[p] == segment[s]):
			p++
			s++
		case p < len(pattern) && pattern[p] == '*':
			starP = p
			starS = s
			p++
		case starP >= 0:
			starS++
			s = starS
			p = starP + 1
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
