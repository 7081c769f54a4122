package vfs

import "strings"

// GlobMatch reports whether a root-relative path matches pattern.
// Matching is segment-wise and case-sensitive: `*` and `?` never cross
// a separator, `**` matches zero or more whole segments. There are no
// character classes.
func GlobMatch(pattern, relpath string) bool {
	return matchSegments(splitSegments(pattern), splitSegments(relpath))
}

func splitSegments(s string) []string {
	s = strings.Trim(s, "/")
	if s == "" {
		return nil
	}
	return strings.Split(s, "/")
}

func matchSegments(pat, segs []string) bool {
	if len(pat) == 0 {
		return len(segs) == 0
	}
	if pat[0] == "**" {
		// Zero or more segments: try consuming none, then one at a time.
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pat[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	return matchSegment(pat[0], segs[0]) && matchSegments(pat[1:], segs[1:])
}

// matchSegment matches `*` and `?` within a single segment. Backtracks
// on `*` the classic way, no recursion.
func matchSegment(pat, s string) bool {
	pi, si := 0, 0
	starPat, starTxt := -1, 0
	for si < len(s) {
		switch {
		case pi < len(pat) && (pat[pi] == '?' || pat[pi] == s[si]):
			pi++
			si++
		case pi < len(pat) && pat[pi] == '*':
			starPat, starTxt = pi, si
			pi++
		case starPat >= 0:
			starTxt++
			pi, si = starPat+1, starTxt
		default:
			return false
		}
	}
	for pi < len(pat) && pat[pi] == '*' {
		pi++
	}
	return pi == len(pat)
}

// GrepScan returns every line of text containing query as a literal,
// case-sensitive substring, with 1-based line numbers. No regular
// expression semantics.
func GrepScan(text, query string) []LineMatch {
	if query == "" {
		return nil
	}
	var out []LineMatch
	for i, line := range strings.Split(text, "\n") {
		if strings.Contains(line, query) {
			out = append(out, LineMatch{Line: i + 1, Text: line})
		}
	}
	return out
}
