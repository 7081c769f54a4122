package vfs

import (
	"sort"
	"strings"
)

// NormalizePath canonicalizes a caller-supplied virtual path: a leading
// slash is added when missing, duplicate separators and "." segments
// collapse, and the trailing slash is stripped. Empty paths and any
// ".." segment are rejected, so a normalized path can never escape the
// backend's configured root.
func NormalizePath(raw string) (string, *OpError) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrInvalidPath(raw, "path is empty")
	}

	var segs []string
	for _, seg := range strings.Split(raw, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", ErrInvalidPath(raw, "parent references are not allowed")
		default:
			segs = append(segs, seg)
		}
	}
	if len(segs) == 0 {
		return "", ErrInvalidPath(raw, "path has no segments")
	}
	return "/" + strings.Join(segs, "/"), nil
}

// NormalizePrefix canonicalizes a listing or search root. Unlike file
// paths, "" and "/" are valid and both mean the store root.
func NormalizePrefix(raw string) (string, *OpError) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "/" {
		return "/", nil
	}
	return NormalizePath(raw)
}

// JoinKey maps a normalized virtual path onto a physical object key
// under the backend's configured prefix. Keys never carry a leading
// slash.
func JoinKey(prefix, path string) string {
	p := strings.TrimPrefix(path, "/")
	pre := strings.Trim(prefix, "/")
	if pre == "" {
		return p
	}
	return pre + "/" + p
}

// PathFromKey is the inverse of JoinKey: it recovers the virtual path
// from a physical key. The second return is false when the key lies
// outside the prefix.
func PathFromKey(prefix, key string) (string, bool) {
	pre := strings.Trim(prefix, "/")
	if pre != "" {
		if !strings.HasPrefix(key, pre+"/") {
			return "", false
		}
		key = key[len(pre)+1:]
	}
	if key == "" {
		return "", false
	}
	return "/" + key, true
}

// UnderPrefix reports whether path lies at or below the directory
// prefix, respecting segment boundaries: "/src/a.py" is under "/src"
// but "/srcdir/a.py" is not. A prefix of "/" covers everything.
func UnderPrefix(prefix, path string) bool {
	if prefix == "/" || prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// RelativeTo strips the root from path. It returns the root-relative
// path without a leading slash, and false when path is outside root.
func RelativeTo(root, path string) (string, bool) {
	if root == "/" || root == "" {
		return strings.TrimPrefix(path, "/"), true
	}
	if !strings.HasPrefix(path, root+"/") {
		return "", false
	}
	return path[len(root)+1:], true
}

// GroupDirectChildren reduces stored file entries to the direct
// children of prefix: files at that level pass through, deeper paths
// collapse into one synthesized directory entry per first segment.
// Results are sorted by path. The input entries must all be files.
func GroupDirectChildren(prefix string, files []ListEntry) []ListEntry {
	base := prefix
	if base == "/" {
		base = ""
	}

	var out []ListEntry
	seenDirs := make(map[string]bool)
	for _, f := range files {
		rel, ok := RelativeTo(prefix, f.Path)
		if !ok || rel == "" {
			continue
		}
		if idx := strings.IndexByte(rel, '/'); idx >= 0 {
			dir := base + "/" + rel[:idx] + "/"
			if !seenDirs[dir] {
				seenDirs[dir] = true
				out = append(out, ListEntry{Path: dir, IsDir: true})
			}
			continue
		}
		out = append(out, f)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
