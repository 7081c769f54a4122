package vfs

import "time"

// ReadResult is the outcome of Read. On success Content holds the
// numbered line window; Err carries NotFound or InvalidPath.
type ReadResult struct {
	Path    string
	Content string
	Err     *OpError
}

// WriteResult is the outcome of Write and of each Upload item.
type WriteResult struct {
	Path         string
	BytesWritten int64
	Err          *OpError
}

// EditResult is the outcome of Edit. Occurrences is the number of
// replacements performed.
type EditResult struct {
	Path        string
	Occurrences int
	Err         *OpError
}

// ListEntry describes one direct child of a listed prefix, or one glob
// hit. Directory entries are synthesized from deeper paths: IsDir is
// true, Path ends in "/", and Size/ModTime are zero.
type ListEntry struct {
	Path    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// GrepMatch is one matching line. Line numbers are 1-based.
type GrepMatch struct {
	Path string
	Line int
	Text string
}

// DownloadResult is the outcome of one Download item. Data is the raw
// file content, bypassing line numbering.
type DownloadResult struct {
	Path string
	Data []byte
	Err  *OpError
}

// LineMatch is one hit from GrepScan, before the owning path is known.
type LineMatch struct {
	Line int
	Text string
}
