// Package vfs defines the virtual filesystem contract shared by all
// storage backends: path-addressed file operations over stores that
// have no native notion of files or directories.
//
// Paths are absolute, slash-separated and case-sensitive. Directories
// are synthetic: they are inferred from the paths of stored files and
// never exist as records of their own. Content is line-oriented text
// unless written as raw bytes, in which case it round-trips opaquely.
package vfs

import "context"

// Backend is the storage capability consumed by the host agent runtime.
// Implementations map virtual paths onto a physical store (object keys,
// table rows, process memory) and must agree on operation semantics so
// that callers cannot tell which store they are talking to.
//
// Expected conditions (missing file, duplicate write, ambiguous edit)
// are reported inside the returned result values, never as errors. The
// error return carries infrastructure faults only: connection refused,
// authentication failure, timeout. List, Glob and Grep have no result
// slot for expected conditions; they return a *OpError through the
// error return for invalid paths or an uninitialized backend, and an
// empty slice when nothing matches.
type Backend interface {
	// Read returns file content with cat -n style line numbering.
	// Offset and Limit in opt select a 1-based line window; an offset
	// past the end of the file yields empty content, not an error.
	Read(ctx context.Context, path string, opt ReadOptions) (ReadResult, error)

	// Write creates a new file. It reports AlreadyExists when the path
	// is taken; overwriting existing content must go through Edit.
	Write(ctx context.Context, path, content string) (WriteResult, error)

	// Edit replaces occurrences of oldText with newText. With
	// replaceAll false the match must be unique, otherwise
	// AmbiguousMatch is reported and the file is left untouched.
	Edit(ctx context.Context, path, oldText, newText string, replaceAll bool) (EditResult, error)

	// List returns the direct children of prefix: stored files at that
	// level plus synthesized directory entries for deeper paths.
	List(ctx context.Context, prefix string) ([]ListEntry, error)

	// Glob returns files under root whose root-relative path matches
	// pattern. `*` and `?` stay within one segment, `**` spans zero or
	// more segments. Directories are never returned.
	Glob(ctx context.Context, pattern, root string) ([]ListEntry, error)

	// Grep searches every file under prefix (or the whole store) whose
	// name matches fileGlob for lines containing query as a literal
	// substring.
	Grep(ctx context.Context, query, prefix, fileGlob string) ([]GrepMatch, error)

	// Upload stores raw bytes for each item. Items are independent:
	// one failure is recorded in its own WriteResult and does not
	// affect the rest of the batch.
	Upload(ctx context.Context, items []UploadItem) ([]WriteResult, error)

	// Download fetches raw bytes for each path, one result per path.
	Download(ctx context.Context, paths []string) ([]DownloadResult, error)

	// Initialize prepares the store (schema, bucket). It is idempotent
	// and must be called before operations on backends that need it.
	Initialize(ctx context.Context) error

	// Close releases pooled resources. Safe to call even if Initialize
	// was never invoked or failed partway. No operation may be issued
	// after Close returns.
	Close() error

	// Type returns the backend type identifier ("s3", "postgres",
	// "memory", "composite").
	Type() string
}

// ReadOptions selects a line window for Read. Zero values mean the
// whole file.
type ReadOptions struct {
	Offset int // first line to return, 1-based; 0 means line 1
	Limit  int // maximum number of lines; 0 means no limit
}

// UploadItem is one entry of a batch upload.
type UploadItem struct {
	Path string
	Data []byte
}
