// Package memvfs is an ephemeral, in-process implementation of the
// vfs.Backend contract. It backs composite routes that need scratch
// space for working files and doubles as the reference implementation
// for the contract's conformance tests.
package memvfs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clouddrift/agentfs/vfs"
)

type record struct {
	doc     vfs.Document
	size    int64
	modTime time.Time
}

// Backend stores file records in process memory. The zero value is not
// usable; call New.
type Backend struct {
	mu    sync.RWMutex
	files map[string]record
	now   func() time.Time
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{files: make(map[string]record), now: time.Now}
}

func (b *Backend) Read(ctx context.Context, path string, opt vfs.ReadOptions) (vfs.ReadResult, error) {
	p, oe := vfs.NormalizePath(path)
	if oe != nil {
		return vfs.ReadResult{Path: path, Err: oe}, nil
	}

	b.mu.RLock()
	rec, ok := b.files[p]
	b.mu.RUnlock()
	if !ok {
		return vfs.ReadResult{Path: p, Err: vfs.ErrNotFound(p)}, nil
	}
	return vfs.ReadResult{Path: p, Content: rec.doc.RenderNumbered(opt.Offset, opt.Limit)}, nil
}

func (b *Backend) Write(ctx context.Context, path, content string) (vfs.WriteResult, error) {
	p, oe := vfs.NormalizePath(path)
	if oe != nil {
		return vfs.WriteResult{Path: path, Err: oe}, nil
	}
	return b.put(p, vfs.EncodeText(content)), nil
}

// put inserts a record if the path is free. The map mutex is the
// store-level atomicity primitive here, so create-if-absent cannot
// race.
func (b *Backend) put(path string, doc vfs.Document) vfs.WriteResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.files[path]; exists {
		return vfs.WriteResult{Path: path, Err: vfs.ErrAlreadyExists(path)}
	}
	size := doc.ByteLen()
	b.files[path] = record{doc: doc, size: size, modTime: b.now()}
	return vfs.WriteResult{Path: path, BytesWritten: size}
}

func (b *Backend) Edit(ctx context.Context, path, oldText, newText string, replaceAll bool) (vfs.EditResult, error) {
	p, oe := vfs.NormalizePath(path)
	if oe != nil {
		return vfs.EditResult{Path: path, Err: oe}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.files[p]
	if !ok {
		return vfs.EditResult{Path: p, Err: vfs.ErrNotFound(p)}, nil
	}
	doc, count, editErr := rec.doc.ReplaceText(p, oldText, newText, replaceAll)
	if editErr != nil {
		return vfs.EditResult{Path: p, Err: editErr}, nil
	}
	b.files[p] = record{doc: doc, size: doc.ByteLen(), modTime: b.now()}
	return vfs.EditResult{Path: p, Occurrences: count}, nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]vfs.ListEntry, error) {
	p, oe := vfs.NormalizePrefix(prefix)
	if oe != nil {
		return nil, oe
	}
	return vfs.GroupDirectChildren(p, b.snapshot(p)), nil
}

func (b *Backend) Glob(ctx context.Context, pattern, root string) ([]vfs.ListEntry, error) {
	p, oe := vfs.NormalizePrefix(root)
	if oe != nil {
		return nil, oe
	}
	var out []vfs.ListEntry
	for _, e := range b.snapshot(p) {
		rel, ok := vfs.RelativeTo(p, e.Path)
		if ok && vfs.GlobMatch(pattern, rel) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (b *Backend) Grep(ctx context.Context, query, prefix, fileGlob string) ([]vfs.GrepMatch, error) {
	p, oe := vfs.NormalizePrefix(prefix)
	if oe != nil {
		return nil, oe
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	var paths []string
	for path := range b.files {
		// Strictly below the root: a file stored at the root path
		// itself is not searched, matching the key-prefix and LIKE
		// predicates of the persistent stores.
		rel, ok := vfs.RelativeTo(p, path)
		if !ok || rel == "" {
			continue
		}
		if fileGlob != "" && !vfs.GlobMatch(fileGlob, rel) {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var out []vfs.GrepMatch
	for _, path := range paths {
		for _, m := range vfs.GrepScan(b.files[path].doc.Text(), query) {
			out = append(out, vfs.GrepMatch{Path: path, Line: m.Line, Text: m.Text})
		}
	}
	return out, nil
}

func (b *Backend) Upload(ctx context.Context, items []vfs.UploadItem) ([]vfs.WriteResult, error) {
	results := make([]vfs.WriteResult, len(items))
	for i, it := range items {
		p, oe := vfs.NormalizePath(it.Path)
		if oe != nil {
			results[i] = vfs.WriteResult{Path: it.Path, Err: oe}
			continue
		}
		results[i] = b.put(p, vfs.EncodeBytes(it.Data))
	}
	return results, nil
}

func (b *Backend) Download(ctx context.Context, paths []string) ([]vfs.DownloadResult, error) {
	results := make([]vfs.DownloadResult, len(paths))
	for i, raw := range paths {
		p, oe := vfs.NormalizePath(raw)
		if oe != nil {
			results[i] = vfs.DownloadResult{Path: raw, Err: oe}
			continue
		}
		b.mu.RLock()
		rec, ok := b.files[p]
		b.mu.RUnlock()
		if !ok {
			results[i] = vfs.DownloadResult{Path: p, Err: vfs.ErrNotFound(p)}
			continue
		}
		results[i] = vfs.DownloadResult{Path: p, Data: rec.doc.Bytes()}
	}
	return results, nil
}

// Initialize is a no-op; memory needs no schema.
func (b *Backend) Initialize(ctx context.Context) error { return nil }

// Close drops all records.
func (b *Backend) Close() error {
	b.mu.Lock()
	b.files = make(map[string]record)
	b.mu.Unlock()
	return nil
}

func (b *Backend) Type() string { return "memory" }

// snapshot copies file entries under prefix, sorted by path.
func (b *Backend) snapshot(prefix string) []vfs.ListEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []vfs.ListEntry
	for path, rec := range b.files {
		if vfs.UnderPrefix(prefix, path) {
			out = append(out, vfs.ListEntry{Path: path, Size: rec.size, ModTime: rec.modTime})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
