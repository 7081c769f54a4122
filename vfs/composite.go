package vfs

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Composite routes operations across several backends by virtual path
// prefix: the longest matching route wins, everything else goes to the
// default backend. It implements Backend itself, so the host runtime
// sees one uniform store. Paths are passed through to the routed
// backend unchanged.
type Composite struct {
	def    Backend
	routes []route // sorted by prefix length, longest first
}

type route struct {
	prefix  string // normalized, no trailing slash
	backend Backend
}

// NewComposite builds a composite backend. Route keys are virtual path
// prefixes like "/assets"; a trailing slash is tolerated.
func NewComposite(def Backend, routes map[string]Backend) (*Composite, error) {
	if def == nil {
		return nil, fmt.Errorf("composite: default backend is required")
	}
	c := &Composite{def: def}
	for raw, b := range routes {
		p, oe := NormalizePath(strings.TrimSuffix(raw, "/"))
		if oe != nil {
			return nil, fmt.Errorf("composite: route %q: %s", raw, oe.Message)
		}
		if b == nil {
			return nil, fmt.Errorf("composite: route %q has no backend", raw)
		}
		c.routes = append(c.routes, route{prefix: p, backend: b})
	}
	sort.Slice(c.routes, func(i, j int) bool {
		return len(c.routes[i].prefix) > len(c.routes[j].prefix)
	})
	return c, nil
}

// resolve returns the backend owning path.
func (c *Composite) resolve(path string) Backend {
	for _, r := range c.routes {
		if UnderPrefix(r.prefix, path) {
			return r.backend
		}
	}
	return c.def
}

// searchTargets returns the backends that can hold paths under root:
// the backend owning root itself, plus every route mounted below root.
func (c *Composite) searchTargets(root string) []Backend {
	for _, r := range c.routes {
		if UnderPrefix(r.prefix, root) {
			return []Backend{r.backend}
		}
	}
	seen := map[Backend]bool{c.def: true}
	out := []Backend{c.def}
	for _, r := range c.routes {
		if UnderPrefix(root, r.prefix) && !seen[r.backend] {
			seen[r.backend] = true
			out = append(out, r.backend)
		}
	}
	return out
}

func (c *Composite) Read(ctx context.Context, path string, opt ReadOptions) (ReadResult, error) {
	p, oe := NormalizePath(path)
	if oe != nil {
		return ReadResult{Path: path, Err: oe}, nil
	}
	return c.resolve(p).Read(ctx, p, opt)
}

func (c *Composite) Write(ctx context.Context, path, content string) (WriteResult, error) {
	p, oe := NormalizePath(path)
	if oe != nil {
		return WriteResult{Path: path, Err: oe}, nil
	}
	return c.resolve(p).Write(ctx, p, content)
}

func (c *Composite) Edit(ctx context.Context, path, oldText, newText string, replaceAll bool) (EditResult, error) {
	p, oe := NormalizePath(path)
	if oe != nil {
		return EditResult{Path: path, Err: oe}, nil
	}
	return c.resolve(p).Edit(ctx, p, oldText, newText, replaceAll)
}

// List merges direct children across the default backend and any routes
// mounted below the prefix. A route mount visible at the listed level
// shows up as a synthesized directory even when its backend is empty.
func (c *Composite) List(ctx context.Context, prefix string) ([]ListEntry, error) {
	p, oe := NormalizePrefix(prefix)
	if oe != nil {
		return nil, oe
	}

	seen := make(map[string]bool)
	var out []ListEntry
	for _, b := range c.searchTargets(p) {
		entries, err := b.List(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !seen[e.Path] {
				seen[e.Path] = true
				out = append(out, e)
			}
		}
	}

	// Surface route mounts below the prefix as directories.
	base := p
	if base == "/" {
		base = ""
	}
	for _, r := range c.routes {
		rel, ok := RelativeTo(p, r.prefix)
		if !ok || rel == "" {
			continue
		}
		seg := rel
		if idx := strings.IndexByte(rel, '/'); idx >= 0 {
			seg = rel[:idx]
		}
		dir := base + "/" + seg + "/"
		if !seen[dir] {
			seen[dir] = true
			out = append(out, ListEntry{Path: dir, IsDir: true})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (c *Composite) Glob(ctx context.Context, pattern, root string) ([]ListEntry, error) {
	p, oe := NormalizePrefix(root)
	if oe != nil {
		return nil, oe
	}
	var out []ListEntry
	for _, b := range c.searchTargets(p) {
		entries, err := b.Glob(ctx, pattern, p)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (c *Composite) Grep(ctx context.Context, query, prefix, fileGlob string) ([]GrepMatch, error) {
	p, oe := NormalizePrefix(prefix)
	if oe != nil {
		return nil, oe
	}
	var out []GrepMatch
	for _, b := range c.searchTargets(p) {
		matches, err := b.Grep(ctx, query, p, fileGlob)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Line < out[j].Line
	})
	return out, nil
}

// Upload groups items by owning backend and forwards each group as its
// own batch, then reassembles results in input order. The caller's
// slice is never written to.
func (c *Composite) Upload(ctx context.Context, items []UploadItem) ([]WriteResult, error) {
	results := make([]WriteResult, len(items))
	normalized := make([]string, len(items))
	groups := make(map[Backend][]int)
	for i, it := range items {
		p, oe := NormalizePath(it.Path)
		if oe != nil {
			results[i] = WriteResult{Path: it.Path, Err: oe}
			continue
		}
		normalized[i] = p
		b := c.resolve(p)
		groups[b] = append(groups[b], i)
	}

	for b, idxs := range groups {
		batch := make([]UploadItem, len(idxs))
		for j, i := range idxs {
			batch[j] = UploadItem{Path: normalized[i], Data: items[i].Data}
		}
		rs, err := b.Upload(ctx, batch)
		if err != nil {
			return nil, err
		}
		for j, i := range idxs {
			results[i] = rs[j]
		}
	}
	return results, nil
}

func (c *Composite) Download(ctx context.Context, paths []string) ([]DownloadResult, error) {
	results := make([]DownloadResult, len(paths))
	normalized := make([]string, len(paths))
	groups := make(map[Backend][]int)
	for i, raw := range paths {
		p, oe := NormalizePath(raw)
		if oe != nil {
			results[i] = DownloadResult{Path: raw, Err: oe}
			continue
		}
		normalized[i] = p
		b := c.resolve(p)
		groups[b] = append(groups[b], i)
	}

	for b, idxs := range groups {
		batch := make([]string, len(idxs))
		for j, i := range idxs {
			batch[j] = normalized[i]
		}
		rs, err := b.Download(ctx, batch)
		if err != nil {
			return nil, err
		}
		for j, i := range idxs {
			results[i] = rs[j]
		}
	}
	return results, nil
}

// Initialize initializes every distinct backend behind the composite.
func (c *Composite) Initialize(ctx context.Context) error {
	for _, b := range c.distinct() {
		if err := b.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize %s backend: %w", b.Type(), err)
		}
	}
	return nil
}

// Close closes every distinct backend, returning the first failure but
// attempting all of them.
func (c *Composite) Close() error {
	var firstErr error
	for _, b := range c.distinct() {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Composite) Type() string { return "composite" }

func (c *Composite) distinct() []Backend {
	seen := map[Backend]bool{c.def: true}
	out := []Backend{c.def}
	for _, r := range c.routes {
		if !seen[r.backend] {
			seen[r.backend] = true
			out = append(out, r.backend)
		}
	}
	return out
}
