package pgvfs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clouddrift/agentfs/internal/metrics"
	"github.com/clouddrift/agentfs/vfs"
)

// escapeLike escapes LIKE metacharacters in a literal prefix so stored
// paths containing % or _ cannot widen the predicate.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// likePrefix builds the LIKE pattern selecting every path under root,
// anchored on the segment boundary.
func likePrefix(root string) string {
	if root == "/" {
		return `/%`
	}
	return escapeLike(root) + `/%`
}

// listFiles returns every stored file under root, ordered by path.
func (b *Backend) listFiles(ctx context.Context, root string) ([]vfs.ListEntry, error) {
	db, oe := b.handle()
	if oe != nil {
		return nil, oe
	}

	start := time.Now()
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf(`SELECT path, size, modified FROM %s WHERE path LIKE $1 ORDER BY path`, b.table()),
		likePrefix(root))
	metrics.RecordDBQuery("list_files", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("list under %s: %w", root, err)
	}
	defer rows.Close()

	var out []vfs.ListEntry
	for rows.Next() {
		var e vfs.ListEntry
		if err := rows.Scan(&e.Path, &e.Size, &e.ModTime); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (b *Backend) List(ctx context.Context, prefix string) ([]vfs.ListEntry, error) {
	p, oe := vfs.NormalizePrefix(prefix)
	if oe != nil {
		return nil, oe
	}
	files, err := b.listFiles(ctx, p)
	if err != nil {
		return nil, err
	}
	return vfs.GroupDirectChildren(p, files), nil
}

func (b *Backend) Glob(ctx context.Context, pattern, root string) ([]vfs.ListEntry, error) {
	p, oe := vfs.NormalizePrefix(root)
	if oe != nil {
		return nil, oe
	}
	files, err := b.listFiles(ctx, p)
	if err != nil {
		return nil, err
	}

	var out []vfs.ListEntry
	for _, f := range files {
		rel, ok := vfs.RelativeTo(p, f.Path)
		if ok && vfs.GlobMatch(pattern, rel) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Grep pulls candidate rows with a prefix predicate and scans their
// content in-process, keeping search semantics identical to the object
// store backend instead of leaning on full-text indexing.
func (b *Backend) Grep(ctx context.Context, query, prefix, fileGlob string) ([]vfs.GrepMatch, error) {
	p, oe := vfs.NormalizePrefix(prefix)
	if oe != nil {
		return nil, oe
	}
	db, oe := b.handle()
	if oe != nil {
		return nil, oe
	}

	start := time.Now()
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf(`SELECT path, content FROM %s WHERE path LIKE $1 ORDER BY path`, b.table()),
		likePrefix(p))
	metrics.RecordDBQuery("grep", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("grep under %s: %w", p, err)
	}
	defer rows.Close()

	var out []vfs.GrepMatch
	for rows.Next() {
		var path string
		var payload []byte
		if err := rows.Scan(&path, &payload); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if fileGlob != "" {
			rel, ok := vfs.RelativeTo(p, path)
			if !ok || !vfs.GlobMatch(fileGlob, rel) {
				continue
			}
		}
		doc, err := vfs.DecodeDocument(payload)
		if err != nil {
			return nil, fmt.Errorf("row %s: %w", path, err)
		}
		for _, m := range vfs.GrepScan(doc.Text(), query) {
			out = append(out, vfs.GrepMatch{Path: path, Line: m.Line, Text: m.Text})
		}
	}
	return out, rows.Err()
}

// Upload inserts each item independently, overlapping up to the
// configured concurrency; the connection pool bounds actual
// parallelism. No cross-item transaction.
func (b *Backend) Upload(ctx context.Context, items []vfs.UploadItem) ([]vfs.WriteResult, error) {
	start := time.Now()
	results := make([]vfs.WriteResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			res, err := b.create(gctx, item.Path, vfs.EncodeBytes(item.Data))
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RecordOp("postgres", "upload", time.Since(start), false)
		return nil, err
	}

	metrics.RecordOp("postgres", "upload", time.Since(start), true)
	if db, oe := b.handle(); oe == nil {
		metrics.SetDBConnectionsOpen(db.Stats().OpenConnections)
	}
	return results, nil
}

// Download fetches each path independently.
func (b *Backend) Download(ctx context.Context, paths []string) ([]vfs.DownloadResult, error) {
	start := time.Now()
	results := make([]vfs.DownloadResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)
	for i, raw := range paths {
		i, raw := i, raw
		g.Go(func() error {
			res, err := b.downloadOne(gctx, raw)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RecordOp("postgres", "download", time.Since(start), false)
		return nil, err
	}
	metrics.RecordOp("postgres", "download", time.Since(start), true)
	return results, nil
}

func (b *Backend) downloadOne(ctx context.Context, raw string) (vfs.DownloadResult, error) {
	p, oe := vfs.NormalizePath(raw)
	if oe != nil {
		return vfs.DownloadResult{Path: raw, Err: oe}, nil
	}
	db, oe := b.handle()
	if oe != nil {
		return vfs.DownloadResult{Path: p, Err: oe}, nil
	}

	start := time.Now()
	var payload []byte
	err := db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT content FROM %s WHERE path = $1`, b.table()), p).
		Scan(&payload)
	metrics.RecordDBQuery("download", time.Since(start))
	if errors.Is(err, sql.ErrNoRows) {
		return vfs.DownloadResult{Path: p, Err: vfs.ErrNotFound(p)}, nil
	}
	if err != nil {
		return vfs.DownloadResult{}, fmt.Errorf("select %s: %w", p, err)
	}

	doc, err := vfs.DecodeDocument(payload)
	if err != nil {
		return vfs.DownloadResult{}, fmt.Errorf("row %s: %w", p, err)
	}
	data := doc.Bytes()
	metrics.RecordBytesDownloaded(int64(len(data)))
	return vfs.DownloadResult{Path: p, Data: data}, nil
}
