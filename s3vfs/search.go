package s3vfs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/clouddrift/agentfs/internal/metrics"
	"github.com/clouddrift/agentfs/vfs"
)

// listPrefix maps a search root onto the object-key prefix that
// enumerates everything below it, anchored on the segment boundary so
// "/src" never picks up "/srcdir". With a configured key prefix the
// root already ends in a separator, so the anchor must not double it.
func (b *Backend) listPrefix(root string) string {
	key := vfs.JoinKey(b.prefix, root)
	if root == "/" {
		key = vfs.JoinKey(b.prefix, "")
	}
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}
	return key
}

// listFiles enumerates every stored file under root, draining all
// paginator pages before returning. Entries carry the virtual path and
// the persisted object size.
func (b *Backend) listFiles(ctx context.Context, root string) ([]vfs.ListEntry, error) {
	keyPrefix := b.listPrefix(root)

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(keyPrefix),
	})

	var out []vfs.ListEntry
	for paginator.HasMorePages() {
		start := time.Now()
		page, err := paginator.NextPage(ctx)
		if err != nil {
			metrics.RecordS3Operation("list_objects", time.Since(start), false)
			return nil, fmt.Errorf("list objects under %s: %w", keyPrefix, err)
		}
		metrics.RecordS3Operation("list_objects", time.Since(start), true)

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			path, ok := vfs.PathFromKey(b.prefix, *obj.Key)
			if !ok {
				continue
			}
			entry := vfs.ListEntry{Path: path}
			if obj.Size != nil {
				entry.Size = *obj.Size
			}
			if obj.LastModified != nil {
				entry.ModTime = *obj.LastModified
			}
			out = append(out, entry)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]vfs.ListEntry, error) {
	start := time.Now()
	p, oe := vfs.NormalizePrefix(prefix)
	if oe != nil {
		return nil, oe
	}
	files, err := b.listFiles(ctx, p)
	metrics.RecordOp("s3", "list", time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	return vfs.GroupDirectChildren(p, files), nil
}

func (b *Backend) Glob(ctx context.Context, pattern, root string) ([]vfs.ListEntry, error) {
	start := time.Now()
	p, oe := vfs.NormalizePrefix(root)
	if oe != nil {
		return nil, oe
	}
	files, err := b.listFiles(ctx, p)
	metrics.RecordOp("s3", "glob", time.Since(start), err == nil)
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

// Grep fetches and scans each candidate body individually; the object
// store offers no server-side search. Fetches overlap up to the
// configured concurrency.
func (b *Backend) Grep(ctx context.Context, query, prefix, fileGlob string) ([]vfs.GrepMatch, error) {
	start := time.Now()
	p, oe := vfs.NormalizePrefix(prefix)
	if oe != nil {
		return nil, oe
	}
	files, err := b.listFiles(ctx, p)
	if err != nil {
		metrics.RecordOp("s3", "grep", time.Since(start), false)
		return nil, err
	}

	var candidates []string
	for _, f := range files {
		if fileGlob != "" {
			rel, ok := vfs.RelativeTo(p, f.Path)
			if !ok || !vfs.GlobMatch(fileGlob, rel) {
				continue
			}
		}
		candidates = append(candidates, f.Path)
	}

	var mu sync.Mutex
	var out []vfs.GrepMatch
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, path := range candidates {
		path := path
		g.Go(func() error {
			doc, oe, err := b.getDocument(gctx, path)
			if err != nil {
				return err
			}
			if oe != nil {
				// Deleted between list and fetch; skip.
				return nil
			}
			hits := vfs.GrepScan(doc.Text(), query)
			if len(hits) == 0 {
				return nil
			}
			mu.Lock()
			for _, m := range hits {
				out = append(out, vfs.GrepMatch{Path: path, Line: m.Line, Text: m.Text})
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RecordOp("s3", "grep", time.Since(start), false)
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Line < out[j].Line
	})
	metrics.RecordOp("s3", "grep", time.Since(start), true)
	return out, nil
}

// Upload stores each item independently, overlapping up to the
// configured concurrency. There is no cross-item transaction: a
// cancelled batch leaves completed items persisted.
func (b *Backend) Upload(ctx context.Context, items []vfs.UploadItem) ([]vfs.WriteResult, error) {
	start := time.Now()
	results := make([]vfs.WriteResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
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
		metrics.RecordOp("s3", "upload", time.Since(start), false)
		return nil, err
	}
	metrics.RecordOp("s3", "upload", time.Since(start), true)
	return results, nil
}

// Download fetches each path independently.
func (b *Backend) Download(ctx context.Context, paths []string) ([]vfs.DownloadResult, error) {
	start := time.Now()
	results := make([]vfs.DownloadResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, raw := range paths {
		i, raw := i, raw
		g.Go(func() error {
			p, oe := vfs.NormalizePath(raw)
			if oe != nil {
				results[i] = vfs.DownloadResult{Path: raw, Err: oe}
				return nil
			}
			doc, oe, err := b.getDocument(gctx, p)
			if err != nil {
				return err
			}
			if oe != nil {
				results[i] = vfs.DownloadResult{Path: p, Err: oe}
				return nil
			}
			data := doc.Bytes()
			metrics.RecordBytesDownloaded(int64(len(data)))
			results[i] = vfs.DownloadResult{Path: p, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RecordOp("s3", "download", time.Since(start), false)
		return nil, err
	}
	metrics.RecordOp("s3", "download", time.Since(start), true)
	return results, nil
}
