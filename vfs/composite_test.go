package vfs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clouddrift/agentfs/memvfs"
	"github.com/clouddrift/agentfs/vfs"
)

func newTestComposite(t *testing.T) (*vfs.Composite, *memvfs.Backend, *memvfs.Backend) {
	t.Helper()
	def := memvfs.New()
	assets := memvfs.New()
	c, err := vfs.NewComposite(def, map[string]vfs.Backend{"/assets": assets})
	require.NoError(t, err)
	return c, def, assets
}

func TestCompositeRouting(t *testing.T) {
	ctx := context.Background()
	c, def, assets := newTestComposite(t)

	wr, err := c.Write(ctx, "/assets/logo.txt", "routed")
	require.NoError(t, err)
	require.Nil(t, wr.Err)

	wr, err = c.Write(ctx, "/notes.txt", "default")
	require.NoError(t, err)
	require.Nil(t, wr.Err)

	// Each write landed only on its owning backend.
	res, err := assets.Read(ctx, "/assets/logo.txt", vfs.ReadOptions{})
	require.NoError(t, err)
	require.Nil(t, res.Err)

	res, err = def.Read(ctx, "/assets/logo.txt", vfs.ReadOptions{})
	require.NoError(t, err)
	require.NotNil(t, res.Err)
	assert.Equal(t, vfs.KindNotFound, res.Err.Kind)

	// Reads through the composite resolve the same way.
	res, err = c.Read(ctx, "/assets/logo.txt", vfs.ReadOptions{})
	require.NoError(t, err)
	require.Nil(t, res.Err)
	assert.Equal(t, "1\trouted", res.Content)

	res, err = c.Read(ctx, "/notes.txt", vfs.ReadOptions{})
	require.NoError(t, err)
	require.Nil(t, res.Err)
	assert.Equal(t, "1\tdefault", res.Content)
}

func TestCompositeLongestPrefixWins(t *testing.T) {
	ctx := context.Background()
	def := memvfs.New()
	outer := memvfs.New()
	inner := memvfs.New()
	c, err := vfs.NewComposite(def, map[string]vfs.Backend{
		"/data":      outer,
		"/data/cold": inner,
	})
	require.NoError(t, err)

	_, err = c.Write(ctx, "/data/cold/x.txt", "inner")
	require.NoError(t, err)
	_, err = c.Write(ctx, "/data/hot.txt", "outer")
	require.NoError(t, err)

	res, err := inner.Read(ctx, "/data/cold/x.txt", vfs.ReadOptions{})
	require.NoError(t, err)
	assert.Nil(t, res.Err)

	res, err = outer.Read(ctx, "/data/hot.txt", vfs.ReadOptions{})
	require.NoError(t, err)
	assert.Nil(t, res.Err)

	res, err = outer.Read(ctx, "/data/cold/x.txt", vfs.ReadOptions{})
	require.NoError(t, err)
	assert.NotNil(t, res.Err)
}

func TestCompositeListMergesAndSynthesizesMounts(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestComposite(t)

	_, err := c.Write(ctx, "/a.txt", "a")
	require.NoError(t, err)

	// The /assets backend is empty, but the mount still appears as a
	// directory at the root level.
	entries, err := c.List(ctx, "/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/a.txt", entries[0].Path)
	assert.Equal(t, "/assets/", entries[1].Path)
	assert.True(t, entries[1].IsDir)

	// Once populated, the mount's contents list through the composite.
	_, err = c.Write(ctx, "/assets/logo.png", "png")
	require.NoError(t, err)
	entries, err = c.List(ctx, "/assets")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/assets/logo.png", entries[0].Path)
}

func TestCompositeSearchFansOut(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestComposite(t)

	_, err := c.Write(ctx, "/src/main.py", "import needle")
	require.NoError(t, err)
	_, err = c.Write(ctx, "/assets/gen.py", "needle art")
	require.NoError(t, err)

	entries, err := c.Glob(ctx, "**/*.py", "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/assets/gen.py", "/src/main.py"}, entryPaths(entries))

	matches, err := c.Grep(ctx, "needle", "/", "")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "/assets/gen.py", matches[0].Path)
	assert.Equal(t, "/src/main.py", matches[1].Path)

	// A search rooted inside a mount only touches that backend.
	matches, err = c.Grep(ctx, "needle", "/assets", "")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "/assets/gen.py", matches[0].Path)
}

func entryPaths(entries []vfs.ListEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func TestCompositeBatchSplit(t *testing.T) {
	ctx := context.Background()
	c, def, assets := newTestComposite(t)

	results, err := c.Upload(ctx, []vfs.UploadItem{
		{Path: "/assets/a.bin", Data: []byte{1}},
		{Path: "/plain.bin", Data: []byte{2}},
		{Path: "bad/../../x", Data: []byte{3}},
		{Path: "/assets/b.bin", Data: []byte{4}},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	// Results come back in input order despite the per-backend split.
	assert.Equal(t, "/assets/a.bin", results[0].Path)
	assert.Nil(t, results[0].Err)
	assert.Equal(t, "/plain.bin", results[1].Path)
	assert.Nil(t, results[1].Err)
	require.NotNil(t, results[2].Err)
	assert.Equal(t, vfs.KindInvalidPath, results[2].Err.Kind)
	assert.Equal(t, "/assets/b.bin", results[3].Path)
	assert.Nil(t, results[3].Err)

	dl, err := assets.Download(ctx, []string{"/assets/a.bin", "/assets/b.bin"})
	require.NoError(t, err)
	assert.Nil(t, dl[0].Err)
	assert.Nil(t, dl[1].Err)

	dl, err = def.Download(ctx, []string{"/plain.bin"})
	require.NoError(t, err)
	assert.Nil(t, dl[0].Err)

	// Download through the composite reassembles across backends.
	dl, err = c.Download(ctx, []string{"/plain.bin", "/assets/a.bin", "/missing"})
	require.NoError(t, err)
	require.Len(t, dl, 3)
	assert.Equal(t, []byte{2}, dl[0].Data)
	assert.Equal(t, []byte{1}, dl[1].Data)
	require.NotNil(t, dl[2].Err)
	assert.Equal(t, vfs.KindNotFound, dl[2].Err.Kind)
}

// Batch calls take the caller's slices as input only; normalization
// must not leak back into them.
func TestCompositeBatchDoesNotMutateArguments(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestComposite(t)

	items := []vfs.UploadItem{
		{Path: "assets/a.bin", Data: []byte{1}},
		{Path: "//plain.bin", Data: []byte{2}},
	}
	_, err := c.Upload(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, "assets/a.bin", items[0].Path)
	assert.Equal(t, "//plain.bin", items[1].Path)

	paths := []string{"assets/a.bin", "//plain.bin"}
	results, err := c.Download(ctx, paths)
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/a.bin", "//plain.bin"}, paths)

	// The results still carry normalized paths.
	assert.Equal(t, "/assets/a.bin", results[0].Path)
	assert.Equal(t, "/plain.bin", results[1].Path)
}

func TestCompositeLifecycle(t *testing.T) {
	c, _, _ := newTestComposite(t)
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Close())
	assert.Equal(t, "composite", c.Type())
}

func TestCompositeRejectsNilDefault(t *testing.T) {
	_, err := vfs.NewComposite(nil, nil)
	require.Error(t, err)
}
