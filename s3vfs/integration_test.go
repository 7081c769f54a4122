package s3vfs

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/clouddrift/agentfs/vfs"
)

// newIntegrationBackend connects to the S3-compatible store named by
// AGENTFS_TEST_S3_ENDPOINT (e.g. a local MinIO at
// http://localhost:9000) and skips the test when it is unset.
func newIntegrationBackend(t *testing.T) *Backend {
	t.Helper()
	endpoint := os.Getenv("AGENTFS_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("AGENTFS_TEST_S3_ENDPOINT not set; skipping S3 integration test")
	}

	cfg := Config{
		Bucket:    fmt.Sprintf("agentfs-test-%d", time.Now().UnixNano()),
		Prefix:    "it",
		Endpoint:  endpoint,
		Region:    envOr("AGENTFS_TEST_S3_REGION", "us-east-1"),
		AccessKey: envOr("AGENTFS_TEST_S3_ACCESS_KEY", "minioadmin"),
		SecretKey: envOr("AGENTFS_TEST_S3_SECRET_KEY", "minioadmin"),
	}

	ctx := context.Background()
	b, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	if err := b.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return b
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestIntegrationLifecycle(t *testing.T) {
	b := newIntegrationBackend(t)
	ctx := context.Background()

	wr, err := b.Write(ctx, "/src/main.py", "print('hi')\nprint('bye')")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if wr.Err != nil {
		t.Fatalf("write condition: %v", wr.Err)
	}

	// Duplicate create is rejected at the store.
	wr, err = b.Write(ctx, "/src/main.py", "other")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if wr.Err == nil || wr.Err.Kind != vfs.KindAlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", wr.Err)
	}

	res, err := b.Read(ctx, "/src/main.py", vfs.ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if want := "1\tprint('hi')\n2\tprint('bye')"; res.Content != want {
		t.Errorf("read = %q, want %q", res.Content, want)
	}

	er, err := b.Edit(ctx, "/src/main.py", "bye", "later", false)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if er.Err != nil || er.Occurrences != 1 {
		t.Fatalf("edit: occurrences=%d err=%v", er.Occurrences, er.Err)
	}

	entries, err := b.List(ctx, "/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "/src/" || !entries[0].IsDir {
		t.Errorf("list / = %+v", entries)
	}

	entries, err = b.Glob(ctx, "**/*.py", "/")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "/src/main.py" {
		t.Errorf("glob = %+v", entries)
	}

	matches, err := b.Grep(ctx, "later", "/", "")
	if err != nil {
		t.Fatalf("grep: %v", err)
	}
	if len(matches) != 1 || matches[0].Line != 2 {
		t.Errorf("grep = %+v", matches)
	}
}

func TestIntegrationBatch(t *testing.T) {
	b := newIntegrationBackend(t)
	ctx := context.Background()

	blob := []byte{0x00, 0x01, 0xff, 0xfe}
	results, err := b.Upload(ctx, []vfs.UploadItem{
		{Path: "/bin/data", Data: blob},
		{Path: "/docs/readme.txt", Data: []byte("plain text")},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("upload %s: %v", r.Path, r.Err)
		}
	}

	dl, err := b.Download(ctx, []string{"/bin/data", "/docs/readme.txt", "/missing"})
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(dl[0].Data) != string(blob) {
		t.Errorf("binary round trip mismatch: %v", dl[0].Data)
	}
	if string(dl[1].Data) != "plain text" {
		t.Errorf("text round trip = %q", dl[1].Data)
	}
	if dl[2].Err == nil || dl[2].Err.Kind != vfs.KindNotFound {
		t.Errorf("missing download = %+v", dl[2])
	}
}
