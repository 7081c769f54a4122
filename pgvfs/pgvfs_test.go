package pgvfs

import (
	"context"
	"testing"

	"github.com/clouddrift/agentfs/vfs"
)

func TestConfigDefaults(t *testing.T) {
	b := New(Config{Host: "db", Database: "agentfs", User: "agent"})

	if b.cfg.Table != "agent_files" {
		t.Errorf("table default = %q", b.cfg.Table)
	}
	if b.cfg.Port != 5432 {
		t.Errorf("port default = %d", b.cfg.Port)
	}
	if b.cfg.SSLMode != "disable" {
		t.Errorf("sslmode default = %q", b.cfg.SSLMode)
	}
	if b.cfg.MinPoolSize != 2 || b.cfg.MaxPoolSize != 10 {
		t.Errorf("pool defaults = %d/%d", b.cfg.MinPoolSize, b.cfg.MaxPoolSize)
	}
	if b.cfg.Concurrency != 8 {
		t.Errorf("concurrency default = %d", b.cfg.Concurrency)
	}

	want := "host=db port=5432 dbname=agentfs user=agent password= sslmode=disable"
	if got := b.cfg.dsn(); got != want {
		t.Errorf("dsn = %q, want %q", got, want)
	}
}

func TestEscapeLike(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/src", "/src"},
		{"/100%", `/100\%`},
		{"/under_score", `/under\_score`},
		{`/back\slash`, `/back\\slash`},
	}
	for _, tc := range cases {
		if got := escapeLike(tc.in); got != tc.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLikePrefix(t *testing.T) {
	if got := likePrefix("/"); got != `/%` {
		t.Errorf("root prefix = %q", got)
	}
	if got := likePrefix("/src"); got != `/src/%` {
		t.Errorf("prefix = %q", got)
	}
	// Metacharacters in the root must not widen the predicate.
	if got := likePrefix("/100%"); got != `/100\%/%` {
		t.Errorf("escaped prefix = %q", got)
	}
}

// Every operation before Initialize reports NotInitialized as a result
// condition without touching the database.
func TestOperationsBeforeInitialize(t *testing.T) {
	ctx := context.Background()
	b := New(Config{Host: "nowhere", Database: "x", User: "x"})

	res, err := b.Read(ctx, "/f.txt", vfs.ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Err == nil || res.Err.Kind != vfs.KindNotInitialized {
		t.Errorf("read condition = %v", res.Err)
	}

	wr, err := b.Write(ctx, "/f.txt", "x")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if wr.Err == nil || wr.Err.Kind != vfs.KindNotInitialized {
		t.Errorf("write condition = %v", wr.Err)
	}

	er, err := b.Edit(ctx, "/f.txt", "a", "b", false)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if er.Err == nil || er.Err.Kind != vfs.KindNotInitialized {
		t.Errorf("edit condition = %v", er.Err)
	}

	_, err = b.List(ctx, "/")
	if oe, ok := vfs.AsOpError(err); !ok || oe.Kind != vfs.KindNotInitialized {
		t.Errorf("list should surface NotInitialized, got %v", err)
	}

	dl, err := b.Download(ctx, []string{"/f.txt"})
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if dl[0].Err == nil || dl[0].Err.Kind != vfs.KindNotInitialized {
		t.Errorf("download condition = %v", dl[0].Err)
	}

	// Invalid paths are rejected before the initialization check.
	res, err = b.Read(ctx, "../escape", vfs.ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Err == nil || res.Err.Kind != vfs.KindInvalidPath {
		t.Errorf("invalid path condition = %v", res.Err)
	}
}

func TestCloseBeforeInitialize(t *testing.T) {
	b := New(Config{Host: "nowhere", Database: "x", User: "x"})
	if err := b.Close(); err != nil {
		t.Errorf("close before initialize: %v", err)
	}
}
