// Package pgvfs implements the vfs.Backend contract on top of a single
// PostgreSQL table. Each file is one row keyed by its virtual path; a
// unique constraint on the path column is the authoritative guard for
// create-if-absent semantics.
package pgvfs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/clouddrift/agentfs/internal/logging"
	"github.com/clouddrift/agentfs/internal/metrics"
	"github.com/clouddrift/agentfs/vfs"
)

// Config holds PostgreSQL connection settings. Table names the file
// table; the schema is created by Initialize.
type Config struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	SSLMode     string // default "disable"
	Table       string // default "agent_files"
	MinPoolSize int    // kept as idle connections, default 2
	MaxPoolSize int    // pool upper bound, default 10
	Concurrency int    // batch fan-out limit, default 8
}

const (
	defaultTable       = "agent_files"
	defaultMinPool     = 2
	defaultMaxPool     = 10
	defaultConcurrency = 8

	// uniqueViolation is the Postgres error code raised when an insert
	// hits the path primary key.
	uniqueViolation = "23505"
)

// Backend implements vfs.Backend using PostgreSQL. Construction holds
// configuration only; Initialize opens the pool and creates the schema.
type Backend struct {
	cfg Config

	mu          sync.RWMutex
	db          *sql.DB
	initialized bool
}

// New creates a Postgres backend from config. No connection is made
// until Initialize.
func New(cfg Config) *Backend {
	if cfg.Table == "" {
		cfg.Table = defaultTable
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.MinPoolSize <= 0 {
		cfg.MinPoolSize = defaultMinPool
	}
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = defaultMaxPool
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Backend{cfg: cfg}
}

func (c Config) dsn() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode)
}

// table returns the quoted table identifier for query interpolation.
// Table names cannot be bound as parameters.
func (b *Backend) table() string {
	return pq.QuoteIdentifier(b.cfg.Table)
}

// Initialize opens the connection pool, verifies connectivity and
// creates the file table and its indexes. Repeated calls are no-ops.
// On partial failure the pool is released before returning.
func (b *Backend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}

	db, err := sql.Open("postgres", b.cfg.dsn())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(b.cfg.MaxPoolSize)
	db.SetMaxIdleConns(b.cfg.MinPoolSize)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	start := time.Now()
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			path     TEXT PRIMARY KEY,
			content  JSONB NOT NULL,
			size     BIGINT NOT NULL,
			modified TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, b.table())
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		metrics.RecordDBQuery("create_table", time.Since(start))
		return fmt.Errorf("create table %s: %w", b.cfg.Table, err)
	}

	// text_pattern_ops makes the LIKE prefix predicates used by list,
	// glob and grep indexable regardless of collation.
	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON %s (path text_pattern_ops)`,
		pq.QuoteIdentifier(b.cfg.Table+"_path_prefix_idx"), b.table())
	if _, err := db.ExecContext(ctx, index); err != nil {
		db.Close()
		metrics.RecordDBQuery("create_index", time.Since(start))
		return fmt.Errorf("create index on %s: %w", b.cfg.Table, err)
	}
	metrics.RecordDBQuery("create_schema", time.Since(start))

	b.db = db
	b.initialized = true
	metrics.SetDBConnectionsOpen(db.Stats().OpenConnections)
	logging.Info("postgres backend initialized",
		zap.String("table", b.cfg.Table),
		zap.Int("min_pool", b.cfg.MinPoolSize),
		zap.Int("max_pool", b.cfg.MaxPoolSize))
	return nil
}

// Close releases the connection pool. Safe to call before Initialize
// or after a failed one.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		b.initialized = false
		return nil
	}
	err := b.db.Close()
	b.db = nil
	b.initialized = false
	metrics.SetDBConnectionsOpen(0)
	return err
}

// Type returns "postgres".
func (b *Backend) Type() string { return "postgres" }

// handle returns the pool, or the NotInitialized condition when
// Initialize has not completed.
func (b *Backend) handle() (*sql.DB, *vfs.OpError) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized || b.db == nil {
		return nil, vfs.ErrNotInitialized("postgres")
	}
	return b.db, nil
}

func (b *Backend) Read(ctx context.Context, path string, opt vfs.ReadOptions) (vfs.ReadResult, error) {
	start := time.Now()
	p, oe := vfs.NormalizePath(path)
	if oe != nil {
		return vfs.ReadResult{Path: path, Err: oe}, nil
	}
	db, oe := b.handle()
	if oe != nil {
		return vfs.ReadResult{Path: p, Err: oe}, nil
	}

	var payload []byte
	err := db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT content FROM %s WHERE path = $1`, b.table()), p).
		Scan(&payload)
	metrics.RecordDBQuery("read", time.Since(start))
	if errors.Is(err, sql.ErrNoRows) {
		return vfs.ReadResult{Path: p, Err: vfs.ErrNotFound(p)}, nil
	}
	if err != nil {
		return vfs.ReadResult{}, fmt.Errorf("select %s: %w", p, err)
	}

	doc, err := vfs.DecodeDocument(payload)
	if err != nil {
		return vfs.ReadResult{}, fmt.Errorf("row %s: %w", p, err)
	}
	return vfs.ReadResult{Path: p, Content: doc.RenderNumbered(opt.Offset, opt.Limit)}, nil
}

func (b *Backend) Write(ctx context.Context, path, content string) (vfs.WriteResult, error) {
	return b.create(ctx, path, vfs.EncodeText(content))
}

// create inserts a new row. The path primary key arbitrates concurrent
// writers: zero affected rows means the path was taken, no prior probe
// needed.
func (b *Backend) create(ctx context.Context, path string, doc vfs.Document) (vfs.WriteResult, error) {
	start := time.Now()
	p, oe := vfs.NormalizePath(path)
	if oe != nil {
		return vfs.WriteResult{Path: path, Err: oe}, nil
	}
	db, oe := b.handle()
	if oe != nil {
		return vfs.WriteResult{Path: p, Err: oe}, nil
	}

	payload, err := doc.Marshal()
	if err != nil {
		return vfs.WriteResult{}, err
	}

	res, err := db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (path, content, size, modified)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (path) DO NOTHING`, b.table()),
		p, payload, doc.ByteLen())
	metrics.RecordDBQuery("write", time.Since(start))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return vfs.WriteResult{Path: p, Err: vfs.ErrAlreadyExists(p)}, nil
		}
		return vfs.WriteResult{}, fmt.Errorf("insert %s: %w", p, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return vfs.WriteResult{}, fmt.Errorf("insert %s: %w", p, err)
	}
	if affected == 0 {
		return vfs.WriteResult{Path: p, Err: vfs.ErrAlreadyExists(p)}, nil
	}

	metrics.RecordBytesUploaded(doc.ByteLen())
	logging.Debug("pg insert", zap.String("path", p), zap.Int64("size", doc.ByteLen()))
	return vfs.WriteResult{Path: p, BytesWritten: doc.ByteLen()}, nil
}

// Edit rewrites the row inside a transaction, locking it with
// SELECT ... FOR UPDATE so concurrent edits serialize on the store.
func (b *Backend) Edit(ctx context.Context, path, oldText, newText string, replaceAll bool) (vfs.EditResult, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("edit", time.Since(start)) }()

	p, oe := vfs.NormalizePath(path)
	if oe != nil {
		return vfs.EditResult{Path: path, Err: oe}, nil
	}
	db, oe := b.handle()
	if oe != nil {
		return vfs.EditResult{Path: p, Err: oe}, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return vfs.EditResult{}, fmt.Errorf("begin edit tx: %w", err)
	}
	defer tx.Rollback()

	var payload []byte
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT content FROM %s WHERE path = $1 FOR UPDATE`, b.table()), p).
		Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return vfs.EditResult{Path: p, Err: vfs.ErrNotFound(p)}, nil
	}
	if err != nil {
		return vfs.EditResult{}, fmt.Errorf("select for update %s: %w", p, err)
	}

	doc, err := vfs.DecodeDocument(payload)
	if err != nil {
		return vfs.EditResult{}, fmt.Errorf("row %s: %w", p, err)
	}

	updated, count, editErr := doc.ReplaceText(p, oldText, newText, replaceAll)
	if editErr != nil {
		return vfs.EditResult{Path: p, Err: editErr}, nil
	}

	newPayload, err := updated.Marshal()
	if err != nil {
		return vfs.EditResult{}, err
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET content = $2, size = $3, modified = now() WHERE path = $1`, b.table()),
		p, newPayload, updated.ByteLen()); err != nil {
		return vfs.EditResult{}, fmt.Errorf("update %s: %w", p, err)
	}
	if err := tx.Commit(); err != nil {
		return vfs.EditResult{}, fmt.Errorf("commit edit %s: %w", p, err)
	}

	logging.Debug("pg edit", zap.String("path", p), zap.Int("occurrences", count))
	return vfs.EditResult{Path: p, Occurrences: count}, nil
}
