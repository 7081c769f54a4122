// Package s3vfs implements the vfs.Backend contract on top of an
// S3-compatible object store (AWS S3, MinIO). Each file is one object
// at key = configured prefix + virtual path, with the serialized
// line-array document as the body.
package s3vfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/clouddrift/agentfs/internal/logging"
	"github.com/clouddrift/agentfs/internal/metrics"
	"github.com/clouddrift/agentfs/vfs"
)

// Config holds S3 connection settings. Endpoint is optional; when set
// (MinIO, localstack) the client uses path-style addressing against it.
type Config struct {
	Bucket      string
	Prefix      string
	Endpoint    string
	Region      string
	AccessKey   string
	SecretKey   string
	UseSSL      bool
	Concurrency int // batch and grep fan-out limit, default 8
}

const defaultConcurrency = 8

// Backend implements vfs.Backend using S3/MinIO.
type Backend struct {
	client      *s3.Client
	bucket      string
	prefix      string
	concurrency int
}

// New creates an S3 backend. Construction only builds the client;
// Initialize verifies the bucket.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3vfs: bucket is required")
	}
	if cfg.Endpoint != "" && !strings.Contains(cfg.Endpoint, "://") {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		cfg.Endpoint = scheme + "://" + cfg.Endpoint
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			},
		)
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.Endpoint != ""
	})

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Backend{
		client:      client,
		bucket:      cfg.Bucket,
		prefix:      cfg.Prefix,
		concurrency: concurrency,
	}, nil
}

// Initialize verifies the bucket exists, creating it when missing.
// Safe to call repeatedly.
func (b *Backend) Initialize(ctx context.Context) error {
	start := time.Now()
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		metrics.RecordS3Operation("head_bucket", time.Since(start), true)
		return nil
	}
	metrics.RecordS3Operation("head_bucket", time.Since(start), false)

	start = time.Now()
	_, createErr := b.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if createErr != nil {
		if isAPIError(createErr, "BucketAlreadyOwnedByYou", "BucketAlreadyExists") {
			metrics.RecordS3Operation("create_bucket", time.Since(start), true)
			return nil
		}
		metrics.RecordS3Operation("create_bucket", time.Since(start), false)
		return fmt.Errorf("bucket %s does not exist and cannot create: %w", b.bucket, createErr)
	}

	metrics.RecordS3Operation("create_bucket", time.Since(start), true)
	logging.Info("created S3 bucket", zap.String("bucket", b.bucket))
	return nil
}

// Close is a no-op; the S3 client holds no pooled resources of its own.
func (b *Backend) Close() error { return nil }

// Type returns "s3".
func (b *Backend) Type() string { return "s3" }

func (b *Backend) key(path string) string {
	return vfs.JoinKey(b.prefix, path)
}

// getDocument fetches and decodes the document at path. A missing
// object is the expected NotFound condition, anything else is an
// infrastructure fault.
func (b *Backend) getDocument(ctx context.Context, path string) (vfs.Document, *vfs.OpError, error) {
	start := time.Now()
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		metrics.RecordS3Operation("get_object", time.Since(start), false)
		if isAPIError(err, "NoSuchKey", "NotFound") {
			return vfs.Document{}, vfs.ErrNotFound(path), nil
		}
		return vfs.Document{}, nil, fmt.Errorf("get object %s: %w", b.key(path), err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		metrics.RecordS3Operation("get_object", time.Since(start), false)
		return vfs.Document{}, nil, fmt.Errorf("read object %s: %w", b.key(path), err)
	}
	metrics.RecordS3Operation("get_object", time.Since(start), true)

	doc, err := vfs.DecodeDocument(payload)
	if err != nil {
		return vfs.Document{}, nil, fmt.Errorf("object %s: %w", b.key(path), err)
	}
	return doc, nil, nil
}

// putDocument stores a document, optionally guarding against an
// existing object with a conditional put. The 412 response from the
// store is what makes create-if-absent atomic; the head probe callers
// do first is only a fast path.
func (b *Backend) putDocument(ctx context.Context, path string, doc vfs.Document, ifAbsent bool) (*vfs.OpError, error) {
	payload, err := doc.Marshal()
	if err != nil {
		return nil, err
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.key(path)),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
		ContentType:   aws.String("application/json"),
	}
	if ifAbsent {
		input.IfNoneMatch = aws.String("*")
	}

	start := time.Now()
	_, err = b.client.PutObject(ctx, input)
	if err != nil {
		metrics.RecordS3Operation("put_object", time.Since(start), false)
		if ifAbsent && isAPIError(err, "PreconditionFailed") {
			return vfs.ErrAlreadyExists(path), nil
		}
		return nil, fmt.Errorf("put object %s: %w", b.key(path), err)
	}

	metrics.RecordS3Operation("put_object", time.Since(start), true)
	metrics.RecordBytesUploaded(doc.ByteLen())
	logging.Debug("s3 put object", zap.String("key", b.key(path)), zap.Int("payload_bytes", len(payload)))
	return nil, nil
}

// exists probes the object with a metadata request. Errors are treated
// as absence; the conditional put is the authoritative guard.
func (b *Backend) exists(ctx context.Context, path string) bool {
	start := time.Now()
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	metrics.RecordS3Operation("head_object", time.Since(start), err == nil)
	return err == nil
}

// isAPIError reports whether err is an S3 API error with one of the
// given codes.
func isAPIError(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}

func (b *Backend) Read(ctx context.Context, path string, opt vfs.ReadOptions) (vfs.ReadResult, error) {
	start := time.Now()
	p, oe := vfs.NormalizePath(path)
	if oe != nil {
		return vfs.ReadResult{Path: path, Err: oe}, nil
	}

	doc, oe, err := b.getDocument(ctx, p)
	metrics.RecordOp("s3", "read", time.Since(start), err == nil && oe == nil)
	if err != nil {
		return vfs.ReadResult{}, err
	}
	if oe != nil {
		return vfs.ReadResult{Path: p, Err: oe}, nil
	}
	return vfs.ReadResult{Path: p, Content: doc.RenderNumbered(opt.Offset, opt.Limit)}, nil
}

func (b *Backend) Write(ctx context.Context, path, content string) (vfs.WriteResult, error) {
	start := time.Now()
	res, err := b.create(ctx, path, vfs.EncodeText(content))
	metrics.RecordOp("s3", "write", time.Since(start), err == nil && res.Err == nil)
	return res, err
}

// create runs the shared create-if-absent sequence used by Write and
// Upload.
func (b *Backend) create(ctx context.Context, path string, doc vfs.Document) (vfs.WriteResult, error) {
	p, oe := vfs.NormalizePath(path)
	if oe != nil {
		return vfs.WriteResult{Path: path, Err: oe}, nil
	}
	if b.exists(ctx, p) {
		return vfs.WriteResult{Path: p, Err: vfs.ErrAlreadyExists(p)}, nil
	}

	oe, err := b.putDocument(ctx, p, doc, true)
	if err != nil {
		return vfs.WriteResult{}, err
	}
	if oe != nil {
		return vfs.WriteResult{Path: p, Err: oe}, nil
	}
	return vfs.WriteResult{Path: p, BytesWritten: doc.ByteLen()}, nil
}

func (b *Backend) Edit(ctx context.Context, path, oldText, newText string, replaceAll bool) (vfs.EditResult, error) {
	start := time.Now()
	p, oe := vfs.NormalizePath(path)
	if oe != nil {
		return vfs.EditResult{Path: path, Err: oe}, nil
	}

	doc, oe, err := b.getDocument(ctx, p)
	if err != nil {
		metrics.RecordOp("s3", "edit", time.Since(start), false)
		return vfs.EditResult{}, err
	}
	if oe != nil {
		metrics.RecordOp("s3", "edit", time.Since(start), false)
		return vfs.EditResult{Path: p, Err: oe}, nil
	}

	updated, count, editErr := doc.ReplaceText(p, oldText, newText, replaceAll)
	if editErr != nil {
		metrics.RecordOp("s3", "edit", time.Since(start), false)
		return vfs.EditResult{Path: p, Err: editErr}, nil
	}

	// Unconditional put: the record exists and edit owns the path.
	if _, err := b.putDocument(ctx, p, updated, false); err != nil {
		metrics.RecordOp("s3", "edit", time.Since(start), false)
		return vfs.EditResult{}, err
	}

	metrics.RecordOp("s3", "edit", time.Since(start), true)
	logging.Debug("s3 edit", zap.String("path", p), zap.Int("occurrences", count))
	return vfs.EditResult{Path: p, Occurrences: count}, nil
}
