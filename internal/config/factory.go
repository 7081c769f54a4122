package config

import (
	"context"
	"fmt"

	"github.com/clouddrift/agentfs/memvfs"
	"github.com/clouddrift/agentfs/pgvfs"
	"github.com/clouddrift/agentfs/s3vfs"
	"github.com/clouddrift/agentfs/vfs"
)

// NewBackend constructs one backend instance from its spec.
func NewBackend(ctx context.Context, spec BackendSpec) (vfs.Backend, error) {
	switch spec.Type {
	case "s3":
		return s3vfs.New(ctx, s3vfs.Config{
			Bucket:      spec.S3.Bucket,
			Prefix:      spec.S3.Prefix,
			Endpoint:    spec.S3.Endpoint,
			Region:      spec.S3.Region,
			AccessKey:   spec.S3.AccessKey,
			SecretKey:   spec.S3.SecretKey,
			UseSSL:      spec.S3.UseSSL,
			Concurrency: spec.S3.Concurrency,
		})
	case "postgres":
		return pgvfs.New(pgvfs.Config{
			Host:        spec.Postgres.Host,
			Port:        spec.Postgres.Port,
			Database:    spec.Postgres.Database,
			User:        spec.Postgres.User,
			Password:    spec.Postgres.Password,
			SSLMode:     spec.Postgres.SSLMode,
			Table:       spec.Postgres.Table,
			MinPoolSize: spec.Postgres.MinPoolSize,
			MaxPoolSize: spec.Postgres.MaxPoolSize,
			Concurrency: spec.Postgres.Concurrency,
		}), nil
	case "memory":
		return memvfs.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend type: %s", spec.Type)
	}
}

// Build assembles the configured backend graph: every named backend is
// constructed once, then wired into a composite according to the route
// table. When no routes are defined the default backend is returned
// directly.
func Build(ctx context.Context, cfg *Config) (vfs.Backend, error) {
	instances := make(map[string]vfs.Backend, len(cfg.Backends))
	for name, spec := range cfg.Backends {
		b, err := NewBackend(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", name, err)
		}
		instances[name] = b
	}

	def := instances[cfg.Default]
	if len(cfg.Routes) == 0 {
		return def, nil
	}

	routes := make(map[string]vfs.Backend, len(cfg.Routes))
	for prefix, name := range cfg.Routes {
		routes[prefix] = instances[name]
	}
	return vfs.NewComposite(def, routes)
}
