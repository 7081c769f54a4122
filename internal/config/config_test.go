package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentfs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: console
backends:
  objects:
    type: s3
    s3:
      bucket: agent-files
      endpoint: http://localhost:9000
      accessKey: ak
      secretKey: sk
  rows:
    type: postgres
    postgres:
      host: localhost
      database: agentfs
      user: agent
  scratch:
    type: memory
default: objects
routes:
  /db: rows
  /tmp: scratch
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "objects", cfg.Default)
	assert.Len(t, cfg.Backends, 3)
	assert.Equal(t, "rows", cfg.Routes["/db"])
	assert.Equal(t, "agent-files", cfg.Backends["objects"].S3.Bucket)
	assert.Equal(t, "agentfs", cfg.Backends["rows"].Postgres.Database)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AGENTFS_LOG_LEVEL", "warn")
	t.Setenv("S3_ACCESS_KEY", "env-ak")
	t.Setenv("PGPASSWORD", "env-pw")

	path := writeConfig(t, `
backends:
  objects:
    type: s3
    s3:
      bucket: b
  rows:
    type: postgres
    postgres:
      host: db
      database: agentfs
      user: agent
default: objects
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "env-ak", cfg.Backends["objects"].S3.AccessKey)
	assert.Equal(t, "env-pw", cfg.Backends["rows"].Postgres.Password)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "no backends",
			yaml: "default: x\n",
			want: "no backends",
		},
		{
			name: "missing default",
			yaml: "backends:\n  m:\n    type: memory\n",
			want: "default backend is required",
		},
		{
			name: "undefined default",
			yaml: "backends:\n  m:\n    type: memory\ndefault: other\n",
			want: "not defined",
		},
		{
			name: "route to undefined backend",
			yaml: "backends:\n  m:\n    type: memory\ndefault: m\nroutes:\n  /x: nope\n",
			want: "undefined backend",
		},
		{
			name: "s3 without bucket",
			yaml: "backends:\n  o:\n    type: s3\ndefault: o\n",
			want: "bucket is required",
		},
		{
			name: "unknown type",
			yaml: "backends:\n  o:\n    type: redis\ndefault: o\n",
			want: "unknown type",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestBuildMemoryOnly(t *testing.T) {
	cfg := &Config{
		Backends: map[string]BackendSpec{
			"scratch": {Type: "memory"},
		},
		Default: "scratch",
	}
	require.NoError(t, cfg.Validate())

	b, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "memory", b.Type())
}

func TestBuildComposite(t *testing.T) {
	cfg := &Config{
		Backends: map[string]BackendSpec{
			"main":    {Type: "memory"},
			"scratch": {Type: "memory"},
		},
		Default: "main",
		Routes:  map[string]string{"/tmp": "scratch"},
	}
	require.NoError(t, cfg.Validate())

	b, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "composite", b.Type())
}
