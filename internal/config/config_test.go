package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qinguoyi/omnistore/objstore/errors"
)

// isolate clears variables Load reads so the host environment cannot leak in.
func isolate(t *testing.T) string {
	t.Helper()
	for _, names := range credentialEnv {
		for _, name := range names {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	for _, key := range []string{"BACKEND", "BUCKET", "ENDPOINT", "REGION", "CONCURRENCY", "LOG_LEVEL"} {
		t.Setenv(EnvPrefix+"_"+key, "")
		os.Unsetenv(EnvPrefix + "_" + key)
	}
	dir := t.TempDir()
	return filepath.Join(dir, "missing.env")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	envFile := isolate(t)

	cfg, err := Load(LoadOptions{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Backend)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Empty(t, cfg.Exclude)
}

func TestLoad_Precedence(t *testing.T) {
	envFile := isolate(t)
	file := writeFile(t, "omnistore.yaml", `
backend: s3
bucket: from-file
region: eu-west-1
concurrency: 4
exclude: [".git/", "*.tmp"]
s3:
  force_path_style: true
  timeout: 30s
  access_key_id: file-key
`)

	t.Setenv("OMNISTORE_BUCKET", "from-env")
	t.Setenv("AWS_ACCESS_KEY_ID", "aws-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "aws-secret")

	cfg, err := Load(LoadOptions{
		File:      file,
		EnvFile:   envFile,
		Overrides: map[string]any{"region": "us-west-2"},
	})
	require.NoError(t, err)

	assert.Equal(t, "s3", cfg.Backend)
	assert.Equal(t, "from-env", cfg.Bucket)
	assert.Equal(t, "us-west-2", cfg.Region)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, []string{".git/", "*.tmp"}, cfg.Exclude)
	assert.True(t, cfg.S3.ForcePathStyle)
	assert.Equal(t, 30*time.Second, cfg.S3.Timeout)
	assert.Equal(t, "aws-key", cfg.S3.AccessKeyID)
	assert.Equal(t, "aws-secret", cfg.S3.SecretAccessKey)
}

func TestLoad_PrefixedEnvBeatsVendorEnv(t *testing.T) {
	envFile := isolate(t)
	t.Setenv("OSS_ACCESS_KEY_ID", "vendor")
	t.Setenv("OMNISTORE_OSS_ACCESS_KEY_ID", "prefixed")

	cfg, err := Load(LoadOptions{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.OSS.AccessKeyID)
}

func TestLoad_EnvFile(t *testing.T) {
	isolate(t)
	envFile := writeFile(t, "test.env", "OMNISTORE_BACKEND=minio\nOMNISTORE_BUCKET=dotenv\nOMNISTORE_ENDPOINT=localhost:9000\nMINIO_ACCESS_KEY=mk\n")
	t.Cleanup(func() {
		for _, name := range []string{"OMNISTORE_BACKEND", "OMNISTORE_BUCKET", "OMNISTORE_ENDPOINT", "MINIO_ACCESS_KEY"} {
			os.Unsetenv(name)
		}
	})

	cfg, err := Load(LoadOptions{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "minio", cfg.Backend)
	assert.Equal(t, "dotenv", cfg.Bucket)
	assert.Equal(t, "mk", cfg.MinIO.AccessKeyID)
}

func TestLoad_Errors(t *testing.T) {
	envFile := isolate(t)

	tests := []struct {
		name string
		opts LoadOptions
		msg  string
	}{
		{
			name: "missing file",
			opts: LoadOptions{File: filepath.Join(t.TempDir(), "none.yaml")},
			msg:  "failed to read config file",
		},
		{
			name: "unknown backend",
			opts: LoadOptions{Overrides: map[string]any{"backend": "ftp"}},
			msg:  `unknown backend "ftp"`,
		},
		{
			name: "oss needs endpoint and bucket",
			opts: LoadOptions{Overrides: map[string]any{"backend": "oss"}},
			msg:  "endpoint is required for backend oss; bucket is required for backend oss",
		},
		{
			name: "bad concurrency",
			opts: LoadOptions{Overrides: map[string]any{"concurrency": 0}},
			msg:  "concurrency must be at least 1",
		},
		{
			name: "bad log format",
			opts: LoadOptions{Overrides: map[string]any{"log.format": "xml"}},
			msg:  `unknown log format "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.EnvFile = envFile
			_, err := Load(tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestConfig_Open(t *testing.T) {
	ctx := context.Background()

	root := t.TempDir()
	cfg := &Config{Backend: "local", Bucket: "data", Concurrency: 2, Local: LocalConfig{Root: root}}
	store, err := cfg.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, "local", store.Backend())
	assert.Equal(t, "data", store.Bucket())

	require.NoError(t, store.CreateDir(ctx, "made"))
	assert.DirExists(t, filepath.Join(root, "made"))

	cfg = &Config{Backend: "oss", Bucket: "my-bucket", Endpoint: "https://oss-cn-hangzhou.aliyuncs.com", Concurrency: 1}
	_, err = cfg.Open(ctx)
	assert.ErrorIs(t, err, errors.ErrAuthentication)

	cfg.OSS = OSSConfig{AccessKeyID: "id", AccessKeySecret: "secret"}
	store, err = cfg.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, "oss", store.Backend())

	_, err = (&Config{Backend: "ftp"}).Open(ctx)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
