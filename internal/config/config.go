// Package config loads the omnistore CLI configuration.
//
// Values are resolved in this order, highest first: explicit overrides
// (command-line flags), OMNISTORE_* environment variables, the standard
// credential variables of each backend, the YAML config file, and defaults.
// A .env file in the working directory is loaded into the environment first.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/qinguoyi/omnistore/objstore/errors"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "OMNISTORE"

// Backends lists the supported backend names.
var Backends = []string{"local", "oss", "s3", "minio", "gcs"}

// Config is the resolved CLI configuration.
type Config struct {
	Backend     string   `mapstructure:"backend"`
	Bucket      string   `mapstructure:"bucket"`
	Endpoint    string   `mapstructure:"endpoint"`
	Region      string   `mapstructure:"region"`
	Concurrency int      `mapstructure:"concurrency"`
	Exclude     []string `mapstructure:"exclude"`

	Log   LogConfig   `mapstructure:"log"`
	Local LocalConfig `mapstructure:"local"`
	OSS   OSSConfig   `mapstructure:"oss"`
	S3    S3Config    `mapstructure:"s3"`
	MinIO MinIOConfig `mapstructure:"minio"`
	GCS   GCSConfig   `mapstructure:"gcs"`
}

// LogConfig selects the CLI log output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LocalConfig configures the local backend.
type LocalConfig struct {
	Root string `mapstructure:"root"`
}

// OSSConfig configures the oss backend.
type OSSConfig struct {
	AccessKeyID      string        `mapstructure:"access_key_id"`
	AccessKeySecret  string        `mapstructure:"access_key_secret"`
	SecurityToken    string        `mapstructure:"security_token"`
	PartSize         int64         `mapstructure:"part_size"`
	ParallelNum      int           `mapstructure:"parallel_num"`
	CheckpointDir    string        `mapstructure:"checkpoint_dir"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	ReadWriteTimeout time.Duration `mapstructure:"read_write_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
}

// S3Config configures the s3 backend.
type S3Config struct {
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	SessionToken    string        `mapstructure:"session_token"`
	ForcePathStyle  bool          `mapstructure:"force_path_style"`
	PartSize        int64         `mapstructure:"part_size"`
	Concurrency     int           `mapstructure:"concurrency"`
	MaxRetries      int           `mapstructure:"max_retries"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// MinIOConfig configures the minio backend.
type MinIOConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	Secure          bool   `mapstructure:"secure"`
	PartSize        uint64 `mapstructure:"part_size"`
}

// GCSConfig configures the gcs backend.
type GCSConfig struct {
	CredentialsFile       string `mapstructure:"credentials_file"`
	WithoutAuthentication bool   `mapstructure:"without_authentication"`
	ChunkSize             int    `mapstructure:"chunk_size"`
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// File is a YAML config file. Empty skips the file.
	File string

	// EnvFile is a dotenv file loaded into the environment. A missing file
	// is ignored. Empty means ".env".
	EnvFile string

	// Overrides are applied above every other source, keyed like the YAML
	// file ("bucket", "s3.force_path_style").
	Overrides map[string]any
}

var defaults = map[string]any{
	"backend":     "local",
	"bucket":      "",
	"endpoint":    "",
	"region":      "",
	"concurrency": 1,
	"exclude":     []string{},

	"log.level":  "info",
	"log.format": "console",

	"local.root": "",

	"oss.access_key_id":      "",
	"oss.access_key_secret":  "",
	"oss.security_token":     "",
	"oss.part_size":          0,
	"oss.parallel_num":       0,
	"oss.checkpoint_dir":     "",
	"oss.connect_timeout":    "0s",
	"oss.read_write_timeout": "0s",
	"oss.max_retries":        0,

	"s3.access_key_id":     "",
	"s3.secret_access_key": "",
	"s3.session_token":     "",
	"s3.force_path_style":  false,
	"s3.part_size":         0,
	"s3.concurrency":       0,
	"s3.max_retries":       0,
	"s3.timeout":           "0s",

	"minio.access_key_id":     "",
	"minio.secret_access_key": "",
	"minio.session_token":     "",
	"minio.secure":            false,
	"minio.part_size":         0,

	"gcs.credentials_file":       "",
	"gcs.without_authentication": false,
	"gcs.chunk_size":             0,
}

// credentialEnv binds the variables each vendor's tooling uses. They rank
// below the OMNISTORE_* names.
var credentialEnv = map[string][]string{
	"oss.access_key_id":       {"OSS_ACCESS_KEY_ID"},
	"oss.access_key_secret":   {"OSS_ACCESS_KEY_SECRET"},
	"oss.security_token":      {"OSS_SESSION_TOKEN"},
	"s3.access_key_id":        {"AWS_ACCESS_KEY_ID"},
	"s3.secret_access_key":    {"AWS_SECRET_ACCESS_KEY"},
	"s3.session_token":        {"AWS_SESSION_TOKEN"},
	"minio.access_key_id":     {"MINIO_ACCESS_KEY", "MINIO_ROOT_USER"},
	"minio.secret_access_key": {"MINIO_SECRET_KEY", "MINIO_ROOT_PASSWORD"},
	"gcs.credentials_file":    {"GOOGLE_APPLICATION_CREDENTIALS"},
}

// Load resolves the configuration from all sources and validates it.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.NewError("loadConfig", errors.ErrInvalidInput).
			WithPath(envFile).
			WithMessage(fmt.Sprintf("failed to load env file: %v", err))
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range credentialEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, errors.NewError("loadConfig", errors.ErrInvalidInput).WithMessage(err.Error())
		}
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewError("loadConfig", errors.ErrInvalidInput).
				WithPath(opts.File).
				WithMessage(fmt.Sprintf("failed to read config file: %v", err))
		}
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewError("loadConfig", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("failed to decode configuration: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that decoding cannot express.
// All problems are reported together.
func (c *Config) Validate() error {
	var problems []string

	if !slices.Contains(Backends, c.Backend) {
		problems = append(problems, fmt.Sprintf(
			"unknown backend %q (available backends: %s)", c.Backend, strings.Join(Backends, ", "),
		))
	}
	if c.Concurrency < 1 {
		problems = append(problems, "concurrency must be at least 1")
	}
	switch c.Backend {
	case "oss", "minio":
		if c.Endpoint == "" {
			problems = append(problems, fmt.Sprintf("endpoint is required for backend %s", c.Backend))
		}
		fallthrough
	case "s3", "gcs":
		if c.Bucket == "" {
			problems = append(problems, fmt.Sprintf("bucket is required for backend %s", c.Backend))
		}
	}
	if !slices.Contains([]string{"console", "json"}, c.Log.Format) {
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	if len(problems) > 0 {
		return errors.NewError("validateConfig", errors.ErrInvalidInput).
			WithMessage("configuration validation failed: " + strings.Join(problems, "; "))
	}
	return nil
}
