// Package config loads vecflat CLI settings from flags, VECFLAT_* environment
// variables and an optional vecflat.yaml.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hupe1980/vecflat"
	"github.com/hupe1980/vecflat/blobstore"
	"github.com/hupe1980/vecflat/blobstore/bolt"
	"github.com/hupe1980/vecflat/blobstore/minio"
	"github.com/hupe1980/vecflat/blobstore/s3"
	"github.com/hupe1980/vecflat/blobstore/sqlite"
	"github.com/hupe1980/vecflat/persistence"
	"github.com/hupe1980/vecflat/resource"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables, e.g. VECFLAT_COMPRESSION
// or VECFLAT_STORE_BUCKET.
const EnvPrefix = "VECFLAT"

// Config holds the CLI settings.
type Config struct {
	LogLevel    string `mapstructure:"log_level"`
	Compression string `mapstructure:"compression"`
	Mmap        bool   `mapstructure:"mmap"`
	MaxVectors  uint64 `mapstructure:"max_vectors"`
	MemoryLimit int64  `mapstructure:"memory_limit"`
	IOLimit     int64  `mapstructure:"io_limit"`
	Parallelism int    `mapstructure:"parallelism"`

	Store StoreConfig `mapstructure:"store"`
}

// StoreConfig selects the blob store used by push and pull.
type StoreConfig struct {
	// Kind is one of local, s3, minio, bolt or sqlite.
	Kind string `mapstructure:"kind"`
	// Path is the directory (local) or database file (bolt, sqlite).
	Path      string `mapstructure:"path"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Secure    bool   `mapstructure:"secure"`
}

// SetDefaults registers every key so environment variables are seen by
// Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("compression", "none")
	v.SetDefault("mmap", false)
	v.SetDefault("max_vectors", 0)
	v.SetDefault("memory_limit", 0)
	v.SetDefault("io_limit", 0)
	v.SetDefault("parallelism", 0)

	v.SetDefault("store.kind", "local")
	v.SetDefault("store.path", ".")
	v.SetDefault("store.bucket", "")
	v.SetDefault("store.prefix", "")
	v.SetDefault("store.region", "")
	v.SetDefault("store.endpoint", "")
	v.SetDefault("store.access_key", "")
	v.SetDefault("store.secret_key", "")
	v.SetDefault("store.secure", true)
}

// Load reads configuration into v and decodes it. An explicit file must
// exist; without one, ./vecflat.yaml is used when present.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("vecflat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that flags and environment cannot type-check.
func (c *Config) Validate() error {
	if _, err := persistence.ParseCompression(c.Compression); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.MemoryLimit < 0 || c.IOLimit < 0 {
		return errors.New("config: limits must not be negative")
	}
	switch c.Store.Kind {
	case "local", "bolt", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("config: store %s needs a path", c.Store.Kind)
		}
	case "s3", "minio":
		if c.Store.Bucket == "" {
			return fmt.Errorf("config: store %s needs a bucket", c.Store.Kind)
		}
		if c.Store.Kind == "minio" && c.Store.Endpoint == "" {
			return errors.New("config: store minio needs an endpoint")
		}
	default:
		return fmt.Errorf("config: unknown store kind %q", c.Store.Kind)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return level, nil
}

// IndexOptions translates the settings into index options.
func (c *Config) IndexOptions() []vecflat.Option {
	compression, _ := persistence.ParseCompression(c.Compression)
	level, _ := c.Level()

	opts := []vecflat.Option{
		vecflat.WithLogLevel(level),
		vecflat.WithCompression(compression),
		vecflat.WithMmap(c.Mmap),
		vecflat.WithMaxVectors(c.MaxVectors),
		vecflat.WithSearchParallelism(c.Parallelism),
	}
	if c.MemoryLimit > 0 || c.IOLimit > 0 {
		opts = append(opts, vecflat.WithResourceController(resource.NewController(resource.Config{
			MemoryLimitBytes:   c.MemoryLimit,
			IOLimitBytesPerSec: c.IOLimit,
		})))
	}
	return opts
}

// OpenStore opens the configured blob store. The returned closer releases
// database handles and is never nil.
func (c *Config) OpenStore(ctx context.Context) (blobstore.Store, io.Closer, error) {
	sc := c.Store
	switch sc.Kind {
	case "local":
		return blobstore.NewLocalStore(sc.Path), nopCloser{}, nil
	case "bolt":
		s, err := bolt.Open(sc.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, sc.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "s3":
		opts := []s3.Option{s3.WithPrefix(sc.Prefix)}
		if sc.Region != "" {
			opts = append(opts, s3.WithRegion(sc.Region))
		}
		if sc.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(sc.Endpoint))
		}
		s, err := s3.New(ctx, sc.Bucket, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case "minio":
		s, err := minio.Dial(minio.Config{
			Endpoint:  sc.Endpoint,
			AccessKey: sc.AccessKey,
			SecretKey: sc.SecretKey,
			Secure:    sc.Secure,
			Region:    sc.Region,
			Bucket:    sc.Bucket,
			Prefix:    sc.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("config: unknown store kind %q", sc.Kind)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
