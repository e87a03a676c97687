package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/ChillFish8/lust/internal/domain"
)

// Mode selects when a bucket's variants are computed.
type Mode string

const (
	// ModeAOT computes and persists every enabled variant at upload time.
	ModeAOT Mode = "aot"

	// ModeJIT persists the base format at upload and transcodes other
	// formats on first fetch.
	ModeJIT Mode = "jit"

	// ModeRealtime persists only the original and computes everything
	// else per request, caching but never persisting the results.
	ModeRealtime Mode = "realtime"
)

// ServerConfig carries the process-level settings, overridable from the
// environment.
type ServerConfig struct {
	Port            int           `envconfig:"SERVER_PORT" default:"8000"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
	Environment     string        `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
}

// CacheConfig sizes a cache; exactly one limit must be set.
type CacheConfig struct {
	MaxImages     int `mapstructure:"max_images"`
	MaxCapacityMB int `mapstructure:"max_capacity"`
}

// WebPConfig tunes the webp encoder for a bucket. A null quality selects
// lossless encoding.
type WebPConfig struct {
	Quality     *float32 `mapstructure:"quality"`
	Method      uint8    `mapstructure:"method"`
	Threading   bool     `mapstructure:"threading"`
	Compression *float32 `mapstructure:"compression"`
}

// FormatsConfig declares which output encodings a bucket serves.
type FormatsConfig struct {
	PNG  bool `mapstructure:"png"`
	JPEG bool `mapstructure:"jpeg"`
	WebP bool `mapstructure:"webp"`
	GIF  bool `mapstructure:"gif"`

	// OriginalImageStoreFormat is the single format the base image is
	// persisted in for JIT and Realtime buckets.
	OriginalImageStoreFormat string `mapstructure:"original_image_store_format"`

	WebPConfig WebPConfig `mapstructure:"webp_config"`

	// JPEGQuality applies to every jpeg encode in the bucket.
	JPEGQuality int `mapstructure:"jpeg_quality"`
}

// Enabled lists the bucket's enabled formats.
func (f FormatsConfig) Enabled() []domain.Format {
	var enabled []domain.Format
	if f.PNG {
		enabled = append(enabled, domain.FormatPNG)
	}
	if f.JPEG {
		enabled = append(enabled, domain.FormatJPEG)
	}
	if f.GIF {
		enabled = append(enabled, domain.FormatGIF)
	}
	if f.WebP {
		enabled = append(enabled, domain.FormatWebP)
	}
	return enabled
}

// IsEnabled reports whether the bucket serves the format.
func (f FormatsConfig) IsEnabled(format domain.Format) bool {
	switch format {
	case domain.FormatPNG:
		return f.PNG
	case domain.FormatJPEG:
		return f.JPEG
	case domain.FormatGIF:
		return f.GIF
	case domain.FormatWebP:
		return f.WebP
	default:
		return false
	}
}

// PresetConfig is one named resize target.
type PresetConfig struct {
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	Filter string `mapstructure:"filter"`
}

// BucketConfig is the full policy of one bucket.
type BucketConfig struct {
	Mode                 Mode                    `mapstructure:"mode"`
	Formats              FormatsConfig           `mapstructure:"formats"`
	DefaultServingFormat string                  `mapstructure:"default_serving_format"`
	DefaultServingPreset string                  `mapstructure:"default_serving_preset"`
	Presets              map[string]PresetConfig `mapstructure:"presets"`
	Cache                *CacheConfig            `mapstructure:"cache"`
	MaxUploadSizeKB      int                     `mapstructure:"max_upload_size"`
	MaxConcurrency       int                     `mapstructure:"max_concurrency"`

	// MaxCustomDimension caps ad-hoc width/height requests in realtime
	// buckets.
	MaxCustomDimension int `mapstructure:"max_custom_dimension"`
}

// BackendConfig selects and configures exactly one storage driver.
type BackendConfig struct {
	Memory      *struct{}                 `mapstructure:"memory"`
	Filesystem  *FilesystemBackendConfig  `mapstructure:"filesystem"`
	BlobStorage *BlobStorageBackendConfig `mapstructure:"blobstorage"`
	Scylla      *ScyllaBackendConfig      `mapstructure:"scylla"`
	Redis       *RedisBackendConfig       `mapstructure:"redis"`
	Postgres    *PostgresBackendConfig    `mapstructure:"postgres"`
}

type FilesystemBackendConfig struct {
	Directory string `mapstructure:"directory"`
}

type BlobStorageBackendConfig struct {
	Name            string `mapstructure:"name"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	StorePublic     bool   `mapstructure:"store_public"`
}

type ScyllaBackendConfig struct {
	Nodes             []string `mapstructure:"nodes"`
	Keyspace          string   `mapstructure:"keyspace"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
}

type RedisBackendConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PostgresBackendConfig struct {
	DSN string `mapstructure:"dsn"`
}

// Config is the whole runtime configuration.
type Config struct {
	Server ServerConfig `mapstructure:"-"`

	BaseServingPath string                  `mapstructure:"base_serving_path"`
	GlobalCache     *CacheConfig            `mapstructure:"global_cache"`
	MaxUploadSizeKB int                     `mapstructure:"max_upload_size"`
	MaxConcurrency  int                     `mapstructure:"max_concurrency"`
	MaxImagePixels  int                     `mapstructure:"max_image_pixels"`
	Backend         BackendConfig           `mapstructure:"backend"`
	Buckets         map[string]BucketConfig `mapstructure:"buckets"`
}

// Load reads the config file (YAML or JSON), applies environment
// overrides for the server settings, fills defaults and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	// An empty `memory: {}` block has no leaf keys, so Unmarshal leaves the
	// pointer nil; the key's presence still selects the memory driver.
	if cfg.Backend.Memory == nil && v.IsSet("backend.memory") {
		cfg.Backend.Memory = &struct{}{}
	}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("loading server config from env: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BaseServingPath == "" {
		c.BaseServingPath = "/images"
	}

	for slug, bucket := range c.Buckets {
		if bucket.Mode == "" {
			bucket.Mode = ModeJIT
		}
		if bucket.DefaultServingPreset == "" {
			bucket.DefaultServingPreset = domain.PresetOriginal
		}
		if bucket.MaxCustomDimension == 0 {
			bucket.MaxCustomDimension = 4096
		}
		c.Buckets[slug] = bucket
	}
}

// Validate enforces the structural rules of the configuration shape.
func (c *Config) Validate() error {
	if count := c.Backend.count(); count != 1 {
		return fmt.Errorf("backend: exactly one driver must be configured, got %d", count)
	}
	if c.GlobalCache != nil {
		if err := c.GlobalCache.validate("global_cache"); err != nil {
			return err
		}
	}
	if len(c.Buckets) == 0 {
		return fmt.Errorf("at least one bucket must be configured")
	}

	for slug, bucket := range c.Buckets {
		if err := validateBucket(slug, bucket); err != nil {
			return err
		}
	}
	return nil
}

func (b BackendConfig) count() int {
	count := 0
	if b.Memory != nil {
		count++
	}
	if b.Filesystem != nil {
		count++
	}
	if b.BlobStorage != nil {
		count++
	}
	if b.Scylla != nil {
		count++
	}
	if b.Redis != nil {
		count++
	}
	if b.Postgres != nil {
		count++
	}
	return count
}

func (c CacheConfig) validate(scope string) error {
	if (c.MaxImages > 0) == (c.MaxCapacityMB > 0) {
		return fmt.Errorf("%s: exactly one of max_images or max_capacity must be set", scope)
	}
	return nil
}

func validateBucket(slug string, bucket BucketConfig) error {
	if strings.EqualFold(slug, "admin") {
		return fmt.Errorf("bucket %q: the slug is reserved", slug)
	}
	if !domain.ValidSlug(slug) {
		return fmt.Errorf("bucket %q: slug must match [a-z0-9][a-z0-9_-]*", slug)
	}

	switch bucket.Mode {
	case ModeAOT, ModeJIT, ModeRealtime:
	default:
		return fmt.Errorf("bucket %q: unknown mode %q", slug, bucket.Mode)
	}

	enabled := bucket.Formats.Enabled()
	if len(enabled) == 0 {
		return fmt.Errorf("bucket %q: at least one format must be enabled", slug)
	}

	storeFormat, err := domain.ParseFormat(bucket.Formats.OriginalImageStoreFormat)
	if err != nil {
		return fmt.Errorf("bucket %q: original_image_store_format: %w", slug, err)
	}
	if !bucket.Formats.IsEnabled(storeFormat) {
		return fmt.Errorf("bucket %q: original_image_store_format %q is not an enabled format", slug, storeFormat)
	}

	servingFormat, err := domain.ParseFormat(bucket.DefaultServingFormat)
	if err != nil {
		return fmt.Errorf("bucket %q: default_serving_format: %w", slug, err)
	}
	if !bucket.Formats.IsEnabled(servingFormat) {
		return fmt.Errorf("bucket %q: default_serving_format %q is not an enabled format", slug, servingFormat)
	}

	for name, preset := range bucket.Presets {
		if name == domain.PresetOriginal {
			return fmt.Errorf("bucket %q: preset name %q is reserved", slug, name)
		}
		if !domain.ValidSlug(name) {
			return fmt.Errorf("bucket %q: preset %q must match [a-z0-9][a-z0-9_-]*", slug, name)
		}
		if preset.Width <= 0 || preset.Height <= 0 {
			return fmt.Errorf("bucket %q: preset %q: width and height must be positive", slug, name)
		}
		if _, err := domain.ParseFilter(preset.Filter); err != nil {
			return fmt.Errorf("bucket %q: preset %q: %w", slug, name, err)
		}
	}

	if bucket.DefaultServingPreset != domain.PresetOriginal {
		if _, ok := bucket.Presets[bucket.DefaultServingPreset]; !ok {
			return fmt.Errorf("bucket %q: default_serving_preset %q is not declared", slug, bucket.DefaultServingPreset)
		}
	}

	if bucket.Cache != nil {
		if err := bucket.Cache.validate(fmt.Sprintf("bucket %q cache", slug)); err != nil {
			return err
		}
	}
	return nil
}

// EffectiveUploadLimit resolves the stricter of the global and bucket
// upload caps in bytes, or zero when unlimited.
func (c *Config) EffectiveUploadLimit(bucket BucketConfig) int64 {
	global := int64(c.MaxUploadSizeKB) << 10
	local := int64(bucket.MaxUploadSizeKB) << 10

	switch {
	case global > 0 && local > 0 && global < local:
		return global
	case local > 0:
		return local
	default:
		return global
	}
}
