package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at configPath, overlays it on the defaults and validates the result.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes raw YAML into an AppConfig. Unknown keys are rejected.
func Parse(content []byte) (*AppConfig, error) {
	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port:   defaultPort,
		Env:    defaultEnv,
		JWTTTL: defaultJWTTTL,
		Database: DatabaseRuntimeConfig{
			Driver:    defaultDBDriver,
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Blob: BlobConfig{
			Driver:     defaultBlobDriver,
			PresignTTL: defaultPresignTTL,
		},
		Media: MediaConfig{
			Prefix:            defaultMediaPrefix,
			AllowedFormats:    append([]string(nil), defaultAllowedFormats...),
			MaxSizeMB:         defaultMaxSizeMB,
			OrphanGrace:       defaultOrphanGrace,
			SweepInterval:     defaultSweepInterval,
			BeaconMaxAge:      defaultBeaconMaxAge,
			CleanupBatchLimit: defaultCleanupBatchLimit,
		},
		Views: ViewsConfig{
			Timezone: defaultViewsTimezone,
			RedisTTL: defaultViewsRedisTTL,
		},
	}
	return cfg
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(envJWTSecret)); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(envDBPassword)); v != "" {
		cfg.Database.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(envS3SecretKey)); v != "" {
		cfg.Blob.SecretAccessKey = v
	}
}

func validate(cfg *AppConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", cfg.Port)
	}
	switch cfg.Database.Driver {
	case "mysql":
		if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
			return fmt.Errorf("invalid database.port %d, expected 1-65535", cfg.Database.Port)
		}
	case "sqlite":
		if cfg.Database.DSN == "" {
			return errors.New("database.dsn is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q, expected mysql or sqlite", cfg.Database.Driver)
	}
	if cfg.Redis.Enabled() && cfg.Redis.URL == "" && (cfg.Redis.Port < 1 || cfg.Redis.Port > 65535) {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", cfg.Redis.Port)
	}
	switch cfg.Blob.Driver {
	case "s3":
		if cfg.Blob.Bucket == "" || cfg.Blob.Region == "" || cfg.Blob.AccessKeyID == "" || cfg.Blob.SecretAccessKey == "" {
			return errors.New("incomplete blob config: bucket/region/access_key_id/secret_access_key are required")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported blob.driver %q, expected s3 or memory", cfg.Blob.Driver)
	}
	if cfg.Blob.PresignTTL <= 0 || cfg.Blob.PresignTTL > 7*24*time.Hour {
		return fmt.Errorf("invalid blob.presign_ttl %s, expected (0, 168h]", cfg.Blob.PresignTTL)
	}
	if cfg.Media.Prefix == "" {
		return errors.New("media.prefix must not be empty")
	}
	if cfg.Media.MaxSizeMB < 1 {
		return fmt.Errorf("invalid media.max_size_mb %d, expected >= 1", cfg.Media.MaxSizeMB)
	}
	if cfg.Media.CleanupBatchLimit < 1 {
		return fmt.Errorf("invalid media.cleanup_batch_limit %d, expected >= 1", cfg.Media.CleanupBatchLimit)
	}
	if _, err := time.LoadLocation(cfg.Views.Timezone); err != nil {
		return fmt.Errorf("invalid views.timezone %q: %w", cfg.Views.Timezone, err)
	}
	return nil
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

func (c *AppConfig) LogDir() string {
	if c == nil {
		return ResolveRuntimePath("", "logs")
	}
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

// ViewLocation returns the zone whose midnight separates view-dedup days.
func (c *AppConfig) ViewLocation() *time.Location {
	loc, err := time.LoadLocation(c.Views.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MaxUploadBytes is the upload size ceiling derived from media.max_size_mb.
func (c *AppConfig) MaxUploadBytes() int64 {
	return int64(c.Media.MaxSizeMB) * 1024 * 1024
}
