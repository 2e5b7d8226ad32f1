package config

import "time"

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	RedisURL       string                `yaml:"-"`
	DSN            string                `yaml:"-"`
	Paths          RuntimePathsConfig    `yaml:"paths"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	JWTTTL         time.Duration         `yaml:"jwt_ttl"`
	Admin          AdminConfig           `yaml:"admin"`
	Blob           BlobConfig            `yaml:"blob"`
	Media          MediaConfig           `yaml:"media"`
	Views          ViewsConfig           `yaml:"views"`
}

type DatabaseRuntimeConfig struct {
	Driver    string            `yaml:"driver"` // mysql | sqlite
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

// RedisRuntimeConfig is optional: with neither url nor host set, Redis is disabled.
type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

type RuntimePathsConfig struct {
	Logs string `yaml:"logs"`
}

// AdminConfig seeds the single admin account on first start.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// BlobConfig selects and configures the object store.
type BlobConfig struct {
	Driver          string        `yaml:"driver"` // s3 | memory
	Endpoint        string        `yaml:"endpoint"`
	Region          string        `yaml:"region"`
	Bucket          string        `yaml:"bucket"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	PathStyle       bool          `yaml:"path_style"`
	PresignTTL      time.Duration `yaml:"presign_ttl"`
}

// MediaConfig governs upload validation and orphan reconciliation.
type MediaConfig struct {
	Prefix            string        `yaml:"prefix"`
	AllowedFormats    []string      `yaml:"allowed_formats"`
	MaxSizeMB         int           `yaml:"max_size_mb"`
	OrphanGrace       time.Duration `yaml:"orphan_grace"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	BeaconMaxAge      time.Duration `yaml:"beacon_max_age"`
	CleanupBatchLimit int           `yaml:"cleanup_batch_limit"`
}

// ViewsConfig controls the calendar-day boundary used for view deduplication.
type ViewsConfig struct {
	Timezone string        `yaml:"timezone"`
	RedisTTL time.Duration `yaml:"redis_ttl"`
}
