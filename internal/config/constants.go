package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"

	defaultDBDriver   = "mysql"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBName     = "vitrine"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "UTC"
	defaultRedisPort  = 6379
	defaultJWTTTL     = 7 * 24 * time.Hour
	defaultBlobDriver = "s3"
	defaultPresignTTL = 15 * time.Minute

	defaultMediaPrefix       = "blog"
	defaultMaxSizeMB         = 10
	defaultOrphanGrace       = 24 * time.Hour
	defaultSweepInterval     = time.Hour
	defaultBeaconMaxAge      = 24 * time.Hour
	defaultCleanupBatchLimit = 50

	defaultViewsTimezone = "UTC"
	defaultViewsRedisTTL = 48 * time.Hour

	envJWTSecret   = "VITRINE_JWT_SECRET"
	envDBPassword  = "VITRINE_DB_PASSWORD"
	envS3SecretKey = "VITRINE_S3_SECRET_ACCESS_KEY"
)

var defaultAllowedFormats = []string{"png", "jpg", "jpeg", "gif", "webp"}
