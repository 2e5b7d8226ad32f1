package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/vitrine/core/internal/config"
	"github.com/vitrine/core/internal/pkg/blob"
	"go.uber.org/zap"
)

func resolveJWTSecret(cfg *config.AppConfig, logger *zap.Logger) (string, error) {
	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		return secret, nil
	}
	if !cfg.IsDev() {
		return "", errors.New("jwt_secret is required outside development")
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	logger.Warn("jwt_secret is empty, using a random secret; tokens will not survive a restart")
	return hex.EncodeToString(buf), nil
}

func newBlobStore(cfg *config.AppConfig) (blob.Store, error) {
	if cfg.Blob.Driver == "memory" {
		return blob.NewMemoryStore(""), nil
	}
	return blob.NewS3Store(blob.S3Options{
		Endpoint:        cfg.Blob.Endpoint,
		Region:          cfg.Blob.Region,
		Bucket:          cfg.Blob.Bucket,
		AccessKeyID:     cfg.Blob.AccessKeyID,
		SecretAccessKey: cfg.Blob.SecretAccessKey,
		PathStyle:       cfg.Blob.PathStyle,
	})
}

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	if d < time.Hour {
		return d.Truncate(time.Minute).String()
	}
	if d < 24*time.Hour {
		return d.Truncate(time.Hour).String()
	}
	return d.Truncate(24 * time.Hour).String()
}
