package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/vitrine/core/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TokenSigner issues admin tokens.
type TokenSigner interface {
	Sign(userID string) (string, error)
}

// Service handles admin login.
type Service struct {
	db     *gorm.DB
	signer TokenSigner
	logger *zap.Logger
}

func NewService(db *gorm.DB, signer TokenSigner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, signer: signer, logger: logger}
}

// Login checks the password and returns a signed token.
func (s *Service) Login(username, password, ip string) (string, error) {
	var u models.UserModel
	if err := s.db.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", errAuthUserNotFound
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return "", errAuthWrongPassword
	}

	now := time.Now()
	if err := s.db.Model(&u).Updates(map[string]interface{}{
		"last_login_time": now,
		"last_login_ip":   ip,
	}).Error; err != nil {
		s.logger.Warn("record login failed", zap.String("user", u.Username), zap.Error(err))
	}
	return s.signer.Sign(u.ID)
}

// EnsureAdmin creates the admin account when no user exists yet. It reports
// whether an account was created.
func (s *Service) EnsureAdmin(username, password string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.UserModel{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if username == "" || password == "" {
		return false, fmt.Errorf("no admin account exists and admin.username/admin.password are not configured")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}
	if err := s.db.Create(&models.UserModel{Username: username, Password: string(hash)}).Error; err != nil {
		return false, err
	}
	s.logger.Info("admin account created", zap.String("username", username))
	return true, nil
}
