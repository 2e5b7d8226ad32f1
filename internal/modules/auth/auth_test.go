package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitrine/core/internal/database/testdb"
	"github.com/vitrine/core/internal/models"
	"github.com/vitrine/core/internal/pkg/jwt"
)

func newTestHandler(t *testing.T) (*gin.Engine, *Service, *jwt.Signer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signer, err := jwt.NewSigner("secret", time.Hour)
	require.NoError(t, err)
	svc := NewService(testdb.Open(t), signer, nil)

	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r, svc, signer
}

func postLogin(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestEnsureAdminCreatesOnce(t *testing.T) {
	_, svc, _ := newTestHandler(t)

	created, err := svc.EnsureAdmin("admin", "hunter22")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin("other", "pw")
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, svc.db.Model(&models.UserModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEnsureAdminRequiresCredentials(t *testing.T) {
	_, svc, _ := newTestHandler(t)
	_, err := svc.EnsureAdmin("", "")
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	r, svc, signer := newTestHandler(t)
	_, err := svc.EnsureAdmin("admin", "hunter22")
	require.NoError(t, err)

	w := postLogin(r, `{"username":"admin","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	claims, err := signer.Parse(body.Token)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.UserID)

	var u models.UserModel
	require.NoError(t, svc.db.First(&u).Error)
	assert.NotNil(t, u.LastLoginTime)

	assert.Equal(t, http.StatusForbidden, postLogin(r, `{"username":"admin","password":"nope"}`).Code)
	assert.Equal(t, http.StatusForbidden, postLogin(r, `{"username":"ghost","password":"hunter22"}`).Code)
	assert.Equal(t, http.StatusBadRequest, postLogin(r, `{"username":"admin"}`).Code)
}
