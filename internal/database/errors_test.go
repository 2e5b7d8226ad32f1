package database_test

import (
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitrine/core/internal/database"
	"github.com/vitrine/core/internal/database/testdb"
	"github.com/vitrine/core/internal/models"
	"gorm.io/gorm"
)

func TestIsDuplicateKey(t *testing.T) {
	assert.False(t, database.IsDuplicateKey(nil))
	assert.False(t, database.IsDuplicateKey(errors.New("connection refused")))
	assert.True(t, database.IsDuplicateKey(gorm.ErrDuplicatedKey))
	assert.True(t, database.IsDuplicateKey(fmt.Errorf("insert: %w", &mysqlDriver.MySQLError{Number: 1062})))
	assert.True(t, database.IsDuplicateKey(errors.New("UNIQUE constraint failed: view_records.post_id")))
}

func TestSQLiteUniqueIndexSurfacesAsDuplicate(t *testing.T) {
	db := testdb.Open(t)

	rec := func() *models.ViewRecordModel {
		return &models.ViewRecordModel{PostID: "p1", Fingerprint: "fp", Day: "2024-01-02"}
	}
	require.NoError(t, db.Create(rec()).Error)

	err := db.Create(rec()).Error
	require.Error(t, err)
	assert.True(t, database.IsDuplicateKey(err))
}

func TestIsNotFound(t *testing.T) {
	db := testdb.Open(t)
	var post models.PostModel
	err := db.First(&post, "id = ?", "missing").Error
	assert.True(t, database.IsNotFound(err))
}
