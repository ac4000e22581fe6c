package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDB_Unset(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	_, _, err := InitDB()
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestInitDB_Sqlite(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "sqlite://"+filepath.Join(t.TempDir(), "noir.db"))
	db, dbType, err := InitDB()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", dbType)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
	sqlDB.Close()
}

func TestOpen_Unsupported(t *testing.T) {
	_, _, err := Open("redis://localhost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis://localhost")
}
