package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	db, err := Connect("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	assert.NotNil(t, db)

	dbPath := filepath.Join(t.TempDir(), "nested", "ledger.db")
	db, err = Connect(dbPath)
	require.NoError(t, err)
	assert.NotNil(t, db)
	assert.FileExists(t, dbPath)
}
