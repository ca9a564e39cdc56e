package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	got, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, got)

	assert.Equal(t, "migrations/001_schema.sql", got[0].Name)
	for _, table := range []string{"categories", "products", "orders", "coupons"} {
		assert.Contains(t, got[0].SQL, "CREATE TABLE IF NOT EXISTS "+table)
	}
}
