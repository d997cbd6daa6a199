package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/wallet?sslmode=disable",
		migrateURL("postgres://u:p@localhost:5432/wallet?sslmode=disable"))
	assert.Equal(t, "pgx5://localhost/wallet", migrateURL("postgresql://localhost/wallet"))
	assert.Equal(t, "pgx5://localhost/wallet", migrateURL("pgx5://localhost/wallet"))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	assert.NoError(t, err)
	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	assert.Equal(t, up, down)
	assert.Positive(t, up)
}
