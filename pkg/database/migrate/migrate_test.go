package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMigrationFilename(t *testing.T) {
	t.Run("parses a well formed filename", func(t *testing.T) {
		version, name, err := parseMigrationFilename("009_remediation_workflows.sql")

		require.NoError(t, err)
		assert.Equal(t, 9, version)
		assert.Equal(t, "remediation_workflows", name)
	})

	t.Run("rejects a filename with no underscore", func(t *testing.T) {
		_, _, err := parseMigrationFilename("nounderscore.sql")
		assert.Error(t, err)
	})

	t.Run("rejects a non numeric version", func(t *testing.T) {
		_, _, err := parseMigrationFilename("abc_tenants.sql")
		assert.Error(t, err)
	})
}

func TestGetAvailableMigrations(t *testing.T) {
	migrations, err := getAvailableMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i := 1; i < len(migrations); i++ {
		assert.Lessf(t, migrations[i-1].version, migrations[i].version,
			"migrations must be strictly increasing in version, got %d then %d",
			migrations[i-1].version, migrations[i].version)
	}

	seen := make(map[int]bool)
	for _, m := range migrations {
		assert.False(t, seen[m.version], "duplicate migration version %d", m.version)
		seen[m.version] = true
		assert.NotEmpty(t, m.sql)
	}

	assert.Equal(t, "enable_extensions", migrations[0].name)
}
