package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles_SortedAndEmbedded(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, []string{"0001_sessions.sql", "0002_session_locks.sql"}, files)
	assert.IsIncreasing(t, files)

	body, err := migrationsFS.ReadFile("migrations/" + files[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS sessions")
}
