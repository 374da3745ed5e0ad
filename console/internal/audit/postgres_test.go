package audit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDatabase starts PostgreSQL in a container and applies the migrations.
// Set ALARM_CONSOLE_INTEGRATION=1 to run it.
func setupTestDatabase(t *testing.T) *PostgresRepository {
	t.Helper()
	if os.Getenv("ALARM_CONSOLE_INTEGRATION") == "" {
		t.Skip("set ALARM_CONSOLE_INTEGRATION=1 to run PostgreSQL integration tests")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("console_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, Migrate(connStr))
	// A second run must be a no-op.
	require.NoError(t, Migrate(connStr))

	repo, err := NewPostgresRepository(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestPostgresRepository_RecordAndList(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()

	first := NewEntry(ctx, ActionStatusChanged, "alarm-1", "Open", "In-Progress", nil)
	first.CreatedAt = time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond)
	second := NewEntry(ctx, ActionTagChanged, "alarm-1", "", "False Positive", nil)
	second.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	other := NewEntry(ctx, ActionDeleted, "alarm-2", "", "", nil)

	for _, e := range []Entry{first, second, other} {
		require.NoError(t, repo.Record(ctx, e))
	}

	entries, err := repo.List(ctx, "alarm-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, ActionTagChanged, entries[0].Action)
	assert.Equal(t, first.ID, entries[1].ID)
	assert.Equal(t, "In-Progress", entries[1].NewValue)

	require.NoError(t, repo.Ping(ctx))
}
