package directory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"

	"github.com/nfrund/chatline/internal/database"
	"github.com/nfrund/chatline/internal/domain"
	"github.com/nfrund/chatline/internal/testutils"
)

// setupSurreal connects to the SurrealDB named by the environment, skipping
// the test when none is configured.
func setupSurreal(t *testing.T) *Surreal {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping SurrealDB integration test in short mode")
	}
	cfg := testutils.ConfigForTests(t)
	if cfg.GetDBURL() == "" {
		t.Skip("SURREAL_URL not set; skipping SurrealDB integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := database.NewConnection(cfg)
	require.NoError(t, conn.Connect(ctx), "failed to connect to test database")

	dir := NewSurreal(conn)
	require.NoError(t, dir.Init(ctx))

	t.Cleanup(func() {
		_ = conn.WithConnection(context.Background(), func(db *surrealdb.DB) error {
			return database.Execute(context.Background(), db, "DELETE "+userTable+"; DELETE "+counterTable, nil)
		})
		conn.Close(context.Background())
	})
	return dir
}

func TestSurrealDirectory(t *testing.T) {
	dir := setupSurreal(t)
	ctx := context.Background()
	name := fmt.Sprintf("it-%d", time.Now().UnixNano())

	u, created, err := dir.AddOrUpdate(ctx, name)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Positive(t, u.ID)

	again, created, err := dir.AddOrUpdate(ctx, " "+name+" ")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)

	found, err := dir.FindByName(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	ok, err := dir.Exists(ctx, name)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, dir.SetState(ctx, u.ID, domain.StateOnline))
	got, err := dir.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateOnline, got.State)

	users, err := dir.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, users)

	require.NoError(t, dir.Delete(ctx, u.ID))
	_, err = dir.FindByName(ctx, name)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, dir.Delete(ctx, u.ID), domain.ErrNotFound)
}
