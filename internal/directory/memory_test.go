package directory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/chatline/internal/domain"
)

func TestMemoryAddOrUpdateFoldsNames(t *testing.T) {
	ctx := context.Background()
	d := NewMemory()

	alice, created, err := d.AddOrUpdate(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), alice.ID)
	assert.Equal(t, domain.StateNew, alice.State)

	again, created, err := d.AddOrUpdate(ctx, " ALICE ")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, alice.ID, again.ID)
	assert.Equal(t, "ALICE", again.DisplayName)

	bob, _, err := d.AddOrUpdate(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), bob.ID)

	_, _, err = d.AddOrUpdate(ctx, "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMemoryLookups(t *testing.T) {
	ctx := context.Background()
	d := NewMemory()
	u, _, err := d.AddOrUpdate(ctx, "carol")
	require.NoError(t, err)

	found, err := d.FindByName(ctx, "CAROL")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = d.FindByName(ctx, "dave")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ok, err := d.Exists(ctx, "Carol")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Exists(ctx, "dave")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := d.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", got.DisplayName)

	_, err = d.Get(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemorySetState(t *testing.T) {
	ctx := context.Background()
	d := NewMemory()
	u, _, err := d.AddOrUpdate(ctx, "erin")
	require.NoError(t, err)

	require.NoError(t, d.SetState(ctx, u.ID, domain.StateOnline))
	got, err := d.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateOnline, got.State)

	assert.ErrorIs(t, d.SetState(ctx, 42, domain.StateOnline), domain.ErrNotFound)
	assert.ErrorIs(t, d.SetState(ctx, u.ID, domain.UserState(17)), domain.ErrValidation)
}

func TestMemoryListAndDelete(t *testing.T) {
	ctx := context.Background()
	d := NewMemory()
	for _, name := range []string{"zed", "amy", "kim"} {
		_, _, err := d.AddOrUpdate(ctx, name)
		require.NoError(t, err)
	}

	users, err := d.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "zed", users[0].DisplayName)
	assert.Equal(t, int64(3), users[2].ID)

	require.NoError(t, d.Delete(ctx, users[0].ID))
	ok, _ := d.Exists(ctx, "zed")
	assert.False(t, ok)
	assert.ErrorIs(t, d.Delete(ctx, users[0].ID), domain.ErrNotFound)

	// A deleted name can register again and gets a fresh id.
	zed, created, err := d.AddOrUpdate(ctx, "zed")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(4), zed.ID)
}

func TestMemoryConcurrentRegistrationAllocatesUniqueIDs(t *testing.T) {
	ctx := context.Background()
	d := NewMemory()

	var wg sync.WaitGroup
	ids := make(chan int64, 200)
	for i := 0; i < 100; i++ {
		wg.Add(2)
		name := fmt.Sprintf("user-%d", i)
		for j := 0; j < 2; j++ {
			go func() {
				defer wg.Done()
				u, _, err := d.AddOrUpdate(ctx, name)
				assert.NoError(t, err)
				ids <- u.ID
			}()
		}
	}
	wg.Wait()
	close(ids)

	unique := map[int64]struct{}{}
	for id := range ids {
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, 100, "same-name registrations fold to one id")

	users, err := d.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 100)
}

func TestMemoryImplementsDirectory(t *testing.T) {
	var _ Directory = NewMemory()
	var _ Directory = (*Surreal)(nil)
}
