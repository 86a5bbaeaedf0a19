package history

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New()
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Append(msgAt(i)))
	}
	require.NoError(t, s.SaveSnapshot(fs, "/data/history.json"))

	exists, err := afero.Exists(fs, "/data/history.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temporary file should be renamed away")

	restored := New()
	require.NoError(t, restored.LoadSnapshot(fs, "/data/history.json"))
	assert.Equal(t, 5, restored.Len())
	got := restored.QueryBefore(epoch.Add(time.Hour), 0)
	require.Len(t, got, 5)
	assert.Equal(t, "message 5", got[0].Content)
	assert.True(t, got[0].Timestamp.Equal(epoch.Add(5*time.Second)))
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadSnapshot(afero.NewMemMapFs(), "/nope.json"))
	assert.Equal(t, 0, s.Len())
}

func TestLoadSnapshotKeepsNewestUpToTarget(t *testing.T) {
	fs := afero.NewMemMapFs()
	big := New(WithCapacity(100))
	for i := 0; i < 95; i++ {
		require.NoError(t, big.Append(msgAt(i)))
	}
	require.NoError(t, big.SaveSnapshot(fs, "h.json"))

	small := New(WithCapacity(20))
	require.NoError(t, small.LoadSnapshot(fs, "h.json"))
	assert.Equal(t, small.Target(), small.Len())
	assert.Equal(t, "message 94", small.All()[small.Len()-1].Content)
}

func TestLoadSnapshotRejectsGarbage(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.json", []byte("{not json"), 0o644))
	assert.Error(t, New().LoadSnapshot(fs, "bad.json"))

	require.NoError(t, afero.WriteFile(fs, "v9.json", []byte(`{"version":9,"messages":[]}`), 0o644))
	assert.ErrorContains(t, New().LoadSnapshot(fs, "v9.json"), "unsupported")
}
