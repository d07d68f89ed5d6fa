package transport_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thepwagner/debmirror/pkg/debian"
	"github.com/thepwagner/debmirror/pkg/repo"
	"github.com/thepwagner/debmirror/pkg/transport"
)

var payload = []byte("meow")

func TestLocal_Fetch(t *testing.T) {
	t.Parallel()

	fn := filepath.Join(t.TempDir(), "Packages.gz")
	require.NoError(t, os.WriteFile(fn, payload, 0o644))
	ctx := context.Background()

	t.Run("path", func(t *testing.T) {
		t.Parallel()
		res := &repo.Resource{URL: "file://" + fn}
		require.NoError(t, transport.NewLocal().Fetch(ctx, res))
		assert.Equal(t, fn, res.Path)
		assert.False(t, res.Temporary)

		require.NoError(t, res.Release())
		assert.FileExists(t, fn)
	})

	t.Run("in memory", func(t *testing.T) {
		t.Parallel()
		res := &repo.Resource{URL: fn, InMemory: true}
		require.NoError(t, transport.NewLocal().Fetch(ctx, res))
		assert.Equal(t, payload, res.Content)
		assert.Empty(t, res.Path)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		res := &repo.Resource{URL: "file://" + fn + ".missing"}
		err := transport.NewLocal().Fetch(ctx, res)
		assert.ErrorIs(t, err, transport.ErrNotFound)
		assert.ErrorIs(t, err, debian.ErrResourceUnavailable)
		assert.False(t, res.Fetched())
	})

	t.Run("directory", func(t *testing.T) {
		t.Parallel()
		err := transport.NewLocal().Fetch(ctx, &repo.Resource{URL: filepath.Dir(fn)})
		assert.ErrorIs(t, err, transport.ErrRetrieval)
	})

	t.Run("escaped base", func(t *testing.T) {
		t.Parallel()
		base := filepath.Join(t.TempDir(), "my repo")
		rel := filepath.Join(base, "dists", "precise", "main", "source", "Sources.gz")
		require.NoError(t, os.MkdirAll(filepath.Dir(rel), 0o755))
		require.NoError(t, os.WriteFile(rel, payload, 0o644))

		u, err := repo.IndexURL(base, "precise", "main", "", repo.ResourceSources)
		require.NoError(t, err)
		res := &repo.Resource{URL: u}
		require.NoError(t, transport.NewLocal().Fetch(ctx, res))
		assert.Equal(t, rel, res.Path)
	})
}
