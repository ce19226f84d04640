package indexcache_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlbkkk/cloudimpact/pkg/indexcache"
	"github.com/zlbkkk/cloudimpact/pkg/model"
)

func TestGetOrBuildBuildsOnceThenServesFromCache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	builds := 0
	store, err := indexcache.Open(indexcache.Options{
		DBPath: filepath.Join(dir, "cache.db"),
		HeadFunc: func(_ context.Context, _ string) (string, error) {
			return "abc123", nil
		},
		Build: func(_ context.Context, repoRoot string) (*model.SymbolIndex, error) {
			builds++

			idx := model.NewSymbolIndex(repoRoot, "abc123")
			idx.AddClass("com.example.Point", model.ClassEntry{File: repoRoot + "/Point.java", Line: 1})

			return idx, nil
		},
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	first, err := store.GetOrBuild(context.Background(), "/repos/point")
	require.NoError(t, err)
	assert.Contains(t, first.ClassMap, "com.example.Point")
	assert.Equal(t, 1, builds)

	second, err := store.GetOrBuild(context.Background(), "/repos/point")
	require.NoError(t, err)
	assert.Contains(t, second.ClassMap, "com.example.Point")
	assert.Equal(t, 1, builds, "second call must be served from cache, not rebuilt")
}

func TestGetOrBuildSurvivesProcessRestartViaDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cache.db")

	builds := 0

	newStore := func() *indexcache.Store {
		store, err := indexcache.Open(indexcache.Options{
			DBPath: dbPath,
			HeadFunc: func(_ context.Context, _ string) (string, error) {
				return "commit-1", nil
			},
			Build: func(_ context.Context, repoRoot string) (*model.SymbolIndex, error) {
				builds++

				idx := model.NewSymbolIndex(repoRoot, "commit-1")
				idx.AddClass("com.example.Manager", model.ClassEntry{File: repoRoot + "/Manager.java", Line: 1})

				return idx, nil
			},
		})
		require.NoError(t, err)

		return store
	}

	first := newStore()

	_, err := first.GetOrBuild(context.Background(), "/repos/mgr")
	require.NoError(t, err)
	require.NoError(t, first.Close())
	assert.Equal(t, 1, builds)

	second := newStore()
	defer func() { _ = second.Close() }()

	idx, err := second.GetOrBuild(context.Background(), "/repos/mgr")
	require.NoError(t, err)
	assert.Contains(t, idx.ClassMap, "com.example.Manager")
	assert.Equal(t, 1, builds, "a fresh process must reuse the on-disk row keyed by commit hash")
}

func TestGetOrBuildRebuildsWhenCommitHashChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	commit := "rev-1"
	builds := 0

	store, err := indexcache.Open(indexcache.Options{
		DBPath: filepath.Join(dir, "cache.db"),
		HeadFunc: func(_ context.Context, _ string) (string, error) {
			return commit, nil
		},
		Build: func(_ context.Context, repoRoot string) (*model.SymbolIndex, error) {
			builds++

			return model.NewSymbolIndex(repoRoot, commit), nil
		},
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	_, err = store.GetOrBuild(context.Background(), "/repos/x")
	require.NoError(t, err)
	assert.Equal(t, 1, builds)

	commit = "rev-2"

	_, err = store.GetOrBuild(context.Background(), "/repos/x")
	require.NoError(t, err)
	assert.Equal(t, 2, builds, "a new commit hash must produce a new cache key and rebuild")
}

func TestGetOrBuildPropagatesBuildFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	buildErr := errors.New("parse failed")

	store, err := indexcache.Open(indexcache.Options{
		DBPath: filepath.Join(dir, "cache.db"),
		HeadFunc: func(_ context.Context, _ string) (string, error) {
			return "rev-1", nil
		},
		Build: func(_ context.Context, _ string) (*model.SymbolIndex, error) {
			return nil, buildErr
		},
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	_, err = store.GetOrBuild(context.Background(), "/repos/broken")
	require.ErrorIs(t, err, buildErr)
}

func TestInvalidateForcesRebuildOnSameCommit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	builds := 0

	store, err := indexcache.Open(indexcache.Options{
		DBPath: filepath.Join(dir, "cache.db"),
		HeadFunc: func(_ context.Context, _ string) (string, error) {
			return "rev-1", nil
		},
		Build: func(_ context.Context, repoRoot string) (*model.SymbolIndex, error) {
			builds++

			return model.NewSymbolIndex(repoRoot, "rev-1"), nil
		},
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	_, err = store.GetOrBuild(context.Background(), "/repos/x")
	require.NoError(t, err)
	assert.Equal(t, 1, builds)

	_, err = store.GetOrBuild(context.Background(), "/repos/x")
	require.NoError(t, err)
	assert.Equal(t, 1, builds, "unchanged commit must be served from cache")

	require.NoError(t, store.Invalidate(context.Background(), "/repos/x", "rev-1"))

	_, err = store.GetOrBuild(context.Background(), "/repos/x")
	require.NoError(t, err)
	assert.Equal(t, 2, builds, "an invalidated (repo, commit) pair must rebuild even on the same commit")
}

func TestOpenRejectsMissingCallbacks(t *testing.T) {
	t.Parallel()

	_, err := indexcache.Open(indexcache.Options{DBPath: filepath.Join(t.TempDir(), "cache.db")})
	assert.ErrorIs(t, err, model.ErrCache)
}
