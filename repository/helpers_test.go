package repository

import (
	"context"
	"path/filepath"
	"testing"

	"VibingStorage/db"
	"VibingStorage/model"
)

// setupTestPool opens a fresh sqlite catalog under the test's temp dir.
func setupTestPool(t *testing.T) *db.Pool {
	t.Helper()

	pool, err := db.OpenSQLite(filepath.Join(t.TempDir(), "catalog_test.sqlite3"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := pool.AutoMigrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return pool
}

func setupRepos(t *testing.T) (TrackRepository, VibeRepository) {
	t.Helper()
	pool := setupTestPool(t)
	return NewTrackRepository(pool), NewVibeRepository(pool)
}

func mustCreateTrack(t *testing.T, tracks TrackRepository, path, title string) *model.TrackFull {
	t.Helper()
	meta := model.TrackMetadata{Path: path}
	if title != "" {
		meta.Title = model.Ptr(title)
	}
	track, err := tracks.Create(context.Background(), meta)
	if err != nil {
		t.Fatalf("Create(%q) failed: %v", path, err)
	}
	return track
}

func mustEnsureVibe(t *testing.T, vibes VibeRepository, group, name string) *model.Vibe {
	t.Helper()
	v, err := vibes.EnsureVibe(context.Background(), group, name)
	if err != nil {
		t.Fatalf("EnsureVibe(%q, %q) failed: %v", group, name, err)
	}
	return v
}

func mustPatch(t *testing.T, tracks TrackRepository, track *model.TrackFull, patch model.TrackPatch) *model.TrackFull {
	t.Helper()
	updated, err := tracks.ApplyPatch(context.Background(), track, patch)
	if err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}
	return updated
}

func vibeNames(vibes []model.Vibe) []string {
	names := make([]string, len(vibes))
	for i, v := range vibes {
		names[i] = v.GroupName + "/" + v.Name
	}
	return names
}
