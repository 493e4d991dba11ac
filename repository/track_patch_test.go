package repository

import (
	"context"
	"sync"
	"testing"

	"VibingStorage/model"
)

func TestApplyPatch_VoteArithmetic(t *testing.T) {
	tracks, _ := setupRepos(t)
	ctx := context.Background()

	track := mustCreateTrack(t, tracks, "v.mp3", "")
	votes := []int{0, 255, 17, 100}
	sum := 0
	for i, v := range votes {
		sum += v
		mustPatch(t, tracks, track, model.TrackPatch{NewVote: model.Ptr(v)})

		if track.Track.VoteCount != i+1 {
			t.Errorf("after vote %d: VoteCount = %d", i+1, track.Track.VoteCount)
		}
		if track.Track.TotalRating != int64(sum) {
			t.Errorf("after vote %d: TotalRating = %d, want %d", i+1, track.Track.TotalRating, sum)
		}
	}

	stored, err := tracks.GetByID(ctx, track.Track.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	want := float64(sum) / float64(len(votes))
	if got := stored.Track.AverageRating(); got != want {
		t.Errorf("AverageRating = %v, want %v", got, want)
	}
}

func TestApplyPatch_VoteOutOfRange(t *testing.T) {
	tracks, _ := setupRepos(t)
	ctx := context.Background()

	track := mustCreateTrack(t, tracks, "v.mp3", "")
	for _, v := range []int{-1, 256, 1000} {
		if _, err := tracks.ApplyPatch(ctx, track, model.TrackPatch{NewVote: model.Ptr(v)}); !IsValidation(err) {
			t.Errorf("vote %d: expected validation error, got %v", v, err)
		}
	}

	stored, _ := tracks.GetByID(ctx, track.Track.ID)
	if stored.Track.VoteCount != 0 || stored.Track.TotalRating != 0 {
		t.Errorf("Rejected votes were persisted: %+v", stored.Track)
	}
}

func TestApplyPatch_Download(t *testing.T) {
	tracks, _ := setupRepos(t)
	ctx := context.Background()

	track := mustCreateTrack(t, tracks, "d.mp3", "")
	mustPatch(t, tracks, track, model.TrackPatch{NewDownload: true})
	mustPatch(t, tracks, track, model.TrackPatch{
		NewDownload: true,
		Title:       model.Ptr("Renamed"),
		NewVote:     model.Ptr(3),
	})

	if track.Track.DownloadCount != 2 {
		t.Errorf("in-memory DownloadCount = %d, want 2", track.Track.DownloadCount)
	}
	stored, _ := tracks.GetByID(ctx, track.Track.ID)
	if stored.Track.DownloadCount != 2 {
		t.Errorf("stored DownloadCount = %d, want 2", stored.Track.DownloadCount)
	}
	if stored.Track.Title == nil || *stored.Track.Title != "Renamed" {
		t.Errorf("Title = %v, want Renamed", stored.Track.Title)
	}
}

func TestApplyPatch_Fields(t *testing.T) {
	tracks, _ := setupRepos(t)
	ctx := context.Background()

	track := mustCreateTrack(t, tracks, "old.mp3", "Old")
	mustPatch(t, tracks, track, model.TrackPatch{
		Path:     model.Ptr("new.mp3"),
		Author:   model.Ptr("Someone"),
		Genre:    model.Ptr("ambient"),
		Duration: model.Ptr(42),
	})

	stored, err := tracks.GetByID(ctx, track.Track.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Track.Path != "new.mp3" || *stored.Track.Author != "Someone" ||
		*stored.Track.Genre != "ambient" || *stored.Track.Duration != 42 {
		t.Errorf("stored track = %+v", stored.Track)
	}
	if *stored.Track.Title != "Old" {
		t.Errorf("absent field changed: Title = %q", *stored.Track.Title)
	}
}

func TestApplyPatch_MoodChillScenario(t *testing.T) {
	tracks, vibes := setupRepos(t)

	mustEnsureVibe(t, vibes, "mood", "chill")
	track := mustCreateTrack(t, tracks, "a.mp3", "Song")

	updated := mustPatch(t, tracks, track, model.TrackPatch{
		AddVibes: []model.VibeRef{{Group: "mood", Name: "chill"}},
	})
	if len(updated.Vibes) != 1 {
		t.Fatalf("Vibes = %v, want exactly one", vibeNames(updated.Vibes))
	}
	if v := updated.Vibes[0]; v.Name != "chill" || v.GroupName != "mood" {
		t.Errorf("Vibe = %s/%s, want mood/chill", v.GroupName, v.Name)
	}
}

func TestApplyPatch_RemoveThenReAdd(t *testing.T) {
	tracks, vibes := setupRepos(t)
	ctx := context.Background()

	chill := mustEnsureVibe(t, vibes, "mood", "chill")
	happy := mustEnsureVibe(t, vibes, "mood", "happy")
	track := mustCreateTrack(t, tracks, "r.mp3", "")
	mustPatch(t, tracks, track, model.TrackPatch{AddVibes: []model.VibeRef{{ID: chill.ID}, {ID: happy.ID}}})

	mustPatch(t, tracks, track, model.TrackPatch{
		RemoveVibes: []model.VibeRef{{ID: chill.ID}, {Group: "mood", Name: "happy"}},
		AddVibes:    []model.VibeRef{{ID: chill.ID}},
	})

	if len(track.Vibes) != 1 || track.Vibes[0].ID != chill.ID {
		t.Errorf("in-memory vibes = %v, want [mood/chill]", vibeNames(track.Vibes))
	}
	stored, _ := tracks.GetByID(ctx, track.Track.ID)
	if len(stored.Vibes) != 1 || stored.Vibes[0].ID != chill.ID {
		t.Errorf("stored vibes = %v, want [mood/chill]", vibeNames(stored.Vibes))
	}
}

func TestApplyPatch_IdempotentAdd(t *testing.T) {
	tracks, vibes := setupRepos(t)
	ctx := context.Background()

	chill := mustEnsureVibe(t, vibes, "mood", "chill")
	track := mustCreateTrack(t, tracks, "i.mp3", "")

	mustPatch(t, tracks, track, model.TrackPatch{AddVibes: []model.VibeRef{{ID: chill.ID}}})
	mustPatch(t, tracks, track, model.TrackPatch{
		AddVibes: []model.VibeRef{{ID: chill.ID}, {Group: "mood", Name: "chill"}},
	})

	if len(track.Vibes) != 1 {
		t.Errorf("in-memory vibes = %v, want one", vibeNames(track.Vibes))
	}
	stored, _ := tracks.GetByID(ctx, track.Track.ID)
	if len(stored.Vibes) != 1 {
		t.Errorf("stored vibes = %v, want one", vibeNames(stored.Vibes))
	}
}

func TestApplyPatch_UnknownVibeRollsBack(t *testing.T) {
	tracks, _ := setupRepos(t)
	ctx := context.Background()

	track := mustCreateTrack(t, tracks, "u.mp3", "")
	_, err := tracks.ApplyPatch(ctx, track, model.TrackPatch{
		NewVote:  model.Ptr(50),
		AddVibes: []model.VibeRef{{Group: "mood", Name: "nonexistent"}},
	})
	if !IsNotFound(err) {
		t.Fatalf("Expected not found, got %v", err)
	}

	if track.Track.VoteCount != 0 {
		t.Errorf("in-memory aggregate changed on failure: %+v", track.Track)
	}
	stored, _ := tracks.GetByID(ctx, track.Track.ID)
	if stored.Track.VoteCount != 0 || stored.Track.TotalRating != 0 {
		t.Errorf("vote persisted despite failed patch: %+v", stored.Track)
	}
}

func TestApplyPatch_RemoveUnknownIgnored(t *testing.T) {
	tracks, _ := setupRepos(t)

	track := mustCreateTrack(t, tracks, "x.mp3", "")
	_, err := tracks.ApplyPatch(context.Background(), track, model.TrackPatch{
		RemoveVibes: []model.VibeRef{{ID: 999}, {Group: "nope", Name: "nope"}},
	})
	if err != nil {
		t.Errorf("Removing unknown vibes should be a no-op, got %v", err)
	}
}

func TestApplyPatch_EmptyPatch(t *testing.T) {
	tracks, _ := setupRepos(t)

	track := mustCreateTrack(t, tracks, "e.mp3", "Same")
	before := track.Track
	updated := mustPatch(t, tracks, track, model.TrackPatch{})
	if updated.Track != before {
		t.Errorf("empty patch changed track: %+v -> %+v", before, updated.Track)
	}
}

func TestApplyPatch_ConcurrentVotes(t *testing.T) {
	tracks, _ := setupRepos(t)
	ctx := context.Background()

	track := mustCreateTrack(t, tracks, "c.mp3", "")
	const workers = 20

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each worker patches its own stale copy.
			copyOf := cloneTrackFull(track)
			if _, err := tracks.ApplyPatch(ctx, copyOf, model.TrackPatch{NewVote: model.Ptr(5), NewDownload: true}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent patch failed: %v", err)
	}

	stored, err := tracks.GetByID(ctx, track.Track.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Track.VoteCount != workers || stored.Track.TotalRating != 5*workers || stored.Track.DownloadCount != workers {
		t.Errorf("lost updates: %+v", stored.Track)
	}
}
