package repository

import (
	"context"
	"errors"
	"fmt"

	"VibingStorage/logger"
	"VibingStorage/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplyPatch runs every part of patch in one transaction: the column writes,
// the vote and download increments, then vibe removals followed by vibe
// additions. Counters are incremented in SQL so concurrent patches on the
// same track never lose updates. track only changes after commit.
func (r *gormTrackRepository) ApplyPatch(ctx context.Context, track *model.TrackFull, patch model.TrackPatch) (*model.TrackFull, error) {
	if track == nil || track.Track.ID == 0 {
		return nil, invalid("track to patch has no id")
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	next := cloneTrackFull(track)
	id := next.Track.ID

	err := r.pool.Transaction(ctx, func(tx *gorm.DB) error {
		if patch.HasTrackChanges() {
			if err := writeTrackColumns(tx, &next.Track, patch); err != nil {
				return err
			}
		}

		if len(patch.RemoveVibes) > 0 {
			removed, _, err := resolveVibeRefs(tx, patch.RemoveVibes)
			if err != nil {
				return err
			}
			if len(removed) > 0 {
				ids := vibeIDs(removed)
				if err := tx.Where("track = ? AND vibe IN ?", id, ids).Delete(&model.TrackVibe{}).Error; err != nil {
					return err
				}
				next.Vibes = withoutVibes(next.Vibes, ids)
			}
		}

		if len(patch.AddVibes) > 0 {
			added, missing, err := resolveVibeRefs(tx, patch.AddVibes)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				return notFound("vibe", describeRefs(missing))
			}
			links := make([]model.TrackVibe, 0, len(added))
			for _, v := range added {
				links = append(links, model.TrackVibe{TrackID: id, VibeID: v.ID})
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
				return err
			}
			for _, v := range added {
				if !next.HasVibe(v.ID) {
					next.Vibes = append(next.Vibes, v)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("ApplyTrackPatch", err)
	}

	logger.Debug("track patched",
		logger.Int64("trackId", id),
		logger.Bool("vote", patch.NewVote != nil),
		logger.Bool("download", patch.NewDownload),
		logger.Int("addVibes", len(patch.AddVibes)),
		logger.Int("removeVibes", len(patch.RemoveVibes)))

	*track = *next
	return track, nil
}

// writeTrackColumns issues the single UPDATE for the tracks row and mirrors
// it into t.
func writeTrackColumns(tx *gorm.DB, t *model.Track, patch model.TrackPatch) error {
	updates := map[string]any{}
	if patch.Path != nil {
		updates["path"] = *patch.Path
		t.Path = *patch.Path
	}
	if patch.Title != nil {
		updates["title"] = *patch.Title
		t.Title = model.Ptr(*patch.Title)
	}
	if patch.Author != nil {
		updates["author"] = *patch.Author
		t.Author = model.Ptr(*patch.Author)
	}
	if patch.Genre != nil {
		updates["genre"] = *patch.Genre
		t.Genre = model.Ptr(*patch.Genre)
	}
	if patch.Duration != nil {
		updates["duration"] = *patch.Duration
		t.Duration = model.Ptr(*patch.Duration)
	}
	if patch.NewVote != nil {
		updates["vote_count"] = gorm.Expr("vote_count + ?", 1)
		updates["total_rating"] = gorm.Expr("total_rating + ?", *patch.NewVote)
		t.VoteCount++
		t.TotalRating += int64(*patch.NewVote)
	}
	if patch.NewDownload {
		updates["download_count"] = gorm.Expr("download_count + ?", 1)
		t.DownloadCount++
	}

	res := tx.Model(&model.Track{}).Where("track_id = ?", t.ID).UpdateColumns(updates)
	if res.Error != nil {
		return res.Error
	}

	// Counters may have moved under us; re-read them so the caller sees the
	// committed totals rather than its stale copy plus one.
	if patch.NewVote != nil || patch.NewDownload {
		var fresh model.Track
		err := tx.Select("vote_count", "total_rating", "download_count").
			Where("track_id = ?", t.ID).Take(&fresh).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("track", t.ID)
			}
			return err
		}
		t.VoteCount = fresh.VoteCount
		t.TotalRating = fresh.TotalRating
		t.DownloadCount = fresh.DownloadCount
	}
	return nil
}

func cloneTrackFull(t *model.TrackFull) *model.TrackFull {
	c := &model.TrackFull{Track: t.Track}
	c.Vibes = make([]model.Vibe, len(t.Vibes))
	copy(c.Vibes, t.Vibes)
	return c
}

func vibeIDs(vibes []model.Vibe) []int64 {
	ids := make([]int64, len(vibes))
	for i, v := range vibes {
		ids[i] = v.ID
	}
	return ids
}

func withoutVibes(vibes []model.Vibe, ids []int64) []model.Vibe {
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := vibes[:0]
	for _, v := range vibes {
		if !drop[v.ID] {
			kept = append(kept, v)
		}
	}
	return kept
}

func describeRefs(refs []model.VibeRef) string {
	out := ""
	for i, ref := range refs {
		if i > 0 {
			out += ", "
		}
		if ref.ByID() {
			out += fmt.Sprintf("#%d", ref.ID)
		} else {
			out += ref.Group + "/" + ref.Name
		}
	}
	return out
}
