package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"VibingStorage/db"
	"VibingStorage/logger"
	"VibingStorage/model"

	"gorm.io/gorm"
)

// TrackRepository defines the operations on track aggregates (a track plus
// its vibes). Every method may block on the pool and honours ctx.
type TrackRepository interface {
	Create(ctx context.Context, meta model.TrackMetadata) (*model.TrackFull, error)
	// CreateWithDefaults fills absent descriptive fields from the file's own
	// tags before inserting.
	CreateWithDefaults(ctx context.Context, meta model.TrackMetadata, extractor MetadataExtractor) (*model.TrackFull, error)
	GetByID(ctx context.Context, id int64) (*model.TrackFull, error)
	GetByTitle(ctx context.Context, title string) (*model.TrackFull, error)
	GetByPath(ctx context.Context, path string) (*model.TrackFull, error)
	GetAll(ctx context.Context) ([]model.TrackFull, error)
	Count(ctx context.Context) (int64, error)

	GetByFilter(ctx context.Context, filter model.TrackFilter) ([]model.TrackFull, error)
	Page(ctx context.Context, params model.TrackPageParams) (*model.Page[model.TrackFull], error)

	// ApplyPatch writes patch and, once committed, mirrors it into track.
	// On error track is left as it was.
	ApplyPatch(ctx context.Context, track *model.TrackFull, patch model.TrackPatch) (*model.TrackFull, error)
	// Remove deletes the track and its vibe associations atomically. On
	// success track is reset to the zero value and must not be reused.
	Remove(ctx context.Context, track *model.TrackFull) error
}

// MetadataExtractor reads best-effort descriptive fields from an audio file.
type MetadataExtractor interface {
	Extract(path string) (model.TrackMetadata, error)
}

type gormTrackRepository struct {
	pool *db.Pool
}

// NewTrackRepository creates a TrackRepository backed by pool.
func NewTrackRepository(pool *db.Pool) TrackRepository {
	return &gormTrackRepository{pool: pool}
}

func (r *gormTrackRepository) Create(ctx context.Context, meta model.TrackMetadata) (*model.TrackFull, error) {
	if strings.TrimSpace(meta.Path) == "" {
		return nil, invalid("track path is required")
	}
	if meta.Duration != nil && *meta.Duration < 0 {
		return nil, invalid("duration must not be negative")
	}

	track := model.Track{
		Path:     meta.Path,
		Title:    meta.Title,
		Author:   meta.Author,
		Genre:    meta.Genre,
		Duration: meta.Duration,
	}
	if err := r.pool.DB(ctx).Create(&track).Error; err != nil {
		return nil, wrapErr("CreateTrack", err)
	}

	logger.Info("track created", logger.Int64("trackId", track.ID), logger.String("path", track.Path))
	return &model.TrackFull{Track: track, Vibes: []model.Vibe{}}, nil
}

func (r *gormTrackRepository) CreateWithDefaults(ctx context.Context, meta model.TrackMetadata, extractor MetadataExtractor) (*model.TrackFull, error) {
	complete := meta.Title != nil && meta.Author != nil && meta.Genre != nil && meta.Duration != nil
	if extractor != nil && !complete {
		extracted, err := extractor.Extract(meta.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("audio file %s: %w", meta.Path, ErrNotFound)
			}
			return nil, fmt.Errorf("failed to read metadata from %s: %w", meta.Path, err)
		}
		meta.FillMissing(extracted)
	}
	return r.Create(ctx, meta)
}

func (r *gormTrackRepository) GetByID(ctx context.Context, id int64) (*model.TrackFull, error) {
	return r.getOne(ctx, "GetTrackByID", "track_id = ?", id)
}

func (r *gormTrackRepository) GetByTitle(ctx context.Context, title string) (*model.TrackFull, error) {
	return r.getOne(ctx, "GetTrackByTitle", "title = ?", title)
}

func (r *gormTrackRepository) GetByPath(ctx context.Context, path string) (*model.TrackFull, error) {
	return r.getOne(ctx, "GetTrackByPath", "path = ?", path)
}

func (r *gormTrackRepository) getOne(ctx context.Context, op, cond string, key any) (*model.TrackFull, error) {
	tx := r.pool.DB(ctx)

	var track model.Track
	if err := tx.Where(cond, key).Order("track_id").Take(&track).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("track", key)
		}
		return nil, wrapErr(op, err)
	}

	byTrack, err := vibesByTrackIDs(tx, []int64{track.ID})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	vibes := byTrack[track.ID]
	if vibes == nil {
		vibes = []model.Vibe{}
	}
	return &model.TrackFull{Track: track, Vibes: vibes}, nil
}

func (r *gormTrackRepository) GetAll(ctx context.Context) ([]model.TrackFull, error) {
	tx := r.pool.DB(ctx)

	var tracks []model.Track
	if err := tx.Order("track_id").Find(&tracks).Error; err != nil {
		return nil, wrapErr("GetAllTracks", err)
	}
	full, err := attachVibes(tx, tracks)
	if err != nil {
		return nil, wrapErr("GetAllTracks", err)
	}
	return full, nil
}

func (r *gormTrackRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.DB(ctx).Model(&model.Track{}).Count(&n).Error; err != nil {
		return 0, wrapErr("CountTracks", err)
	}
	return n, nil
}

// attachVibes resolves the vibes of tracks with a single bulk query.
func attachVibes(tx *gorm.DB, tracks []model.Track) ([]model.TrackFull, error) {
	full := make([]model.TrackFull, 0, len(tracks))
	if len(tracks) == 0 {
		return full, nil
	}

	ids := make([]int64, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	byTrack, err := vibesByTrackIDs(tx, ids)
	if err != nil {
		return nil, err
	}

	for _, t := range tracks {
		vibes := byTrack[t.ID]
		if vibes == nil {
			vibes = []model.Vibe{}
		}
		full = append(full, model.TrackFull{Track: t, Vibes: vibes})
	}
	return full, nil
}

func (r *gormTrackRepository) Remove(ctx context.Context, track *model.TrackFull) error {
	if track == nil || track.Track.ID == 0 {
		return invalid("track to remove has no id")
	}
	id := track.Track.ID

	err := r.pool.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("track = ?", id).Delete(&model.TrackVibe{}).Error; err != nil {
			return err
		}
		res := tx.Where("track_id = ?", id).Delete(&model.Track{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("track", id)
		}
		return nil
	})
	if err != nil {
		return wrapErr("RemoveTrack", err)
	}

	logger.Info("track removed", logger.Int64("trackId", id))
	*track = model.TrackFull{}
	return nil
}
