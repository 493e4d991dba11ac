package repository

import (
	"context"
	"strings"

	"VibingStorage/logger"
	"VibingStorage/model"

	"gorm.io/gorm"
)

const trackColumns = "t.track_id, t.path, t.title, t.author, t.genre, t.duration, " +
	"t.vote_count, t.total_rating, t.download_count"

// trackQuery turns a TrackFilter into selections over the tracks table.
// Every method starts a fresh chain so the count and the page never share
// clauses.
type trackQuery struct {
	filter model.TrackFilter
}

func (q trackQuery) joinsVibes() bool { return len(q.filter.Vibes) > 0 }

func (q trackQuery) where(tx *gorm.DB) *gorm.DB {
	sel := tx.Table("tracks AS t")
	if q.joinsVibes() {
		sel = sel.
			Joins("JOIN tracks_with_vibes AS twv ON twv.track = t.track_id").
			Joins("JOIN vibes AS vb ON vb.vibe_id = twv.vibe").
			Where("vb.name IN ?", q.filter.Vibes)
	}
	if q.filter.Pattern != nil {
		like := "%" + strings.ToLower(*q.filter.Pattern) + "%"
		sel = sel.Where("(LOWER(t.title) LIKE ? OR LOWER(t.author) LIKE ?)", like, like)
	}
	if q.filter.Author != nil {
		sel = sel.Where("t.author = ?", *q.filter.Author)
	}
	return sel
}

func (q trackQuery) count(tx *gorm.DB) (int64, error) {
	var total int64
	err := q.where(tx).Select("COUNT(DISTINCT t.track_id)").Scan(&total).Error
	return total, err
}

// rows selects the matching tracks in sort order, limit < 0 meaning no limit.
func (q trackQuery) rows(tx *gorm.DB, limit, offset int) ([]model.Track, error) {
	sel := q.where(tx)
	if q.joinsVibes() {
		sel = sel.Distinct(trackColumns)
	} else {
		sel = sel.Select(trackColumns)
	}
	if order, ok := orderExpr(q.filter.OrderBy); ok {
		sel = sel.Order(order)
	}
	sel = sel.Order("t.track_id")
	if limit >= 0 {
		sel = sel.Limit(limit)
	}
	if offset > 0 {
		sel = sel.Offset(offset)
	}

	var tracks []model.Track
	if err := sel.Find(&tracks).Error; err != nil {
		return nil, err
	}
	return tracks, nil
}

// orderExpr maps a sort key to its ORDER BY expression. Unknown keys yield
// no ordering beyond the id tie-break.
func orderExpr(key string) (string, bool) {
	switch key {
	case model.OrderByRating:
		return "CASE WHEN t.vote_count > 0 THEN t.total_rating * 1.0 / t.vote_count ELSE 0 END DESC", true
	case model.OrderByMostDownloaded:
		return "t.download_count DESC", true
	default:
		return "", false
	}
}

func (r *gormTrackRepository) GetByFilter(ctx context.Context, filter model.TrackFilter) ([]model.TrackFull, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	limit := -1
	if filter.Limit != nil {
		limit = *filter.Limit
	}

	tx := r.pool.DB(ctx)
	tracks, err := trackQuery{filter: filter}.rows(tx, limit, 0)
	if err != nil {
		return nil, wrapErr("GetTracksByFilter", err)
	}
	full, err := attachVibes(tx, tracks)
	if err != nil {
		return nil, wrapErr("GetTracksByFilter", err)
	}
	return full, nil
}

func (r *gormTrackRepository) Page(ctx context.Context, params model.TrackPageParams) (*model.Page[model.TrackFull], error) {
	if err := validatePageParams(params); err != nil {
		return nil, err
	}

	tx := r.pool.DB(ctx)
	q := trackQuery{filter: params.Filter}

	total, err := q.count(tx)
	if err != nil {
		return nil, wrapErr("CountTrackPage", err)
	}

	page := &model.Page[model.TrackFull]{
		Items:      []model.TrackFull{},
		TotalItems: total,
		TotalPage:  model.TotalPages(total, params.PageSize),
		PageNum:    params.PageNum,
		PageSize:   params.PageSize,
	}
	if total == 0 {
		return page, nil
	}

	limit := params.PageSize
	if params.Filter.Limit != nil && *params.Filter.Limit < limit {
		limit = *params.Filter.Limit
	}
	offset := (params.PageNum - 1) * params.PageSize

	tracks, err := q.rows(tx, limit, offset)
	if err != nil {
		return nil, wrapErr("GetTrackPage", err)
	}
	page.Items, err = attachVibes(tx, tracks)
	if err != nil {
		return nil, wrapErr("GetTrackPage", err)
	}

	logger.Debug("track page loaded",
		logger.Int("page", params.PageNum),
		logger.Int("size", params.PageSize),
		logger.Int64("total", total),
		logger.Int("items", len(page.Items)))
	return page, nil
}
