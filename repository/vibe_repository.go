package repository

import (
	"context"
	"strings"

	"VibingStorage/db"
	"VibingStorage/model"

	"gorm.io/gorm"
)

// VibeRepository is the read-mostly tag catalog. Every vibe it returns carries
// its group name.
type VibeRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Vibe, error)
	// GetByName returns the lowest-id vibe with this name in any group.
	GetByName(ctx context.Context, name string) (*model.Vibe, error)
	GetByGroupAndName(ctx context.Context, group, name string) (*model.Vibe, error)
	GetAll(ctx context.Context) ([]model.Vibe, error)
	Count(ctx context.Context) (int64, error)
	GetByTrackID(ctx context.Context, trackID int64) ([]model.Vibe, error)
	// GetByTrackIDs loads the vibes of many tracks in one query. Tracks
	// without vibes are absent from the map.
	GetByTrackIDs(ctx context.Context, trackIDs []int64) (map[int64][]model.Vibe, error)
	// ResolveRefs returns the vibes matching refs and the refs that matched nothing.
	ResolveRefs(ctx context.Context, refs []model.VibeRef) ([]model.Vibe, []model.VibeRef, error)

	GetGroupByID(ctx context.Context, id int64) (*model.VibeGroupFull, error)
	GetGroupByName(ctx context.Context, name string) (*model.VibeGroupFull, error)
	GetAllGroups(ctx context.Context) ([]model.VibeGroupFull, error)
	CountGroups(ctx context.Context) (int64, error)

	// EnsureVibe creates the group and vibe when missing. Used for seeding.
	EnsureVibe(ctx context.Context, group, name string) (*model.Vibe, error)
}

type gormVibeRepository struct {
	pool *db.Pool
}

// NewVibeRepository creates the catalog over pool.
func NewVibeRepository(pool *db.Pool) VibeRepository {
	return &gormVibeRepository{pool: pool}
}

const vibeColumns = "vb.vibe_id, vb.name, vb.vibe_group, vg.name AS group_name"

// vibeQuery selects vibes joined with their group name.
func vibeQuery(tx *gorm.DB) *gorm.DB {
	return tx.Table("vibes AS vb").
		Select(vibeColumns).
		Joins("JOIN vibe_groups AS vg ON vg.vibe_group_id = vb.vibe_group")
}

func (r *gormVibeRepository) GetByID(ctx context.Context, id int64) (*model.Vibe, error) {
	var v model.Vibe
	if err := vibeQuery(r.pool.DB(ctx)).Where("vb.vibe_id = ?", id).Take(&v).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFound("vibe", id)
		}
		return nil, wrapErr("GetVibeByID", err)
	}
	return &v, nil
}

func (r *gormVibeRepository) GetByName(ctx context.Context, name string) (*model.Vibe, error) {
	var vibes []model.Vibe
	err := vibeQuery(r.pool.DB(ctx)).Where("vb.name = ?", name).Order("vb.vibe_id").Limit(1).Find(&vibes).Error
	if err != nil {
		return nil, wrapErr("GetVibeByName", err)
	}
	if len(vibes) == 0 {
		return nil, notFound("vibe", name)
	}
	return &vibes[0], nil
}

func (r *gormVibeRepository) GetByGroupAndName(ctx context.Context, group, name string) (*model.Vibe, error) {
	var v model.Vibe
	err := vibeQuery(r.pool.DB(ctx)).Where("vg.name = ? AND vb.name = ?", group, name).Take(&v).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFound("vibe", group+"/"+name)
		}
		return nil, wrapErr("GetVibeByGroupAndName", err)
	}
	return &v, nil
}

func (r *gormVibeRepository) GetAll(ctx context.Context) ([]model.Vibe, error) {
	vibes := make([]model.Vibe, 0)
	if err := vibeQuery(r.pool.DB(ctx)).Order("vb.vibe_id").Find(&vibes).Error; err != nil {
		return nil, wrapErr("GetAllVibes", err)
	}
	return vibes, nil
}

func (r *gormVibeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.DB(ctx).Model(&model.Vibe{}).Count(&n).Error; err != nil {
		return 0, wrapErr("CountVibes", err)
	}
	return n, nil
}

func (r *gormVibeRepository) GetByTrackID(ctx context.Context, trackID int64) ([]model.Vibe, error) {
	byTrack, err := vibesByTrackIDs(r.pool.DB(ctx), []int64{trackID})
	if err != nil {
		return nil, wrapErr("GetVibesByTrackID", err)
	}
	if vibes, ok := byTrack[trackID]; ok {
		return vibes, nil
	}
	return []model.Vibe{}, nil
}

func (r *gormVibeRepository) GetByTrackIDs(ctx context.Context, trackIDs []int64) (map[int64][]model.Vibe, error) {
	byTrack, err := vibesByTrackIDs(r.pool.DB(ctx), trackIDs)
	if err != nil {
		return nil, wrapErr("GetVibesByTrackIDs", err)
	}
	return byTrack, nil
}

type trackVibeRow struct {
	TrackID   int64  `gorm:"column:track_id"`
	VibeID    int64  `gorm:"column:vibe_id"`
	Name      string `gorm:"column:name"`
	GroupID   int64  `gorm:"column:vibe_group"`
	GroupName string `gorm:"column:group_name"`
}

// vibesByTrackIDs is the bulk lookup behind every multi-track load.
func vibesByTrackIDs(tx *gorm.DB, trackIDs []int64) (map[int64][]model.Vibe, error) {
	byTrack := make(map[int64][]model.Vibe, len(trackIDs))
	if len(trackIDs) == 0 {
		return byTrack, nil
	}

	var rows []trackVibeRow
	err := tx.Table("tracks_with_vibes AS twv").
		Select("twv.track AS track_id, " + vibeColumns).
		Joins("JOIN vibes AS vb ON vb.vibe_id = twv.vibe").
		Joins("JOIN vibe_groups AS vg ON vg.vibe_group_id = vb.vibe_group").
		Where("twv.track IN ?", trackIDs).
		Order("twv.track, vb.vibe_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		byTrack[row.TrackID] = append(byTrack[row.TrackID], model.Vibe{
			ID:        row.VibeID,
			Name:      row.Name,
			GroupID:   row.GroupID,
			GroupName: row.GroupName,
		})
	}
	return byTrack, nil
}

func (r *gormVibeRepository) ResolveRefs(ctx context.Context, refs []model.VibeRef) ([]model.Vibe, []model.VibeRef, error) {
	vibes, missing, err := resolveVibeRefs(r.pool.DB(ctx), refs)
	if err != nil {
		return nil, nil, wrapErr("ResolveVibeRefs", err)
	}
	return vibes, missing, nil
}

// resolveVibeRefs looks refs up with at most two queries: one by id, one by
// group/name pairs. Duplicate refs resolve to a single vibe.
func resolveVibeRefs(tx *gorm.DB, refs []model.VibeRef) ([]model.Vibe, []model.VibeRef, error) {
	if len(refs) == 0 {
		return nil, nil, nil
	}

	var ids []int64
	var pairClauses []string
	var pairArgs []any
	for _, ref := range refs {
		if ref.ByID() {
			ids = append(ids, ref.ID)
			continue
		}
		pairClauses = append(pairClauses, "(vg.name = ? AND vb.name = ?)")
		pairArgs = append(pairArgs, ref.Group, ref.Name)
	}

	var found []model.Vibe
	if len(ids) > 0 {
		var byID []model.Vibe
		if err := vibeQuery(tx).Where("vb.vibe_id IN ?", ids).Find(&byID).Error; err != nil {
			return nil, nil, err
		}
		found = append(found, byID...)
	}
	if len(pairClauses) > 0 {
		var byPair []model.Vibe
		err := vibeQuery(tx).Where(strings.Join(pairClauses, " OR "), pairArgs...).Find(&byPair).Error
		if err != nil {
			return nil, nil, err
		}
		found = append(found, byPair...)
	}

	seen := make(map[int64]bool, len(found))
	resolved := make([]model.Vibe, 0, len(found))
	var missing []model.VibeRef
	for _, ref := range refs {
		v, ok := matchRef(found, ref)
		if !ok {
			missing = append(missing, ref)
			continue
		}
		if !seen[v.ID] {
			seen[v.ID] = true
			resolved = append(resolved, v)
		}
	}
	return resolved, missing, nil
}

func matchRef(vibes []model.Vibe, ref model.VibeRef) (model.Vibe, bool) {
	for _, v := range vibes {
		if ref.ByID() && v.ID == ref.ID {
			return v, true
		}
		if !ref.ByID() && v.GroupName == ref.Group && v.Name == ref.Name {
			return v, true
		}
	}
	return model.Vibe{}, false
}

func (r *gormVibeRepository) GetGroupByID(ctx context.Context, id int64) (*model.VibeGroupFull, error) {
	return r.getGroup(ctx, "GetVibeGroupByID", "vibe_group_id = ?", id)
}

func (r *gormVibeRepository) GetGroupByName(ctx context.Context, name string) (*model.VibeGroupFull, error) {
	return r.getGroup(ctx, "GetVibeGroupByName", "name = ?", name)
}

func (r *gormVibeRepository) getGroup(ctx context.Context, op, cond string, key any) (*model.VibeGroupFull, error) {
	tx := r.pool.DB(ctx)

	var group model.VibeGroup
	if err := tx.Where(cond, key).Take(&group).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFound("vibe group", key)
		}
		return nil, wrapErr(op, err)
	}

	vibes := make([]model.Vibe, 0)
	if err := vibeQuery(tx).Where("vb.vibe_group = ?", group.ID).Order("vb.vibe_id").Find(&vibes).Error; err != nil {
		return nil, wrapErr(op, err)
	}
	return &model.VibeGroupFull{Group: group, Vibes: vibes}, nil
}

func (r *gormVibeRepository) GetAllGroups(ctx context.Context) ([]model.VibeGroupFull, error) {
	tx := r.pool.DB(ctx)

	var groups []model.VibeGroup
	if err := tx.Order("vibe_group_id").Find(&groups).Error; err != nil {
		return nil, wrapErr("GetAllVibeGroups", err)
	}
	if len(groups) == 0 {
		return []model.VibeGroupFull{}, nil
	}

	groupIDs := make([]int64, len(groups))
	for i, g := range groups {
		groupIDs[i] = g.ID
	}

	var vibes []model.Vibe
	if err := vibeQuery(tx).Where("vb.vibe_group IN ?", groupIDs).Order("vb.vibe_id").Find(&vibes).Error; err != nil {
		return nil, wrapErr("GetAllVibeGroups", err)
	}

	byGroup := make(map[int64][]model.Vibe, len(groups))
	for _, v := range vibes {
		byGroup[v.GroupID] = append(byGroup[v.GroupID], v)
	}

	full := make([]model.VibeGroupFull, 0, len(groups))
	for _, g := range groups {
		groupVibes := byGroup[g.ID]
		if groupVibes == nil {
			groupVibes = []model.Vibe{}
		}
		full = append(full, model.VibeGroupFull{Group: g, Vibes: groupVibes})
	}
	return full, nil
}

func (r *gormVibeRepository) CountGroups(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.DB(ctx).Model(&model.VibeGroup{}).Count(&n).Error; err != nil {
		return 0, wrapErr("CountVibeGroups", err)
	}
	return n, nil
}

func (r *gormVibeRepository) EnsureVibe(ctx context.Context, group, name string) (*model.Vibe, error) {
	if strings.TrimSpace(group) == "" || strings.TrimSpace(name) == "" {
		return nil, invalid("vibe group and name are required")
	}

	var vibe model.Vibe
	err := r.pool.Transaction(ctx, func(tx *gorm.DB) error {
		g := model.VibeGroup{Name: group}
		if err := tx.Where(model.VibeGroup{Name: group}).FirstOrCreate(&g).Error; err != nil {
			return err
		}
		vibe = model.Vibe{Name: name, GroupID: g.ID}
		if err := tx.Where(model.Vibe{Name: name, GroupID: g.ID}).FirstOrCreate(&vibe).Error; err != nil {
			return err
		}
		vibe.GroupName = g.Name
		return nil
	})
	if err != nil {
		return nil, wrapErr("EnsureVibe", err)
	}
	return &vibe, nil
}
