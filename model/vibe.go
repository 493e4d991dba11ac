package model

// VibeGroup is a named category of vibes.
type VibeGroup struct {
	ID   int64  `gorm:"column:vibe_group_id;primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;type:varchar(128);not null;uniqueIndex:idx_vibe_groups_name" json:"name"`
}

func (VibeGroup) TableName() string { return "vibe_groups" }

// Vibe is a tag that can be attached to tracks. GroupName is never stored
// on the vibes row; it is joined in from vibe_groups on every read.
type Vibe struct {
	ID        int64  `gorm:"column:vibe_id;primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"column:name;type:varchar(128);not null;uniqueIndex:idx_vibes_group_name,priority:2" json:"name"`
	GroupID   int64  `gorm:"column:vibe_group;not null;uniqueIndex:idx_vibes_group_name,priority:1" json:"-"`
	GroupName string `gorm:"->;-:migration" json:"groupName"`
}

func (Vibe) TableName() string { return "vibes" }

// VibeGroupFull is a group with all of its vibes.
type VibeGroupFull struct {
	Group VibeGroup `json:"group"`
	Vibes []Vibe    `json:"vibes"`
}

// TrackVibe is one row of the track <-> vibe association.
type TrackVibe struct {
	TrackID int64 `gorm:"column:track;primaryKey;autoIncrement:false;index:idx_twv_track"`
	VibeID  int64 `gorm:"column:vibe;primaryKey;autoIncrement:false;index:idx_twv_vibe"`
}

func (TrackVibe) TableName() string { return "tracks_with_vibes" }

// VibeRef names a vibe either by id or by its group/name pair. A non-zero ID wins.
type VibeRef struct {
	ID    int64  `json:"id,omitempty"`
	Group string `json:"group,omitempty"`
	Name  string `json:"name,omitempty"`
}

// ByID reports whether the reference is resolved by identifier.
func (r VibeRef) ByID() bool { return r.ID != 0 }
