package model

// Track is the persisted row for one audio file and its running statistics.
type Track struct {
	ID            int64   `gorm:"column:track_id;primaryKey;autoIncrement" json:"id"`
	Path          string  `gorm:"column:path;type:varchar(512);not null;uniqueIndex:idx_tracks_path" json:"path"`
	Title         *string `gorm:"column:title;type:varchar(255);index:idx_tracks_title" json:"title"`
	Author        *string `gorm:"column:author;type:varchar(255);index:idx_tracks_author" json:"author"`
	Genre         *string `gorm:"column:genre;type:varchar(128)" json:"genre"`
	Duration      *int    `gorm:"column:duration" json:"duration"` // seconds
	VoteCount     int     `gorm:"column:vote_count;not null;default:0" json:"voteCount"`
	TotalRating   int64   `gorm:"column:total_rating;not null;default:0" json:"totalRating"`
	DownloadCount int     `gorm:"column:download_count;not null;default:0" json:"downloadCount"`
}

func (Track) TableName() string { return "tracks" }

// AverageRating returns total_rating / vote_count, or 0 for an unrated track.
func (t *Track) AverageRating() float64 {
	if t.VoteCount <= 0 {
		return 0
	}
	return float64(t.TotalRating) / float64(t.VoteCount)
}

// TrackFull is a track together with the vibes currently attached to it.
type TrackFull struct {
	Track Track  `json:"track"`
	Vibes []Vibe `json:"vibes"`
}

// HasVibe reports whether the vibe id is attached.
func (t *TrackFull) HasVibe(id int64) bool {
	for _, v := range t.Vibes {
		if v.ID == id {
			return true
		}
	}
	return false
}

// TrackMetadata is the input for creating a track. Only Path is required.
type TrackMetadata struct {
	Path     string  `json:"path"`
	Title    *string `json:"title,omitempty"`
	Author   *string `json:"author,omitempty"`
	Genre    *string `json:"genre,omitempty"`
	Duration *int    `json:"duration,omitempty"`
}

// FillMissing copies every field absent from m but present in other.
func (m *TrackMetadata) FillMissing(other TrackMetadata) {
	if m.Title == nil && other.Title != nil {
		m.Title = other.Title
	}
	if m.Author == nil && other.Author != nil {
		m.Author = other.Author
	}
	if m.Genre == nil && other.Genre != nil {
		m.Genre = other.Genre
	}
	if m.Duration == nil && other.Duration != nil {
		m.Duration = other.Duration
	}
}

// Sort keys accepted by the track query. Anything else is ignored.
const (
	OrderByRating         = "rating"
	OrderByMostDownloaded = "most-downloaded"
)

// TrackFilter narrows a track listing. Zero values mean "no constraint".
type TrackFilter struct {
	Pattern *string  `json:"pattern,omitempty"` // case-insensitive substring of title or author
	Author  *string  `json:"author,omitempty"`  // exact author
	Vibes   []string `json:"vibes,omitempty"`   // vibe names, any of
	Limit   *int     `json:"limit,omitempty"`
	OrderBy string   `json:"orderBy,omitempty"`
}

// TrackPatch is a sparse set of changes to a TrackFull. Nil means unchanged.
type TrackPatch struct {
	Path        *string   `json:"path,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Author      *string   `json:"author,omitempty"`
	Genre       *string   `json:"genre,omitempty"`
	Duration    *int      `json:"duration,omitempty"`
	NewVote     *int      `json:"newVote,omitempty"` // 0-255
	NewDownload bool      `json:"newDownload,omitempty"`
	AddVibes    []VibeRef `json:"addVibes,omitempty"`
	RemoveVibes []VibeRef `json:"removeVibes,omitempty"`
}

// HasTrackChanges reports whether the patch touches the tracks row at all.
func (p *TrackPatch) HasTrackChanges() bool {
	return p.Path != nil || p.Title != nil || p.Author != nil || p.Genre != nil ||
		p.Duration != nil || p.NewVote != nil || p.NewDownload
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
