package server

import (
	"VibingStorage/model"
)

// ResponseVibe is a vibe as rendered to clients.
type ResponseVibe struct {
	ID        int64  `json:"id"`
	GroupName string `json:"group_name"`
	Name      string `json:"name"`
}

// ResponseTrack is a track with its vibes and derived rating.
type ResponseTrack struct {
	ID            int64          `json:"id"`
	Path          string         `json:"path"`
	Title         *string        `json:"title"`
	Author        *string        `json:"author"`
	Genre         *string        `json:"genre"`
	Duration      *int           `json:"duration"`
	Vibes         []ResponseVibe `json:"vibes"`
	AverageRating float64        `json:"average_rating"`
	VoteCount     int            `json:"vote_count"`
	DownloadCount int            `json:"download_count"`
}

// ResponseTrackPage is one page of a filtered listing.
type ResponseTrackPage struct {
	Items      []ResponseTrack `json:"items"`
	TotalItems int64           `json:"total_items"`
	TotalPage  int             `json:"total_page"`
	PageNum    int             `json:"page_num"`
	PageSize   int             `json:"page_size"`
}

// ResponseVibeGroup is a group and every vibe in it.
type ResponseVibeGroup struct {
	ID    int64          `json:"id"`
	Name  string         `json:"name"`
	Vibes []ResponseVibe `json:"vibes"`
}

// PatchTrackRequest is the body of PATCH /tracks. Absent fields are left unchanged.
type PatchTrackRequest struct {
	ID          int64           `json:"id"`
	Path        *string         `json:"path"`
	Title       *string         `json:"title"`
	Author      *string         `json:"author"`
	Genre       *string         `json:"genre"`
	Duration    *int            `json:"duration"`
	Rating      *int            `json:"rating"`
	AddVibes    []model.VibeRef `json:"add_vibes"`
	RemoveVibes []model.VibeRef `json:"remove_vibes"`
}

// Patch converts the request into a catalog patch.
func (req *PatchTrackRequest) Patch() model.TrackPatch {
	return model.TrackPatch{
		Path:        req.Path,
		Title:       req.Title,
		Author:      req.Author,
		Genre:       req.Genre,
		Duration:    req.Duration,
		NewVote:     req.Rating,
		AddVibes:    req.AddVibes,
		RemoveVibes: req.RemoveVibes,
	}
}

// VoteRequest is the body of POST /tracks/vote.
type VoteRequest struct {
	TrackID int64 `json:"track_id"`
	Rating  int   `json:"rating"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func toResponseVibes(vibes []model.Vibe) []ResponseVibe {
	out := make([]ResponseVibe, 0, len(vibes))
	for _, v := range vibes {
		out = append(out, ResponseVibe{ID: v.ID, GroupName: v.GroupName, Name: v.Name})
	}
	return out
}

func toResponseTrack(t *model.TrackFull) ResponseTrack {
	return ResponseTrack{
		ID:            t.Track.ID,
		Path:          t.Track.Path,
		Title:         t.Track.Title,
		Author:        t.Track.Author,
		Genre:         t.Track.Genre,
		Duration:      t.Track.Duration,
		Vibes:         toResponseVibes(t.Vibes),
		AverageRating: t.Track.AverageRating(),
		VoteCount:     t.Track.VoteCount,
		DownloadCount: t.Track.DownloadCount,
	}
}

func toResponsePage(p *model.Page[model.TrackFull]) ResponseTrackPage {
	items := make([]ResponseTrack, 0, len(p.Items))
	for i := range p.Items {
		items = append(items, toResponseTrack(&p.Items[i]))
	}
	return ResponseTrackPage{
		Items:      items,
		TotalItems: p.TotalItems,
		TotalPage:  p.TotalPage,
		PageNum:    p.PageNum,
		PageSize:   p.PageSize,
	}
}
