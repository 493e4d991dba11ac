package server

import (
	"net/http"
)

// GetVibesHandler lists every vibe with its group name.
func (h *APIHandler) GetVibesHandler(w http.ResponseWriter, r *http.Request) {
	vibes, err := h.vibes.GetAll(r.Context())
	if err != nil {
		writeError(w, "GetVibes", err)
		return
	}
	writeJSON(w, http.StatusOK, toResponseVibes(vibes))
}

// GetVibeGroupsHandler lists every group with its vibes.
func (h *APIHandler) GetVibeGroupsHandler(w http.ResponseWriter, r *http.Request) {
	groups, err := h.vibes.GetAllGroups(r.Context())
	if err != nil {
		writeError(w, "GetVibeGroups", err)
		return
	}
	out := make([]ResponseVibeGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, ResponseVibeGroup{ID: g.Group.ID, Name: g.Group.Name, Vibes: toResponseVibes(g.Vibes)})
	}
	writeJSON(w, http.StatusOK, out)
}
