package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"strings"

	"VibingStorage/cache"
	"VibingStorage/config"
	"VibingStorage/core/auth"
	"VibingStorage/logger"
	"VibingStorage/model"
	"VibingStorage/repository"
	"VibingStorage/storage"

	"github.com/gorilla/mux"
)

const (
	defaultPageSize = 20
	maxUploadSize   = 200 << 20
	maxVote         = 255
)

// APIHandler 处理所有API请求
type APIHandler struct {
	tracks    repository.TrackRepository
	vibes     repository.VibeRepository
	store     storage.Provider
	extractor repository.MetadataExtractor
	guard     cache.VoteGuard
	tokens    *auth.TokenManager // nil when admin auth is off
	cfg       *config.Config
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	tracks repository.TrackRepository,
	vibes repository.VibeRepository,
	store storage.Provider,
	extractor repository.MetadataExtractor,
	guard cache.VoteGuard,
	cfg *config.Config,
) *APIHandler {
	h := &APIHandler{
		tracks:    tracks,
		vibes:     vibes,
		store:     store,
		extractor: extractor,
		guard:     guard,
		cfg:       cfg,
	}
	if cfg.AuthEnabled() {
		h.tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	}
	return h
}

func (h *APIHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "hello viber!")
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, repository.ErrValidation)
	}
	return v, nil
}

// queryID parses a required positive id query parameter.
func queryID(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, fmt.Errorf("%s is required: %w", key, repository.ErrValidation)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%s must be a positive integer: %w", key, repository.ErrValidation)
	}
	return id, nil
}

// pageParams reads pattern, author, vibes, limit, order_by, page and size.
func pageParams(r *http.Request) (model.TrackPageParams, error) {
	q := r.URL.Query()
	params := model.TrackPageParams{
		Filter: model.TrackFilter{
			Vibes:   q["vibes"],
			OrderBy: q.Get("order_by"),
		},
	}
	if v := q.Get("pattern"); v != "" {
		params.Filter.Pattern = &v
	}
	if v := q.Get("author"); v != "" {
		params.Filter.Author = &v
	}
	if q.Get("limit") != "" {
		limit, err := queryInt(r, "limit", 0)
		if err != nil {
			return params, err
		}
		params.Filter.Limit = &limit
	}

	var err error
	if params.PageNum, err = queryInt(r, "page", 1); err != nil {
		return params, err
	}
	if params.PageSize, err = queryInt(r, "size", defaultPageSize); err != nil {
		return params, err
	}
	return params, nil
}

// GetTracksHandler serves one page of the filtered catalog.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	params, err := pageParams(r)
	if err != nil {
		writeError(w, "GetTracks", err)
		return
	}

	page, err := h.tracks.Page(r.Context(), params)
	if err != nil {
		writeError(w, "GetTracks", err)
		return
	}
	writeJSON(w, http.StatusOK, toResponsePage(page))
}

func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid track ID", http.StatusBadRequest)
		return
	}

	track, err := h.tracks.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, "GetTrack", err)
		return
	}
	writeJSON(w, http.StatusOK, toResponseTrack(track))
}

// PatchTrackHandler applies a sparse update to one track.
func (h *APIHandler) PatchTrackHandler(w http.ResponseWriter, r *http.Request) {
	var req PatchTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	track, err := h.tracks.GetByID(r.Context(), req.ID)
	if err != nil {
		writeError(w, "PatchTrack", err)
		return
	}

	updated, err := h.tracks.ApplyPatch(r.Context(), track, req.Patch())
	if err != nil {
		writeError(w, "PatchTrack", err)
		return
	}

	logger.Info("[PatchTrack] track updated",
		logger.Int64("trackId", updated.Track.ID),
		logger.String("admin", usernameFrom(r.Context())))
	writeJSON(w, http.StatusOK, toResponseTrack(updated))
}

// DeleteTrackHandler removes a track chosen by ?id= or, failing that, ?title=.
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		track *model.TrackFull
		err   error
	)
	switch {
	case q.Get("id") != "":
		var id int64
		if id, err = queryID(r, "id"); err == nil {
			track, err = h.tracks.GetByID(r.Context(), id)
		}
	case q.Get("title") != "":
		track, err = h.tracks.GetByTitle(r.Context(), q.Get("title"))
	default:
		http.Error(w, "id or title is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, "DeleteTrack", err)
		return
	}

	id := track.Track.ID
	if err := h.tracks.Remove(r.Context(), track); err != nil {
		writeError(w, "DeleteTrack", err)
		return
	}

	logger.Info("[DeleteTrack] track removed",
		logger.Int64("trackId", id),
		logger.String("admin", usernameFrom(r.Context())))
	w.WriteHeader(http.StatusOK)
}

// clientID identifies a voter by the peer address. The first X-Forwarded-For
// hop is used only when the server sits behind a trusted proxy, since any
// client can set the header.
func clientID(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// VoteHandler records one rating, at most once per client and track per cooldown.
func (h *APIHandler) VoteHandler(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Rating < 0 || req.Rating > maxVote {
		http.Error(w, fmt.Sprintf("rating must be between 0 and %d", maxVote), http.StatusBadRequest)
		return
	}

	track, err := h.tracks.GetByID(r.Context(), req.TrackID)
	if err != nil {
		writeError(w, "Vote", err)
		return
	}

	client := clientID(r, h.cfg.TrustProxy)
	allowed, err := h.guard.Allow(r.Context(), track.Track.ID, client)
	if err != nil {
		logger.Warn("[Vote] vote guard unavailable, accepting vote",
			logger.Int64("trackId", track.Track.ID), logger.ErrorField(err))
		allowed = true
	}
	if !allowed {
		http.Error(w, "Vote already recorded, try again later", http.StatusTooManyRequests)
		return
	}

	updated, err := h.tracks.ApplyPatch(r.Context(), track, model.TrackPatch{NewVote: &req.Rating})
	if err != nil {
		// The vote was not counted, so it must not hold a cooldown.
		if ferr := h.guard.Forget(r.Context(), track.Track.ID, client); ferr != nil {
			logger.Warn("[Vote] failed to release vote cooldown",
				logger.Int64("trackId", track.Track.ID), logger.ErrorField(ferr))
		}
		writeError(w, "Vote", err)
		return
	}
	writeJSON(w, http.StatusOK, toResponseTrack(updated))
}

// DownloadHandler sends the file as an attachment and counts one download.
func (h *APIHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	h.serveTrackFile(w, r, true)
}

// StreamHandler sends the file for in-browser playback.
func (h *APIHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	h.serveTrackFile(w, r, false)
}

func (h *APIHandler) serveTrackFile(w http.ResponseWriter, r *http.Request, download bool) {
	op := "Stream"
	if download {
		op = "Download"
	}

	id, err := queryID(r, "track_id")
	if err != nil {
		writeError(w, op, err)
		return
	}
	track, err := h.tracks.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, op, err)
		return
	}

	file, err := h.store.Open(r.Context(), track.Track.Path)
	if err != nil {
		writeError(w, op, err)
		return
	}
	defer file.Body.Close()

	if download {
		if _, err := h.tracks.ApplyPatch(r.Context(), track, model.TrackPatch{NewDownload: true}); err != nil {
			writeError(w, op, err)
			return
		}
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	w.Header().Set("Content-Type", file.ContentType)

	// Seekable bodies get Range support.
	if rs, ok := file.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, file.Name, file.ModTime, rs)
		return
	}
	if file.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	if _, err := io.Copy(w, file.Body); err != nil {
		logger.Warn("["+op+"] copy interrupted", logger.Int64("trackId", id), logger.ErrorField(err))
	}
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)

// uploadKey cleans a client supplied storage path. Only relative paths
// inside the store are accepted.
func uploadKey(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("path must be relative: %w", repository.ErrValidation)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path escapes the library: %w", repository.ErrValidation)
	}
	return cleaned, nil
}

// safeFileName strips everything but a conservative character set.
func safeFileName(name string) string {
	name = unsafeNameChars.ReplaceAllString(strings.ReplaceAll(path.Base(name), " ", "_"), "")
	if strings.Trim(name, ".") == "" {
		return "upload"
	}
	return name
}

// UploadTrackHandler registers a track. A JSON body names a file already in
// the store; a multipart body carries the file itself in the "file" field.
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	var (
		meta   model.TrackMetadata
		stored bool // the file was written by this request
		err    error
	)
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "multipart/form-data" {
		meta, err = h.receiveUpload(w, r)
		stored = err == nil
	} else {
		meta, err = h.decodeUploadJSON(r)
	}
	if err != nil {
		writeError(w, "Upload", err)
		return
	}

	track, err := h.tracks.CreateWithDefaults(r.Context(), meta, h.extractor)
	if err != nil {
		if stored {
			h.discardUpload(r.Context(), meta.Path)
		}
		writeError(w, "Upload", err)
		return
	}

	logger.Info("[Upload] track registered",
		logger.Int64("trackId", track.Track.ID),
		logger.String("path", track.Track.Path),
		logger.String("admin", usernameFrom(r.Context())))
	writeJSON(w, http.StatusCreated, toResponseTrack(track))
}

// claimUploadKey fails with a constraint error when key is already a track or
// a stored file, so an upload never replaces audio it did not write.
func (h *APIHandler) claimUploadKey(ctx context.Context, key string) error {
	conflict := func(what string) error {
		return &repository.PersistenceError{
			Op:   "Upload",
			Kind: repository.KindConstraint,
			Err:  fmt.Errorf("%s %s already exists", what, key),
		}
	}

	if _, err := h.tracks.GetByPath(ctx, key); err == nil {
		return conflict("track")
	} else if !repository.IsNotFound(err) {
		return err
	}

	file, err := h.store.Open(ctx, key)
	if err == nil {
		file.Body.Close()
		return conflict("file")
	}
	if !errors.Is(err, storage.ErrNotExist) {
		return err
	}
	return nil
}

// discardUpload removes a file whose track could not be created.
func (h *APIHandler) discardUpload(ctx context.Context, key string) {
	if err := h.store.Delete(ctx, key); err != nil {
		logger.Error("[Upload] failed to remove orphaned file",
			logger.String("path", key), logger.ErrorField(err))
		return
	}
	logger.Debug("[Upload] removed orphaned file", logger.String("path", key))
}

func (h *APIHandler) decodeUploadJSON(r *http.Request) (model.TrackMetadata, error) {
	var meta model.TrackMetadata
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		return meta, fmt.Errorf("invalid request body: %w", repository.ErrValidation)
	}
	key, err := uploadKey(meta.Path)
	if err != nil {
		return meta, err
	}
	meta.Path = key

	// The file must already be stored.
	file, err := h.store.Open(r.Context(), key)
	if err != nil {
		return meta, err
	}
	file.Body.Close()
	return meta, nil
}

func (h *APIHandler) receiveUpload(w http.ResponseWriter, r *http.Request) (model.TrackMetadata, error) {
	var meta model.TrackMetadata

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return meta, fmt.Errorf("invalid multipart form: %v: %w", err, repository.ErrValidation)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return meta, fmt.Errorf("file field is required: %w", repository.ErrValidation)
	}
	defer file.Close()

	key := r.FormValue("path")
	if key == "" {
		key = safeFileName(header.Filename)
	}
	if key, err = uploadKey(key); err != nil {
		return meta, err
	}
	if !storage.IsAudioFile(key) {
		return meta, fmt.Errorf("%s is not an audio file: %w", key, repository.ErrValidation)
	}

	meta.Path = key
	if v := r.FormValue("title"); v != "" {
		meta.Title = &v
	}
	if v := r.FormValue("author"); v != "" {
		meta.Author = &v
	}
	if v := r.FormValue("genre"); v != "" {
		meta.Genre = &v
	}
	if v := r.FormValue("duration"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			return meta, fmt.Errorf("duration must be an integer: %w", repository.ErrValidation)
		}
		meta.Duration = &d
	}

	if err := h.claimUploadKey(r.Context(), key); err != nil {
		return meta, err
	}
	if err := h.store.Save(r.Context(), key, file, header.Size); err != nil {
		return meta, fmt.Errorf("save %s: %w", key, err)
	}
	return meta, nil
}
