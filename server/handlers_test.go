package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"VibingStorage/cache"
	"VibingStorage/config"
	"VibingStorage/core/audio"
	"VibingStorage/core/auth"
	"VibingStorage/db"
	"VibingStorage/model"
	"VibingStorage/repository"
	"VibingStorage/storage"
)

type testEnv struct {
	router http.Handler
	tracks repository.TrackRepository
	vibes  repository.VibeRepository
	store  *storage.Local
}

func testConfig() *config.Config {
	return &config.Config{
		AllowedOrigins: []string{"http://localhost:3000"},
		AdminUsername:  "admin",
		TokenTTL:       time.Hour,
	}
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	return newTestEnvWith(t, cfg, nil)
}

// newTestEnvWith lets a test wrap the track repository the handler sees.
func newTestEnvWith(t *testing.T, cfg *config.Config, wrap func(repository.TrackRepository) repository.TrackRepository) *testEnv {
	t.Helper()

	pool, err := db.OpenSQLite(filepath.Join(t.TempDir(), "server_test.sqlite3"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pool.Close() })
	if err := pool.AutoMigrate(); err != nil {
		t.Fatal(err)
	}

	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		tracks: repository.NewTrackRepository(pool),
		vibes:  repository.NewVibeRepository(pool),
		store:  store,
	}
	tracks := env.tracks
	if wrap != nil {
		tracks = wrap(tracks)
	}
	h := NewAPIHandler(tracks, env.vibes, store, audio.NewID3Extractor(store.Root()),
		cache.NewMemoryVoteGuard(time.Minute), cfg)
	env.router = NewRouter(h)
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// doFrom sends a JSON request from the given peer address.
func (e *testEnv) doFrom(t *testing.T, remoteAddr, method, target string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(buf))
	req.RemoteAddr = remoteAddr
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/tracks/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) readFile(t *testing.T, key string) string {
	t.Helper()
	f, err := e.store.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("open %s: %v", key, err)
	}
	defer f.Body.Close()
	b, err := io.ReadAll(f.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func (e *testEnv) storeFile(t *testing.T, key, content string) {
	t.Helper()
	if err := e.store.Save(context.Background(), key, strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) createTrack(t *testing.T, path, title string) *model.TrackFull {
	t.Helper()
	track, err := e.tracks.Create(context.Background(), model.TrackMetadata{Path: path, Title: model.Ptr(title)})
	if err != nil {
		t.Fatalf("Create(%s): %v", path, err)
	}
	return track
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestRootHandler(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rec := env.do(t, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "hello viber!" {
		t.Errorf("GET / = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestGetTracksHandler(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	for i, title := range []string{"alpha", "beta", "gamma"} {
		track := env.createTrack(t, title+".mp3", title)
		for j := 0; j < i; j++ {
			if _, err := env.tracks.ApplyPatch(ctx, track, model.TrackPatch{NewDownload: true}); err != nil {
				t.Fatal(err)
			}
		}
	}

	rec := env.do(t, http.MethodGet, "/tracks?order_by=most-downloaded&page=1&size=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	page := decode[ResponseTrackPage](t, rec)
	if page.TotalItems != 3 || page.TotalPage != 2 || len(page.Items) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if *page.Items[0].Title != "gamma" || page.Items[0].DownloadCount != 2 {
		t.Errorf("first item = %+v, want gamma with 2 downloads", page.Items[0])
	}

	rec = env.do(t, http.MethodGet, "/tracks?pattern=ALP", nil)
	page = decode[ResponseTrackPage](t, rec)
	if len(page.Items) != 1 || *page.Items[0].Title != "alpha" {
		t.Errorf("pattern page = %+v", page)
	}
	if page.PageSize != defaultPageSize || page.PageNum != 1 {
		t.Errorf("defaults = %d/%d", page.PageNum, page.PageSize)
	}
}

func TestGetTracksHandler_BadParams(t *testing.T) {
	env := newTestEnv(t, testConfig())

	for _, target := range []string{"/tracks?size=0", "/tracks?page=-1", "/tracks?page=abc", "/tracks?limit=-2"} {
		if rec := env.do(t, http.MethodGet, target, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", target, rec.Code)
		}
	}
}

func TestGetTrackHandler(t *testing.T) {
	env := newTestEnv(t, testConfig())
	track := env.createTrack(t, "one.mp3", "one")

	rec := env.do(t, http.MethodGet, "/tracks/"+itoa(track.Track.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[ResponseTrack](t, rec)
	if got.ID != track.Track.ID || got.Path != "one.mp3" || got.Vibes == nil {
		t.Errorf("track = %+v", got)
	}

	if rec := env.do(t, http.MethodGet, "/tracks/999", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing track status = %d", rec.Code)
	}
}

func TestPatchTrackHandler(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	track := env.createTrack(t, "one.mp3", "one")
	if _, err := env.vibes.EnsureVibe(ctx, "mood", "chill"); err != nil {
		t.Fatal(err)
	}

	body := map[string]interface{}{
		"id":        track.Track.ID,
		"title":     "renamed",
		"add_vibes": []map[string]string{{"group": "mood", "name": "chill"}},
	}
	rec := env.do(t, http.MethodPatch, "/tracks", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[ResponseTrack](t, rec)
	if *got.Title != "renamed" || len(got.Vibes) != 1 || got.Vibes[0].Name != "chill" || got.Vibes[0].GroupName != "mood" {
		t.Errorf("patched = %+v", got)
	}

	body = map[string]interface{}{"id": track.Track.ID, "rating": 300}
	if rec := env.do(t, http.MethodPatch, "/tracks", body); rec.Code != http.StatusBadRequest {
		t.Errorf("out of range rating status = %d", rec.Code)
	}

	body = map[string]interface{}{"id": 999, "title": "x"}
	if rec := env.do(t, http.MethodPatch, "/tracks", body); rec.Code != http.StatusNotFound {
		t.Errorf("missing track status = %d", rec.Code)
	}
}

func TestDeleteTrackHandler(t *testing.T) {
	env := newTestEnv(t, testConfig())
	one := env.createTrack(t, "one.mp3", "one")
	env.createTrack(t, "two.mp3", "two")

	if rec := env.do(t, http.MethodDelete, "/tracks", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("no target status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/tracks?id="+itoa(one.Track.ID), nil); rec.Code != http.StatusOK {
		t.Errorf("delete by id status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/tracks?title=two", nil); rec.Code != http.StatusOK {
		t.Errorf("delete by title status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/tracks?title=two", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", rec.Code)
	}
	if n, _ := env.tracks.Count(context.Background()); n != 0 {
		t.Errorf("Count = %d after deletes", n)
	}
}

func TestVoteHandler(t *testing.T) {
	env := newTestEnv(t, testConfig())
	track := env.createTrack(t, "one.mp3", "one")

	rec := env.do(t, http.MethodPost, "/tracks/vote", VoteRequest{TrackID: track.Track.ID, Rating: 4})
	if rec.Code != http.StatusOK {
		t.Fatalf("first vote status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decode[ResponseTrack](t, rec); got.AverageRating != 4 || got.VoteCount != 1 {
		t.Errorf("after vote = %+v", got)
	}

	rec = env.do(t, http.MethodPost, "/tracks/vote", VoteRequest{TrackID: track.Track.ID, Rating: 2})
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("repeat vote status = %d, want 429", rec.Code)
	}

	// Without a trusted proxy the header is ignored and the peer is still limited.
	rec = env.do(t, http.MethodPost, "/tracks/vote", VoteRequest{TrackID: track.Track.ID, Rating: 2},
		"X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("forwarded-for vote status = %d, want 429", rec.Code)
	}

	// A different peer is not limited.
	rec = env.doFrom(t, "198.51.100.20:4000", http.MethodPost, "/tracks/vote", VoteRequest{TrackID: track.Track.ID, Rating: 2})
	if rec.Code != http.StatusOK {
		t.Errorf("other client status = %d", rec.Code)
	}
	if got := decode[ResponseTrack](t, rec); got.AverageRating != 3 {
		t.Errorf("average = %v, want 3", got.AverageRating)
	}

	if rec := env.do(t, http.MethodPost, "/tracks/vote", VoteRequest{TrackID: track.Track.ID, Rating: 256}); rec.Code != http.StatusBadRequest {
		t.Errorf("out of range status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/tracks/vote", VoteRequest{TrackID: 999, Rating: 1}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown track status = %d", rec.Code)
	}
}

func TestVoteHandler_TrustProxy(t *testing.T) {
	cfg := testConfig()
	cfg.TrustProxy = true
	env := newTestEnv(t, cfg)
	track := env.createTrack(t, "one.mp3", "one")
	vote := VoteRequest{TrackID: track.Track.ID, Rating: 5}

	if rec := env.do(t, http.MethodPost, "/tracks/vote", vote, "X-Forwarded-For", "203.0.113.1"); rec.Code != http.StatusOK {
		t.Fatalf("first client status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/tracks/vote", vote, "X-Forwarded-For", "203.0.113.2, 10.0.0.1"); rec.Code != http.StatusOK {
		t.Errorf("second client behind the proxy status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/tracks/vote", vote, "X-Forwarded-For", "203.0.113.1"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("repeat client status = %d, want 429", rec.Code)
	}
}

// failingVotes fails the first n ApplyPatch calls as if the database dropped.
type failingVotes struct {
	repository.TrackRepository
	n int
}

func (f *failingVotes) ApplyPatch(ctx context.Context, track *model.TrackFull, patch model.TrackPatch) (*model.TrackFull, error) {
	if f.n > 0 {
		f.n--
		return nil, &repository.PersistenceError{Op: "ApplyTrackPatch", Kind: repository.KindConnection, Err: errors.New("connection reset")}
	}
	return f.TrackRepository.ApplyPatch(ctx, track, patch)
}

func TestVoteHandler_FailedVoteReleasesCooldown(t *testing.T) {
	env := newTestEnvWith(t, testConfig(), func(r repository.TrackRepository) repository.TrackRepository {
		return &failingVotes{TrackRepository: r, n: 1}
	})
	track := env.createTrack(t, "one.mp3", "one")
	vote := VoteRequest{TrackID: track.Track.ID, Rating: 3}

	if rec := env.do(t, http.MethodPost, "/tracks/vote", vote); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("failed vote status = %d, want 503", rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/tracks/vote", vote)
	if rec.Code != http.StatusOK {
		t.Fatalf("retry status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if got := decode[ResponseTrack](t, rec); got.VoteCount != 1 {
		t.Errorf("vote count = %d, want 1", got.VoteCount)
	}

	if rec := env.do(t, http.MethodPost, "/tracks/vote", vote); rec.Code != http.StatusTooManyRequests {
		t.Errorf("vote after a recorded one = %d, want 429", rec.Code)
	}
}

func TestDownloadAndStream(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.storeFile(t, "song.mp3", "fake audio frames")
	track := env.createTrack(t, "song.mp3", "song")
	target := "?track_id=" + itoa(track.Track.ID)

	rec := env.do(t, http.MethodGet, "/tracks/download"+target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d, body %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename=song.mp3` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != "fake audio frames" {
		t.Errorf("body = %q", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/tracks/stream"+target, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Cache-Control") != "no-cache" {
		t.Errorf("stream = %d, Cache-Control %q", rec.Code, rec.Header().Get("Cache-Control"))
	}

	got, err := env.tracks.GetByID(context.Background(), track.Track.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Track.DownloadCount != 1 {
		t.Errorf("DownloadCount = %d, want 1 (streams are not counted)", got.Track.DownloadCount)
	}

	missing := env.createTrack(t, "gone.mp3", "gone")
	if rec := env.do(t, http.MethodGet, "/tracks/download?track_id="+itoa(missing.Track.ID), nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/tracks/stream", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing track_id status = %d", rec.Code)
	}
}

func TestUploadTrackHandler_JSON(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.storeFile(t, "album/first.mp3", "not a tagged file")

	rec := env.do(t, http.MethodPost, "/tracks/upload", map[string]string{"path": "album/first.mp3", "author": "someone"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[ResponseTrack](t, rec)
	if *got.Title != "first" || *got.Author != "someone" {
		t.Errorf("created = %+v, want stem title and supplied author", got)
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"duplicate", "album/first.mp3", http.StatusConflict},
		{"missing file", "album/none.mp3", http.StatusNotFound},
		{"traversal", "../outside.mp3", http.StatusBadRequest},
		{"absolute", "/etc/passwd", http.StatusBadRequest},
		{"empty", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/tracks/upload", map[string]string{"path": tt.path})
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestUploadTrackHandler_Multipart(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.upload(t, "My Song.mp3", "uploaded frames", map[string]string{"title": "Custom", "duration": "93"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[ResponseTrack](t, rec)
	if got.Path != "My_Song.mp3" || *got.Title != "Custom" || *got.Duration != 93 {
		t.Errorf("created = %+v", got)
	}
	if content := env.readFile(t, "My_Song.mp3"); content != "uploaded frames" {
		t.Errorf("stored = %q", content)
	}
}

func TestUploadTrackHandler_MultipartKeepsExistingFiles(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.storeFile(t, "a.mp3", "original frames")
	env.createTrack(t, "a.mp3", "a")
	env.storeFile(t, "loose.mp3", "uncatalogued frames")

	tests := []struct {
		name, key, want string
	}{
		{"catalogued track", "a.mp3", "original frames"},
		{"stored file without a track", "loose.mp3", "uncatalogued frames"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.upload(t, "new.mp3", "replacement frames", map[string]string{"path": tt.key})
			if rec.Code != http.StatusConflict {
				t.Errorf("status = %d, want 409 (%s)", rec.Code, rec.Body.String())
			}
			if got := env.readFile(t, tt.key); got != tt.want {
				t.Errorf("stored = %q, want %q", got, tt.want)
			}
		})
	}

	if n, err := env.tracks.Count(context.Background()); err != nil || n != 1 {
		t.Errorf("Count = %d, %v; want 1", n, err)
	}
}

func TestUploadTrackHandler_MultipartRemovesFileOnFailure(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.upload(t, "bad.mp3", "frames", map[string]string{
		"title": "t", "author": "a", "genre": "g", "duration": "-5",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (%s)", rec.Code, rec.Body.String())
	}
	if _, err := env.store.Open(context.Background(), "bad.mp3"); !errors.Is(err, storage.ErrNotExist) {
		t.Errorf("file left behind after failed create: %v", err)
	}

	// The same name uploads cleanly afterwards.
	rec = env.upload(t, "bad.mp3", "frames", map[string]string{"duration": "5"})
	if rec.Code != http.StatusCreated {
		t.Errorf("retry status = %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestVibeHandlers(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	for _, pair := range [][2]string{{"mood", "chill"}, {"mood", "dark"}, {"tempo", "fast"}} {
		if _, err := env.vibes.EnsureVibe(ctx, pair[0], pair[1]); err != nil {
			t.Fatal(err)
		}
	}

	vibes := decode[[]ResponseVibe](t, env.do(t, http.MethodGet, "/vibes", nil))
	if len(vibes) != 3 {
		t.Errorf("vibes = %+v", vibes)
	}

	groups := decode[[]ResponseVibeGroup](t, env.do(t, http.MethodGet, "/vibe-groups", nil))
	if len(groups) != 2 {
		t.Fatalf("groups = %+v", groups)
	}
	for _, g := range groups {
		if g.Name == "mood" && len(g.Vibes) != 2 {
			t.Errorf("mood vibes = %+v", g.Vibes)
		}
	}
}

func TestAdminAuth(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.JWTSecret = "test-secret"
	cfg.AdminPasswordHash = hash
	env := newTestEnv(t, cfg)
	track := env.createTrack(t, "one.mp3", "one")
	patch := map[string]interface{}{"id": track.Track.ID, "genre": "ambient"}

	if rec := env.do(t, http.MethodPatch, "/tracks", patch); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPatch, "/tracks", patch, "Authorization", "Bearer nonsense"); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/auth/login", LoginRequest{Username: "admin", Password: "wrong"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d", rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/auth/login", LoginRequest{Username: "admin", Password: "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	token := decode[map[string]string](t, rec)["token"]

	if rec := env.do(t, http.MethodPatch, "/tracks", patch, "Authorization", "Bearer "+token); rec.Code != http.StatusOK {
		t.Errorf("authorized patch status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Reads and votes stay public.
	if rec := env.do(t, http.MethodGet, "/tracks", nil); rec.Code != http.StatusOK {
		t.Errorf("public listing status = %d", rec.Code)
	}
}

func TestLoginRouteAbsentWithoutAuth(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rec := env.do(t, http.MethodPost, "/auth/login", LoginRequest{Username: "admin", Password: "x"})
	if rec.Code == http.StatusOK {
		t.Errorf("login should not be served without JWT_SECRET")
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodOptions, "/tracks", nil, "Origin", "http://localhost:3000")
	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}

	rec = env.do(t, http.MethodGet, "/", nil, "Origin", "http://evil.example")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin allowed: %q", got)
	}
}

func TestClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	if got := clientID(req, false); got != "198.51.100.7" {
		t.Errorf("clientID = %q", got)
	}
	req.Header.Set("X-Forwarded-For", " 203.0.113.1 , 10.0.0.1")
	if got := clientID(req, false); got != "198.51.100.7" {
		t.Errorf("untrusted X-Forwarded-For used: %q", got)
	}
	if got := clientID(req, true); got != "203.0.113.1" {
		t.Errorf("clientID behind proxy = %q", got)
	}
	req.Header.Set("X-Forwarded-For", " , 10.0.0.1")
	if got := clientID(req, true); got != "198.51.100.7" {
		t.Errorf("empty first hop = %q, want peer", got)
	}
}

func TestUploadKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"a/b.mp3", "a/b.mp3", false},
		{"a//./b.mp3", "a/b.mp3", false},
		{`dir\song.mp3`, "dir/song.mp3", false},
		{"a/../../b.mp3", "", true},
		{"/abs.mp3", "", true},
		{"  ", "", true},
	}
	for _, tt := range tests {
		got, err := uploadKey(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("uploadKey(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
