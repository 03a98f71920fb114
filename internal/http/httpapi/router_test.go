package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"

	"tailor/internal/design"
	"tailor/internal/domain"
	"tailor/internal/http/handlers"
	"tailor/internal/middleware"
	"tailor/internal/pipeline"
	"tailor/internal/queue"
	"tailor/internal/storage"
)

type fakeSessions struct {
	mu   sync.Mutex
	rows map[string]domain.Session
}

func (f *fakeSessions) Create(_ context.Context, s *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.ID] = *s
	return nil
}

func (f *fakeSessions) GetByID(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (f *fakeSessions) SaveDesignState(_ context.Context, id string, state json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.DesignState = state
	f.rows[id] = s
	return nil
}

func (f *fakeSessions) SetProductID(_ context.Context, id string, productID int64) error {
	return nil
}

type fakeArtifacts struct {
	mu   sync.Mutex
	rows map[string]domain.Artifact
}

func (f *fakeArtifacts) Create(_ context.Context, a *domain.Artifact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[a.ID] = *a
	return nil
}

func (f *fakeArtifacts) GetByID(_ context.Context, id string) (*domain.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (f *fakeArtifacts) ListBySession(_ context.Context, sessionID string) ([]domain.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Artifact
	for _, a := range f.rows {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

type fakeJobs struct {
	mu   sync.Mutex
	rows map[string]domain.Job
	// onCreate, when set, runs before a job is stored.
	onCreate func(domain.Job)
}

func (f *fakeJobs) Create(_ context.Context, j *domain.Job) error {
	f.mu.Lock()
	hook := f.onCreate
	f.mu.Unlock()
	if hook != nil {
		hook(*j)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[j.ID] = *j
	return nil
}

func (f *fakeJobs) GetByID(_ context.Context, id string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

func (f *fakeJobs) MarkRunning(context.Context, string) error               { return nil }
func (f *fakeJobs) Complete(context.Context, string, json.RawMessage) error { return nil }
func (f *fakeJobs) Fail(context.Context, string, string) error              { return nil }
func (f *fakeJobs) ClaimPending(context.Context) (*domain.Job, error)       { return nil, domain.ErrNotFound }

type fakeMessages struct {
	mu   sync.Mutex
	rows []domain.Message
}

func (f *fakeMessages) Create(_ context.Context, m *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *m)
	return nil
}

func (f *fakeMessages) ListBySession(_ context.Context, sessionID string, _ int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for _, m := range f.rows {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *fakeStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (s *fakeStore) PublicURL(key string) string { return "https://cdn.test/" + key }

type testServer struct {
	*httptest.Server
	sessions  *fakeSessions
	artifacts *fakeArtifacts
	jobs      *fakeJobs
	messages  *fakeMessages
	store     *fakeStore
	queue     *queue.MemoryQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		sessions:  &fakeSessions{rows: map[string]domain.Session{}},
		artifacts: &fakeArtifacts{rows: map[string]domain.Artifact{}},
		jobs:      &fakeJobs{rows: map[string]domain.Job{}},
		messages:  &fakeMessages{},
		store:     &fakeStore{objects: map[string][]byte{}},
		queue:     queue.NewMemoryQueue(),
	}
	logger := zerolog.Nop()
	app := handlers.NewApp(handlers.Options{
		Sessions:  ts.sessions,
		Artifacts: ts.artifacts,
		Jobs:      ts.jobs,
		Messages:  ts.messages,
		Store:     ts.store,
		Enqueuer:  pipeline.NewEnqueuer(ts.jobs, ts.queue, logger),
		Logger:    logger,
	})
	ts.Server = httptest.NewServer(NewRouter(app, Options{
		Logger:         logger,
		Limiter:        middleware.NewMemoryLimiter(1000, time.Minute),
		AllowedOrigins: []string{"https://shop.example"},
		DefaultLocale:  "en",
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status = %d, want %d (%s)", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}

type sessionBody struct {
	ID     string          `json:"id"`
	Locale string          `json:"locale"`
	Design design.Document `json:"design"`
}

func (ts *testServer) createSession(t *testing.T) sessionBody {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/v1/sessions", nil, "Accept-Language", "id-ID,en;q=0.5")
	expectStatus(t, resp, http.StatusCreated)
	return decode[sessionBody](t, resp)
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/v1/healthz", nil)
	expectStatus(t, resp, http.StatusOK)
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Fatal("missing request id header")
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodOptions, "/v1/sessions", nil, "Origin", "https://shop.example")
	expectStatus(t, resp, http.StatusNoContent)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://shop.example" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)
	if s.Locale != "id" {
		t.Errorf("locale = %q, want id", s.Locale)
	}
	if !s.Design.IsEmpty() || s.Design.Version != design.DocumentVersion {
		t.Errorf("new design = %+v", s.Design)
	}

	resp := ts.do(t, http.MethodGet, "/v1/sessions/"+s.ID, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, http.MethodGet, "/v1/sessions/not-a-session", nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp = ts.do(t, http.MethodGet, "/v1/sessions/0f8fad5b-d9cb-469f-a165-70867728950e/design", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestPutDesign(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)
	path := "/v1/sessions/" + s.ID + "/design"

	resp := ts.do(t, http.MethodPut, path, `{"x":20,"y":80,"scale":1.5,"rotation":90}`)
	expectStatus(t, resp, http.StatusOK)
	doc := decode[design.Document](t, resp)
	if len(doc.Front) != 1 || doc.Front[0].ID != design.LegacyLayerID || doc.Front[0].DesignState.Rotation != 90 {
		t.Fatalf("legacy migration = %+v", doc.Front)
	}

	resp = ts.do(t, http.MethodPut, path, `{"version":2,"activeSide":"back","front":[],"back":[],"theme":"dark"}`)
	expectStatus(t, resp, http.StatusOK)
	resp = ts.do(t, http.MethodGet, path, nil)
	expectStatus(t, resp, http.StatusOK)
	raw := decode[map[string]any](t, resp)
	if raw["theme"] != "dark" || raw["activeSide"] != "back" {
		t.Fatalf("stored design = %v", raw)
	}

	resp = ts.do(t, http.MethodPut, path, `{"hello":"world"}`)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestPutDesignRejectsBadLayer(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)
	path := "/v1/sessions/" + s.ID + "/design"

	resp := ts.do(t, http.MethodPost, path+"/front/layers", map[string]any{"kind": "text", "text": map[string]any{"text": "KEEP"}})
	expectStatus(t, resp, http.StatusOK)

	for name, body := range map[string]string{
		"unknown kind":     `{"version":2,"activeSide":"front","front":[{"id":"a","kind":"sticker"}],"back":[]}`,
		"layer not object": `{"version":2,"activeSide":"front","front":[42],"back":[]}`,
		"back not list":    `{"version":2,"activeSide":"front","front":[],"back":{}}`,
	} {
		resp = ts.do(t, http.MethodPut, path, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, resp.StatusCode)
		}
	}

	resp = ts.do(t, http.MethodGet, path, nil)
	expectStatus(t, resp, http.StatusOK)
	doc := decode[design.Document](t, resp)
	if doc.LayerCount(design.SideFront) != 1 || doc.Front[0].Text == nil || doc.Front[0].Text.Text != "KEEP" {
		t.Fatalf("stored design changed: %+v", doc.Front)
	}
}

func TestLayerEditing(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)
	base := "/v1/sessions/" + s.ID + "/design"

	var doc design.Document
	for i := 0; i < design.MaxLayersPerSide; i++ {
		resp := ts.do(t, http.MethodPost, base+"/front/layers", map[string]any{"kind": "text", "text": map[string]any{"text": "HI"}})
		expectStatus(t, resp, http.StatusOK)
		doc = decode[design.Document](t, resp)
	}
	resp := ts.do(t, http.MethodPost, base+"/front/layers", map[string]any{"kind": "text"})
	expectStatus(t, resp, http.StatusConflict)

	top, _ := doc.TopLayer(design.SideFront)
	resp = ts.do(t, http.MethodPatch, base+"/front/layers/"+top.ID, map[string]any{
		"command": map[string]any{"action": "move", "x": 10, "y": 90},
		"text":    map[string]any{"fontColor": "#00FF00"},
	})
	expectStatus(t, resp, http.StatusOK)
	doc = decode[design.Document](t, resp)
	moved, _ := doc.Layer(design.SideFront, top.ID)
	if moved.DesignState.X != 10 || moved.DesignState.Y != 90 || moved.Text.FontColor != "#00FF00" {
		t.Fatalf("patched layer = %+v %+v", moved.DesignState, moved.Text)
	}

	resp = ts.do(t, http.MethodPost, base+"/commands", map[string]any{"directive": "make it bigger"})
	expectStatus(t, resp, http.StatusOK)
	doc = decode[design.Document](t, resp)
	if got, _ := doc.Layer(design.SideFront, top.ID); got.DesignState.Scale != 1.2 {
		t.Fatalf("scale after directive = %v", got.DesignState.Scale)
	}

	resp = ts.do(t, http.MethodPost, base+"/commands", map[string]any{"directive": "draw a dragon"})
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	resp = ts.do(t, http.MethodDelete, base+"/front/layers/"+top.ID, nil)
	expectStatus(t, resp, http.StatusOK)
	doc = decode[design.Document](t, resp)
	if doc.LayerCount(design.SideFront) != design.MaxLayersPerSide-1 {
		t.Fatalf("layers after delete = %d", doc.LayerCount(design.SideFront))
	}
	resp = ts.do(t, http.MethodDelete, base+"/front/layers/"+top.ID, nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = ts.do(t, http.MethodPost, base+"/sideways/layers", map[string]any{"kind": "text"})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestPostMessage(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)
	path := "/v1/sessions/" + s.ID + "/messages"

	// Nothing to move yet, so even a placement phrase asks for artwork.
	resp := ts.do(t, http.MethodPost, path, map[string]any{"content": "a tiger at the top"})
	expectStatus(t, resp, http.StatusAccepted)
	body := decode[map[string]any](t, resp)
	jobID, _ := body["jobId"].(string)
	if body["kind"] != "generation" || jobID == "" {
		t.Fatalf("response = %v", body)
	}
	job, err := ts.jobs.GetByID(context.Background(), jobID)
	if err != nil || job.Type != domain.JobTypeGenerateArtwork {
		t.Fatalf("job = %+v, %v", job, err)
	}
	if ts.queue.Len() != 1 {
		t.Errorf("queued events = %d, want 1", ts.queue.Len())
	}

	resp = ts.do(t, http.MethodPost, "/v1/sessions/"+s.ID+"/design/front/layers", map[string]any{"kind": "text"})
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, http.MethodPost, path, map[string]any{"content": "Move it to the top"})
	expectStatus(t, resp, http.StatusOK)
	body = decode[map[string]any](t, resp)
	if body["kind"] != "placement" {
		t.Fatalf("response = %v", body)
	}
	stored, _ := ts.sessions.GetByID(context.Background(), s.ID)
	top, _ := design.Migrate(stored.DesignState).TopLayer(design.SideFront)
	if top.DesignState.Y != 25 {
		t.Errorf("y after directive = %v, want 25", top.DesignState.Y)
	}

	resp = ts.do(t, http.MethodGet, path, nil)
	expectStatus(t, resp, http.StatusOK)
	list := decode[struct {
		Items []map[string]any `json:"items"`
	}](t, resp)
	if len(list.Items) != 2 {
		t.Errorf("messages = %d, want 2", len(list.Items))
	}

	resp = ts.do(t, http.MethodPost, path, map[string]any{"content": "   "})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestPostMessageStoredBeforeJob(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)

	var (
		mu   sync.Mutex
		seen []domain.Message
	)
	ts.jobs.mu.Lock()
	ts.jobs.onCreate = func(domain.Job) {
		msgs, _ := ts.messages.ListBySession(context.Background(), s.ID, 10)
		mu.Lock()
		seen = msgs
		mu.Unlock()
	}
	ts.jobs.mu.Unlock()
	resp := ts.do(t, http.MethodPost, "/v1/sessions/"+s.ID+"/messages", map[string]any{"content": "a paper crane"})
	expectStatus(t, resp, http.StatusAccepted)
	body := decode[map[string]any](t, resp)
	mu.Lock()
	defer mu.Unlock()

	if len(seen) != 1 || seen[0].Content != "a paper crane" {
		t.Fatalf("messages when job was created = %+v, want the user message", seen)
	}
	if seen[0].JobID == "" || seen[0].JobID != body["jobId"] {
		t.Errorf("message job id = %q, response job id = %v", seen[0].JobID, body["jobId"])
	}
}

func TestUploadQueuesNormalize(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "logo.png")
	_, _ = part.Write(pngBytes(t, 30, 20, color.NRGBA{B: 255, A: 255}))
	_ = mw.WriteField("side", "back")
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/sessions/"+s.ID+"/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusCreated)

	var body struct {
		Artifact struct {
			ID     string `json:"id"`
			Kind   string `json:"kind"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"artifact"`
		Design       design.Document `json:"design"`
		NormalizeJob string          `json:"normalizeJobId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Artifact.Kind != "upload" || body.Artifact.Width != 30 || body.Artifact.Height != 20 {
		t.Errorf("artifact = %+v", body.Artifact)
	}
	if ids := body.Design.ArtifactIDs(); len(ids) != 1 || body.Design.LayerCount(design.SideBack) != 1 {
		t.Errorf("design = %+v", body.Design)
	}
	job, err := ts.jobs.GetByID(context.Background(), body.NormalizeJob)
	if err != nil {
		t.Fatalf("normalize job: %v", err)
	}
	var in domain.NormalizeInput
	_ = json.Unmarshal(job.Input, &in)
	if in.ArtifactID != body.Artifact.ID || in.Provenance != "upload" || !in.RemoveBackground {
		t.Errorf("normalize input = %+v", in)
	}

	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/v1/sessions/"+s.ID+"/uploads", strings.NewReader("nope"))
	req.Header.Set("Content-Type", "text/plain")
	bad, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("non-multipart status = %d", bad.StatusCode)
	}
}

func TestPreview(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)
	ctx := context.Background()

	key := storage.UploadKey(s.ID, "art-1", ".png")
	_ = ts.store.Put(ctx, key, pngBytes(t, 40, 40, color.NRGBA{R: 255, A: 255}), "image/png")
	_ = ts.artifacts.Create(ctx, &domain.Artifact{ID: "art-1", SessionID: s.ID, StorageKey: key, MimeType: "image/png"})
	resp := ts.do(t, http.MethodPost, "/v1/sessions/"+s.ID+"/design/front/layers", map[string]any{"kind": "image", "artifactId": "art-1"})
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, http.MethodGet, "/v1/sessions/"+s.ID+"/preview/front", nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 533 {
		t.Fatalf("preview bounds = %v", img.Bounds())
	}
	center := color.NRGBAModel.Convert(img.At(200, 266)).(color.NRGBA)
	if center.R < 200 || center.A < 200 {
		t.Errorf("center = %+v, want red artwork", center)
	}

	resp = ts.do(t, http.MethodPost, "/v1/sessions/"+s.ID+"/design/front/layers", map[string]any{"kind": "image", "artifactId": "missing"})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestPreviewIgnoresOtherSessionArtwork(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.createSession(t)
	other := ts.createSession(t)
	ctx := context.Background()

	key := storage.UploadKey(owner.ID, "art-owner", ".png")
	_ = ts.store.Put(ctx, key, pngBytes(t, 40, 40, color.NRGBA{R: 255, A: 255}), "image/png")
	_ = ts.artifacts.Create(ctx, &domain.Artifact{ID: "art-owner", SessionID: owner.ID, StorageKey: key, MimeType: "image/png"})

	// A hand-written document can name any artifact id.
	body := `{"version":2,"activeSide":"front","front":[{"id":"l1","kind":"image","artifactId":"art-owner","designState":{"x":50,"y":50,"scale":1,"rotation":0}}],"back":[]}`
	resp := ts.do(t, http.MethodPut, "/v1/sessions/"+other.ID+"/design", body)
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, http.MethodGet, "/v1/sessions/"+other.ID+"/preview/front", nil)
	expectStatus(t, resp, http.StatusOK)
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	b := img.Bounds()
	center := color.NRGBAModel.Convert(img.At(b.Dx()/2, b.Dy()/2)).(color.NRGBA)
	if center.A != 0 {
		t.Fatalf("center = %+v, want transparent", center)
	}
}

func TestJobEndpoints(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)
	ctx := context.Background()

	resp := ts.do(t, http.MethodGet, "/v1/jobs/unknown", nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = ts.do(t, http.MethodPost, "/v1/sessions/"+s.ID+"/jobs/normalize", map[string]any{})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = ts.do(t, http.MethodPost, "/v1/sessions/"+s.ID+"/jobs/product", map[string]any{"title": "Tiger Tee"})
	expectStatus(t, resp, http.StatusAccepted)
	pending := decode[map[string]any](t, resp)
	jobID := pending["id"].(string)
	if pending["status"] != string(domain.JobStatusPending) {
		t.Fatalf("job = %v", pending)
	}

	resp = ts.do(t, http.MethodGet, "/v1/jobs/"+jobID+"/print-files", nil)
	expectStatus(t, resp, http.StatusConflict)

	key := storage.CompositedKey(s.ID, "front", "flat-1")
	_ = ts.store.Put(ctx, key, []byte("png"), "image/png")
	_ = ts.artifacts.Create(ctx, &domain.Artifact{ID: "flat-1", SessionID: s.ID, StorageKey: key, MimeType: "image/png"})
	out, _ := json.Marshal(domain.ProductOutput{ProductID: 9, Files: []domain.PrintFile{{Placement: "front", URL: "https://cdn.test/" + key, ArtifactID: "flat-1"}}})
	ts.jobs.mu.Lock()
	j := ts.jobs.rows[jobID]
	j.Status = domain.JobStatusCompleted
	j.Output = out
	ts.jobs.rows[jobID] = j
	ts.jobs.mu.Unlock()

	resp = ts.do(t, http.MethodGet, "/v1/jobs/"+jobID, nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[map[string]any](t, resp); got["status"] != string(domain.JobStatusCompleted) {
		t.Fatalf("job = %v", got)
	}

	resp = ts.do(t, http.MethodGet, "/v1/jobs/"+jobID+"/print-files", nil)
	expectStatus(t, resp, http.StatusOK)
	archive, _ := io.ReadAll(resp.Body)
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "front-flat-1.png" {
		t.Fatalf("zip entries = %v", zr.File)
	}
}

func TestListArtifacts(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)
	other := ts.createSession(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = ts.artifacts.Create(ctx, &domain.Artifact{ID: "gen-1", SessionID: s.ID, Kind: domain.ArtifactKindGenerated, URL: "https://cdn.test/gen-1.png", CreatedAt: base})
	_ = ts.artifacts.Create(ctx, &domain.Artifact{ID: "gen-2", SessionID: s.ID, Kind: domain.ArtifactKindGenerated, URL: "https://cdn.test/gen-2.png", SourceArtifactID: "gen-1", CreatedAt: base.Add(time.Minute)})
	_ = ts.artifacts.Create(ctx, &domain.Artifact{ID: "foreign", SessionID: other.ID, Kind: domain.ArtifactKindUpload, CreatedAt: base.Add(time.Hour)})

	resp := ts.do(t, http.MethodGet, "/v1/sessions/"+s.ID+"/artifacts", nil)
	expectStatus(t, resp, http.StatusOK)
	list := decode[struct {
		Items []struct {
			ID               string `json:"id"`
			Kind             string `json:"kind"`
			URL              string `json:"url"`
			SourceArtifactID string `json:"sourceArtifactId"`
		} `json:"items"`
	}](t, resp)
	if len(list.Items) != 2 {
		t.Fatalf("items = %+v, want 2", list.Items)
	}
	newest := list.Items[0]
	if newest.ID != "gen-2" || newest.SourceArtifactID != "gen-1" || newest.URL != "https://cdn.test/gen-2.png" || newest.Kind != string(domain.ArtifactKindGenerated) {
		t.Errorf("newest = %+v", newest)
	}
	if list.Items[1].ID != "gen-1" {
		t.Errorf("second = %+v", list.Items[1])
	}

	resp = ts.do(t, http.MethodGet, "/v1/sessions/0f8fad5b-d9cb-469f-a165-70867728950e/artifacts", nil)
	expectStatus(t, resp, http.StatusNotFound)
}
