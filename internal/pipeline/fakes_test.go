package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tailor/internal/design"
	"tailor/internal/domain"
	"tailor/internal/imageproc"
	"tailor/internal/providers/fulfillment"
	"tailor/internal/providers/genai"
	"tailor/internal/queue"
	"tailor/internal/storage"
)

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func newMemJobs() *memJobs { return &memJobs{jobs: map[string]*domain.Job{}} }

func (m *memJobs) Create(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return nil
	}
	cp := *job
	cp.Status = domain.JobStatusPending
	cp.CreatedAt = time.Now()
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobs) move(id string, next domain.JobStatus, fn func(*domain.Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	if fn != nil {
		fn(j)
	}
	return nil
}

func (m *memJobs) MarkRunning(_ context.Context, id string) error {
	return m.move(id, domain.JobStatusRunning, nil)
}

func (m *memJobs) Complete(_ context.Context, id string, output json.RawMessage) error {
	return m.move(id, domain.JobStatusCompleted, func(j *domain.Job) { j.Output = output })
}

func (m *memJobs) Fail(_ context.Context, id string, msg string) error {
	return m.move(id, domain.JobStatusFailed, func(j *domain.Job) { j.Error = msg })
}

func (m *memJobs) ClaimPending(_ context.Context) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.Status == domain.JobStatusPending {
			j.Status = domain.JobStatusRunning
			cp := *j
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memJobs) byType(typ domain.JobType) []*domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Job
	for _, j := range m.jobs {
		if j.Type == typ {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out
}

type memArtifacts struct {
	mu   sync.Mutex
	byID map[string]domain.Artifact
}

func newMemArtifacts() *memArtifacts { return &memArtifacts{byID: map[string]domain.Artifact{}} }

func (m *memArtifacts) Create(_ context.Context, a *domain.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[a.ID]; !ok {
		m.byID[a.ID] = *a
	}
	return nil
}

func (m *memArtifacts) GetByID(_ context.Context, id string) (*domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (m *memArtifacts) ListBySession(_ context.Context, sessionID string) ([]domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Artifact
	for _, a := range m.byID {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memArtifacts) ofKind(kind domain.ArtifactKind) []domain.Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Artifact
	for _, a := range m.byID {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newMemSessions() *memSessions { return &memSessions{sessions: map[string]domain.Session{}} }

func (m *memSessions) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *memSessions) GetByID(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *memSessions) SaveDesignState(_ context.Context, id string, state json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.DesignState = append(json.RawMessage(nil), state...)
	m.sessions[id] = s
	return nil
}

func (m *memSessions) SetProductID(_ context.Context, id string, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.ProductID = &productID
	m.sessions[id] = s
	return nil
}

func (m *memSessions) document(t *testing.T, id string) design.Document {
	t.Helper()
	s, err := m.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("session %s: %v", id, err)
	}
	return design.Migrate(s.DesignState)
}

type memMessages struct {
	mu   sync.Mutex
	msgs []domain.Message
}

func (m *memMessages) Create(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.msgs {
		if existing.ID == msg.ID {
			return nil
		}
	}
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *memMessages) ListBySession(_ context.Context, sessionID string, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.msgs {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memMessages) forJob(jobID string) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.msgs {
		if msg.JobID == jobID {
			out = append(out, msg)
		}
	}
	return out
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (s *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (s *memStore) PublicURL(key string) string { return "mem://" + key }

type fakeGenerator struct {
	mu      sync.Mutex
	result  genai.Result
	calls   int
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ genai.GenerateOptions) genai.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	return g.result
}

type fakeFulfillment struct {
	mu         sync.Mutex
	area       design.PrintArea
	areaErr    error
	specs      []fulfillment.ProductSpec
	productID  int64
	waitErr    error
	mockupURLs []string
}

func (f *fakeFulfillment) CreateProduct(_ context.Context, spec fulfillment.ProductSpec) (*fulfillment.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specs = append(f.specs, spec)
	return &fulfillment.Product{ID: f.productID, Name: spec.Title}, nil
}

func (f *fakeFulfillment) FindProduct(_ context.Context, externalID string) (*fulfillment.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, spec := range f.specs {
		if spec.ExternalID == externalID {
			return &fulfillment.Product{ID: f.productID, Name: spec.Title}, nil
		}
	}
	return nil, nil
}

func (f *fakeFulfillment) PrintArea(context.Context, int, string) (design.PrintArea, error) {
	return f.area, f.areaErr
}

func (f *fakeFulfillment) CreateMockupTask(context.Context, int, []int, []fulfillment.File) (string, error) {
	return "task", nil
}

func (f *fakeFulfillment) WaitForMockup(context.Context, string) (*fulfillment.MockupTask, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	task := &fulfillment.MockupTask{TaskKey: "task", Status: fulfillment.MockupCompleted}
	for _, u := range f.mockupURLs {
		task.Mockups = append(task.Mockups, fulfillment.Mockup{Placement: "front", URL: u})
	}
	return task, nil
}

// keyedArtwork is a green square on the magenta key backdrop.
func keyedArtwork(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			c := imageproc.KeyColor
			if x >= 10 && x < 30 && y >= 10 && y < 30 {
				c = color.NRGBA{G: 200, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

type harness struct {
	jobs      *memJobs
	artifacts *memArtifacts
	sessions  *memSessions
	messages  *memMessages
	store     *memStore
	queue     *queue.MemoryQueue
	gen       *fakeGenerator
	ful       *fakeFulfillment
	runner    *Runner
	enqueuer  *Enqueuer
}

const testSession = "5b2f8f0e-8d4e-4c43-a3a0-0d9d3c1c9a11"

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	logger := zerolog.New(io.Discard)
	h := &harness{
		jobs:      newMemJobs(),
		artifacts: newMemArtifacts(),
		sessions:  newMemSessions(),
		messages:  &memMessages{},
		store:     newMemStore(),
		queue:     queue.NewMemoryQueue(),
		gen:       &fakeGenerator{},
		ful:       &fakeFulfillment{productID: 4242},
	}
	h.gen.result = genai.Result{Success: true, ImageData: keyedArtwork(t), MimeType: "image/png"}
	h.enqueuer = NewEnqueuer(h.jobs, h.queue, logger)
	if cfg.PrintTarget.Width == 0 {
		cfg.PrintTarget = design.PrintArea{Width: 300, Height: 400, DPI: 300}
	}
	h.runner = NewRunner(Deps{
		Jobs:        h.jobs,
		Artifacts:   h.artifacts,
		Sessions:    h.sessions,
		Store:       h.store,
		Generator:   h.gen,
		Remover:     imageproc.NewRemover(nil, logger),
		Fulfillment: h.ful,
		Enqueuer:    h.enqueuer,
		Notifier:    NewNotifier(h.messages, logger),
		Config:      cfg,
		Logger:      logger,
	})
	_ = h.sessions.Create(context.Background(), &domain.Session{ID: testSession, Locale: "en"})
	return h
}

func (h *harness) enqueue(t *testing.T, typ domain.JobType, input any) *domain.Job {
	t.Helper()
	job, err := h.enqueuer.Enqueue(context.Background(), "", testSession, typ, input)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return job
}

func (h *harness) saveDoc(t *testing.T, doc design.Document) {
	t.Helper()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal doc: %v", err)
	}
	if err := h.sessions.SaveDesignState(context.Background(), testSession, raw); err != nil {
		t.Fatalf("save doc: %v", err)
	}
}

func (h *harness) addArtifact(t *testing.T, id string, data []byte) {
	t.Helper()
	key := storage.UploadKey(testSession, id, ".png")
	_ = h.store.Put(context.Background(), key, data, "image/png")
	_ = h.artifacts.Create(context.Background(), &domain.Artifact{
		ID: id, SessionID: testSession, Kind: domain.ArtifactKindUpload,
		StorageKey: key, URL: h.store.PublicURL(key), MimeType: "image/png",
	})
}

func (h *harness) status(t *testing.T, jobID string) domain.JobStatus {
	t.Helper()
	j, err := h.jobs.GetByID(context.Background(), jobID)
	if err != nil {
		t.Fatalf("job %s: %v", jobID, err)
	}
	return j.Status
}

func sortedContents(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	sort.Strings(out)
	return out
}
