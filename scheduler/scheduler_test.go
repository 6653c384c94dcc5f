package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/AitomaLab/ugc-engine/config"
	"github.com/AitomaLab/ugc-engine/pipeline"
	"github.com/AitomaLab/ugc-engine/scene"
	"github.com/AitomaLab/ugc-engine/store"
)

type fakeJobStore struct {
	mu          sync.Mutex
	queued      []*store.Job
	progress    []int
	completed   map[string]string
	failed      map[string]string
	requeued    []string
	personaErr  error
	pickClipErr error
	product     *scene.Product
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		completed: make(map[string]string),
		failed:    make(map[string]string),
	}
}

func (f *fakeJobStore) GetJob(ctx context.Context, id string) (*store.Job, error) {
	return nil, store.ErrNotFound
}

func (f *fakeJobStore) ClaimQueuedJobs(ctx context.Context, limit int) ([]*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.queued) {
		limit = len(f.queued)
	}
	claimed := f.queued[:limit]
	f.queued = f.queued[limit:]
	return claimed, nil
}

func (f *fakeJobStore) SetProgress(ctx context.Context, id string, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, progress)
	return nil
}

func (f *fakeJobStore) MarkComplete(ctx context.Context, id, finalVideoURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id] = finalVideoURL
	return nil
}

func (f *fakeJobStore) MarkFailed(ctx context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = message
	return nil
}

func (f *fakeJobStore) RequeueJob(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeued = append(f.requeued, id)
	return nil
}

func (f *fakeJobStore) ResetStaleClaims(ctx context.Context, maxAge time.Duration) (int, error) {
	return 0, nil
}

func (f *fakeJobStore) GetPersona(ctx context.Context, id string) (*scene.Persona, error) {
	if f.personaErr != nil {
		return nil, f.personaErr
	}
	return &scene.Persona{Name: "Carmen", VoiceID: "voice-a"}, nil
}

func (f *fakeJobStore) GetAppClip(ctx context.Context, id string) (*scene.Clip, error) {
	return &scene.Clip{Name: "linked_clip", VideoURL: "https://cdn.example.com/c.mp4", Duration: 9}, nil
}

func (f *fakeJobStore) PickAppClip(ctx context.Context, category string) (*scene.Clip, error) {
	if f.pickClipErr != nil {
		return nil, f.pickClipErr
	}
	return &scene.Clip{Name: "picked_clip", VideoURL: "https://cdn.example.com/p.mp4", Duration: 9}, nil
}

func (f *fakeJobStore) GetProduct(ctx context.Context, id string) (*scene.Product, error) {
	if f.product != nil {
		return f.product, nil
	}
	return nil, store.ErrNotFound
}

type fakeCoordinator struct {
	mu     sync.Mutex
	inputs []pipeline.RunInput
	err    error
}

func (f *fakeCoordinator) Run(ctx context.Context, input pipeline.RunInput, report pipeline.ProgressFunc) (string, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	for _, label := range []string{"Building scenes", "Gen: Hook (1/2)", "Assembling"} {
		report(label)
	}
	return "/out/carmen_final.mp4", nil
}

type fakePublisher struct {
	err error
}

func (f *fakePublisher) Publish(ctx context.Context, localPath, objectName string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://storage.example.com/videos/" + objectName, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	completed []string
	failed    []string
}

func (f *fakeNotifier) RunCompleted(jobID, videoURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, jobID)
}

func (f *fakeNotifier) RunFailed(jobID, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, jobID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testRunner(js *fakeJobStore, coord *fakeCoordinator, pub *fakePublisher, n *fakeNotifier) *Runner {
	cfg := &config.Config{MaxConcurrentRuns: 2}
	return NewRunner(cfg, js, coord, pub, n, pipeline.NewRunStore(testLogger()), testLogger())
}

func testJob() *store.Job {
	return &store.Job{
		ID:            "job-1",
		Status:        store.StatusProcessing,
		Hook:          "Esta app es increible",
		LengthSeconds: 15,
		Theme:         "Fitness",
		PersonaID:     "persona-1",
	}
}

func TestExecuteJobHappyPath(t *testing.T) {
	js := newFakeJobStore()
	coord := &fakeCoordinator{}
	notifier := &fakeNotifier{}
	r := testRunner(js, coord, &fakePublisher{}, notifier)
	r.runStore.Add("run-1", &pipeline.RunResult{RunID: "run-1", Status: pipeline.RunStarted})

	if err := r.ExecuteJob(context.Background(), testJob(), "run-1"); err != nil {
		t.Fatalf("ExecuteJob returned error: %v", err)
	}

	if url := js.completed["job-1"]; url != "https://storage.example.com/videos/carmen_final.mp4" {
		t.Errorf("final url = %q", url)
	}
	if len(js.progress) != 3 || js.progress[0] != 5 || js.progress[1] != 20 || js.progress[2] != 95 {
		t.Errorf("progress updates = %v, want [5 20 95]", js.progress)
	}
	if len(notifier.completed) != 1 {
		t.Errorf("completion notifications = %d, want 1", len(notifier.completed))
	}

	run, _ := r.runStore.Get("run-1")
	if run.Status != pipeline.RunCompleted {
		t.Errorf("run status = %s", run.Status)
	}
}

func TestExecuteJobDuplicateRejected(t *testing.T) {
	js := newFakeJobStore()
	r := testRunner(js, &fakeCoordinator{}, &fakePublisher{}, &fakeNotifier{})

	r.running.Store("job-1", struct{}{})
	err := r.ExecuteJob(context.Background(), testJob(), "run-1")
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}
}

func TestExecuteJobFailureStoresCleanMessage(t *testing.T) {
	js := newFakeJobStore()
	coord := &fakeCoordinator{err: fmt.Errorf("voiceover synthesis: ElevenLabs API error (HTTP 402): quota")}
	notifier := &fakeNotifier{}
	r := testRunner(js, coord, &fakePublisher{}, notifier)
	r.runStore.Add("run-1", &pipeline.RunResult{RunID: "run-1", Status: pipeline.RunStarted})

	if err := r.ExecuteJob(context.Background(), testJob(), "run-1"); err == nil {
		t.Fatal("expected error")
	}

	if msg := js.failed["job-1"]; msg != "ElevenLabs Payment Required (quota reached)" {
		t.Errorf("stored failure = %q", msg)
	}
	if len(notifier.failed) != 1 {
		t.Errorf("failure notifications = %d, want 1", len(notifier.failed))
	}
}

func TestExecuteJobPublishFailureFailsJob(t *testing.T) {
	js := newFakeJobStore()
	r := testRunner(js, &fakeCoordinator{}, &fakePublisher{err: errors.New("bucket gone")}, &fakeNotifier{})
	r.runStore.Add("run-1", &pipeline.RunResult{RunID: "run-1"})

	if err := r.ExecuteJob(context.Background(), testJob(), "run-1"); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := js.failed["job-1"]; !ok {
		t.Error("job not marked failed after publish failure")
	}
}

func TestResolveInputProductJobSkipsClip(t *testing.T) {
	js := newFakeJobStore()
	js.product = &scene.Product{Name: "Serum", Description: "glow serum", ImageURL: "https://cdn.example.com/serum.jpg"}
	coord := &fakeCoordinator{}
	r := testRunner(js, coord, &fakePublisher{}, &fakeNotifier{})
	r.runStore.Add("run-1", &pipeline.RunResult{RunID: "run-1"})

	job := testJob()
	productID := "product-1"
	job.ProductID = &productID

	if err := r.ExecuteJob(context.Background(), job, "run-1"); err != nil {
		t.Fatalf("ExecuteJob returned error: %v", err)
	}

	input := coord.inputs[0]
	if input.Product == nil || input.Product.Name != "Serum" {
		t.Errorf("product = %+v", input.Product)
	}
	if input.Clip != nil {
		t.Error("product job must not carry an app clip")
	}
}

func TestResolveInputNoClipsAvailable(t *testing.T) {
	js := newFakeJobStore()
	js.pickClipErr = store.ErrNotFound
	coord := &fakeCoordinator{}
	r := testRunner(js, coord, &fakePublisher{}, &fakeNotifier{})
	r.runStore.Add("run-1", &pipeline.RunResult{RunID: "run-1"})

	if err := r.ExecuteJob(context.Background(), testJob(), "run-1"); err != nil {
		t.Fatalf("ExecuteJob returned error: %v", err)
	}
	if coord.inputs[0].Clip != nil {
		t.Error("clip should be nil when none are available")
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		label   string
		want    int
		matched bool
	}{
		{"Building scenes", 5, true},
		{"Gen: Hook (1/4)", 20, true},
		{"Gen: App Demo (2/4)", 60, true},
		{"Gen: Cta (4/4)", 80, true},
		{"Subtitling", 90, true},
		{"Assembling", 95, true},
		{"Adding Music", 0, false},
	}

	for _, tt := range tests {
		got, ok := progressPercent(tt.label)
		if ok != tt.matched || got != tt.want {
			t.Errorf("progressPercent(%q) = %d,%v want %d,%v", tt.label, got, ok, tt.want, tt.matched)
		}
	}
}

func TestSchedulerTickClaimsFreeSlots(t *testing.T) {
	js := newFakeJobStore()
	for i := 0; i < 5; i++ {
		job := testJob()
		job.ID = fmt.Sprintf("job-%d", i)
		js.queued = append(js.queued, job)
	}

	coord := &fakeCoordinator{}
	r := testRunner(js, coord, &fakePublisher{}, &fakeNotifier{})
	s := New(r, js, time.Hour, testLogger())

	s.tick(context.Background())
	s.wg.Wait()

	js.mu.Lock()
	defer js.mu.Unlock()
	if len(js.completed) != 2 {
		t.Errorf("jobs completed = %d, want 2 (concurrency bound)", len(js.completed))
	}
	if len(js.queued) != 3 {
		t.Errorf("jobs still queued = %d, want 3", len(js.queued))
	}
}
