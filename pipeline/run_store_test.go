package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

type mockTimeProvider struct {
	currentTime time.Time
	mutex       sync.Mutex
}

func (mtp *mockTimeProvider) Now() time.Time {
	mtp.mutex.Lock()
	defer mtp.mutex.Unlock()
	return mtp.currentTime
}

func (mtp *mockTimeProvider) Add(d time.Duration) {
	mtp.mutex.Lock()
	mtp.currentTime = mtp.currentTime.Add(d)
	mtp.mutex.Unlock()
}

func storeLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRunStoreLifecycle(t *testing.T) {
	rs := NewRunStore(storeLogger())

	rs.Add("run-1", &RunResult{RunID: "run-1", JobID: "job-1", Status: RunStarted, StartedAt: time.Now()})

	rs.SetProgress("run-1", "Gen: Hook (1/4)")
	r, ok := rs.Get("run-1")
	if !ok {
		t.Fatal("run not found")
	}
	if r.Progress != "Gen: Hook (1/4)" {
		t.Errorf("progress = %q", r.Progress)
	}

	rs.Complete("run-1", "/out/video.mp4")
	r, _ = rs.Get("run-1")
	if r.Status != RunCompleted || r.VideoPath != "/out/video.mp4" {
		t.Errorf("result = %+v", r)
	}
	if r.CompletedAt.IsZero() {
		t.Error("CompletedAt not set")
	}
}

func TestRunStoreFail(t *testing.T) {
	rs := NewRunStore(storeLogger())
	rs.Add("run-1", &RunResult{RunID: "run-1", Status: RunStarted})

	rs.Fail("run-1", "scene generation failed")
	r, _ := rs.Get("run-1")
	if r.Status != RunFailed || r.ErrorMessage != "scene generation failed" {
		t.Errorf("result = %+v", r)
	}
}

func TestRunStoreGetReturnsCopy(t *testing.T) {
	rs := NewRunStore(storeLogger())
	rs.Add("run-1", &RunResult{RunID: "run-1", Status: RunStarted})

	r, _ := rs.Get("run-1")
	r.Status = RunFailed

	fresh, _ := rs.Get("run-1")
	if fresh.Status != RunStarted {
		t.Error("Get must return a copy, not the stored record")
	}
}

func TestRunStoreCleanupExpiresFinishedRuns(t *testing.T) {
	start := time.Now()
	mtp := &mockTimeProvider{currentTime: start}
	timeProvider = mtp
	defer func() { timeProvider = &realTimeProvider{} }()

	rs := NewRunStore(storeLogger())
	rs.Add("done", &RunResult{RunID: "done", Status: RunCompleted, CompletedAt: start})
	rs.Add("active", &RunResult{RunID: "active", Status: RunStarted})

	mtp.Add(10 * time.Minute)
	rs.cleanup(5 * time.Minute)

	if _, ok := rs.Get("done"); ok {
		t.Error("finished run past threshold should be expired")
	}
	if _, ok := rs.Get("active"); !ok {
		t.Error("in-flight run must never be expired")
	}
}

func TestRunStoreConcurrentAccess(t *testing.T) {
	rs := NewRunStore(storeLogger())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("run-%d", n)
			rs.Add(id, &RunResult{RunID: id, Status: RunStarted})
			rs.SetProgress(id, "Assembling")
			rs.Complete(id, "/out/"+id+".mp4")
			rs.Get(id)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("run-%d", i)
		r, ok := rs.Get(id)
		if !ok || r.Status != RunCompleted {
			t.Fatalf("run %s missing or not completed", id)
		}
	}
}
