// Package generation_service abstracts the asynchronous generative-media
// APIs behind one submit/poll contract. Backends differ in payload shape
// and polling responses; the orchestrator only sees task ids and poll
// results.
package generation_service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/AitomaLab/ugc-engine/poll"
)

// TaskKind selects the payload shape a backend builds.
type TaskKind int

const (
	// TaskVideo is prompt (+ optional reference image) to video.
	TaskVideo TaskKind = iota
	// TaskLipSync drives a reference image with staged audio.
	TaskLipSync
	// TaskImage composes a persona+product still image.
	TaskImage
	// TaskMusic generates background music from a prompt.
	TaskMusic
)

// Task is one generation request. Model carries the API identifier; which
// other fields matter depends on Kind.
type Task struct {
	Kind              TaskKind
	Model             string
	Prompt            string
	ReferenceImageURL string
	ProductImageURL   string
	AudioURL          string
	AspectRatio       string
	Resolution        string
	DurationSeconds   int
	Seed              int64
}

// Backend is the submit/poll contract every generation API is wrapped in.
type Backend interface {
	Submit(ctx context.Context, task Task) (string, error)
	Poll(ctx context.Context, taskID string) (poll.Result, error)
}

// Registry holds the configured backends keyed by name. It is adapted to
// the same shape other service registries here use: register at startup,
// look up per task.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

func (r *Registry) Register(name string, backend Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = backend
}

func (r *Registry) Get(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	backend, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("no backend registered for %q", name)
	}
	return backend, nil
}

// BackendFor resolves which registered backend serves a task. Veo models
// live on a dedicated endpoint; everything else video/image goes through
// the unified jobs API.
func (r *Registry) BackendFor(task Task) (Backend, error) {
	return r.Get(BackendName(task))
}

// BackendName maps a task to the backend registry key.
func BackendName(task Task) string {
	if task.Kind == TaskMusic {
		return "music"
	}
	if strings.Contains(task.Model, "veo") {
		return "veo"
	}
	return "jobs"
}
