package server

import (
	"sync"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/linfit/dataset"
	"github.com/YuminosukeSato/linfit/pkg/errors"
	"github.com/YuminosukeSato/linfit/training"
)

type datasetEntry struct {
	ID       string
	FileName string
	XColumn  string
	YColumn  string
	Columns  []string
	Data     *dataset.DataSet
}

type sessionEntry struct {
	Session   *training.Session
	DatasetID string
	UserID    string
	hub       *hub
}

// registry keeps processed datasets and training sessions in memory,
// keyed by uuid.
type registry struct {
	mu       sync.RWMutex
	datasets map[string]*datasetEntry
	sessions map[string]*sessionEntry
}

func newRegistry() *registry {
	return &registry{
		datasets: make(map[string]*datasetEntry),
		sessions: make(map[string]*sessionEntry),
	}
}

func (r *registry) addDataset(e *datasetEntry) string {
	e.ID = uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets[e.ID] = e
	return e.ID
}

func (r *registry) dataset(id string) (*datasetEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.datasets[id]
	if !ok {
		return nil, errors.NewModelError("dataset", id, errors.ErrNotFound)
	}
	return e, nil
}

func (r *registry) addSession(e *sessionEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[e.Session.ID()] = e
}

func (r *registry) session(id string) (*sessionEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, errors.NewModelError("session", id, errors.ErrNotFound)
	}
	return e, nil
}

func (r *registry) removeSession(id string) (*sessionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, errors.NewModelError("session", id, errors.ErrNotFound)
	}
	delete(r.sessions, id)
	return e, nil
}

// stopAll stops every session that is still running or paused.
func (r *registry) stopAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.sessions {
		_ = e.Session.Stop()
	}
}
