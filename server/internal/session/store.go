package session

import (
	"errors"
	"sync"
	"time"

	"github.com/mediafetch/mediafetch/server/internal"
	"github.com/mediafetch/mediafetch/server/internal/workspace"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// State is the observable snapshot of one acquisition. Completed states
// keep their workspace alive until the caller collects the artifacts and
// asks for cleanup.
type State struct {
	Id         string                   `json:"id"`
	URL        string                   `json:"url"`
	AudioOnly  bool                     `json:"audio_only"`
	Status     Status                   `json:"status"`
	ErrorKind  string                   `json:"error_kind,omitempty"`
	Error      string                   `json:"error,omitempty"`
	Warning    string                   `json:"warning,omitempty"`
	Artifacts  []internal.MediaArtifact `json:"artifacts,omitempty"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at,omitempty"`

	Workspace *workspace.Workspace `json:"-"`
}

// In-memory thread-safe registry of acquisition states.
type Store struct {
	table map[string]*State
	mu    sync.RWMutex
}

func NewStore() *Store {
	return &Store{table: make(map[string]*State)}
}

func (s *Store) Set(state *State) string {
	s.mu.Lock()
	s.table[state.Id] = state
	s.mu.Unlock()

	return state.Id
}

// Get returns a snapshot copy; the stored state keeps being mutated by the
// queue workers, so the live pointer never leaves the store.
func (s *Store) Get(id string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.table[id]
	if !ok {
		return State{}, errors.New("no session found for the given key")
	}

	return *entry, nil
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.table, id)
	s.mu.Unlock()
}

// All returns a snapshot copy of every stored state.
func (s *Store) All() []State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]State, 0, len(s.table))
	for _, v := range s.table {
		out = append(out, *v)
	}

	return out
}

// Update applies fn to the state under the store lock.
func (s *Store) Update(id string, fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.table[id]; ok {
		fn(entry)
	}
}
