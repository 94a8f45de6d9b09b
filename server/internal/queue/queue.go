package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/asaskevich/EventBus"

	"github.com/mediafetch/mediafetch/server/internal"
	"github.com/mediafetch/mediafetch/server/internal/dispatcher"
	"github.com/mediafetch/mediafetch/server/internal/progress"
	"github.com/mediafetch/mediafetch/server/internal/session"
)

// Job is one queued acquisition, tracked in the session store under Id.
type Job struct {
	Id      string
	Request internal.DownloadRequest
}

// MessageQueue runs queued acquisitions on a bounded pool of workers and
// records their lifecycle in the session store.
type MessageQueue struct {
	concurrency int
	jobs        chan Job
	dispatcher  *dispatcher.Dispatcher
	sessions    *session.Store
	bus         EventBus.Bus
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewMessageQueue(d *dispatcher.Dispatcher, sessions *session.Store, bus EventBus.Bus, concurrency int) (*MessageQueue, error) {
	if concurrency <= 0 {
		return nil, errors.New("invalid queue size")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &MessageQueue{
		concurrency: concurrency,
		jobs:        make(chan Job, concurrency*2),
		dispatcher:  d,
		sessions:    sessions,
		bus:         bus,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Publish enqueues one acquisition job
func (m *MessageQueue) Publish(j Job) {
	m.sessions.Set(&session.State{
		Id:        j.Id,
		URL:       j.Request.URL,
		AudioOnly: j.Request.AudioOnly,
		Status:    session.StatusPending,
		StartedAt: time.Now(),
	})

	if m.ctx.Err() != nil {
		m.drop(j)
		return
	}

	select {
	case m.jobs <- j:
		slog.Info("published acquisition", slog.String("id", j.Id))
	case <-m.ctx.Done():
		m.drop(j)
	}
}

func (m *MessageQueue) drop(j Job) {
	slog.Warn("queue stopped, dropping acquisition", slog.String("id", j.Id))
	m.sessions.Update(j.Id, func(s *session.State) {
		s.Status = session.StatusFailed
		s.Error = "queue stopped"
		s.FinishedAt = time.Now()
	})
}

// SetupConsumers starts the worker pool.
func (m *MessageQueue) SetupConsumers() {
	for i := 0; i < m.concurrency; i++ {
		go m.worker(i)
	}
}

func (m *MessageQueue) worker(workerId int) {
	for {
		select {
		case <-m.ctx.Done():
			return
		case j := <-m.jobs:
			slog.Info("acquisition worker started",
				slog.Int("worker", workerId),
				slog.String("id", j.Id),
			)

			m.run(j)
		}
	}
}

func (m *MessageQueue) run(j Job) {
	m.sessions.Update(j.Id, func(s *session.State) {
		s.Status = session.StatusRunning
	})

	// republish progress under the session id, which is what clients track
	var sink progress.Sink
	if m.bus != nil {
		sink = func(ev internal.ProgressEvent) {
			m.bus.Publish(progress.Topic, j.Id, ev)
		}
	}

	res, err := m.dispatcher.Acquire(m.ctx, j.Request, sink)
	if err != nil {
		var acqErr *dispatcher.AcquisitionError

		m.sessions.Update(j.Id, func(s *session.State) {
			s.Status = session.StatusFailed
			s.Error = err.Error()
			if errors.As(err, &acqErr) {
				s.ErrorKind = string(acqErr.Kind)
			}
			s.FinishedAt = time.Now()
		})
		return
	}

	m.sessions.Update(j.Id, func(s *session.State) {
		s.Status = session.StatusCompleted
		s.Artifacts = res.Artifacts
		s.Workspace = res.Workspace
		if res.Warning != nil {
			s.Warning = res.Warning.Error()
		}
		s.FinishedAt = time.Now()
	})
}

// Stop cancels the workers. The jobs channel is deliberately left open so a
// racing Publish can never hit a closed channel; dropped jobs are marked
// failed instead.
func (m *MessageQueue) Stop() {
	m.cancel()
}
