package rest

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mediafetch/mediafetch/server/internal"
	"github.com/mediafetch/mediafetch/server/internal/dispatcher"
	"github.com/mediafetch/mediafetch/server/internal/formats"
	"github.com/mediafetch/mediafetch/server/internal/metadata"
	"github.com/mediafetch/mediafetch/server/internal/queue"
	"github.com/mediafetch/mediafetch/server/internal/session"
)

type Service struct {
	mdb *session.Store
	mq  *queue.MessageQueue
	d   *dispatcher.Dispatcher
	mf  metadata.Fetcher
}

func NewService(
	mdb *session.Store,
	mq *queue.MessageQueue,
	d *dispatcher.Dispatcher,
	mf metadata.Fetcher,
) *Service {
	return &Service{
		mdb: mdb,
		mq:  mq,
		d:   d,
		mf:  mf,
	}
}

// Exec enqueues an acquisition and returns its session id immediately.
func (s *Service) Exec(req internal.DownloadRequest) (string, error) {
	if req.URL == "" {
		return "", errors.New("missing url")
	}

	id := uuid.NewString()
	s.mq.Publish(queue.Job{Id: id, Request: req})

	return id, nil
}

// ExecSync runs one acquisition to completion on the caller's goroutine.
func (s *Service) ExecSync(ctx context.Context, req internal.DownloadRequest) (*dispatcher.AcquireResult, error) {
	return s.d.Acquire(ctx, req, nil)
}

func (s *Service) Running(ctx context.Context) ([]session.State, error) {
	select {
	case <-ctx.Done():
		return nil, context.Canceled
	default:
		return s.mdb.All(), nil
	}
}

func (s *Service) Session(id string) (session.State, error) {
	return s.mdb.Get(id)
}

// Formats probes a URL and returns the deduplicated candidate list.
func (s *Service) Formats(ctx context.Context, url string) ([]formats.Candidate, error) {
	meta, err := s.mf(ctx, url)
	if err != nil {
		return nil, err
	}

	return formats.List(meta), nil
}

// Cleanup tears a completed session's workspace down and forgets the state.
func (s *Service) Cleanup(id string) error {
	state, err := s.mdb.Get(id)
	if err != nil {
		return err
	}

	if state.Workspace != nil {
		if err := s.d.Cleanup(state.Workspace); err != nil {
			return err
		}
	}

	s.mdb.Delete(id)
	return nil
}
