package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/asaskevich/EventBus"

	"github.com/mediafetch/mediafetch/server/config"
	"github.com/mediafetch/mediafetch/server/internal"
	"github.com/mediafetch/mediafetch/server/internal/adapters"
	"github.com/mediafetch/mediafetch/server/internal/postprocess"
	"github.com/mediafetch/mediafetch/server/internal/progress"
	"github.com/mediafetch/mediafetch/server/internal/workspace"
)

const defaultProgressInterval = time.Second * 3

// Dispatcher orchestrates one acquisition: workspace allocation, adapter
// selection, progress bridging and the audio post-processing hook. It does
// no blocking I/O of its own; the adapters do.
type Dispatcher struct {
	registry   *adapters.Registry
	workspaces *workspace.Manager
	bus        EventBus.Bus
	interval   time.Duration
}

// AcquireResult bundles the artifacts with the workspace that owns them.
// The caller tears the workspace down once the artifacts are consumed.
// Warning, when set, is a non-fatal degradation (partial carousel,
// failed artwork/tag enhancement).
type AcquireResult struct {
	Artifacts []internal.MediaArtifact
	Workspace *workspace.Workspace
	Title     string
	Uploader  string
	Warning   error
}

func New(cfg *config.Config, registry *adapters.Registry, bus EventBus.Bus) *Dispatcher {
	interval := cfg.Limits.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}

	return &Dispatcher{
		registry:   registry,
		workspaces: workspace.NewManager(cfg.Paths.DownloadPath),
		bus:        bus,
		interval:   interval,
	}
}

// Acquire runs the full pipeline for one request. On any failure the
// workspace is removed before returning; on success its teardown is the
// caller's responsibility.
func (d *Dispatcher) Acquire(ctx context.Context, req internal.DownloadRequest, sink progress.Sink) (*AcquireResult, error) {
	if req.URL == "" {
		return nil, &AcquisitionError{
			Kind:   KindUnsupportedSource,
			Detail: "empty url",
			Err:    internal.ErrUnsupportedSource,
		}
	}

	ws, err := d.workspaces.Create()
	if err != nil {
		return nil, &AcquisitionError{Kind: KindInternal, Detail: err.Error(), Err: err}
	}

	// orchestration panics must not leave an orphaned directory behind
	defer func() {
		if r := recover(); r != nil {
			d.workspaces.Remove(ws)
			panic(r)
		}
	}()

	adapter := d.registry.Resolve(req.URL)

	slog.Info("dispatching acquisition",
		slog.String("url", req.URL),
		slog.String("adapter", adapter.Name()),
		slog.String("workspace", ws.Id),
	)

	reporter := progress.NewReporter(ws.Id, d.bus, sink, d.interval)
	defer reporter.Close()

	res, err := adapter.Fetch(ctx, req.URL, ws, adapters.Options{
		AudioOnly: req.AudioOnly,
		MaxHeight: req.MaxHeight,
		FormatId:  req.FormatId,
	}, func(ev internal.ProgressEvent) {
		reporter.Report(ev)
	})
	if err != nil {
		d.workspaces.Remove(ws)
		return nil, wrapError(err)
	}

	for _, a := range res.Artifacts {
		if !ws.Contains(a.Path) {
			d.workspaces.Remove(ws)
			err := fmt.Errorf("artifact %s escapes its workspace", a.Path)
			return nil, &AcquisitionError{Kind: KindInternal, Detail: err.Error(), Err: err}
		}
	}

	out := &AcquireResult{
		Artifacts: res.Artifacts,
		Workspace: ws,
		Title:     res.Title,
		Uploader:  res.Uploader,
		Warning:   res.Warning,
	}

	if req.AudioOnly {
		if warn := d.enhanceAudio(ws, out, reporter); warn != nil {
			out.Warning = errors.Join(out.Warning, warn)
		}
	}

	reporter.Report(internal.ProgressEvent{Phase: internal.PhaseFinished, Percent: 100})

	slog.Info("acquisition complete",
		slog.String("url", req.URL),
		slog.Int("artifacts", len(out.Artifacts)),
	)
	return out, nil
}

// enhanceAudio runs the metadata post-processor on the lone audio artifact.
// Every failure here is soft: logged, reported as a warning, never fatal.
func (d *Dispatcher) enhanceAudio(ws *workspace.Workspace, res *AcquireResult, reporter *progress.Reporter) error {
	if len(res.Artifacts) != 1 || res.Artifacts[0].Category != internal.CategoryAudio {
		return nil
	}

	audioPath := res.Artifacts[0].Path
	reporter.Report(internal.ProgressEvent{Phase: internal.PhasePostprocessing})

	var degraded bool

	if thumb, ok := postprocess.FindThumbnail(ws.Dir, audioPath); ok {
		if err := postprocess.EmbedArtwork(audioPath, thumb); err != nil {
			slog.Warn("artwork embed failed", slog.String("audio", audioPath), slog.Any("err", err))
			degraded = true
		}
	}

	if err := postprocess.NormalizeTags(audioPath, res.Title, res.Uploader); err != nil {
		slog.Warn("tag normalization failed", slog.String("audio", audioPath), slog.Any("err", err))
		degraded = true
	}

	if degraded {
		return internal.ErrPostProcessing
	}
	return nil
}

// Cleanup removes a workspace returned by a successful Acquire once the
// caller has consumed the artifacts.
func (d *Dispatcher) Cleanup(ws *workspace.Workspace) error {
	return d.workspaces.Remove(ws)
}
