package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/asaskevich/EventBus"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mediafetch/mediafetch/server/internal"
	"github.com/mediafetch/mediafetch/server/internal/dispatcher"
	"github.com/mediafetch/mediafetch/server/internal/progress"
)

type Handler struct {
	service *Service
	bus     EventBus.Bus
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var acqErr *dispatcher.AcquisitionError
	if errors.As(err, &acqErr) {
		writeJSON(w, statusOf(acqErr.Kind), map[string]string{
			"kind":  string(acqErr.Kind),
			"error": acqErr.Detail,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": err.Error(),
	})
}

func statusOf(kind dispatcher.Kind) int {
	switch kind {
	case dispatcher.KindNoMediaFound:
		return http.StatusNotFound
	case dispatcher.KindAuthRequired:
		return http.StatusUnauthorized
	case dispatcher.KindUnsupportedSource:
		return http.StatusBadRequest
	case dispatcher.KindUnreachable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Exec enqueues an acquisition and answers with its session id.
func (h *Handler) Exec(w http.ResponseWriter, r *http.Request) {
	var req internal.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	id, err := h.service.Exec(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// ExecSync blocks until the acquisition finishes and answers with the
// artifact list.
func (h *Handler) ExecSync(w http.ResponseWriter, r *http.Request) {
	var req internal.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	res, err := h.service.ExecSync(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	out := map[string]any{
		"workspace": res.Workspace.Id,
		"title":     res.Title,
		"uploader":  res.Uploader,
		"artifacts": res.Artifacts,
	}
	if res.Warning != nil {
		out["warning"] = res.Warning.Error()
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Running(w http.ResponseWriter, r *http.Request) {
	states, err := h.service.Running(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, states)
}

func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) Formats(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing url"})
		return
	}

	candidates, err := h.service.Formats(r.Context(), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, candidates)
}

func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Cleanup(chi.URLParam(r, "id")); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type progressFrame struct {
	Id    string                 `json:"id"`
	Event internal.ProgressEvent `json:"event"`
}

// Progress streams every progress event published on the bus to the client.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex

	forward := func(id string, ev internal.ProgressEvent) {
		writeMu.Lock()
		defer writeMu.Unlock()

		if err := conn.WriteJSON(progressFrame{Id: id, Event: ev}); err != nil {
			slog.Debug("progress stream write failed", slog.Any("err", err))
		}
	}

	if err := h.bus.Subscribe(progress.Topic, forward); err != nil {
		slog.Warn("progress subscription failed", slog.Any("err", err))
		return
	}
	defer h.bus.Unsubscribe(progress.Topic, forward)

	// block until the peer goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func ApplyRouter(args *ContainerArgs) func(chi.Router) {
	h := ProvideHandler(args)

	return func(r chi.Router) {
		r.Post("/exec", h.Exec)
		r.Post("/exec/sync", h.ExecSync)
		r.Get("/running", h.Running)
		r.Get("/session/{id}", h.Session)
		r.Delete("/session/{id}", h.Cleanup)
		r.Post("/formats", h.Formats)
		r.Get("/progress/ws", h.Progress)
	}
}
