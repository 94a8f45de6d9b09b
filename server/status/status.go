package status

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mediafetch/mediafetch/server/internal/session"
)

type snapshot struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

func ApplyRouter(mdb *session.Store) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			var s snapshot
			for _, state := range mdb.All() {
				switch state.Status {
				case session.StatusPending:
					s.Pending++
				case session.StatusRunning:
					s.Running++
				case session.StatusCompleted:
					s.Completed++
				case session.StatusFailed:
					s.Failed++
				}
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(s)
		})
	}
}
