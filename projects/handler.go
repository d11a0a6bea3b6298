package projects

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// Source lists projects. *Notion satisfies it.
type Source interface {
	Projects(ctx context.Context) ([]Project, error)
}

type failure struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Handler serves GET /api/projects from src. Method and CORS handling is left
// to the router it is mounted on.
func Handler(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if src == nil {
			writeJSON(w, http.StatusInternalServerError, failure{Error: ErrNotConfigured.Error()})
			return
		}

		list, err := src.Projects(r.Context())
		if err != nil {
			if errors.Is(err, ErrNotConfigured) {
				writeJSON(w, http.StatusInternalServerError, failure{Error: ErrNotConfigured.Error()})
				return
			}
			plog.Error("notion API error", "err", err)
			writeJSON(w, http.StatusInternalServerError, failure{Error: "Failed to fetch projects", Details: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, list)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
