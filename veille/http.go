// CLAUDE:SUMMARY chi read API over competitors, summaries, snapshots and the fetch log, plus /health with the watch loop heartbeat.
// CLAUDE:DEPENDS shield/shield.go, observability/heartbeat.go
package veille

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/rivalwatch/shield"
)

// maxListLimit caps the limit query parameter of list endpoints.
const maxListLimit = 500

// Handler returns the read-only JSON API:
//
//	GET /health
//	GET /api/competitors
//	GET /api/summaries?competitor=&type=&limit=
//	GET /api/snapshots?competitor=&url=&limit=
//	GET /api/snapshots/last?competitor=&url=
//	GET /api/snapshots/{id}
//	GET /api/fetch-log?competitor=&url=&limit=
func (svc *Service) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.APIStack(svc.logger) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		st, err := svc.WatchStatus(r.Context())
		if err != nil {
			svc.fail(w, r, err)
			return
		}
		if st != nil {
			body["watch"] = st
		}
		writeJSON(w, http.StatusOK, body)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/competitors", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, svc.config.Competitors)
		})

		r.Get("/summaries", func(w http.ResponseWriter, r *http.Request) {
			limit, err := queryLimit(r)
			if err != nil {
				writeError(w, err)
				return
			}
			q := r.URL.Query()
			list, err := svc.ListSummaries(r.Context(), SummaryFilter{
				CompetitorID: q.Get("competitor"),
				SourceType:   q.Get("type"),
				Limit:        limit,
			})
			if err != nil {
				svc.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, nonNil(list))
		})

		r.Get("/snapshots", func(w http.ResponseWriter, r *http.Request) {
			limit, err := queryLimit(r)
			if err != nil {
				writeError(w, err)
				return
			}
			q := r.URL.Query()
			list, err := svc.SnapshotHistory(r.Context(), q.Get("competitor"), q.Get("url"), limit)
			if err != nil {
				svc.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, nonNil(list))
		})

		r.Get("/snapshots/last", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("url") == "" {
				writeError(w, fmt.Errorf("%w: url is required", ErrInvalidInput))
				return
			}
			snap, err := svc.LastSnapshot(r.Context(), q.Get("competitor"), q.Get("url"))
			if err != nil {
				svc.fail(w, r, err)
				return
			}
			if snap == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot for this target"})
				return
			}
			writeJSON(w, http.StatusOK, snap)
		})

		r.Get("/snapshots/{id}", func(w http.ResponseWriter, r *http.Request) {
			snap, err := svc.Snapshot(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				svc.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, snap)
		})

		r.Get("/fetch-log", func(w http.ResponseWriter, r *http.Request) {
			limit, err := queryLimit(r)
			if err != nil {
				writeError(w, err)
				return
			}
			q := r.URL.Query()
			list, err := svc.FetchHistory(r.Context(), q.Get("competitor"), q.Get("url"), limit)
			if err != nil {
				svc.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, nonNil(list))
		})
	})
	return r
}

// fail writes err with its status code. Unexpected errors are logged
// with the request trace.
func (svc *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	if code := statusOf(err); code == http.StatusInternalServerError {
		shield.GetLogger(r.Context()).Error("veille: api", "error", err)
	}
	writeError(w, err)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrUnknownCompetitor), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", ErrInvalidInput)
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), map[string]string{"error": err.Error()})
}
