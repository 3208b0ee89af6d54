package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ─── POST /functions/v1/{name} ────────────────────────────────────────────────

// handleTrigger hands a database webhook body to the named notifier.
//
// Webhooks retry on any non-2xx answer, so the notifier decides the status:
// ineligible events and tolerated absences come back 200, and only
// unexpected failures (bad payload, lookup or SMTP errors) return 500.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	n, ok := s.notifiers[name]
	if !ok {
		respondErr(w, http.StatusNotFound, "unknown function: "+name)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB max
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "could not read request body: "+err.Error())
		return
	}

	res, err := n.Notify(r.Context(), body)
	if err != nil {
		s.logger.Error("trigger: notifier failed",
			"function", name,
			"error", err,
			logField(r),
		)
		respondErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("trigger: handled",
		"function", name,
		"status", res.Status,
		"message", res.Message,
		"error", res.Error,
		logField(r),
	)
	respond(w, res.Status, res)
}
