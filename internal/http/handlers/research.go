package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sproutling/internal/domain"
)

func (a *App) StartResearch(w http.ResponseWriter, r *http.Request) {
	in, msg := decodeStart(r)
	if msg != "" {
		a.error(w, http.StatusBadRequest, "bad_request", msg)
		return
	}
	job, err := a.Orchestrator.StartResearch(r.Context(), in)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{"id": job.ID, "status": job.Status})
}

func (a *App) ResearchStatus(w http.ResponseWriter, r *http.Request) {
	a.jobStatus(w, r, domain.StageResearch, chi.URLParam(r, "job_id"))
}
