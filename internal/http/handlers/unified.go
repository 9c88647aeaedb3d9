package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sproutling/internal/domain"
)

func (a *App) StartUnified(w http.ResponseWriter, r *http.Request) {
	in, msg := decodeStart(r)
	if msg != "" {
		a.error(w, http.StatusBadRequest, "bad_request", msg)
		return
	}
	unified, err := a.Orchestrator.Start(r.Context(), in)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"job_id":           unified.ID,
		"research_doc_id":  unified.ResearchID,
		"guide_job_id":     unified.GuideID,
		"character_job_id": unified.CharacterID,
		"status":           domain.StatusPending,
	})
}

func (a *App) UnifiedStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.Orchestrator.Status(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "unified job not found")
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: unified status failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not read unified job")
		return
	}
	a.json(w, http.StatusOK, status)
}
