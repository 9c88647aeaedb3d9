package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"sproutling/internal/domain"
	"sproutling/pkg/zip"
)

func (a *App) StartGuide(w http.ResponseWriter, r *http.Request) {
	in, msg := decodeStart(r)
	if msg != "" {
		a.error(w, http.StatusBadRequest, "bad_request", msg)
		return
	}
	job, err := a.Orchestrator.StartGuide(r.Context(), in)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "status": job.Status})
}

func (a *App) GuideStatus(w http.ResponseWriter, r *http.Request) {
	a.jobStatus(w, r, domain.StageGuide, chi.URLParam(r, "job_id"))
}

// GuideImage serves a stored illustration by its storage key.
func (a *App) GuideImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" || a.Assets == nil {
		a.error(w, http.StatusNotFound, "not_found", "image not found")
		return
	}
	data, err := a.Assets.Read(r.Context(), key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.error(w, http.StatusNotFound, "not_found", "image not found")
			return
		}
		a.Logger.Error().Err(err).Str("key", key).Msg("handlers: asset read failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not read image")
		return
	}
	w.Header().Set("Content-Type", contentTypeForKey(key))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GuideAssets bundles a completed guide's stored illustrations into one zip
// download.
func (a *App) GuideAssets(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, ok := a.Jobs.GetJob(r.Context(), domain.StageGuide, jobID)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	if job.Status != domain.StatusCompleted {
		a.error(w, http.StatusConflict, "not_ready", "guide is not completed yet")
		return
	}
	var result domain.GuideResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: guide result decode failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not read guide result")
		return
	}

	var entries []zip.Entry
	for _, step := range result.Steps {
		if step.ImageKey == "" || a.Assets == nil {
			continue
		}
		data, err := a.Assets.Read(r.Context(), step.ImageKey)
		if err != nil {
			a.Logger.Warn().Err(err).Str("key", step.ImageKey).Msg("handlers: skipping unreadable asset")
			continue
		}
		entries = append(entries, zip.Entry{Name: path.Base(step.ImageKey), Data: data})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "guide has no stored illustrations")
		return
	}

	archive, err := zip.Archive(entries)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: asset archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "guide-"+jobID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func contentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".webp"):
		return "image/webp"
	default:
		return "image/png"
	}
}
