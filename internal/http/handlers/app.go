package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"sproutling/internal/domain"
	"sproutling/internal/stage"
	"sproutling/internal/storage"
	"sproutling/internal/store"
)

type App struct {
	Orchestrator *stage.Orchestrator
	Jobs         *store.Jobs
	Assets       *storage.FileStore
	Logger       zerolog.Logger
}

func NewApp(orchestrator *stage.Orchestrator, jobs *store.Jobs, assets *storage.FileStore, logger zerolog.Logger) *App {
	return &App{Orchestrator: orchestrator, Jobs: jobs, Assets: assets, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, codeStr, msg string) {
	a.json(w, code, map[string]any{"error": map[string]string{"code": codeStr, "message": msg}})
}

// startRequest is the shared body of every stage start endpoint. Fields that
// do not apply to a stage are ignored.
type startRequest struct {
	ImageBase64  string `json:"image_base64"`
	MimeType     string `json:"mime_type"`
	ResearchMode string `json:"research_mode"`
	WithImages   *bool  `json:"with_images"`
}

// decodeStart parses a stage start body into orchestrator input. The image is
// accepted raw base64 or as a data URI; the MIME type defaults from the data
// URI, then from mime_type, then to JPEG.
func decodeStart(r *http.Request) (stage.StartInput, string) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return stage.StartInput{}, "invalid payload"
	}
	payload := req.ImageBase64
	mime := strings.TrimSpace(req.MimeType)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found {
			return stage.StartInput{}, "malformed data URI"
		}
		payload = data
		if m, _, _ := strings.Cut(meta, ";"); mime == "" && m != "" {
			mime = m
		}
	}
	if payload == "" {
		return stage.StartInput{}, "image_base64 required"
	}
	image, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return stage.StartInput{}, "image_base64 is not valid base64"
	}
	if mime == "" {
		mime = "image/jpeg"
	}
	in := stage.StartInput{
		Image:        image,
		MIME:         mime,
		ResearchMode: domain.ParseResearchMode(req.ResearchMode),
		GuideImages:  true,
	}
	if req.WithImages != nil {
		in.GuideImages = *req.WithImages
	}
	return in, ""
}

// jobStatus renders the shared polling contract for one stage job.
func (a *App) jobStatus(w http.ResponseWriter, r *http.Request, st domain.Stage, jobID string) {
	job, ok := a.Jobs.GetJob(r.Context(), st, jobID)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, job.View())
}
