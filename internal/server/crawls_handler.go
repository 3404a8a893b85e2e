package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/xeipuuv/gojsonschema"

	"nithronos/nosdu/internal/httpx"
	"nithronos/nosdu/internal/jobs"
)

const crawlRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["path"],
  "additionalProperties": false,
  "properties": {
    "path": {"type": "string", "minLength": 1, "pattern": "^/"},
    "max_depth": {"type": "integer", "minimum": 0}
  }
}`

var crawlSchema = gojsonschema.NewStringLoader(crawlRequestSchema)

type crawlRequest struct {
	Path     string `json:"path"`
	MaxDepth int    `json:"max_depth"`
}

// validateCrawlRequest checks body against the request schema and returns
// one "field: description" string per violation.
func validateCrawlRequest(body []byte) ([]string, error) {
	result, err := gojsonschema.Validate(crawlSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	problems := []string{}
	for _, e := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return problems, nil
}

// CrawlsHandler exposes the crawl job manager.
type CrawlsHandler struct {
	jobs *jobs.Manager
}

func NewCrawlsHandler(m *jobs.Manager) *CrawlsHandler {
	return &CrawlsHandler{jobs: m}
}

func (h *CrawlsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Submit)
	r.Get("/active", h.GetActive)
	r.Get("/{id}", h.GetJob)
	r.Delete("/{id}", h.CancelJob)
	return r
}

// Submit starts a crawl.
// POST /api/v1/crawls {"path": "/srv", "max_depth": 0}
func (h *CrawlsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	problems, err := validateCrawlRequest(body)
	if err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	if len(problems) > 0 {
		httpx.WriteTypedError(w, http.StatusBadRequest, "invalid_request", "request does not match schema", problems)
		return
	}
	var req crawlRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}

	job, err := h.jobs.Submit(filepath.Clean(req.Path), req.MaxDepth)
	if err != nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.Header().Set("Location", "/api/v1/crawls/"+job.ID)
	httpx.WriteJSON(w, http.StatusAccepted, job)
}

// GetJob returns a job with its result once finished.
// GET /api/v1/crawls/{id}
func (h *CrawlsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(chi.URLParam(r, "id"))
	if errors.Is(err, jobs.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "crawl not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, job)
}

// GetActive returns the running job.
// GET /api/v1/crawls/active
func (h *CrawlsHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobs.Active()
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "no crawl running")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, job)
}

// CancelJob stops a running crawl.
// DELETE /api/v1/crawls/{id}
func (h *CrawlsHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.jobs.Cancel(id); errors.Is(err, jobs.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "crawl not found")
		return
	}
	job, _ := h.jobs.Get(id)
	httpx.WriteJSON(w, http.StatusOK, job)
}
