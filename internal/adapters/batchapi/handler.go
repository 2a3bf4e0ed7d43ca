// Package batchapi exposes batch mutation, container lookup, and export
// endpoints over HTTP.
package batchapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"containercore/internal/adapters/exports"
	"containercore/pkg/domain"
)

// BatchApplier processes one batch of instructions atomically.
type BatchApplier interface {
	ApplyBatch(ctx context.Context, batch domain.Batch) (domain.BatchResult, error)
}

// ContainerReader serves committed container state.
type ContainerReader interface {
	GetContainer(id string) (domain.Container, bool)
	ListContainers() []domain.Container
}

// Handler provides HTTP access to batches, containers, and exports.
type Handler struct {
	Service    BatchApplier
	Containers ContainerReader
	Exports    exports.Scheduler
	Metrics    http.Handler

	// Passcode, when non-empty, is required in the X-Passcode header on all
	// API routes. Health and metrics stay open.
	Passcode string
}

// NewHandler constructs an API handler over the batch service.
func NewHandler(service BatchApplier, containers ContainerReader) *Handler {
	return &Handler{Service: service, Containers: containers}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	if path == "" {
		path = "/"
	}

	switch {
	case r.Method == http.MethodGet && path == "/healthz":
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	case path == "/metrics":
		if h.Metrics == nil {
			http.NotFound(w, r)
			return
		}
		h.Metrics.ServeHTTP(w, r)
		return
	}

	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid passcode")
		return
	}

	switch {
	case path == "/api/v1/batches":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleBatch(w, r)
	case path == "/api/v1/containers":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleListContainers(w, r)
	case strings.HasPrefix(path, "/api/v1/containers/"):
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleGetContainer(w, r, strings.TrimPrefix(path, "/api/v1/containers/"))
	case strings.HasPrefix(path, "/api/v1/exports"):
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExports(w, r, path)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.Passcode == "" {
		return true
	}
	supplied := r.Header.Get("X-Passcode")
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(h.Passcode)) == 1
}

type batchRequest struct {
	Instructions domain.Batch `json:"instructions"`
}

type batchErrorBody struct {
	Index   int              `json:"index"`
	Kind    domain.ErrorKind `json:"kind"`
	Ref     string           `json:"ref,omitempty"`
	Message string           `json:"message"`
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "batch service not configured")
		return
	}
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch payload")
		return
	}
	if len(req.Instructions) == 0 {
		writeError(w, http.StatusBadRequest, "instructions required")
		return
	}

	result, err := h.Service.ApplyBatch(r.Context(), req.Instructions)
	if err != nil {
		if batchErr, ok := domain.AsBatchError(err); ok {
			status := http.StatusInternalServerError
			if batchErr.ClientFault() {
				status = http.StatusBadRequest
			}
			writeJSON(w, status, map[string]any{"error": batchErrorBody{
				Index:   batchErr.Index,
				Kind:    batchErr.Kind,
				Ref:     batchErr.Ref,
				Message: batchErr.Error(),
			}})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListContainers(w http.ResponseWriter, _ *http.Request) {
	if h.Containers == nil {
		writeError(w, http.StatusInternalServerError, "container reader not configured")
		return
	}
	containers := h.Containers.ListContainers()
	writeJSON(w, http.StatusOK, map[string]any{"containers": containers, "count": len(containers)})
}

func (h *Handler) handleGetContainer(w http.ResponseWriter, _ *http.Request, id string) {
	if h.Containers == nil {
		writeError(w, http.StatusInternalServerError, "container reader not configured")
		return
	}
	if id == "" {
		http.NotFound(w, nil)
		return
	}
	container, ok := h.Containers.GetContainer(id)
	if !ok {
		writeError(w, http.StatusNotFound, "container not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"container": container})
}

type exportCreateRequest struct {
	Prefix      string   `json:"prefix"`
	Formats     []string `json:"formats"`
	RequestedBy string   `json:"requested_by"`
	Reason      string   `json:"reason"`
}

func (h *Handler) handleExports(w http.ResponseWriter, r *http.Request, path string) {
	if path == "/api/v1/exports" {
		switch r.Method {
		case http.MethodPost:
			h.handleExportCreate(w, r)
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"exports": h.Exports.ListExports()})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(path, "/api/v1/exports/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	record, ok := h.Exports.GetExport(id)
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	var req exportCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
		writeError(w, http.StatusBadRequest, "invalid export request payload")
		return
	}
	formats := make([]exports.Format, 0, len(req.Formats))
	for _, f := range req.Formats {
		format := exports.Format(strings.ToLower(strings.TrimSpace(f)))
		if !exports.KnownFormat(format) {
			writeError(w, http.StatusBadRequest, "unsupported export format "+f)
			return
		}
		formats = append(formats, format)
	}
	record, err := h.Exports.EnqueueExport(r.Context(), exports.Input{
		Prefix:      req.Prefix,
		Formats:     formats,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
