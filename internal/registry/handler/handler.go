// Package handler exposes the registry over HTTP. It is a thin boundary:
// parse parameters, call the façade, translate errors to status codes.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "fedreg/pkg/domain-errors"
	"fedreg/internal/directory"
	"fedreg/internal/platform/middleware"
	"fedreg/internal/registry"
	"fedreg/internal/statement"
	"fedreg/pkg/requestcontext"
)

// ContentTypeEntityStatement is the media type for signed statement bodies.
const ContentTypeEntityStatement = "application/entity-statement+jwt"

// Handler handles federation and registry query endpoints.
type Handler struct {
	service    *registry.Service
	logger     *slog.Logger
	adminToken string
}

// New creates a registry Handler. adminToken guards the admin surface; when
// empty the admin routes always reject.
func New(service *registry.Service, logger *slog.Logger, adminToken string) *Handler {
	return &Handler{
		service:    service,
		logger:     logger,
		adminToken: adminToken,
	}
}

// Register registers all routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/.well-known/openid-federation", h.handleWellKnown)
	r.Get("/federation/fetch", h.handleFetch)
	r.Get("/federation/list", h.handleList)
	r.Post("/federation/recognition", h.handleRecognition)
	r.Get("/federation/health", h.handleHealth)

	r.Post("/v1/recognition", h.handleRecognition)
	r.Post("/v1/authorization", h.handleAuthorization)
	r.Get("/v1/entity/{entity_id}", h.handleEntityInfo)

	admin := chi.NewRouter()
	admin.Use(middleware.RequireAdminToken(h.adminToken, h.logger))
	admin.Post("/entities", h.handleAdminRegister)
	admin.Patch("/entities/{entity_id}/metadata", h.handleAdminUpdateMetadata)
	admin.Patch("/entities/{entity_id}/status", h.handleAdminUpdateStatus)
	admin.Delete("/entities/{entity_id}", h.handleAdminRemove)
	admin.Get("/audit", h.handleAdminAudit)
	r.Mount("/admin", admin)
}

func (h *Handler) handleWellKnown(w http.ResponseWriter, r *http.Request) {
	encoded, err := h.service.SelfStatement(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeStatement(w, encoded)
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	iss := r.URL.Query().Get("iss")
	sub := r.URL.Query().Get("sub")

	encoded, err := h.service.FetchStatement(r.Context(), iss, sub)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeStatement(w, encoded)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.ListSubordinates(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	h.writeJSON(w, http.StatusOK, ids)
}

func (h *Handler) handleRecognition(w http.ResponseWriter, r *http.Request) {
	var req registry.RecognitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.service.QueryRecognition(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAuthorization(w http.ResponseWriter, r *http.Request) {
	var req registry.AuthorizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.service.QueryAuthorization(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleEntityInfo(w http.ResponseWriter, r *http.Request) {
	entityID, err := url.PathUnescape(chi.URLParam(r, "entity_id"))
	if err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid entity_id"))
		return
	}

	info, err := h.service.GetEntityInfo(r.Context(), entityID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !info.Found {
		h.writeJSON(w, http.StatusNotFound, info)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	EntityID string `json:"entity_id"`
	directory.Registration
}

func (h *Handler) handleAdminRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	entry, err := h.service.Register(r.Context(), req.EntityID, req.Registration)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, entryView(entry))
}

func (h *Handler) handleAdminUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	entityID, err := url.PathUnescape(chi.URLParam(r, "entity_id"))
	if err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid entity_id"))
		return
	}

	var partial statement.Metadata
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	entry, err := h.service.UpdateMetadata(r.Context(), entityID, partial)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entryView(entry))
}

func (h *Handler) handleAdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	entityID, err := url.PathUnescape(chi.URLParam(r, "entity_id"))
	if err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid entity_id"))
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	entry, err := h.service.UpdateStatus(r.Context(), entityID, directory.Status(body.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entryView(entry))
}

func (h *Handler) handleAdminRemove(w http.ResponseWriter, r *http.Request) {
	entityID, err := url.PathUnescape(chi.URLParam(r, "entity_id"))
	if err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid entity_id"))
		return
	}

	if err := h.service.Remove(r.Context(), entityID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	entityID := r.URL.Query().Get("entity_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.service.AuditTrail(r.Context(), entityID, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, events)
}

type entryResponse struct {
	EntityID  string             `json:"entity_id"`
	Name      string             `json:"name,omitempty"`
	Status    string             `json:"status"`
	JWKSURI   string             `json:"jwks_uri,omitempty"`
	Metadata  statement.Metadata `json:"metadata,omitempty"`
	CreatedAt int64              `json:"created_at"`
	UpdatedAt int64              `json:"updated_at"`
}

func entryView(entry *directory.Entry) entryResponse {
	resp := entryResponse{
		EntityID:  entry.EntityID,
		Name:      entry.Name,
		Status:    string(entry.Status),
		JWKSURI:   entry.JWKSURI,
		CreatedAt: entry.CreatedAt.Unix(),
		UpdatedAt: entry.UpdatedAt.Unix(),
	}
	if entry.Claims != nil {
		resp.Metadata = entry.Claims.Metadata
	}
	return resp
}

func (h *Handler) writeStatement(w http.ResponseWriter, encoded string) {
	w.Header().Set("Content-Type", ContentTypeEntityStatement)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(encoded))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err.Error(),
		)
	}

	message := err.Error()
	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		message = dErr.Message
	}

	h.writeJSON(w, status, map[string]string{
		"error":   string(code),
		"message": message,
	})
}
