// internal/handler/template_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/bulk-messenger/internal/controller"
	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/model"
	"github.com/unclebandit/bulk-messenger/internal/service"
)

// TemplateHandler holds the dependencies for template HTTP handlers
type TemplateHandler struct {
	Service *service.TemplateService
	Log     *logger.Logger
}

// NewTemplateHandler creates a new TemplateHandler with the given service
func NewTemplateHandler(svc *service.TemplateService, log *logger.Logger) *TemplateHandler {
	return &TemplateHandler{Service: svc, Log: log}
}

// ListTemplatesHandler returns template summaries sorted by name
func (h *TemplateHandler) ListTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	templates := h.Service.List()
	controller.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"templates": templates,
		"count":     len(templates),
	})
}

// SaveTemplateHandler creates or replaces a template
func (h *TemplateHandler) SaveTemplateHandler(w http.ResponseWriter, r *http.Request) {
	var payload service.TemplateInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		controller.WriteBadRequest(w, "invalid request body")
		return
	}

	t, err := h.Service.Save(payload)
	if err != nil {
		controller.WriteError(w, h.Log, "Failed to save template", err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "template": t})
}

// GetTemplateHandler returns one template with its content
func (h *TemplateHandler) GetTemplateHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	t, ok := h.Service.Get(name)
	if !ok {
		controller.WriteJSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"error":   "Template not found",
			"name":    name,
		})
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "template": t})
}

func (h *TemplateHandler) DeleteTemplateHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.Service.Delete(name); err != nil {
		controller.WriteError(w, h.Log, "Failed to delete template", err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Template deleted"})
}

// PreviewTemplateHandler renders a template against the posted contact, or a
// sample contact when the body is empty.
func (h *TemplateHandler) PreviewTemplateHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Contact model.Contact `json:"contact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		controller.WriteBadRequest(w, "invalid request body")
		return
	}

	preview, err := h.Service.Preview(chi.URLParam(r, "name"), payload.Contact)
	if err != nil {
		controller.WriteError(w, h.Log, "Failed to preview template", err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "preview": preview})
}
