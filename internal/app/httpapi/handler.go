package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/blueboat-cloud/lighthouse/internal/app"
	"github.com/blueboat-cloud/lighthouse/internal/app/domain/deployment"
	"github.com/blueboat-cloud/lighthouse/internal/app/services/apps"
	"github.com/blueboat-cloud/lighthouse/internal/app/services/deployments"
	"github.com/blueboat-cloud/lighthouse/internal/app/services/logs"
	"github.com/blueboat-cloud/lighthouse/internal/app/services/orchestrator"
	"github.com/blueboat-cloud/lighthouse/internal/app/storage"
	"github.com/blueboat-cloud/lighthouse/pkg/logger"
)

// Handler exposes the platform REST API.
type Handler struct {
	app *app.Application
	log *logger.Logger
	mux *http.ServeMux
}

func NewHandler(application *app.Application, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &Handler{app: application, log: log, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /apps", h.createApp)
	h.mux.HandleFunc("GET /apps/{id}", h.getApp)
	h.mux.HandleFunc("POST /apps/{id}/deployments/prepare", h.prepareDeployment)
	h.mux.HandleFunc("POST /apps/{id}/deployments", h.createDeployment)
	h.mux.HandleFunc("GET /apps/{id}/deployments", h.listDeployments)
	h.mux.HandleFunc("GET /apps/{id}/logs", h.listAppLogs)
	h.mux.HandleFunc("GET /deployments/{id}", h.getDeployment)
	h.mux.HandleFunc("DELETE /deployments/{id}", h.deleteDeployment)
	h.mux.HandleFunc("GET /deployments/{id}/logs", h.listLogs)
	h.mux.HandleFunc("POST /deployments/{id}/logs", h.appendLog)
	h.mux.HandleFunc("GET /deployments/{id}/logs/stream", h.streamLogs)
	h.mux.HandleFunc("GET /proxy/app/{subdomain}", h.resolveApp)
	h.mux.HandleFunc("GET /proxy/deployment/{subdomain}", h.resolveDeployment)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- apps -------------------------------------------------------------------

type createAppRequest struct {
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
}

func (h *Handler) createApp(w http.ResponseWriter, r *http.Request) {
	var req createAppRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	a, err := h.app.Apps.Create(r.Context(), req.Name, req.Subdomain)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) getApp(w http.ResponseWriter, r *http.Request) {
	a, err := h.app.Apps.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// --- deployments ------------------------------------------------------------

func (h *Handler) prepareDeployment(w http.ResponseWriter, r *http.Request) {
	pre, err := h.app.Orchestrator.Prepare(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pre)
}

type createDeploymentRequest struct {
	PackageRef string              `json:"package"`
	Metadata   deployment.Metadata `json:"metadata"`
}

func (h *Handler) createDeployment(w http.ResponseWriter, r *http.Request) {
	var req createDeploymentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.PackageRef == "" {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("package is required"))
		return
	}
	d, err := h.app.Orchestrator.Create(r.Context(), r.PathValue("id"), req.PackageRef, req.Metadata)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) listDeployments(w http.ResponseWriter, r *http.Request) {
	first, err := intQuery(r, "first", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	list, err := h.app.Deployments.List(r.Context(), r.PathValue("id"), first, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) getDeployment(w http.ResponseWriter, r *http.Request) {
	d, err := h.app.Deployments.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) deleteDeployment(w http.ResponseWriter, r *http.Request) {
	// Idempotent: deleting an unknown id succeeds with nothing to report.
	d, found, err := h.app.Orchestrator.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// --- logs -------------------------------------------------------------------

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	first, err := intQuery(r, "first", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if first < 0 {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("first must not be negative"))
		return
	}
	page, err := h.app.Logs.List(r.Context(), r.PathValue("id"), first, r.URL.Query().Get("before"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// listAppLogs resolves an app's live deployment and serves its log page so
// callers don't have to look up the deployment ID themselves.
func (h *Handler) listAppLogs(w http.ResponseWriter, r *http.Request) {
	first, err := intQuery(r, "first", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if first < 0 {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("first must not be negative"))
		return
	}
	a, err := h.app.Apps.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if a.CurrentDeploymentID == "" {
		h.writeServiceError(w, fmt.Errorf("app %s has no live deployment: %w", a.ID, storage.ErrNotFound))
		return
	}
	page, err := h.app.Logs.List(r.Context(), a.CurrentDeploymentID, first, r.URL.Query().Get("before"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type appendLogRequest struct {
	TS        time.Time `json:"ts,omitempty"`
	RequestID string    `json:"request_id"`
	Message   string    `json:"message"`
}

func (h *Handler) appendLog(w http.ResponseWriter, r *http.Request) {
	var req appendLogRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	e, err := h.app.Logs.Append(r.Context(), r.PathValue("id"), req.RequestID, req.Message, req.TS)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// --- routing ----------------------------------------------------------------

func (h *Handler) resolveApp(w http.ResponseWriter, r *http.Request) {
	info, err := h.app.Routing.ResolveAppSubdomain(r.Context(), r.PathValue("subdomain"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) resolveDeployment(w http.ResponseWriter, r *http.Request) {
	info, err := h.app.Routing.ResolveDeploymentSubdomain(r.Context(), r.PathValue("subdomain"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Helpers --------------------------------------------------------------------

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, orchestrator.ErrDeploymentLive),
		errors.Is(err, orchestrator.ErrPackageConsumed),
		errors.Is(err, storage.ErrConflict):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, orchestrator.ErrUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, logs.ErrInvalidCursor),
		errors.Is(err, deployments.ErrInvalidPage),
		errors.Is(err, apps.ErrInvalidApp):
		h.writeError(w, http.StatusBadRequest, err)
	default:
		h.writeError(w, http.StatusInternalServerError, err)
	}
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}
