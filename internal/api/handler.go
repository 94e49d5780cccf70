package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/investigation"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	svc     *investigation.Service
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	async   bool
	version string
}

// NewHandler creates a new API handler. With async set, regeneration is
// handed to the worker over the bus instead of running in the request.
func NewHandler(svc *investigation.Service, deps investigation.Deps, async bool, version string) *Handler {
	return &Handler{
		svc:     svc,
		repo:    deps.Repo,
		cache:   deps.Cache,
		bus:     deps.Bus,
		async:   async && deps.Bus != nil,
		version: version,
	}
}

// Health reports liveness and the state of the backing stores.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns 503 until a dataset snapshot is installed.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// DashboardStats handles GET /api/dashboard/stats.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.DashboardStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListCompanies handles GET /api/companies?risk_category=&limit=.
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	companies, err := h.svc.ListCompanies(r.Context(), r.URL.Query().Get("risk_category"), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"companies": companies,
		"count":     len(companies),
	})
}

// GetCompany handles GET /api/companies/{id}.
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.CompanyDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// GetInvestigation handles GET /api/companies/{id}/investigation.
func (h *Handler) GetInvestigation(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.InvestigationSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// NetworkGraph handles GET /api/network?entity_id=&depth=.
func (h *Handler) NetworkGraph(w http.ResponseWriter, r *http.Request) {
	depth, err := intParam(r, "depth")
	if err != nil {
		writeError(w, err)
		return
	}

	graph, err := h.svc.NetworkGraph(r.Context(), r.URL.Query().Get("entity_id"), depth)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, graph)
}

// FraudClusters handles GET /api/clusters.
func (h *Handler) FraudClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.svc.FraudClusters(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clusters": clusters,
		"count":    len(clusters),
	})
}

// ListRules handles GET /api/rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.svc.Rules()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loaded,
		"count": len(loaded),
	})
}

// ReloadRules handles POST /api/rules/reload. It re-reads the configured
// rules without a restart and re-evaluates the installed snapshot.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.ReloadRules(r.Context())
	if err != nil {
		slog.Error("rule reload failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded",
		"count":   count,
	})
}

// GetDataset handles GET /api/dataset and returns the installed dataset's
// record and verification summary.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Dataset(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListDatasets handles GET /api/datasets?limit=, newest first.
func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"datasets": []*domain.DatasetRecord{},
			"count":    0,
		})
		return
	}

	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := h.repo.ListDatasets(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasets": records,
		"count":    len(records),
	})
}

// RegenerateRequest is the request body for POST /api/dataset/regenerate.
// A missing seed draws a fresh one.
type RegenerateRequest struct {
	Seed *int64 `json:"seed,omitempty"`
}

// RegenerateResponse reports a finished or queued regeneration.
type RegenerateResponse struct {
	JobID     string             `json:"jobId"`
	Status    string             `json:"status"`
	Seed      int64              `json:"seed"`
	DatasetID string             `json:"datasetId,omitempty"`
	Summary   *domain.Summary    `json:"summary,omitempty"`
	Metadata  RegenerateMetadata `json:"metadata"`
}

// RegenerateMetadata carries request diagnostics.
type RegenerateMetadata struct {
	TraceID string `json:"traceId"`
	TotalMs int64  `json:"totalMs"`
	Version string `json:"version"`
}

// Regenerate handles POST /api/dataset/regenerate.
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req RegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}

	resp := RegenerateResponse{
		JobID: uuid.New().String(),
		Seed:  seed,
	}
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.Version = h.version

	if h.async {
		payload, _ := json.Marshal(domain.RegenerateRequest{JobID: resp.JobID, Seed: seed})
		if err := h.bus.Publish(ctx, domain.TopicRegenerate, payload); err != nil {
			slog.Error("failed to queue regeneration", "job_id", resp.JobID, "error", err)
			writeError(w, err)
			return
		}
		resp.Status = "queued"
		resp.Metadata.TotalMs = time.Since(start).Milliseconds()
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	rec, err := h.svc.Regenerate(ctx, seed, resp.JobID)
	if err != nil {
		slog.Error("regeneration failed", "job_id", resp.JobID, "seed", seed, "error", err)
		writeError(w, err)
		return
	}

	resp.Status = "completed"
	resp.DatasetID = rec.ID
	resp.Summary = &rec.Summary
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	writeJSON(w, http.StatusOK, resp)
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, name)
	}
	return v, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoScore):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoSnapshot):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
