package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opengov-labs/kestrel/internal/analysis"
	"github.com/opengov-labs/kestrel/internal/catalog"
	"github.com/opengov-labs/kestrel/internal/domain"
	"github.com/opengov-labs/kestrel/internal/lifecycle"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	catalog   *catalog.Catalog
	pipeline  *analysis.Pipeline
	lifecycle *lifecycle.Service
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(
	repo domain.Repository,
	cache domain.Cache,
	bus domain.EventBus,
	cat *catalog.Catalog,
	pipeline *analysis.Pipeline,
	lc *lifecycle.Service,
	version string,
) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		catalog:   cat,
		pipeline:  pipeline,
		lifecycle: lc,
		version:   version,
	}
}

// --- Health ---

// Health handles GET /health: liveness plus dependency checks.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "ok"
	checks := map[string]string{}

	if err := h.repo.Ping(ctx); err != nil {
		checks["repository"] = err.Error()
		status = "degraded"
	} else {
		checks["repository"] = "ok"
	}
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			checks["cache"] = err.Error()
			status = "degraded"
		} else {
			checks["cache"] = "ok"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(ctx); err != nil {
			checks["bus"] = err.Error()
			status = "degraded"
		} else {
			checks["bus"] = "ok"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	})
}

// Ready handles GET /ready.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ready",
		"version": h.version,
	})
}

// --- Feedback ---

// FeedbackRequest is the request body for POST /feedback.
type FeedbackRequest struct {
	Entity        string   `json:"entity"`
	EntityAr      string   `json:"entityAr,omitempty"`
	ServiceCenter string   `json:"serviceCenter,omitempty"`
	Date          string   `json:"date,omitempty"`
	Type          string   `json:"type,omitempty"`
	DislikeTraits []string `json:"dislikeTraits,omitempty"`
	DislikeText   string   `json:"dislikeText,omitempty"`
	GeneralText   string   `json:"generalText,omitempty"`
}

// SubmitFeedback handles POST /feedback: the record is stored and queued
// for asynchronous analysis.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON request body"})
		return
	}

	fb := &domain.FeedbackRecord{
		Entity:        req.Entity,
		EntityAr:      req.EntityAr,
		ServiceCenter: req.ServiceCenter,
		Date:          req.Date,
		Type:          req.Type,
		DislikeTraits: req.DislikeTraits,
		DislikeText:   req.DislikeText,
		GeneralText:   req.GeneralText,
	}
	if err := h.pipeline.Submit(r.Context(), fb); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"feedbackId": fb.ID,
		"status":     "received",
	})
}

// GetFeedback handles GET /feedback/{id}.
func (h *Handler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fb, err := h.repo.GetFeedback(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

// AnalyzeFeedback handles POST /feedback/{id}/analyze: a synchronous run of
// the analysis pipeline, used by operators and by deployments without a
// background worker.
func (h *Handler) AnalyzeFeedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.pipeline.Process(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListEntities handles GET /feedback/entities.
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.repo.ListEntities(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": entities,
		"count":    len(entities),
	})
}

// --- Reviewer ---

// InboxItem is one reviewer queue entry: the flagged record plus its
// escalation-policy priority.
type InboxItem struct {
	*domain.FeedbackRecord
	Priority int `json:"priority"`
}

// ReviewerInbox handles GET /reviewer/inbox: flagged complaints without a
// case yet, most severe first, escalation priority breaking ties within a
// severity band.
func (h *Handler) ReviewerInbox(w http.ResponseWriter, r *http.Request) {
	queue, err := h.repo.ListReviewQueue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]InboxItem, 0, len(queue))
	for _, fb := range queue {
		items = append(items, InboxItem{
			FeedbackRecord: fb,
			Priority:       h.pipeline.Priority(r.Context(), fb),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		si, sj := domain.SeverityLow, domain.SeverityLow
		if items[i].Classification != nil {
			si = items[i].Classification.Severity
		}
		if items[j].Classification != nil {
			sj = items[j].Classification.Severity
		}
		ri, rj := domain.SeverityRank(si), domain.SeverityRank(sj)
		if ri != rj {
			return ri < rj
		}
		return items[i].Priority > items[j].Priority
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

// DismissRequest is the request body for POST /reviewer/dismiss.
type DismissRequest struct {
	FeedbackID string `json:"feedbackId"`
}

// DismissFeedback handles POST /reviewer/dismiss: a reviewer removes a
// flagged record from the inbox without opening a case.
func (h *Handler) DismissFeedback(w http.ResponseWriter, r *http.Request) {
	var req DismissRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON request body"})
		return
	}
	if req.FeedbackID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "feedbackId is required"})
		return
	}
	if err := h.repo.DismissFeedback(r.Context(), req.FeedbackID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"feedbackId": req.FeedbackID,
		"status":     "dismissed",
	})
}

// --- Cases ---

// CreateCase handles POST /cases.
func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON request body"})
		return
	}
	c, err := h.lifecycle.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ListCases handles GET /cases with an optional entity filter.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get("entity")
	cases, err := h.lifecycle.List(r.Context(), entity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cases": cases,
		"count": len(cases),
	})
}

// GetCase handles GET /cases/{id}.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// SubmitEvidence handles POST /cases/{id}/evidence.
func (h *Handler) SubmitEvidence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req lifecycle.EvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON request body"})
		return
	}
	c, err := h.lifecycle.SubmitEvidence(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// VerifyCase handles POST /cases/{id}/verify.
func (h *Handler) VerifyCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req lifecycle.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON request body"})
		return
	}
	c, err := h.lifecycle.Verify(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// --- Rules ---

// ListRules handles GET /rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules := h.catalog.ListAll()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// GetRule handles GET /rules/{code}.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rule, ok := h.catalog.Get(code)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "rule not found: " + code})
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// --- Dashboard ---

// Dashboard handles GET /dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsValidation(err):
		status = http.StatusBadRequest
	case domain.IsNotFound(err):
		status = http.StatusNotFound
	case domain.IsConflict(err):
		status = http.StatusConflict
	case domain.IsExternalJudge(err):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{
		"error":     err.Error(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
