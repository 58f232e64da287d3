package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cambo-gazetteer/internal/domain"
	"cambo-gazetteer/internal/metrics"

	"github.com/go-chi/chi/v5"
)

const errQueryRequired = "Query parameter 'q' is required"

// intParam：缺失或无法解析时返回 0，由核心归一化为默认值
func intParam(r *http.Request, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(name)))
	if err != nil {
		return 0
	}
	return n
}

// fail：核心错误统一映射；客户端已断开时不再写响应
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		h.log.Debug("api_canceled", "path", r.URL.Path)
		return
	}
	if errors.Is(err, domain.ErrInvalidType) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.log.Error("api_error", "path", r.URL.Path, "query", r.URL.RawQuery, "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	v1 := h.base + "/v1"
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        apiName,
		"version":     h.version,
		"description": apiDescription,
		"endpoints": map[string]string{
			"health":       h.base + "/health",
			"code":         v1 + "/code/{code}",
			"provinces":    v1 + "/provinces",
			"districts":    v1 + "/districts?province={code}",
			"communes":     v1 + "/communes?district={code}",
			"villages":     v1 + "/villages?commune={code}",
			"search":       v1 + "/search?q={query}&page={page}&limit={limit}",
			"autocomplete": v1 + "/autocomplete?q={query}&limit={limit}",
			"stats":        v1 + "/stats",
		},
	})
}

func (h *Handler) handleCode(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	detail, err := h.svc.LocationByCode(r.Context(), code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if detail == nil {
		metrics.NotFoundTotal.Inc()
		writeError(w, http.StatusNotFound, "Location not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleProvinces(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Provinces(r.Context(), intParam(r, "page"), intParam(r, "limit"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleListing：按父级查询参数列出指定类型；父级参数缺失时列出该类型全部单元（分页）
func (h *Handler) handleListing(t domain.UnitType, parentParam string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var parent *string
		if p := r.URL.Query().Get(parentParam); p != "" {
			parent = &p
		}
		page, err := h.svc.ListByTypeAndParent(r.Context(), t, parent, intParam(r, "page"), intParam(r, "limit"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, errQueryRequired)
		return
	}
	res, err := h.svc.Search(r.Context(), q, intParam(r, "page"), intParam(r, "limit"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, errQueryRequired)
		return
	}
	res, err := h.svc.Autocomplete(r.Context(), q, intParam(r, "limit"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
