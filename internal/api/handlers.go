package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/injops/dashboard/internal/market"
	"github.com/injops/dashboard/internal/pages"
	"github.com/injops/dashboard/internal/refdata"
	"github.com/injops/dashboard/internal/reports"
	"github.com/injops/dashboard/internal/table"
	"go.uber.org/zap"
)

// ReferenceService is implemented by refdata.Holder.
type ReferenceService interface {
	Get() (*market.Reference, error)
	Load(ctx context.Context) (*market.Reference, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	pages     *pages.Registry
	reference ReferenceService
	cache     Pinger
	ws        http.HandlerFunc
	sse       http.HandlerFunc
	metrics   http.Handler
	shell     *shell
	logger    *zap.SugaredLogger
	appName   string
	network   string
}

type HandlerDeps struct {
	Pages     *pages.Registry
	Reference ReferenceService
	Cache     Pinger
	WebSocket http.HandlerFunc
	SSE       http.HandlerFunc
	Metrics   http.Handler
	Logger    *zap.SugaredLogger
	AppName   string
	Network   string
}

func NewHandler(deps HandlerDeps) (*Handler, error) {
	sh, err := newShell()
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	if deps.AppName == "" {
		deps.AppName = "Injective Dashboard"
	}
	return &Handler{
		pages:     deps.Pages,
		reference: deps.Reference,
		cache:     deps.Cache,
		ws:        deps.WebSocket,
		sse:       deps.SSE,
		metrics:   deps.Metrics,
		shell:     sh,
		logger:    deps.Logger,
		appName:   deps.AppName,
		network:   deps.Network,
	}, nil
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Readyz reports ready once reference data is loaded and the cache answers.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ready", Checks: map[string]string{}}

	if _, err := h.reference.Get(); err != nil {
		resp.Status = "not_ready"
		resp.Checks["reference"] = err.Error()
	} else {
		resp.Checks["reference"] = "ok"
	}

	if h.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			resp.Status = "not_ready"
			resp.Checks["cache"] = err.Error()
		} else {
			resp.Checks["cache"] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		http.NotFound(w, r)
		return
	}
	h.metrics.ServeHTTP(w, r)
}

func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, PagesResponse{
		Pages:           pageInfos(h.pages),
		LookbackOptions: pages.LookbackOptions,
		DefaultLookback: pages.DefaultLookback,
	})
}

func pageInfos(reg *pages.Registry) []PageInfo {
	list := reg.Pages()
	out := make([]PageInfo, 0, len(list))
	for _, p := range list {
		out = append(out, PageInfo{
			Title:               p.Title(),
			Slug:                p.Slug(),
			LookbackEnabled:     p.LookbackEnabled(),
			MarketFilterEnabled: p.MarketFilterEnabled(),
		})
	}
	return out
}

func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	h.servePage(w, r, pages.Page.Display)
}

func (h *Handler) RefreshPage(w http.ResponseWriter, r *http.Request) {
	h.servePage(w, r, pages.Page.Refresh)
}

// LastPage serves the most recently built table without querying the chain.
func (h *Handler) LastPage(w http.ResponseWriter, r *http.Request) {
	h.servePage(w, r, pages.Page.Last)
}

type pageAction func(pages.Page, context.Context, pages.Params) (*table.Table, error)

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request, action pageAction) {
	page, err := h.pages.Lookup(chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "PAGE_NOT_FOUND", err.Error())
		return
	}

	params, err := parseParams(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if !validFormat(format) {
		h.writeError(w, http.StatusBadRequest, "INVALID_FORMAT", "format must be one of json, html, csv, text, markdown")
		return
	}

	t, err := action(page, r.Context(), params)
	if err != nil {
		h.writePageError(w, r, page, err)
		return
	}
	h.writeTable(w, t, format)
}

func parseParams(r *http.Request) (pages.Params, error) {
	q := r.URL.Query()
	var p pages.Params
	if s := q.Get("days"); s != "" {
		days, err := strconv.Atoi(s)
		if err != nil || days < 0 {
			return p, errors.New("days must be a non-negative integer")
		}
		p.Days = days
	}
	p.MarketID = strings.TrimSpace(q.Get("market"))
	return p, nil
}

func validFormat(f string) bool {
	switch f {
	case "json", "html", "csv", "text", "markdown":
		return true
	}
	return false
}

func (h *Handler) writeTable(w http.ResponseWriter, t *table.Table, format string) {
	if !t.UpdatedAt.IsZero() {
		w.Header().Set("X-Updated-At", t.UpdatedAt.UTC().Format(time.RFC3339))
	}
	switch format {
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(t.RenderHTML()))
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(t.RenderCSV()))
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		t.RenderText(w)
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(t.RenderMarkdown()))
	default:
		h.writeJSON(w, http.StatusOK, t)
	}
}

func (h *Handler) writePageError(w http.ResponseWriter, r *http.Request, page pages.Page, err error) {
	switch {
	case errors.Is(err, pages.ErrInvalidLookback):
		h.writeError(w, http.StatusBadRequest, "INVALID_LOOKBACK", err.Error())
	case errors.Is(err, pages.ErrNotBuilt):
		h.writeError(w, http.StatusNotFound, "PAGE_NOT_BUILT", err.Error())
	case errors.Is(err, refdata.ErrNotLoaded):
		h.writeError(w, http.StatusServiceUnavailable, "REFERENCE_NOT_LOADED", err.Error())
	case errors.Is(err, pages.ErrNoTradeSource):
		h.writeError(w, http.StatusNotImplemented, "NO_TRADE_SOURCE", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, http.StatusGatewayTimeout, "PAGE_TIMEOUT", err.Error())
	default:
		h.logger.Errorw("Page request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"page", page.Slug(),
			"error", err,
		)
		h.writeError(w, http.StatusBadGateway, "PAGE_BUILD_ERROR", err.Error())
	}
}

func (h *Handler) GetReference(w http.ResponseWriter, r *http.Request) {
	ref, err := h.reference.Get()
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "REFERENCE_NOT_LOADED", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, referenceResponse(ref))
}

func (h *Handler) RefreshReference(w http.ResponseWriter, r *http.Request) {
	ref, err := h.reference.Load(r.Context())
	if err != nil {
		h.logger.Errorw("Reference reload failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
		h.writeError(w, http.StatusBadGateway, "REFERENCE_LOAD_ERROR", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, referenceResponse(ref))
}

func referenceResponse(ref *market.Reference) ReferenceResponse {
	c := ref.Counts()
	return ReferenceResponse{
		Tokens:            c.Tokens,
		SpotMarkets:       c.Spot,
		DerivativeMarkets: c.Derivatives,
		LoadedAt:          ref.LoadedAt(),
	}
}

func (h *Handler) ListSpotMarkets(w http.ResponseWriter, r *http.Request) {
	ref, err := h.reference.Get()
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "REFERENCE_NOT_LOADED", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, reports.SpotMarkets(ref))
}

func (h *Handler) ListDerivativeMarkets(w http.ResponseWriter, r *http.Request) {
	ref, err := h.reference.Get()
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "REFERENCE_NOT_LOADED", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, reports.DerivativeMarkets(ref))
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.ws == nil {
		http.NotFound(w, r)
		return
	}
	h.ws(w, r)
}

func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	if h.sse == nil {
		http.NotFound(w, r)
		return
	}
	h.sse(w, r)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warnw("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("API error", "code", code, "message", message, "status", status)
	} else {
		h.logger.Debugw("API error", "code", code, "message", message, "status", status)
	}
	h.writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
