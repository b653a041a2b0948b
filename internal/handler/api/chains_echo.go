package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"MacroChain/internal/domain/models"
	domrepo "MacroChain/internal/domain/repository"
	"MacroChain/internal/domain/service"
	"MacroChain/internal/service/metrics"
	"MacroChain/internal/service/ratelimit"
	"MacroChain/internal/services/patterns"
	"MacroChain/internal/usecase"
	xhttp "MacroChain/pkg/http"
	xlogger "MacroChain/pkg/logger"
	"MacroChain/pkg/util"

	"github.com/labstack/echo/v4"
)

// InstrumentReloader refreshes the tracked-instrument snapshot.
type InstrumentReloader interface {
	Reload(ctx context.Context) (*models.InstrumentSet, error)
}

// PatternReloader refreshes the pattern library.
type PatternReloader interface {
	Reload() (*patterns.Library, error)
}

// RateLimit is a token bucket applied per client to synchronous extraction.
type RateLimit struct {
	Capacity     float64
	RefillPerSec float64
}

// ExtractResponse is the payload of a synchronous extraction.
// Chain is null when no chain was produced and Reason says why.
type ExtractResponse struct {
	Chain        *models.CausalChain `json:"chain"`
	Reason       string              `json:"reason,omitempty"`
	QualityScore float64             `json:"quality_score"`
	Events       []models.MacroEvent `json:"events"`
}

// ChainsEchoHandler serves the chain read and extraction endpoints.
type ChainsEchoHandler struct {
	logger    *xlogger.Logger
	query     *usecase.ChainQuery
	extractor *usecase.ChainExtractor
	docs      domrepo.DocumentStore
	queue     domrepo.Enqueuer
	registry  InstrumentReloader
	patterns  PatternReloader
	rl        *ratelimit.Limiter
	limit     RateLimit
	now       func() time.Time
}

func NewChainsEchoHandler(
	logger *xlogger.Logger,
	query *usecase.ChainQuery,
	extractor *usecase.ChainExtractor,
	docs domrepo.DocumentStore,
	queue domrepo.Enqueuer,
	registry InstrumentReloader,
	lib PatternReloader,
	limit RateLimit,
) *ChainsEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ChainsEchoHandler{
		logger:    logger,
		query:     query,
		extractor: extractor,
		docs:      docs,
		queue:     queue,
		registry:  registry,
		patterns:  lib,
		rl:        ratelimit.New(),
		limit:     limit,
		now:       time.Now,
	}
}

func (h *ChainsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/chains", h.ListChains)
	g.POST("/chains/extract", h.Extract)
	g.POST("/documents/:id/extract", h.EnqueueExtract)
	g.POST("/registry/reload", h.ReloadRegistry)
	g.POST("/patterns/reload", h.ReloadPatterns)
}

func (h *ChainsEchoHandler) ListChains(c echo.Context) error {
	defer h.observe("list_chains", time.Now())

	req := &models.ListChainsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	chains, err := h.query.ListChains(c.Request().Context(), req.SourceDocumentID, req.Limit)
	if err != nil {
		return h.fail(c, "list_chains", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.ListResponse(c, chains, int64(len(chains)))
}

func (h *ChainsEchoHandler) Extract(c echo.Context) error {
	defer h.observe("extract", time.Now())

	if !h.rl.Allow(c.RealIP()+":extract", h.limit.Capacity, h.limit.RefillPerSec) {
		h.logger.Warn("chains.extract rate_limited", xlogger.String("remote", c.RealIP()))
		metrics.APIErrors.WithLabelValues("extract").Inc()
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}

	req := &models.ExtractRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	doc := &models.Document{
		ID:          strings.TrimSpace(req.ID),
		Title:       req.Title,
		Body:        req.Body,
		Source:      req.Source,
		URL:         req.URL,
		PublishedAt: util.ParseTimeDefault(req.Date, h.now()).UTC(),
	}

	out, err := h.extractor.ExtractAndStore(c.Request().Context(), doc)
	if err != nil {
		return h.fail(c, "extract", err)
	}
	return xhttp.SuccessResponse(c, toExtractResponse(out))
}

func (h *ChainsEchoHandler) EnqueueExtract(c echo.Context) error {
	defer h.observe("enqueue_extract", time.Now())

	req := &models.EnqueueExtractRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.queue == nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_UNAVAILABLE", "", "extraction queue is disabled", http.StatusServiceUnavailable))
	}

	ctx := c.Request().Context()
	if _, err := h.docs.Get(ctx, req.ID); err != nil {
		return h.fail(c, "enqueue_extract", err)
	}
	payload := usecase.ExtractDocumentPayload{DocumentID: req.ID}
	if err := h.queue.Enqueue(ctx, usecase.ExtractDocumentMessage, payload); err != nil {
		return h.fail(c, "enqueue_extract", err)
	}
	return xhttp.AcceptedResponse(c, payload)
}

func (h *ChainsEchoHandler) ReloadRegistry(c echo.Context) error {
	defer h.observe("reload_registry", time.Now())

	set, err := h.registry.Reload(c.Request().Context())
	if err != nil {
		return h.fail(c, "reload_registry", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"version":     set.Version,
		"instruments": set.Len(),
		"loaded_at":   set.LoadedAt,
	})
}

func (h *ChainsEchoHandler) ReloadPatterns(c echo.Context) error {
	defer h.observe("reload_patterns", time.Now())

	lib, err := h.patterns.Reload()
	if err != nil {
		return h.fail(c, "reload_patterns", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"version": lib.Version})
}

func (h *ChainsEchoHandler) observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// fail maps domain errors onto API errors.
func (h *ChainsEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.APIErrors.WithLabelValues(endpoint).Inc()
	switch {
	case errors.Is(err, models.ErrExtractionInFlight):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError(err.Error()))
	case errors.Is(err, models.ErrDocumentNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	case errors.Is(err, models.ErrInvalidDocument):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	return xhttp.InternalServerErrorResponse(c)
}

func toExtractResponse(out service.Outcome) ExtractResponse {
	events := out.Events
	if events == nil {
		events = []models.MacroEvent{}
	}
	return ExtractResponse{
		Chain:        out.Chain,
		Reason:       string(out.Reason),
		QualityScore: out.QualityScore,
		Events:       events,
	}
}
