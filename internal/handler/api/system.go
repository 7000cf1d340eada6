package api

import (
	"AgriCast/internal/services/analytics"
	"AgriCast/pkg/cache"
	xhttp "AgriCast/pkg/http"
	applogger "AgriCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	ServiceName    = "AgriCast ML Service"
	ServiceVersion = "0.17.0"
)

type Banner struct {
	Service string          `json:"service"`
	Version string          `json:"version"`
	Status  string          `json:"status"`
	Models  map[string]bool `json:"models"`
}

type Health struct {
	Status string          `json:"status"`
	Models map[string]bool `json:"models"`
}

// SystemHandler serves liveness, model metadata and reload.
type SystemHandler struct {
	registry *analytics.Registry
	cache    cache.Service
	log      *applogger.Logger
}

// NewSystemHandler builds the handler. c may be nil; when set, a reload
// purges cached predictions of the previous models.
func NewSystemHandler(r *analytics.Registry, c cache.Service, l *applogger.Logger) *SystemHandler {
	return &SystemHandler{registry: r, cache: c, log: l.With(applogger.String("component", "api"))}
}

func (h *SystemHandler) Root(c echo.Context) error {
	return xhttp.SuccessResponse(c, Banner{
		Service: ServiceName,
		Version: ServiceVersion,
		Status:  "operational",
		Models:  h.registry.Status(),
	})
}

func (h *SystemHandler) Health(c echo.Context) error {
	status := h.registry.Status()
	return xhttp.SuccessResponse(c, Health{Status: healthOf(status), Models: status})
}

func healthOf(loaded map[string]bool) string {
	for _, ok := range loaded {
		if !ok {
			return "degraded"
		}
	}
	return "healthy"
}

func (h *SystemHandler) ModelsInfo(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.registry.Info())
}

// ModelInfo serves the metadata of one model, or 503 when it is not loaded.
func (h *SystemHandler) ModelInfo(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		info := h.registry.Info()[name]
		if !info.Loaded {
			return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError(name+" not loaded"))
		}
		return xhttp.SuccessResponse(c, info)
	}
}

func (h *SystemHandler) Reload(c echo.Context) error {
	ctx := c.Request().Context()
	status := h.registry.Reload(ctx)
	if h.cache != nil {
		if err := h.cache.DeleteByPattern(ctx, "predict:*"); err != nil {
			h.log.Warn("purge prediction cache", applogger.Error(err))
		}
	}
	h.log.Info("models reloaded", applogger.Any("models", status))
	return xhttp.SuccessResponse(c, Health{Status: healthOf(status), Models: status})
}
