package api

import (
	"errors"

	"AgriCast/internal/usecase"
	xhttp "AgriCast/pkg/http"
	applogger "AgriCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// errorResponse maps usecase errors onto the response envelope. Anything
// unclassified becomes a sanitized 500; its cause only reaches the log.
func errorResponse(c echo.Context, l *applogger.Logger, op string, err error) error {
	var appErr *xhttp.AppError
	switch {
	case errors.Is(err, usecase.ErrModelUnavailable):
		appErr = xhttp.ServiceUnavailableError("Model not loaded")
	case usecase.IsValidation(err):
		appErr = xhttp.BadRequestError(err.Error())
	case errors.Is(err, usecase.ErrJobNotFound):
		appErr = xhttp.NotFoundError("Training job not found")
	}

	if appErr == nil {
		l.Error(op+" failed", applogger.String("route", c.Path()), applogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	l.Warn(op+" rejected",
		applogger.String("route", c.Path()),
		applogger.Int("status", appErr.Status),
		applogger.Error(err))
	return xhttp.AppErrorResponse(c, appErr.WithError(err))
}
