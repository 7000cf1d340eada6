package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// sanitizedError is the only body a 5xx ever carries.
const sanitizedError = "Something went wrong"

// APIResponse is the envelope of every response. Status always equals the
// HTTP status code.
type APIResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

func writeEnvelope(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return writeEnvelope(c, http.StatusOK, data)
}

// BadRequestResponse answers 400 with the validation details.
func BadRequestResponse(c echo.Context, errs []ValidationError) error {
	return writeEnvelope(c, http.StatusBadRequest, errs)
}

func InternalServerErrorResponse(c echo.Context) error {
	return writeEnvelope(c, http.StatusInternalServerError, sanitizedError)
}

// AppErrorResponse answers with the status of err when it is an AppError.
// 5xx AppErrors keep their code but never expose a cause; anything else is a
// sanitized 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return InternalServerErrorResponse(c)
	}
	return writeEnvelope(c, appErr.Status, []*AppError{appErr})
}
