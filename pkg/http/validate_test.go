package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name    string    `json:"name" validate:"required"`
	Kind    string    `json:"kind" validate:"oneof=A B"`
	Horizon int       `json:"horizon" default:"30" validate:"gte=1,lte=90"`
	Values  []float64 `json:"values" validate:"min=2"`
}

func bind(t *testing.T, body string) (*sampleRequest, []ValidationError) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	out := &sampleRequest{}
	return out, ReadAndValidateRequest(c, out)
}

func TestReadAndValidateRequestAppliesDefaults(t *testing.T) {
	got, verrs := bind(t, `{"name":"n","kind":"A","values":[1,2]}`)
	require.Nil(t, verrs)
	assert.Equal(t, 30, got.Horizon)
}

func TestReadAndValidateRequestFieldErrors(t *testing.T) {
	_, verrs := bind(t, `{"kind":"C","horizon":91,"values":[1]}`)
	require.Len(t, verrs, 4)

	byField := map[string]ValidationError{}
	for _, v := range verrs {
		byField[v.Field] = v
	}
	assert.Equal(t, "ERR_REQUIRED", byField["name"].Code)
	assert.Equal(t, "ERR_ONEOF", byField["kind"].Code)
	assert.Equal(t, "kind must be one of: A, B", byField["kind"].Message)
	assert.Equal(t, "ERR_LTE", byField["horizon"].Code)
	assert.Equal(t, "90", byField["horizon"].Params["max"])
	assert.Equal(t, "values must contain at least 2 entries", byField["values"].Message)
}

func TestReadAndValidateRequestMalformedBody(t *testing.T) {
	_, verrs := bind(t, `{"name":`)
	require.Len(t, verrs, 1)
	assert.Equal(t, codeInvalidJSON, verrs[0].Code)
}

func TestValidateStruct(t *testing.T) {
	req := &sampleRequest{Name: "n", Kind: "B", Values: []float64{1, 2}}
	assert.Nil(t, ValidateStruct(context.Background(), req))
	assert.Equal(t, 30, req.Horizon)
}

func TestAppErrorResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	cause := assert.AnError
	require.NoError(t, AppErrorResponse(c, NotFoundError("missing").WithError(cause)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var env struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, http.StatusNotFound, env.Status)
	require.Len(t, env.Data, 1)
	assert.Equal(t, CodeNotFound, env.Data[0].Code)
	assert.NotContains(t, rec.Body.String(), cause.Error())
}

func TestUnclassifiedErrorIsSanitized(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, AppErrorResponse(c, assert.AnError))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), sanitizedError)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}
