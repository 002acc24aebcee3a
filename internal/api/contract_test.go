package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/reelforge/internal/jobs"
	"github.com/ManuGH/reelforge/internal/library"
)

var (
	openapiOnce sync.Once
	openapiDoc  *openapi3.T
	openapiErr  error
)

func loadOpenAPIDoc(t *testing.T) *openapi3.T {
	t.Helper()
	openapiOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromFile("openapi.yaml")
		if err != nil {
			openapiErr = err
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			openapiErr = err
			return
		}
		openapiDoc = doc
	})
	if openapiErr != nil {
		t.Fatalf("openapi load failed: %v", openapiErr)
	}
	return openapiDoc
}

func validateOpenAPIResponse(t *testing.T, req *http.Request, rr *httptest.ResponseRecorder, opts *openapi3filter.Options) {
	t.Helper()
	router, err := legacy.NewRouter(loadOpenAPIDoc(t))
	require.NoError(t, err, "openapi router init")

	route, pathParams, err := router.FindRoute(req)
	require.NoError(t, err, "openapi route lookup")

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status:  rr.Code,
		Header:  rr.Header(),
		Options: opts,
	}
	input.SetBodyBytes(rr.Body.Bytes())

	require.NoError(t, openapi3filter.ValidateResponse(context.Background(), input), "openapi response validation")
}

var headersOnly = &openapi3filter.Options{ExcludeResponseBody: true}

func TestContract_Jobs(t *testing.T) {
	e := newTestEnv(t, jobs.Config{Workers: 1, QueueSize: 1})

	req, rr := e.do(t, http.MethodPost, "/api/v1/jobs", []byte(`{"text":"hello world"}`), nil)
	require.Equal(t, http.StatusAccepted, rr.Code)
	validateOpenAPIResponse(t, req, rr, nil)

	var resp submitJobResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	_, err := uuid.Parse(resp.JobID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = e.tracker.Wait(ctx, resp.JobID)
	require.NoError(t, err)

	req, rr = e.do(t, http.MethodGet, "/api/v1/jobs/"+resp.JobID, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, req, rr, nil)

	req, rr = e.do(t, http.MethodDelete, "/api/v1/jobs/"+resp.JobID, nil, nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	validateOpenAPIResponse(t, req, rr, headersOnly)

	req, rr = e.do(t, http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	validateOpenAPIResponse(t, req, rr, headersOnly)

	req, rr = e.do(t, http.MethodPost, "/api/v1/jobs", []byte(`{"text":""}`), nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	validateOpenAPIResponse(t, req, rr, headersOnly)
}

func TestContract_Videos(t *testing.T) {
	e := newTestEnv(t, jobs.Config{Workers: 1})
	e.writeAsset(t, "clip.mp4", []byte("0123456789"))

	req, rr := e.do(t, http.MethodGet, "/api/v1/videos", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, req, rr, nil)

	req, rr = e.do(t, http.MethodGet, "/api/v1/videos/clip.mp4", nil, map[string]string{"Range": "bytes=0-3"})
	require.Equal(t, http.StatusPartialContent, rr.Code)
	validateOpenAPIResponse(t, req, rr, headersOnly)

	req, rr = e.do(t, http.MethodGet, "/api/v1/videos/clip.mp4/metadata", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, req, rr, nil)

	e.inspector.err = &library.InspectionFailed{Path: "clip.mp4", Err: errors.New("invalid data found")}
	req, rr = e.do(t, http.MethodGet, "/api/v1/videos/clip.mp4/metadata", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, req, rr, nil)

	req, rr = e.do(t, http.MethodGet, "/api/v1/videos/missing.mp4", nil, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	validateOpenAPIResponse(t, req, rr, headersOnly)
}
