// Common test helpers
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/clinicsearch/clients/medicinesapi"
	"github.com/meghashyamc/clinicsearch/config"
	"github.com/meghashyamc/clinicsearch/db/clinicdb"
	"github.com/meghashyamc/clinicsearch/db/kvdb"
	"github.com/meghashyamc/clinicsearch/db/searchdb"
	"github.com/meghashyamc/clinicsearch/events"
	"github.com/meghashyamc/clinicsearch/logger"
	"github.com/meghashyamc/clinicsearch/services/highlight"
	"github.com/meghashyamc/clinicsearch/services/index"
	"github.com/meghashyamc/clinicsearch/services/search"
	"github.com/meghashyamc/clinicsearch/validation"
	"github.com/stretchr/testify/require"
)

const fixturesPath = "../../config/fixtures.local.yaml"

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json"}

const testMedicinesBody = `{"data":{"data":[
	{"id":1,"name":"Paracetamol","type":"Tablet","medicine_code":"MED-001","generic_name":"Paracetamol","brand_name":"Biogesic","category":"Analgesic","quantity":200,"expiry_date":"2026-05-01"},
	{"id":2,"name":"Amoxicillin","type":"Capsule","medicine_code":"MED-002","generic_name":"Amoxicillin","brand_name":"Amoxil","category":"Antibiotic","quantity":50,"expiry_date":"2025-12-31"}
]}}`

type testCase struct {
	name           string
	requestHeaders map[string]string
	requestBody    map[string]any
	queryParams    map[string]string
	expectedStatus int
}

type testServer struct {
	router         *gin.Engine
	index          *index.Service
	hub            *events.Hub
	medicinesCalls *atomic.Int32
	medicinesDown  *atomic.Bool
}

func newTestLogger() logger.Logger {

	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func setupTestServer(t *testing.T, assert *require.Assertions) *testServer {

	t.Setenv("ENV", "test")

	cfg, err := config.Load()
	assert.NoError(err, "could not load config")
	storagePath := t.TempDir()
	cfg.Set("STORAGE_PATH", storagePath)
	cfg.Set("INDEX_PATH", "")
	cfg.Set("DB_DRIVER", "sqlite")
	cfg.Set("DB_DSN", filepath.Join(storagePath, "clinic.sqlite"))
	cfg.Set("HIGHLIGHT_TTL", "5s")

	medicinesCalls := &atomic.Int32{}
	medicinesDown := &atomic.Bool{}
	medicinesAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		medicinesCalls.Add(1)
		if medicinesDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testMedicinesBody))
	}))
	t.Cleanup(medicinesAPI.Close)
	cfg.Set("MEDICINES_URL", medicinesAPI.URL)

	testLogger := newTestLogger()

	searchDB, err := searchdb.New(testLogger, cfg)
	assert.NoError(err, "could not create search database")
	kvDB, err := kvdb.New(testLogger, cfg)
	assert.NoError(err, "could not create kv database")
	clinicDB, err := clinicdb.New(testLogger, cfg)
	assert.NoError(err, "could not create clinic database")

	ctx, cancel := context.WithCancel(context.Background())
	fixtures, err := clinicdb.LoadFixtures(fixturesPath)
	assert.NoError(err, "could not load fixtures")
	assert.NoError(clinicDB.Seed(ctx, fixtures), "could not seed clinic database")

	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")

	idx := index.NewIndex()
	indexService := index.New(testLogger, idx, clinicDB, medicinesapi.New(testLogger, cfg), searchDB, kvDB)
	assert.NoError(indexService.Build(ctx), "could not build index")
	indexService.Wait()

	hub := events.NewHub(testLogger)
	searchService := search.New(testLogger, idx, searchDB)
	correlator := highlight.New(testLogger, cfg, kvDB, hub, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	SetupSearch(router, testLogger, searchService, validator)
	SetupIndex(ctx, router, testLogger, indexService)
	SetupHighlight(router, testLogger, correlator, validator)

	t.Cleanup(func() {
		cancel()
		indexService.Wait()
		assert.NoError(clinicDB.Close(), "could not close clinic database")
		assert.NoError(searchDB.Close(), "could not close search database")
		assert.NoError(kvDB.Close(), "could not close kv database")
	})

	return &testServer{
		router:         router,
		index:          indexService,
		hub:            hub,
		medicinesCalls: medicinesCalls,
		medicinesDown:  medicinesDown,
	}
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBodyMap map[string]interface{}, queryParams map[string]string) *httptest.ResponseRecorder {

	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		values := url.Values{}
		for key, value := range queryParams {
			values.Set(key, value)
		}
		endpoint = endpoint + "?" + values.Encode()
	}
	var jsonBody []byte
	var req *http.Request
	if requestBodyMap != nil {
		jsonBody, err = json.Marshal(requestBodyMap)
		assert.NoError(err)
	}

	slog.Info("Making test request", "method", method, "endpoint", endpoint, "headers", headers, "body", string(jsonBody))

	if len(jsonBody) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(jsonBody))
	} else {
		req, err = http.NewRequest(method, endpoint, nil)
	}
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)

	return w
}

// decodeData unmarshals the data field of a response envelope into target.
func decodeData(assert *require.Assertions, w *httptest.ResponseRecorder, target any) {
	envelope := struct {
		Data   json.RawMessage `json:"data"`
		Errors []string        `json:"errors"`
	}{}
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &envelope), "response was %s", w.Body.String())
	assert.NoError(json.Unmarshal(envelope.Data, target), "data was %s", string(envelope.Data))
}

func eventually(assert *require.Assertions, condition func() bool) {
	assert.Eventually(condition, 2*time.Second, 10*time.Millisecond)
}
