package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"groundstation/internal/middleware"
	"groundstation/internal/models"
	"groundstation/internal/parser"
	"groundstation/internal/repository"
	"groundstation/internal/service"
)

const fullLine = "T:23.50C, P:1005.32hPa, AX:0.12, AY:-0.40, AZ:0.98, GX:12.50, GY:-45.00, GZ:170.25, MX:0.10, MY:-0.20, MZ:0.30"

type testServer struct {
	engine *gin.Engine
	store  service.TelemetryService
	repo   repository.TelemetryRepository
	auth   service.AuthService
}

type brokenRepo struct {
	repository.TelemetryRepository
}

func (brokenRepo) GetLatest(ctx context.Context, limit int) ([]models.TelemetryRecord, error) {
	return nil, errors.New("connection reset")
}

func (brokenRepo) GetLatestFieldValue(ctx context.Context, field models.Field) (*float64, error) {
	return nil, errors.New("connection reset")
}

func (brokenRepo) Create(ctx context.Context, record *models.TelemetryRecord) error {
	return errors.New("disk full")
}

func newTestServer(t *testing.T, repo repository.TelemetryRepository) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if repo == nil {
		repo = repository.NewMemoryTelemetryRepository()
	}
	logger := zap.NewNop()
	store := service.NewTelemetryService(repo, nil, service.TelemetryConfig{
		OutputDir: t.TempDir(),
	}, logger)
	ingest := service.NewIngestService(store, parser.ModeStrict, logger)

	users, err := repository.NewFileUserRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	auth := service.NewAuthService(users, logger)
	_, err = auth.EnsureSuperadmin(context.Background(), "admin123")
	require.NoError(t, err)

	rt := &Router{
		Telemetry:     NewTelemetryHandler(store, logger),
		Ingest:        NewIngestHandler(ingest, logger),
		Auth:          NewAuthHandler(auth, logger),
		System:        NewSystemHandler(store, map[string]HealthCheck{"database": func(context.Context) error { return nil }}, nil, map[string]bool{"simulator": false}, logger),
		AuthService:   auth,
		IngestLimiter: rate.NewLimiter(rate.Inf, 1),
		LoginLimiter:  middleware.NewIPRateLimiter(rate.Inf, 1),
		Logger:        logger,
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	rt.Register(engine)

	return &testServer{engine: engine, store: store, repo: repo, auth: auth}
}

func (s *testServer) do(method, path, body string, configure ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, fn := range configure {
		fn(req)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func basicAuth(user, pass string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(user, pass) }
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func dataBody(line string) string {
	raw, _ := json.Marshal(map[string]string{"data": line})
	return string(raw)
}

func TestPostData(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/data", dataBody(fullLine))
	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.Equal(t, true, resp["success"])
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	count, err := s.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPostData_Rejected(t *testing.T) {
	s := newTestServer(t, nil)

	cases := map[string]string{
		"missing data key": `{"line": "T:1C"}`,
		"not json":         `T:1C`,
		"bad value":        dataBody("T:23.50C, P:abc"),
		"incomplete":       dataBody("T:23.50C, P:1005.32hPa"),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/data", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp map[string]interface{}
			decode(t, w, &resp)
			assert.NotEmpty(t, resp["error"])
		})
	}

	count, err := s.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPostUpload(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/upload", `{"latitude": 48.137, "longitude": 11.575, "humidity": 40}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/upload", `{"latitude": "north"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/upload", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostData_StoreFailure(t *testing.T) {
	s := newTestServer(t, brokenRepo{repository.NewMemoryTelemetryRepository()})

	w := s.do(http.MethodPost, "/data", dataBody(fullLine))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetSnapshot(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/api/telemetry", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"temperature":0,"humidity":0,"pressure":0,"location":{"lat":0,"lon":0}}`, w.Body.String())

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/data", dataBody(fullLine)).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/upload", `{"temperature": 19.5, "humidity": 40, "latitude": 48.1, "longitude": 11.5}`).Code)

	w = s.do(http.MethodGet, "/api/telemetry", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"temperature":19.5,"humidity":40,"pressure":1005.32,"location":{"lat":48.1,"lon":11.5}}`, w.Body.String())
}

func TestGetSnapshot_ReadFailure(t *testing.T) {
	s := newTestServer(t, brokenRepo{repository.NewMemoryTelemetryRepository()})

	w := s.do(http.MethodGet, "/api/telemetry", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = s.do(http.MethodGet, "/api/logs", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetLogs(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/api/logs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/data", dataBody(fullLine)).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/upload", `{"latitude": 48.1, "longitude": 11.5}`).Code)

	w = s.do(http.MethodGet, "/api/logs?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)

	var logs []map[string]interface{}
	decode(t, w, &logs)
	require.Len(t, logs, 2)

	newest := logs[0]
	assert.Equal(t, "gps", newest["source"])
	assert.Equal(t, 48.1, newest["latitude"])
	assert.Equal(t, "N/A", newest["pressure"])
	assert.Equal(t, "N/A", newest["gx"])
	for _, f := range models.AllFields {
		assert.Contains(t, newest, string(f))
	}

	oldest := logs[1]
	assert.Equal(t, "lora", oldest["source"])
	assert.Equal(t, "N/A", oldest["humidity"])
	assert.Equal(t, 12.5, oldest["gx"])

	w = s.do(http.MethodGet, "/api/logs?limit=1", "")
	decode(t, w, &logs)
	assert.Len(t, logs, 1)

	w = s.do(http.MethodGet, "/api/logs?limit=bogus", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetGyro(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/api/gyro", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"roll":0,"pitch":0,"yaw":0}`, w.Body.String())

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/data", dataBody(fullLine)).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/upload", `{"temperature": 20}`).Code)

	w = s.do(http.MethodGet, "/api/gyro", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"roll":12.5,"pitch":-45,"yaw":170.25}`, w.Body.String())
}

func TestExportTelemetry(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/api/telemetry/export?format=csv", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/data", dataBody(fullLine)).Code)

	w = s.do(http.MethodGet, "/api/telemetry/export?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, strings.HasPrefix(w.Body.String(), "id,recorded_at,source,temperature"))

	w = s.do(http.MethodGet, "/api/telemetry/export?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/telemetry/export?format=csv&from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndStats(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]interface{}
	decode(t, w, &health)
	assert.Equal(t, "ok", health["status"])

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/data", dataBody(fullLine)).Code)

	w = s.do(http.MethodGet, "/api/system/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Database struct {
			TelemetryRecords int64 `json:"telemetry_records"`
		} `json:"database"`
		Workers map[string]bool `json:"workers"`
	}
	decode(t, w, &stats)
	assert.Equal(t, int64(1), stats.Database.TelemetryRecords)
	assert.Contains(t, stats.Workers, "simulator")
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/api/login", `{"username": "superadmin", "password": "admin123"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.Equal(t, "superadmin", resp["role"])

	w = s.do(http.MethodPost, "/api/login", `{"username": "superadmin", "password": "nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/login", `{"username": "superadmin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserManagement(t *testing.T) {
	s := newTestServer(t, nil)
	admin := basicAuth("superadmin", "admin123")

	w := s.do(http.MethodGet, "/api/users", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	w = s.do(http.MethodPost, "/api/users", `{"username": "alice", "password": "password1"}`, admin)
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodPost, "/api/users", `{"username": "alice", "password": "password1"}`, admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/users", `{"username": "bob", "password": "123"}`, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	alice := basicAuth("alice", "password1")
	w = s.do(http.MethodGet, "/api/users", "", alice)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/users", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Users []models.UserInfo `json:"users"`
		Count int               `json:"count"`
	}
	decode(t, w, &list)
	assert.Equal(t, 2, list.Count)

	w = s.do(http.MethodPut, "/api/users/alice/password", `{"password": "password2"}`, alice)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPut, "/api/users/superadmin/password", `{"password": "password2"}`, basicAuth("alice", "password2"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, "/api/users/superadmin", "", admin)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, "/api/users/ghost", "", admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodDelete, "/api/users/alice", "", admin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/login", `{"username": "alice", "password": "password2"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIngestRateLimit(t *testing.T) {
	s := newTestServer(t, nil)
	limited := &Router{
		Telemetry:     NewTelemetryHandler(s.store, zap.NewNop()),
		Ingest:        NewIngestHandler(service.NewIngestService(s.store, parser.ModeStrict, zap.NewNop()), zap.NewNop()),
		Auth:          NewAuthHandler(s.auth, zap.NewNop()),
		System:        NewSystemHandler(s.store, nil, nil, nil, zap.NewNop()),
		AuthService:   s.auth,
		IngestLimiter: rate.NewLimiter(rate.Limit(0.001), 1),
		Logger:        zap.NewNop(),
	}
	engine := gin.New()
	limited.Register(engine)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/data", bytes.NewBufferString(dataBody(fullLine)))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}
