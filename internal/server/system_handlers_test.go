package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/advisor/internal/modules/universe"
	"github.com/aristath/advisor/internal/scheduler"
)

type stubMarket struct {
	result     *universe.ImportResult
	reloadErr  error
	lastDir    string
	lastImport *time.Time
	coverage   []universe.Coverage
}

func (s *stubMarket) Reload(dir string) (*universe.ImportResult, error) {
	s.lastDir = dir
	return s.result, s.reloadErr
}

func (s *stubMarket) LastImportedAt() (*time.Time, error) { return s.lastImport, nil }

func (s *stubMarket) Coverage() ([]universe.Coverage, error) { return s.coverage, nil }

type stubCache struct {
	entries       int
	invalidations int
	err           error
}

func (s *stubCache) Count() (int, error) { return s.entries, nil }

func (s *stubCache) InvalidateAll() error {
	if s.err != nil {
		return s.err
	}
	s.invalidations++
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleReloadReloadsAndInvalidates(t *testing.T) {
	market := &stubMarket{result: &universe.ImportResult{Files: 2, Rows: 500, SkippedRows: 3}}
	cache := &stubCache{}
	h := NewSystemHandlers(zerolog.Nop(), "/data/raw", market, cache, nil, nil, "")

	rec := httptest.NewRecorder()
	h.HandleReload(rec, httptest.NewRequest(http.MethodPost, "/api/system/reload", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["files"])
	assert.Equal(t, float64(500), body["rows"])
	assert.Equal(t, float64(3), body["skipped_rows"])

	assert.Equal(t, "/data/raw", market.lastDir)
	assert.Equal(t, 1, cache.invalidations)
}

func TestHandleReloadWithoutDataDir(t *testing.T) {
	h := NewSystemHandlers(zerolog.Nop(), "", &stubMarket{}, &stubCache{}, nil, nil, "")

	rec := httptest.NewRecorder()
	h.HandleReload(rec, httptest.NewRequest(http.MethodPost, "/api/system/reload", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no data directory configured")
}

func TestHandleReloadKeepsCacheOnImportFailure(t *testing.T) {
	market := &stubMarket{reloadErr: errors.New("directory unreadable")}
	cache := &stubCache{}
	h := NewSystemHandlers(zerolog.Nop(), "/data/raw", market, cache, nil, nil, "")

	rec := httptest.NewRecorder()
	h.HandleReload(rec, httptest.NewRequest(http.MethodPost, "/api/system/reload", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "directory unreadable")
	assert.Zero(t, cache.invalidations)
}

func TestHandleReloadReportsInvalidationFailure(t *testing.T) {
	market := &stubMarket{result: &universe.ImportResult{Files: 1, Rows: 10}}
	cache := &stubCache{err: errors.New("cache database locked")}
	h := NewSystemHandlers(zerolog.Nop(), "/data/raw", market, cache, nil, nil, "")

	rec := httptest.NewRecorder()
	h.HandleReload(rec, httptest.NewRequest(http.MethodPost, "/api/system/reload", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalidate statistics cache")
}

func TestHandleReloadRejectsGet(t *testing.T) {
	h := NewSystemHandlers(zerolog.Nop(), "/data/raw", &stubMarket{}, &stubCache{}, nil, nil, "")

	rec := httptest.NewRecorder()
	h.HandleReload(rec, httptest.NewRequest(http.MethodGet, "/api/system/reload", nil))

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleStatus(t *testing.T) {
	imported := time.Date(2023, 12, 31, 2, 30, 0, 0, time.UTC)
	market := &stubMarket{
		lastImport: &imported,
		coverage: []universe.Coverage{
			{Symbol: "TA35", Observations: 36, FirstDate: time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC), LastDate: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)},
			{Symbol: "GOVBOND", Observations: 36, FirstDate: time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC), LastDate: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)},
		},
	}
	cache := &stubCache{entries: 4}

	historyPath := filepath.Join(t.TempDir(), "history.db")
	require.NoError(t, os.WriteFile(historyPath, []byte("not really a database"), 0644))

	h := NewSystemHandlers(zerolog.Nop(), "/data/raw", market, cache, nil, nil, historyPath)

	rec := httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	assert.Equal(t, "ok", body["status"])

	host, ok := body["host"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, host, "cpu_percent")
	assert.Contains(t, host, "ram_percent")

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), data["symbols"])
	assert.Equal(t, float64(72), data["observations"])
	assert.Equal(t, "2021-01-31", data["first_date"])
	assert.Equal(t, "2023-12-31", data["last_date"])
	assert.Equal(t, imported.Format(time.RFC3339), data["last_imported_at"])

	cacheStatus, ok := body["cache"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(4), cacheStatus["entries"])

	schedStatus, ok := body["scheduler"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, schedStatus["enabled"])

	databases, ok := body["databases"].(map[string]interface{})
	require.True(t, ok)
	history, ok := databases["history"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(len("not really a database")), history["size_bytes"])
}

type tickJob struct{}

func (tickJob) Run() error { return nil }

func (tickJob) Name() string { return "tick" }

func TestHandleStatusReportsSchedulerJobs(t *testing.T) {
	sched := scheduler.New(zerolog.Nop())
	require.NoError(t, sched.AddJob("0 0 3 * * *", tickJob{}))

	h := NewSystemHandlers(zerolog.Nop(), "", &stubMarket{}, &stubCache{}, sched, nil, "")

	rec := httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	schedStatus, ok := body["scheduler"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, schedStatus["enabled"])

	jobs, ok := schedStatus["jobs"].([]interface{})
	require.True(t, ok)
	require.Len(t, jobs, 1)
	job := jobs[0].(map[string]interface{})
	assert.Equal(t, "tick", job["name"])
	assert.Equal(t, "0 0 3 * * *", job["schedule"])
}
