package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/sheetsync/internal/core/config"
	"github.com/vietddude/sheetsync/internal/infra/quota"
)

func TestHandleStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clk := func() time.Time { return now }
	tracker := quota.NewTracker(config.DefaultQuota(), quota.WithNow(clk))

	tracker.RecordCall(quota.Drive, quota.OpConvert)
	tracker.RecordCall(quota.Drive, quota.OpQuery)
	tracker.RecordCall(quota.Sheets, quota.OpRead)
	now = now.Add(15 * time.Second)

	rec := httptest.NewRecorder()
	NewServer(tracker, 0).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Equal(t, 2, resp.Drive.Requests)
	require.NotNil(t, resp.Drive.Queries)
	assert.Equal(t, 1, *resp.Drive.Queries)
	assert.Equal(t, 1000, resp.Drive.Limit)
	assert.Equal(t, 100.0, resp.Drive.WindowSeconds)
	assert.Equal(t, 15.0, resp.Drive.ElapsedSeconds)

	assert.Equal(t, 1, resp.Sheets.Requests)
	assert.Nil(t, resp.Sheets.Queries)
	assert.Equal(t, 60.0, resp.Sheets.WindowSeconds)

	assert.Equal(t, int64(201), resp.Daily.Units)
	assert.Equal(t, int64(1_000_000_000), resp.Daily.Limit)
}

func TestHandleHealthAndMetrics(t *testing.T) {
	tracker := quota.NewTracker(config.DefaultQuota())
	handler := NewServer(tracker, 0).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	tracker.RecordCall(quota.Sheets, quota.OpRead)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sheetsync_api_calls_total")
}
