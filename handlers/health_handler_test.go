package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ai-orchestrator/services/store"
	"go.uber.org/zap"
)

type stubAvailability bool

func (s stubAvailability) HasAvailableProvider() bool { return bool(s) }

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("dial tcp: connection refused") }

func readiness(t *testing.T, h *HealthHandler) (int, string, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	h.HandleReadiness(w, req)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	data := response["data"].(map[string]interface{})
	return w.Code, data["status"].(string), data["checks"].(map[string]interface{})
}

func TestHandleHealth(t *testing.T) {
	handler := NewHealthHandler(nil, nil, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.HandleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "healthy", data["status"])
	assert.NotEmpty(t, data["timestamp"])
}

func TestHandleReadiness(t *testing.T) {
	logger := zap.NewNop()
	memory := store.NewMemoryStore()

	t.Run("healthy with database and store", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		code, status, checks := readiness(t, NewHealthHandler(db, memory, stubAvailability(true), logger))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", status)
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "healthy", checks["store"])
		assert.Equal(t, "healthy", checks["providers"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy when database ping fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(sql.ErrConnDone)

		code, status, checks := readiness(t, NewHealthHandler(db, memory, stubAvailability(true), logger))

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", status)
		assert.Equal(t, "unhealthy", checks["database"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy when database query fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnError(sql.ErrConnDone)

		code, _, checks := readiness(t, NewHealthHandler(db, memory, stubAvailability(true), logger))

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", checks["database"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy when store is unreachable", func(t *testing.T) {
		code, status, checks := readiness(t, NewHealthHandler(nil, failingPinger{}, stubAvailability(true), logger))

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", status)
		assert.Equal(t, "not_configured", checks["database"])
		assert.Equal(t, "unhealthy", checks["store"])
	})

	t.Run("missing providers do not fail readiness", func(t *testing.T) {
		code, status, checks := readiness(t, NewHealthHandler(nil, memory, stubAvailability(false), logger))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", status)
		assert.Equal(t, "none_configured", checks["providers"])
	})
}
