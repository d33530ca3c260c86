package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkoukos/stockfolio/internal/database"
)

func TestHandleSystemStatus_ReportsDatabaseIntegrity(t *testing.T) {
	dir := t.TempDir()
	db, err := database.New(database.Config{
		Path: filepath.Join(dir, "portfolio.db"),
		Name: "portfolio",
	})
	require.NoError(t, err)
	defer db.Close()

	log := zerolog.New(nil).Level(zerolog.Disabled)
	h := NewSystemHandlers(dir, map[string]*database.DB{"portfolio": db}, log)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/system", nil)
	rec := httptest.NewRecorder()
	h.HandleSystemStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))

	dbs, ok := status["databases"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ok", dbs["portfolio"])
}

func TestHandleSystemStatus_UnhealthyDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := database.New(database.Config{
		Path: filepath.Join(dir, "portfolio.db"),
		Name: "portfolio",
	})
	require.NoError(t, err)

	// A closed connection fails the integrity check
	require.NoError(t, db.Close())

	log := zerolog.New(nil).Level(zerolog.Disabled)
	h := NewSystemHandlers(dir, map[string]*database.DB{"portfolio": db}, log)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/system", nil)
	rec := httptest.NewRecorder()
	h.HandleSystemStatus(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
