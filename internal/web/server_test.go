package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/postmortem/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/postmortem/internal/logging"
)

func seedArchive(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"aaaaaaaa-1111", "bbbbbbbb-2222"} {
		dump := diagnostics.CrashDump{
			ID:         id,
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
			ProcessID:  100 + i,
			Function:   "main.bar",
			ReportFile: id + ".log",
		}
		data, err := json.Marshal(dump)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "crash-"+id+".json"), data, 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, dump.ReportFile), []byte("report "+id+"\n"), 0o600))
	}
	return dir
}

func newTestServer(t *testing.T, dir string) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ArchiveDir = dir
	return New(cfg, logging.NewNop().Logger)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 7077, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "localhost:7077", New(cfg, nil).Addr())
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestServer(t, t.TempDir()), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestListDumps(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seedArchive(t))
	rec := get(t, s, "/api/v1/dumps")
	require.Equal(t, http.StatusOK, rec.Code)

	var dumps []diagnostics.CrashDump
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dumps))
	require.Len(t, dumps, 2)
	assert.Equal(t, "bbbbbbbb-2222", dumps[0].ID)
}

func TestListDumps_Limit(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seedArchive(t))

	rec := get(t, s, "/api/v1/dumps?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var dumps []diagnostics.CrashDump
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dumps))
	assert.Len(t, dumps, 1)

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/v1/dumps?limit=-2").Code)
}

func TestListDumps_Empty(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestServer(t, t.TempDir()), "/api/v1/dumps")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestLatestDump(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestServer(t, seedArchive(t)), "/api/v1/dumps/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var dump diagnostics.CrashDump
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dump))
	assert.Equal(t, 101, dump.ProcessID)
}

func TestLatestDump_EmptyArchive(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestServer(t, t.TempDir()), "/api/v1/dumps/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDump(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seedArchive(t))

	rec := get(t, s, "/api/v1/dumps/aaaa")
	require.Equal(t, http.StatusOK, rec.Code)
	var dump diagnostics.CrashDump
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dump))
	assert.Equal(t, "aaaaaaaa-1111", dump.ID)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/v1/dumps/zzzz").Code)
}

func TestGetReport(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestServer(t, seedArchive(t)), "/api/v1/dumps/bbbb/report")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "report bbbbbbbb-2222\n", rec.Body.String())
}

func TestCORS(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ArchiveDir = t.TempDir()
	cfg.CORSOrigins = []string{"http://localhost:5173"}
	s := New(cfg, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServe_ShutsDownWithContext(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seedArchive(t))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/v1/dumps/latest")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "bbbbbbbb-2222")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
