// internal/api/client_test.go
package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reacture/engine/internal/api"
	"github.com/reacture/engine/internal/config"
	"github.com/reacture/engine/internal/server"
	"github.com/reacture/engine/internal/storage/memory"
	"github.com/reacture/engine/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collector(t *testing.T, secret string) (*httptest.Server, string) {
	t.Helper()
	dataDir := t.TempDir()
	srv := httptest.NewServer(server.New(config.ServerConfig{DataDir: dataDir, Secret: secret}, nil))
	t.Cleanup(srv.Close)
	return srv, dataDir
}

// exported records a minimal session with the memory backend and returns the
// dataset directory and its upload metadata.
func exported(t *testing.T) (string, core.UploadMetadata) {
	t.Helper()
	b := memory.New(config.MemoryConfig{OutputDir: t.TempDir()}, nil)
	require.NoError(t, b.Init())
	require.NoError(t, b.StartSession(&core.SessionInfo{
		ID:          "reacture_1_test",
		PlayerID:    "p1",
		Environment: "wildfire",
		StartTime:   time.Date(2025, 11, 9, 12, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, b.RecordSample(&core.TelemetrySample{Type: core.SampleRobotState, Event: core.EventPeriodic}))
	require.NoError(t, b.RecordFrame(&core.FrameRecord{Width: 1, Height: 1, Pixels: []byte{9, 9, 9}}))
	require.NoError(t, b.EndSession(&core.SessionResult{Score: 55, VictimsTotal: 3, VictimsSaved: 2, DurationS: 12.5}))
	return b.GetExportedFilePath(), b.GetExportMetadata()
}

func TestHealthcheck(t *testing.T) {
	srv, _ := collector(t, "")
	c := api.New(srv.URL+"/", "", time.Second)
	assert.NoError(t, c.Healthcheck(context.Background()))
}

func TestHealthcheck_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, api.HealthPath, r.URL.Path)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := api.New(srv.URL, "", time.Second).Healthcheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHealthcheck_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.Error(t, api.New(url, "", time.Second).Healthcheck(context.Background()))
}

func TestUpload(t *testing.T) {
	srv, dataDir := collector(t, "secret123")
	dir, meta := exported(t)
	assert.Equal(t, "wildfire", meta.Tag)

	resp, err := api.New(srv.URL, "secret123", 5*time.Second).Upload(context.Background(), dir, meta)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "reacture_1_test", resp.SessionID)
	assert.Equal(t, 7, resp.Files)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		want, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(dataDir, "reacture_1_test", e.Name()))
		require.NoError(t, err)
		assert.Equal(t, want, got, e.Name())
	}

	stored, err := memory.ReadMetadata(filepath.Join(dataDir, "reacture_1_test"))
	require.NoError(t, err)
	assert.Equal(t, 55, stored.GameResult.FinalScore)
}

func TestUpload_WrongSecret(t *testing.T) {
	srv, _ := collector(t, "secret123")
	dir, meta := exported(t)

	_, err := api.New(srv.URL, "guess", 5*time.Second).Upload(context.Background(), dir, meta)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Invalid secret")
}

func TestUpload_EmptyDirectory(t *testing.T) {
	_, err := api.New("http://localhost:1", "", time.Second).Upload(context.Background(), t.TempDir(), core.UploadMetadata{SessionID: "x"})
	assert.ErrorContains(t, err, "empty")
}

func TestUpload_MissingDirectory(t *testing.T) {
	_, err := api.New("http://localhost:1", "", time.Second).Upload(context.Background(), filepath.Join(t.TempDir(), "nope"), core.UploadMetadata{})
	assert.Error(t, err)
}
