package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Progenics2025/LIMS-sub003/internal/config"
	"github.com/Progenics2025/LIMS-sub003/internal/handler"
	"github.com/Progenics2025/LIMS-sub003/internal/repository"
	"github.com/Progenics2025/LIMS-sub003/internal/router"
	"github.com/Progenics2025/LIMS-sub003/internal/service"
)

var addedUID = regexp.MustCompile(`Added: (\S+)`)

func TestMain(m *testing.M) {
	text.DisableColors()
	os.Exit(m.Run())
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{RequestTimeout: 5 * time.Second}
	h := handler.NewRecycleHandler(service.NewRecycleService(repository.NewMemoryRecycleRepository()))
	srv := httptest.NewServer(router.New(cfg, router.Handlers{Recycle: h}, nil, slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAddListRemoveOnline(t *testing.T) {
	srv := newBackend(t)
	cache := filepath.Join(t.TempDir(), "cache.json")
	base := []string{"--api-url", srv.URL, "--cache-file", cache}

	out, err := run(t, append(base, "add", "--type", "samples", "--id", "S-100", "--data", `{"sampleId":"S-100"}`)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Source: remote")

	match := addedUID.FindStringSubmatch(out)
	require.Len(t, match, 2, out)
	uid := match[1]
	assert.NotContains(t, uid, "local-")

	out, err = run(t, append(base, "list")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, uid)
	assert.Contains(t, out, "S-100")
	assert.Contains(t, out, "Source: remote")

	out, err = run(t, append(base, "list", "--type", "leads")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Recycle bin is empty")

	out, err = run(t, append(base, "remove", uid)...)
	require.NoError(t, err, out)

	out, err = run(t, append(base, "list")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Recycle bin is empty")
}

func TestOfflineAddThenSync(t *testing.T) {
	srv := newBackend(t)
	cache := filepath.Join(t.TempDir(), "cache.json")

	out, err := run(t, "--offline", "--cache-file", cache, "add", "--type", "leads", "--id", "L-1", "--name", "Acme")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Source: local cache")

	match := addedUID.FindStringSubmatch(out)
	require.Len(t, match, 2, out)
	assert.Contains(t, match[1], "local-leads-L_1-")

	out, err = run(t, "--offline", "--cache-file", cache, "pending")
	require.NoError(t, err, out)
	assert.Contains(t, out, match[1])

	out, err = run(t, "--api-url", srv.URL, "--cache-file", cache, "sync")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Synced: 1 of 1 pending changes")

	out, err = run(t, "--offline", "--cache-file", cache, "pending")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Recycle bin is empty")

	out, err = run(t, "--api-url", srv.URL, "--cache-file", cache, "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Acme")
	assert.NotContains(t, out, match[1])
}

func TestRemoteDownFallsBackToCache(t *testing.T) {
	srv := newBackend(t)
	url := srv.URL
	srv.Close()

	cache := filepath.Join(t.TempDir(), "cache.json")
	out, err := run(t, "--api-url", url, "--cache-file", cache, "add", "--type", "finance", "--id", "INV-7")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Source: local cache")

	out, err = run(t, "--api-url", url, "--cache-file", cache, "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, "INV-7")
	assert.Contains(t, out, "Source: local cache")
}

func TestCommandValidation(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "cache.json")

	_, err := run(t, "--offline", "--cache-file", cache, "clear")
	require.ErrorContains(t, err, "--yes")

	_, err = run(t, "--offline", "--cache-file", cache, "add", "--type", "leads")
	require.Error(t, err)

	_, err = run(t, "--offline", "--cache-file", cache, "add", "--type", "leads", "--id", "L-1", "--data", "{")
	require.ErrorContains(t, err, "--data")

	_, err = run(t, "--offline", "--cache-file", cache, "sync")
	require.ErrorContains(t, err, "--offline")
}
