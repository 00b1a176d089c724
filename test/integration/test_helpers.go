//go:build integration

package integration

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Progenics2025/LIMS-sub003/internal/config"
	"github.com/Progenics2025/LIMS-sub003/internal/event"
	"github.com/Progenics2025/LIMS-sub003/internal/handler"
	"github.com/Progenics2025/LIMS-sub003/internal/recycle"
	"github.com/Progenics2025/LIMS-sub003/internal/repository"
	"github.com/Progenics2025/LIMS-sub003/internal/router"
	"github.com/Progenics2025/LIMS-sub003/internal/service"
)

// backend is the recycle API with a switch that makes every request fail
// with 503, standing in for an outage.
type backend struct {
	server *httptest.Server
	repo   *repository.MemoryRecycleRepository
	down   atomic.Bool
}

func newBackend(t *testing.T) *backend {
	t.Helper()

	b := &backend{repo: repository.NewMemoryRecycleRepository()}

	cfg := &config.Config{
		ServerPort:     "8080",
		RequestTimeout: 5 * time.Second,
		RateLimitRPM:   0,
		CORSOrigins:    []string{"*"},
	}
	recycleHandler := handler.NewRecycleHandler(service.NewRecycleService(b.repo))
	appRouter := router.New(cfg, router.Handlers{Recycle: recycleHandler}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.down.Load() {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		appRouter.ServeHTTP(w, r)
	}))
	t.Cleanup(b.server.Close)

	return b
}

type clientInstance struct {
	engine *recycle.Engine
	bus    *event.InMemoryBus
	cache  string
}

// newClientInstance wires an engine the way recyclectl does, with the local
// cache in a file under the test's temp dir.
func newClientInstance(t *testing.T, baseURL string) *clientInstance {
	t.Helper()

	cache := filepath.Join(t.TempDir(), "recycle-cache.json")
	return newClientInstanceAt(t, baseURL, cache)
}

func newClientInstanceAt(t *testing.T, baseURL string, cache string) *clientInstance {
	t.Helper()

	medium, err := recycle.NewFileMedium(cache)
	require.NoError(t, err)

	bus := event.NewBus()
	normalizer := recycle.NewNormalizer(recycle.DefaultFieldMap())
	remote := recycle.NewHTTPRemote(baseURL, 2*time.Second, normalizer, nil)
	engine := recycle.NewEngine(remote, recycle.NewCacheStore(medium, bus, nil), normalizer, recycle.WithBus(bus))

	return &clientInstance{engine: engine, bus: bus, cache: cache}
}

func uids(entries []recycle.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.UID)
	}
	return out
}
