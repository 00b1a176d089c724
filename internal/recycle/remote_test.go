package recycle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRemote(t *testing.T, handler http.HandlerFunc) *HTTPRemote {
	t.Helper()

	server := httptest.NewServer(handler)
	remote := NewHTTPRemote(server.URL, 5*time.Second, NewNormalizer(DefaultFieldMap()), nil)
	t.Cleanup(func() {
		remote.client.CloseIdleConnections()
		server.Close()
	})
	return remote
}

func writeEnvelope(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestHTTPRemoteList(t *testing.T) {
	t.Parallel()

	remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/recycle", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":[
			{"id":"old","entity_type":"leads","entity_id":"L-1","data":{"organization":"Acme"},"deleted_at":"2026-01-01T00:00:00Z"},
			{"id":"bad"},
			{"id":"new","entity_type":"samples","data":{"sampleId":"S-100"},"deleted_at":"2026-01-03T00:00:00Z"}
		]}`)
	})

	entries, err := remote.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "new", entries[0].UID)
	require.Equal(t, "S-100", entries[0].EntityID)
	require.Equal(t, "old", entries[1].UID)
	require.Equal(t, "Acme", entries[1].Name)
}

func TestHTTPRemoteCreate(t *testing.T) {
	t.Parallel()

	remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "leads", body["entityType"])
		assert.Equal(t, "L-1", body["entityId"])
		assert.NotContains(t, body, "deletedAt")

		writeEnvelope(w, http.StatusCreated, `{"success":true,"data":
			{"id":"srv-1","entity_type":"leads","entity_id":"L-1","data":{"organization":"Acme"},"deleted_at":"2026-01-05T10:00:00Z"}}`)
	})

	entry, err := remote.Create(context.Background(), Payload{
		EntityType: "leads",
		EntityID:   "L-1",
		Data:       json.RawMessage(`{"organization":"Acme"}`),
	})
	require.NoError(t, err)
	require.Equal(t, "srv-1", entry.UID)
	require.Equal(t, "Acme", entry.Name)
	require.True(t, entry.DeletedAt.Equal(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)))
}

func TestHTTPRemoteDeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	deleted := map[string]bool{}
	remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		id := strings.TrimPrefix(r.URL.Path, "/recycle/")
		if deleted[id] {
			writeEnvelope(w, http.StatusNotFound, `{"success":false,"error":{"code":"NOT_FOUND","message":"Recycle entry not found"}}`)
			return
		}
		deleted[id] = true
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"deleted":true}}`)
	})

	require.NoError(t, remote.DeleteByUID(context.Background(), "srv-1"))
	require.NoError(t, remote.DeleteByUID(context.Background(), "srv-1"))
}

func TestHTTPRemoteFailures(t *testing.T) {
	t.Parallel()

	t.Run("server errors are distinguishable", func(t *testing.T) {
		remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, http.StatusInternalServerError, `{"success":false,"error":{"code":"INTERNAL_ERROR","message":"Unexpected server error"}}`)
		})

		entries, err := remote.List(context.Background())
		require.Nil(t, entries)

		var remoteErr *RemoteError
		require.True(t, errors.As(err, &remoteErr))
		require.Equal(t, http.StatusInternalServerError, remoteErr.Status)
		require.Equal(t, "INTERNAL_ERROR", remoteErr.API.Code)
	})

	t.Run("unreachable server is an error, not an empty list", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		remote := NewHTTPRemote(url, time.Second, NewNormalizer(DefaultFieldMap()), nil)
		entries, err := remote.List(context.Background())
		require.Error(t, err)
		require.Nil(t, entries)
	})

	t.Run("non-JSON success body is an error", func(t *testing.T) {
		remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, "<html>proxy login</html>")
		})

		_, err := remote.List(context.Background())
		require.Error(t, err)
	})
}
