package recycle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Progenics2025/LIMS-sub003/pkg/apierror"
)

// RemoteStore is the network-backed, authoritative side of the recycle bin.
type RemoteStore interface {
	List(ctx context.Context) ([]Entry, error)
	Create(ctx context.Context, payload Payload) (Entry, error)
	DeleteByUID(ctx context.Context, uid string) error
}

// RemoteError reports a non-2xx answer from the recycle API.
type RemoteError struct {
	Op     string
	Status int
	API    *apierror.APIError
}

func (e *RemoteError) Error() string {
	if e.API != nil {
		return fmt.Sprintf("remote recycle %s: status %d: %s", e.Op, e.Status, e.API.Error())
	}
	return fmt.Sprintf("remote recycle %s: status %d", e.Op, e.Status)
}

func (e *RemoteError) Unwrap() error {
	if e.API == nil {
		return nil
	}
	return e.API
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

// HTTPRemote talks to the backend's /recycle endpoints.
type HTTPRemote struct {
	baseURL    string
	client     *http.Client
	normalizer *Normalizer
	logger     *slog.Logger
}

func NewHTTPRemote(baseURL string, timeout time.Duration, normalizer *Normalizer, logger *slog.Logger) *HTTPRemote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPRemote{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: timeout},
		normalizer: normalizer,
		logger:     logger,
	}
}

func (r *HTTPRemote) List(ctx context.Context) ([]Entry, error) {
	data, err := r.do(ctx, "list", http.MethodGet, "/recycle", nil)
	if err != nil {
		return nil, err
	}

	var records []json.RawMessage
	if len(data) == 0 {
		return []Entry{}, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("remote recycle list: decode records: %w", err)
	}

	entries := make([]Entry, 0, len(records))
	for _, record := range records {
		entry, err := r.normalizer.NormalizeJSON(record)
		if err != nil {
			// One bad row must not hide the rest of the bin.
			r.logger.Warn("skipping malformed recycle record", "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries, nil
}

func (r *HTTPRemote) Create(ctx context.Context, payload Payload) (Entry, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("remote recycle create: encode payload: %w", err)
	}

	data, err := r.do(ctx, "create", http.MethodPost, "/recycle", body)
	if err != nil {
		return Entry{}, err
	}

	entry, err := r.normalizer.NormalizeJSON(data)
	if err != nil {
		return Entry{}, fmt.Errorf("remote recycle create: %w", err)
	}
	if entry.Name == "" {
		entry.Name = payload.Name
	}
	return entry, nil
}

// DeleteByUID treats an already absent record as deleted.
func (r *HTTPRemote) DeleteByUID(ctx context.Context, uid string) error {
	_, err := r.do(ctx, "delete", http.MethodDelete, "/recycle/"+url.PathEscape(uid), nil)
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) && remoteErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

func (r *HTTPRemote) do(ctx context.Context, op, method, path string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("remote recycle %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote recycle %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("remote recycle %s: read body: %w", op, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remoteErr := &RemoteError{Op: op, Status: resp.StatusCode}
		if decodeErr == nil && env.Error != nil {
			remoteErr.API = apierror.New(env.Error.Code, env.Error.Message, env.Error.Details, resp.StatusCode)
		}
		return nil, remoteErr
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("remote recycle %s: decode response: %w", op, decodeErr)
	}
	if !env.Success {
		return nil, &RemoteError{Op: op, Status: resp.StatusCode}
	}
	return env.Data, nil
}
