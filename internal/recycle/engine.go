package recycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Progenics2025/LIMS-sub003/internal/event"
)

// ErrRemoteUnavailable is reported when the engine runs without a remote store.
var ErrRemoteUnavailable = errors.New("remote recycle store not configured")

// Source names the store that answered an operation.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Outcome describes how an operation was served. RemoteErr is set whenever
// the engine fell back to the local store; LocalErr records a failed local
// write, either the mirror or the fallback itself. Failed counts per-entry
// remote failures for batch operations.
type Outcome struct {
	Source    Source
	RemoteErr error
	LocalErr  error
	Failed    int
}

// FellBack reports whether the local store answered in place of the remote one.
func (o Outcome) FellBack() bool {
	return o.Source == SourceLocal
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithBus lets the engine announce remote changes whose local mirror write
// failed, so subscribers still re-query.
func WithBus(bus event.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine reconciles the remote and local recycle stores. Calls are not
// serialized: overlapping operations issue independent requests and the last
// one to complete replaces the in-memory view.
type Engine struct {
	remote     RemoteStore
	local      LocalStore
	normalizer *Normalizer
	bus        event.Bus
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.RWMutex
	view   []Entry
	source Source
}

func NewEngine(remote RemoteStore, local LocalStore, normalizer *Normalizer, opts ...Option) *Engine {
	if normalizer == nil {
		normalizer = NewNormalizer(DefaultFieldMap())
	}
	e := &Engine{
		remote:     remote,
		local:      local,
		normalizer: normalizer,
		logger:     slog.Default(),
		now:        time.Now,
		view:       []Entry{},
		source:     SourceLocal,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Entries returns a copy of the current in-memory view.
func (e *Engine) Entries() []Entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneEntries(e.view)
}

// Source reports which store produced the current view.
func (e *Engine) Source() Source {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.source
}

// Refresh re-reads the bin. Provisional local entries stay visible next to a
// remote listing until they are synced or removed.
func (e *Engine) Refresh(ctx context.Context) ([]Entry, Outcome) {
	remoteEntries, err := e.remoteList(ctx)
	if err == nil {
		visible := withoutUIDs(remoteEntries, e.local.PendingRemovals())
		merged := append(visible, e.provisionalMissing(remoteEntries)...)
		sortEntries(merged)
		e.replaceView(merged, SourceRemote)
		return cloneEntries(merged), Outcome{Source: SourceRemote}
	}

	e.logger.Warn("recycle refresh fell back to local store", "error", err)
	localEntries := e.local.List()
	e.replaceView(localEntries, SourceLocal)
	return cloneEntries(localEntries), Outcome{Source: SourceLocal, RemoteErr: err}
}

// Add soft-deletes a record. Only an invalid payload is reported as an error;
// store failures degrade to the local fallback and show up in the Outcome.
func (e *Engine) Add(ctx context.Context, payload Payload) (Entry, Outcome, error) {
	if err := payload.Validate(); err != nil {
		return Entry{}, Outcome{}, err
	}

	created, err := e.remoteCreate(ctx, payload)
	if err == nil {
		outcome := Outcome{Source: SourceRemote}
		if mirrorErr := e.local.Append(created); mirrorErr != nil {
			outcome.LocalErr = mirrorErr
			e.logger.Warn("recycle mirror append failed", "uid", created.UID, "error", mirrorErr)
			e.announce()
		}
		e.upsertView(created, SourceRemote)
		return created, outcome, nil
	}

	e.logger.Warn("recycle add fell back to local store",
		"entity_type", payload.EntityType, "entity_id", payload.EntityID, "error", err)

	entry := e.normalizer.FromPayload(payload, NewLocalUID(payload.EntityType, payload.EntityID, e.now()))
	if payload.DeletedAt.IsZero() {
		entry.DeletedAt = e.now().UTC()
	}

	outcome := Outcome{Source: SourceLocal, RemoteErr: err}
	if localErr := e.local.Append(entry); localErr != nil {
		outcome.LocalErr = localErr
		e.logger.Error("recycle local append failed", "uid", entry.UID, "error", localErr)
	}
	e.upsertView(entry, SourceLocal)
	return entry, outcome, nil
}

// Remove hard-deletes one entry (restore or purge).
func (e *Engine) Remove(ctx context.Context, uid string) Outcome {
	err := e.remoteDelete(ctx, uid)
	if err == nil {
		outcome := Outcome{Source: SourceRemote}
		if forgetErr := e.local.ForgetRemoved(uid); forgetErr != nil {
			e.logger.Warn("recycle could not drop pending removal", "uid", uid, "error", forgetErr)
		}
		if mirrorErr := e.local.Remove(uid); mirrorErr != nil {
			outcome.LocalErr = mirrorErr
			e.logger.Warn("recycle mirror remove failed", "uid", uid, "error", mirrorErr)
			e.announce()
		}
		e.dropFromView(uid, SourceRemote)
		return outcome
	}

	e.logger.Warn("recycle remove fell back to local store", "uid", uid, "error", err)

	outcome := Outcome{Source: SourceLocal, RemoteErr: err}
	if !isLocalUID(uid) {
		if markErr := e.local.MarkRemoved(uid); markErr != nil {
			outcome.LocalErr = markErr
			e.logger.Error("recycle could not record pending removal", "uid", uid, "error", markErr)
		}
	}
	if localErr := e.local.Remove(uid); localErr != nil {
		outcome.LocalErr = localErr
		e.logger.Error("recycle local remove failed", "uid", uid, "error", localErr)
	}
	e.dropFromView(uid, SourceLocal)
	return outcome
}

// Clear empties the bin. Remote entries are deleted one by one and a failed
// delete does not stop the rest; the local mirror is cleared regardless.
func (e *Engine) Clear(ctx context.Context) Outcome {
	remoteEntries, err := e.remoteList(ctx)
	if err != nil {
		e.logger.Warn("recycle clear fell back to local store", "error", err)
		outcome := Outcome{Source: SourceLocal, RemoteErr: err}
		if markErr := e.local.MarkRemoved(remoteUIDs(e.local.List())...); markErr != nil {
			outcome.LocalErr = markErr
			e.logger.Error("recycle could not record pending removals", "error", markErr)
		}
		if localErr := e.local.Clear(); localErr != nil {
			outcome.LocalErr = localErr
			e.logger.Error("recycle local clear failed", "error", localErr)
		}
		e.replaceView([]Entry{}, SourceLocal)
		return outcome
	}

	outcome := Outcome{Source: SourceRemote}
	var deleted, failed []string
	for _, entry := range remoteEntries {
		if deleteErr := e.remote.DeleteByUID(ctx, entry.UID); deleteErr != nil {
			outcome.Failed++
			failed = append(failed, entry.UID)
			e.logger.Warn("recycle clear could not delete remote entry", "uid", entry.UID, "error", deleteErr)
			continue
		}
		deleted = append(deleted, entry.UID)
	}

	// Entries the remote kept stay hidden until Sync retries them.
	if markErr := e.local.MarkRemoved(failed...); markErr != nil {
		outcome.LocalErr = markErr
	}
	if forgetErr := e.local.ForgetRemoved(deleted...); forgetErr != nil {
		e.logger.Warn("recycle could not drop pending removals", "error", forgetErr)
	}

	if mirrorErr := e.local.Clear(); mirrorErr != nil {
		outcome.LocalErr = mirrorErr
		e.logger.Warn("recycle mirror clear failed", "error", mirrorErr)
		e.announce()
	}
	e.replaceView([]Entry{}, SourceRemote)
	return outcome
}

// Provisional lists entries that were accepted while the remote store was
// unreachable and exist only locally.
func (e *Engine) Provisional() []Entry {
	out := []Entry{}
	for _, entry := range e.local.List() {
		if isLocalUID(entry.UID) {
			out = append(out, entry)
		}
	}
	return out
}

// Sync replays removals made while the remote store was unreachable, then
// pushes provisional entries and swaps each local copy for the
// server-assigned one. It is never called automatically.
func (e *Engine) Sync(ctx context.Context) Outcome {
	if e.remote == nil {
		return Outcome{Source: SourceLocal, RemoteErr: ErrRemoteUnavailable}
	}

	outcome := Outcome{Source: SourceRemote}
	for _, uid := range e.local.PendingRemovals() {
		if err := e.remote.DeleteByUID(ctx, uid); err != nil {
			outcome.Failed++
			outcome.RemoteErr = err
			e.logger.Warn("recycle sync could not replay removal", "uid", uid, "error", err)
			continue
		}
		if localErr := e.local.ForgetRemoved(uid); localErr != nil {
			outcome.LocalErr = localErr
		}
	}

	for _, entry := range e.Provisional() {
		created, err := e.remote.Create(ctx, Payload{
			EntityType:   entry.EntityType,
			EntityID:     entry.EntityID,
			Name:         entry.Name,
			OriginalPath: entry.OriginalPath,
			Data:         entry.Data,
			DeletedAt:    entry.DeletedAt,
			CreatedBy:    entry.CreatedBy,
		})
		if err != nil {
			outcome.Failed++
			outcome.RemoteErr = err
			e.logger.Warn("recycle sync could not push provisional entry", "uid", entry.UID, "error", err)
			continue
		}

		if localErr := e.local.Remove(entry.UID); localErr != nil {
			outcome.LocalErr = localErr
		}
		if localErr := e.local.Append(created); localErr != nil {
			outcome.LocalErr = localErr
		}
	}

	if _, refreshed := e.Refresh(ctx); refreshed.FellBack() {
		outcome.Source = SourceLocal
		if outcome.RemoteErr == nil {
			outcome.RemoteErr = refreshed.RemoteErr
		}
	}
	return outcome
}

func (e *Engine) remoteList(ctx context.Context) ([]Entry, error) {
	if e.remote == nil {
		return nil, ErrRemoteUnavailable
	}
	return e.remote.List(ctx)
}

func (e *Engine) remoteCreate(ctx context.Context, payload Payload) (Entry, error) {
	if e.remote == nil {
		return Entry{}, ErrRemoteUnavailable
	}
	return e.remote.Create(ctx, payload)
}

func (e *Engine) remoteDelete(ctx context.Context, uid string) error {
	if e.remote == nil {
		return ErrRemoteUnavailable
	}
	return e.remote.DeleteByUID(ctx, uid)
}

func (e *Engine) provisionalMissing(remoteEntries []Entry) []Entry {
	out := []Entry{}
	for _, entry := range e.Provisional() {
		if !containsUID(remoteEntries, entry.UID) {
			out = append(out, entry)
		}
	}
	return out
}

func (e *Engine) announce() {
	if e.bus != nil {
		e.bus.Publish(event.TypeRecycleUpdated)
	}
}

func (e *Engine) replaceView(entries []Entry, source Source) {
	next := cloneEntries(entries)
	e.mu.Lock()
	e.view = next
	e.source = source
	e.mu.Unlock()
}

func (e *Engine) upsertView(entry Entry, source Source) {
	e.mu.Lock()
	next := append([]Entry{entry}, withoutUID(e.view, entry.UID)...)
	sortEntries(next)
	e.view = next
	e.source = source
	e.mu.Unlock()
}

func (e *Engine) dropFromView(uid string, source Source) {
	e.mu.Lock()
	e.view = withoutUID(e.view, uid)
	e.source = source
	e.mu.Unlock()
}
