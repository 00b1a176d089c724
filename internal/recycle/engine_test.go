package recycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Progenics2025/LIMS-sub003/internal/event"
)

var errNetwork = errors.New("dial tcp: connection refused")

// fakeRemote is an in-memory stand-in for the recycle API.
type fakeRemote struct {
	mu         sync.Mutex
	entries    []Entry
	seq        int
	down       bool
	failDelete map[string]bool
	creates    int
	deletes    int
	onList     func()
	normalizer *Normalizer
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{failDelete: map[string]bool{}, normalizer: NewNormalizer(DefaultFieldMap())}
}

func (f *fakeRemote) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeRemote) List(context.Context) ([]Entry, error) {
	f.mu.Lock()
	hook := f.onList
	if f.down {
		f.mu.Unlock()
		return nil, errNetwork
	}
	entries := cloneEntries(f.entries)
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	sortEntries(entries)
	return entries, nil
}

func (f *fakeRemote) Create(_ context.Context, p Payload) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.down {
		return Entry{}, errNetwork
	}
	f.seq++
	if p.DeletedAt.IsZero() {
		p.DeletedAt = time.Now().UTC()
	}
	entry := f.normalizer.FromPayload(p, fmt.Sprintf("srv-%d", f.seq))
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeRemote) DeleteByUID(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.down {
		return errNetwork
	}
	if f.failDelete[uid] {
		return errors.New("status 500")
	}
	f.entries = withoutUID(f.entries, uid)
	return nil
}

func (f *fakeRemote) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type engineFixture struct {
	remote *fakeRemote
	local  *CacheStore
	bus    *event.InMemoryBus
	engine *Engine
}

func newEngineFixture() engineFixture {
	bus := event.NewBus()
	remote := newFakeRemote()
	local := NewCacheStore(NewMemoryMedium(), bus, nil)
	engine := NewEngine(remote, local, NewNormalizer(DefaultFieldMap()), WithBus(bus))
	return engineFixture{remote: remote, local: local, bus: bus, engine: engine}
}

func leadPayload(id string) Payload {
	return Payload{
		EntityType: "leads",
		EntityID:   id,
		Data:       json.RawMessage(`{"organization":"Acme"}`),
	}
}

func uids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.UID)
	}
	return out
}

func TestEngineAdd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("remote answers and local mirrors", func(t *testing.T) {
		f := newEngineFixture()

		entry, outcome, err := f.engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)
		require.Equal(t, SourceRemote, outcome.Source)
		require.NoError(t, outcome.RemoteErr)
		require.Equal(t, "srv-1", entry.UID)

		require.Equal(t, []string{"srv-1"}, uids(f.local.List()))

		listed, outcome := f.engine.Refresh(ctx)
		require.Equal(t, SourceRemote, outcome.Source)
		require.Contains(t, uids(listed), entry.UID)
	})

	t.Run("remote failure falls back to a provisional local entry", func(t *testing.T) {
		f := newEngineFixture()
		f.remote.setDown(true)

		entry, outcome, err := f.engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)
		require.True(t, outcome.FellBack())
		require.ErrorIs(t, outcome.RemoteErr, errNetwork)
		require.Equal(t, "leads", entry.EntityType)
		require.Equal(t, "L-1", entry.EntityID)
		require.Equal(t, "Acme", entry.Name)
		require.False(t, entry.DeletedAt.IsZero())

		listed, outcome := f.engine.Refresh(ctx)
		require.True(t, outcome.FellBack())
		require.Contains(t, uids(listed), entry.UID)
		require.Equal(t, []string{entry.UID}, uids(f.engine.Provisional()))
	})

	t.Run("provisional entries stay visible once the remote is back", func(t *testing.T) {
		f := newEngineFixture()
		f.remote.setDown(true)
		entry, _, err := f.engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)

		f.remote.setDown(false)
		listed, outcome := f.engine.Refresh(ctx)
		require.Equal(t, SourceRemote, outcome.Source)
		require.Contains(t, uids(listed), entry.UID)
		require.Zero(t, f.remote.count())
	})

	t.Run("malformed payload never reaches a store", func(t *testing.T) {
		f := newEngineFixture()

		_, _, err := f.engine.Add(ctx, Payload{EntityType: "leads"})
		require.ErrorIs(t, err, ErrInvalidPayload)
		_, _, err = f.engine.Add(ctx, Payload{EntityID: "L-1"})
		require.ErrorIs(t, err, ErrInvalidPayload)
		_, _, err = f.engine.Add(ctx, Payload{EntityType: "leads", EntityID: "L-1", Data: json.RawMessage(`{`)})
		require.ErrorIs(t, err, ErrInvalidPayload)

		require.Zero(t, f.remote.creates)
		require.Empty(t, f.local.List())
	})

	t.Run("mirror failure is reported and still announced", func(t *testing.T) {
		bus := event.NewBus()
		calls := 0
		unsub := bus.Subscribe(event.TypeRecycleUpdated, func(event.Event) { calls++ })
		defer unsub()

		local := NewCacheStore(&brokenMedium{setErr: errors.New("quota exceeded")}, bus, nil)
		engine := NewEngine(newFakeRemote(), local, nil, WithBus(bus))

		entry, outcome, err := engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)
		require.Equal(t, SourceRemote, outcome.Source)
		require.Error(t, outcome.LocalErr)
		require.Equal(t, 1, calls)
		require.Equal(t, []string{entry.UID}, uids(engine.Entries()))
	})

	t.Run("engine without a remote store works offline", func(t *testing.T) {
		local := NewCacheStore(NewMemoryMedium(), nil, nil)
		engine := NewEngine(nil, local, nil)

		entry, outcome, err := engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)
		require.ErrorIs(t, outcome.RemoteErr, ErrRemoteUnavailable)
		require.Equal(t, []string{entry.UID}, uids(local.List()))
	})
}

func TestEngineOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	for _, down := range []bool{false, true} {
		t.Run(fmt.Sprintf("remote down=%v", down), func(t *testing.T) {
			f := newEngineFixture()
			f.remote.setDown(down)

			for i, id := range []string{"T1", "T2", "T3"} {
				p := leadPayload(id)
				p.DeletedAt = base.Add(time.Duration(i) * time.Minute)
				_, _, err := f.engine.Add(ctx, p)
				require.NoError(t, err)
			}

			listed, _ := f.engine.Refresh(ctx)
			require.Len(t, listed, 3)
			require.Equal(t, "T3", listed[0].EntityID)
			require.Equal(t, "T2", listed[1].EntityID)
			require.Equal(t, "T1", listed[2].EntityID)

			view := f.engine.Entries()
			require.Equal(t, "T3", view[0].EntityID)
		})
	}
}

func TestEngineRemove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("removed entry stays gone across a remote failure", func(t *testing.T) {
		f := newEngineFixture()
		entry, _, err := f.engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)

		outcome := f.engine.Remove(ctx, entry.UID)
		require.Equal(t, SourceRemote, outcome.Source)
		require.NotContains(t, uids(f.engine.Entries()), entry.UID)

		f.remote.setDown(true)
		listed, outcome := f.engine.Refresh(ctx)
		require.True(t, outcome.FellBack())
		require.NotContains(t, uids(listed), entry.UID)

		f.remote.setDown(false)
		listed, _ = f.engine.Refresh(ctx)
		require.NotContains(t, uids(listed), entry.UID)
	})

	t.Run("remove while remote is down drops the local copy", func(t *testing.T) {
		f := newEngineFixture()
		entry, _, err := f.engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)

		f.remote.setDown(true)
		outcome := f.engine.Remove(ctx, entry.UID)
		require.True(t, outcome.FellBack())

		listed, _ := f.engine.Refresh(ctx)
		require.NotContains(t, uids(listed), entry.UID)

		// The remote copy is orphaned until the remote answers again.
		require.Equal(t, 1, f.remote.count())
		require.Equal(t, []string{entry.UID}, f.local.PendingRemovals())
	})

	t.Run("removal made offline stays hidden once the remote is back", func(t *testing.T) {
		f := newEngineFixture()
		entry, _, err := f.engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)

		f.remote.setDown(true)
		f.engine.Remove(ctx, entry.UID)
		f.remote.setDown(false)

		listed, outcome := f.engine.Refresh(ctx)
		require.Equal(t, SourceRemote, outcome.Source)
		require.NotContains(t, uids(listed), entry.UID)

		outcome = f.engine.Sync(ctx)
		require.Zero(t, outcome.Failed)
		require.Zero(t, f.remote.count())
		require.Empty(t, f.local.PendingRemovals())
	})

	t.Run("removing a provisional entry leaves nothing to replay", func(t *testing.T) {
		f := newEngineFixture()
		f.remote.setDown(true)
		entry, _, err := f.engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)

		f.engine.Remove(ctx, entry.UID)
		require.Empty(t, f.local.List())
		require.Empty(t, f.local.PendingRemovals())
	})

	t.Run("removing twice is not an error", func(t *testing.T) {
		f := newEngineFixture()
		entry, _, err := f.engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)

		first := f.engine.Remove(ctx, entry.UID)
		second := f.engine.Remove(ctx, entry.UID)
		require.NoError(t, first.RemoteErr)
		require.NoError(t, second.RemoteErr)
		require.NoError(t, second.LocalErr)
	})
}

func TestEngineClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("clear empties both stores", func(t *testing.T) {
		f := newEngineFixture()
		for _, id := range []string{"L-1", "L-2", "L-3"} {
			_, _, err := f.engine.Add(ctx, leadPayload(id))
			require.NoError(t, err)
		}

		outcome := f.engine.Clear(ctx)
		require.Equal(t, SourceRemote, outcome.Source)
		require.Zero(t, outcome.Failed)
		require.Zero(t, f.remote.count())
		require.Empty(t, f.local.List())

		listed, _ := f.engine.Refresh(ctx)
		require.Empty(t, listed)
	})

	t.Run("partial remote failures do not stop the batch", func(t *testing.T) {
		f := newEngineFixture()
		var created []Entry
		for _, id := range []string{"L-1", "L-2", "L-3"} {
			entry, _, err := f.engine.Add(ctx, leadPayload(id))
			require.NoError(t, err)
			created = append(created, entry)
		}
		f.remote.failDelete[created[1].UID] = true

		outcome := f.engine.Clear(ctx)
		require.Equal(t, 1, outcome.Failed)
		require.Equal(t, 3, f.remote.deletes)
		require.Equal(t, 1, f.remote.count())
		require.Empty(t, f.local.List())
		require.Empty(t, f.engine.Entries())

		// The survivor stays hidden and Sync retries it.
		listed, _ := f.engine.Refresh(ctx)
		require.Empty(t, listed)
		require.Equal(t, []string{created[1].UID}, f.local.PendingRemovals())

		delete(f.remote.failDelete, created[1].UID)
		outcome = f.engine.Sync(ctx)
		require.Zero(t, outcome.Failed)
		require.Zero(t, f.remote.count())
		require.Empty(t, f.local.PendingRemovals())
	})

	t.Run("remote down clears only the local store", func(t *testing.T) {
		f := newEngineFixture()
		_, _, err := f.engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)

		f.remote.setDown(true)
		outcome := f.engine.Clear(ctx)
		require.True(t, outcome.FellBack())
		require.Empty(t, f.local.List())

		listed, _ := f.engine.Refresh(ctx)
		require.Empty(t, listed)
		require.Equal(t, 1, f.remote.count())

		f.remote.setDown(false)
		listed, outcome = f.engine.Refresh(ctx)
		require.Equal(t, SourceRemote, outcome.Source)
		require.Empty(t, listed)
	})
}

func TestEngineSync(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newEngineFixture()
	f.remote.setDown(true)
	provisional, _, err := f.engine.Add(ctx, leadPayload("L-1"))
	require.NoError(t, err)

	outcome := f.engine.Sync(ctx)
	require.Equal(t, 1, outcome.Failed)
	require.Len(t, f.engine.Provisional(), 1)

	f.remote.setDown(false)
	outcome = f.engine.Sync(ctx)
	require.Zero(t, outcome.Failed)
	require.Equal(t, SourceRemote, outcome.Source)
	require.Empty(t, f.engine.Provisional())

	listed := f.engine.Entries()
	require.Len(t, listed, 1)
	require.Equal(t, "srv-1", listed[0].UID)
	require.Equal(t, "L-1", listed[0].EntityID)
	require.True(t, listed[0].DeletedAt.Equal(provisional.DeletedAt))
	require.Equal(t, []string{"srv-1"}, uids(f.local.List()))
}
