package recycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConsumers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("one add refreshes every mounted consumer exactly once", func(t *testing.T) {
		f := newEngineFixture()
		first := NewConsumer(f.engine, f.bus)
		second := NewConsumer(f.engine, f.bus)
		first.Mount(ctx)
		defer first.Unmount()
		second.Mount(ctx)
		defer second.Unmount()

		beforeFirst, beforeSecond := first.Refreshes(), second.Refreshes()

		entry, _, err := f.engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)

		require.Equal(t, beforeFirst+1, first.Refreshes())
		require.Equal(t, beforeSecond+1, second.Refreshes())
		require.Contains(t, uids(first.Entries()), entry.UID)
		require.Contains(t, uids(second.Entries()), entry.UID)
	})

	t.Run("fallback add still refreshes every consumer once", func(t *testing.T) {
		f := newEngineFixture()
		f.remote.setDown(true)
		first := NewConsumer(f.engine, f.bus)
		second := NewConsumer(f.engine, f.bus)
		first.Mount(ctx)
		defer first.Unmount()
		second.Mount(ctx)
		defer second.Unmount()

		entry, _, err := f.engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)

		require.Equal(t, 2, first.Refreshes())
		require.Equal(t, 2, second.Refreshes())
		require.True(t, first.Outcome().FellBack())
		require.Equal(t, []string{entry.UID}, uids(second.Entries()))
	})

	t.Run("unmount releases the subscription", func(t *testing.T) {
		f := newEngineFixture()
		consumer := NewConsumer(f.engine, f.bus)
		consumer.Mount(ctx)
		consumer.Mount(ctx)
		require.Equal(t, 1, f.bus.Subscribers("recycle.updated"))

		consumer.Unmount()
		require.False(t, consumer.Mounted())
		require.Zero(t, f.bus.Subscribers("recycle.updated"))

		_, _, err := f.engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)
		require.Equal(t, 1, consumer.Refreshes())
		require.Empty(t, consumer.Entries())
	})

	t.Run("result arriving after unmount is ignored", func(t *testing.T) {
		f := newEngineFixture()
		_, _, err := f.engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)

		consumer := NewConsumer(f.engine, f.bus)
		rendered := 0
		consumer.OnChange(func([]Entry) { rendered++ })

		f.remote.onList = consumer.Unmount
		consumer.Mount(ctx)

		require.Equal(t, 1, consumer.Refreshes())
		require.Empty(t, consumer.Entries())
		require.Zero(t, rendered)
	})

	t.Run("render hook receives each applied refresh", func(t *testing.T) {
		f := newEngineFixture()
		consumer := NewConsumer(f.engine, f.bus)
		var renders [][]Entry
		consumer.OnChange(func(entries []Entry) { renders = append(renders, entries) })
		consumer.Mount(ctx)
		defer consumer.Unmount()

		_, _, err := f.engine.Add(ctx, leadPayload("L-1"))
		require.NoError(t, err)

		require.Len(t, renders, 2)
		require.Empty(t, renders[0])
		require.Len(t, renders[1], 1)
	})
}
