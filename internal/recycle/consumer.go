package recycle

import (
	"context"
	"sync"

	"github.com/Progenics2025/LIMS-sub003/internal/event"
)

// Consumer is one view over the recycle bin, such as a screen listing deleted
// records. It re-queries the engine whenever the bus signals a change.
type Consumer struct {
	engine *Engine
	bus    event.Bus

	mu          sync.Mutex
	ctx         context.Context
	alive       bool
	entries     []Entry
	outcome     Outcome
	refreshes   int
	unsubscribe func()
	onChange    func([]Entry)
}

func NewConsumer(engine *Engine, bus event.Bus) *Consumer {
	return &Consumer{engine: engine, bus: bus, entries: []Entry{}}
}

// OnChange registers a render callback invoked after each applied refresh.
func (c *Consumer) OnChange(fn func([]Entry)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Mount subscribes to change notifications and loads the current bin. ctx
// bounds the refreshes made on behalf of this consumer.
func (c *Consumer) Mount(ctx context.Context) {
	c.mu.Lock()
	if c.alive {
		c.mu.Unlock()
		return
	}
	c.ctx = ctx
	c.alive = true
	c.unsubscribe = c.bus.Subscribe(event.TypeRecycleUpdated, func(event.Event) {
		c.Refresh()
	})
	c.mu.Unlock()

	c.Refresh()
}

// Unmount releases the subscription. A refresh still in flight completes but
// its result is discarded.
func (c *Consumer) Unmount() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.alive = false
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (c *Consumer) Refresh() {
	c.mu.Lock()
	if !c.alive {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	c.refreshes++
	c.mu.Unlock()

	entries, outcome := c.engine.Refresh(ctx)

	c.mu.Lock()
	if !c.alive {
		c.mu.Unlock()
		return
	}
	c.entries = entries
	c.outcome = outcome
	render := c.onChange
	c.mu.Unlock()

	if render != nil {
		render(cloneEntries(entries))
	}
}

func (c *Consumer) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneEntries(c.entries)
}

// Outcome reports how the most recent applied refresh was served.
func (c *Consumer) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// Refreshes counts the refreshes this consumer has started.
func (c *Consumer) Refreshes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshes
}

func (c *Consumer) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}
