package event

type Type string

const (
	TypeRecycleUpdated Type = "recycle.updated"
)

// Event is what a handler receives. It carries no payload: subscribers
// re-query the source of truth instead of trusting event data.
type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Timestamp string `json:"timestamp"`
}

type Handler func(e Event)

type Bus interface {
	Publish(t Type)
	Subscribe(t Type, h Handler) func() // Returns the unsubscribe function
}
