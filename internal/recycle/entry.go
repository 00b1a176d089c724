package recycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

var (
	// ErrInvalidPayload is returned when a producer payload lacks identity fields.
	ErrInvalidPayload = errors.New("invalid recycle payload")
	// ErrMalformedRecord is returned by the normalizer for records it cannot map.
	ErrMalformedRecord = errors.New("malformed recycle record")
)

// Entry is the canonical representation of one soft-deleted domain record.
type Entry struct {
	UID          string          `json:"uid"`
	EntityType   string          `json:"entityType"`
	EntityID     string          `json:"entityId"`
	Name         string          `json:"name,omitempty"`
	OriginalPath string          `json:"originalPath,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	DeletedAt    time.Time       `json:"deletedAt"`
	CreatedBy    string          `json:"createdBy,omitempty"`
}

// Payload is what a CRUD feature hands over to soft-delete a record.
type Payload struct {
	EntityType   string          `json:"entityType"`
	EntityID     string          `json:"entityId"`
	Name         string          `json:"name,omitempty"`
	OriginalPath string          `json:"originalPath,omitempty"`
	Data         json.RawMessage `json:"data"`
	DeletedAt    time.Time       `json:"deletedAt,omitzero"`
	CreatedBy    string          `json:"createdBy,omitempty"`
}

// Validate checks the identity fields and that Data, when present, is JSON.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.EntityType) == "" {
		return fmt.Errorf("%w: entityType is required", ErrInvalidPayload)
	}
	if strings.TrimSpace(p.EntityID) == "" {
		return fmt.Errorf("%w: entityId is required", ErrInvalidPayload)
	}
	if len(p.Data) > 0 && !json.Valid(p.Data) {
		return fmt.Errorf("%w: data is not valid JSON", ErrInvalidPayload)
	}
	return nil
}

// sortEntries orders entries most-recently-deleted first. Equal timestamps
// keep their relative order.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DeletedAt.After(entries[j].DeletedAt)
	})
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

func withoutUID(entries []Entry, uid string) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.UID != uid {
			out = append(out, entry)
		}
	}
	return out
}

func containsUID(entries []Entry, uid string) bool {
	for _, entry := range entries {
		if entry.UID == uid {
			return true
		}
	}
	return false
}

func withoutUIDs(entries []Entry, uids []string) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if !slices.Contains(uids, entry.UID) {
			out = append(out, entry)
		}
	}
	return out
}

// remoteUIDs lists the uids of entries the remote store assigned.
func remoteUIDs(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !isLocalUID(entry.UID) {
			out = append(out, entry.UID)
		}
	}
	return out
}
