package recycle

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Progenics2025/LIMS-sub003/internal/event"
)

// StorageKey is the namespaced medium key holding the local recycle log.
const StorageKey = "lims.recycle-bin"

// RemovedKey holds uids removed locally while the remote store was
// unreachable. Refresh hides them and Sync replays the deletes.
const RemovedKey = StorageKey + ".removed"

// LocalUIDPrefix marks entries the remote store has not assigned an id to.
const LocalUIDPrefix = "local-"

// LocalStore is the always-available, best-effort side of the recycle bin.
type LocalStore interface {
	List() []Entry
	Append(entry Entry) error
	Remove(uid string) error
	Clear() error

	PendingRemovals() []string
	MarkRemoved(uids ...string) error
	ForgetRemoved(uids ...string) error
}

// CacheStore is a LocalStore persisted as one JSON array under StorageKey.
// Every successful mutation publishes event.TypeRecycleUpdated.
type CacheStore struct {
	mu     sync.Mutex
	medium Medium
	bus    event.Bus
	logger *slog.Logger
}

func NewCacheStore(medium Medium, bus event.Bus, logger *slog.Logger) *CacheStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheStore{medium: medium, bus: bus, logger: logger}
}

// List never fails: an unreadable or corrupt medium reads as empty.
func (s *CacheStore) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.readLocked()
	sortEntries(entries)
	return entries
}

// Append stores entry ahead of the existing ones, so among equal deletion
// times the newest insert lists first.
func (s *CacheStore) Append(entry Entry) error {
	return s.mutate("append", func(entries []Entry) []Entry {
		return append([]Entry{entry}, withoutUID(entries, entry.UID)...)
	})
}

func (s *CacheStore) Remove(uid string) error {
	return s.mutate("remove", func(entries []Entry) []Entry {
		return withoutUID(entries, uid)
	})
}

func (s *CacheStore) Clear() error {
	return s.mutate("clear", func([]Entry) []Entry {
		return []Entry{}
	})
}

// PendingRemovals never fails; an unreadable set reads as empty.
func (s *CacheStore) PendingRemovals() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readRemovedLocked()
}

// MarkRemoved and ForgetRemoved do not publish: the visible bin changes
// through Remove, which always accompanies them.
func (s *CacheStore) MarkRemoved(uids ...string) error {
	return s.mutateRemoved("mark removed", func(pending []string) []string {
		for _, uid := range uids {
			if uid != "" && !slices.Contains(pending, uid) {
				pending = append(pending, uid)
			}
		}
		return pending
	})
}

func (s *CacheStore) ForgetRemoved(uids ...string) error {
	return s.mutateRemoved("forget removed", func(pending []string) []string {
		return slices.DeleteFunc(pending, func(uid string) bool {
			return slices.Contains(uids, uid)
		})
	})
}

func (s *CacheStore) mutateRemoved(op string, apply func([]string) []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.readRemovedLocked()
	next := apply(slices.Clone(current))
	if slices.Equal(current, next) {
		return nil
	}

	encoded, err := json.Marshal(next)
	if err == nil {
		err = s.medium.Set(RemovedKey, encoded)
	}
	if err != nil {
		return fmt.Errorf("local recycle %s: %w", op, err)
	}
	return nil
}

func (s *CacheStore) readRemovedLocked() []string {
	raw, err := s.medium.Get(RemovedKey)
	if err != nil {
		s.logger.Warn("local recycle removals unreadable, treating as empty", "key", RemovedKey, "error", err)
		return []string{}
	}
	if len(raw) == 0 {
		return []string{}
	}

	var uids []string
	if err := json.Unmarshal(raw, &uids); err != nil {
		s.logger.Warn("local recycle removals corrupt, treating as empty", "key", RemovedKey, "error", err)
		return []string{}
	}
	if uids == nil {
		uids = []string{}
	}
	return uids
}

func (s *CacheStore) mutate(op string, apply func([]Entry) []Entry) error {
	s.mu.Lock()
	next := apply(s.readLocked())
	encoded, err := json.Marshal(next)
	if err == nil {
		err = s.medium.Set(StorageKey, encoded)
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("local recycle %s: %w", op, err)
	}

	if s.bus != nil {
		s.bus.Publish(event.TypeRecycleUpdated)
	}
	return nil
}

func (s *CacheStore) readLocked() []Entry {
	raw, err := s.medium.Get(StorageKey)
	if err != nil {
		s.logger.Warn("local recycle store unreadable, treating as empty", "key", StorageKey, "error", err)
		return []Entry{}
	}
	if len(raw) == 0 {
		return []Entry{}
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger.Warn("local recycle store corrupt, treating as empty", "key", StorageKey, "error", err)
		return []Entry{}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries
}

// NewLocalUID returns an identifier for an entry accepted without the remote
// store. Successive calls for the same record differ by timestamp and suffix.
func NewLocalUID(entityType, entityID string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return LocalUIDPrefix + sanitizeUIDPart(entityType) + "-" + sanitizeUIDPart(entityID) + "-" +
		strconv.FormatInt(now.UnixNano(), 36) + "-" + suffix
}

func sanitizeUIDPart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(s))
}

func isLocalUID(uid string) bool {
	return strings.HasPrefix(uid, LocalUIDPrefix)
}

// IsProvisional reports whether the entry exists only in the local store.
func (e Entry) IsProvisional() bool {
	return isLocalUID(e.UID)
}
