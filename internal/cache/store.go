// Package cache is the client's keyed query cache. Entries are keyed by
// string tuples such as ["project", subdomain] and can be invalidated by
// key prefix.
package cache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrReserved is returned when writing under a prefix owned by a Scope
var ErrReserved = errors.New("key prefix is reserved")

// Key identifies a cache entry
type Key []string

// HasPrefix reports whether k starts with every element of prefix
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// overlaps reports whether one key is a prefix of the other
func (k Key) overlaps(other Key) bool {
	return k.HasPrefix(other) || other.HasPrefix(k)
}

func (k Key) String() string {
	return "[" + strings.Join(k, " ") + "]"
}

// id is the map key form of k
func (k Key) id() string {
	return strings.Join(k, "\x1f")
}

// Entry is a cached value stamped with its last update
type Entry struct {
	Value     any
	UpdatedAt time.Time
}

// Age returns how long ago the entry was written
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.UpdatedAt)
}

type stored struct {
	key Key
	Entry
}

// Store holds cache entries in memory
type Store struct {
	mu       sync.RWMutex
	entries  map[string]stored
	reserved []Key
	now      func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		entries: make(map[string]stored),
		now:     time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Now returns the store's current time
func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}

// Get returns the entry for key
func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key.id()]
	return e.Entry, ok
}

// Set writes value under key
func (s *Store) Set(key Key, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWritable(key); err != nil {
		return err
	}
	s.set(key, value)
	return nil
}

// Remove deletes a single entry
func (s *Store) Remove(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWritable(key); err != nil {
		return err
	}
	delete(s.entries, key.id())
	return nil
}

// RemovePrefix deletes every entry under prefix and returns how many were
// removed. Prefixes overlapping a reserved prefix are rejected.
func (s *Store) RemovePrefix(prefix Key) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.reserved {
		if prefix.overlaps(r) {
			return 0, fmt.Errorf("%w: %s", ErrReserved, r)
		}
	}
	return s.removePrefix(prefix), nil
}

// Keys returns every key in the store, sorted
func (s *Store) Keys() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]Key, 0, len(s.entries))
	for _, e := range s.entries {
		keys = append(keys, e.key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].id() < keys[j].id()
	})
	return keys
}

// Reserve makes the returned Scope the only writer for keys under prefix
func (s *Store) Reserve(prefix Key) (*Scope, error) {
	if len(prefix) == 0 {
		return nil, errors.New("cannot reserve the empty prefix")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.reserved {
		if prefix.overlaps(r) {
			return nil, fmt.Errorf("%w: %s already reserved", ErrReserved, r)
		}
	}
	s.reserved = append(s.reserved, append(Key(nil), prefix...))

	return &Scope{store: s, prefix: prefix}, nil
}

func (s *Store) checkWritable(key Key) error {
	for _, r := range s.reserved {
		if key.HasPrefix(r) {
			return fmt.Errorf("%w: %s", ErrReserved, key)
		}
	}
	return nil
}

func (s *Store) set(key Key, value any) {
	s.entries[key.id()] = stored{
		key:   append(Key(nil), key...),
		Entry: Entry{Value: value, UpdatedAt: s.now()},
	}
}

func (s *Store) removePrefix(prefix Key) int {
	removed := 0
	for id, e := range s.entries {
		if e.key.HasPrefix(prefix) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Scope is the privileged writer of a reserved prefix
type Scope struct {
	store  *Store
	prefix Key
}

// Set writes a key under the scope's prefix
func (sc *Scope) Set(key Key, value any) error {
	if !key.HasPrefix(sc.prefix) {
		return fmt.Errorf("key %s is outside scope %s", key, sc.prefix)
	}

	sc.store.mu.Lock()
	defer sc.store.mu.Unlock()
	sc.store.set(key, value)
	return nil
}

// Remove deletes a key under the scope's prefix
func (sc *Scope) Remove(key Key) {
	if !key.HasPrefix(sc.prefix) {
		return
	}

	sc.store.mu.Lock()
	defer sc.store.mu.Unlock()
	delete(sc.store.entries, key.id())
}

// Clear removes every entry under the scope's prefix
func (sc *Scope) Clear() {
	sc.store.mu.Lock()
	defer sc.store.mu.Unlock()
	sc.store.removePrefix(sc.prefix)
}

// Lookup returns the typed value stored under key. A present entry whose
// value is nil or of another type reports ok=false with the entry still
// returned.
func Lookup[T any](s *Store, key Key) (T, Entry, bool) {
	var zero T
	e, found := s.Get(key)
	if !found {
		return zero, e, false
	}
	v, ok := e.Value.(T)
	if !ok {
		return zero, e, false
	}
	return v, e, true
}
