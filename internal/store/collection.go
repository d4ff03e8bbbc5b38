package store

import (
	"github.com/yungbote/companion-client/internal/platform/logger"
)

type Position int

const (
	Append Position = iota
	Prepend
)

// Collection is an ordered list of values addressed by a string key.
// Point operations are linear scans; lists hold tens of items.
type Collection[T any] struct {
	items   []T
	keyOf   func(T) string
	log     *logger.Logger
	version uint64
}

func NewCollection[T any](keyOf func(T) string, log *logger.Logger) *Collection[T] {
	if log == nil {
		log = logger.Nop()
	}
	return &Collection[T]{keyOf: keyOf, log: log}
}

func (c *Collection[T]) indexOf(key string) int {
	for i := range c.items {
		if c.keyOf(c.items[i]) == key {
			return i
		}
	}
	return -1
}

// UpsertByKey applies patch to a copy of the entity and writes it back in
// place. Unknown keys are a no-op; use Insert for new entities.
func (c *Collection[T]) UpsertByKey(key string, patch func(*T)) bool {
	i := c.indexOf(key)
	if i < 0 {
		return false
	}
	next := c.items[i]
	if patch != nil {
		patch(&next)
	}
	if c.keyOf(next) != key {
		c.log.Warn("upsert tried to change entity key, ignored", "key", key, "new_key", c.keyOf(next))
		return false
	}
	c.items[i] = next
	c.version++
	return true
}

func (c *Collection[T]) Insert(v T, pos Position) bool {
	key := c.keyOf(v)
	if c.indexOf(key) >= 0 {
		c.log.Warn("insert rejected, key already present", "key", key)
		return false
	}
	switch pos {
	case Prepend:
		c.items = append([]T{v}, c.items...)
	default:
		c.items = append(c.items, v)
	}
	c.version++
	return true
}

func (c *Collection[T]) Remove(key string) bool {
	i := c.indexOf(key)
	if i < 0 {
		return false
	}
	next := make([]T, 0, len(c.items)-1)
	next = append(next, c.items[:i]...)
	next = append(next, c.items[i+1:]...)
	c.items = next
	c.version++
	return true
}

// ReplaceAll swaps the whole collection. Duplicate keys in list keep the
// first occurrence.
func (c *Collection[T]) ReplaceAll(list []T) {
	next := make([]T, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, v := range list {
		key := c.keyOf(v)
		if _, dup := seen[key]; dup {
			c.log.Warn("replace dropped duplicate key", "key", key)
			continue
		}
		seen[key] = struct{}{}
		next = append(next, v)
	}
	c.items = next
	c.version++
}

func (c *Collection[T]) Get(key string) (T, bool) {
	i := c.indexOf(key)
	if i < 0 {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

func (c *Collection[T]) IndexOf(key string) int { return c.indexOf(key) }

func (c *Collection[T]) At(i int) (T, bool) {
	if i < 0 || i >= len(c.items) {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

func (c *Collection[T]) List() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection[T]) Len() int { return len(c.items) }

// Version changes on every successful mutation.
func (c *Collection[T]) Version() uint64 { return c.version }
