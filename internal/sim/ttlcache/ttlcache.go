// Package ttlcache is a tick-driven expiring map. Seals use it to remember which
// targets already have an open task; expiry is explicit (Expire) rather than
// tied to a hidden sweep cadence.
package ttlcache

import "sort"

type entry[V any] struct {
	val     V
	expires uint64
}

type Map[K comparable, V any] struct {
	ttl uint64
	m   map[K]entry[V]
}

// New creates a map whose entries live ttl ticks after their last Put/Touch.
// ttl == 0 means entries never expire on their own.
func New[K comparable, V any](ttl uint64) *Map[K, V] {
	return &Map[K, V]{ttl: ttl, m: map[K]entry[V]{}}
}

func (c *Map[K, V]) Put(k K, v V, nowTick uint64) {
	c.m[k] = entry[V]{val: v, expires: c.deadline(nowTick)}
}

func (c *Map[K, V]) deadline(nowTick uint64) uint64 {
	if c.ttl == 0 {
		return 0
	}
	return nowTick + c.ttl
}

// Touch extends an existing entry's lifetime.
func (c *Map[K, V]) Touch(k K, nowTick uint64) bool {
	e, ok := c.m[k]
	if !ok {
		return false
	}
	e.expires = c.deadline(nowTick)
	c.m[k] = e
	return true
}

func (c *Map[K, V]) Get(k K) (V, bool) {
	e, ok := c.m[k]
	return e.val, ok
}

func (c *Map[K, V]) Has(k K) bool {
	_, ok := c.m[k]
	return ok
}

func (c *Map[K, V]) Delete(k K) { delete(c.m, k) }

func (c *Map[K, V]) Len() int { return len(c.m) }

// Expire drops entries whose deadline has passed and returns how many were removed.
func (c *Map[K, V]) Expire(nowTick uint64) int {
	n := 0
	for k, e := range c.m {
		if e.expires != 0 && nowTick >= e.expires {
			delete(c.m, k)
			n++
		}
	}
	return n
}

// DeleteFunc drops entries for which stale returns true.
func (c *Map[K, V]) DeleteFunc(stale func(k K, v V) bool) int {
	n := 0
	for k, e := range c.m {
		if stale(k, e.val) {
			delete(c.m, k)
			n++
		}
	}
	return n
}

// FindKey returns a key whose value satisfies match.
func (c *Map[K, V]) FindKey(match func(V) bool) (K, bool) {
	for k, e := range c.m {
		if match(e.val) {
			return k, true
		}
	}
	var zero K
	return zero, false
}

// Keys returns the keys ordered by less.
func (c *Map[K, V]) Keys(less func(a, b K) bool) []K {
	out := make([]K, 0, len(c.m))
	for k := range c.m {
		out = append(out, k)
	}
	if less != nil {
		sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}
