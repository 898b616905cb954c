package market

import (
	"cmp"
	"slices"
)

// BiMap is a one-to-one mapping that can be queried in both directions.
// The forward and inverse maps are always updated together.
type BiMap[K, V cmp.Ordered] struct {
	forward map[K]V
	inverse map[V]K
}

func NewBiMap[K, V cmp.Ordered]() *BiMap[K, V] {
	return &BiMap[K, V]{
		forward: make(map[K]V),
		inverse: make(map[V]K),
	}
}

// Put binds k to v. It returns false, leaving the map unchanged, when either
// side is already bound.
func (b *BiMap[K, V]) Put(k K, v V) bool {
	if _, ok := b.forward[k]; ok {
		return false
	}
	if _, ok := b.inverse[v]; ok {
		return false
	}
	b.forward[k] = v
	b.inverse[v] = k
	return true
}

func (b *BiMap[K, V]) Get(k K) (V, bool) {
	v, ok := b.forward[k]
	return v, ok
}

func (b *BiMap[K, V]) Inverse(v V) (K, bool) {
	k, ok := b.inverse[v]
	return k, ok
}

func (b *BiMap[K, V]) HasKey(k K) bool {
	_, ok := b.forward[k]
	return ok
}

func (b *BiMap[K, V]) HasValue(v V) bool {
	_, ok := b.inverse[v]
	return ok
}

func (b *BiMap[K, V]) Delete(k K) {
	v, ok := b.forward[k]
	if !ok {
		return
	}
	delete(b.forward, k)
	delete(b.inverse, v)
}

func (b *BiMap[K, V]) Len() int {
	return len(b.forward)
}

// Keys returns the keys in ascending order.
func (b *BiMap[K, V]) Keys() []K {
	keys := make([]K, 0, len(b.forward))
	for k := range b.forward {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
