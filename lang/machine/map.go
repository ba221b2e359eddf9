package machine

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// Map is Tmbdl's insertion-ordered String→Value mapping (spec.md §3.1).
// Grounded on the teacher's Map (github.com/dolthub/swiss, replaced with
// github.com/mna/swiss per go.mod), narrowed to string keys since Tmbdl's
// INDEX_GET/GET_PROP use the key/name "verbatim" as a string (spec.md
// §4.3) rather than supporting arbitrary Value keys. swiss.Map alone does
// not preserve insertion order, so a parallel ordered key slice is kept
// alongside it.
type Map struct {
	m     *swiss.Map[string, Value]
	order []string
}

func (m *Map) Type() string   { return "map" }
func (m *Map) String() string { return fmt.Sprintf("map(%p, len=%d)", m, len(m.order)) }

// NewMap returns an empty map with initial capacity for at least size
// entries.
func NewMap(size int) *Map {
	if size < 1 {
		size = 1
	}
	return &Map{m: swiss.NewMap[string, Value](uint32(size))}
}

// Get returns the value for key, or !found if absent.
func (m *Map) Get(key string) (Value, bool) {
	return m.m.Get(key)
}

// Set inserts or overwrites key, tracking insertion order for new keys.
func (m *Map) Set(key string, v Value) {
	if _, exists := m.m.Get(key); !exists {
		m.order = append(m.order, key)
	}
	m.m.Put(key, v)
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.order) }

// Keys returns the map's keys in insertion order. The caller must not
// modify the result.
func (m *Map) Keys() []string { return m.order }
