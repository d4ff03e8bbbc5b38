// Package selection tracks the active persona of the list screen.
package selection

import (
	"github.com/yungbote/companion-client/internal/domain/persona"
)

// Source is the read-only list the selection indexes into.
type Source interface {
	Len() int
	Version() uint64
	PersonaAt(i int) (persona.Persona, bool)
	PersonaIndex(key string) int
}

type memoKey struct {
	explicit *persona.Persona
	version  uint64
	index    int
}

type Model struct {
	index    int
	explicit *persona.Persona

	memoSet bool
	memo    memoKey
	value   *persona.Persona
}

func New() *Model { return &Model{} }

func (m *Model) Index() int { return m.index }

// Select moves to index i and drops any explicit entity.
func (m *Model) Select(i int) {
	if i < 0 {
		i = 0
	}
	m.index = i
	m.explicit = nil
}

// SelectEntity moves to index i and pins p's identity as the effective
// selection until the list catches up, so a re-filtered list cannot show a
// mismatched frame. The pinned copy is only served while the list does not
// hold p; otherwise the list's current value wins.
func (m *Model) SelectEntity(i int, p persona.Persona) {
	m.Select(i)
	cp := p.Clone()
	m.explicit = &cp
}

// Reset returns to the first entry.
func (m *Model) Reset() { m.Select(0) }

// OnListChange clamps the index to the new list and releases the explicit
// entity once the list holds it at the current index or no longer holds it.
func (m *Model) OnListChange(src Source) {
	n := src.Len()
	if m.index >= n {
		m.index = max(0, n-1)
	}
	if m.explicit == nil {
		return
	}
	at, ok := src.PersonaAt(m.index)
	if ok && at.PersonaKey == m.explicit.PersonaKey {
		m.explicit = nil
		return
	}
	if src.PersonaIndex(m.explicit.PersonaKey) < 0 {
		m.explicit = nil
	}
}

// Effective returns explicit ?? list[index] ?? nil, where an explicit entity
// still present in the list is read from the list. The returned pointer is
// the same across calls while (explicit, list version, index) is unchanged.
func (m *Model) Effective(src Source) *persona.Persona {
	key := memoKey{explicit: m.explicit, version: src.Version(), index: m.index}
	if m.memoSet && m.memo == key {
		return m.value
	}
	var out *persona.Persona
	if m.explicit != nil {
		out = m.explicit
		if at := src.PersonaIndex(m.explicit.PersonaKey); at >= 0 {
			if p, ok := src.PersonaAt(at); ok {
				out = &p
			}
		}
	} else if p, ok := src.PersonaAt(m.index); ok {
		out = &p
	}
	m.memoSet = true
	m.memo = key
	m.value = out
	return out
}
