package store

import (
	"github.com/yungbote/companion-client/internal/domain/persona"
	"github.com/yungbote/companion-client/internal/platform/logger"
)

// Store is the in-memory mirror of server state: the ordered persona list
// and, for each persona whose dresses have been loaded, its dress list.
// It is not safe for concurrent use; the orchestrator serializes access.
type Store struct {
	log      *logger.Logger
	personas *Collection[persona.Persona]
	dresses  map[string]*Collection[persona.Dress]
	pending  map[string]int
}

func New(log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "EntityStore")
	return &Store{
		log:      log,
		personas: NewCollection(func(p persona.Persona) string { return p.PersonaKey }, log.With("collection", "personas")),
		dresses:  map[string]*Collection[persona.Dress]{},
		pending:  map[string]int{},
	}
}

// ---- personas ----

func (s *Store) Personas() []persona.Persona {
	list := s.personas.List()
	for i := range list {
		list[i] = list[i].Clone()
	}
	return list
}

func (s *Store) Persona(key string) (persona.Persona, bool) {
	p, ok := s.personas.Get(key)
	if !ok {
		return persona.Persona{}, false
	}
	return p.Clone(), true
}

func (s *Store) PersonaAt(i int) (persona.Persona, bool) {
	p, ok := s.personas.At(i)
	if !ok {
		return persona.Persona{}, false
	}
	return p.Clone(), true
}

func (s *Store) PersonaIndex(key string) int { return s.personas.IndexOf(key) }

func (s *Store) Len() int { return s.personas.Len() }

func (s *Store) Version() uint64 { return s.personas.Version() }

func (s *Store) UpsertPersona(key string, patch func(*persona.Persona)) bool {
	return s.personas.UpsertByKey(key, patch)
}

func (s *Store) InsertPersona(p persona.Persona, pos Position) bool {
	return s.personas.Insert(p.Clone(), pos)
}

// RemovePersona drops the persona together with its dresses and any
// optimistic bump recorded for it.
func (s *Store) RemovePersona(key string) bool {
	if !s.personas.Remove(key) {
		return false
	}
	delete(s.dresses, key)
	delete(s.pending, key)
	return true
}

// ReplacePersonas installs a freshly listed persona set. Dress lists of
// personas that no longer exist are dropped.
func (s *Store) ReplacePersonas(list []persona.Persona) {
	cloned := make([]persona.Persona, len(list))
	for i := range list {
		cloned[i] = list[i].Clone()
	}
	s.personas.ReplaceAll(cloned)
	for key := range s.dresses {
		if s.personas.IndexOf(key) < 0 {
			delete(s.dresses, key)
		}
	}
	for key := range s.pending {
		if s.personas.IndexOf(key) < 0 {
			delete(s.pending, key)
		}
	}
}

// ---- dresses ----

// DressesLoaded reports whether a dress list was ever installed for key.
func (s *Store) DressesLoaded(key string) bool {
	_, ok := s.dresses[key]
	return ok
}

// LoadedDressOwners lists persona keys with a loaded dress list, in persona order.
func (s *Store) LoadedDressOwners() []string {
	out := make([]string, 0, len(s.dresses))
	for _, p := range s.personas.List() {
		if _, ok := s.dresses[p.PersonaKey]; ok {
			out = append(out, p.PersonaKey)
		}
	}
	return out
}

func (s *Store) Dresses(key string) []persona.Dress {
	c, ok := s.dresses[key]
	if !ok {
		return nil
	}
	return c.List()
}

func (s *Store) Dress(personaKey, memoryKey string) (persona.Dress, bool) {
	c, ok := s.dresses[personaKey]
	if !ok {
		return persona.Dress{}, false
	}
	return c.Get(memoryKey)
}

// ReplaceDresses installs the dress list of a persona. A persona missing
// from the store is ignored so no orphan lists exist.
func (s *Store) ReplaceDresses(personaKey string, list []persona.Dress) bool {
	if s.personas.IndexOf(personaKey) < 0 {
		s.log.Warn("dress list for unknown persona ignored", "persona_key", personaKey)
		return false
	}
	c, ok := s.dresses[personaKey]
	if !ok {
		c = NewCollection(func(d persona.Dress) string { return d.MemoryKey }, s.log.With("collection", "dresses", "persona_key", personaKey))
		s.dresses[personaKey] = c
	}
	owned := make([]persona.Dress, 0, len(list))
	for _, d := range list {
		if d.PersonaKey != "" && d.PersonaKey != personaKey {
			s.log.Warn("dress of another persona dropped", "persona_key", personaKey, "memory_key", d.MemoryKey)
			continue
		}
		d.PersonaKey = personaKey
		owned = append(owned, d)
	}
	c.ReplaceAll(owned)
	return true
}

// ---- optimistic bumps ----

// BumpPending records a dress job whose submission has not resolved yet.
func (s *Store) BumpPending(personaKey string) {
	s.pending[personaKey]++
}

func (s *Store) ClearPending(personaKey string) {
	if s.pending[personaKey] <= 1 {
		delete(s.pending, personaKey)
		return
	}
	s.pending[personaKey]--
}

func (s *Store) Pending(personaKey string) int { return s.pending[personaKey] }
