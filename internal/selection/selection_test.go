package selection

import (
	"testing"

	"github.com/yungbote/companion-client/internal/domain/persona"
	"github.com/yungbote/companion-client/internal/store"
)

func seeded(keys ...string) *store.Store {
	s := store.New(nil)
	list := make([]persona.Persona, 0, len(keys))
	for _, k := range keys {
		list = append(list, persona.Persona{PersonaKey: k, DoneYN: persona.FlagYes})
	}
	s.ReplacePersonas(list)
	return s
}

func TestOnListChangeClampsAfterShrink(t *testing.T) {
	s := seeded("a", "b", "c")
	m := New()
	m.Select(2)
	s.ReplacePersonas([]persona.Persona{{PersonaKey: "a"}})
	m.OnListChange(s)
	if m.Index() != 0 {
		t.Fatalf("index: want=0 got=%d", m.Index())
	}
}

func TestOnListChangeEmptyList(t *testing.T) {
	s := seeded("a", "b")
	m := New()
	m.Select(1)
	s.ReplacePersonas(nil)
	m.OnListChange(s)
	if m.Index() != 0 {
		t.Fatalf("index: want=0 got=%d", m.Index())
	}
	if m.Effective(s) != nil {
		t.Fatalf("effective of empty list should be nil")
	}
}

func TestEffectiveIsMemoized(t *testing.T) {
	s := seeded("a", "b")
	m := New()
	m.Select(1)
	first := m.Effective(s)
	second := m.Effective(s)
	if first == nil || first != second {
		t.Fatalf("Effective should return the same pointer while inputs are unchanged")
	}
	if first.PersonaKey != "b" {
		t.Fatalf("effective key: want=b got=%s", first.PersonaKey)
	}
	s.UpsertPersona("b", func(p *persona.Persona) { p.PersonaName = "renamed" })
	third := m.Effective(s)
	if third == first {
		t.Fatalf("Effective should recompute after the list changes")
	}
	if third.PersonaName != "renamed" {
		t.Fatalf("effective name: want=renamed got=%q", third.PersonaName)
	}
}

func TestExplicitEntityWinsUntilListCatchesUp(t *testing.T) {
	s := seeded("a", "b")
	m := New()
	m.SelectEntity(0, persona.Persona{PersonaKey: "b"})
	if got := m.Effective(s); got == nil || got.PersonaKey != "b" {
		t.Fatalf("explicit entity should win, got=%v", got)
	}
	s.ReplacePersonas([]persona.Persona{{PersonaKey: "b"}, {PersonaKey: "a"}})
	m.OnListChange(s)
	got := m.Effective(s)
	if got == nil || got.PersonaKey != "b" {
		t.Fatalf("effective after catch-up: got=%v", got)
	}
	s.UpsertPersona("b", func(p *persona.Persona) { p.PersonaName = "fresh" })
	if got := m.Effective(s); got.PersonaName != "fresh" {
		t.Fatalf("explicit should be released once the list holds it, got name=%q", got.PersonaName)
	}
}

func TestExplicitEntityDroppedWhenGone(t *testing.T) {
	s := seeded("a", "b")
	m := New()
	m.SelectEntity(1, persona.Persona{PersonaKey: "z"})
	m.OnListChange(s)
	if got := m.Effective(s); got == nil || got.PersonaKey != "b" {
		t.Fatalf("effective should fall back to list[index], got=%v", got)
	}
}

func TestPinnedEntityReadsLiveValueAfterPatch(t *testing.T) {
	s := seeded("a", "b", "c")
	m := New()
	// Pinned at an index that does not hold it, as after a re-filter.
	m.SelectEntity(0, persona.Persona{PersonaKey: "c", PersonaName: "old"})
	s.UpsertPersona("c", func(p *persona.Persona) {
		p.PersonaName = "new"
		p.FavoriteYN = persona.FlagYes
	})
	got := m.Effective(s)
	if got == nil || got.PersonaKey != "c" {
		t.Fatalf("pinned identity: want=c got=%v", got)
	}
	if got.PersonaName != "new" || !got.IsFavorite() {
		t.Fatalf("pinned entity should reflect the patch: got=%+v", *got)
	}
}
