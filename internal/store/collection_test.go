package store

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/yungbote/companion-client/internal/domain/persona"
)

func personaKeys(c *Collection[persona.Persona]) []string {
	out := []string{}
	for _, p := range c.List() {
		out = append(out, p.PersonaKey)
	}
	return out
}

func newPersonaCollection() *Collection[persona.Persona] {
	return NewCollection(func(p persona.Persona) string { return p.PersonaKey }, nil)
}

func TestCollectionUpsertPreservesOrder(t *testing.T) {
	c := newPersonaCollection()
	for _, k := range []string{"a", "b", "c"} {
		c.Insert(persona.Persona{PersonaKey: k, PersonaName: k}, Append)
	}
	if !c.UpsertByKey("b", func(p *persona.Persona) { p.PersonaName = "renamed" }) {
		t.Fatalf("UpsertByKey(b): want=true")
	}
	if got := fmt.Sprint(personaKeys(c)); got != "[a b c]" {
		t.Fatalf("order: want=[a b c] got=%s", got)
	}
	p, _ := c.Get("b")
	if p.PersonaName != "renamed" {
		t.Fatalf("name: want=renamed got=%q", p.PersonaName)
	}
	if c.UpsertByKey("zzz", func(p *persona.Persona) { p.PersonaName = "x" }) {
		t.Fatalf("UpsertByKey(unknown): want=false")
	}
	if c.Len() != 3 {
		t.Fatalf("len: want=3 got=%d", c.Len())
	}
}

func TestCollectionUpsertCannotChangeKey(t *testing.T) {
	c := newPersonaCollection()
	c.Insert(persona.Persona{PersonaKey: "a"}, Append)
	c.Insert(persona.Persona{PersonaKey: "b"}, Append)
	if c.UpsertByKey("a", func(p *persona.Persona) { p.PersonaKey = "b" }) {
		t.Fatalf("key-changing upsert should be rejected")
	}
	if got := fmt.Sprint(personaKeys(c)); got != "[a b]" {
		t.Fatalf("keys: want=[a b] got=%s", got)
	}
}

func TestCollectionInsertRejectsDuplicates(t *testing.T) {
	c := newPersonaCollection()
	c.Insert(persona.Persona{PersonaKey: "a"}, Append)
	c.Insert(persona.Persona{PersonaKey: "b"}, Prepend)
	if c.Insert(persona.Persona{PersonaKey: "a", PersonaName: "dup"}, Append) {
		t.Fatalf("duplicate insert: want=false")
	}
	if got := fmt.Sprint(personaKeys(c)); got != "[b a]" {
		t.Fatalf("order: want=[b a] got=%s", got)
	}
	p, _ := c.Get("a")
	if p.PersonaName != "" {
		t.Fatalf("duplicate insert must not overwrite, got name=%q", p.PersonaName)
	}
}

func TestCollectionRandomSequencesNeverDuplicate(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	c := newPersonaCollection()
	inserted := 0
	removed := 0
	for i := 0; i < 2000; i++ {
		key := fmt.Sprintf("k%d", rng.Intn(25))
		switch rng.Intn(3) {
		case 0:
			if c.Insert(persona.Persona{PersonaKey: key}, Position(rng.Intn(2))) {
				inserted++
			}
		case 1:
			c.UpsertByKey(key, func(p *persona.Persona) { p.PersonaName = fmt.Sprint(i) })
		case 2:
			if c.Remove(key) {
				removed++
			}
		}
		seen := map[string]bool{}
		for _, k := range personaKeys(c) {
			if seen[k] {
				t.Fatalf("step %d: duplicate key %s", i, k)
			}
			seen[k] = true
		}
		if c.Len() != inserted-removed {
			t.Fatalf("step %d: len want=%d got=%d", i, inserted-removed, c.Len())
		}
	}
}

func TestCollectionReplaceAllDedupes(t *testing.T) {
	c := newPersonaCollection()
	c.Insert(persona.Persona{PersonaKey: "old"}, Append)
	before := c.Version()
	c.ReplaceAll([]persona.Persona{{PersonaKey: "x", PersonaName: "first"}, {PersonaKey: "y"}, {PersonaKey: "x", PersonaName: "second"}})
	if got := fmt.Sprint(personaKeys(c)); got != "[x y]" {
		t.Fatalf("keys: want=[x y] got=%s", got)
	}
	p, _ := c.Get("x")
	if p.PersonaName != "first" {
		t.Fatalf("first occurrence should win, got=%q", p.PersonaName)
	}
	if c.Version() == before {
		t.Fatalf("version should change on ReplaceAll")
	}
}

func TestCollectionListIsACopy(t *testing.T) {
	c := newPersonaCollection()
	c.Insert(persona.Persona{PersonaKey: "a", PersonaName: "orig"}, Append)
	list := c.List()
	list[0].PersonaName = "mutated"
	p, _ := c.Get("a")
	if p.PersonaName != "orig" {
		t.Fatalf("List must not alias storage")
	}
}
