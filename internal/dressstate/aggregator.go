// Package dressstate derives per-persona dress badges from the store.
package dressstate

import (
	"github.com/yungbote/companion-client/internal/domain/persona"
)

type Summary struct {
	Count          int  `json:"count"`
	HasInFlightJob bool `json:"has_in_flight_job"`
}

// Source is the read-only part of the store the aggregator needs.
type Source interface {
	Persona(key string) (persona.Persona, bool)
	DressesLoaded(key string) bool
	Dresses(key string) []persona.Dress
	Pending(key string) int
}

// Aggregator memoizes one *Summary per persona. A recomputation that yields
// the same values returns the previous pointer.
type Aggregator struct {
	src  Source
	memo map[string]*Summary
}

func New(src Source) *Aggregator {
	return &Aggregator{src: src, memo: map[string]*Summary{}}
}

// Summarize returns nil for a persona unknown to the store.
func (a *Aggregator) Summarize(personaKey string) *Summary {
	p, ok := a.src.Persona(personaKey)
	if !ok {
		delete(a.memo, personaKey)
		return nil
	}
	next := a.compute(p)
	if prev, ok := a.memo[personaKey]; ok && *prev == next {
		return prev
	}
	out := &next
	a.memo[personaKey] = out
	return out
}

func (a *Aggregator) compute(p persona.Persona) Summary {
	pending := a.src.Pending(p.PersonaKey)
	if !a.src.DressesLoaded(p.PersonaKey) {
		return Summary{Count: p.DressCount + pending, HasInFlightJob: pending > 0}
	}
	dresses := a.src.Dresses(p.PersonaKey)
	inFlight := pending > 0
	for _, d := range dresses {
		if !d.Ready() {
			inFlight = true
			break
		}
	}
	return Summary{Count: len(dresses) + pending, HasInFlightJob: inFlight}
}

// Forget drops the memo for a deleted persona.
func (a *Aggregator) Forget(personaKey string) {
	delete(a.memo, personaKey)
}
