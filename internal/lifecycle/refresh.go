package lifecycle

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/companion-client/internal/domain/persona"
	"github.com/yungbote/companion-client/internal/notify"
)

// snapshot is a complete server read. It is applied in one critical
// section so observers never see a half-refreshed mirror.
type snapshot struct {
	personas []persona.Persona
	dresses  map[string][]persona.Dress
}

// fetch reads the persona list and, concurrently, the dress lists of every
// persona whose dresses are already mirrored plus any extra keys. Nothing
// is applied here; a failed fetch leaves the store untouched.
func (o *Orchestrator) fetch(ctx context.Context, extra ...string) (snapshot, error) {
	o.mu.Lock()
	owners := o.store.LoadedDressOwners()
	o.mu.Unlock()
	owners = appendUnique(owners, extra...)

	snap := snapshot{dresses: make(map[string][]persona.Dress, len(owners))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.refreshConcurrency)
	g.Go(func() error {
		list, err := o.backend.ListPersonas(gctx, o.ownerID)
		if err != nil {
			return err
		}
		snap.personas = list
		return nil
	})
	for _, key := range owners {
		key := key
		g.Go(func() error {
			list, err := o.backend.ListDresses(gctx, key)
			if err != nil {
				return err
			}
			mu.Lock()
			snap.dresses[key] = list
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

// applyLocked replaces the mirror with a snapshot. Personas gone from the
// list take their dresses with them; selection is re-clamped.
func (o *Orchestrator) applyLocked(snap snapshot) {
	o.store.ReplacePersonas(snap.personas)
	for key, list := range snap.dresses {
		o.store.ReplaceDresses(key, list)
	}
	for key := range o.videoJobs {
		if p, ok := o.store.Persona(key); !ok || !p.VideoPending() {
			delete(o.videoJobs, key)
		}
	}
	o.sel.OnListChange(o.store)
}

func (o *Orchestrator) refresh(ctx context.Context, extra ...string) error {
	snap, err := o.fetch(ctx, extra...)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.applyLocked(snap)
	o.mu.Unlock()
	return nil
}

// FullRefresh re-reads everything from the server. It is the recovery path
// after any failure and the way the mirror first gets populated.
func (o *Orchestrator) FullRefresh(ctx context.Context) error {
	const op = "refresh"
	if err := o.refresh(ctx); err != nil {
		return o.fail(ctx, op, "", err)
	}
	o.mu.Lock()
	n := o.store.Len()
	o.mu.Unlock()
	o.log.Debug("refreshed", "personas", n)
	o.emit(notify.Notification{
		Kind:     notify.KindRefreshed,
		Severity: notify.SeverityInfo,
		Message:  "Up to date.",
	})
	return nil
}

func appendUnique(base []string, extra ...string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, k := range append(base, extra...) {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
