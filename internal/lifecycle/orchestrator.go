// Package lifecycle owns every mutation of the persona and dress mirror.
// Presentation code calls its operations and renders the read views; it
// never touches the store directly.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yungbote/companion-client/internal/domain/persona"
	"github.com/yungbote/companion-client/internal/dressstate"
	"github.com/yungbote/companion-client/internal/notify"
	"github.com/yungbote/companion-client/internal/platform/apierr"
	"github.com/yungbote/companion-client/internal/platform/logger"
	"github.com/yungbote/companion-client/internal/selection"
	"github.com/yungbote/companion-client/internal/store"
)

type Options struct {
	Backend   Backend
	OwnerID   string
	Notifier  notify.Notifier
	Decider   Decider
	Navigator Navigator
	Indicator Indicator
	Logger    *logger.Logger
	// RefreshConcurrency bounds parallel dress list fetches during a refresh.
	RefreshConcurrency int
	Now                func() time.Time
}

// Orchestrator serializes state mutation behind mu. The lock is never held
// across a network call, so the caller stays responsive while a call is in
// flight; the target persona is marked busy instead.
type Orchestrator struct {
	mu sync.Mutex

	backend Backend
	ownerID string

	store *store.Store
	sel   *selection.Model
	agg   *dressstate.Aggregator

	// inflight maps persona key to the operation currently awaiting the server.
	inflight map[string]string
	// videoJobs remembers the job key returned by the last conversion per persona.
	videoJobs map[string]string

	notifier  notify.Notifier
	decider   Decider
	navigator Navigator
	indicator Indicator
	log       *logger.Logger

	refreshConcurrency int
	now                func() time.Time
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Backend == nil {
		return nil, errors.New("backend required")
	}
	if opts.OwnerID == "" {
		return nil, errors.New("owner id required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	o := &Orchestrator{
		backend:            opts.Backend,
		ownerID:            opts.OwnerID,
		store:              store.New(log),
		sel:                selection.New(),
		inflight:           map[string]string{},
		videoJobs:          map[string]string{},
		notifier:           opts.Notifier,
		decider:            opts.Decider,
		navigator:          opts.Navigator,
		indicator:          opts.Indicator,
		log:                log.With("component", "LifecycleOrchestrator"),
		refreshConcurrency: opts.RefreshConcurrency,
		now:                opts.Now,
	}
	if o.notifier == nil {
		o.notifier = notify.Func(func(notify.Notification) {})
	}
	if o.decider == nil {
		o.decider = declineAll{}
	}
	if o.navigator == nil {
		o.navigator = noNavigation{}
	}
	if o.indicator == nil {
		o.indicator = noIndicator{}
	}
	if o.refreshConcurrency <= 0 {
		o.refreshConcurrency = 4
	}
	if o.now == nil {
		o.now = time.Now
	}
	o.agg = dressstate.New(o.store)
	return o, nil
}

// ---- read views ----

func (o *Orchestrator) Personas() []persona.Persona {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.Personas()
}

func (o *Orchestrator) Persona(key string) (persona.Persona, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.Persona(key)
}

func (o *Orchestrator) Dresses(personaKey string) []persona.Dress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.Dresses(personaKey)
}

// Effective is the active persona. The pointer is stable across calls while
// the list and selection are unchanged; callers must treat it as read-only.
func (o *Orchestrator) Effective() *persona.Persona {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sel.Effective(o.store)
}

func (o *Orchestrator) SelectedIndex() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sel.Index()
}

// Summary is reference-stable while count and in-flight state are unchanged.
func (o *Orchestrator) Summary(personaKey string) *dressstate.Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.agg.Summarize(personaKey)
}

// Busy reports whether a client call on the persona is awaiting the server.
func (o *Orchestrator) Busy(personaKey string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[personaKey]
	return ok
}

// ---- selection ----

func (o *Orchestrator) Select(index int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sel.Select(index)
	o.sel.OnListChange(o.store)
}

// SelectPersona selects by key and pins the entity so the effective
// selection is right even before a re-filtered list arrives.
func (o *Orchestrator) SelectPersona(key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.store.Persona(key)
	if !ok {
		return apierr.New(0, apierr.NotFound, errors.New("persona not found"))
	}
	o.sel.SelectEntity(o.store.PersonaIndex(key), p)
	return nil
}

// ---- guards ----

// guardLocked checks that the persona exists and accepts a mutation. It
// never touches the store. Callers hold mu.
func (o *Orchestrator) guardLocked(op string, key string) (persona.Persona, *apierr.Error) {
	p, ok := o.store.Persona(key)
	if !ok {
		return persona.Persona{}, apierr.New(0, apierr.NotFound, errors.New("persona not found"))
	}
	if !p.Ready() {
		return p, apierr.Processing("persona is still being generated")
	}
	if busyOp, busy := o.inflight[key]; busy {
		return p, apierr.Processing("persona is busy with " + busyOp)
	}
	return p, nil
}

// begin runs the guard and marks the persona busy for op.
func (o *Orchestrator) begin(op string, key string) (persona.Persona, *apierr.Error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, rej := o.guardLocked(op, key)
	if rej != nil {
		return p, rej
	}
	o.inflight[key] = op
	return p, nil
}

func (o *Orchestrator) endLocked(key string) {
	delete(o.inflight, key)
}

func (o *Orchestrator) end(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.endLocked(key)
}

// EnterChat only checks that the persona may be opened; the conversation
// itself lives outside this package.
func (o *Orchestrator) EnterChat(key string) error {
	o.mu.Lock()
	_, rej := o.guardLocked("enter_chat", key)
	o.mu.Unlock()
	if rej != nil {
		return o.reject("enter_chat", key, rej)
	}
	return nil
}

// ---- notification plumbing ----

func (o *Orchestrator) emit(n notify.Notification) {
	n.At = o.now()
	o.notifier.Notify(n)
}

// reject reports a client-side rejection. VALIDATION_FAILED, NOT_FOUND and
// STILL_PROCESSING never reach the network and never change state.
func (o *Orchestrator) reject(op string, key string, rej *apierr.Error) error {
	o.log.Debug("operation rejected", "op", op, "persona_key", key, "code", rej.Code, "reason", rej.Error())
	o.emit(notify.Notification{
		Kind:       notify.KindRejected,
		Severity:   notify.SeverityWarning,
		Code:       rej.Code,
		PersonaKey: key,
		Message:    rejectMessage(rej),
	})
	return rej
}

func rejectMessage(rej *apierr.Error) string {
	switch rej.Code {
	case apierr.StillProcessing:
		return "Still processing. Please try again in a moment."
	case apierr.NotFound:
		return "That companion is no longer available."
	default:
		if rej.Err != nil {
			return rej.Err.Error()
		}
		return "Please check your input."
	}
}

// fail reports a server or transport failure once. INSUFFICIENT_POINT is
// the only failure with a navigational side effect.
func (o *Orchestrator) fail(ctx context.Context, op string, key string, err error) error {
	ae := apierr.Normalize(err)
	o.log.Warn("operation failed", "op", op, "persona_key", key, "code", ae.Code, "error", err)

	if ae.Code == apierr.InsufficientPoint {
		o.emit(notify.Notification{
			Kind:       notify.KindFailed,
			Severity:   notify.SeverityWarning,
			Code:       ae.Code,
			PersonaKey: key,
			Message:    "Not enough points.",
		})
		if o.decider.Confirm(ctx, Decision{Kind: DecisionTopUp, PersonaKey: key, Message: "Not enough points. Top up now?"}) {
			o.navigator.OpenBilling(ctx, key)
		}
		return ae
	}

	severity := notify.SeverityError
	msg := "Something went wrong. Please try again."
	if ae.Code == apierr.ValidationFailed || ae.Code == apierr.StillProcessing || ae.Code == apierr.NotFound {
		severity = notify.SeverityWarning
		msg = "The request was rejected."
		if ae.Code == apierr.StillProcessing {
			msg = rejectMessage(ae)
		}
	}
	o.emit(notify.Notification{
		Kind:       notify.KindFailed,
		Severity:   severity,
		Code:       ae.Code,
		PersonaKey: key,
		Message:    msg,
	})
	return ae
}
