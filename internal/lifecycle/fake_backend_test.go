package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/companion-client/internal/domain/persona"
	"github.com/yungbote/companion-client/internal/jobclient"
	"github.com/yungbote/companion-client/internal/notify"
	"github.com/yungbote/companion-client/internal/platform/apierr"
	"github.com/yungbote/companion-client/internal/platform/logger"
)

// fakeBackend is an in-memory server. Its lists are server truth; failures
// are injected per method name.
type fakeBackend struct {
	mu sync.Mutex

	personas []persona.Persona
	dresses  map[string][]persona.Dress
	status   map[string]bool

	fail  map[string]error
	calls map[string]int
	// dressCalls counts ListDresses per persona key.
	dressCalls map[string]int

	// dressGate, when set, blocks SubmitDressJob until it is closed.
	dressGate    chan struct{}
	dressEntered chan struct{}

	favorite persona.Flag
	equipped *persona.Persona
	nextKey  int
}

func newFakeBackend(personas ...persona.Persona) *fakeBackend {
	return &fakeBackend{
		personas:   personas,
		dresses:    map[string][]persona.Dress{},
		status:     map[string]bool{},
		fail:       map[string]error{},
		calls:      map[string]int{},
		dressCalls: map[string]int{},
	}
}

func (f *fakeBackend) enter(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	return f.fail[method]
}

func (f *fakeBackend) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeBackend) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeBackend) setFail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, method)
		return
	}
	f.fail[method] = err
}

func (f *fakeBackend) setPersonas(list ...persona.Persona) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.personas = list
}

func (f *fakeBackend) key(prefix string) string {
	f.nextKey++
	return prefix + "-" + string(rune('a'+f.nextKey-1))
}

func (f *fakeBackend) SubmitPersonaJob(ctx context.Context, ownerID string, p jobclient.PersonaJobPayload) (jobclient.JobReceipt, error) {
	if err := f.enter("SubmitPersonaJob"); err != nil {
		return jobclient.JobReceipt{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.key("persona")
	f.personas = append(f.personas, persona.Persona{PersonaKey: key, PersonaName: p.Name, DoneYN: persona.FlagNo, DefaultYN: persona.FlagNo, FavoriteYN: persona.FlagNo})
	return jobclient.JobReceipt{TargetKey: key, EstimatedSeconds: 90, PreviewAssetURL: "/assets/" + key + ".png", Cost: 100}, nil
}

func (f *fakeBackend) SubmitDressJob(ctx context.Context, ownerID string, personaKey string, description string) (jobclient.JobReceipt, error) {
	err := f.enter("SubmitDressJob")
	f.mu.Lock()
	gate, entered := f.dressGate, f.dressEntered
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return jobclient.JobReceipt{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.key("dress")
	f.dresses[personaKey] = append(f.dresses[personaKey], persona.Dress{MemoryKey: key, PersonaKey: personaKey, PromptText: description, DoneYN: persona.FlagNo})
	for i := range f.personas {
		if f.personas[i].PersonaKey == personaKey {
			f.personas[i].DressCount++
		}
	}
	return jobclient.JobReceipt{TargetKey: key, EstimatedSeconds: 30, Cost: 20}, nil
}

func (f *fakeBackend) SubmitVideoConversionJob(ctx context.Context, personaKey string, ownerID string, imageURL string, dressKey string) (jobclient.VideoReceipt, error) {
	if err := f.enter("SubmitVideoConversionJob"); err != nil {
		return jobclient.VideoReceipt{}, err
	}
	return jobclient.VideoReceipt{PendingVideoURL: "/assets/" + personaKey + ".mp4", JobKey: "video-" + personaKey, Cost: 50}, nil
}

func (f *fakeBackend) QueryJobStatus(ctx context.Context, targetKey string) (jobclient.JobStatus, error) {
	if err := f.enter("QueryJobStatus"); err != nil {
		return jobclient.JobStatus{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return jobclient.JobStatus{TargetKey: targetKey, Complete: f.status[targetKey]}, nil
}

func (f *fakeBackend) ListPersonas(ctx context.Context, ownerID string) ([]persona.Persona, error) {
	if err := f.enter("ListPersonas"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]persona.Persona, len(f.personas))
	copy(out, f.personas)
	return out, nil
}

func (f *fakeBackend) ListDresses(ctx context.Context, personaKey string) ([]persona.Dress, error) {
	if err := f.enter("ListDresses"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dressCalls[personaKey]++
	out := make([]persona.Dress, len(f.dresses[personaKey]))
	copy(out, f.dresses[personaKey])
	return out, nil
}

func (f *fakeBackend) RenamePersona(ctx context.Context, ownerID string, personaKey string, name *string, category *string) (*persona.Persona, error) {
	if err := f.enter("RenamePersona"); err != nil {
		return nil, err
	}
	return &persona.Persona{PersonaKey: personaKey}, nil
}

func (f *fakeBackend) DeletePersona(ctx context.Context, ownerID string, personaKey string) error {
	if err := f.enter("DeletePersona"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.personas[:0]
	for _, p := range f.personas {
		if p.PersonaKey != personaKey {
			kept = append(kept, p)
		}
	}
	f.personas = kept
	return nil
}

func (f *fakeBackend) ToggleFavorite(ctx context.Context, ownerID string, personaKey string) (persona.Flag, error) {
	if err := f.enter("ToggleFavorite"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.favorite, nil
}

func (f *fakeBackend) EquipDress(ctx context.Context, ownerID string, personaKey string, memoryKey string) (*persona.Persona, error) {
	if err := f.enter("EquipDress"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.equipped, nil
}

type fakeNavigator struct {
	mu     sync.Mutex
	opened []string
}

func (n *fakeNavigator) OpenBilling(ctx context.Context, personaKey string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.opened = append(n.opened, personaKey)
}

type fakeIndicator struct {
	mu      sync.Mutex
	shown   int
	hidden  int
	visible int
}

func (i *fakeIndicator) Show(string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.shown++
	i.visible++
}

func (i *fakeIndicator) Hide(string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.hidden++
	i.visible--
}

type harness struct {
	o   *Orchestrator
	be  *fakeBackend
	rec *notify.Recorder
	nav *fakeNavigator
	ind *fakeIndicator
	// decisions collects every Decision the orchestrator asked for.
	decisions []Decision
	answer    bool
	mu        sync.Mutex
}

func newHarness(t *testing.T, be *fakeBackend) *harness {
	t.Helper()
	h := &harness{be: be, rec: &notify.Recorder{}, nav: &fakeNavigator{}, ind: &fakeIndicator{}}
	o, err := New(Options{
		Backend:   be,
		OwnerID:   "owner-1",
		Notifier:  h.rec,
		Navigator: h.nav,
		Indicator: h.ind,
		Decider: DeciderFunc(func(ctx context.Context, d Decision) bool {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.decisions = append(h.decisions, d)
			return h.answer
		}),
		Logger: logger.Nop(),
		Now:    func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.o = o
	return h
}

// loaded builds a harness and runs the initial refresh.
func loaded(t *testing.T, be *fakeBackend) *harness {
	t.Helper()
	h := newHarness(t, be)
	if err := h.o.FullRefresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	h.rec.Reset()
	return h
}

func ready(key string) persona.Persona {
	return persona.Persona{
		PersonaKey:            key,
		PersonaName:           "name " + key,
		DoneYN:                persona.FlagYes,
		DefaultYN:             persona.FlagNo,
		FavoriteYN:            persona.FlagNo,
		SelectedDressImageURL: "/assets/" + key + ".png",
	}
}

func generating(key string) persona.Persona {
	p := ready(key)
	p.DoneYN = persona.FlagNo
	return p
}

func serverErr(status int, code apierr.Code) error {
	return apierr.New(status, code, errors.New("server said no"))
}
