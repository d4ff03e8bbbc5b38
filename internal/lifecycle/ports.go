package lifecycle

import (
	"context"

	"github.com/yungbote/companion-client/internal/domain/persona"
	"github.com/yungbote/companion-client/internal/jobclient"
)

// Backend is the remote generation service. *jobclient.Client satisfies it.
type Backend interface {
	SubmitPersonaJob(ctx context.Context, ownerID string, p jobclient.PersonaJobPayload) (jobclient.JobReceipt, error)
	SubmitDressJob(ctx context.Context, ownerID string, personaKey string, description string) (jobclient.JobReceipt, error)
	SubmitVideoConversionJob(ctx context.Context, personaKey string, ownerID string, imageURL string, dressKey string) (jobclient.VideoReceipt, error)
	QueryJobStatus(ctx context.Context, targetKey string) (jobclient.JobStatus, error)
	ListPersonas(ctx context.Context, ownerID string) ([]persona.Persona, error)
	ListDresses(ctx context.Context, personaKey string) ([]persona.Dress, error)
	RenamePersona(ctx context.Context, ownerID string, personaKey string, name *string, category *string) (*persona.Persona, error)
	DeletePersona(ctx context.Context, ownerID string, personaKey string) error
	ToggleFavorite(ctx context.Context, ownerID string, personaKey string) (persona.Flag, error)
	EquipDress(ctx context.Context, ownerID string, personaKey string, memoryKey string) (*persona.Persona, error)
}

var _ Backend = (*jobclient.Client)(nil)

type DecisionKind string

const (
	// DecisionEquip asks the user to confirm wearing a dress.
	DecisionEquip DecisionKind = "equip_dress"
	// DecisionTopUp offers the billing screen after a point shortfall.
	DecisionTopUp DecisionKind = "top_up"
)

type Decision struct {
	Kind       DecisionKind
	PersonaKey string
	Dress      *persona.Dress
	Message    string
}

// Decider presents a yes/no decision and blocks until the user answers.
type Decider interface {
	Confirm(ctx context.Context, d Decision) bool
}

type DeciderFunc func(ctx context.Context, d Decision) bool

func (f DeciderFunc) Confirm(ctx context.Context, d Decision) bool { return f(ctx, d) }

// Navigator performs the one navigational side effect the lifecycle owns.
type Navigator interface {
	OpenBilling(ctx context.Context, personaKey string)
}

// Indicator shows a transient processing overlay for the duration of a
// submission call. It is never shown for the generation job itself.
type Indicator interface {
	Show(op string)
	Hide(op string)
}

type declineAll struct{}

func (declineAll) Confirm(context.Context, Decision) bool { return false }

type noNavigation struct{}

func (noNavigation) OpenBilling(context.Context, string) {}

type noIndicator struct{}

func (noIndicator) Show(string) {}
func (noIndicator) Hide(string) {}
