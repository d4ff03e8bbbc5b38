// Package persona holds the companion data model mirrored from the
// generation service: personas, their dresses and generation jobs.
package persona

import "time"

// Flag is the server's Y/N encoding for booleans.
type Flag string

const (
	FlagYes Flag = "Y"
	FlagNo  Flag = "N"
)

func (f Flag) Yes() bool { return f == FlagYes }

func FlagOf(b bool) Flag {
	if b {
		return FlagYes
	}
	return FlagNo
}

type Persona struct {
	PersonaKey   string `json:"persona_key"`
	PersonaName  string `json:"persona_name"`
	DoneYN       Flag   `json:"done_yn"`
	CategoryType string `json:"category_type,omitempty"`
	DefaultYN    Flag   `json:"default_yn"`
	FavoriteYN   Flag   `json:"favorite_yn"`

	SelectedDressImageURL string `json:"selected_dress_image_url,omitempty"`
	SelectedDressVideoURL string `json:"selected_dress_video_url,omitempty"`
	// VideoConvertDone is nil when no conversion was ever requested.
	VideoConvertDone *Flag `json:"selected_dress_video_convert_done,omitempty"`
	HistoryKey       string `json:"history_key,omitempty"`
	DressCount       int    `json:"dress_count"`

	IntimacyLevel     int        `json:"intimacy_level"`
	TrustScore        float64    `json:"trust_score"`
	EmotionalState    string     `json:"emotional_state,omitempty"`
	RelationshipLevel int        `json:"relationship_level"`
	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty"`
	ConversationCount int        `json:"conversation_count"`

	IdentityName        string `json:"identity_name,omitempty"`
	IdentityEnabled     Flag   `json:"identity_enabled,omitempty"`
	IdentityDescription string `json:"identity_description,omitempty"`
}

// Ready reports whether the creation job has finished.
func (p Persona) Ready() bool { return p.DoneYN.Yes() }

func (p Persona) IsDefault() bool { return p.DefaultYN.Yes() }

func (p Persona) IsFavorite() bool { return p.FavoriteYN.Yes() }

// HasVideo is true once a conversion was requested, pending or not.
func (p Persona) HasVideo() bool { return p.SelectedDressVideoURL != "" }

func (p Persona) VideoPending() bool {
	return p.VideoConvertDone != nil && *p.VideoConvertDone == FlagNo
}

// Clone returns a copy that shares no pointers with p.
func (p Persona) Clone() Persona {
	out := p
	if p.VideoConvertDone != nil {
		v := *p.VideoConvertDone
		out.VideoConvertDone = &v
	}
	if p.LastInteractionAt != nil {
		t := *p.LastInteractionAt
		out.LastInteractionAt = &t
	}
	return out
}

type Dress struct {
	MemoryKey    string `json:"memory_key"`
	PersonaKey   string `json:"persona_key"`
	MediaURL     string `json:"media_url,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`
	PromptText   string `json:"prompt_text,omitempty"`
	DoneYN       Flag   `json:"done_yn"`
	EstimateTime int    `json:"estimate_time"`
}

func (d Dress) Ready() bool { return d.DoneYN.Yes() }

type TargetType string

const (
	TargetPersona TargetType = "persona"
	TargetDress   TargetType = "dress"
	TargetVideo   TargetType = "video"
)

// GenerationJob lives only for the duration of the submitting call.
type GenerationJob struct {
	TargetType   TargetType `json:"target_type"`
	TargetKey    string     `json:"target_key"`
	Cost         int        `json:"cost"`
	EstimateTime int        `json:"estimate_time"`
	ResultRef    string     `json:"result_ref,omitempty"`
}
