package sandbox

import (
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/companion-client/internal/domain/persona"
)

type Wallet struct {
	OwnerID   string `gorm:"primaryKey;column:owner_id"`
	Points    int    `gorm:"not null"`
	UpdatedAt time.Time
}

func (Wallet) TableName() string { return "wallet" }

type PersonaRow struct {
	Key          string `gorm:"primaryKey;column:persona_key"`
	OwnerID      string `gorm:"index;not null;column:owner_id"`
	Position     int    `gorm:"not null"`
	Name         string `gorm:"not null"`
	Description  string
	Gender       string
	CategoryType string
	DefaultYN    string `gorm:"size:1;not null;default:N;column:default_yn"`
	FavoriteYN   string `gorm:"size:1;not null;default:N;column:favorite_yn"`

	HistoryKey string
	ImageURL   string `gorm:"column:image_url"`
	VideoURL   string `gorm:"column:video_url"`
	// VideoJobKey is empty when no conversion was ever requested.
	VideoJobKey  string
	VideoReadyAt *time.Time

	IntimacyLevel     int
	TrustScore        float64
	EmotionalState    string
	RelationshipLevel int
	ConversationCount int
	LastInteractionAt *time.Time

	// Request keeps the submitted generation payload (minus the photo).
	Request datatypes.JSON

	ReadyAt   time.Time `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PersonaRow) TableName() string { return "persona" }

type DressRow struct {
	Key        string `gorm:"primaryKey;column:memory_key"`
	PersonaKey string `gorm:"index;not null;column:persona_key"`
	OwnerID    string `gorm:"index;not null;column:owner_id"`
	MediaURL   string `gorm:"column:media_url"`
	VideoURL   string `gorm:"column:video_url"`
	PromptText string
	Estimate   int
	Meta       datatypes.JSON

	ReadyAt   time.Time `gorm:"not null"`
	CreatedAt time.Time
}

func (DressRow) TableName() string { return "dress" }

// toPersona renders a row with completion evaluated at now.
func (r PersonaRow) toPersona(now time.Time, dressCount int) persona.Persona {
	p := persona.Persona{
		PersonaKey:            r.Key,
		PersonaName:           r.Name,
		DoneYN:                persona.FlagOf(!now.Before(r.ReadyAt)),
		CategoryType:          r.CategoryType,
		DefaultYN:             persona.Flag(r.DefaultYN),
		FavoriteYN:            persona.Flag(r.FavoriteYN),
		SelectedDressImageURL: r.ImageURL,
		SelectedDressVideoURL: r.VideoURL,
		HistoryKey:            r.HistoryKey,
		DressCount:            dressCount,
		IntimacyLevel:         r.IntimacyLevel,
		TrustScore:            r.TrustScore,
		EmotionalState:        r.EmotionalState,
		RelationshipLevel:     r.RelationshipLevel,
		LastInteractionAt:     r.LastInteractionAt,
		ConversationCount:     r.ConversationCount,
	}
	if r.VideoURL != "" {
		done := persona.FlagYes
		if r.VideoReadyAt != nil && now.Before(*r.VideoReadyAt) {
			done = persona.FlagNo
		}
		p.VideoConvertDone = &done
	}
	return p
}

func (r DressRow) toDress(now time.Time) persona.Dress {
	return persona.Dress{
		MemoryKey:    r.Key,
		PersonaKey:   r.PersonaKey,
		MediaURL:     r.MediaURL,
		VideoURL:     r.VideoURL,
		PromptText:   r.PromptText,
		DoneYN:       persona.FlagOf(!now.Before(r.ReadyAt)),
		EstimateTime: r.Estimate,
	}
}
