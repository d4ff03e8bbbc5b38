package jobclient

import (
	"encoding/json"

	"github.com/yungbote/companion-client/internal/domain/persona"
)

// Envelope wraps every response body of the generation service.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *EnvelopeError  `json:"error,omitempty"`
}

type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PersonaJobRequest struct {
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Gender      string `json:"gender,omitempty"`
	PhotoBase64 string `json:"photo_base64"`
}

type DressJobRequest struct {
	OwnerID     string `json:"owner_id"`
	Description string `json:"description"`
}

type JobReceipt struct {
	TargetKey        string `json:"target_key"`
	EstimatedSeconds int    `json:"estimated_seconds"`
	PreviewAssetURL  string `json:"preview_asset_url"`
	Cost             int    `json:"cost"`
}

// Job describes the submitted job as a target of type t. The preview
// asset is the synchronous result reference.
func (r JobReceipt) Job(t persona.TargetType) persona.GenerationJob {
	return persona.GenerationJob{
		TargetType:   t,
		TargetKey:    r.TargetKey,
		Cost:         r.Cost,
		EstimateTime: r.EstimatedSeconds,
		ResultRef:    r.PreviewAssetURL,
	}
}

type VideoJobRequest struct {
	OwnerID  string `json:"owner_id"`
	ImageURL string `json:"image_url"`
	DressKey string `json:"dress_key"`
}

type VideoReceipt struct {
	PendingVideoURL string `json:"pending_video_url"`
	JobKey          string `json:"job_key"`
	Cost            int    `json:"cost"`
}

// Job describes the conversion; the job key is the status target and the
// pending video URL the result reference.
func (r VideoReceipt) Job() persona.GenerationJob {
	return persona.GenerationJob{
		TargetType: persona.TargetVideo,
		TargetKey:  r.JobKey,
		Cost:       r.Cost,
		ResultRef:  r.PendingVideoURL,
	}
}

type JobStatus struct {
	TargetKey string `json:"target_key"`
	Complete  bool   `json:"complete"`
}

type PersonaList struct {
	Personas []persona.Persona `json:"personas"`
}

type DressList struct {
	Dresses []persona.Dress `json:"dresses"`
}

// BasicUpdate carries only the fields being changed.
type BasicUpdate struct {
	OwnerID      string  `json:"owner_id"`
	Name         *string `json:"name,omitempty"`
	CategoryType *string `json:"category_type,omitempty"`
}

type PersonaResult struct {
	Persona *persona.Persona `json:"persona,omitempty"`
}

type FavoriteRequest struct {
	OwnerID string `json:"owner_id"`
}

type FavoriteResult struct {
	FavoriteYN persona.Flag `json:"favorite_yn"`
}

type EquipRequest struct {
	OwnerID   string `json:"owner_id"`
	MemoryKey string `json:"memory_key"`
}
