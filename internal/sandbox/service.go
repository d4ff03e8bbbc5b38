package sandbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/companion-client/internal/domain/persona"
	"github.com/yungbote/companion-client/internal/jobclient"
	"github.com/yungbote/companion-client/internal/platform/apierr"
	"github.com/yungbote/companion-client/internal/platform/logger"
)

var defaultPersonas = []struct {
	name     string
	category string
}{
	{name: "Haru", category: "friend"},
	{name: "Yuna", category: "mentor"},
}

// Service simulates the generation backend. Jobs have no worker: a target
// counts as complete once its ready time has passed, evaluated on read.
type Service struct {
	db      *gorm.DB
	cfg     Config
	log     *logger.Logger
	metrics *Metrics
	now     func() time.Time

	// completed holds target keys already counted as complete.
	mu        sync.Mutex
	completed map[string]struct{}
}

func NewService(db *gorm.DB, cfg Config, log *logger.Logger, metrics *Metrics) *Service {
	return &Service{
		db:      db,
		cfg:     cfg.withDefaults(),
		log:     log.With("service", "SandboxService"),
		metrics:   metrics,
		now:       time.Now,
		completed: map[string]struct{}{},
	}
}

func notFound(what string) *apierr.Error {
	return apierr.New(http.StatusNotFound, apierr.NotFound, fmt.Errorf("%s not found", what))
}

func invalid(msg string) *apierr.Error {
	return apierr.New(http.StatusBadRequest, apierr.ValidationFailed, errors.New(msg))
}

func processing(msg string) *apierr.Error {
	return apierr.New(http.StatusConflict, apierr.StillProcessing, errors.New(msg))
}

func (s *Service) assetURL(key string, ext string) string {
	return strings.TrimRight(s.cfg.AssetBaseURL, "/") + "/assets/" + key + "." + ext
}

// ensureOwner creates the wallet and seeds the default personas the first
// time an owner is seen.
func (s *Service) ensureOwner(tx *gorm.DB, ownerID string) (*Wallet, error) {
	var w Wallet
	err := tx.Where("owner_id = ?", ownerID).First(&w).Error
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	w = Wallet{OwnerID: ownerID, Points: s.cfg.StartingPoints}
	if err := tx.Create(&w).Error; err != nil {
		return nil, err
	}
	ready := s.now().Add(-time.Second)
	for i, d := range defaultPersonas {
		key := "persona_" + uuid.NewString()
		row := PersonaRow{
			Key:          key,
			OwnerID:      ownerID,
			Position:     i,
			Name:         d.name,
			CategoryType: d.category,
			DefaultYN:    string(persona.FlagYes),
			FavoriteYN:   string(persona.FlagNo),
			ImageURL:     s.assetURL(key, "png"),
			ReadyAt:      ready,
		}
		if err := tx.Create(&row).Error; err != nil {
			return nil, err
		}
	}
	s.log.Info("owner seeded", "owner_id", ownerID, "points", w.Points)
	return &w, nil
}

func (s *Service) charge(tx *gorm.DB, ownerID string, cost int) error {
	w, err := s.ensureOwner(tx, ownerID)
	if err != nil {
		return err
	}
	if w.Points < cost {
		return apierr.New(http.StatusPaymentRequired, apierr.InsufficientPoint, fmt.Errorf("balance %d below cost %d", w.Points, cost))
	}
	return tx.Model(&Wallet{}).Where("owner_id = ?", ownerID).Update("points", w.Points-cost).Error
}

// Balance reports the owner's points, seeding the owner if needed.
func (s *Service) Balance(ctx context.Context, ownerID string) (int, error) {
	var points int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.ensureOwner(tx, ownerID)
		if err != nil {
			return err
		}
		points = w.Points
		return nil
	})
	return points, err
}

func (s *Service) loadPersona(tx *gorm.DB, ownerID string, key string) (*PersonaRow, error) {
	var row PersonaRow
	if err := tx.Where("persona_key = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("persona")
		}
		return nil, err
	}
	if ownerID != "" && row.OwnerID != ownerID {
		return nil, notFound("persona")
	}
	return &row, nil
}

func (s *Service) dressCount(tx *gorm.DB, personaKey string) (int, error) {
	var n int64
	err := tx.Model(&DressRow{}).Where("persona_key = ?", personaKey).Count(&n).Error
	return int(n), err
}

// ---- jobs ----

func (s *Service) CreatePersona(ctx context.Context, req jobclient.PersonaJobRequest) (jobclient.JobReceipt, error) {
	name := strings.TrimSpace(req.Name)
	switch {
	case strings.TrimSpace(req.OwnerID) == "":
		return jobclient.JobReceipt{}, invalid("owner_id required")
	case name == "":
		return jobclient.JobReceipt{}, invalid("name required")
	case strings.TrimSpace(req.Description) == "":
		return jobclient.JobReceipt{}, invalid("description required")
	}
	photo, err := base64.StdEncoding.DecodeString(req.PhotoBase64)
	if err != nil || len(photo) == 0 {
		return jobclient.JobReceipt{}, invalid("photo required")
	}

	key := "persona_" + uuid.NewString()
	receipt := jobclient.JobReceipt{
		TargetKey:        key,
		EstimatedSeconds: int(s.cfg.PersonaDuration / time.Second),
		PreviewAssetURL:  s.assetURL(key, "png"),
		Cost:             s.cfg.PersonaCost,
	}
	payload, _ := json.Marshal(map[string]any{
		"name":        name,
		"description": strings.TrimSpace(req.Description),
		"gender":      strings.TrimSpace(req.Gender),
		"photo_bytes": len(photo),
	})

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.charge(tx, req.OwnerID, s.cfg.PersonaCost); err != nil {
			return err
		}
		var maxPos int
		if err := tx.Model(&PersonaRow{}).Where("owner_id = ?", req.OwnerID).Select("COALESCE(MAX(position), -1)").Row().Scan(&maxPos); err != nil {
			return err
		}
		return tx.Create(&PersonaRow{
			Key:         key,
			OwnerID:     req.OwnerID,
			Position:    maxPos + 1,
			Name:        name,
			Description: strings.TrimSpace(req.Description),
			Gender:      strings.TrimSpace(req.Gender),
			DefaultYN:   string(persona.FlagNo),
			FavoriteYN:  string(persona.FlagNo),
			ImageURL:    receipt.PreviewAssetURL,
			Request:     datatypes.JSON(payload),
			ReadyAt:     s.now().Add(s.cfg.PersonaDuration),
		}).Error
	})
	if err != nil {
		return jobclient.JobReceipt{}, err
	}
	s.metrics.jobSubmitted(string(persona.TargetPersona), receipt.Cost)
	s.log.Info("persona job accepted", "owner_id", req.OwnerID, "persona_key", key)
	return receipt, nil
}

func (s *Service) CreateDress(ctx context.Context, personaKey string, req jobclient.DressJobRequest) (jobclient.JobReceipt, error) {
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return jobclient.JobReceipt{}, invalid("description required")
	}
	key := "dress_" + uuid.NewString()
	receipt := jobclient.JobReceipt{
		TargetKey:        key,
		EstimatedSeconds: int(s.cfg.DressDuration / time.Second),
		PreviewAssetURL:  s.assetURL(key, "png"),
		Cost:             s.cfg.DressCost,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPersona(tx, req.OwnerID, personaKey)
		if err != nil {
			return err
		}
		now := s.now()
		if now.Before(p.ReadyAt) {
			return processing("persona is still being generated")
		}
		if err := s.charge(tx, p.OwnerID, s.cfg.DressCost); err != nil {
			return err
		}
		meta, _ := json.Marshal(map[string]any{"persona_name": p.Name})
		return tx.Create(&DressRow{
			Key:        key,
			PersonaKey: personaKey,
			OwnerID:    p.OwnerID,
			MediaURL:   receipt.PreviewAssetURL,
			PromptText: desc,
			Estimate:   receipt.EstimatedSeconds,
			Meta:       datatypes.JSON(meta),
			ReadyAt:    now.Add(s.cfg.DressDuration),
		}).Error
	})
	if err != nil {
		return jobclient.JobReceipt{}, err
	}
	s.metrics.jobSubmitted(string(persona.TargetDress), receipt.Cost)
	return receipt, nil
}

func (s *Service) ConvertVideo(ctx context.Context, personaKey string, req jobclient.VideoJobRequest) (jobclient.VideoReceipt, error) {
	if strings.TrimSpace(req.ImageURL) == "" {
		return jobclient.VideoReceipt{}, invalid("image_url required")
	}
	jobKey := "video_" + uuid.NewString()
	receipt := jobclient.VideoReceipt{
		PendingVideoURL: s.assetURL(jobKey, "mp4"),
		JobKey:          jobKey,
		Cost:            s.cfg.VideoCost,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPersona(tx, req.OwnerID, personaKey)
		if err != nil {
			return err
		}
		now := s.now()
		switch {
		case now.Before(p.ReadyAt):
			return processing("persona is still being generated")
		case p.VideoURL != "" && p.VideoReadyAt != nil && now.Before(*p.VideoReadyAt):
			return processing("video is still being generated")
		case p.VideoURL != "":
			return invalid("video already exists")
		}
		if err := s.charge(tx, p.OwnerID, s.cfg.VideoCost); err != nil {
			return err
		}
		readyAt := now.Add(s.cfg.VideoDuration)
		return tx.Model(&PersonaRow{}).Where("persona_key = ?", personaKey).Updates(map[string]any{
			"video_url":      receipt.PendingVideoURL,
			"video_job_key":  jobKey,
			"video_ready_at": readyAt,
		}).Error
	})
	if err != nil {
		return jobclient.VideoReceipt{}, err
	}
	s.metrics.jobSubmitted(string(persona.TargetVideo), receipt.Cost)
	return receipt, nil
}

// JobStatus resolves a key against personas, dresses and video jobs.
func (s *Service) JobStatus(ctx context.Context, ownerID string, targetKey string) (jobclient.JobStatus, error) {
	db := s.db.WithContext(ctx)
	now := s.now()
	target, complete, err := s.lookupTarget(db, ownerID, targetKey, now)
	if err != nil {
		return jobclient.JobStatus{}, err
	}
	if complete && s.markCompleted(targetKey) {
		s.metrics.jobComplete(string(target))
	}
	return jobclient.JobStatus{TargetKey: targetKey, Complete: complete}, nil
}

// markCompleted reports whether this is the first complete answer for key.
func (s *Service) markCompleted(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.completed[key]; seen {
		return false
	}
	s.completed[key] = struct{}{}
	return true
}

func (s *Service) lookupTarget(db *gorm.DB, ownerID string, key string, now time.Time) (persona.TargetType, bool, error) {
	var p PersonaRow
	err := db.Where("persona_key = ?", key).First(&p).Error
	if err == nil && (ownerID == "" || p.OwnerID == ownerID) {
		return persona.TargetPersona, !now.Before(p.ReadyAt), nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, err
	}

	var d DressRow
	err = db.Where("memory_key = ?", key).First(&d).Error
	if err == nil && (ownerID == "" || d.OwnerID == ownerID) {
		return persona.TargetDress, !now.Before(d.ReadyAt), nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, err
	}

	var v PersonaRow
	err = db.Where("video_job_key = ?", key).First(&v).Error
	if err == nil && (ownerID == "" || v.OwnerID == ownerID) {
		return persona.TargetVideo, v.VideoReadyAt == nil || !now.Before(*v.VideoReadyAt), nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, err
	}
	return "", false, notFound("job")
}

// ---- listings ----

func (s *Service) ListPersonas(ctx context.Context, ownerID string) ([]persona.Persona, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, invalid("owner_id required")
	}
	var out []persona.Persona
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.ensureOwner(tx, ownerID); err != nil {
			return err
		}
		var rows []PersonaRow
		if err := tx.Where("owner_id = ?", ownerID).Order("position ASC").Find(&rows).Error; err != nil {
			return err
		}
		var counts []struct {
			PersonaKey string
			N          int
		}
		if err := tx.Model(&DressRow{}).Select("persona_key, COUNT(*) AS n").Where("owner_id = ?", ownerID).Group("persona_key").Scan(&counts).Error; err != nil {
			return err
		}
		byKey := make(map[string]int, len(counts))
		for _, c := range counts {
			byKey[c.PersonaKey] = c.N
		}
		now := s.now()
		out = make([]persona.Persona, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.toPersona(now, byKey[r.Key]))
		}
		return nil
	})
	return out, err
}

func (s *Service) ListDresses(ctx context.Context, ownerID string, personaKey string) ([]persona.Dress, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.loadPersona(db, ownerID, personaKey); err != nil {
		return nil, err
	}
	var rows []DressRow
	if err := db.Where("persona_key = ?", personaKey).Order("created_at ASC, memory_key ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]persona.Dress, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDress(now))
	}
	return out, nil
}

// ---- simple mutations ----

func (s *Service) UpdateBasic(ctx context.Context, personaKey string, req jobclient.BasicUpdate) (persona.Persona, error) {
	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return persona.Persona{}, invalid("name must not be empty")
		}
		updates["name"] = name
	}
	if req.CategoryType != nil {
		updates["category_type"] = strings.TrimSpace(*req.CategoryType)
	}
	if len(updates) == 0 {
		return persona.Persona{}, invalid("nothing to update")
	}
	var out persona.Persona
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPersona(tx, req.OwnerID, personaKey)
		if err != nil {
			return err
		}
		if err := tx.Model(&PersonaRow{}).Where("persona_key = ?", personaKey).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Where("persona_key = ?", personaKey).First(p).Error; err != nil {
			return err
		}
		n, err := s.dressCount(tx, personaKey)
		if err != nil {
			return err
		}
		out = p.toPersona(s.now(), n)
		return nil
	})
	return out, err
}

// Delete refuses built-in personas and the owner's last persona.
func (s *Service) Delete(ctx context.Context, ownerID string, personaKey string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPersona(tx, ownerID, personaKey)
		if err != nil {
			return err
		}
		if persona.Flag(p.DefaultYN).Yes() {
			return invalid("default persona cannot be deleted")
		}
		var n int64
		if err := tx.Model(&PersonaRow{}).Where("owner_id = ?", p.OwnerID).Count(&n).Error; err != nil {
			return err
		}
		if n <= 1 {
			return invalid("last persona cannot be deleted")
		}
		if err := tx.Where("persona_key = ?", personaKey).Delete(&DressRow{}).Error; err != nil {
			return err
		}
		return tx.Where("persona_key = ?", personaKey).Delete(&PersonaRow{}).Error
	})
}

func (s *Service) ToggleFavorite(ctx context.Context, ownerID string, personaKey string) (persona.Flag, error) {
	var flag persona.Flag
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPersona(tx, ownerID, personaKey)
		if err != nil {
			return err
		}
		flag = persona.FlagOf(!persona.Flag(p.FavoriteYN).Yes())
		return tx.Model(&PersonaRow{}).Where("persona_key = ?", personaKey).Update("favorite_yn", string(flag)).Error
	})
	return flag, err
}

func (s *Service) Equip(ctx context.Context, personaKey string, req jobclient.EquipRequest) (persona.Persona, error) {
	var out persona.Persona
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPersona(tx, req.OwnerID, personaKey)
		if err != nil {
			return err
		}
		var d DressRow
		if err := tx.Where("memory_key = ? AND persona_key = ?", req.MemoryKey, personaKey).First(&d).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("dress")
			}
			return err
		}
		now := s.now()
		if now.Before(d.ReadyAt) {
			return processing("dress is still being generated")
		}
		p.HistoryKey = d.Key
		p.ImageURL = d.MediaURL
		p.VideoURL = d.VideoURL
		p.VideoJobKey = ""
		p.VideoReadyAt = nil
		if err := tx.Model(&PersonaRow{}).Where("persona_key = ?", personaKey).Updates(map[string]any{
			"history_key":    p.HistoryKey,
			"image_url":      p.ImageURL,
			"video_url":      p.VideoURL,
			"video_job_key":  "",
			"video_ready_at": nil,
		}).Error; err != nil {
			return err
		}
		n, err := s.dressCount(tx, personaKey)
		if err != nil {
			return err
		}
		out = p.toPersona(now, n)
		return nil
	})
	return out, err
}

// Asset renders the placeholder preview for a persona or dress key.
func (s *Service) Asset(ctx context.Context, key string) ([]byte, error) {
	db := s.db.WithContext(ctx)
	now := s.now()
	var p PersonaRow
	err := db.Where("persona_key = ?", key).First(&p).Error
	if err == nil {
		return renderPlaceholder(p.Key, p.Name, now.Before(p.ReadyAt))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	var d DressRow
	err = db.Where("memory_key = ?", key).First(&d).Error
	if err == nil {
		return renderPlaceholder(d.Key, d.PromptText, now.Before(d.ReadyAt))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return nil, notFound("asset")
}
