package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/companion-client/internal/domain/persona"
	"github.com/yungbote/companion-client/internal/jobclient"
	"github.com/yungbote/companion-client/internal/notify"
	"github.com/yungbote/companion-client/internal/platform/apierr"
	"github.com/yungbote/companion-client/internal/store"
)

type PersonaInput struct {
	Name        string
	Description string
	Gender      string
	Photo       []byte
}

// BasicPatch carries the settings fields to change; nil means unchanged.
type BasicPatch struct {
	Name     *string
	Category *string
}

// CreatePersona submits a persona generation job. The server assigns the
// key, deducts the cost and produces the placeholder, so success is
// followed by a full refresh rather than a local insert.
func (o *Orchestrator) CreatePersona(ctx context.Context, in PersonaInput) error {
	const op = "create_persona"
	switch {
	case strings.TrimSpace(in.Name) == "":
		return o.reject(op, "", apierr.Validation("Please enter a name."))
	case strings.TrimSpace(in.Description) == "":
		return o.reject(op, "", apierr.Validation("Please enter a description."))
	case len(in.Photo) == 0:
		return o.reject(op, "", apierr.Validation("Please choose a photo."))
	}

	o.indicator.Show(op)
	receipt, err := o.backend.SubmitPersonaJob(ctx, o.ownerID, jobclient.PersonaJobPayload{
		Name:        in.Name,
		Description: in.Description,
		Gender:      in.Gender,
		Photo:       in.Photo,
	})
	o.indicator.Hide(op)
	if err != nil {
		return o.fail(ctx, op, "", err)
	}
	o.logSubmitted(op, "", receipt.Job(persona.TargetPersona))

	snap, err := o.fetch(ctx)
	o.mu.Lock()
	if err == nil {
		o.applyLocked(snap)
	} else {
		o.log.Warn("refresh after persona submission failed, inserting placeholder", "target_key", receipt.TargetKey, "error", err)
		o.store.InsertPersona(placeholderPersona(strings.TrimSpace(in.Name), receipt.Job(persona.TargetPersona)), store.Append)
		o.sel.OnListChange(o.store)
	}
	if p, ok := o.store.Persona(receipt.TargetKey); ok {
		o.sel.SelectEntity(o.store.PersonaIndex(p.PersonaKey), p)
	}
	o.mu.Unlock()

	o.emit(notify.Notification{
		Kind:       notify.KindPersonaCreated,
		Severity:   notify.SeveritySuccess,
		PersonaKey: receipt.TargetKey,
		Message:    estimateMessage("Your companion is being created.", receipt.EstimatedSeconds),
	})
	return nil
}

func (o *Orchestrator) logSubmitted(op string, personaKey string, job persona.GenerationJob) {
	o.log.Info("generation job submitted",
		"op", op,
		"persona_key", personaKey,
		"target_type", job.TargetType,
		"target_key", job.TargetKey,
		"cost", job.Cost,
		"estimate_seconds", job.EstimateTime,
		"result_ref", job.ResultRef,
	)
}

func placeholderPersona(name string, job persona.GenerationJob) persona.Persona {
	return persona.Persona{
		PersonaKey:            job.TargetKey,
		PersonaName:           name,
		DoneYN:                persona.FlagNo,
		DefaultYN:             persona.FlagNo,
		FavoriteYN:            persona.FlagNo,
		SelectedDressImageURL: job.ResultRef,
	}
}

func estimateMessage(prefix string, seconds int) string {
	if seconds <= 0 {
		return prefix
	}
	if seconds < 60 {
		return fmt.Sprintf("%s About %d seconds remaining.", prefix, seconds)
	}
	return fmt.Sprintf("%s About %d minutes remaining.", prefix, (seconds+59)/60)
}

// CreateDress submits a dress job for a persona. The persona's dress badge
// is bumped before the call so it updates immediately; a full refresh
// then replaces the bump with server truth. A failed submission reverts
// the bump.
func (o *Orchestrator) CreateDress(ctx context.Context, personaKey string, description string) error {
	const op = "create_dress"
	if strings.TrimSpace(description) == "" {
		return o.reject(op, personaKey, apierr.Validation("Please describe the outfit."))
	}

	o.mu.Lock()
	_, rej := o.guardLocked(op, personaKey)
	if rej != nil {
		o.mu.Unlock()
		return o.reject(op, personaKey, rej)
	}
	o.inflight[personaKey] = op
	o.store.BumpPending(personaKey)
	o.mu.Unlock()

	o.indicator.Show(op)
	receipt, err := o.backend.SubmitDressJob(ctx, o.ownerID, personaKey, description)
	o.indicator.Hide(op)
	if err != nil {
		o.mu.Lock()
		o.store.ClearPending(personaKey)
		o.endLocked(personaKey)
		o.mu.Unlock()
		return o.fail(ctx, op, personaKey, err)
	}
	o.logSubmitted(op, personaKey, receipt.Job(persona.TargetDress))

	snap, ferr := o.fetch(ctx, personaKey)
	o.mu.Lock()
	o.store.ClearPending(personaKey)
	o.endLocked(personaKey)
	if ferr == nil {
		o.applyLocked(snap)
	} else {
		o.log.Warn("refresh after dress submission failed", "persona_key", personaKey, "error", ferr)
		if o.store.DressesLoaded(personaKey) {
			o.store.ReplaceDresses(personaKey, append(o.store.Dresses(personaKey), placeholderDress(personaKey, description, receipt.Job(persona.TargetDress))))
		} else {
			o.store.UpsertPersona(personaKey, func(p *persona.Persona) { p.DressCount++ })
		}
	}
	o.mu.Unlock()

	o.emit(notify.Notification{
		Kind:       notify.KindDressCreated,
		Severity:   notify.SeveritySuccess,
		PersonaKey: personaKey,
		Message:    estimateMessage("A new outfit is being designed.", receipt.EstimatedSeconds),
	})
	return nil
}

func placeholderDress(personaKey string, description string, job persona.GenerationJob) persona.Dress {
	return persona.Dress{
		MemoryKey:    job.TargetKey,
		PersonaKey:   personaKey,
		MediaURL:     job.ResultRef,
		PromptText:   strings.TrimSpace(description),
		DoneYN:       persona.FlagNo,
		EstimateTime: job.EstimateTime,
	}
}

// RenameOrUpdateBasic changes name and/or category. The mutation is simple
// and deterministic, so the server's acknowledgement is applied as a local
// patch without a refetch.
func (o *Orchestrator) RenameOrUpdateBasic(ctx context.Context, personaKey string, patch BasicPatch) error {
	const op = "update_basic"
	if patch.Name == nil && patch.Category == nil {
		return o.reject(op, personaKey, apierr.Validation("Nothing to update."))
	}
	var name *string
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return o.reject(op, personaKey, apierr.Validation("Please enter a name."))
		}
		name = &trimmed
	}

	if _, rej := o.begin(op, personaKey); rej != nil {
		return o.reject(op, personaKey, rej)
	}
	_, err := o.backend.RenamePersona(ctx, o.ownerID, personaKey, name, patch.Category)
	if err != nil {
		o.end(personaKey)
		return o.fail(ctx, op, personaKey, err)
	}

	o.mu.Lock()
	o.endLocked(personaKey)
	o.store.UpsertPersona(personaKey, func(p *persona.Persona) {
		if name != nil {
			p.PersonaName = *name
		}
		if patch.Category != nil {
			p.CategoryType = *patch.Category
		}
	})
	o.mu.Unlock()

	o.emit(notify.Notification{
		Kind:       notify.KindPersonaUpdated,
		Severity:   notify.SeveritySuccess,
		PersonaKey: personaKey,
		Message:    "Saved.",
	})
	return nil
}

// DeletePersona removes a persona. Whether it may be deleted (last one,
// built-in default) is decided by the server; the client trusts the answer.
func (o *Orchestrator) DeletePersona(ctx context.Context, personaKey string) error {
	const op = "delete_persona"
	if _, rej := o.begin(op, personaKey); rej != nil {
		return o.reject(op, personaKey, rej)
	}
	if err := o.backend.DeletePersona(ctx, o.ownerID, personaKey); err != nil {
		o.end(personaKey)
		return o.fail(ctx, op, personaKey, err)
	}

	o.mu.Lock()
	o.endLocked(personaKey)
	removedAt := o.store.PersonaIndex(personaKey)
	active := o.sel.Effective(o.store)
	wasActive := active != nil && active.PersonaKey == personaKey
	o.store.RemovePersona(personaKey)
	o.agg.Forget(personaKey)
	delete(o.videoJobs, personaKey)
	switch {
	case wasActive:
		o.sel.Reset()
	case removedAt >= 0 && removedAt < o.sel.Index():
		o.sel.Select(o.sel.Index() - 1)
	}
	o.sel.OnListChange(o.store)
	o.mu.Unlock()

	o.emit(notify.Notification{
		Kind:       notify.KindPersonaDeleted,
		Severity:   notify.SeveritySuccess,
		PersonaKey: personaKey,
		Message:    "Deleted.",
	})
	return nil
}

// ToggleFavorite applies the flag value the server returns rather than the
// local negation, so racing toggles converge on server truth.
func (o *Orchestrator) ToggleFavorite(ctx context.Context, personaKey string) (persona.Flag, error) {
	const op = "toggle_favorite"
	if _, rej := o.begin(op, personaKey); rej != nil {
		return "", o.reject(op, personaKey, rej)
	}
	flag, err := o.backend.ToggleFavorite(ctx, o.ownerID, personaKey)
	if err != nil {
		o.end(personaKey)
		return "", o.fail(ctx, op, personaKey, err)
	}

	o.mu.Lock()
	o.endLocked(personaKey)
	o.store.UpsertPersona(personaKey, func(p *persona.Persona) { p.FavoriteYN = flag })
	o.mu.Unlock()

	msg := "Removed from favorites."
	if flag.Yes() {
		msg = "Added to favorites."
	}
	o.emit(notify.Notification{
		Kind:       notify.KindFavoriteChanged,
		Severity:   notify.SeveritySuccess,
		PersonaKey: personaKey,
		Message:    msg,
	})
	return flag, nil
}

// EquipDress is confirm-then-commit: the Decider is asked first and
// nothing is sent unless the user agrees. On success the persona's
// appearance is patched locally and only that persona's dresses reload.
func (o *Orchestrator) EquipDress(ctx context.Context, personaKey string, memoryKey string) error {
	const op = "equip_dress"

	o.mu.Lock()
	p, rej := o.guardLocked(op, personaKey)
	if rej != nil {
		o.mu.Unlock()
		return o.reject(op, personaKey, rej)
	}
	dress, ok := o.store.Dress(personaKey, memoryKey)
	o.mu.Unlock()
	switch {
	case !ok:
		return o.reject(op, personaKey, apierr.Validation("That outfit does not belong to this companion."))
	case !dress.Ready():
		return o.reject(op, personaKey, apierr.Processing("outfit is still being generated"))
	case p.HistoryKey == memoryKey:
		o.emit(notify.Notification{
			Kind:       notify.KindDressEquipped,
			Severity:   notify.SeverityInfo,
			PersonaKey: personaKey,
			Message:    "Already wearing this outfit.",
		})
		return nil
	}

	if !o.decider.Confirm(ctx, Decision{
		Kind:       DecisionEquip,
		PersonaKey: personaKey,
		Dress:      &dress,
		Message:    "Change into this outfit?",
	}) {
		o.log.Debug("equip declined", "persona_key", personaKey, "memory_key", memoryKey)
		return nil
	}

	if _, rej := o.begin(op, personaKey); rej != nil {
		return o.reject(op, personaKey, rej)
	}
	server, err := o.backend.EquipDress(ctx, o.ownerID, personaKey, memoryKey)
	if err != nil {
		o.end(personaKey)
		return o.fail(ctx, op, personaKey, err)
	}

	o.mu.Lock()
	o.store.UpsertPersona(personaKey, func(p *persona.Persona) { applyAppearance(p, dress, server) })
	o.mu.Unlock()

	dresses, derr := o.backend.ListDresses(ctx, personaKey)
	o.mu.Lock()
	o.endLocked(personaKey)
	if derr == nil {
		o.store.ReplaceDresses(personaKey, dresses)
	} else {
		o.log.Warn("dress reload after equip failed", "persona_key", personaKey, "error", derr)
	}
	o.mu.Unlock()

	o.emit(notify.Notification{
		Kind:       notify.KindDressEquipped,
		Severity:   notify.SeveritySuccess,
		PersonaKey: personaKey,
		Message:    "Outfit changed.",
	})
	return nil
}

// applyAppearance copies the equipped dress onto the persona. Server values
// win when present; the history key always names the equipped dress.
func applyAppearance(p *persona.Persona, d persona.Dress, server *persona.Persona) {
	p.HistoryKey = d.MemoryKey
	p.SelectedDressImageURL = d.MediaURL
	p.SelectedDressVideoURL = d.VideoURL
	p.VideoConvertDone = nil
	if d.VideoURL != "" {
		done := persona.FlagYes
		p.VideoConvertDone = &done
	}
	if server == nil {
		return
	}
	if server.SelectedDressImageURL != "" {
		p.SelectedDressImageURL = server.SelectedDressImageURL
	}
	if server.SelectedDressVideoURL != "" || server.VideoConvertDone != nil {
		p.SelectedDressVideoURL = server.SelectedDressVideoURL
		p.VideoConvertDone = nil
		if server.VideoConvertDone != nil {
			v := *server.VideoConvertDone
			p.VideoConvertDone = &v
		}
	}
}

// ConvertToVideo requests a video of the equipped look. A persona that
// already has a video, finished or pending, is rejected before any charge.
func (o *Orchestrator) ConvertToVideo(ctx context.Context, personaKey string) error {
	const op = "convert_video"

	o.mu.Lock()
	p, rej := o.guardLocked(op, personaKey)
	if rej == nil {
		switch {
		case p.HasVideo() && p.VideoPending():
			rej = apierr.Processing("video is still being generated")
		case p.HasVideo():
			rej = apierr.Validation("This look already has a video.")
		case p.SelectedDressImageURL == "":
			rej = apierr.Validation("Choose an outfit first.")
		}
	}
	if rej != nil {
		o.mu.Unlock()
		return o.reject(op, personaKey, rej)
	}
	o.inflight[personaKey] = op
	o.mu.Unlock()

	o.indicator.Show(op)
	receipt, err := o.backend.SubmitVideoConversionJob(ctx, personaKey, o.ownerID, p.SelectedDressImageURL, p.HistoryKey)
	o.indicator.Hide(op)
	if err != nil {
		o.end(personaKey)
		return o.fail(ctx, op, personaKey, err)
	}

	o.logSubmitted(op, personaKey, receipt.Job())

	o.mu.Lock()
	o.endLocked(personaKey)
	pending := persona.FlagNo
	o.store.UpsertPersona(personaKey, func(p *persona.Persona) {
		p.SelectedDressVideoURL = receipt.PendingVideoURL
		p.VideoConvertDone = &pending
	})
	if receipt.JobKey != "" {
		o.videoJobs[personaKey] = receipt.JobKey
	}
	o.mu.Unlock()

	o.emit(notify.Notification{
		Kind:       notify.KindVideoRequested,
		Severity:   notify.SeveritySuccess,
		PersonaKey: personaKey,
		Message:    "Your video is being made.",
	})
	return nil
}

type StatusResult struct {
	TargetType persona.TargetType
	TargetKey  string
	Complete   bool
	// Nothing is true when the persona had no pending job to check.
	Nothing bool
}

// pendingTargetLocked picks what a status check should ask about: the
// persona itself, then its first generating dress, then a pending video.
func (o *Orchestrator) pendingTargetLocked(p persona.Persona) (persona.TargetType, string, bool) {
	if !p.Ready() {
		return persona.TargetPersona, p.PersonaKey, true
	}
	for _, d := range o.store.Dresses(p.PersonaKey) {
		if !d.Ready() {
			return persona.TargetDress, d.MemoryKey, true
		}
	}
	if p.VideoPending() {
		if key, ok := o.videoJobs[p.PersonaKey]; ok {
			return persona.TargetVideo, key, true
		}
		return persona.TargetVideo, p.PersonaKey, true
	}
	return "", "", false
}

// CheckStatus is the user-triggered completion check. It is the only path
// besides a full refresh by which a generating entity becomes current;
// there is no background polling.
func (o *Orchestrator) CheckStatus(ctx context.Context, personaKey string) (StatusResult, error) {
	const op = "check_status"

	o.mu.Lock()
	p, ok := o.store.Persona(personaKey)
	needDresses := ok && p.Ready() && !o.store.DressesLoaded(personaKey)
	o.mu.Unlock()
	if !ok {
		return StatusResult{}, o.reject(op, personaKey, apierr.New(0, apierr.NotFound, fmt.Errorf("persona not found")))
	}

	// A generating dress is only visible in the dress list, so an unloaded
	// list is fetched before choosing the target.
	if needDresses {
		dresses, err := o.backend.ListDresses(ctx, personaKey)
		if err != nil {
			return StatusResult{}, o.fail(ctx, op, personaKey, err)
		}
		o.mu.Lock()
		o.store.ReplaceDresses(personaKey, dresses)
		o.mu.Unlock()
	}

	o.mu.Lock()
	p, ok = o.store.Persona(personaKey)
	var (
		targetType persona.TargetType
		targetKey  string
		pending    bool
	)
	if ok {
		targetType, targetKey, pending = o.pendingTargetLocked(p)
	}
	o.mu.Unlock()
	if !ok {
		return StatusResult{}, o.reject(op, personaKey, apierr.New(0, apierr.NotFound, fmt.Errorf("persona not found")))
	}
	if !pending {
		o.emit(notify.Notification{
			Kind:       notify.KindJobComplete,
			Severity:   notify.SeverityInfo,
			PersonaKey: personaKey,
			Message:    "Everything is up to date.",
		})
		return StatusResult{Nothing: true}, nil
	}

	status, err := o.backend.QueryJobStatus(ctx, targetKey)
	if err != nil {
		return StatusResult{}, o.fail(ctx, op, personaKey, err)
	}
	res := StatusResult{TargetType: targetType, TargetKey: targetKey, Complete: status.Complete}
	if !status.Complete {
		o.emit(notify.Notification{
			Kind:       notify.KindJobPending,
			Severity:   notify.SeverityWarning,
			Code:       apierr.StillProcessing,
			PersonaKey: personaKey,
			Message:    "Still processing. Please check again later.",
		})
		return res, nil
	}

	if err := o.refresh(ctx, personaKey); err != nil {
		return res, o.fail(ctx, op, personaKey, err)
	}
	o.mu.Lock()
	if targetType == persona.TargetVideo {
		delete(o.videoJobs, personaKey)
	}
	o.mu.Unlock()
	o.emit(notify.Notification{
		Kind:       notify.KindJobComplete,
		Severity:   notify.SeveritySuccess,
		PersonaKey: personaKey,
		Message:    "It's ready!",
		Celebrate:  true,
	})
	return res, nil
}

// LoadDresses is the dress management entry: it loads the persona's dress
// list and is refused while the persona is still generating.
func (o *Orchestrator) LoadDresses(ctx context.Context, personaKey string) ([]persona.Dress, error) {
	const op = "load_dresses"
	o.mu.Lock()
	p, ok := o.store.Persona(personaKey)
	o.mu.Unlock()
	if !ok {
		return nil, o.reject(op, personaKey, apierr.New(0, apierr.NotFound, fmt.Errorf("persona not found")))
	}
	if !p.Ready() {
		return nil, o.reject(op, personaKey, apierr.Processing("persona is still being generated"))
	}
	dresses, err := o.backend.ListDresses(ctx, personaKey)
	if err != nil {
		return nil, o.fail(ctx, op, personaKey, err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.store.ReplaceDresses(personaKey, dresses)
	return o.store.Dresses(personaKey), nil
}
