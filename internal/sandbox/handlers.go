package sandbox

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/companion-client/internal/jobclient"
	"github.com/yungbote/companion-client/internal/platform/apierr"
	"github.com/yungbote/companion-client/internal/platform/logger"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: payload})
}

func respondFailure(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, envelope{Error: &ErrorBody{Code: code, Message: msg}})
}

type Handler struct {
	svc     *Service
	metrics *Metrics
	log     *logger.Logger
}

func NewHandler(svc *Service, metrics *Metrics, log *logger.Logger) *Handler {
	return &Handler{svc: svc, metrics: metrics, log: log.With("handler", "SandboxHandler")}
}

// fail writes err as an envelope, using the status and code it carries.
func (h *Handler) fail(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) && ae.Status != 0 {
		h.metrics.rejected(string(ae.Code))
		msg := "request rejected"
		if ae.Err != nil {
			msg = ae.Err.Error()
		}
		respondFailure(c, ae.Status, string(ae.Code), errors.New(msg))
		return
	}
	h.log.Error("sandbox request failed", "route", c.FullPath(), "error", err)
	h.metrics.rejected("INTERNAL")
	respondFailure(c, http.StatusInternalServerError, "INTERNAL", errors.New("internal error"))
}

// bind decodes the JSON body and enforces the token's owner.
func (h *Handler) bind(c *gin.Context, dst any, ownerOf func() string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, invalid("invalid request body"))
		return false
	}
	return checkOwner(c, ownerOf())
}

// ownerFrom returns the token's owner, or "" when auth is off.
func ownerFrom(c *gin.Context) string {
	v, ok := c.Get(ownerContextKey)
	if !ok {
		return ""
	}
	return v.(string)
}

// POST /v1/personas/jobs
func (h *Handler) SubmitPersonaJob(c *gin.Context) {
	var req jobclient.PersonaJobRequest
	if !h.bind(c, &req, func() string { return req.OwnerID }) {
		return
	}
	receipt, err := h.svc.CreatePersona(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, receipt)
}

// POST /v1/personas/:key/dresses/jobs
func (h *Handler) SubmitDressJob(c *gin.Context) {
	var req jobclient.DressJobRequest
	if !h.bind(c, &req, func() string { return req.OwnerID }) {
		return
	}
	receipt, err := h.svc.CreateDress(c.Request.Context(), c.Param("key"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, receipt)
}

// POST /v1/personas/:key/video/jobs
func (h *Handler) SubmitVideoJob(c *gin.Context) {
	var req jobclient.VideoJobRequest
	if !h.bind(c, &req, func() string { return req.OwnerID }) {
		return
	}
	receipt, err := h.svc.ConvertVideo(c.Request.Context(), c.Param("key"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, receipt)
}

// GET /v1/jobs/:target_key
func (h *Handler) JobStatus(c *gin.Context) {
	status, err := h.svc.JobStatus(c.Request.Context(), ownerFrom(c), c.Param("target_key"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, status)
}

// GET /v1/owners/:owner/personas
func (h *Handler) ListPersonas(c *gin.Context) {
	owner := c.Param("owner")
	if !checkOwner(c, owner) {
		return
	}
	list, err := h.svc.ListPersonas(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, jobclient.PersonaList{Personas: list})
}

// GET /v1/owners/:owner/wallet
func (h *Handler) Wallet(c *gin.Context) {
	owner := c.Param("owner")
	if !checkOwner(c, owner) {
		return
	}
	points, err := h.svc.Balance(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, gin.H{"owner_id": owner, "points": points})
}

// GET /v1/personas/:key/dresses
func (h *Handler) ListDresses(c *gin.Context) {
	list, err := h.svc.ListDresses(c.Request.Context(), ownerFrom(c), c.Param("key"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, jobclient.DressList{Dresses: list})
}

// PATCH /v1/personas/:key
func (h *Handler) UpdateBasic(c *gin.Context) {
	var req jobclient.BasicUpdate
	if !h.bind(c, &req, func() string { return req.OwnerID }) {
		return
	}
	p, err := h.svc.UpdateBasic(c.Request.Context(), c.Param("key"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, jobclient.PersonaResult{Persona: &p})
}

// DELETE /v1/personas/:key?owner_id=
func (h *Handler) DeletePersona(c *gin.Context) {
	owner := strings.TrimSpace(c.Query("owner_id"))
	if owner == "" {
		h.fail(c, invalid("owner_id required"))
		return
	}
	if !checkOwner(c, owner) {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), owner, c.Param("key")); err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, gin.H{"persona_key": c.Param("key"), "deleted": true})
}

// POST /v1/personas/:key/favorite
func (h *Handler) ToggleFavorite(c *gin.Context) {
	var req jobclient.FavoriteRequest
	if !h.bind(c, &req, func() string { return req.OwnerID }) {
		return
	}
	flag, err := h.svc.ToggleFavorite(c.Request.Context(), req.OwnerID, c.Param("key"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, jobclient.FavoriteResult{FavoriteYN: flag})
}

// POST /v1/personas/:key/equip
func (h *Handler) EquipDress(c *gin.Context) {
	var req jobclient.EquipRequest
	if !h.bind(c, &req, func() string { return req.OwnerID }) {
		return
	}
	p, err := h.svc.Equip(c.Request.Context(), c.Param("key"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respondOK(c, jobclient.PersonaResult{Persona: &p})
}

// GET /assets/:file
func (h *Handler) Asset(c *gin.Context) {
	file := c.Param("file")
	key, ok := strings.CutSuffix(file, ".png")
	if !ok || key == "" {
		c.Status(http.StatusNotFound)
		return
	}
	png, err := h.svc.Asset(c.Request.Context(), key)
	if err != nil {
		if apierr.Is(err, apierr.NotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		h.log.Warn("asset render failed", "key", key, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// GET /healthcheck
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
