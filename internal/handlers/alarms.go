package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ups_trap_gateway/internal/models"
	"ups_trap_gateway/internal/service"
)

const (
	statusOK = "ok"

	errGetStatus   = "failed to load status"
	errGetAlarms   = "failed to load alarms"
	errReset       = "failed to reset alarms"
	errQueueFull   = "ingest queue full, retry later"
	errIngestDown  = "ingest stopped"
	errAudioFailed = "audible output unavailable"
)

// logAndJSONError logs err under logKey and writes userMsg with httpCode.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...any) {
	if err != nil {
		fields := append([]any{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// SubmitTrapRequest injects a notification as if it had arrived over SNMP.
type SubmitTrapRequest struct {
	// Source address the notification is attributed to
	Source string `json:"source" binding:"required" example:"192.168.111.137"`
	// Trap code in any accepted firmware variant
	Code    string            `json:"code" binding:"required" example:"1.3.6.1.4.1.37662.1.2.2.1.2.2"`
	Payload map[string]string `json:"payload,omitempty"`
}

// ResetAlarmsRequest limits a reset to one source; empty resets every source.
type ResetAlarmsRequest struct {
	Source string `json:"source" example:"192.168.111.137"`
}

// MuteRequest sets the audible mute switch.
type MuteRequest struct {
	Muted *bool `json:"muted" binding:"required" example:"true"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Gateway status
// @Description  Active alarms, indicator channel modes, mute switch and ingest queue depth.
// @Tags         alarms
// @Produce      json
// @Success      200  {object}  models.GatewayStatus
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	st, err := h.services.Status(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetStatus, "status_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Active alarms
// @Tags         alarms
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, alarms"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/alarms [get]
// @Security     BearerAuth
func (h *Handler) getAlarms(c *gin.Context) {
	alarms, err := h.services.ActiveAlarms(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetAlarms, "alarms_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(alarms), "alarms": alarms})
}

// @Summary      Reset active alarms
// @Description  Clears active alarms without a resumption trap and turns off indicator channels they held. The body is optional.
// @Tags         alarms
// @Accept       json
// @Produce      json
// @Param        body  body      ResetAlarmsRequest  false  "Source filter"
// @Success      200   {object}  map[string]interface{}  "count, cleared"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/alarms/reset [post]
// @Security     BearerAuth
func (h *Handler) resetAlarms(c *gin.Context) {
	var req ResetAlarmsRequest
	if c.Request.ContentLength != 0 {
		if ok := h.bindJSONOrBadRequest(c, &req); !ok {
			return
		}
	}
	cleared, err := h.services.ResetAlarms(c.Request.Context(), req.Source)
	if err != nil {
		if errors.Is(err, service.ErrResetUnavailable) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errReset, "alarm_reset_failed", err)
		return
	}
	h.log.Infow("alarms_reset", "source", req.Source, "cleared", len(cleared), "user_id", c.GetInt("userId"))
	c.JSON(http.StatusOK, gin.H{"count": len(cleared), "cleared": cleared})
}

// @Summary      Inject a trap
// @Description  Queues a notification through the same pipeline as received SNMP traps.
// @Tags         alarms
// @Accept       json
// @Produce      json
// @Param        body  body      SubmitTrapRequest  true  "Notification"
// @Success      202   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/traps [post]
// @Security     BearerAuth
func (h *Handler) submitTrap(c *gin.Context) {
	var req SubmitTrapRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	raw := models.RawNotification{
		Source:     strings.TrimSpace(req.Source),
		Code:       strings.TrimSpace(req.Code),
		Payload:    req.Payload,
		ReceivedAt: time.Now(),
	}
	switch err := h.services.Submit(raw); {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	case errors.Is(err, service.ErrQueueFull):
		h.logAndJSONError(c, http.StatusServiceUnavailable, errQueueFull, "trap_inject_rejected", err, "code", raw.Code)
	default:
		h.logAndJSONError(c, http.StatusServiceUnavailable, errIngestDown, "trap_inject_failed", err, "code", raw.Code)
	}
}

// @Summary      Audible mute state
// @Tags         audible
// @Produce      json
// @Success      200  {object}  map[string]bool
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/audible [get]
// @Security     BearerAuth
func (h *Handler) getAudible(c *gin.Context) {
	muted, err := h.services.Muted()
	if err != nil {
		h.audioError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": muted})
}

// @Summary      Mute or unmute the audible output
// @Tags         audible
// @Accept       json
// @Produce      json
// @Param        body  body      MuteRequest  true  "Mute switch"
// @Success      200   {object}  map[string]bool
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/audible/mute [post]
// @Security     BearerAuth
func (h *Handler) setMute(c *gin.Context) {
	var req MuteRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if err := h.services.SetMuted(*req.Muted); err != nil {
		h.audioError(c, err)
		return
	}
	h.log.Infow("audible_mute_set", "muted", *req.Muted, "user_id", c.GetInt("userId"))
	c.JSON(http.StatusOK, gin.H{"muted": *req.Muted})
}

func (h *Handler) audioError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrAudioDisabled) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	h.logAndJSONError(c, http.StatusInternalServerError, errAudioFailed, "audible_failed", err)
}
