package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ups_trap_gateway/internal/models"
	"ups_trap_gateway/internal/service"
)

const (
	errFromInvalid  = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid    = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errLimitInvalid = "invalid 'limit'; use a positive integer"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

// parseLogFilter reads from/to/severity/role/source/limit. It writes a 400
// and returns false when the query is malformed.
func parseLogFilter(c *gin.Context) (service.LogFilter, bool) {
	f := service.LogFilter{
		Severity: c.Query("severity"),
		Role:     c.Query("role"),
		Source:   c.Query("source"),
	}
	var err error
	if qs := c.Query("from"); qs != "" {
		if f.From, err = parseQueryTime(qs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errFromInvalid})
			return f, false
		}
	}
	if qs := c.Query("to"); qs != "" {
		if f.To, err = parseQueryTime(qs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errToInvalid})
			return f, false
		}
		// date-only "to" covers the whole day
		if isDateOnly(qs) {
			f.To = f.To.Add(24*time.Hour - time.Nanosecond).UTC()
		}
	}
	if qs := c.Query("limit"); qs != "" {
		n, err := strconv.Atoi(qs)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errLimitInvalid})
			return f, false
		}
		f.Limit = n
	}
	return f, true
}

// isFilterError reports errors caused by the caller's query rather than storage.
func isFilterError(err error) bool {
	return errors.Is(err, models.ErrUnknownSeverity) ||
		errors.Is(err, models.ErrUnknownRole) ||
		errors.Is(err, service.ErrInvalidTimeRange)
}

// @Summary      List journaled events
// @Description  Newest first. Dates accept RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'; a date-only 'to' is end of day inclusive.
// @Tags         journal
// @Produce      json
// @Param        from      query  string  false  "Start of range"  example(2025-08-01)
// @Param        to        query  string  false  "End of range"    example(2025-08-31)
// @Param        severity  query  string  false  "Severity"        Enums(critical,warning,info)
// @Param        role      query  string  false  "Role"            Enums(trigger,resumption,state)
// @Param        source    query  string  false  "Source address"
// @Param        limit     query  int     false  "Maximum rows (default 500)"
// @Success      200  {object}  map[string]interface{}  "count, events"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/events [get]
// @Security     BearerAuth
func (h *Handler) getEvents(c *gin.Context) {
	f, ok := parseLogFilter(c)
	if !ok {
		return
	}
	events, err := h.services.EventLog.List(c.Request.Context(), f)
	if err != nil {
		if isFilterError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load events", "events_list_failed", err,
			"from", f.From, "to", f.To, "severity", f.Severity)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

// @Summary      Export journaled events
// @Description  Same filters as /api/v1/events, returned as an xlsx workbook.
// @Tags         journal
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        from      query  string  false  "Start of range"
// @Param        to        query  string  false  "End of range"
// @Param        severity  query  string  false  "Severity"  Enums(critical,warning,info)
// @Param        role      query  string  false  "Role"      Enums(trigger,resumption,state)
// @Param        source    query  string  false  "Source address"
// @Param        limit     query  int     false  "Maximum rows"
// @Success      200  {file}    file
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/events/export [get]
// @Security     BearerAuth
func (h *Handler) exportEvents(c *gin.Context) {
	f, ok := parseLogFilter(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	n, err := h.services.Export(c.Request.Context(), f, &buf)
	if err != nil {
		if isFilterError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to export events", "events_export_failed", err)
		return
	}
	name := fmt.Sprintf("ups-events-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("X-Row-Count", strconv.Itoa(n))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// @Summary      Recent notification deliveries
// @Tags         journal
// @Produce      json
// @Param        limit  query  int  false  "Maximum rows (default 500)"
// @Success      200  {object}  map[string]interface{}  "count, notifications"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/notifications [get]
// @Security     BearerAuth
func (h *Handler) getNotifications(c *gin.Context) {
	limit := 0
	if qs := c.Query("limit"); qs != "" {
		n, err := strconv.Atoi(qs)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errLimitInvalid})
			return
		}
		limit = n
	}
	recs, err := h.services.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load notifications", "notifications_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(recs), "notifications": recs})
}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid time format %q, expected one of: "+
			"RFC3339 (e.g. 2025-08-27T15:04:05Z), "+
			"'YYYY-MM-DD HH:MM:SS', "+
			"'YYYY-MM-DD'",
		s,
	)
}
