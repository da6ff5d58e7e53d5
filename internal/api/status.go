package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"feetrack/internal/fees"
)

// FeeService is the fee-status surface the status handlers need.
type FeeService interface {
	ManageableOnDate(ctx context.Context, date time.Time) (fees.Classification, error)
	PreviousDayStatus(ctx context.Context, day int, clicked time.Time) (fees.Classification, error)
	SetStatus(ctx context.Context, date time.Time, name string, cash, online, suspend bool) error
	Collection(ctx context.Context, date time.Time) (fees.CollectionSummary, error)
}

// StatusHandler serves the collection and payment-status endpoints.
type StatusHandler struct {
	svc FeeService
	log *logrus.Logger
	now func() time.Time
}

// NewStatusHandler creates a handler. now defaults to UTC wall time.
func NewStatusHandler(svc FeeService, log *logrus.Logger) *StatusHandler {
	if log == nil {
		log = logrus.New()
	}
	return &StatusHandler{svc: svc, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// CollectionToday handles GET /api/collection/today.
func (h *StatusHandler) CollectionToday(c *gin.Context) {
	summary, err := h.svc.Collection(c.Request.Context(), h.now())
	if err != nil {
		h.log.WithError(err).Error("today's collection lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch today's collection data", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// CollectionOn handles GET /api/collection/:date.
func (h *StatusHandler) CollectionOn(c *gin.Context) {
	date, err := ParseDate(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format. Use YYYY-MM-DD."})
		return
	}
	summary, err := h.svc.Collection(c.Request.Context(), date)
	if err != nil {
		h.log.WithError(err).Error("collection lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch collection data"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ManageableOnDate handles GET /api/students/manageable-on-date/:date.
func (h *StatusHandler) ManageableOnDate(c *gin.Context) {
	raw := c.Param("date")
	date, err := ParseDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format. Use YYYY-MM-DD."})
		return
	}
	result, err := h.svc.ManageableOnDate(c.Request.Context(), date)
	if err != nil {
		h.log.WithError(err).WithField("date", raw).Error("manageable-on-date failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   fmt.Sprintf("Failed to fetch student status for %s.", raw),
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// PreviousDayStatus handles GET /api/students/admitted/day/:day?date=.
//
// Deprecated: superseded by ManageableOnDate; kept for older clients.
func (h *StatusHandler) PreviousDayStatus(c *gin.Context) {
	h.log.Warn("deprecated endpoint /api/students/admitted/day/:day called; use /api/students/manageable-on-date/:date")
	day, err := strconv.Atoi(c.Param("day"))
	clicked, dateErr := ParseDate(c.Query("date"))
	if err != nil || day < 1 || day > 31 || dateErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid day of the month or missing/invalid query parameter: date (YYYY-MM-DD)."})
		return
	}
	result, err := h.svc.PreviousDayStatus(c.Request.Context(), day, clicked)
	if err != nil {
		h.log.WithError(err).Error("previous-day status failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch student status based on previous day."})
		return
	}
	c.JSON(http.StatusOK, result)
}

// SetStatus handles PUT /api/student-payment-status/:date/:studentName.
func (h *StatusHandler) SetStatus(c *gin.Context) {
	date, err := ParseDate(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format. Use YYYY-MM-DD."})
		return
	}

	var body struct {
		Cash    *bool `json:"cash"`
		Online  *bool `json:"online"`
		Suspend *bool `json:"suspend"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Cash == nil || body.Online == nil || body.Suspend == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must include cash, online, and suspend as boolean values."})
		return
	}

	name := strings.TrimSpace(c.Param("studentName"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or missing student name."})
		return
	}

	if err := h.svc.SetStatus(c.Request.Context(), date, name, *body.Cash, *body.Online, *body.Suspend); err != nil {
		h.log.WithError(err).WithField("name", name).Error("status upsert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update or insert student payment status.", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Payment status processed for %s on %s.", name, date.Format("2006-01-02"))})
}
