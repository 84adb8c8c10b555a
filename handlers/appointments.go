package handlers

import (
	"errors"
	"net/http"
	"time"

	"clinicvoice/services/calendar"
	"clinicvoice/services/directory"
	"clinicvoice/services/scheduling"
	"clinicvoice/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AppointmentHandler serves the admin view onto booked appointments.
type AppointmentHandler struct {
	Directory    directory.Service
	Calendar     calendar.API
	Reservations scheduling.ReservationManager
	Location     *time.Location
}

// NewAppointmentHandler builds the appointment admin endpoints.
func NewAppointmentHandler(dir directory.Service, cal calendar.API, res scheduling.ReservationManager, loc *time.Location) *AppointmentHandler {
	return &AppointmentHandler{Directory: dir, Calendar: cal, Reservations: res, Location: loc}
}

// ListAppointments returns a practitioner's events for one day
// (?date=YYYY-MM-DD, default today).
func (h *AppointmentHandler) ListAppointments(c *gin.Context) {
	p, err := h.Directory.GetByID(c.Request.Context(), c.Param("practitionerID"))
	if errors.Is(err, directory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "practitioner not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "directory unavailable"})
		return
	}

	day := time.Now().In(h.Location)
	if d := c.Query("date"); d != "" {
		day, err = time.ParseInLocation("2006-01-02", d, h.Location)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
			return
		}
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, h.Location)

	events, err := h.Calendar.ListEvents(c.Request.Context(), p.CalendarRef, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		utils.GetLogger().Error("failed to list appointments",
			zap.String("practitionerID", p.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to list appointments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"practitioner": p.Name, "date": dayStart.Format("2006-01-02"), "events": events})
}

// CancelAppointment deletes one booked event.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	p, err := h.Directory.GetByID(c.Request.Context(), c.Param("practitionerID"))
	if errors.Is(err, directory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "practitioner not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "directory unavailable"})
		return
	}

	eventID := c.Param("eventID")
	if err := h.Reservations.Cancel(c.Request.Context(), p.CalendarRef, eventID); err != nil {
		if errors.Is(err, scheduling.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
			return
		}
		utils.GetLogger().Error("failed to cancel appointment",
			zap.String("eventID", eventID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to cancel appointment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
