package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Call session endpoints (dialogue engine surface).
	StartSessionHandler gin.HandlerFunc
	IntentHandler       gin.HandlerFunc
	UtteranceHandler    gin.HandlerFunc
	EndSessionHandler   gin.HandlerFunc

	// Speech endpoints.
	STTHandler gin.HandlerFunc

	// Admin practitioner endpoints.
	CreatePractitionerHandler gin.HandlerFunc
	UpdatePractitionerHandler gin.HandlerFunc
	DeletePractitionerHandler gin.HandlerFunc
	GetPractitionerHandler    gin.HandlerFunc
	ListPractitionersHandler  gin.HandlerFunc
	RefreshDirectoryHandler   gin.HandlerFunc

	// Admin appointment endpoints.
	ListAppointmentsHandler  gin.HandlerFunc
	CancelAppointmentHandler gin.HandlerFunc
}
