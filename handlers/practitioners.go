package handlers

import (
	"errors"
	"net/http"

	"clinicvoice/database/repository/practitioner"
	"clinicvoice/models"
	"clinicvoice/services/directory"
	"clinicvoice/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PractitionerHandler serves the admin roster endpoints. Mutations go through
// the repository and invalidate the directory snapshot via Refresh.
type PractitionerHandler struct {
	Repo      practitionerRepo.PractitionerRepository
	Directory directory.Service
}

// NewPractitionerHandler builds the practitioner admin endpoints.
func NewPractitionerHandler(repo practitionerRepo.PractitionerRepository, dir directory.Service) *PractitionerHandler {
	return &PractitionerHandler{Repo: repo, Directory: dir}
}

// CreatePractitioner registers a new practitioner and its calendar binding.
func (h *PractitionerHandler) CreatePractitioner(c *gin.Context) {
	var input models.Practitioner
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid practitioner payload", "details": err.Error()})
		return
	}
	if input.Name == "" || input.CalendarRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and calendarRef are required"})
		return
	}
	if input.ID == "" {
		input.ID = uuid.NewString()
	}

	if err := h.Repo.Create(&input); err != nil {
		utils.GetLogger().Error("failed to create practitioner", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create practitioner"})
		return
	}
	h.refresh(c)
	c.JSON(http.StatusCreated, input)
}

// UpdatePractitioner modifies an existing practitioner.
func (h *PractitionerHandler) UpdatePractitioner(c *gin.Context) {
	var input models.Practitioner
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid practitioner payload", "details": err.Error()})
		return
	}
	input.ID = c.Param("id")

	existing, err := h.Repo.GetByID(input.ID)
	if err != nil {
		utils.GetLogger().Error("failed to load practitioner",
			zap.String("id", input.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update practitioner"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "practitioner not found"})
		return
	}

	if err := h.Repo.Update(&input); err != nil {
		utils.GetLogger().Error("failed to update practitioner",
			zap.String("id", input.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update practitioner"})
		return
	}
	h.refresh(c)
	c.JSON(http.StatusOK, input)
}

// DeletePractitioner removes a practitioner from the roster.
func (h *PractitionerHandler) DeletePractitioner(c *gin.Context) {
	id := c.Param("id")
	if err := h.Repo.Delete(id); err != nil {
		utils.GetLogger().Error("failed to delete practitioner",
			zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete practitioner"})
		return
	}
	h.refresh(c)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// GetPractitioner fetches one practitioner by id.
func (h *PractitionerHandler) GetPractitioner(c *gin.Context) {
	p, err := h.Directory.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, directory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "practitioner not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "directory unavailable"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// ListPractitioners returns the active roster.
func (h *PractitionerHandler) ListPractitioners(c *gin.Context) {
	all, err := h.Directory.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "directory unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"practitioners": all})
}

// RefreshDirectory reloads the roster snapshot on demand.
func (h *PractitionerHandler) RefreshDirectory(c *gin.Context) {
	if err := h.Directory.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to refresh directory"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

func (h *PractitionerHandler) refresh(c *gin.Context) {
	if err := h.Directory.Refresh(c.Request.Context()); err != nil {
		utils.GetLogger().Warn("directory refresh after mutation failed", zap.Error(err))
	}
}
