package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dmarxie/smart-parking/internal/domain"
	"github.com/dmarxie/smart-parking/internal/repository"
	"github.com/dmarxie/smart-parking/internal/service"

	"github.com/gin-gonic/gin"
)

type LocationHandler struct {
	parkingService *service.ParkingService
}

func NewLocationHandler(ps *service.ParkingService) *LocationHandler {
	return &LocationHandler{parkingService: ps}
}

// POST /api/locations (admin)
func (h *LocationHandler) Create(c *gin.Context) {
	var dto domain.ParkingLocationDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	location, err := h.parkingService.CreateLocation(c.Request.Context(), dto)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create location"})
		return
	}
	c.JSON(http.StatusCreated, location)
}

// GET /api/locations
func (h *LocationHandler) List(c *gin.Context) {
	var filter domain.LocationFilterDTO
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, offset := pageParams(c)

	page, err := h.parkingService.ListLocations(c.Request.Context(), filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list locations"})
		return
	}
	c.JSON(http.StatusOK, page)
}

// GET /api/locations/:id
func (h *LocationHandler) GetByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid location id"})
		return
	}

	location, err := h.parkingService.GetLocationByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "location not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load location"})
		return
	}
	c.JSON(http.StatusOK, location)
}

// PUT /api/locations/:id (admin)
func (h *LocationHandler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid location id"})
		return
	}

	var dto domain.ParkingLocationDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	location, err := h.parkingService.UpdateLocation(c.Request.Context(), id, dto)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "location not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update location"})
		return
	}
	c.JSON(http.StatusOK, location)
}

// DELETE /api/locations/:id (admin)
func (h *LocationHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid location id"})
		return
	}

	if err := h.parkingService.DeleteLocation(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "location not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
