package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dmarxie/smart-parking/internal/domain"
	"github.com/dmarxie/smart-parking/internal/lifecycle"
	"github.com/dmarxie/smart-parking/internal/repository"
	"github.com/dmarxie/smart-parking/internal/service"

	"github.com/gin-gonic/gin"
)

type ReservationHandler struct {
	reservationService *service.ReservationService
}

func NewReservationHandler(rs *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: rs}
}

// POST /api/reservations
func (h *ReservationHandler) Create(c *gin.Context) {
	var dto domain.CreateReservationDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewer := viewerFrom(c)
	view, err := h.reservationService.Create(c.Request.Context(), viewer.UserID, dto)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotConflict):
			// Visible and retryable: pick another slot or interval.
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "slot not found"})
		case errors.Is(err, service.ErrInvalidInterval),
			errors.Is(err, service.ErrStartInPast),
			errors.Is(err, service.ErrSlotUnavailable):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create reservation"})
		}
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GET /api/reservations — own reservations, or all of them for admins.
func (h *ReservationHandler) List(c *gin.Context) {
	var filter domain.ReservationFilterDTO
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, offset := pageParams(c)

	page, err := h.reservationService.List(c.Request.Context(), viewerFrom(c), filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list reservations"})
		return
	}
	c.JSON(http.StatusOK, page)
}

// GET /api/reservations/:id
func (h *ReservationHandler) GetByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reservation id"})
		return
	}

	view, err := h.reservationService.Get(c.Request.Context(), viewerFrom(c), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
		case errors.Is(err, service.ErrNotAllowed):
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load reservation"})
		}
		return
	}
	c.JSON(http.StatusOK, view)
}

// PUT /api/reservations/:id (admin) — confirm or decline.
func (h *ReservationHandler) UpdateStatus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reservation id"})
		return
	}

	var dto domain.UpdateReservationStatusDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.reservationService.SetStatus(c.Request.Context(), viewerFrom(c), id, domain.ReservationStatus(dto.Status))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
		case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, lifecycle.ErrUnknownStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update reservation"})
		}
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/reservations/:id/cancel
func (h *ReservationHandler) Cancel(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reservation id"})
		return
	}

	view, err := h.reservationService.Cancel(c.Request.Context(), viewerFrom(c), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
		case errors.Is(err, service.ErrNotAllowed):
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		case errors.Is(err, service.ErrCancellationNotAllowed):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not cancel reservation"})
		}
		return
	}
	c.JSON(http.StatusOK, view)
}
