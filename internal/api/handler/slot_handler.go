package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmarxie/smart-parking/internal/domain"
	"github.com/dmarxie/smart-parking/internal/lifecycle"
	"github.com/dmarxie/smart-parking/internal/repository"
	"github.com/dmarxie/smart-parking/internal/service"

	"github.com/gin-gonic/gin"
)

type SlotHandler struct {
	parkingService     *service.ParkingService
	reservationService *service.ReservationService
}

func NewSlotHandler(ps *service.ParkingService, rs *service.ReservationService) *SlotHandler {
	return &SlotHandler{parkingService: ps, reservationService: rs}
}

// slotWithEvaluation pairs the raw slot with the evaluator's verdict for
// the requesting viewer.
type slotWithEvaluation struct {
	domain.ParkingSlot
	Evaluation lifecycle.Evaluation `json:"evaluation"`
}

// POST /api/slots (admin)
func (h *SlotHandler) Create(c *gin.Context) {
	var dto domain.ParkingSlotDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slot, err := h.parkingService.CreateSlot(c.Request.Context(), dto)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, slot)
}

// GET /api/slots
func (h *SlotHandler) List(c *gin.Context) {
	var filter domain.SlotFilterDTO
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, offset := pageParams(c)

	page, err := h.parkingService.ListSlots(c.Request.Context(), filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list slots"})
		return
	}
	c.JSON(http.StatusOK, page)
}

// GET /api/slots/:id — the slot plus its evaluated state for this viewer.
func (h *SlotHandler) GetByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot id"})
		return
	}

	slot, err := h.parkingService.GetSlotByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "slot not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load slot"})
		return
	}

	eval, err := h.reservationService.EvaluateSlot(c.Request.Context(), id, viewerFrom(c), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not evaluate slot state"})
		return
	}
	c.JSON(http.StatusOK, slotWithEvaluation{ParkingSlot: *slot, Evaluation: *eval})
}

// PUT /api/slots/:id (admin)
func (h *SlotHandler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot id"})
		return
	}

	var dto domain.ParkingSlotDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slot, err := h.parkingService.UpdateSlot(c.Request.Context(), id, dto)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "slot not found"})
			return
		}
		if errors.Is(err, repository.ErrDuplicateEntry) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update slot"})
		return
	}
	c.JSON(http.StatusOK, slot)
}

// DELETE /api/slots/:id (admin)
func (h *SlotHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot id"})
		return
	}

	if err := h.parkingService.DeleteSlot(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "slot not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
