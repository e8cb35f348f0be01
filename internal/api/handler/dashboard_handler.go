package handler

import (
	"net/http"
	"time"

	"github.com/dmarxie/smart-parking/internal/service"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	parkingService *service.ParkingService
}

func NewDashboardHandler(ps *service.ParkingService) *DashboardHandler {
	return &DashboardHandler{parkingService: ps}
}

// GET /api/dashboard/stats (admin)
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.parkingService.GetDashboardStats(c.Request.Context(), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute dashboard stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
