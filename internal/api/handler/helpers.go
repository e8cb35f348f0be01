package handler

import (
	"strconv"

	"github.com/dmarxie/smart-parking/internal/api/middleware"
	"github.com/dmarxie/smart-parking/internal/domain"
	"github.com/dmarxie/smart-parking/internal/lifecycle"

	"github.com/gin-gonic/gin"
)

// viewerFrom rebuilds the evaluator's viewer from the identity the auth
// middleware stored on the context.
func viewerFrom(c *gin.Context) lifecycle.Viewer {
	viewer := lifecycle.Viewer{}
	if id, ok := c.Get(middleware.UserIDKey); ok {
		if userID, ok := id.(int); ok {
			viewer.UserID = userID
		}
	}
	if role, ok := c.Get(middleware.UserRoleKey); ok {
		if r, ok := role.(string); ok {
			viewer.Role = domain.Role(r)
		}
	}
	return viewer
}

func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return domain.ClampPage(limit, offset)
}
