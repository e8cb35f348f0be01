package api

import (
	"github.com/dmarxie/smart-parking/internal/api/handler"
	"github.com/dmarxie/smart-parking/internal/api/middleware"
	"github.com/dmarxie/smart-parking/internal/domain"
	"github.com/dmarxie/smart-parking/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRouter(as *service.AuthService, ps *service.ParkingService, rs *service.ReservationService,
	authMw *middleware.AuthMiddleware, wsManager *handler.WebSocketManager) *gin.Engine {
	r := gin.Default()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Real-time slot updates; no auth on the socket itself.
	wsHandler := handler.NewWebSocketHandler(wsManager)
	r.GET("/ws", wsHandler.HandleWebSocket)

	authHandler := handler.NewAuthHandler(as)
	public := r.Group("/api")
	{
		public.POST("/register", authHandler.Register)
		public.POST("/token", authHandler.Login)
		public.POST("/token/refresh", authHandler.Refresh)
	}

	authed := r.Group("/api")
	authed.Use(authMw.Authenticate())
	{
		userH := handler.NewUserHandler(as)
		userRoutes := authed.Group("/users")
		{
			userRoutes.GET("/me", userH.Me)
			userRoutes.PATCH("/me", userH.UpdateMe)
			userRoutes.PUT("/me/change-password", userH.ChangePassword)
			userRoutes.GET("", authMw.AuthorizeRole(domain.RoleAdmin), userH.List)
		}

		locationH := handler.NewLocationHandler(ps)
		locationRoutes := authed.Group("/locations")
		{
			locationRoutes.POST("", authMw.AuthorizeRole(domain.RoleAdmin), locationH.Create)
			locationRoutes.GET("", locationH.List)
			locationRoutes.GET("/:id", locationH.GetByID)
			locationRoutes.PUT("/:id", authMw.AuthorizeRole(domain.RoleAdmin), locationH.Update)
			locationRoutes.DELETE("/:id", authMw.AuthorizeRole(domain.RoleAdmin), locationH.Delete)
		}

		slotH := handler.NewSlotHandler(ps, rs)
		slotRoutes := authed.Group("/slots")
		{
			slotRoutes.POST("", authMw.AuthorizeRole(domain.RoleAdmin), slotH.Create)
			slotRoutes.GET("", slotH.List)
			slotRoutes.GET("/:id", slotH.GetByID)
			slotRoutes.PUT("/:id", authMw.AuthorizeRole(domain.RoleAdmin), slotH.Update)
			slotRoutes.DELETE("/:id", authMw.AuthorizeRole(domain.RoleAdmin), slotH.Delete)
		}

		reservationH := handler.NewReservationHandler(rs)
		reservationRoutes := authed.Group("/reservations")
		{
			reservationRoutes.POST("", reservationH.Create)
			reservationRoutes.GET("", reservationH.List)
			reservationRoutes.GET("/:id", reservationH.GetByID)
			reservationRoutes.PUT("/:id", authMw.AuthorizeRole(domain.RoleAdmin), reservationH.UpdateStatus)
			reservationRoutes.POST("/:id/cancel", reservationH.Cancel)
		}

		dashboardH := handler.NewDashboardHandler(ps)
		authed.GET("/dashboard/stats", authMw.AuthorizeRole(domain.RoleAdmin), dashboardH.Stats)
	}

	return r
}
