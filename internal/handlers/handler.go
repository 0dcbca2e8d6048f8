package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"ups_trap_gateway/internal/logger"
	"ups_trap_gateway/internal/service"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: logger.OrNop(log)}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	router.GET("/ws", h.authMiddleware, h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.authMiddleware)
	{
		api.GET("/status", h.getStatus)
		api.GET("/alarms", h.getAlarms)
		api.POST("/alarms/reset", h.resetAlarms)
		// Body example: {"source":"192.168.111.137","code":"1.3.6.1.4.1.37662.1.2.2.1.2.2","payload":{}}
		api.POST("/traps", h.submitTrap)

		h.registerAudibleRoutes(api)
		h.registerJournalRoutes(api)
	}
}

func (h *Handler) registerAudibleRoutes(api *gin.RouterGroup) {
	audible := api.Group("/audible")
	{
		audible.GET("", h.getAudible)
		audible.POST("/mute", h.setMute)
	}
}

func (h *Handler) registerJournalRoutes(api *gin.RouterGroup) {
	api.GET("/events", h.getEvents)
	api.GET("/events/export", h.exportEvents)
	api.GET("/notifications", h.getNotifications)
}
