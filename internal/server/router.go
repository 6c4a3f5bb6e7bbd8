package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lanternroom/lantern-backend/internal/handlers"
)

type RouterConfig struct {
	ConversationHandler *handlers.ConversationHandler
	ResourceHandler     *handlers.ResourceHandler
	UnitHandler         *handlers.UnitHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-User-ID"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/conversations", cfg.ConversationHandler.CreateConversation)
		api.GET("/conversations/:id", cfg.ConversationHandler.GetConversation)
		api.POST("/conversations/:id/messages", cfg.ConversationHandler.SendMessage)
		api.POST("/conversations/:id/resources", cfg.ConversationHandler.AttachResources)
		api.POST("/conversations/:id/accept-brief", cfg.ConversationHandler.AcceptBrief)
		api.POST("/conversations/:id/create-unit", cfg.ConversationHandler.CreateUnit)

		api.POST("/resources", cfg.ResourceHandler.CreateResource)

		api.GET("/units/:id", cfg.UnitHandler.GetUnit)
	}

	return router
}
