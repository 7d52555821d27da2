package api

import (
	"github.com/feliks/curio/internal/api/handler"
	"github.com/feliks/curio/internal/api/middleware"
	"github.com/feliks/curio/internal/service"
	"github.com/gin-gonic/gin"
)

// RouterConfig carries router-level settings.
type RouterConfig struct {
	Mode string
	CORS middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes.
func SetupRouter(
	contentService *service.ContentService,
	searchService *service.SearchService,
	chatService *service.ChatService,
	indexer *service.Indexer,
	cfg RouterConfig,
) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler()
	contentHandler := handler.NewContentHandler(contentService)
	searchHandler := handler.NewSearchHandler(searchService)
	chatHandler := handler.NewChatHandler(chatService)
	adminHandler := handler.NewAdminHandler(indexer, nil)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Identity())
	{
		// Content
		v1.POST("/content", contentHandler.Create)
		v1.GET("/content", contentHandler.List)
		v1.GET("/content/:id", contentHandler.Get)
		v1.PATCH("/content/:id", contentHandler.Update)
		v1.DELETE("/content/:id", contentHandler.Delete)
		v1.POST("/content/:id/reprocess", contentHandler.Reprocess)
		v1.GET("/content/:id/snapshot", contentHandler.Snapshot)

		// Ingestion queue
		v1.GET("/queue/status", contentHandler.QueueStatus)

		// Search
		v1.POST("/search", searchHandler.Search)
		v1.GET("/search", searchHandler.SearchGet)

		// Chat
		v1.POST("/chat", chatHandler.Chat)

		// Admin
		v1.POST("/admin/reindex", adminHandler.TriggerReindex)
		v1.GET("/admin/reindex/status", adminHandler.GetReindexStatus)
	}

	return r
}
