package routes

import (
	"github.com/dev7ch/api/internal/handler"
	"github.com/dev7ch/api/internal/middleware"
	"github.com/dev7ch/api/pkg/jwt"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Setup configures all API routes
func Setup(
	router *gin.Engine,
	itemsHandler *handler.ItemsHandler,
	filesHandler *handler.FilesHandler,
	collectionsHandler *handler.CollectionsHandler,
	activityHandler *handler.ActivityHandler,
	systemHandler *handler.SystemHandler,
	jwtManager *jwt.Manager,
) {
	router.Use(cors.Default())
	router.Use(middleware.Metrics())
	router.Use(middleware.Auth(jwtManager))

	// Generic item CRUD
	items := router.Group("/items")
	items.GET("/:collection", itemsHandler.ListItems)
	items.POST("/:collection", itemsHandler.CreateItem)
	items.GET("/:collection/:id", itemsHandler.GetItem)
	items.PATCH("/:collection/:id", itemsHandler.UpdateItem)
	items.DELETE("/:collection/:id", itemsHandler.DeleteItem)
	items.GET("/:collection/:id/revisions", itemsHandler.GetItemHistory)

	// Files and folders
	files := router.Group("/files")
	files.GET("", filesHandler.ListFiles)
	files.POST("", filesHandler.UploadFile)
	files.GET("/folders", filesHandler.ListFolders)
	files.POST("/folders", filesHandler.CreateFolder)
	files.GET("/folders/:id", filesHandler.GetFolder)
	files.PATCH("/folders/:id", filesHandler.UpdateFolder)
	files.DELETE("/folders/:id", filesHandler.DeleteFolder)
	files.GET("/:id", filesHandler.GetFile)
	files.PATCH("/:id", filesHandler.UpdateFile)
	files.DELETE("/:id", filesHandler.DeleteFile)

	// Schema management
	collections := router.Group("/collections")
	collections.GET("", collectionsHandler.ListCollections)
	collections.POST("", collectionsHandler.CreateCollection)
	collections.GET("/:name", collectionsHandler.GetCollection)
	collections.DELETE("/:name", collectionsHandler.DeleteCollection)

	fields := router.Group("/fields")
	fields.GET("/:collection", collectionsHandler.ListFields)
	fields.POST("/:collection", collectionsHandler.CreateField)
	fields.PATCH("/:collection/:field", collectionsHandler.UpdateField)
	fields.DELETE("/:collection/:field", collectionsHandler.DeleteField)

	// Activity stream and comments
	activity := router.Group("/activity")
	activity.GET("", activityHandler.ListActivity)
	activity.GET("/stats", activityHandler.ActivityStats)
	activity.GET("/:id", activityHandler.GetActivity)
	activity.POST("/comment", activityHandler.CreateComment)
	activity.PATCH("/comment/:id", activityHandler.UpdateComment)
	activity.DELETE("/comment/:id", activityHandler.DeleteComment)

	// System
	router.POST("/schema/reload", systemHandler.ReloadSchema)
	router.GET("/health", systemHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
