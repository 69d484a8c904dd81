// Package router assembles the gin engine: services, handlers,
// middleware and routes.
package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/arrayops/librarian/config"
	"github.com/arrayops/librarian/internal/handler"
	"github.com/arrayops/librarian/internal/middleware"
	"github.com/arrayops/librarian/internal/service/catalog"
	"github.com/arrayops/librarian/internal/service/event"
	"github.com/arrayops/librarian/internal/service/instance"
	storeservice "github.com/arrayops/librarian/internal/service/store"
)

// Router wires the HTTP surface.
type Router struct {
	engine *gin.Engine
	db     *gorm.DB
}

// Services groups the service layer so main can share it with the
// background scanner.
type Services struct {
	Stores    storeservice.StoreService
	Catalog   catalog.CatalogService
	Events    event.EventService
	Instances instance.InstanceService
}

// NewServices constructs the service layer.
func NewServices(db *gorm.DB) *Services {
	stores := storeservice.NewStoreService(db)
	return &Services{
		Stores:    stores,
		Catalog:   catalog.NewCatalogService(db, stores),
		Events:    event.NewEventService(db),
		Instances: instance.NewInstanceService(db),
	}
}

// NewRouter creates the engine with all middleware and routes attached.
func NewRouter(loggerMiddleware *middleware.LoggerMiddleware, db *gorm.DB, services *Services, cfg *config.Config) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	rpcHandler := handler.NewRPCHandler(services.Events, services.Instances)
	fileHandler := handler.NewFileHandler(services.Catalog, services.Events, services.Instances, services.Stores, cfg.Librarian.Name)
	instanceHandler := handler.NewInstanceHandler(services.Instances)
	storeHandler := handler.NewStoreHandler(services.Stores)

	engine.Use(gin.Recovery())
	engine.Use(loggerMiddleware.RequestID())
	engine.Use(loggerMiddleware.RequestLogger())

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Service is running",
		})
	})

	// Flat RPC endpoints kept compatible with existing client scripts.
	rpc := engine.Group("/api")
	{
		rpc.POST("/create_file_event", rpcHandler.CreateFileEvent)
		rpc.POST("/locate_file_instance", rpcHandler.LocateFileInstance)
	}

	api := engine.Group("/api/v1")
	{
		api.GET("/info", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"service": "Librarian",
				"source":  cfg.Librarian.Name,
				"status":  "running",
			})
		})

		api.GET("/db/status", func(c *gin.Context) {
			sqlDB, err := db.DB()
			if err != nil {
				c.JSON(500, gin.H{
					"error": "Database connection error",
				})
				return
			}

			if err := sqlDB.Ping(); err != nil {
				c.JSON(500, gin.H{
					"error": "Database ping failed",
				})
				return
			}

			c.JSON(200, gin.H{
				"status": "Database connection OK",
			})
		})

		files := api.Group("/files")
		{
			files.POST("", fileHandler.RegisterFile)
			files.GET("", fileHandler.ListFiles)
			files.POST("/resolve", fileHandler.ResolveFile)
			files.POST("/import", fileHandler.ImportFileRecord)
			files.GET("/:name", fileHandler.GetFile)
			files.GET("/:name/events", fileHandler.GetFileEvents)
			files.GET("/:name/instances", fileHandler.GetFileInstances)
			files.GET("/:name/record", fileHandler.GetFileRecord)
		}

		instances := api.Group("/instances")
		{
			instances.POST("", instanceHandler.CreateInstance)
			instances.DELETE("", instanceHandler.DeleteInstance)
		}

		stores := api.Group("/stores")
		{
			stores.POST("", storeHandler.CreateStore)
			stores.GET("", storeHandler.ListStores)
			stores.GET("/:name", storeHandler.GetStore)
			stores.PUT("/:name/availability", storeHandler.SetAvailability)
			stores.POST("/:name/test", storeHandler.TestStore)
		}
	}

	return &Router{
		engine: engine,
		db:     db,
	}
}

// GetEngine exposes the gin engine for the HTTP server.
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
