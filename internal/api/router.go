package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/conduit/conduit/internal/api/handlers"
	"github.com/conduit/conduit/internal/api/middleware"
)

type Router struct {
	engine          *gin.Engine
	logger          *slog.Logger
	schemaHandler   *handlers.SchemaHandler
	endpointHandler *handlers.EndpointHandler
}

func NewRouter(
	schemaHandler *handlers.SchemaHandler,
	endpointHandler *handlers.EndpointHandler,
	logger *slog.Logger,
) *Router {
	return &Router{
		logger:          logger,
		schemaHandler:   schemaHandler,
		endpointHandler: endpointHandler,
	}
}

func (r *Router) Setup(mode string) *gin.Engine {
	gin.SetMode(mode)
	r.engine = gin.New()
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestContext())
	r.engine.Use(middleware.RequestLogger(r.logger))
	r.engine.Use(middleware.ErrorHandler(r.logger))

	r.setupRoutes()
	return r.engine
}

func (r *Router) setupRoutes() {
	api := r.engine.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	schemas := api.Group("/schemas")
	{
		schemas.POST("", r.schemaHandler.Create)
		schemas.GET("", r.schemaHandler.List)
		schemas.GET("/:id", r.schemaHandler.Get)
		schemas.GET("/:id/fields", r.schemaHandler.Fields)
		schemas.PUT("/:id", r.schemaHandler.Update)
		schemas.DELETE("/:id", r.schemaHandler.Delete)
	}

	endpoints := api.Group("/custom-endpoints")
	{
		endpoints.POST("", r.endpointHandler.Create)
		endpoints.GET("", r.endpointHandler.List)
		endpoints.POST("/validate", r.endpointHandler.Validate)
		endpoints.GET("/:id", r.endpointHandler.Get)
		endpoints.PUT("/:id", r.endpointHandler.Update)
		endpoints.DELETE("/:id", r.endpointHandler.Delete)
		endpoints.GET("/:id/validate", r.endpointHandler.Revalidate)
		endpoints.GET("/:id/plan", r.endpointHandler.Plan)
	}
}
