package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/skylark/aviary/cmd/aviary/container"
	"github.com/skylark/aviary/cmd/aviary/handlers"
	"github.com/skylark/aviary/cmd/aviary/middleware"
)

// Register wires all application routes. Every route except /health sits
// behind session authentication.
func Register(e *echo.Echo, c *container.Container) {
	log := c.Components.Logger

	search := handlers.NewSearchHandler(c.QueryService, c.Detector, log)
	tags := handlers.NewTagsHandler(c.TagService, log)
	files := handlers.NewFilesHandler(c.IngestService, c.DeletionService, log)

	api := e.Group("/api/v1")
	api.Use(middleware.RequireSession(c.AuthService))
	{
		api.GET("/search", search.BySpecies)          // GET /api/v1/search?species=
		api.POST("/query-by-count", search.ByCount)   // POST /api/v1/query-by-count
		api.POST("/search-by-file", search.ByFile)    // POST /api/v1/search-by-file
		api.POST("/tags/manage", tags.Manage)         // POST /api/v1/tags/manage
		api.POST("/files/delete", files.Delete)       // POST /api/v1/files/delete
		api.POST("/files/upload", files.Upload)       // POST /api/v1/files/upload
	}
}
