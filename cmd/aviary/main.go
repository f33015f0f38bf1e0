package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/skylark/aviary/cmd/aviary/container"
	"github.com/skylark/aviary/cmd/aviary/routes"
	"github.com/skylark/aviary/common/bootstrap"
	"github.com/skylark/aviary/common/server"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (store, logger, queue, cache, telemetry)
	components, err := bootstrap.Setup(ctx, "aviary")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap aviary: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (all services created once)
	serviceContainer, err := container.NewContainer(ctx, components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, components)
	routes.Register(e, serviceContainer)

	// Serve with graceful shutdown
	srv := server.New("aviary", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(echomw.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(503, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "aviary",
		})
	})
}
