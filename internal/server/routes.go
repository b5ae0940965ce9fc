package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OFFIS-RIT/casegraph/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	caseRoutes := e.Group("/api/cases")
	caseRoutes.GET("/health", func(c echo.Context) error {
		return c.String(200, "Case Ingestion Service is running")
	})
	caseRoutes.POST("/submit", routes.SubmitCaseHandler)
	caseRoutes.POST("/upload", routes.UploadFileHandler)
	caseRoutes.POST("/bulk-upload", routes.BulkUploadHandler)
}
