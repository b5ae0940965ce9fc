package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	mid "github.com/OFFIS-RIT/casegraph/internal/server/middleware"
	"github.com/OFFIS-RIT/casegraph/internal/storage"
	"github.com/OFFIS-RIT/casegraph/pkg/ingest"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// NewServerParams configures the HTTP surface. Archive may be nil.
type NewServerParams struct {
	Ingest    *ingest.Service
	Archive   *storage.Archive
	BodyLimit string
}

// New builds the echo instance with middleware and routes registered.
func New(params NewServerParams) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	bodyLimit := params.BodyLimit
	if bodyLimit == "" {
		bodyLimit = "50M"
	}

	e.Use(mid.AppContextMiddleware(&mid.App{
		Ingest:  params.Ingest,
		Archive: params.Archive,
	}))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(bodyLimit))

	RegisterRoutes(e)
	return e
}

// Run serves e on port until ctx is done, then shuts it down gracefully.
func Run(ctx context.Context, e *echo.Echo, port string) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
		return err
	}
	return nil
}
