package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/casegraph/internal/storage"
	"github.com/OFFIS-RIT/casegraph/pkg/ingest"
)

// App holds the shared services handlers work with. Archive is nil when
// uploads are not archived.
type App struct {
	Ingest  *ingest.Service
	Archive *storage.Archive
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
