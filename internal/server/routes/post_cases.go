package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/casegraph/internal/server/middleware"
	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
	"github.com/OFFIS-RIT/casegraph/pkg/pipeline"
)

// SubmitCaseHandler runs a single JSON case record through the pipeline.
func SubmitCaseHandler(c echo.Context) error {
	type submitCaseResponse struct {
		Message string `json:"message"`
		CaseID  string `json:"caseId,omitempty"`
	}

	data := new(common.CaseRecord)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, submitCaseResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	out, err := app.Ingest.SubmitCase(c.Request().Context(), *data)
	if err != nil {
		if errors.Is(err, pipeline.ErrMissingField) {
			return c.JSON(http.StatusBadRequest, submitCaseResponse{
				Message: "Error processing case: " + err.Error(),
				CaseID:  data.CaseID,
			})
		}
		logger.Error("Failed to submit case", "caseId", data.CaseID, "err", err)
		return c.JSON(http.StatusServiceUnavailable, submitCaseResponse{
			Message: "Error processing case: " + err.Error(),
			CaseID:  data.CaseID,
		})
	}

	return c.JSON(http.StatusOK, submitCaseResponse{
		Message: "Case submitted successfully",
		CaseID:  out.CaseID,
	})
}
