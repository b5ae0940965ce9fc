package routes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/casegraph/internal/server/middleware"
	"github.com/OFFIS-RIT/casegraph/pkg/loader"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
)

var errEmptyFile = errors.New("file is empty")

// readUpload reads an uploaded file into memory and, if an archive is
// configured, stores a copy of it. The archive key becomes the file id. A
// failed archive upload is logged and ignored.
func readUpload(ctx context.Context, app *middleware.App, fh *multipart.FileHeader, hint string) (loader.SourceFile, error) {
	if fh.Size == 0 {
		return loader.SourceFile{}, errEmptyFile
	}
	src, err := fh.Open()
	if err != nil {
		return loader.SourceFile{}, err
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return loader.SourceFile{}, err
	}
	if len(content) == 0 {
		return loader.SourceFile{}, errEmptyFile
	}

	id := fh.Filename
	if app.Archive != nil {
		key, err := app.Archive.PutFile(ctx, fh.Filename, bytes.NewReader(content))
		if err != nil {
			logger.Warn("Failed to archive upload", "file", fh.Filename, "err", err)
		} else {
			id = key
		}
	}

	return loader.NewSourceFile(loader.NewSourceFileParams{
		ID:         id,
		FilePath:   fh.Filename,
		FormatHint: hint,
		Loader:     loader.NewBytesLoader(content),
	}), nil
}

// UploadFileHandler ingests a single multipart file.
func UploadFileHandler(c echo.Context) error {
	type uploadFileBody struct {
		FileType string `form:"fileType" validate:"max=16"`
	}

	type uploadFileResponse struct {
		Message        string `json:"message"`
		FileName       string `json:"fileName,omitempty"`
		CasesProcessed int    `json:"casesProcessed"`
		CasesAccepted  int    `json:"casesAccepted"`
		CasesFailed    int    `json:"casesFailed"`
		CasesSkipped   int    `json:"casesSkipped"`
	}

	data := new(uploadFileBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, uploadFileResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, uploadFileResponse{
			Message: "Invalid request body",
		})
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, uploadFileResponse{
			Message: "Missing file",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	file, err := readUpload(ctx, app, fh, data.FileType)
	if err != nil {
		message := "Invalid request body"
		if errors.Is(err, errEmptyFile) {
			message = "File is empty"
		}
		return c.JSON(http.StatusBadRequest, uploadFileResponse{
			Message:  message,
			FileName: fh.Filename,
		})
	}

	res, err := app.Ingest.ProcessFile(ctx, file)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, loader.ErrUnsupportedFormat) {
			status = http.StatusBadRequest
		}
		return c.JSON(status, uploadFileResponse{
			Message:  fmt.Sprintf("Error processing file: %v", err),
			FileName: fh.Filename,
		})
	}

	return c.JSON(http.StatusOK, uploadFileResponse{
		Message:        "File processed successfully",
		FileName:       res.FileName,
		CasesProcessed: res.Processed,
		CasesAccepted:  res.Accepted,
		CasesFailed:    res.Failed,
		CasesSkipped:   res.Skipped,
	})
}

// BulkUploadHandler ingests all files of the multipart field "files". Empty
// files are ignored, failing files are counted.
func BulkUploadHandler(c echo.Context) error {
	type fileError struct {
		FileName string `json:"fileName"`
		Error    string `json:"error"`
	}

	type bulkUploadResponse struct {
		Message             string      `json:"message"`
		FilesProcessed      int         `json:"filesProcessed"`
		FilesFailed         int         `json:"filesFailed"`
		TotalCasesProcessed int         `json:"totalCasesProcessed"`
		TotalCasesAccepted  int         `json:"totalCasesAccepted"`
		Errors              []fileError `json:"errors,omitempty"`
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, bulkUploadResponse{
			Message: "Invalid request body",
		})
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		return c.JSON(http.StatusBadRequest, bulkUploadResponse{
			Message: "No files uploaded",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	files := make([]loader.SourceFile, 0, len(uploads))
	for _, fh := range uploads {
		file, err := readUpload(ctx, app, fh, "")
		if err != nil {
			if !errors.Is(err, errEmptyFile) {
				logger.Warn("Failed to read upload", "file", fh.Filename, "err", err)
			}
			continue
		}
		files = append(files, file)
	}

	res := app.Ingest.ProcessBulk(ctx, files)

	resp := bulkUploadResponse{
		Message:             "Bulk upload completed successfully",
		FilesProcessed:      res.FilesProcessed,
		FilesFailed:         res.FilesFailed,
		TotalCasesProcessed: res.TotalProcessed,
		TotalCasesAccepted:  res.TotalAccepted,
	}
	for i, f := range res.Files {
		if err, ok := res.Errors[i]; ok {
			resp.Errors = append(resp.Errors, fileError{FileName: f.FileName, Error: err.Error()})
		}
	}
	return c.JSON(http.StatusOK, resp)
}
