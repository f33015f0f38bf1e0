package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/skylark/aviary/cmd/aviary/middleware"
	"github.com/skylark/aviary/cmd/aviary/service"
	"github.com/skylark/aviary/common/logger"
)

// FilesHandler serves upload and deletion requests
type FilesHandler struct {
	ingest   *service.IngestService
	deletion *service.DeletionService
	log      *logger.Logger
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(ingest *service.IngestService, deletion *service.DeletionService, log *logger.Logger) *FilesHandler {
	return &FilesHandler{
		ingest:   ingest,
		deletion: deletion,
		log:      log,
	}
}

// Upload ingests a new media file
// POST /api/v1/files/upload
func (h *FilesHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Multipart form data with a 'file' part is required.",
		})
	}

	content, err := readFileHeader(fh)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Failed to read uploaded file.",
		})
	}

	uploader := middleware.GetUserEmail(c)

	result, err := h.ingest.Ingest(c.Request().Context(), uploader, fh.Filename, content)
	if err != nil {
		h.log.Error("ingestion failed", "filename", fh.Filename, "uploader", uploader, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "An internal error occurred during processing.",
		})
	}

	return c.JSON(http.StatusOK, result)
}

// deleteRequest carries the batch of record URLs to remove.
type deleteRequest struct {
	URLs []string `json:"urls"`
}

// Delete cascades the removal of a batch of records
// POST /api/v1/files/delete
func (h *FilesHandler) Delete(c echo.Context) error {
	var req deleteRequest
	if err := c.Bind(&req); err != nil || len(req.URLs) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "'urls' must be a non-empty list.",
		})
	}

	h.log.Info("deletion request", "user", middleware.GetUserEmail(c), "urls", len(req.URLs))

	result := h.deletion.DeleteAll(c.Request().Context(), req.URLs)

	return c.JSON(http.StatusOK, newBatchResponse("Deletion", result))
}
