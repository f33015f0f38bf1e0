package handlers

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/skylark/aviary/cmd/aviary/service"
	"github.com/skylark/aviary/common/detector"
	"github.com/skylark/aviary/common/logger"
	"github.com/skylark/aviary/common/models"
)

// maxUploadBytes bounds multipart file reads.
const maxUploadBytes = 32 << 20

// SearchHandler serves the three query modes
type SearchHandler struct {
	query  *service.QueryService
	detect detector.Detector
	log    *logger.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(query *service.QueryService, detect detector.Detector, log *logger.Logger) *SearchHandler {
	return &SearchHandler{
		query:  query,
		detect: detect,
		log:    log,
	}
}

// linksResponse is the shared query response shape.
type linksResponse struct {
	Links []string `json:"links"`
}

func newLinksResponse(links []string) linksResponse {
	if links == nil {
		links = []string{}
	}
	return linksResponse{Links: links}
}

// BySpecies finds records tagged with one species
// GET /api/v1/search?species=
func (h *SearchHandler) BySpecies(c echo.Context) error {
	species := c.QueryParam("species")
	if species == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Query parameter 'species' is required.",
		})
	}

	links, err := h.query.FindBySpecies(c.Request().Context(), species)
	if err != nil {
		h.log.Error("species search failed", "species", species, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "An internal error occurred.",
		})
	}

	return c.JSON(http.StatusOK, newLinksResponse(links))
}

// ByCount finds records meeting every minimum count
// POST /api/v1/query-by-count
func (h *SearchHandler) ByCount(c echo.Context) error {
	var minimums models.TagCounts
	if err := c.Bind(&minimums); err != nil || len(minimums) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Query tags must be a non-empty JSON object.",
		})
	}

	links, err := h.query.FindByMinCounts(c.Request().Context(), minimums)
	if err != nil {
		h.log.Error("count search failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Failed to query database.",
		})
	}

	return c.JSON(http.StatusOK, newLinksResponse(links))
}

// ByFile runs the detector on an uploaded probe image and finds records
// sharing any detected tag
// POST /api/v1/search-by-file
func (h *SearchHandler) ByFile(c echo.Context) error {
	content, err := readMultipartFile(c, "file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Multipart form data with a 'file' part is required.",
		})
	}

	ctx := c.Request().Context()

	probe, err := h.detect.Detect(ctx, content)
	if err != nil {
		h.log.Error("probe detection failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "An internal error occurred during processing.",
		})
	}

	// Nothing detected is an empty result, not an error.
	if len(probe) == 0 {
		return c.JSON(http.StatusOK, newLinksResponse(nil))
	}

	links, err := h.query.FindByOverlap(ctx, probe)
	if err != nil {
		h.log.Error("overlap search failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "An internal error occurred during processing.",
		})
	}

	return c.JSON(http.StatusOK, newLinksResponse(links))
}

// readMultipartFile extracts one uploaded file's bytes from the request.
func readMultipartFile(c echo.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	return readFileHeader(fh)
}

// readFileHeader reads a multipart file's bytes, bounded by maxUploadBytes.
func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(io.LimitReader(f, maxUploadBytes))
}
