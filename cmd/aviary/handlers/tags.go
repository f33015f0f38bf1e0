package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/skylark/aviary/cmd/aviary/middleware"
	"github.com/skylark/aviary/cmd/aviary/service"
	"github.com/skylark/aviary/common/logger"
	"github.com/skylark/aviary/common/models"
)

// TagsHandler serves tag mutation requests
type TagsHandler struct {
	tags *service.TagService
	log  *logger.Logger
}

// NewTagsHandler creates a new tags handler
func NewTagsHandler(tags *service.TagService, log *logger.Logger) *TagsHandler {
	return &TagsHandler{
		tags: tags,
		log:  log,
	}
}

// manageRequest is the mutation wire format: operation 1 adds, 0 removes,
// and each tag entry is a "species,count" pair.
type manageRequest struct {
	URLs      []string `json:"url"`
	Operation int      `json:"operation"`
	Tags      []string `json:"tags"`
}

// batchResponse is the shared mutation/deletion response shape.
type batchResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func newBatchResponse(verb string, result *service.BatchResult) batchResponse {
	errs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, e.Reason)
	}
	return batchResponse{
		Message: fmt.Sprintf("%s completed. %d items processed successfully.", verb, result.Updated),
		Errors:  errs,
	}
}

// Manage applies tag deltas to a batch of records
// POST /api/v1/tags/manage
func (h *TagsHandler) Manage(c echo.Context) error {
	var req manageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "invalid request body",
		})
	}

	if len(req.URLs) == 0 || (req.Operation != 0 && req.Operation != 1) || len(req.Tags) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Invalid data format in request body.",
		})
	}

	deltas, err := parseTagPairs(req.Tags)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": err.Error(),
		})
	}

	h.log.Info("tag mutation request",
		"user", middleware.GetUserEmail(c),
		"urls", len(req.URLs),
		"operation", req.Operation,
	)

	result := h.tags.ManageTags(c.Request().Context(), req.URLs, service.TagOperation(req.Operation), deltas)

	return c.JSON(http.StatusOK, newBatchResponse("Operation", result))
}

// parseTagPairs decodes "species,count" strings into deltas.
func parseTagPairs(pairs []string) (models.TagCounts, error) {
	deltas := make(models.TagCounts, len(pairs))
	for _, pair := range pairs {
		species, countStr, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("tag %q is not a 'species,count' pair", pair)
		}

		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil {
			return nil, fmt.Errorf("tag %q has a non-numeric count", pair)
		}

		deltas[strings.TrimSpace(species)] = count
	}
	return deltas, nil
}
