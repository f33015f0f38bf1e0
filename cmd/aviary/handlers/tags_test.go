package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/skylark/aviary/cmd/aviary/service"
	"github.com/skylark/aviary/common/kv"
	"github.com/skylark/aviary/common/models"
	"github.com/skylark/aviary/common/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTagsFixture(t *testing.T) (*TagsHandler, *repository.MediaRepository) {
	t.Helper()
	store := kv.NewMemory()
	media := repository.NewMediaRepository(store)
	tags := service.NewTagService(media, testLogger())
	return NewTagsHandler(tags, testLogger()), media
}

func postJSON(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tags/manage", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestManageRejectsInvalidRequests(t *testing.T) {
	h, _ := newTagsFixture(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty urls", `{"url": [], "operation": 1, "tags": ["crow,1"]}`},
		{"bad operation", `{"url": ["https://a.b/c.jpg"], "operation": 7, "tags": ["crow,1"]}`},
		{"empty tags", `{"url": ["https://a.b/c.jpg"], "operation": 1, "tags": []}`},
		{"malformed pair", `{"url": ["https://a.b/c.jpg"], "operation": 1, "tags": ["crow"]}`},
		{"non-numeric count", `{"url": ["https://a.b/c.jpg"], "operation": 1, "tags": ["crow,two"]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := postJSON(t, tc.body)
			require.NoError(t, h.Manage(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestManageAppliesDeltas(t *testing.T) {
	h, media := newTagsFixture(t)

	url := "https://aviary.blob.host/uploads/a.jpg"
	require.NoError(t, media.Put(context.Background(), &models.MediaRecord{
		FileURL: url,
		Tags:    models.NewTagSet(models.TagCounts{"crow": 1}),
	}))

	c, rec := postJSON(t, `{"url": ["`+url+`"], "operation": 1, "tags": ["crow,2", "sparrow,1"]}`)
	require.NoError(t, h.Manage(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "1 items processed successfully")
	assert.Empty(t, resp.Errors)

	updated, _, err := media.Get(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Tags.Count("crow"))
	assert.Equal(t, 1, updated.Tags.Count("sparrow"))
}

func TestManageReportsPartialFailure(t *testing.T) {
	store := kv.NewMemory()
	media := repository.NewMediaRepository(store)
	tags := service.NewTagService(media, testLogger())
	h := NewTagsHandler(tags, testLogger())

	good := "https://aviary.blob.host/uploads/good.jpg"
	require.NoError(t, media.Put(context.Background(), &models.MediaRecord{
		FileURL: good,
		Tags:    models.NewTagSet(nil),
	}))
	// A row that fails to decode makes its mutation error.
	require.NoError(t, store.Put(context.Background(), kv.TableMedia, "https://a.b/bad.jpg", []byte(`{"tags": 42}`)))

	c, rec := postJSON(t, `{"url": ["https://a.b/bad.jpg", "`+good+`"], "operation": 1, "tags": ["crow,1"]}`)
	require.NoError(t, h.Manage(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "1 items processed successfully")
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "https://a.b/bad.jpg")
}
