package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/api/listings/:id", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/listings/:id", "204"))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/listings/123", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/listings/:id", "204"))
	assert.Equal(t, before+1, after)
}

func TestUploadCounters(t *testing.T) {
	before := testutil.ToFloat64(orphaned.WithLabelValues("listings-images"))
	RecordOrphaned("listings-images", 2)
	RecordOrphaned("listings-images", 0)
	assert.Equal(t, before+2, testutil.ToFloat64(orphaned.WithLabelValues("listings-images")))

	RecordUpload("profile-images", false)
	assert.GreaterOrEqual(t, testutil.ToFloat64(uploads.WithLabelValues("profile-images", "failure")), 1.0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordUpload("listings-images", true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "bazaar_storage_uploads_total"))
}
