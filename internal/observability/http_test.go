package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesIzumiCollectors(t *testing.T) {
	app := fiber.New()
	app.Get("/metrics", MetricsHandler())
	// A second handler must reuse the registered collectors.
	app.Get("/metrics/again", MetricsHandler())

	ProgressConflicts().Inc()
	LoginLimiterOutcomes().WithLabelValues("block").Inc()

	for _, path := range []string{"/metrics", "/metrics/again"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Contains(t, string(body), "izumi_progress_conflicts_total")
		require.Contains(t, string(body), `izumi_login_limiter_outcomes_total{outcome="block"}`)
	}
}
