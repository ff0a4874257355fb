package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func correlationApp() *fiber.App {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(CorrelationIDFromContext(c.UserContext()) + "|" + GetCorrelationID(c))
	})
	return app
}

func TestCorrelationIDHeaders(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "correlation header", headers: map[string]string{HeaderCorrelationID: "enroll-42"}, want: "enroll-42"},
		{name: "request id fallback", headers: map[string]string{HeaderRequestID: "req-7"}, want: "req-7"},
		{name: "correlation wins", headers: map[string]string{HeaderCorrelationID: "a", HeaderRequestID: "b"}, want: "a"},
		{name: "oversized id replaced", headers: map[string]string{HeaderCorrelationID: strings.Repeat("x", 65)}},
		{name: "spaces replaced", headers: map[string]string{HeaderCorrelationID: "two words"}},
		{name: "generated", headers: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for key, value := range tc.headers {
				req.Header.Set(key, value)
			}

			resp, err := correlationApp().Test(req, -1)
			require.NoError(t, err)

			id := resp.Header.Get(HeaderCorrelationID)
			if tc.want != "" {
				require.Equal(t, tc.want, id)
			} else {
				_, err := uuid.Parse(id)
				require.NoError(t, err)
			}

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Equal(t, id+"|"+id, string(body))
		})
	}
}

func TestContextWithCorrelationIgnoresBlankIDs(t *testing.T) {
	ctx := ContextWithCorrelation(context.Background(), "  ")
	require.Empty(t, CorrelationIDFromContext(ctx))

	ctx = ContextWithCorrelation(context.Background(), " course-9 ")
	require.Equal(t, "course-9", CorrelationIDFromContext(ctx))
	require.Empty(t, GetCorrelationID(nil))
}
