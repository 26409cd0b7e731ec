package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fileshare/internal/apperror"
	"fileshare/internal/model"
	serviceMocks "fileshare/internal/service/mocks"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())

	app.Get("/test", func(c *fiber.Ctx) error {
		rid := c.Locals(RequestIDLocalKey)
		return c.SendString(rid.(string))
	})

	t.Run("should generate new request id if not present", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		ridHeader := resp.Header.Get(RequestIDHeader)
		assert.NotEmpty(t, ridHeader)

		// Check if it's readable in handler (from response body)
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, ridHeader, buf.String())
	})

	t.Run("should preserve existing request id", func(t *testing.T) {
		existingID := "test-id-123"
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, existingID)

		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, existingID, resp.Header.Get(RequestIDHeader))

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, existingID, buf.String())
	})
}

func TestIdentity(t *testing.T) {
	accounts := new(serviceMocks.MockAccountService)
	app := fiber.New()
	app.Use(Identity(accounts, "X-User-ID"))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(AccountFromCtx(c).ID)
	})

	t.Run("resolves the header to an account", func(t *testing.T) {
		accounts.On("Resolve", mock.Anything, "user-1").Return(&model.Account{ID: "user-1"}, nil).Once()

		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("X-User-ID", " user-1 ")
		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, "user-1", buf.String())
	})

	t.Run("stops the chain when resolution fails", func(t *testing.T) {
		accounts.On("Resolve", mock.Anything, "").
			Return(nil, apperror.New(apperror.KindAuthorization, apperror.ReasonUnauthenticated, "authentication required")).Once()

		req := httptest.NewRequest("GET", "/me", nil)
		resp, _ := app.Test(req)

		// Without a custom ErrorHandler fiber renders unknown errors as 500.
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	})

	accounts.AssertExpectations(t)
}

func TestClientKey(t *testing.T) {
	app := fiber.New()
	app.Use(ClientKey("X-Forwarded-For"))
	app.Get("/key", func(c *fiber.Ctx) error {
		return c.SendString(ClientKeyFromCtx(c))
	})

	read := func(req *http.Request) string {
		resp, err := app.Test(req)
		require.NoError(t, err)
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		return buf.String()
	}

	req := httptest.NewRequest("GET", "/key", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", read(req))

	// Falls back to the peer address.
	fallback := read(httptest.NewRequest("GET", "/key", nil))
	assert.NotEmpty(t, fallback)
	assert.NotEqual(t, "203.0.113.7", fallback)
}

func TestClientKey_OutlivesRequest(t *testing.T) {
	var kept []string
	app := fiber.New()
	app.Use(ClientKey("X-Forwarded-For"))
	app.Get("/key", func(c *fiber.Ctx) error {
		kept = append(kept, ClientKeyFromCtx(c))
		return c.SendStatus(fiber.StatusNoContent)
	})

	for _, ip := range []string{"203.0.113.7", "198.51.100.9"} {
		req := httptest.NewRequest("GET", "/key", nil)
		req.Header.Set("X-Forwarded-For", ip)
		_, err := app.Test(req)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"203.0.113.7", "198.51.100.9"}, kept)
}

func TestRequestID_Rejected(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(RequestIDFromCtx(c)) })

	for name, id := range map[string]string{
		"oversized":      strings.Repeat("x", maxRequestIDLen+1),
		"contains space": "abc def",
		"non ascii":      "r\u00e9quest",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.Header.Set(RequestIDHeader, id)
			resp, err := app.Test(req)
			require.NoError(t, err)

			got := resp.Header.Get(RequestIDHeader)
			assert.NotEqual(t, id, got)
			_, err = uuid.Parse(got)
			assert.NoError(t, err)
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	loc := time.UTC

	// Logger usually depends on RequestID for request_id field
	app.Use(RequestID())
	app.Use(LoggerWithWriter(&buf, loc))

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	// Verify log output
	var logData map[string]any
	err := json.Unmarshal(buf.Bytes(), &logData)
	assert.NoError(t, err)

	assert.NotEmpty(t, logData["request_id"])
	assert.Equal(t, "GET", logData["method"])
	assert.Equal(t, "/test", logData["path"])
	assert.Equal(t, float64(fiber.StatusAccepted), logData["status"])
	assert.NotNil(t, logData["latency"])
	assert.NotEmpty(t, logData["ts"])
}

func TestLogger_RendersErrorsBeforeLogging(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusTooManyRequests).SendString(err.Error())
		},
	})
	app.Use(RequestID())
	app.Use(LoggerWithWriter(&buf, time.UTC))
	app.Get("/upload", func(c *fiber.Ctx) error {
		return errors.New("window exhausted")
	})

	resp, _ := app.Test(httptest.NewRequest("GET", "/upload", nil))
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	var logData map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logData))
	assert.Equal(t, float64(fiber.StatusTooManyRequests), logData["status"])
	assert.Equal(t, "warn", logData["level"])
	assert.Equal(t, "window exhausted", logData["error"])
}
