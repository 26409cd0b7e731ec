package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fileshare/internal/apperror"
	"fileshare/internal/http/middleware"
	"fileshare/internal/model"
	"fileshare/internal/service"
	serviceMocks "fileshare/internal/service/mocks"
)

var user = &model.Account{ID: "user-1", StorageLimit: 1 << 20}

// newApp returns an app whose requests are already authenticated as a.
func newApp(a *model.Account) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(middleware.RequestID())
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.AccountLocalKey, a)
		return c.Next()
	})
	return app
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"validation", apperror.New(apperror.KindValidation, apperror.ReasonEmptyFile, "file is empty"), 400, "EMPTY_FILE", "file is empty"},
		{"rate limited", apperror.New(apperror.KindRateLimited, apperror.ReasonTooManyUploads, "slow down"), 429, "TOO_MANY_UPLOADS", "slow down"},
		{"quota", apperror.New(apperror.KindQuotaExceeded, "", "no room"), 413, "QUOTA_EXCEEDED", "no room"},
		{"storage", apperror.New(apperror.KindStorageBackend, "", "storage unavailable"), 503, "STORAGE_BACKEND_ERROR", "storage unavailable"},
		{"persistence hides cause", apperror.Wrap(errors.New("pq: deadlock"), apperror.KindPersistence, "", "failed to save"), 500, "PERSISTENCE_ERROR", "internal server error"},
		{"unauthenticated", apperror.New(apperror.KindAuthorization, apperror.ReasonUnauthenticated, "authentication required"), 401, "UNAUTHENTICATED", "authentication required"},
		{"forbidden", apperror.New(apperror.KindAuthorization, apperror.ReasonInsufficientRole, "admin role required"), 403, "INSUFFICIENT_ROLE", "admin role required"},
		{"protected", apperror.New(apperror.KindProtectedResource, "", "protected"), 403, "PROTECTED_RESOURCE", "protected"},
		{"conflict", apperror.New(apperror.KindConflict, "", "already reviewed"), 409, "CONFLICT", "already reviewed"},
		{"not found", apperror.New(apperror.KindNotFound, "", "file not found"), 404, "NOT_FOUND", "file not found"},
		{"no rows", sql.ErrNoRows, 404, "NOT_FOUND", "resource not found"},
		{"unknown", errors.New("boom"), 500, "INTERNAL_ERROR", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(user)
			app.Get("/", func(c *fiber.Ctx) error { return writeAppError(c, tt.err) })

			resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, resp.StatusCode)
			body := decodeError(t, resp)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Message)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestListFiles(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := newApp(user)
	app.Get("/files", ListFiles(mockSvc))

	t.Run("success", func(t *testing.T) {
		expectedRes := &service.FileListResult{
			Items: []model.FileRecord{{ID: uuid.New().String(), Filename: "test.pdf"}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, user, 10, 0).Return(expectedRes, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/files?limit=10&offset=0", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.FileListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/files?limit=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_LIMIT", decodeError(t, resp).Error.Code)
	})

	t.Run("invalid offset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/files?offset=-x", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_OFFSET", decodeError(t, resp).Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, user, 10, 0).Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/files", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	part.Write([]byte(content))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadFile(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := newApp(user)
	app.Post("/files", middleware.ClientKey("X-Forwarded-For"), UploadFile(mockSvc))

	t.Run("success", func(t *testing.T) {
		expected := &model.UploadResult{
			File: &model.FileRecord{ID: uuid.New().String(), Filename: "test.txt", Size: 11},
			URL:  "https://blobs.example/test.txt?sig=1",
		}
		mockSvc.On("Upload", mock.Anything, user, mock.MatchedBy(func(in service.UploadInput) bool {
			return in.Filename == "test.txt" &&
				in.Size == 11 &&
				in.Visibility == model.VisibilityPublic &&
				in.Description == "notes" &&
				in.ClientKey == "198.51.100.4" &&
				in.Body != nil
		})).Return(expected, nil).Once()

		req := multipartUpload(t, "test.txt", "hello world", map[string]string{
			"visibility":  "public",
			"description": "notes",
		})
		req.Header.Set("X-Forwarded-For", "198.51.100.4")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result model.UploadResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, expected.File.ID, result.File.ID)
		assert.Equal(t, expected.URL, result.URL)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/files", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, resp).Error.Code)
	})

	t.Run("quota exceeded", func(t *testing.T) {
		mockSvc.On("Upload", mock.Anything, user, mock.Anything).
			Return(nil, apperror.New(apperror.KindQuotaExceeded, "", "only 1.0 MB available")).Once()

		resp, _ := app.Test(multipartUpload(t, "big.bin", "hello", nil))

		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, "QUOTA_EXCEEDED", body.Error.Code)
		assert.Equal(t, "only 1.0 MB available", body.Error.Message)
		mockSvc.AssertExpectations(t)
	})

	t.Run("rate limited", func(t *testing.T) {
		mockSvc.On("Upload", mock.Anything, user, mock.Anything).
			Return(nil, apperror.New(apperror.KindRateLimited, apperror.ReasonTooManyBytes, "too many bytes")).Once()

		resp, _ := app.Test(multipartUpload(t, "a.txt", "hello", nil))

		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "TOO_MANY_BYTES", decodeError(t, resp).Error.Code)
	})
}

func TestGetFile(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := newApp(user)
	app.Get("/files/:id", GetFile(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		expected := &model.UploadResult{File: &model.FileRecord{ID: id, Filename: "test.txt"}}
		mockSvc.On("Get", mock.Anything, user, id).Return(expected, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files/"+id, nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.UploadResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, id, result.File.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, user, id).
			Return(nil, apperror.New(apperror.KindNotFound, "", "file %s not found", id)).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files/"+id, nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files/invalid-uuid", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Error.Code)
	})
}

func TestDeleteFile(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := newApp(user)
	app.Delete("/files/:id", DeleteFile(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, user, id).Return(nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/files/"+id, nil))

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not owner", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, user, id).
			Return(apperror.New(apperror.KindAuthorization, apperror.ReasonInsufficientRole, "only the owner or an admin may delete")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/files/"+id, nil))

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, user, id).Return(errors.New("delete error")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/files/"+id, nil))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	accounts := new(serviceMocks.MockAccountService)
	RegisterRoutes(app, nil, Services{
		Files:      new(serviceMocks.MockFileService),
		Governance: new(serviceMocks.MockGovernanceService),
		Accounts:   accounts,
	}, RouteOptions{UserHeader: "X-User-ID", ClientHeader: "X-Forwarded-For"})

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp).Error.Code)
	})

	t.Run("missing identity", func(t *testing.T) {
		accounts.On("Resolve", mock.Anything, "").
			Return(nil, apperror.New(apperror.KindAuthorization, apperror.ReasonUnauthenticated, "authentication required")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/quota", nil))

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHENTICATED", decodeError(t, resp).Error.Code)
		accounts.AssertExpectations(t)
	})
}
