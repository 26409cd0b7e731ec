package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"fileshare/internal/apperror"
	"fileshare/internal/model"
	serviceMocks "fileshare/internal/service/mocks"
)

func TestGetAccount(t *testing.T) {
	mockSvc := new(serviceMocks.MockAccountService)
	app := newApp(admin)
	app.Get("/accounts/:id", GetAccount(mockSvc))

	mockSvc.On("Get", mock.Anything, admin, "user-1").Return(user, nil).Once()
	mockSvc.On("Get", mock.Anything, admin, "ghost").
		Return(nil, apperror.New(apperror.KindNotFound, "", "account ghost not found")).Once()

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/accounts/user-1", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/accounts/ghost", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	mockSvc.AssertExpectations(t)
}

func TestSetAccountRoles(t *testing.T) {
	mockSvc := new(serviceMocks.MockAccountService)
	app := newApp(admin)
	app.Put("/accounts/:id/roles", SetAccountRoles(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("SetRoles", mock.Anything, admin, "user-1", false, true).
			Return(&model.Account{ID: "user-1", IsModerator: true}, nil).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPut, "/accounts/user-1/roles", `{"is_admin":false,"is_moderator":true}`))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("both flags required", func(t *testing.T) {
		resp, _ := app.Test(jsonRequest(http.MethodPut, "/accounts/user-1/roles", `{"is_admin":false}`))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_INPUT", decodeError(t, resp).Error.Code)
	})

	t.Run("protected account", func(t *testing.T) {
		mockSvc.On("SetRoles", mock.Anything, admin, "root", false, false).
			Return(nil, apperror.New(apperror.KindProtectedResource, "", "the protected account must keep its admin and moderator roles")).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPut, "/accounts/root/roles", `{"is_admin":false,"is_moderator":false}`))

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "PROTECTED_RESOURCE", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}
