package handler

import (
	"github.com/gofiber/fiber/v2"

	"fileshare/internal/service"
)

type setRolesRequest struct {
	IsAdmin     *bool `json:"is_admin"`
	IsModerator *bool `json:"is_moderator"`
}

// GetAccount returns an account to itself or to an admin.
//
// @Summary Get an account
// @Tags accounts
// @Produce json
// @Param X-User-ID header string true "Authenticated account"
// @Param id path string true "Account ID"
// @Success 200 {object} model.Account
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /accounts/{id} [get]
func GetAccount(svc service.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.Get(c.UserContext(), actor(c), c.Params("id"))
		if err != nil {
			return writeAppError(c, err)
		}
		return c.JSON(res)
	}
}

// SetAccountRoles writes both role flags of an account.
//
// @Summary Set account roles
// @Tags accounts
// @Accept json
// @Produce json
// @Param X-User-ID header string true "Authenticated account"
// @Param id path string true "Account ID"
// @Param body body setRolesRequest true "Both flags are required"
// @Success 200 {object} model.Account
// @Failure 403 {object} errorPayload
// @Router /accounts/{id}/roles [put]
func SetAccountRoles(svc service.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body setRolesRequest
		if err := c.BodyParser(&body); err != nil || body.IsAdmin == nil || body.IsModerator == nil {
			return invalidBody(c, "is_admin and is_moderator are required")
		}
		res, err := svc.SetRoles(c.UserContext(), actor(c), c.Params("id"), *body.IsAdmin, *body.IsModerator)
		if err != nil {
			return writeAppError(c, err)
		}
		return c.JSON(res)
	}
}
