package handler

import (
	"github.com/gofiber/fiber/v2"

	"fileshare/internal/model"
	"fileshare/internal/service"
)

type setLimitRequest struct {
	NewLimit *int64 `json:"new_limit"`
	Reason   string `json:"reason"`
}

type createQuotaRequest struct {
	TargetID string `json:"target_id"`
	NewLimit *int64 `json:"new_limit"`
	Reason   string `json:"reason"`
}

type reviewQuotaRequest struct {
	Decision model.Decision `json:"decision"`
	Comment  string         `json:"comment"`
}

func invalidBody(c *fiber.Ctx, msg string) error {
	return writeError(c, fiber.StatusBadRequest, "INVALID_INPUT", msg)
}

// GetQuota returns the caller's storage usage.
//
// @Summary Own quota
// @Tags quota
// @Produce json
// @Param X-User-ID header string true "Authenticated account"
// @Success 200 {object} model.QuotaSummary
// @Router /quota [get]
func GetQuota(svc service.GovernanceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.Quota(c.UserContext(), actor(c))
		if err != nil {
			return writeAppError(c, err)
		}
		return c.JSON(res)
	}
}

// SetOwnLimit is the protected account's direct limit change.
//
// @Summary Set own limit (protected account)
// @Tags quota
// @Accept json
// @Produce json
// @Param X-User-ID header string true "Authenticated account"
// @Param body body setLimitRequest true "New limit in bytes"
// @Success 200 {object} model.Account
// @Failure 403 {object} errorPayload
// @Failure 413 {object} errorPayload
// @Router /quota/limit [put]
func SetOwnLimit(svc service.GovernanceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body setLimitRequest
		if err := c.BodyParser(&body); err != nil || body.NewLimit == nil {
			return invalidBody(c, "new_limit is required")
		}
		res, err := svc.SetOwnLimit(c.UserContext(), actor(c), *body.NewLimit, body.Reason)
		if err != nil {
			return writeAppError(c, err)
		}
		return c.JSON(res)
	}
}

// CreateQuotaRequest files a pending change of another account's limit.
//
// @Summary Request a quota change
// @Tags quota
// @Accept json
// @Produce json
// @Param X-User-ID header string true "Authenticated account"
// @Param body body createQuotaRequest true "Target and new limit"
// @Success 201 {object} model.QuotaModificationRequest
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Router /quota/requests [post]
func CreateQuotaRequest(svc service.GovernanceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body createQuotaRequest
		if err := c.BodyParser(&body); err != nil || body.NewLimit == nil || body.TargetID == "" {
			return invalidBody(c, "target_id and new_limit are required")
		}
		res, err := svc.CreateRequest(c.UserContext(), actor(c), service.CreateRequestInput{
			TargetID: body.TargetID,
			NewLimit: *body.NewLimit,
			Reason:   body.Reason,
		})
		if err != nil {
			return writeAppError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// ListQuotaRequests returns requests, optionally filtered by status.
//
// @Summary List quota requests
// @Tags quota
// @Produce json
// @Param X-User-ID header string true "Authenticated account"
// @Param status query string false "pending, approved or rejected"
// @Param limit query int false "Page size" default(10)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} service.RequestListResult
// @Router /quota/requests [get]
func ListQuotaRequests(svc service.GovernanceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, ok := pageParams(c)
		if !ok {
			return nil
		}
		status := model.RequestStatus(c.Query("status"))
		switch status {
		case "", model.StatusPending, model.StatusApproved, model.StatusRejected:
		default:
			return writeError(c, fiber.StatusBadRequest, "INVALID_STATUS", "invalid status")
		}
		res, err := svc.ListRequests(c.UserContext(), actor(c), status, limit, offset)
		if err != nil {
			return writeAppError(c, err)
		}
		return c.JSON(res)
	}
}

// GetQuotaRequest returns one request.
//
// @Summary Get a quota request
// @Tags quota
// @Produce json
// @Param X-User-ID header string true "Authenticated account"
// @Param id path string true "Request ID"
// @Success 200 {object} model.QuotaModificationRequest
// @Failure 404 {object} errorPayload
// @Router /quota/requests/{id} [get]
func GetQuotaRequest(svc service.GovernanceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := uuidParam(c, "id")
		if !ok {
			return nil
		}
		res, err := svc.GetRequest(c.UserContext(), actor(c), id)
		if err != nil {
			return writeAppError(c, err)
		}
		return c.JSON(res)
	}
}

// ReviewQuotaRequest approves or rejects a pending request.
//
// @Summary Review a quota request
// @Tags quota
// @Accept json
// @Produce json
// @Param X-User-ID header string true "Authenticated account"
// @Param id path string true "Request ID"
// @Param body body reviewQuotaRequest true "Decision"
// @Success 200 {object} model.QuotaModificationRequest
// @Failure 403 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Router /quota/requests/{id} [put]
func ReviewQuotaRequest(svc service.GovernanceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := uuidParam(c, "id")
		if !ok {
			return nil
		}
		var body reviewQuotaRequest
		if err := c.BodyParser(&body); err != nil {
			return invalidBody(c, "invalid request body")
		}
		res, err := svc.ReviewRequest(c.UserContext(), actor(c), id, service.ReviewInput{
			Decision: body.Decision,
			Comment:  body.Comment,
		})
		if err != nil {
			return writeAppError(c, err)
		}
		return c.JSON(res)
	}
}

// ListQuotaLog returns the quota change log, optionally for one account.
//
// @Summary Quota change log
// @Tags quota
// @Produce json
// @Param X-User-ID header string true "Authenticated account"
// @Param target_id query string false "Account ID"
// @Param limit query int false "Page size" default(10)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} service.ChangeLogResult
// @Router /quota/log [get]
func ListQuotaLog(svc service.GovernanceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, ok := pageParams(c)
		if !ok {
			return nil
		}
		res, err := svc.ChangeLog(c.UserContext(), actor(c), c.Query("target_id"), limit, offset)
		if err != nil {
			return writeAppError(c, err)
		}
		return c.JSON(res)
	}
}
