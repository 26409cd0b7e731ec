package handler

import (
	"github.com/gofiber/fiber/v2"

	"fileshare/internal/http/middleware"
	"fileshare/internal/model"
	"fileshare/internal/service"
)

// UploadFile stores one multipart file (field "file") for the caller.
//
// @Summary Upload a file
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Param X-User-ID header string true "Authenticated account"
// @Param file formData file true "File content"
// @Param description formData string false "Free text description"
// @Param visibility formData string false "public or private" Enums(public, private)
// @Success 201 {object} model.UploadResult
// @Failure 400 {object} errorPayload
// @Failure 413 {object} errorPayload
// @Failure 429 {object} errorPayload
// @Failure 503 {object} errorPayload
// @Router /files [post]
func UploadFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		res, err := svc.Upload(c.UserContext(), actor(c), service.UploadInput{
			ClientKey:   middleware.ClientKeyFromCtx(c),
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Description: c.FormValue("description"),
			Visibility:  model.Visibility(c.FormValue("visibility")),
			Size:        fh.Size,
			Body:        f,
		})
		if err != nil {
			return writeAppError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// ListFiles returns the caller's files, newest first.
//
// @Summary List own files
// @Tags files
// @Produce json
// @Param X-User-ID header string true "Authenticated account"
// @Param limit query int false "Page size" default(10)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} service.FileListResult
// @Failure 400 {object} errorPayload
// @Router /files [get]
func ListFiles(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, ok := pageParams(c)
		if !ok {
			return nil
		}
		res, err := svc.List(c.UserContext(), actor(c), limit, offset)
		if err != nil {
			return writeAppError(c, err)
		}
		return c.JSON(res)
	}
}

// GetFile returns file metadata and a download URL.
//
// @Summary Get a file
// @Tags files
// @Produce json
// @Param X-User-ID header string true "Authenticated account"
// @Param id path string true "File ID"
// @Success 200 {object} model.UploadResult
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /files/{id} [get]
func GetFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := uuidParam(c, "id")
		if !ok {
			return nil
		}
		res, err := svc.Get(c.UserContext(), actor(c), id)
		if err != nil {
			return writeAppError(c, err)
		}
		return c.JSON(res)
	}
}

// DeleteFile removes a file and returns its bytes to the owner's quota.
//
// @Summary Delete a file
// @Tags files
// @Param X-User-ID header string true "Authenticated account"
// @Param id path string true "File ID"
// @Success 204
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /files/{id} [delete]
func DeleteFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := uuidParam(c, "id")
		if !ok {
			return nil
		}
		if err := svc.Delete(c.UserContext(), actor(c), id); err != nil {
			return writeAppError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
