package controller

import (
	"os"
	"path/filepath"

	"sanbot-be/internal/constant"
	"sanbot-be/internal/dto"
	"sanbot-be/internal/pkg/serverutils"
	"sanbot-be/internal/service"
	"sanbot-be/pkg/session"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IUploadController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Compare(ctx *fiber.Ctx) error
}

type uploadController struct {
	uploadService service.IUploadService
	uploadFolder  string
}

func NewUploadController(uploadService service.IUploadService, uploadFolder string) IUploadController {
	return &uploadController{
		uploadService: uploadService,
		uploadFolder:  uploadFolder,
	}
}

func (c *uploadController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/api/uploads")
	h.Post("", c.Create)
	h.Get("", c.List)
	h.Post("compare", c.Compare)
	h.Delete(":id", c.Delete)
}

func (c *uploadController) Create(ctx *fiber.Ctx) error {
	userID, err := requireUserID(ctx)
	if err != nil {
		return err
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	dest := filepath.Join(c.uploadFolder, uuid.New().String()+"_"+filepath.Base(header.Filename))
	if err := ctx.SaveFile(header, dest); err != nil {
		return err
	}
	defer os.Remove(dest)

	res, err := c.uploadService.SaveUpload(ctx.Context(), userID, session.FileRef{
		Path: dest,
		Name: header.Filename,
	})
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success store upload", res))
}

func (c *uploadController) List(ctx *fiber.Ctx) error {
	userID, err := requireUserID(ctx)
	if err != nil {
		return err
	}
	res, err := c.uploadService.ListUploads(ctx.Context(), userID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list uploads", res))
}

func (c *uploadController) Delete(ctx *fiber.Ctx) error {
	userID, err := requireUserID(ctx)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid upload id")
	}
	if err := c.uploadService.DeleteUpload(ctx.Context(), userID, id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success delete upload", nil))
}

// Compare queues an asynchronous analysis over two stored uploads. The
// report is delivered through the messaging channel, not this response.
func (c *uploadController) Compare(ctx *fiber.Ctx) error {
	var req dto.CompareUploadsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if req.UserID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}

	task, err := c.uploadService.Compare(ctx.Context(), req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse(
		constant.MsgCompareSubmitted,
		fiber.Map{"task_id": task.ID},
	))
}

func requireUserID(ctx *fiber.Ctx) (string, error) {
	userID := ctx.Query("user_id", ctx.FormValue("user_id"))
	if userID == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}
	return userID, nil
}
