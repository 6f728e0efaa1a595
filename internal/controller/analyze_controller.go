package controller

import (
	"os"
	"path/filepath"

	"sanbot-be/internal/pkg/serverutils"
	"sanbot-be/internal/service"
	"sanbot-be/pkg/session"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IAnalyzeController interface {
	RegisterRoutes(r fiber.Router)
	Analyze(ctx *fiber.Ctx) error
	TaskStatus(ctx *fiber.Ctx) error
}

type analyzeController struct {
	analysis     service.IAnalysisService
	uploadFolder string
}

func NewAnalyzeController(analysis service.IAnalysisService, uploadFolder string) IAnalyzeController {
	return &analyzeController{
		analysis:     analysis,
		uploadFolder: uploadFolder,
	}
}

func (c *analyzeController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/api")
	h.Post("analyze", c.Analyze)
	h.Get("tasks/:id", c.TaskStatus)
}

// Analyze runs the comparison pipeline synchronously over two multipart
// files. The conversational session machinery is bypassed entirely.
func (c *analyzeController) Analyze(ctx *fiber.Ctx) error {
	file1, err := c.saveMultipart(ctx, "file1")
	if err != nil {
		return err
	}
	defer os.Remove(file1.Path)

	file2, err := c.saveMultipart(ctx, "file2")
	if err != nil {
		return err
	}
	defer os.Remove(file2.Path)

	instruction := ctx.FormValue("instruction")
	result := c.analysis.RunDirect(ctx.Context(), file1, file2, instruction)
	if !result.Success {
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(result)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success analyze files", result))
}

func (c *analyzeController) TaskStatus(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid task id")
	}
	task, ok := c.analysis.Lookup(id)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "task not found")
	}
	state, taskErr := task.Status()
	data := fiber.Map{"id": task.ID, "state": state}
	if taskErr != nil {
		data["error"] = taskErr.Error()
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show task", data))
}

func (c *analyzeController) saveMultipart(ctx *fiber.Ctx, field string) (session.FileRef, error) {
	header, err := ctx.FormFile(field)
	if err != nil {
		return session.FileRef{}, fiber.NewError(fiber.StatusBadRequest, field+" is required")
	}
	dest := filepath.Join(c.uploadFolder, uuid.New().String()+"_"+filepath.Base(header.Filename))
	if err := ctx.SaveFile(header, dest); err != nil {
		return session.FileRef{}, err
	}
	return session.FileRef{Path: dest, Name: header.Filename}, nil
}
