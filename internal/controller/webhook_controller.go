package controller

import (
	"path/filepath"

	"sanbot-be/internal/dto"
	"sanbot-be/internal/pkg/logger"
	"sanbot-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// MediaGateway is the slice of the messaging client the webhook needs:
// callback verification and media retrieval.
type MediaGateway interface {
	DownloadMedia(mediaID, destPath string) error
	VerifyURL(signature, timestamp, nonce, echostr string) (string, bool)
}

type IWebhookController interface {
	RegisterRoutes(r fiber.Router)
	Verify(ctx *fiber.Ctx) error
	Receive(ctx *fiber.Ctx) error
}

type webhookController struct {
	conversation service.IConversationService
	media        MediaGateway
	uploadFolder string
	log          logger.ILogger
}

func NewWebhookController(
	conversation service.IConversationService,
	media MediaGateway,
	uploadFolder string,
	log logger.ILogger,
) IWebhookController {
	return &webhookController{
		conversation: conversation,
		media:        media,
		uploadFolder: uploadFolder,
		log:          log,
	}
}

func (c *webhookController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/wechat")
	h.Get("callback", c.Verify)
	h.Post("callback", c.Receive)
}

// Verify answers the channel's URL ownership challenge.
func (c *webhookController) Verify(ctx *fiber.Ctx) error {
	echo, ok := c.media.VerifyURL(
		ctx.Query("msg_signature"),
		ctx.Query("timestamp"),
		ctx.Query("nonce"),
		ctx.Query("echostr"),
	)
	if !ok {
		return fiber.NewError(fiber.StatusForbidden, "signature mismatch")
	}
	return ctx.SendString(echo)
}

func (c *webhookController) Receive(ctx *fiber.Ctx) error {
	var msg dto.WebhookMessage
	if err := ctx.BodyParser(&msg); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed callback body")
	}
	if msg.UserID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}

	event, err := c.toEvent(msg)
	if err != nil {
		return err
	}

	if err := c.conversation.HandleEvent(event); err != nil {
		c.log.Error("webhook", "event handling failed", map[string]interface{}{
			"user_id": msg.UserID, "msg_type": msg.MsgType, "error": err.Error(),
		})
		return err
	}
	return ctx.SendStatus(fiber.StatusOK)
}

// toEvent normalizes a raw callback into the conversation core's event shape,
// downloading referenced media into local upload storage.
func (c *webhookController) toEvent(msg dto.WebhookMessage) (dto.InboundEvent, error) {
	switch msg.MsgType {
	case "text":
		return dto.InboundEvent{
			UserID: msg.UserID,
			Kind:   dto.EventText,
			Text:   msg.Content,
		}, nil
	case "file":
		if msg.MediaID == "" {
			return dto.InboundEvent{}, fiber.NewError(fiber.StatusBadRequest, "file message without media_id")
		}
		name := msg.FileName
		if name == "" {
			name = msg.MediaID + ".csv"
		}
		dest := filepath.Join(c.uploadFolder, uuid.New().String()+"_"+filepath.Base(name))
		if err := c.media.DownloadMedia(msg.MediaID, dest); err != nil {
			return dto.InboundEvent{}, fiber.NewError(fiber.StatusBadGateway, "media download failed")
		}
		return dto.InboundEvent{
			UserID: msg.UserID,
			Kind:   dto.EventFile,
			File:   &dto.FilePayload{Name: name, Path: dest},
		}, nil
	default:
		return dto.InboundEvent{}, fiber.NewError(fiber.StatusBadRequest, "unsupported msg_type")
	}
}
