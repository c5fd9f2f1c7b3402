package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/katakuxiko/agrochat/internal/logger"
	"github.com/katakuxiko/agrochat/internal/memory"
	"github.com/katakuxiko/agrochat/internal/model"
	"github.com/katakuxiko/agrochat/internal/service"
)

const (
	SessionHeader = "X-Session-ID"

	msgNoQuestion  = "No question provided."
	msgBadRequest  = "Invalid request body."
	msgInternal    = "Something went wrong while processing your request."
	msgModelsError = "Failed to list models."
)

type Chatter interface {
	Chat(ctx context.Context, sessionID, question string) (service.ChatResult, error)
}

type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Handler хранит зависимости для обработчиков
type Handler struct {
	chat     Chatter
	models   ModelLister
	sessions memory.Store
	timeout  time.Duration
	log      logger.Logger
}

// NewHandler конструктор
func NewHandler(chat Chatter, models ModelLister, sessions memory.Store, timeout time.Duration, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{chat: chat, models: models, sessions: sessions, timeout: timeout, log: log}
}

// Health — простая проверка
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.SendString("ok")
}

// ListModels — проксирование к OpenAI-совместимому API (список моделей)
func (h *Handler) ListModels(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	models, err := h.models.ListModels(ctx)
	if err != nil {
		h.log.Error("list models failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(model.ErrorResponse{Error: msgModelsError})
	}
	return c.JSON(fiber.Map{"models": models})
}

// Chat — переписывание вопроса, поиск контекста и ответ LLM
func (h *Handler) Chat(c *fiber.Ctx) error {
	var req model.ChatRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(model.ErrorResponse{Error: msgBadRequest})
		}
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(model.ErrorResponse{Error: msgNoQuestion})
	}

	sessionID := sessionOf(c, req.SessionID)
	c.Set(SessionHeader, sessionID)

	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.chat.Chat(ctx, sessionID, question)
	if err != nil {
		if errors.Is(err, service.ErrNoQuestion) {
			return c.Status(fiber.StatusBadRequest).JSON(model.ErrorResponse{Error: msgNoQuestion})
		}
		h.log.Error("error in /chat endpoint", "session", sessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(model.ErrorResponse{Error: msgInternal})
	}

	return c.JSON(model.ChatResponse{Answer: res.Answer, SessionID: sessionID})
}

// ResetSession — очистка истории диалога
func (h *Handler) ResetSession(c *fiber.Ctx) error {
	sessionID := strings.TrimSpace(c.Params("session"))
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(model.ErrorResponse{Error: "session is required"})
	}
	if err := h.sessions.Reset(c.UserContext(), sessionID); err != nil {
		h.log.Error("reset session failed", "session", sessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(model.ErrorResponse{Error: msgInternal})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := logger.ContextWithLogger(c.UserContext(), h.log)
	if h.timeout > 0 {
		return context.WithTimeout(ctx, h.timeout)
	}
	return context.WithCancel(ctx)
}

// sessionOf picks the body session, then the header, then a fresh UUID.
func sessionOf(c *fiber.Ctx, fromBody string) string {
	if id := strings.TrimSpace(fromBody); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.Get(SessionHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}
