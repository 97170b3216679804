package controller

import (
	"os"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/service"
	internalWS "ai-tutor-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type ITutoringController interface {
	RegisterRoutes(r fiber.Router)
	CreateSession(ctx *fiber.Ctx) error
	GetSessions(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
	SendMessageQuery(ctx *fiber.Ctx) error
	ConfirmUnderstanding(ctx *fiber.Ctx) error
	AnswerQuiz(ctx *fiber.Ctx) error
	RequestHint(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
	ServeWs(ctx *fiber.Ctx) error
}

type tutoringController struct {
	tutoringService service.ITutoringService
	hub             *internalWS.Hub
	logger          logger.ILogger
}

func NewTutoringController(tutoringService service.ITutoringService, hub *internalWS.Hub, log logger.ILogger) ITutoringController {
	return &tutoringController{
		tutoringService: tutoringService,
		hub:             hub,
		logger:          log,
	}
}

func (c *tutoringController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/tutoring/v1")

	// The websocket handshake authenticates itself (query token or guest id)
	// because browsers cannot set headers on upgrade requests.
	h.Get("ws", c.ServeWs)

	h.Use(serverutils.JwtMiddleware)
	h.Post("session", c.CreateSession)
	h.Get("session", c.GetSessions)
	h.Get("session/:id/history", c.GetHistory)
	h.Delete("session/:id", c.DeleteSession)
	h.Post("message", c.SendMessage)
	h.Get("message", c.SendMessageQuery)
	h.Post("confirm", c.ConfirmUnderstanding)
	h.Post("quiz/answer", c.AnswerQuiz)
	h.Post("hint", c.RequestHint)
}

func (c *tutoringController) CreateSession(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)
	isGuest, _ := ctx.Locals("is_guest").(bool)

	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.tutoringService.CreateSession(ctx.Context(), userId, isGuest, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create tutoring session", res))
}

func (c *tutoringController) GetSessions(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	res, err := c.tutoringService.GetSessions(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get tutoring sessions", res))
}

func (c *tutoringController) SendMessage(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)
	isGuest, _ := ctx.Locals("is_guest").(bool)

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.tutoringService.SendMessage(ctx.Context(), userId, isGuest, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Message accepted", res))
}

// SendMessageQuery accepts reference-only inputs on the query string.
// Inline image payloads must use the POST body variant.
func (c *tutoringController) SendMessageQuery(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)
	isGuest, _ := ctx.Locals("is_guest").(bool)

	req := dto.SendMessageRequest{
		SessionId: ctx.Query("session_id"),
		Message:   ctx.Query("message"),
		Modality:  ctx.Query("modality"),
		Language:  ctx.Query("language"),
		ImageRef:  ctx.Query("image_ref"),
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.tutoringService.SendMessage(ctx.Context(), userId, isGuest, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Message accepted", res))
}

func (c *tutoringController) ConfirmUnderstanding(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)
	isGuest, _ := ctx.Locals("is_guest").(bool)

	var req dto.ConfirmUnderstandingRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := c.tutoringService.ConfirmUnderstanding(ctx.Context(), userId, isGuest, &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Understanding confirmed", nil))
}

func (c *tutoringController) AnswerQuiz(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	var req dto.AnswerQuizRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.tutoringService.AnswerQuiz(ctx.Context(), userId, &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Quiz answer recorded", nil))
}

func (c *tutoringController) RequestHint(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	if err := c.tutoringService.RequestHint(ctx.Context(), userId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Hint revealed", nil))
}

func (c *tutoringController) GetHistory(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	sessionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid session id")
	}

	res, err := c.tutoringService.GetHistory(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session history", res))
}

func (c *tutoringController) DeleteSession(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	sessionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid session id")
	}

	if err := c.tutoringService.DeleteSession(ctx.Context(), userId, sessionId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete session", nil))
}

// ServeWs authenticates the handshake and upgrades the connection. Signed-in
// users present a JWT (query param or Authorization header); guests present
// the guest id issued by the middleware, or get a fresh one.
func (c *tutoringController) ServeWs(ctx *fiber.Ctx) error {
	userID, err := c.resolveWsUser(ctx)
	if err != nil {
		return err
	}

	if websocket.IsWebSocketUpgrade(ctx) {
		return websocket.New(func(conn *websocket.Conn) {
			c.logger.Info("TutoringController", "Starting WebSocket session", map[string]interface{}{"user_id": userID})
			internalWS.ServeWs(c.hub, conn, userID)
			c.logger.Info("TutoringController", "WebSocket session ended", map[string]interface{}{"user_id": userID})
			c.tutoringService.Disconnect(userID.String())
		})(ctx)
	}
	return fiber.ErrUpgradeRequired
}

func (c *tutoringController) resolveWsUser(ctx *fiber.Ctx) (uuid.UUID, error) {
	tokenStr := ctx.Query("token")
	if tokenStr == "" {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}

	if tokenStr == "" {
		// Guest flow: reuse an issued guest id or mint one.
		if guestId := ctx.Query("guest_id"); guestId != "" {
			userID, err := uuid.Parse(guestId)
			if err != nil {
				return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid guest id")
			}
			return userID, nil
		}
		return uuid.New(), nil
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		c.logger.Warn("TutoringController", "Invalid Token in WS Handshake", map[string]interface{}{"error": err})
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}
	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Token missing user_id")
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid user ID format in token")
	}
	return userID, nil
}
