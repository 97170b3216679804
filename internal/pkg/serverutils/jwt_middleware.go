package serverutils

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JwtMiddleware authenticates the request. Unauthenticated requests are
// admitted as guests: a stable guest id comes from the X-Guest-Id header
// when the client has one, otherwise a fresh id is issued. Tutoring is
// usable before signup; the profile elicitation flow collects a credential
// later.
func JwtMiddleware(ctx *fiber.Ctx) error {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return admitGuest(ctx)
	}
	tokenStr := authHeader[7:]

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})

	if err != nil || !token.Valid {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid claims"))
	}

	userId, ok := claims["user_id"].(string)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Token missing user_id"))
	}

	ctx.Locals("user_id", userId)
	ctx.Locals("is_guest", false)
	return ctx.Next()
}

func admitGuest(ctx *fiber.Ctx) error {
	guestId := ctx.Get("X-Guest-Id")
	if _, err := uuid.Parse(guestId); err != nil {
		guestId = uuid.NewString()
		ctx.Set("X-Guest-Id", guestId)
	}
	ctx.Locals("user_id", guestId)
	ctx.Locals("is_guest", true)
	return ctx.Next()
}
