package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AuthUserLocalKey is the key under which the authenticated user id is
// stored in Fiber's context locals.
const AuthUserLocalKey = "auth_user_id"

// BearerAuth verifies the Authorization bearer token and stores its
// subject claim as the acting user id. Tokens are HS256 JWTs signed with
// the shared secret; this service never issues them.
func BearerAuth(secret string) fiber.Handler {
	keyFunc := func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}

	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return fiber.ErrUnauthorized
		}
		raw := strings.TrimPrefix(header, "Bearer ")
		if raw == header || raw == "" {
			return fiber.ErrUnauthorized
		}

		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, keyFunc,
			jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			return fiber.ErrUnauthorized
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return fiber.ErrUnauthorized
		}

		c.Locals(AuthUserLocalKey, sub)
		return c.Next()
	}
}
