package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies the caller: an operator console or a detector process.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTProtected validates a bearer token. Websocket clients cannot set headers
// from a browser, so a token query parameter is accepted on upgrade requests.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": "Missing or malformed authorization header",
			})
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": "Invalid or expired token",
			})
		}

		c.Locals("subject", claims.Subject)
		c.Locals("role", claims.Role)
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	if auth := c.Get(fiber.HeaderAuthorization); auth != "" {
		tokenStr, found := strings.CutPrefix(auth, "Bearer ")
		return tokenStr, found && tokenStr != ""
	}
	if strings.EqualFold(c.Get(fiber.HeaderUpgrade), "websocket") {
		if tokenStr := c.Query("token"); tokenStr != "" {
			return tokenStr, true
		}
	}
	return "", false
}
