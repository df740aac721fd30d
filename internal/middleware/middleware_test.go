package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/rajivgeraev/bazaar-api/internal/utils"
)

func newAuthApp(jwtService *utils.JWTService) *fiber.App {
	app := fiber.New()
	app.Use(RequestLogger())
	app.Get("/me", AuthMiddleware(jwtService), func(c fiber.Ctx) error {
		id, err := UserID(c)
		if err != nil {
			return utils.SendError(c, err)
		}
		return c.SendString(id.String())
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	jwtService := utils.NewJWTService("secret", time.Hour)
	app := newAuthApp(jwtService)
	userID := uuid.New()
	token, _, err := jwtService.GenerateToken(userID, "jane@example.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"bad format", "Token abc", fiber.StatusUnauthorized},
		{"bad token", "Bearer abc", fiber.StatusUnauthorized},
		{"valid", "Bearer " + token, fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestUserIDWithoutAuth(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c fiber.Ctx) error {
		_, err := UserID(c)
		return utils.SendError(c, err)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 2)
	defer rl.Stop()

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	var codes []int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	rl.evictIdle(0)
	assert.Empty(t, rl.visitors)
	rl.Stop()
}
