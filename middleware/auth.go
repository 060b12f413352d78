// middleware/auth.go
package middleware

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"trivia-quiz-system/gateway"
	"trivia-quiz-system/metrics"
	"trivia-quiz-system/models"
)

// PlayerResolver is the token cache surface this middleware needs.
type PlayerResolver interface {
	Resolve(ctx context.Context, token string) (models.Player, error)
	Remember(ctx context.Context, token string, player models.Player) error
}

// IdentityExchanger performs the identity-provider exchange on cache misses.
type IdentityExchanger interface {
	ResolvePlayer(ctx context.Context, accessToken string) (models.Player, error)
}

// PlayerContext resolves the Authorization bearer token into a player and
// attaches it to the request context. Cache first; on a miss, the identity
// provider is asked and the result cached for the next request.
func PlayerContext(cache PlayerResolver, identity IdentityExchanger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing bearer token",
			})
		}

		player, err := cache.Resolve(c.UserContext(), token)
		switch {
		case err == nil:
			metrics.TokenCacheHits.Inc()
		case errors.Is(err, gateway.ErrUnknownToken):
			metrics.TokenCacheMisses.Inc()
			player, err = identity.ResolvePlayer(c.UserContext(), token)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "invalid token",
				})
			}
			// A failed cache write only costs another exchange next time.
			if err := cache.Remember(c.UserContext(), token, player); err != nil {
				log.Printf("⚠️  failed to cache token for player %s: %v", player.ID, err)
			}
		default:
			log.Printf("token cache lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to resolve player",
			})
		}

		c.Locals("player", player)
		return c.Next()
	}
}

// CurrentPlayer reads the player stored by PlayerContext.
func CurrentPlayer(c *fiber.Ctx) models.Player {
	player, _ := c.Locals("player").(models.Player)
	return player
}
