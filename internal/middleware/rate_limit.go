package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimit throttles a route group, keyed by the authenticated user so one
// learner hammering /execute cannot starve the sandbox pool for everyone
// else. Anonymous traffic falls back to the client IP.
func RateLimit(name string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			subject := fmt.Sprintf("%v", c.Locals("user_id"))
			if subject == "" || subject == "0" || subject == "<nil>" {
				subject = c.IP()
			}
			return fmt.Sprintf("%s:%s", name, subject)
		},
	})
}
