package middleware

import "github.com/labstack/echo/v4"

// Allower decides whether a request keyed by client may proceed.
type Allower interface {
	Allow(key string) bool
}

// RateLimit rejects requests whose client IP has no tokens left.
func RateLimit(l Allower, deny echo.HandlerFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return deny(c)
			}
			return next(c)
		}
	}
}
