package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "RegimeChain/pkg/logger"
)

// RequestLogging logs every request once it completes. Server errors log at
// error, client errors at warn, the rest at debug.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			log := l.Debug
			switch {
			case status >= 500:
				log = l.Error
			case status >= 400:
				log = l.Warn
			}
			fields := []applogger.Field{
				applogger.String("method", c.Request().Method),
				applogger.String("route", c.Path()),
				applogger.String("uri", c.Request().RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", status),
				applogger.Duration("latency", time.Since(start)),
			}
			if err != nil {
				fields = append(fields, applogger.Error(err))
			}
			log("http request", fields...)
			return nil
		}
	}
}
