package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"imagedetect/internal/logger"
)

// quietPaths are polled by probes and scrapers and only logged at debug.
var quietPaths = []string{"/health", "/metrics"}

// RequestLogger writes one line per request. Handler errors are rendered
// through the echo error handler first so the logged status is final.
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			id := res.Header().Get(echo.HeaderXRequestID)
			format := "[%s] %s %s -> %d (%s, %d bytes)"
			args := []any{id, req.Method, req.URL.Path, res.Status, time.Since(start), res.Size}

			switch {
			case res.Status >= 500:
				log.Error(format, args...)
			case isQuiet(req.URL.Path):
				log.Debug(format, args...)
			default:
				log.Info(format, args...)
			}
			return nil
		}
	}
}

func isQuiet(path string) bool {
	for _, p := range quietPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
