package middleware

import (
	"creditflow-backend/internal/infrastructure/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request and stores a request-scoped logger
// (carrying request_id) in the request context. It expects
// middleware.RequestID to run first.
func RequestLogger(base *zap.Logger) echo.MiddlewareFunc {
	scope := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			l := base.With(zap.String("request_id", rid))
			c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context(), l)))
			return next(c)
		}
	}
	access := middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if uid, ok := c.Get("user_id").(string); ok {
				fields = append(fields, zap.String("user_id", uid))
			}
			if v.Error != nil {
				base.Error("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			base.Info("request", fields...)
			return nil
		},
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return access(scope(next))
	}
}
