// Package middleware holds the HTTP middleware shared by every route.
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/airwave/internal/logger"
)

// RequestLogger logs one record per request at a level chosen by status:
// 5xx at error, 4xx at warn, everything else at info. Health and metrics
// scrapes only show at debug.
func RequestLogger() gin.HandlerFunc {
	log := logger.For("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ev := requestEvent(&log, status, route)
		if id := c.Param("id"); id != "" {
			ev = ev.Str("id", id)
		}
		if at := c.Query("at"); at != "" {
			ev = ev.Str("at", at)
		}
		if len(c.Errors) > 0 {
			ev = ev.Strs("errors", c.Errors.Errors())
		}

		ev.Str("method", c.Request.Method).
			Str("route", route).
			Str("path", path).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func requestEvent(log *zerolog.Logger, status int, route string) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return log.Error()
	case status >= http.StatusBadRequest:
		return log.Warn()
	case route == "/api/health" || route == "/metrics":
		return log.Debug()
	default:
		return log.Info()
	}
}
