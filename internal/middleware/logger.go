// Package middleware provides gin middlewares shared by all the routes.
package middleware

import (
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/go-petr/pet-ledger/pkg/configpkg"
)

// RequestIDHeader carries the request correlation id.
const RequestIDHeader = "X-Request-ID"

// CreateLogger returns the application logger configured for the environment.
func CreateLogger(config configpkg.Config) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	var (
		output   io.Writer = os.Stderr
		logLevel           = zerolog.InfoLevel
	)

	logger := zerolog.New(output).
		Level(logLevel).
		With().
		Timestamp().
		Logger()

	if config.Environment == "development" {
		logger = logger.
			Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			Level(zerolog.TraceLevel).
			With().
			Caller().
			Logger()
	}

	return logger
}

// RequestLogger attaches a request scoped logger to the request context
// and logs every processed request.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.Request.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			c.Request.Header.Set(RequestIDHeader, requestID)
		}

		c.Writer.Header().Set(RequestIDHeader, requestID)

		l := logger.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		c.Next()

		var event *zerolog.Event
		if c.Writer.Status() >= 500 {
			event = l.Error()
		} else {
			event = l.Info()
		}

		event.
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Int("status_code", c.Writer.Status()).
			Str("path", c.FullPath()).
			Dur("latency", time.Since(start)).
			Msg(c.Errors.ByType(gin.ErrorTypePrivate).String())
	}
}
