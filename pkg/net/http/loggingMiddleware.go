package http

import (
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/plgd-dev/websub-hub/pkg/log"
)

// DefaultCodeToLevel maps the response status to the log function.
func DefaultCodeToLevel(code int, logger log.Logger) func(args ...interface{}) {
	switch {
	case code < http.StatusBadRequest:
		return logger.Debug
	case code == http.StatusForbidden,
		code == http.StatusPreconditionFailed,
		code == http.StatusUnavailableForLegalReasons:
		return logger.Warn
	case code < http.StatusInternalServerError:
		return logger.Debug
	case code == http.StatusServiceUnavailable,
		code == http.StatusGatewayTimeout:
		return logger.Warn
	case code == http.StatusBadGateway:
		return logger.Debug
	}
	return logger.Error
}

type cfg struct {
	logger      log.Logger
	codeToLevel func(code int, logger log.Logger) func(args ...interface{})
}

type LogOpt = func(cfg) cfg

func WithLogger(logger log.Logger) LogOpt {
	return func(c cfg) cfg {
		c.logger = logger
		return c
	}
}

func WithCodeToLevel(f func(code int, logger log.Logger) func(args ...interface{})) LogOpt {
	return func(c cfg) cfg {
		c.codeToLevel = f
		return c
	}
}

// CreateLoggingMiddleware logs every finished request.
func CreateLoggingMiddleware(opts ...LogOpt) func(next http.Handler) http.Handler {
	cfg := cfg{
		logger:      log.Get(),
		codeToLevel: DefaultCodeToLevel,
	}
	for _, o := range opts {
		cfg = o(cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m := httpsnoop.CaptureMetrics(next, w, r)
			logger := cfg.logger.With(log.DurationMSKey, log.DurationToMilliseconds(m.Duration), log.MethodKey, r.Method,
				log.StatusCodeKey, m.Code, log.StartTimeKey, start, log.HrefKey, r.RequestURI)
			doLog := cfg.codeToLevel(m.Code, logger)
			doLog("finished http call with status code ", m.Code)
		})
	}
}
