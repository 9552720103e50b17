package httpserver

import (
	"net/http"
	"time"

	"regform/internal/platform/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	idleTimeout       = 120 * time.Second
	minWriteTimeout   = 30 * time.Second
	writeGrace        = 5 * time.Second
)

// New builds the HTTP server for cfg. The write timeout leaves room for the
// per-request timeout so a handler that runs up to its deadline can still
// write its error response.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout(cfg.RequestTimeout.Duration),
		IdleTimeout:       idleTimeout,
	}
}

func writeTimeout(request time.Duration) time.Duration {
	return max(request+writeGrace, minWriteTimeout)
}
