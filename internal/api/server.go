package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Server owns the HTTP listener lifecycle around the gin router.
type Server struct {
	inner *http.Server
}

func NewServer(router *gin.Engine, port string) *Server {
	return &Server{
		inner: &http.Server{
			Addr:    ":" + port,
			Handler: router,
		},
	}
}

// Start begins serving in the background. A listen failure other than a
// clean shutdown is fatal; there is nothing to serve without the listener.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.inner.Addr).Msg("HTTP server listening")
		if err := s.inner.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
}

// Shutdown stops accepting new connections and waits up to timeout for
// in-flight requests to drain.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.inner.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	log.Info().Msg("HTTP server stopped")
	return nil
}
