// Package webhook receives provider callbacks over HTTP. Every request is
// authenticated with an HMAC signature computed over the raw body before
// any state is touched.
package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/blakeyoder/alfred/internal/callstore"
	"github.com/gin-gonic/gin"
)

// StartOpts holds configuration for the webhook server.
type StartOpts struct {
	Store  *callstore.Store
	Secret string
	Port   int
	Out    io.Writer
}

// Router builds the gin router with the webhook routes registered.
func Router(store *callstore.Store, secret string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/webhook/calls", handleCalls(store, secret))
	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return router
}

// Start launches the webhook HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Store == nil {
		return fmt.Errorf("webhook: store is required")
	}
	if opts.Secret == "" {
		return fmt.Errorf("webhook: secret is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: Router(opts.Store, opts.Secret),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Webhook receiver listening on :%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}
