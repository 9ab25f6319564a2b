package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"

	"github.com/kiosk404/hivelink/internal/pkg/core"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// GenericAPIServer contains state for a hivelink api server.
type GenericAPIServer struct {
	*gin.Engine

	addr            string
	healthz         bool
	enableProfiling bool
	shutdownTimeout time.Duration
	middlewares     []gin.HandlerFunc

	insecureServer *http.Server
}

func initGenericAPIServer(s *GenericAPIServer) {
	s.Setup()
	s.InstallMiddlewares()
	s.InstallAPIs()
}

// Setup logs every registered route in debug mode.
func (s *GenericAPIServer) Setup() {
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {
		logger.Debug("[Server] %-6s %-40s --> %s (%d handlers)", httpMethod, absolutePath, handlerName, nuHandlers)
	}
}

// InstallMiddlewares installs recovery plus the configured middlewares.
func (s *GenericAPIServer) InstallMiddlewares() {
	s.Use(gin.Recovery())
	for _, m := range s.middlewares {
		s.Use(m)
	}
}

// InstallAPIs installs the generic routes: /healthz and, when enabled, /debug/pprof.
func (s *GenericAPIServer) InstallAPIs() {
	if s.healthz {
		s.GET("/healthz", func(c *gin.Context) {
			core.WriteResponse(c, nil, map[string]string{"status": "ok"})
		})
	}
	if s.enableProfiling {
		pprof.Register(s.Engine)
	}
}

// Run listens on the configured address and serves until ctx is done, then drains
// in-flight requests for at most the shutdown timeout.
func (s *GenericAPIServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *GenericAPIServer) Serve(ctx context.Context, ln net.Listener) error {
	s.insecureServer = &http.Server{Handler: s}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[Server] start to listening the incoming requests on http address: %s", ln.Addr())
		errCh <- s.insecureServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("[Server] shutting down http server on %s", ln.Addr())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.insecureServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("[Server] http server on %s stopped", ln.Addr())
	return nil
}
