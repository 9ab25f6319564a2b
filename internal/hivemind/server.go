package hivemind

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kiosk404/hivelink/internal/hivemind/config"
	"github.com/kiosk404/hivelink/internal/hivemind/handler/middleware"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/service/runtime"
	genericapiserver "github.com/kiosk404/hivelink/internal/pkg/server"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// moduleCloseTimeout bounds agent teardown after the http server stopped.
const moduleCloseTimeout = 30 * time.Second

type apiServer struct {
	genericAPIServer *genericapiserver.GenericAPIServer
	agentsModule     *agents.Module
}

type preparedAPIServer struct {
	*apiServer
}

// serverDeps lets tests swap the model behind the agents.
type serverDeps struct {
	models runtime.ModelBuilder
}

func createAPIServer(ctx context.Context, cfg *config.Config, deps serverDeps) (*apiServer, error) {
	genericConfig, err := buildGenericConfig(cfg)
	if err != nil {
		return nil, err
	}
	genericServer, err := genericConfig.Complete().New()
	if err != nil {
		return nil, err
	}

	agentsModule, err := cfg.AgentsConfig().Complete().New(ctx, agents.Dependencies{
		Limits: cfg.Limits(),
		Models: deps.models,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize agents module: %w", err)
	}
	logger.Info("[Hivemind] agents module initialized (main agent %q, store %s)",
		cfg.AgentOptions.Main.Name, cfg.StoreOptions.Type)

	return &apiServer{
		genericAPIServer: genericServer,
		agentsModule:     agentsModule,
	}, nil
}

func buildGenericConfig(cfg *config.Config) (*genericapiserver.Config, error) {
	genericConfig := genericapiserver.NewConfig()
	if err := cfg.ApplyTo(genericConfig); err != nil {
		return nil, err
	}
	genericConfig.Middlewares = []gin.HandlerFunc{middleware.BearerAuth(cfg.AuthOptions.Config())}
	return genericConfig, nil
}

func (s *apiServer) PrepareRun() preparedAPIServer {
	initRouter(s.genericAPIServer.Engine, &routerDeps{
		agentService: s.agentsModule.Service,
		streams:      s.agentsModule.Streams,
	})
	return preparedAPIServer{s}
}

// Run serves until ctx is done, then tears the agents down.
func (s preparedAPIServer) Run(ctx context.Context) error {
	serveErr := s.genericAPIServer.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), moduleCloseTimeout)
	defer cancel()
	closeErr := s.agentsModule.Close(closeCtx)
	if closeErr != nil {
		logger.Warn("[Hivemind] agents module closed with errors: %v", closeErr)
	}
	return errors.Join(serveErr, closeErr)
}
