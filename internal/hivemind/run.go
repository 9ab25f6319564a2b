package hivemind

import (
	"context"

	"github.com/kiosk404/hivelink/internal/hivemind/config"
)

// Run runs the specified APIServer until ctx is done.
func Run(ctx context.Context, cfg *config.Config) error {
	server, err := createAPIServer(ctx, cfg, serverDeps{})
	if err != nil {
		return err
	}

	return server.PrepareRun().Run(ctx)
}
