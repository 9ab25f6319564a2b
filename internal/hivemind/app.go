package hivemind

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiosk404/hivelink/internal/hivemind/config"
	"github.com/kiosk404/hivelink/internal/hivemind/options"
	"github.com/kiosk404/hivelink/pkg/logger"
)

const (
	AppName = "hivemind"
)

// NewApp builds the hivemind root command.
func NewApp(basename string) *cobra.Command {
	opts := options.NewOptions()
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   basename,
		Short: "hivemind coordinates agents, their sub-agents and human approvals",
		Long: heredoc.Doc(`
			The hivemind server hosts a main agent and lets it delegate work to
			sub-agents with bounded nesting depth.

			Child agent events are relayed to the parent session, approval requests
			are brokered to a human over HTTP, and every session's events can be
			followed as a server-sent-event stream.

			Configuration is read from hivemind.yaml (., ~/.hivemind, /etc/hivemind),
			HIVEMIND_* environment variables and flags, in increasing priority.`),
		Example: heredoc.Doc(`
			# Serve on all interfaces with a persistent store
			hivemind --serving.bind-address=0.0.0.0 --store.type=boltdb

			# Allow two levels of sub-agents and ask before each spawn
			hivemind --subagents.max-depth=2 --approvals.require-for-spawn`),
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Load(v, cfgFile, opts); err != nil {
				return err
			}
			if err := opts.Complete(); err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return fmt.Errorf("invalid options:\n%w", err)
			}
			return run(cmd.Context(), v, opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfgFile, "config", "c", "", "Read configuration from this file instead of searching for hivemind.yaml.")
	opts.AddFlags(fs)
	_ = v.BindPFlags(fs)

	return cmd
}

func run(ctx context.Context, v *viper.Viper, opts *options.Options) error {
	if err := logger.SetLevel(opts.LogOptions.Level); err != nil {
		return err
	}
	if err := logger.InitLog(opts.LogOptions.Path); err != nil {
		return err
	}
	defer logger.FlushLog()

	cfg, err := config.CreateConfigFromOptions(opts)
	if err != nil {
		return err
	}
	cfg.Watch(v)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("[Hivemind] starting with options %s", opts)
	return Run(ctx, cfg)
}
