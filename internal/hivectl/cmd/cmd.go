// Package cmd implements the hivectl commands.
package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiosk404/hivelink/internal/hivectl/client"
)

const (
	flagServer = "server"
	flagToken  = "token"
)

// IOStreams holds the streams commands write to.
type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// Factory builds the API client from the global flags.
type Factory struct {
	v *viper.Viper
}

func (f *Factory) Client() *client.Client {
	return client.New(f.v.GetString(flagServer), f.v.GetString(flagToken))
}

// NewDefaultHivectlCommand creates the `hivectl` command with default arguments.
func NewDefaultHivectlCommand() *cobra.Command {
	return NewHivectlCommand(IOStreams{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr})
}

func NewHivectlCommand(streams IOStreams) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("HIVECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	f := &Factory{v: v}

	cmds := &cobra.Command{
		Use:   "hivectl",
		Short: "hivectl inspects and steers a running hivemind server",
		Long: heredoc.Doc(`
			hivectl is the operator CLI for hivemind.

			It lists the sub-agents working under a session, follows a session's
			event stream and answers the approval requests agents are waiting on.

			The server address and token default to $HIVECTL_SERVER and $HIVECTL_TOKEN.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	cmds.SetIn(streams.In)
	cmds.SetOut(streams.Out)
	cmds.SetErr(streams.ErrOut)

	flags := cmds.PersistentFlags()
	flags.StringP(flagServer, "s", "127.0.0.1:11788", "Address of the hivemind server (host:port or URL).")
	flags.String(flagToken, "", "Bearer token for non-loopback servers.")
	_ = v.BindPFlags(flags)

	cmds.AddCommand(
		newCmdSessions(f, streams),
		newCmdSend(f, streams),
		newCmdEvents(f, streams),
		newCmdSubAgents(f, streams),
		newCmdApprovals(f, streams),
		newCmdRespond(f, streams, true),
		newCmdRespond(f, streams, false),
		newCmdAgents(f, streams),
	)
	return cmds
}
