package cmd

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

func newCmdSessions(f *Factory, streams IOStreams) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Create, list and end primary sessions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List primary sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := f.Client().ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable("ID", "TITLE", "CREATED", "UPDATED")
			for _, s := range sessions {
				t.AddRow(s.ID, orDash(s.Title), s.CreatedAt, s.UpdatedAt)
			}
			printTable(streams.Out, t, "No sessions.")
			return nil
		},
	}

	var title string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a primary session on the main agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := f.Client().CreateSession(cmd.Context(), title)
			if err != nil {
				return err
			}
			fmt.Fprintln(streams.Out, s.ID)
			return nil
		},
	}
	create.Flags().StringVar(&title, "title", "", "Session title. Defaults to the first message.")

	children := &cobra.Command{
		Use:   "children <session-id>",
		Short: "List the sub-agent execution sessions spawned under a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := f.Client().ListChildren(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			t := newTable("ID", "AGENT", "DEPTH", "DESCRIPTION", "CREATED")
			for _, s := range sessions {
				t.AddRow(s.ID, s.AgentID, s.Depth, orDash(s.Description), s.CreatedAt)
			}
			printTable(streams.Out, t, "No child sessions.")
			return nil
		},
	}

	end := &cobra.Command{
		Use:   "end <session-id>",
		Short: "End a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.Client().EndSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(streams.Out, "session %s ended\n", args[0])
			return nil
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <session-id>",
		Short: "Abort the run in flight on a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := f.Client().CancelRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(streams.Out, "session %s has no run in flight\n", args[0])
				return nil
			}
			fmt.Fprintf(streams.Out, "run on %s %s\n", args[0], status("cancelled"))
			return nil
		},
	}

	cmd.AddCommand(list, create, children, end, cancel)
	return cmd
}

func newCmdSend(f *Factory, streams IOStreams) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "send <session-id> <message>...",
		Short: "Send a message to a session and start a run",
		Example: heredoc.Doc(`
			# Ask the main agent and print its events until the run ends
			hivectl send 5f0c... "split this report into sections" --follow`),
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := f.Client()
			if err := c.SendMessage(cmd.Context(), args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			if !follow {
				fmt.Fprintf(streams.Out, "run started on %s\n", args[0])
				return nil
			}
			return followEvents(cmd.Context(), c, streams, args[0], eventFilter{})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Print the session's events until the run ends.")
	return cmd
}
