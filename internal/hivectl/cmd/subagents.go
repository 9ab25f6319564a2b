package cmd

import (
	"fmt"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	v1 "github.com/kiosk404/hivelink/internal/hivemind/handler/v1"
)

func newCmdSubAgents(f *Factory, streams IOStreams) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subagents",
		Aliases: []string{"subagent", "sa"},
		Short:   "List, spawn and cancel sub-agents",
	}

	list := &cobra.Command{
		Use:   "list <session-id>",
		Short: "List the sub-agents running under a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			active, err := f.Client().ListSubAgents(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			t := newTable("AGENT ID", "SESSION", "DEPTH", "RUNNING")
			for _, a := range active {
				t.AddRow(a.AgentID, a.SessionID, a.Depth, (time.Duration(a.DurationSeconds) * time.Second).String())
			}
			printTable(streams.Out, t, "No active sub-agents.")
			return nil
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <agent-id>",
		Short: "Cancel a sub-agent's task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := f.Client().CancelSubAgent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(streams.Out, "sub-agent %s had nothing to cancel\n", args[0])
				return nil
			}
			fmt.Fprintf(streams.Out, "sub-agent %s %s\n", args[0], status("cancelled"))
			return nil
		},
	}

	var req v1.SpawnSubAgentRequest
	var timeout time.Duration
	spawn := &cobra.Command{
		Use:   "spawn <session-id> --definition <name> --task <task>",
		Short: "Spawn a sub-agent from a saved definition",
		Example: heredoc.Doc(`
			# Delegate a task to the "researcher" definition
			hivectl subagents spawn 5f0c... --definition researcher --task "collect sources"`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.TimeoutSeconds = int(timeout / time.Second)
			res, err := f.Client().SpawnSubAgent(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			if res.Pending {
				fmt.Fprintf(streams.Out, "spawn %s, approval id %s\n", status("pending"), res.ApprovalID)
				return nil
			}
			fmt.Fprintf(streams.Out, "spawned %s (%s) in session %s at depth %d\n",
				res.Info.AgentID, res.Info.Type, res.Info.SessionID, res.Info.Depth)
			return nil
		},
	}
	spawn.Flags().StringVar(&req.Definition, "definition", "", "Saved agent definition to spawn.")
	spawn.Flags().StringVar(&req.Task, "task", "", "Task for the sub-agent.")
	spawn.Flags().StringVar(&req.Description, "description", "", "Short description shown in listings.")
	spawn.Flags().StringVar(&req.Lifecycle, "lifecycle", "", "ephemeral or persistent. Defaults to the server setting.")
	spawn.Flags().DurationVar(&timeout, "timeout", 0, "Upper bound for the task. 0 uses the server default.")
	_ = spawn.MarkFlagRequired("definition")
	_ = spawn.MarkFlagRequired("task")

	cmd.AddCommand(list, spawn, cancel)
	return cmd
}
