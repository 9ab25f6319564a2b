package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	v1 "github.com/kiosk404/hivelink/internal/hivemind/handler/v1"
	"github.com/kiosk404/hivelink/pkg/utils/json"
)

func newCmdApprovals(f *Factory, streams IOStreams) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "approvals",
		Aliases: []string{"approval"},
		Short:   "List and cancel pending approvals",
	}

	list := &cobra.Command{
		Use:   "list [session-id]",
		Short: "List pending approvals, optionally for one session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sessionID string
			if len(args) == 1 {
				sessionID = args[0]
			}
			pending, err := f.Client().ListApprovals(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			t := newTable("APPROVAL ID", "SESSION", "TYPE", "EXPIRES", "DETAILS")
			for _, a := range pending {
				details, _ := json.MarshalString(a.Metadata)
				t.AddRow(a.ApprovalID, a.SessionID, yellow.Sprint(a.Type), orDash(a.ExpiresAt), details)
			}
			printTable(streams.Out, t, "No pending approvals.")
			return nil
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <approval-id>",
		Short: "Cancel a pending approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.Client().CancelApproval(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(streams.Out, "approval %s %s\n", args[0], status("cancelled"))
			return nil
		},
	}

	cmd.AddCommand(list, cancel)
	return cmd
}

// newCmdRespond builds `approve` or `deny`.
func newCmdRespond(f *Factory, streams IOStreams, approve bool) *cobra.Command {
	use, verb := "deny", "denied"
	if approve {
		use, verb = "approve", "approved"
	}

	var req v1.ApprovalResponseRequest
	cmd := &cobra.Command{
		Use:   use + " <approval-id>",
		Short: fmt.Sprintf("Mark a pending approval as %s", verb),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Status = verb
			if err := f.Client().RespondApproval(cmd.Context(), args[0], req); err != nil {
				return err
			}
			fmt.Fprintf(streams.Out, "approval %s %s\n", args[0], status(verb))
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Message, "message", "m", "", "Message passed back to the agent.")
	if approve {
		cmd.Flags().BoolVar(&req.Remember, "remember", false, "Trust requests of the same kind for the rest of the session.")
	}
	return cmd
}
