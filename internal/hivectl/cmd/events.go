package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/gg/gslice"
	"github.com/gin-contrib/sse"
	"github.com/spf13/cobra"

	"github.com/kiosk404/hivelink/internal/hivectl/client"
	"github.com/kiosk404/hivelink/pkg/utils/json"
)

type eventFilter struct {
	only []string
	raw  bool
}

func (f eventFilter) match(name string) bool {
	return len(f.only) == 0 || gslice.Contains(f.only, name)
}

func newCmdEvents(f *Factory, streams IOStreams) *cobra.Command {
	var filter eventFilter
	cmd := &cobra.Command{
		Use:   "events <session-id>",
		Short: "Follow a session's event stream",
		Long: `Follow a session's event stream until its run ends. Events relayed from
sub-agents are prefixed with the sub-agent type.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return followEvents(cmd.Context(), f.Client(), streams, args[0], filter)
		},
	}
	cmd.Flags().StringSliceVar(&filter.only, "only", nil, "Only print these event names, e.g. --only approval:request,subagent:result.")
	cmd.Flags().BoolVar(&filter.raw, "raw", false, "Print event data unmodified.")
	return cmd
}

func followEvents(ctx context.Context, c *client.Client, streams IOStreams, sessionID string, filter eventFilter) error {
	return c.Events(ctx, sessionID, func(ev sse.Event) bool {
		if filter.match(ev.Event) {
			fmt.Fprintln(streams.Out, formatEvent(ev, filter.raw))
		}
		return true
	})
}

// formatEvent renders one event as "<name> <summary>".
func formatEvent(ev sse.Event, raw bool) string {
	data, _ := ev.Data.(string)
	if raw {
		return cyan.Sprint(ev.Event) + " " + data
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return cyan.Sprint(ev.Event) + " " + data
	}

	var b strings.Builder
	if from, _ := fields["fromSubAgent"].(bool); from {
		fmt.Fprintf(&b, "[sub:%v] ", fields["subAgentType"])
	}
	b.WriteString(cyan.Sprint(ev.Event))
	if s := summarize(ev.Event, fields); s != "" {
		b.WriteString(" ")
		b.WriteString(s)
	}
	return b.String()
}

func summarize(name string, f map[string]any) string {
	str := func(k string) string {
		v, _ := f[k].(string)
		return v
	}
	switch name {
	case "text_delta":
		return fmt.Sprintf("%q", str("delta"))
	case "run_status":
		return status(str("run_status"))
	case "done":
		return str("content")
	case "error":
		return red.Sprint(str("message"))
	case "approval:request":
		return fmt.Sprintf("%s %s", str("approval_id"), yellow.Sprint(str("type")))
	case "approval:response":
		return fmt.Sprintf("%s %s", str("approval_id"), status(str("status")))
	case "session:title-updated":
		return fmt.Sprintf("%q", str("title"))
	case "subagent:result":
		if e := str("error"); e != "" {
			return fmt.Sprintf("%s %s", orDash(str("agent_id")), red.Sprint(e))
		}
		return fmt.Sprintf("%s %s", str("agent_id"), str("output"))
	}
	return ""
}
