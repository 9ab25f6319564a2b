package subagent

import (
	"context"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// maxDepthWalk bounds the parent-chain walk regardless of the configured depth.
const maxDepthWalk = 64

// sessionDepth counts the parent links above sessionID. The walk stops at the first
// missing or unreadable link, on a repeated session, or after maxDepthWalk steps.
func sessionDepth(ctx context.Context, sessions SessionManager, sessionID string) int {
	depth := 0
	visited := map[string]struct{}{sessionID: {}}
	cur := sessionID

	for depth < maxDepthWalk {
		meta, err := sessions.GetSessionMetadata(ctx, cur)
		if err != nil || meta == nil || meta.ParentSessionID == "" {
			return depth
		}
		if _, seen := visited[meta.ParentSessionID]; seen {
			logger.WarnX(pkg.SubAgentModuleName, "[SubAgent] parent chain of %s loops at %s, stopping at depth %d", sessionID, meta.ParentSessionID, depth)
			return depth
		}
		visited[meta.ParentSessionID] = struct{}{}
		depth++
		cur = meta.ParentSessionID
	}

	logger.WarnX(pkg.SubAgentModuleName, "[SubAgent] parent chain of %s exceeds %d links", sessionID, maxDepthWalk)
	return depth
}
