package hivemind

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/kiosk404/hivelink/internal/hivemind/handler/v1"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/service"
	"github.com/kiosk404/hivelink/internal/hivemind/service/stream"
)

// routerDeps holds the dependencies needed for route registration.
type routerDeps struct {
	agentService service.AgentService
	streams      *stream.Manager
}

func initRouter(g *gin.Engine, deps *routerDeps) {
	installController(g, deps)
}

func installController(g *gin.Engine, deps *routerDeps) {
	sessionHandler := v1.NewSessionHandler(deps.agentService)
	eventHandler := v1.NewEventHandler(deps.streams)
	approvalHandler := v1.NewApprovalHandler(deps.agentService)
	subAgentHandler := v1.NewSubAgentHandler(deps.agentService)
	definitionHandler := v1.NewDefinitionHandler(deps.agentService)

	apiV1 := g.Group("/v1")
	{
		// Primary sessions and runs.
		apiV1.POST("/sessions", sessionHandler.Create)
		apiV1.GET("/sessions", sessionHandler.List)
		apiV1.GET("/sessions/:id", sessionHandler.Get)
		apiV1.DELETE("/sessions/:id", sessionHandler.Delete)
		apiV1.POST("/sessions/:id/reset", sessionHandler.Reset)
		apiV1.POST("/sessions/:id/messages", sessionHandler.SendMessage)
		apiV1.POST("/sessions/:id/cancel", sessionHandler.Cancel)
		apiV1.GET("/sessions/:id/children", sessionHandler.Children)
		apiV1.GET("/sessions/:id/events", eventHandler.Stream)

		// Approvals.
		apiV1.GET("/approvals", approvalHandler.List)
		apiV1.GET("/sessions/:id/approvals", approvalHandler.List)
		apiV1.POST("/approvals/:id", approvalHandler.Respond)
		apiV1.DELETE("/approvals/:id", approvalHandler.Cancel)

		// Sub-agents.
		apiV1.POST("/sessions/:id/subagents", subAgentHandler.Spawn)
		apiV1.GET("/sessions/:id/subagents", subAgentHandler.List)
		apiV1.DELETE("/subagents/:id", subAgentHandler.Cancel)

		// Agent definitions.
		apiV1.POST("/agents", definitionHandler.Save)
		apiV1.GET("/agents", definitionHandler.List)
		apiV1.GET("/agents/:name", definitionHandler.Get)
		apiV1.DELETE("/agents/:name", definitionHandler.Delete)
	}
}
