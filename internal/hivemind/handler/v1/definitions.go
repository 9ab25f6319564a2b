package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/service"
	"github.com/kiosk404/hivelink/internal/pkg/core"
	"github.com/kiosk404/hivelink/pkg/errorx"
)

// DefinitionHandler handles agent definition CRUD.
type DefinitionHandler struct {
	svc service.AgentService
}

// NewDefinitionHandler creates a new DefinitionHandler.
func NewDefinitionHandler(svc service.AgentService) *DefinitionHandler {
	return &DefinitionHandler{svc: svc}
}

// Save handles POST /v1/agents. An existing definition with the same name is replaced.
func (h *DefinitionHandler) Save(c *gin.Context) {
	var cfg entity.AgentConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrBind, "bind agent definition"), nil)
		return
	}
	if err := h.svc.SaveDefinition(c.Request.Context(), &cfg); err != nil {
		core.WriteResponse(c, wrapErr(err, ErrDefinitionSave, "save definition %q", cfg.Name), nil)
		return
	}
	core.WriteResponse(c, nil, cfg)
}

// List handles GET /v1/agents.
func (h *DefinitionHandler) List(c *gin.Context) {
	defs, err := h.svc.ListDefinitions(c.Request.Context())
	if err != nil {
		core.WriteResponse(c, wrapErr(err, ErrDefinitionList, "list definitions"), nil)
		return
	}
	if defs == nil {
		defs = []*entity.AgentConfig{}
	}
	core.WriteResponse(c, nil, gin.H{"data": defs})
}

// Get handles GET /v1/agents/:name.
func (h *DefinitionHandler) Get(c *gin.Context) {
	name := c.Param("name")
	def, err := h.svc.GetDefinition(c.Request.Context(), name)
	if err != nil {
		core.WriteResponse(c, wrapErr(err, ErrDefinitionNotFound, "definition %q", name), nil)
		return
	}
	core.WriteResponse(c, nil, def)
}

// Delete handles DELETE /v1/agents/:name.
func (h *DefinitionHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.svc.DeleteDefinition(c.Request.Context(), name); err != nil {
		core.WriteResponse(c, wrapErr(err, ErrDefinitionDelete, "delete definition %q", name), nil)
		return
	}
	core.WriteResponse(c, nil, gin.H{"name": name, "deleted": true})
}
