package v1

import (
	"errors"
	"net/http"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg/errno"
	"github.com/kiosk404/hivelink/pkg/errorx"
)

// Hivemind handler error codes.
// Code format: 1XXYYZ
//   - 1:  module prefix (hivemind handler)
//   - XX: resource group (00=common, 01=session, 02=stream, 03=approval, 04=subagent, 05=definition)
//   - YY: sequential error number
//   - Z:  reserved (0)

const (
	// Common request errors (100xxx).
	ErrBind       = 100001
	ErrValidation = 100002

	// Session errors (1001xx).
	ErrSessionNotFound = 100101
	ErrSessionBusy     = 100102
	ErrSessionCreate   = 100103
	ErrSessionList     = 100104
	ErrSessionEnd      = 100105
	ErrRunStart        = 100106

	// Stream errors (1002xx).
	ErrNoStream = 100201

	// Approval errors (1003xx).
	ErrApprovalNotFound = 100301
	ErrApprovalInvalid  = 100302

	// Sub-agent errors (1004xx).
	ErrSubAgentNotFound  = 100401
	ErrParentNotFound    = 100402
	ErrDepthExceeded     = 100403
	ErrInvalidSubAgent   = 100404
	ErrSubAgentSpawn     = 100405
	ErrSubAgentList      = 100406
	ErrSubAgentAgentGone = 100407

	// Definition errors (1005xx).
	ErrDefinitionNotFound = 100501
	ErrDefinitionSave     = 100502
	ErrDefinitionList     = 100503
	ErrDefinitionDelete   = 100504
)

func init() {
	// Common.
	errorx.MustRegister(newCoder(ErrBind, http.StatusBadRequest, "Request body binding failed"))
	errorx.MustRegister(newCoder(ErrValidation, http.StatusBadRequest, "Request validation failed"))

	// Session.
	errorx.MustRegister(newCoder(ErrSessionNotFound, http.StatusNotFound, "Session not found"))
	errorx.MustRegister(newCoder(ErrSessionBusy, http.StatusConflict, "Session is already running"))
	errorx.MustRegister(newCoder(ErrSessionCreate, http.StatusInternalServerError, "Failed to create session"))
	errorx.MustRegister(newCoder(ErrSessionList, http.StatusInternalServerError, "Failed to list sessions"))
	errorx.MustRegister(newCoder(ErrSessionEnd, http.StatusInternalServerError, "Failed to end session"))
	errorx.MustRegister(newCoder(ErrRunStart, http.StatusInternalServerError, "Failed to start run"))

	// Stream.
	errorx.MustRegister(newCoder(ErrNoStream, http.StatusNotFound, "No active stream for session"))

	// Approval.
	errorx.MustRegister(newCoder(ErrApprovalNotFound, http.StatusNotFound, "Approval not found"))
	errorx.MustRegister(newCoder(ErrApprovalInvalid, http.StatusBadRequest, "Invalid approval response"))

	// Sub-agent.
	errorx.MustRegister(newCoder(ErrSubAgentNotFound, http.StatusNotFound, "Sub-agent not found"))
	errorx.MustRegister(newCoder(ErrParentNotFound, http.StatusNotFound, "Parent session not found"))
	errorx.MustRegister(newCoder(ErrDepthExceeded, http.StatusUnprocessableEntity, "Sub-agent depth exceeded"))
	errorx.MustRegister(newCoder(ErrInvalidSubAgent, http.StatusBadRequest, "Invalid sub-agent config"))
	errorx.MustRegister(newCoder(ErrSubAgentSpawn, http.StatusInternalServerError, "Failed to spawn sub-agent"))
	errorx.MustRegister(newCoder(ErrSubAgentList, http.StatusInternalServerError, "Failed to list sub-agents"))
	errorx.MustRegister(newCoder(ErrSubAgentAgentGone, http.StatusGone, "Agent already stopped"))

	// Definition.
	errorx.MustRegister(newCoder(ErrDefinitionNotFound, http.StatusNotFound, "Agent definition not found"))
	errorx.MustRegister(newCoder(ErrDefinitionSave, http.StatusInternalServerError, "Failed to save agent definition"))
	errorx.MustRegister(newCoder(ErrDefinitionList, http.StatusInternalServerError, "Failed to list agent definitions"))
	errorx.MustRegister(newCoder(ErrDefinitionDelete, http.StatusInternalServerError, "Failed to delete agent definition"))
}

// sentinelCodes maps domain errors to their handler codes. Order matters: the first
// match wins.
var sentinelCodes = []struct {
	err  error
	code int
}{
	{errno.ErrParentNotFound, ErrParentNotFound},
	{errno.ErrSessionNotFound, ErrSessionNotFound},
	{errno.ErrSessionBusy, ErrSessionBusy},
	{errno.ErrNoStreamState, ErrNoStream},
	{errno.ErrApprovalNotFound, ErrApprovalNotFound},
	{errno.ErrInvalidApproval, ErrApprovalInvalid},
	{errno.ErrSubAgentNotFound, ErrSubAgentNotFound},
	{errno.ErrDepthExceeded, ErrDepthExceeded},
	{errno.ErrInvalidSubAgentConfig, ErrInvalidSubAgent},
	{errno.ErrAgentNotFound, ErrDefinitionNotFound},
	{errno.ErrAgentStopped, ErrSubAgentAgentGone},
}

// wrapErr attaches the code of the first known sentinel in err's chain, or fallback.
func wrapErr(err error, fallback int, format string, args ...interface{}) error {
	code := fallback
	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.err) {
			code = sc.code
			break
		}
	}
	return errorx.WrapC(err, code, format, args...)
}

type coder struct {
	code int
	http int
	msg  string
}

func newCoder(code, httpStatus int, msg string) *coder {
	return &coder{code: code, http: httpStatus, msg: msg}
}

func (c *coder) Code() int         { return c.code }
func (c *coder) HTTPStatus() int   { return c.http }
func (c *coder) String() string    { return c.msg }
func (c *coder) Reference() string { return "" }
