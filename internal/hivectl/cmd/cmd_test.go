package cmd

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/gin-contrib/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/hivelink/pkg/utils/json"
)

func init() {
	color.NoColor = true
}

// fakeHivemind records requests and answers from a path table.
type fakeHivemind struct {
	routes   map[string]string
	requests []string
	bodies   []map[string]any
}

func (f *fakeHivemind) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	f.requests = append(f.requests, key)
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			var body map[string]any
			_ = json.Unmarshal(data, &body)
			f.bodies = append(f.bodies, body)
		}
	}
	resp, ok := f.routes[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":100101,"message":"Session not found"}`)
		return
	}
	if strings.HasSuffix(r.URL.Path, "/events") {
		w.Header().Set("Content-Type", "text/event-stream")
	}
	_, _ = io.WriteString(w, resp)
}

func run(t *testing.T, fake *fakeHivemind, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	var out bytes.Buffer
	cmd := NewHivectlCommand(IOStreams{In: strings.NewReader(""), Out: &out, ErrOut: io.Discard})
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSubAgentsList(t *testing.T) {
	fake := &fakeHivemind{routes: map[string]string{
		"GET /v1/sessions/s1/subagents": `{"data":[{"agent_id":"a1","session_id":"c1","depth":1,"duration_seconds":75}]}`,
	}}

	out, err := run(t, fake, "subagents", "list", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "AGENT ID")
	assert.Contains(t, out, "a1")
	assert.Contains(t, out, "1m15s")
}

func TestSubAgentsList_Empty(t *testing.T) {
	fake := &fakeHivemind{routes: map[string]string{
		"GET /v1/sessions/s1/subagents": `{"data":[]}`,
	}}

	out, err := run(t, fake, "subagents", "list", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "No active sub-agents.")
}

func TestApproveWithRemember(t *testing.T) {
	fake := &fakeHivemind{routes: map[string]string{
		"POST /v1/approvals/ap1": `{"approval_id":"ap1","status":"approved","remembered":true}`,
	}}

	out, err := run(t, fake, "approve", "ap1", "--remember", "-m", "go ahead")
	require.NoError(t, err)
	assert.Contains(t, out, "approval ap1 approved")

	require.Len(t, fake.bodies, 1)
	assert.Equal(t, "approved", fake.bodies[0]["status"])
	assert.Equal(t, true, fake.bodies[0]["remember"])
	assert.Equal(t, "go ahead", fake.bodies[0]["message"])
}

func TestDeny(t *testing.T) {
	fake := &fakeHivemind{routes: map[string]string{
		"POST /v1/approvals/ap2": `{"approval_id":"ap2","status":"denied"}`,
	}}

	_, err := run(t, fake, "deny", "ap2")
	require.NoError(t, err)
	assert.Equal(t, "denied", fake.bodies[0]["status"])
	_, hasRemember := fake.bodies[0]["remember"]
	assert.False(t, hasRemember)
}

func TestApprovalsList(t *testing.T) {
	fake := &fakeHivemind{routes: map[string]string{
		"GET /v1/approvals": `{"data":[{"approval_id":"ap1","session_id":"s1","type":"subagent_spawn","metadata":{"tool_name":"spawn_agent"},"created_at":"2026-01-01T00:00:00Z"}]}`,
	}}

	out, err := run(t, fake, "approvals", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ap1")
	assert.Contains(t, out, "subagent_spawn")
	assert.Equal(t, []string{"GET /v1/approvals"}, fake.requests)
}

func TestEvents_PrintsAndFilters(t *testing.T) {
	fake := &fakeHivemind{routes: map[string]string{
		"GET /v1/sessions/s1/events": "event: run:started\ndata: {\"sessionId\":\"s1\",\"fromSubAgent\":true,\"subAgentType\":\"helper\"}\n\n" +
			"event: subagent:result\ndata: {\"agent_id\":\"a1\",\"output\":\"42\"}\n\n",
	}}

	out, err := run(t, fake, "events", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "[sub:helper] run:started")
	assert.Contains(t, out, "subagent:result a1 42")

	out, err = run(t, fake, "events", "s1", "--only", "subagent:result")
	require.NoError(t, err)
	assert.NotContains(t, out, "run:started")
	assert.Contains(t, out, "subagent:result")
}

func TestAPIErrorIsReturned(t *testing.T) {
	_, err := run(t, &fakeHivemind{}, "subagents", "list", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Session not found")
}

func TestFormatEvent_Raw(t *testing.T) {
	got := formatEvent(sse.Event{Event: "done", Data: `{"content":"x"}`}, true)
	assert.Equal(t, `done {"content":"x"}`, got)
}
