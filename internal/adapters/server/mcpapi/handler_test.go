package mcpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/hylla/activitytask/internal/adapters/server/common"
	"github.com/hylla/activitytask/internal/app"
	"github.com/hylla/activitytask/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// newEngineAdapter builds a real engine adapter over a small manifest.
func newEngineAdapter(t *testing.T) *common.AppServiceAdapter {
	t.Helper()
	inputs := []domain.DescriptorInput{
		{Component: "Main", TaskAffinity: "app"},
		{Component: "Top", TaskAffinity: "app", LaunchMode: domain.LaunchModeSingleTop},
		{Component: "Share", TaskAffinity: "app", AllowTaskReparenting: true},
		{Component: "Gallery", TaskAffinity: "gallery"},
	}
	descs := make([]domain.ActivityDescriptor, 0, len(inputs))
	for _, in := range inputs {
		desc, err := domain.NewActivityDescriptor(in)
		if err != nil {
			t.Fatalf("NewActivityDescriptor() error = %v", err)
		}
		descs = append(descs, desc)
	}
	reg, err := app.NewDescriptorRegistry(descs)
	if err != nil {
		t.Fatalf("NewDescriptorRegistry() error = %v", err)
	}
	svc := app.NewService(reg, nil, nil, app.ServiceConfig{})
	return common.NewAppServiceAdapter(svc, common.WithPollInterval(time.Millisecond))
}

// newTestServer serves one MCP handler over a fresh engine.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, newEngineAdapter(t))
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "activitytask-test",
				"version": "1.0.0",
			},
		},
	}
}

// callToolResultText decodes the first textual content block from a CallToolResult.
func callToolResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatalf("result = nil, want non-nil")
	}
	if len(result.Content) == 0 {
		t.Fatalf("result content is empty")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] has unexpected type %T", result.Content[0])
	}
	return text.Text
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, newEngineAdapter(t))
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRegistersEngineTools verifies tool discovery lists the engine surface.
func TestHandlerRegistersEngineTools(t *testing.T) {
	server := newTestServer(t)
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, want := range []string{
		"activitytask.launch",
		"activitytask.finish_top",
		"activitytask.reparent",
		"activitytask.relaunch_from_home",
		"activitytask.reset",
		"activitytask.tasks",
		"activitytask.activity_count",
		"activitytask.journal",
	} {
		if !slices.Contains(toolNames, want) {
			t.Fatalf("tool list missing %s: %#v", want, toolNames)
		}
	}
}

// TestHandlerLaunchToolCalls verifies launch outcomes travel through tool calls.
func TestHandlerLaunchToolCalls(t *testing.T) {
	server := newTestServer(t)

	_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(2, "activitytask.launch", map[string]any{
		"component": "Main",
	}))
	launched := toolResultStructured(t, resp.Result)
	if got, _ := launched["outcome"].(string); got != "created" {
		t.Fatalf("outcome = %q, want created", got)
	}

	_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "activitytask.launch", map[string]any{
		"component":    "Top",
		"from_focused": true,
	}))
	_, resp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "activitytask.launch", map[string]any{
		"component":    "Top",
		"from_focused": true,
	}))
	reused := toolResultStructured(t, resp.Result)
	if got, _ := reused["outcome"].(string); got != "reused" {
		t.Fatalf("outcome = %q, want reused", got)
	}

	_, resp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(5, "activitytask.activity_count", map[string]any{
		"wait_for":   2,
		"timeout_ms": 100,
	}))
	count := toolResultStructured(t, resp.Result)
	if got, _ := count["count"].(float64); got != 2 {
		t.Fatalf("count = %v, want 2", got)
	}

	_, resp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(6, "activitytask.finish_top", map[string]any{}))
	finished := toolResultStructured(t, resp.Result)
	record, _ := finished["finished"].(map[string]any)
	if got, _ := record["component"].(string); got != "Top" {
		t.Fatalf("finished component = %q, want Top", got)
	}

	_, resp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(7, "activitytask.tasks", map[string]any{}))
	tasks := toolResultStructured(t, resp.Result)
	rows, _ := tasks["tasks"].([]any)
	if len(rows) != 1 {
		t.Fatalf("tasks = %#v, want one task", tasks)
	}
}

// TestHandlerRelaunchFromHomeToolCall verifies reparenting counts surface through MCP.
func TestHandlerRelaunchFromHomeToolCall(t *testing.T) {
	server := newTestServer(t)

	_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(2, "activitytask.launch", map[string]any{
		"component": "Gallery",
	}))
	_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "activitytask.launch", map[string]any{
		"component":    "Share",
		"from_focused": true,
	}))
	_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "activitytask.relaunch_from_home", map[string]any{
		"component": "Main",
		"flags":     []string{"new_task"},
	}))
	relaunched := toolResultStructured(t, resp.Result)
	if got, _ := relaunched["reparented"].(float64); got != 1 {
		t.Fatalf("reparented = %v, want 1 (%#v)", got, relaunched)
	}
}

// TestHandlerToolCallErrorPaths verifies required-arg and mapped-service errors.
func TestHandlerToolCallErrorPaths(t *testing.T) {
	server := newTestServer(t)

	cases := []struct {
		name       string
		tool       string
		args       map[string]any
		wantPrefix string
	}{
		{"missing component", "activitytask.launch", map[string]any{}, ""},
		{"unknown component", "activitytask.launch", map[string]any{"component": "Ghost"}, "not_found:"},
		{"bad flag", "activitytask.launch", map[string]any{"component": "Main", "flags": []string{"warp"}}, "invalid_request:"},
		{"back without tasks", "activitytask.finish_top", map[string]any{}, "conflict:"},
		{"journal off", "activitytask.journal", map[string]any{}, "not_implemented:"},
		{"wait expires", "activitytask.activity_count", map[string]any{"wait_for": 5, "timeout_ms": 5}, "timeout:"},
	}
	for i, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(10+i, tt.tool, tt.args))
			if isErr, _ := resp.Result["isError"].(bool); !isErr {
				t.Fatalf("isError = false, want true (%#v)", resp.Result)
			}
			if got := toolResultText(t, resp.Result); !strings.HasPrefix(got, tt.wantPrefix) {
				t.Fatalf("text = %q, want prefix %q", got, tt.wantPrefix)
			}
		})
	}
}

// TestNewHandlerRequiresEngine verifies engine dependency enforcement.
func TestNewHandlerRequiresEngine(t *testing.T) {
	handler, err := NewHandler(Config{}, nil)
	if err == nil {
		t.Fatalf("NewHandler() error = nil, want non-nil")
	}
	if handler != nil {
		t.Fatalf("handler = %#v, want nil", handler)
	}
}

// TestNormalizeConfig verifies deterministic MCP config defaults.
func TestNormalizeConfig(t *testing.T) {
	cfg := normalizeConfig(Config{EndpointPath: "tools/"})
	if cfg.ServerName != "activitytask" || cfg.ServerVersion != "dev" {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if cfg.EndpointPath != "/tools" {
		t.Fatalf("endpoint = %q, want /tools", cfg.EndpointPath)
	}
	if got := normalizeConfig(Config{}).EndpointPath; got != "/mcp" {
		t.Fatalf("endpoint = %q, want /mcp", got)
	}
}

// TestHandlerServeHTTPUnavailable verifies nil handlers fail closed.
func TestHandlerServeHTTPUnavailable(t *testing.T) {
	var handler *Handler
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

// TestToolResultFromErrorMapping verifies stable error prefixes.
func TestToolResultFromErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantPrefix string
	}{
		{"nil error", nil, "unknown error"},
		{"invalid", errors.Join(common.ErrInvalidRequest, errors.New("bad")), "invalid_request:"},
		{"not found", errors.Join(common.ErrNotFound, errors.New("missing")), "not_found:"},
		{"conflict", errors.Join(common.ErrConflict, errors.New("empty")), "conflict:"},
		{"timeout", errors.Join(common.ErrTimeout, errors.New("slow")), "timeout:"},
		{"unavailable", errors.Join(common.ErrUnavailable, errors.New("off")), "not_implemented:"},
		{"internal", errors.New("boom"), "internal_error:"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			result := toolResultFromError(tt.err)
			if !result.IsError {
				t.Fatalf("IsError = false, want true")
			}
			if got := callToolResultText(t, result); !strings.HasPrefix(got, tt.wantPrefix) {
				t.Fatalf("text = %q, want prefix %q", got, tt.wantPrefix)
			}
		})
	}
}
