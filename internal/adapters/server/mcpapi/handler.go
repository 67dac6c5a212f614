// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hylla/activitytask/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the launch engine as tools.
func NewHandler(cfg Config, engine common.EngineService) (*Handler, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerLaunchTools(mcpSrv, engine)
	registerNavigationTools(mcpSrv, engine)
	registerQueryTools(mcpSrv, engine)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "activitytask"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerLaunchTools registers `activitytask.launch` and `activitytask.relaunch_from_home`.
func registerLaunchTools(srv *mcpserver.MCPServer, engine common.LaunchService) {
	srv.AddTool(
		mcp.NewTool(
			"activitytask.launch",
			mcp.WithDescription("Launch one declared component and return the settled task topology."),
			mcp.WithString("component", mcp.Required(), mcp.Description("Component identifier from the manifest")),
			mcp.WithArray("flags", mcp.Description("Intent flags such as new_task, clear_top, clear_task, single_top, reset_task_if_needed"), mcp.WithStringItems()),
			mcp.WithNumber("caller_task_id", mcp.Description("Launching task id; omit for no caller")),
			mcp.WithBoolean("from_focused", mcp.Description("Use the focused task as caller")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			component, err := req.RequireString("component")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			resp, err := engine.Launch(ctx, common.LaunchRequest{
				Component:    component,
				Flags:        req.GetStringSlice("flags", nil),
				CallerTaskID: req.GetInt("caller_task_id", 0),
				FromFocused:  req.GetBool("from_focused", false),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return toolResultJSON(resp)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"activitytask.relaunch_from_home",
			mcp.WithDescription("Return to home, run a reparenting pass, then launch without a caller task."),
			mcp.WithString("component", mcp.Required(), mcp.Description("Component identifier from the manifest")),
			mcp.WithArray("flags", mcp.Description("Intent flags for the relaunch"), mcp.WithStringItems()),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			component, err := req.RequireString("component")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			resp, err := engine.RelaunchFromHome(ctx, common.RelaunchRequest{
				Component: component,
				Flags:     req.GetStringSlice("flags", nil),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return toolResultJSON(resp)
		},
	)
}

// registerNavigationTools registers back navigation, reparenting, and reset tools.
func registerNavigationTools(srv *mcpserver.MCPServer, engine common.LaunchService) {
	srv.AddTool(
		mcp.NewTool(
			"activitytask.finish_top",
			mcp.WithDescription("Finish the frontmost activity of the focused task, like a back navigation."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			resp, err := engine.FinishTop(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return toolResultJSON(resp)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"activitytask.reparent",
			mcp.WithDescription("Move every reparentable activity to the task of its own affinity."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			resp, err := engine.Reparent(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return toolResultJSON(resp)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"activitytask.reset",
			mcp.WithDescription("Finish every activity and destroy every task."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			resp, err := engine.Reset(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return toolResultJSON(resp)
		},
	)
}

// registerQueryTools registers read-only topology and journal tools.
func registerQueryTools(srv *mcpserver.MCPServer, engine common.EngineService) {
	srv.AddTool(
		mcp.NewTool(
			"activitytask.tasks",
			mcp.WithDescription("List every task, most-recently-focused first, with stacks bottom-to-top."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			resp, err := engine.Tasks(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return toolResultJSON(resp)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"activitytask.activity_count",
			mcp.WithDescription("Return the number of live activities, optionally waiting for a target count."),
			mcp.WithNumber("wait_for", mcp.Description("Target count to wait for")),
			mcp.WithNumber("timeout_ms", mcp.Description("Wait bound in milliseconds")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			in := common.ActivityCountRequest{
				Timeout: time.Duration(req.GetInt("timeout_ms", 0)) * time.Millisecond,
			}
			if _, ok := req.GetArguments()["wait_for"]; ok {
				want := req.GetInt("wait_for", 0)
				in.WaitFor = &want
			}
			resp, err := engine.ActivityCount(ctx, in)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return toolResultJSON(resp)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"activitytask.journal",
			mcp.WithDescription("List the latest journaled lifecycle events of this run."),
			mcp.WithNumber("limit", mcp.Description("Maximum events to return")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			events, err := engine.Journal(ctx, req.GetInt("limit", 50))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return toolResultJSON(map[string]any{"events": events})
		},
	)
}

// toolResultJSON wraps one payload as a structured tool result.
func toolResultJSON(payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return result, nil
}

// toolResultFromError maps adapter errors into stable tool error prefixes.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrTimeout):
		return mcp.NewToolResultError("timeout: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("not_implemented: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
