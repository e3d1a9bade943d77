// Package mcp exposes the notification pipeline as a Model Context Protocol
// server: splitting pasted text, submitting it to the bitable, and reading
// back the processing history. Served over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vgh186/feishu/internal/dispatch"
	"github.com/vgh186/feishu/internal/history"
	"github.com/vgh186/feishu/internal/segment"
)

// DefaultHistoryLimit caps list_history when no limit is given.
const DefaultHistoryLimit = 20

// Processor runs a batch of notifications.
type Processor interface {
	Process(ctx context.Context, text string, opts dispatch.Options) *dispatch.Report
}

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Dispatcher Processor
	History    history.Store // optional; list_history reports an error when nil
	Version    string
}

// NewServer creates a configured MCP server with all tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"feishu-notify",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	// mu serializes the handlers of this server. mcp-go dispatches them
	// concurrently and submit and list_history both touch the history store.
	mu := &sync.Mutex{}

	registerSplitTool(s)
	registerSubmitTool(s, mu, cfg.Dispatcher)
	registerHistoryTool(s, mu, cfg.History)
	registerRecentHistoryResource(s, mu, cfg.History)

	return s
}

// ServeStdio runs the server on stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

type splitResult struct {
	Count         int      `json:"count"`
	Notifications []string `json:"notifications"`
}

func registerSplitTool(s *server.MCPServer) {
	tool := mcp.NewTool("split_notifications",
		mcp.WithDescription("Split a block of pasted school notices into individual notifications without calling the model or writing anything."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Raw pasted text containing one or more notifications"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		spans := segment.Split(text)
		if spans == nil {
			spans = []string{}
		}
		data, _ := json.MarshalIndent(splitResult{Count: len(spans), Notifications: spans}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

type submitResult struct {
	*dispatch.Report
	Summary string `json:"summary"`
}

func registerSubmitTool(s *server.MCPServer, mu *sync.Mutex, d Processor) {
	tool := mcp.NewTool("submit_notifications",
		mcp.WithDescription("Split pasted notices, extract title, summary and deadline for each, and write them to the Feishu bitable. Returns a per-notification report and the batch tally."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Raw pasted text containing one or more notifications"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Extract and assemble records without writing to Feishu or history (default false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		mu.Lock()
		defer mu.Unlock()

		if d == nil {
			return mcp.NewToolResultError("dispatcher not configured"), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		if strings.TrimSpace(text) == "" {
			return mcp.NewToolResultError("text cannot be empty"), nil
		}

		report := d.Process(ctx, text, dispatch.Options{DryRun: req.GetBool("dry_run", false)})
		data, _ := json.MarshalIndent(submitResult{Report: report, Summary: report.Summary()}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerHistoryTool(s *server.MCPServer, mu *sync.Mutex, st history.Store) {
	tool := mcp.NewTool("list_history",
		mcp.WithDescription("List processed notifications, newest first, with their write status."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum entries to return (default %d, 0 = all)", DefaultHistoryLimit)),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		mu.Lock()
		defer mu.Unlock()

		if st == nil {
			return mcp.NewToolResultError("history store not configured"), nil
		}
		limit := req.GetInt("limit", DefaultHistoryLimit)
		if limit < 0 {
			return mcp.NewToolResultError("limit must be >= 0"), nil
		}
		entries, err := st.List(ctx, history.ListOpts{Limit: limit})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("history error: %v", err)), nil
		}
		if entries == nil {
			entries = []history.Entry{}
		}
		data, _ := json.MarshalIndent(entries, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRecentHistoryResource(s *server.MCPServer, mu *sync.Mutex, st history.Store) {
	if st == nil {
		return
	}
	resource := mcp.NewResource(
		"feishu-notify://history/recent",
		"Recent Notifications",
		mcp.WithResourceDescription("The most recently processed notifications and their write status."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		mu.Lock()
		defer mu.Unlock()

		entries, err := st.List(ctx, history.ListOpts{Limit: DefaultHistoryLimit})
		if err != nil {
			return nil, fmt.Errorf("reading history: %w", err)
		}
		if entries == nil {
			entries = []history.Entry{}
		}
		data, _ := json.MarshalIndent(entries, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
