package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const snapshotURI = "laiwatch://snapshot"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Crawler Crawler
	Version string
}

// NewMCPServer creates an MCP server exposing the crawl controls.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "1.0.0"
	}
	s := server.NewMCPServer(
		"laiwatch",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("laiwatch crawls municipal transparency portals and scores their compliance with the access to information law."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("start_crawl",
			mcp.WithDescription("Start a compliance crawl of a transparency portal. Fails if a crawl is already running."),
			mcp.WithString("url", mcp.Description("Absolute http(s) URL of the portal home page"), mcp.Required()),
		),
		mcpStartCrawl(deps),
	)

	s.AddTool(
		mcp.NewTool("stop_crawl",
			mcp.WithDescription("Request cancellation of the running crawl. Results committed so far are kept."),
		),
		mcpStopCrawl(deps),
	)

	s.AddTool(
		mcp.NewTool("get_snapshot",
			mcp.WithDescription("Return the current crawl state, progress, records, scores and recent log lines as JSON."),
		),
		mcpGetSnapshot(deps),
	)

	s.AddResource(
		mcp.NewResource(
			snapshotURI,
			"Crawl Snapshot",
			mcp.WithResourceDescription("Current crawl snapshot as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSnapshot(deps),
	)

	return s
}

func mcpStartCrawl(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := req.RequireString("url")
		if err != nil {
			return mcpError("url is required"), nil
		}

		runID, err := deps.Crawler.Start(url)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to start crawl: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Started crawl %s of %s", runID, url)), nil
	}
}

func mcpStopCrawl(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !deps.Crawler.Stop() {
			return mcpText("No crawl is running"), nil
		}
		return mcpText("Stop requested"), nil
	}
}

func mcpGetSnapshot(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b, err := json.MarshalIndent(deps.Crawler.Snapshot(), "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal snapshot: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceSnapshot(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if req.Params.URI != snapshotURI {
			return nil, errors.New("unknown resource: " + req.Params.URI)
		}
		b, err := json.Marshal(deps.Crawler.Snapshot())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
