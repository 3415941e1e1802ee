// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the harvest MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.StoreManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Repository Harvest Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
	}

	// --- 1. Tool: list_repositories ---
	s.AddTool(mcp.NewTool("list_repositories",
		mcp.WithDescription("List analyzed repositories from the results table with per-class quality metrics."),
		mcp.WithString("table", mcp.Description("Path to the results table (defaults to the configured table).")),
		mcp.WithString("sort_by", mcp.Description("Ordering of the results. Defaults to 'stars'."), mcp.Enum(sortKeys...)),
		mcp.WithNumber("min_stars", mcp.Description("Only include repositories with at least this many stars.")),
		mcp.WithNumber("limit", mcp.Description("Limit the number of results returned.")),
	), h.handleListRepositories)

	// --- 2. Tool: get_repository ---
	s.AddTool(mcp.NewTool("get_repository",
		mcp.WithDescription("Get the full record of one repository by owner/name or URL."),
		mcp.WithString("repository", mcp.Description("The owner/name slug or the repository URL."), mcp.Required()),
		mcp.WithString("table", mcp.Description("Path to the results table.")),
	), h.handleGetRepository)

	// --- 3. Tool: table_summary ---
	s.AddTool(mcp.NewTool("table_summary",
		mcp.WithDescription("Summarize the results table: repository statistics and average quality metrics."),
		mcp.WithString("table", mcp.Description("Path to the results table.")),
	), h.handleTableSummary)

	// --- 4. Tool: list_runs ---
	s.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List tracked harvest runs, newest first. Requires a run backend."),
		mcp.WithNumber("limit", mcp.Description("Limit the number of runs returned.")),
	), h.handleListRuns)

	return s
}

// StartMCPServer starts the harvest MCP server over stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.StoreManager) error {
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}
