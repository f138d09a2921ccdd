// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the kernscore MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Kernscore Commit Scoring Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
	}

	// --- 1. Tool: get_summary ---
	s.AddTool(mcp.NewTool("get_summary",
		mcp.WithDescription("Summarize the scored commits of a kernel version range, with the top commits by score."),
		mcp.WithString("version_range", mcp.Description("Git revision range that was analyzed, such as v6.17..v6.18."), mcp.Required()),
		mcp.WithString("output_dir", mcp.Description("Directory holding the results (defaults to the configured output dir).")),
		mcp.WithString("company", mcp.Description("Company filter label to report (defaults to the filter stored with the results).")),
		mcp.WithNumber("limit", mcp.Description("Number of top commits to include.")),
	), h.handleGetSummary)

	// --- 2. Tool: get_failures ---
	s.AddTool(mcp.NewTool("get_failures",
		mcp.WithDescription("List commits whose scoring failed for a version range, grouped by error kind."),
		mcp.WithString("version_range", mcp.Description("Git revision range that was analyzed."), mcp.Required()),
		mcp.WithString("output_dir", mcp.Description("Directory holding the failure ledger.")),
	), h.handleGetFailures)

	// --- 3. Tool: classify_tier ---
	s.AddTool(mcp.NewTool("classify_tier",
		mcp.WithDescription("Classify changed file paths into a kernel subsystem criticality tier (1 most critical, 6 least)."),
		mcp.WithString("files", mcp.Description("Comma separated file paths, such as mm/slub.c,include/linux/slab.h."), mcp.Required()),
	), h.handleClassifyTier)

	return s
}

// StartMCPServer starts the kernscore MCP server over stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}
