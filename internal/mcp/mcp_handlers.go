package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/huangsam/kernscore/core"
	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
}

type summaryResult struct {
	Summary    schema.Summary        `json:"summary"`
	TopCommits []schema.ScoredCommit `json:"top_commits"`
}

type failuresResult struct {
	VersionRange string                      `json:"version_range"`
	Total        int                         `json:"total"`
	ByKind       map[schema.ErrorKind]int    `json:"by_kind"`
	Records      []schema.FailedCommitRecord `json:"records"`
}

type tierResult struct {
	Files             []string `json:"files"`
	Tier              int      `json:"tier"`
	CriticalityPoints int      `json:"criticality_points"`
	SubsystemPrefix   string   `json:"subsystem_prefix"`
	SubsystemsTouched []string `json:"subsystems_touched"`
}

// rangeConfig applies the shared version_range and output_dir arguments.
func (h *toolHandler) rangeConfig(request mcp.CallToolRequest) (*contract.Config, error) {
	cfg := h.baseCfg.Clone()
	cfg.VersionRange = strings.TrimSpace(request.GetString("version_range", ""))
	if cfg.VersionRange == "" {
		return nil, fmt.Errorf("version_range is required")
	}
	if d := request.GetString("output_dir", ""); d != "" {
		cfg.OutputDir = d
	}
	return cfg, nil
}

func (h *toolHandler) handleGetSummary(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.rangeConfig(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := cfg.ResultLimit
	if l := request.GetInt("limit", 0); l > 0 {
		limit = min(l, contract.MaxResultLimit)
	}
	if limit <= 0 {
		limit = contract.DefaultResultLimit
	}

	summary, commits, err := core.LoadSummary(cfg.OutputDir, cfg.VersionRange, request.GetString("company", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("summary failed: %v", err)), nil
	}

	ranked := core.RankByScore(commits)
	result := summaryResult{Summary: summary, TopCommits: ranked[:min(limit, len(ranked))]}
	jsonData, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetFailures(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.rangeConfig(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	records, err := core.LoadLedger(cfg.OutputDir, cfg.VersionRange)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reading failure ledger failed: %v", err)), nil
	}

	result := failuresResult{
		VersionRange: cfg.VersionRange,
		Total:        len(records),
		ByKind:       core.CountFailures(records),
		Records:      records,
	}
	jsonData, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleClassifyTier(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var files []string
	for f := range strings.SplitSeq(request.GetString("files", ""), ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return mcp.NewToolResultError("files must list at least one path"), nil
	}

	tier := core.SubsystemTier(files)
	prefix, touched := core.Subsystems(files)
	result := tierResult{
		Files:             files,
		Tier:              tier,
		CriticalityPoints: core.TierCriticalityPoints(tier),
		SubsystemPrefix:   prefix,
		SubsystemsTouched: touched,
	}
	jsonData, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
