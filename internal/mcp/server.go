// Package mcp provides a Model Context Protocol server for Redline.
//
// It exposes the correction session (style-guide ingestion, document
// correction, retrieval, rule browsing, stats) as MCP tools, and the current
// session state as MCP resources. Stdio transport only; an MCP-capable editor
// or agent drives a session the same way the CLI does.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/redline/internal/pipeline"
	"github.com/hurttlocker/redline/internal/rules"
	"github.com/hurttlocker/redline/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Pipeline  *pipeline.Pipeline
	Store     *store.Store // optional; when set, ingested guides are persisted
	EmbedSpec string       // recorded on persisted guides
	Version   string       // version string for MCP server info
}

// sessionMu serializes all MCP tool calls. The mcp-go library dispatches
// handlers concurrently via goroutines; an ingest must finish (and persist)
// before a concurrent correction or search sees the new index.
var sessionMu sync.Mutex

// NewServer creates a configured MCP server with all Redline tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Redline",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerIngestGuideTool(s, cfg)
	registerCorrectTextTool(s, cfg.Pipeline)
	registerSearchRulesTool(s, cfg.Pipeline)
	registerListRulesTool(s, cfg.Pipeline)
	registerSessionStatsTool(s, cfg)

	registerStatsResource(s, cfg)
	registerRulesResource(s, cfg.Pipeline)
	if cfg.Store != nil {
		registerGuidesResource(s, cfg.Store)
	}

	return s
}

// --- Tools ---

func registerIngestGuideTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("ingest_guide",
		mcp.WithDescription("Process a style guide: split it into sections and chunks, extract correction rules, and build the embedding index. Replaces any previously ingested guide in this session."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Full style-guide text (plain text or Markdown)"),
		),
		mcp.WithString("name",
			mcp.Description("Guide name for stats and persistence. Defaults to 'mcp-guide'."),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionMu.Lock()
		defer sessionMu.Unlock()

		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		if strings.TrimSpace(text) == "" {
			return mcp.NewToolResultError("style guide text cannot be empty"), nil
		}

		name := "mcp-guide"
		if n, err := req.RequireString("name"); err == nil && strings.TrimSpace(n) != "" {
			name = strings.TrimSpace(n)
		}

		res, err := cfg.Pipeline.IngestGuide(ctx, name, text)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("ingest error: %v", err)), nil
		}

		persisted := false
		if cfg.Store != nil {
			snap := cfg.Pipeline.Index().Snapshot()
			dims := cfg.Pipeline.Stats().Dimensions
			if _, err := cfg.Store.SaveGuide(ctx, name, cfg.EmbedSpec, dims, res.Sections, snap); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("saving guide: %v", err)), nil
			}
			persisted = true
		}

		result := map[string]interface{}{
			"name":      res.Name,
			"sections":  res.Sections,
			"chunks":    res.Chunks,
			"rules":     len(res.Rules),
			"persisted": persisted,
			"message":   fmt.Sprintf("Ingested %q: %d sections, %d chunks, %d rules", res.Name, res.Sections, res.Chunks, len(res.Rules)),
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerCorrectTextTool(s *server.MCPServer, p *pipeline.Pipeline) {
	tool := mcp.NewTool("correct_text",
		mcp.WithDescription("Correct document text against the ingested style guide. Returns the corrected text with <change confidence=..>..</change> markers plus a per-paragraph audit trail of deterministic changes and applied rules."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Document text to correct"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionMu.Lock()
		defer sessionMu.Unlock()

		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}

		res, err := p.CorrectDocument(ctx, text)
		if err != nil {
			if errors.Is(err, pipeline.ErrNoStyleGuide) {
				return mcp.NewToolResultError("no style guide has been processed yet — call ingest_guide first"), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("correction error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(res, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSearchRulesTool(s *server.MCPServer, p *pipeline.Pipeline) {
	tool := mcp.NewTool("search_rules",
		mcp.WithDescription("Search the ingested guide's rule and chunk vector spaces. Returns ranked hits with squared distances and confidence scores; rule hits carry pattern and replacement, chunk hits the guide passage."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to search for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum hits per vector space (default: 5, max: 20)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionMu.Lock()
		defer sessionMu.Unlock()

		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		k := 5
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			limit := int(limitVal)
			if limit > 20 {
				limit = 20
			}
			if limit > 0 {
				k = limit
			}
		}

		hits, err := p.Search(ctx, query, k)
		if err != nil {
			if errors.Is(err, pipeline.ErrNoStyleGuide) {
				return mcp.NewToolResultError("no style guide has been processed yet — call ingest_guide first"), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err)), nil
		}
		if hits == nil {
			hits = []pipeline.SearchHit{}
		}

		data, _ := json.MarshalIndent(hits, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerListRulesTool(s *server.MCPServer, p *pipeline.Pipeline) {
	tool := mcp.NewTool("list_rules",
		mcp.WithDescription("List correction rules extracted from the ingested style guide, optionally filtered by category or type."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("category",
			mcp.Description("Filter by category (e.g. 'Formatting', 'Numbers', 'Domain'). Case-insensitive."),
		),
		mcp.WithString("type",
			mcp.Description("Filter by rule type: DIRECT, PATTERN, CONTEXT, MULTI, or CASE. Case-insensitive."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum rules to return (default: 50, max: 200)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionMu.Lock()
		defer sessionMu.Unlock()

		if !p.HasGuide() {
			return mcp.NewToolResultError("no style guide has been processed yet — call ingest_guide first"), nil
		}

		limit := 50
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			l := int(limitVal)
			if l > 200 {
				l = 200
			}
			if l > 0 {
				limit = l
			}
		}

		category := ""
		if c, err := req.RequireString("category"); err == nil {
			category = strings.TrimSpace(c)
		}
		ruleType := ""
		if rt, err := req.RequireString("type"); err == nil {
			ruleType = strings.TrimSpace(rt)
		}

		filtered := rules.Filter(p.Rules(), category, ruleType)
		if len(filtered) > limit {
			filtered = filtered[:limit]
		}

		data, _ := json.MarshalIndent(filtered, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSessionStatsTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("session_stats",
		mcp.WithDescription("Get correction session statistics: guide name, rule and chunk counts, embedding dimensions, rules by category, and persisted-store totals when a database is attached."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionMu.Lock()
		defer sessionMu.Unlock()

		result := map[string]interface{}{
			"session": cfg.Pipeline.Stats(),
		}
		if cfg.Store != nil {
			stats, err := cfg.Store.Stats(ctx)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("store stats error: %v", err)), nil
			}
			result["store"] = storePayload(stats)
		}

		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// storePayload shapes store stats for JSON output.
func storePayload(st *store.Stats) map[string]interface{} {
	return map[string]interface{}{
		"guides":        st.Guides,
		"rules":         st.Rules,
		"chunks":        st.Chunks,
		"db_size_bytes": st.DBSizeBytes,
	}
}
