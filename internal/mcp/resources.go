package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/redline/internal/pipeline"
	"github.com/hurttlocker/redline/internal/store"
)

func registerStatsResource(s *server.MCPServer, cfg ServerConfig) {
	resource := mcp.NewResource(
		"redline://stats",
		"Session Statistics",
		mcp.WithResourceDescription("Current correction session statistics: guide name, rule and chunk counts, embedding dimensions, rules by category."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		sessionMu.Lock()
		defer sessionMu.Unlock()

		payload := map[string]interface{}{
			"session": cfg.Pipeline.Stats(),
		}
		if cfg.Store != nil {
			stats, err := cfg.Store.Stats(ctx)
			if err != nil {
				return nil, fmt.Errorf("getting store stats: %w", err)
			}
			payload["store"] = storePayload(stats)
		}

		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func registerRulesResource(s *server.MCPServer, p *pipeline.Pipeline) {
	resource := mcp.NewResource(
		"redline://rules",
		"Extracted Rules",
		mcp.WithResourceDescription("All correction rules extracted from the currently ingested style guide."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		sessionMu.Lock()
		defer sessionMu.Unlock()

		rs := p.Rules()
		payload := map[string]interface{}{
			"rules": rs,
			"count": len(rs),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func registerGuidesResource(s *server.MCPServer, st *store.Store) {
	resource := mcp.NewResource(
		"redline://guides",
		"Persisted Guides",
		mcp.WithResourceDescription("Style guides persisted in the session database, newest first."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		sessionMu.Lock()
		defer sessionMu.Unlock()

		guides, err := st.ListGuides(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing guides: %w", err)
		}

		type guideInfo struct {
			ID        int64  `json:"id"`
			Name      string `json:"name"`
			EmbedSpec string `json:"embed_spec"`
			Rules     int    `json:"rules"`
			Chunks    int    `json:"chunks"`
			CreatedAt string `json:"created_at"`
		}
		infos := make([]guideInfo, 0, len(guides))
		for _, g := range guides {
			infos = append(infos, guideInfo{
				ID:        g.ID,
				Name:      g.Name,
				EmbedSpec: g.EmbedSpec,
				Rules:     g.Rules,
				Chunks:    g.Chunks,
				CreatedAt: g.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		payload := map[string]interface{}{
			"guides": infos,
			"count":  len(infos),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
