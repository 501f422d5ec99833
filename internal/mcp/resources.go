// ABOUTME: MCP resource implementations for the health dashboard.
// ABOUTME: Provides health://dashboard (plotly JSON) and health://summary (plain-text context).
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harperreed/healthdash/internal/dashboard"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	dashboardURI = "health://dashboard"
	summaryURI   = "health://summary"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         dashboardURI,
		Name:        "Health Dashboard",
		Description: "The composite dashboard across all subjects as plotly JSON",
		MIMEType:    "application/json",
	}, s.handleDashboardResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         summaryURI,
		Name:        "Health Summary",
		Description: "One line per stored observation: subject - date: value unit",
		MIMEType:    "text/plain",
	}, s.handleSummaryResource)
}

// Resource handlers

func (s *Server) handleDashboardResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	c, err := s.dash.Build(ctx, dashboard.Request{})
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}

	data, err := json.MarshalIndent(dashboardOutput{Composite: c, Figure: c.Plotly()}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      dashboardURI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func (s *Server) handleSummaryResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	text, err := s.dash.Summary(ctx, dashboard.Request{})
	if err != nil {
		return nil, fmt.Errorf("failed to build summary: %w", err)
	}
	if text == "" {
		text = "No observations stored.\n"
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      summaryURI,
			MIMEType: "text/plain",
			Text:     text,
		}},
	}, nil
}
