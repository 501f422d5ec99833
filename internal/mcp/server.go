// ABOUTME: MCP server setup for the health dashboard.
// ABOUTME: Wraps the MCP server with repository and dashboard access.
package mcp

import (
	"context"
	"fmt"

	"github.com/harperreed/healthdash/internal/dashboard"
	"github.com/harperreed/healthdash/internal/storage"
	"github.com/harperreed/healthdash/internal/telemetry"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Options configure the MCP server.
type Options struct {
	// Subject is used by tools that are not given one.
	Subject string
	Metrics *telemetry.Manager
}

// Server wraps the MCP server with storage access.
type Server struct {
	mcpServer *mcp.Server
	repo      storage.Repository
	dash      *dashboard.Service
	opts      Options
}

// NewServer creates a new MCP server over repo and dash.
func NewServer(repo storage.Repository, dash *dashboard.Service, opts Options) (*Server, error) {
	if repo == nil || dash == nil {
		return nil, fmt.Errorf("mcp server needs a repository and a dashboard")
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "healthdash",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		repo:      repo,
		dash:      dash,
		opts:      opts,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
