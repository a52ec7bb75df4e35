// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the MAG library to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/magplayer/magd/internal/magservice"
)

// Server wraps the MCP server with MAG library tools.
type Server struct {
	mcp *server.MCPServer
	svc *magservice.Service
}

// New creates a new MCP server with all library tools registered.
func New(svc *magservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"magd",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_library",
		mcp.WithDescription("Search media items and documents by file name, title, or content (case-insensitive substring)."),
		mcp.WithString("term", mcp.Required(), mcp.Description("Search term")),
	), s.searchLibrary)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full Markdown content of a document by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("list_packages",
		mcp.WithDescription("List every ingested .mag package, newest first."),
	), s.listPackages)

	s.mcp.AddTool(mcp.NewTool("get_package",
		mcp.WithDescription("Get one package with its media items and documents."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Package id")),
	), s.getPackage)

	s.mcp.AddTool(mcp.NewTool("get_relationships",
		mcp.WithDescription("List the relationships originating at a document (files it mentions)."),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Source document id")),
	), s.getRelationships)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchLibrary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	term, err := req.RequireString("term")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.svc.Search(ctx, term)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.GetDocument(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(doc.Content), nil
}

func (s *Server) listPackages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pkgs, err := s.svc.ListPackages(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(pkgs, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getPackage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.GetPackage(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(detail, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getRelationships(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID, err := req.RequireString("source_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rels, err := s.svc.Relationships(ctx, sourceID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(rels) == 0 {
		return mcp.NewToolResultText("no relationships found"), nil
	}
	out, _ := json.MarshalIndent(rels, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
