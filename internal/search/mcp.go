package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/comigor/leanchems-go/internal/config"
	"github.com/comigor/leanchems-go/internal/logger"
)

// MCPClientInterface is the part of an MCP client the search provider relies on.
type MCPClientInterface interface {
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// MCP searches by calling a tool exposed by an MCP server. Every text block of the
// tool result, split on blank lines, becomes a snippet.
type MCP struct {
	client MCPClientInterface
	name   string
	tool   string
}

// NewMCP connects to and initializes the configured MCP server.
func NewMCP(ctx context.Context, cfg config.MCPServerConfig) (*MCP, error) {
	var mcpC *client.Client
	var err error

	switch cfg.Type {
	case config.ClientTypeSSE:
		var sseOpts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			sseOpts = append(sseOpts, transport.WithHeaders(cfg.Headers))
		}
		mcpC, err = client.NewSSEMCPClient(cfg.URL, sseOpts...)
	case config.ClientTypeStreamableHTTP:
		var httpOpts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			httpOpts = append(httpOpts, transport.WithHTTPHeaders(cfg.Headers))
		}
		mcpC, err = client.NewStreamableHttpClient(cfg.URL, httpOpts...)
	case config.ClientTypeStdio:
		var env []string
		for k, v := range cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		mcpC, err = client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	case "":
		return nil, errors.New("search: MCP server type not specified ('sse', 'streamable_http' or 'stdio')")
	default:
		return nil, fmt.Errorf("search: unsupported MCP server type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("search: create MCP client: %w", err)
	}

	// stdio clients start their transport on creation
	if cfg.Type != config.ClientTypeStdio {
		if err := mcpC.Start(ctx); err != nil {
			_ = mcpC.Close()
			return nil, fmt.Errorf("search: start MCP transport: %w", err)
		}
	}

	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "leanchems", Version: "1.0.0"},
			Capabilities:    mcp.ClientCapabilities{},
		},
	}
	if _, err := mcpC.Initialize(ctx, initReq); err != nil {
		if cerr := mcpC.Close(); cerr != nil {
			logger.L.Warn("MCP client close error after init failure", "error", cerr)
		}
		return nil, fmt.Errorf("search: initialize MCP client: %w", err)
	}
	logger.L.Info("MCP search server initialized", "name", cfg.Name, "tool", cfg.Tool)

	return NewMCPWithClient(mcpC, cfg.Name, cfg.Tool), nil
}

// NewMCPWithClient wraps an already initialized client.
func NewMCPWithClient(c MCPClientInterface, name, tool string) *MCP {
	return &MCP{client: c, name: name, tool: tool}
}

func (m *MCP) Search(ctx context.Context, query string) ([]string, error) {
	logger.L.Debug("calling MCP search tool", "name", m.name, "tool", m.tool, "query", query)
	res, err := m.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      m.tool,
			Arguments: map[string]any{"query": query},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search: MCP tool %s: %w", m.tool, err)
	}
	if res == nil {
		return nil, nil
	}

	var texts []string
	for _, item := range res.Content {
		if text, ok := item.(mcp.TextContent); ok {
			texts = append(texts, text.Text)
		}
	}
	if res.IsError {
		return nil, fmt.Errorf("search: MCP tool %s reported an error: %s", m.tool, strings.Join(texts, " "))
	}

	var snippets []string
	for _, text := range texts {
		for _, block := range strings.Split(text, "\n\n") {
			if block = strings.TrimSpace(block); block != "" {
				snippets = append(snippets, block)
			}
		}
	}
	return snippets, nil
}

func (m *MCP) Close() error {
	return m.client.Close()
}
