package search

import (
	"context"
	"encoding/json"
	"fmt"

	duckduckgo "github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino/components/tool"

	"github.com/comigor/leanchems-go/internal/config"
)

const defaultMaxResults = 10

// textSearcher is the part of an eino invokable tool used here.
type textSearcher interface {
	InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error)
}

type textSearchRequest struct {
	Query string `json:"query"`
}

type textSearchResponse struct {
	Message string `json:"message"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Summary string `json:"summary"`
	} `json:"results"`
}

// DuckDuckGo searches through the eino-ext DuckDuckGo text search tool. It needs no
// API key.
type DuckDuckGo struct {
	tool textSearcher
}

// NewDuckDuckGo creates the DuckDuckGo provider.
func NewDuckDuckGo(ctx context.Context, cfg config.SearchConfig) (*DuckDuckGo, error) {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	t, err := duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		ToolName:   "web_search",
		ToolDesc:   "Search the web using DuckDuckGo. Returns titles, URLs, and summaries.",
		MaxResults: maxResults,
		Timeout:    cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("search: init duckduckgo: %w", err)
	}
	return &DuckDuckGo{tool: t}, nil
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]string, error) {
	args, err := json.Marshal(textSearchRequest{Query: query})
	if err != nil {
		return nil, err
	}
	out, err := d.tool.InvokableRun(ctx, string(args))
	if err != nil {
		return nil, fmt.Errorf("search: duckduckgo: %w", err)
	}

	var resp textSearchResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		return nil, fmt.Errorf("search: decode duckduckgo response: %w", err)
	}

	snippets := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Summary != "" {
			snippets = append(snippets, r.Summary)
		}
	}
	return snippets, nil
}

func (d *DuckDuckGo) Close() error { return nil }
