// Package search fetches short web snippets that back up the specialized analyses.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/comigor/leanchems-go/internal/config"
	"github.com/comigor/leanchems-go/internal/logger"
)

const (
	// NoResults is returned by Summarize when the provider found nothing.
	NoResults = "No relevant web insights found at this time."
	// Unavailable is returned by Summarize when the provider failed.
	Unavailable = "Unable to fetch web insights at this time."

	summaryLabel    = "**Web Insights**: "
	summarySnippets = 3
	summaryMaxChars = 700
)

// Provider returns text snippets for a query. An empty slice is a valid answer.
type Provider interface {
	Search(ctx context.Context, query string) ([]string, error)
	Close() error
}

// New builds the provider selected in cfg.
func New(ctx context.Context, cfg config.SearchConfig) (Provider, error) {
	switch cfg.Provider {
	case "", config.SearchDuckDuckGo:
		return NewDuckDuckGo(ctx, cfg)
	case config.SearchMCP:
		return NewMCP(ctx, cfg.MCP)
	default:
		return nil, fmt.Errorf("search: unknown provider %q", cfg.Provider)
	}
}

// Summarize runs query against p and condenses the first snippets into one labelled
// markdown paragraph. It never fails; provider errors become Unavailable.
func Summarize(ctx context.Context, p Provider, query string) string {
	logger.L.Info("searching web", "query", query)
	snippets, err := p.Search(ctx, query)
	if err != nil {
		logger.L.Error("web search failed", "error", err)
		return Unavailable
	}

	kept := make([]string, 0, summarySnippets)
	for _, s := range snippets {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
		if len(kept) == summarySnippets {
			break
		}
	}
	if len(kept) == 0 {
		logger.L.Debug("no web results found")
		return NoResults
	}

	summary := strings.Join(kept, " ")
	if r := []rune(summary); len(r) > summaryMaxChars {
		summary = string(r[:summaryMaxChars])
	}
	return summaryLabel + summary + "..."
}
