package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/comigor/leanchems-go/internal/config"
)

type stubProvider struct {
	snippets []string
	err      error
	queries  []string
}

func (s *stubProvider) Search(_ context.Context, query string) ([]string, error) {
	s.queries = append(s.queries, query)
	return s.snippets, s.err
}

func (s *stubProvider) Close() error { return nil }

func TestSummarize(t *testing.T) {
	ctx := context.Background()

	p := &stubProvider{snippets: []string{"one.", "", "two.", "three.", "four."}}
	require.Equal(t, "**Web Insights**: one. two. three....", Summarize(ctx, p, "q"))
	require.Equal(t, []string{"q"}, p.queries)

	require.Equal(t, NoResults, Summarize(ctx, &stubProvider{}, "q"))
	require.Equal(t, Unavailable, Summarize(ctx, &stubProvider{err: errors.New("rate limited")}, "q"))
}

func TestSummarize_Truncates(t *testing.T) {
	long := strings.Repeat("é", 1000)
	out := Summarize(context.Background(), &stubProvider{snippets: []string{long}}, "q")

	body := strings.TrimSuffix(strings.TrimPrefix(out, "**Web Insights**: "), "...")
	require.Len(t, []rune(body), 700)
}

type fakeTextSearcher struct {
	args string
	out  string
	err  error
}

func (f *fakeTextSearcher) InvokableRun(_ context.Context, args string, _ ...tool.Option) (string, error) {
	f.args = args
	return f.out, f.err
}

func TestDuckDuckGo_Search(t *testing.T) {
	fake := &fakeTextSearcher{out: `{"message":"ok","results":[
		{"title":"A","url":"https://a","summary":"Alpha summary"},
		{"title":"B","url":"https://b","summary":""},
		{"title":"C","url":"https://c","summary":"Gamma summary"}]}`}
	d := &DuckDuckGo{tool: fake}

	got, err := d.Search(context.Background(), "chemical tracking")
	require.NoError(t, err)
	require.Equal(t, []string{"Alpha summary", "Gamma summary"}, got)
	require.JSONEq(t, `{"query":"chemical tracking"}`, fake.args)
}

func TestDuckDuckGo_Errors(t *testing.T) {
	d := &DuckDuckGo{tool: &fakeTextSearcher{err: errors.New("timeout")}}
	_, err := d.Search(context.Background(), "q")
	require.Error(t, err)

	d = &DuckDuckGo{tool: &fakeTextSearcher{out: "not json"}}
	_, err = d.Search(context.Background(), "q")
	require.Error(t, err)
}

// mockMCPClient mirrors MCPClientInterface.
type mockMCPClient struct {
	CallToolFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	closed       bool
}

func (m *mockMCPClient) CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return m.CallToolFunc(ctx, request)
}

func (m *mockMCPClient) Close() error {
	m.closed = true
	return nil
}

func TestMCP_Search(t *testing.T) {
	mock := &mockMCPClient{
		CallToolFunc: func(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			require.Equal(t, "web_search", request.Params.Name)
			require.Equal(t, map[string]any{"query": "solvents"}, request.Params.Arguments)
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.TextContent{Type: "text", Text: "first result\n\nsecond result"},
					mcp.TextContent{Type: "text", Text: "third result"},
				},
			}, nil
		},
	}
	m := NewMCPWithClient(mock, "search-server", "web_search")

	got, err := m.Search(context.Background(), "solvents")
	require.NoError(t, err)
	require.Equal(t, []string{"first result", "second result", "third result"}, got)

	require.NoError(t, m.Close())
	require.True(t, mock.closed)
}

func TestMCP_ToolError(t *testing.T) {
	m := NewMCPWithClient(&mockMCPClient{
		CallToolFunc: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "quota exceeded"}},
			}, nil
		},
	}, "s", "web_search")

	_, err := m.Search(context.Background(), "q")
	require.ErrorContains(t, err, "quota exceeded")

	m = NewMCPWithClient(&mockMCPClient{
		CallToolFunc: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return nil, errors.New("connection reset")
		},
	}, "s", "web_search")
	_, err = m.Search(context.Background(), "q")
	require.Error(t, err)
	require.Equal(t, Unavailable, Summarize(context.Background(), m, "q"))
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.SearchConfig{Provider: "altavista"})
	require.Error(t, err)
}

func TestNewMCP_RequiresType(t *testing.T) {
	_, err := NewMCP(context.Background(), config.MCPServerConfig{})
	require.Error(t, err)

	_, err = NewMCP(context.Background(), config.MCPServerConfig{Type: "carrier-pigeon"})
	require.Error(t, err)
}
