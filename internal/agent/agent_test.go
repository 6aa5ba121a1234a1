package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/leanchems-go/internal/config"
	"github.com/comigor/leanchems-go/internal/logger"
	"github.com/comigor/leanchems-go/internal/prompts"
	"github.com/comigor/leanchems-go/internal/session"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// mockLLM records every request and answers through reply.
type mockLLM struct {
	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
	reply    func(ctx context.Context, r openai.ChatCompletionRequest) (string, error)
}

func (m *mockLLM) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, r)
	m.mu.Unlock()

	content, err := m.reply(ctx, r)
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
		}},
	}, nil
}

func (m *mockLLM) last() openai.ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

func (m *mockLLM) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func replyWith(content string) *mockLLM {
	return &mockLLM{reply: func(context.Context, openai.ChatCompletionRequest) (string, error) {
		return content, nil
	}}
}

func testConfig() config.LLMConfig {
	return config.LLMConfig{
		Model:         "gpt-3.5-turbo",
		MaxTokens:     2000,
		Temperature:   0.6,
		Timeout:       time.Second,
		HistoryWindow: 6,
	}
}

func newTestStore(t *testing.T) *session.Store {
	t.Helper()
	backend, err := session.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	return session.NewStore(backend, time.Hour)
}

func history(t *testing.T, store *session.Store, token string) []session.Turn {
	t.Helper()
	sess, ok := store.Get(token)
	require.True(t, ok, "session %s should exist", token)
	return sess.History
}

func TestProcess_NewSessionRecordsTurns(t *testing.T) {
	llmClient := replyWith("**Hello** there")
	store := newTestStore(t)
	a := New(llmClient, testConfig(), store)

	token, response, err := a.Process(context.Background(), "I want to digitise our inventory", "")
	require.NoError(t, err)
	_, err = uuid.Parse(token)
	require.NoError(t, err)
	require.Contains(t, response, "<strong>Hello</strong>")

	turns := history(t, store, token)
	require.Len(t, turns, 2)
	require.Equal(t, session.Turn{Role: session.RoleUser, Content: "I want to digitise our inventory"}, turns[0])
	require.Equal(t, session.Turn{Role: session.RoleAssistant, Content: response}, turns[1])

	req := llmClient.last()
	require.Equal(t, "gpt-3.5-turbo", req.Model)
	require.Equal(t, 2000, req.MaxTokens)
	require.InDelta(t, 0.6, req.Temperature, 1e-6)
	require.Len(t, req.Messages, 2)
	require.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	require.Equal(t, prompts.AdvisorSystemPrompt, req.Messages[0].Content)
}

func TestProcess_PriorTurnsAreContext(t *testing.T) {
	llmClient := replyWith("noted")
	store := newTestStore(t)
	a := New(llmClient, testConfig(), store)
	ctx := context.Background()

	token, _, err := a.Process(ctx, "My idea is a solvent tracking app", "")
	require.NoError(t, err)
	again, _, err := a.Process(ctx, "What should I build first?", token)
	require.NoError(t, err)
	require.Equal(t, token, again)

	msgs := llmClient.last().Messages
	require.Len(t, msgs, 4)
	require.Equal(t, "My idea is a solvent tracking app", msgs[1].Content)
	require.Equal(t, openai.ChatMessageRoleAssistant, msgs[2].Role)
	require.Equal(t, "What should I build first?", msgs[3].Content)
	require.Len(t, history(t, store, token), 4)
}

func TestProcess_ContextIsBoundedHistoryIsNot(t *testing.T) {
	llmClient := replyWith("ok")
	store := newTestStore(t)
	a := New(llmClient, testConfig(), store)
	ctx := context.Background()

	var token string
	for i := 0; i < 10; i++ {
		var err error
		token, _, err = a.Process(ctx, fmt.Sprintf("message %d", i), token)
		require.NoError(t, err)
	}

	require.Len(t, history(t, store, token), 20)

	msgs := llmClient.last().Messages
	require.Len(t, msgs, 1+6)
	require.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	require.Equal(t, "message 7", msgs[2].Content)
	require.Equal(t, "message 9", msgs[6].Content)
}

func TestProcess_ConfiguredSystemPrompt(t *testing.T) {
	llmClient := replyWith("ok")
	cfg := testConfig()
	cfg.SystemPrompt = "Answer like a pirate."
	a := New(llmClient, cfg, newTestStore(t))

	_, _, err := a.Process(context.Background(), "hi", "")
	require.NoError(t, err)
	require.Equal(t, "Answer like a pirate.", llmClient.last().Messages[0].Content)
}

func TestProcess_FallbackOnProviderError(t *testing.T) {
	llmClient := &mockLLM{reply: func(context.Context, openai.ChatCompletionRequest) (string, error) {
		return "", errors.New("401 invalid api key")
	}}
	store := newTestStore(t)
	a := New(llmClient, testConfig(), store)

	token, response, err := a.Process(context.Background(), "hello", "")
	require.NoError(t, err)
	require.Equal(t, FallbackResponse, response)

	turns := history(t, store, token)
	require.Len(t, turns, 2)
	require.Equal(t, FallbackResponse, turns[1].Content)
	require.True(t, turns[1].Failed)
	require.Equal(t, 1, llmClient.count(), "no retries")
}

func TestProcess_FallbackOnEmptyCompletion(t *testing.T) {
	a := New(replyWith("   "), testConfig(), newTestStore(t))

	_, response, err := a.Process(context.Background(), "hello", "")
	require.NoError(t, err)
	require.Equal(t, FallbackResponse, response)
}

func TestProcess_FallbackOnTimeout(t *testing.T) {
	llmClient := &mockLLM{reply: func(ctx context.Context, _ openai.ChatCompletionRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	a := New(llmClient, cfg, newTestStore(t))

	start := time.Now()
	_, response, err := a.Process(context.Background(), "hello", "")
	require.NoError(t, err)
	require.Equal(t, FallbackResponse, response)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestProcess_FailedTurnsInContext(t *testing.T) {
	fail := true
	llmClient := &mockLLM{reply: func(context.Context, openai.ChatCompletionRequest) (string, error) {
		if fail {
			return "", errors.New("boom")
		}
		return "recovered", nil
	}}

	for _, exclude := range []bool{false, true} {
		t.Run(fmt.Sprintf("exclude=%v", exclude), func(t *testing.T) {
			fail = true
			cfg := testConfig()
			cfg.ExcludeFailedTurns = exclude
			a := New(llmClient, cfg, newTestStore(t))
			ctx := context.Background()

			token, _, err := a.Process(ctx, "first", "")
			require.NoError(t, err)
			fail = false
			_, _, err = a.Process(ctx, "second", token)
			require.NoError(t, err)

			var contents []string
			for _, m := range llmClient.last().Messages[1:] {
				contents = append(contents, m.Content)
			}
			if exclude {
				require.Equal(t, []string{"first", "second"}, contents)
			} else {
				require.Equal(t, []string{"first", FallbackResponse, "second"}, contents)
			}
		})
	}
}

func TestProcess_UnknownSessionGetsNewToken(t *testing.T) {
	a := New(replyWith("ok"), testConfig(), newTestStore(t))

	stale := uuid.NewString()
	token, _, err := a.Process(context.Background(), "hello", stale)
	require.NoError(t, err)
	require.NotEqual(t, stale, token)
}

func TestProcess_ConcurrentTurnsOnOneSession(t *testing.T) {
	llmClient := &mockLLM{reply: func(context.Context, openai.ChatCompletionRequest) (string, error) {
		time.Sleep(time.Millisecond)
		return "ok", nil
	}}
	store := newTestStore(t)
	a := New(llmClient, testConfig(), store)
	ctx := context.Background()

	token, _, err := a.Process(ctx, "start", "")
	require.NoError(t, err)

	type result struct {
		token string
		err   error
	}
	const workers = 10
	results := make(chan result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, _, err := a.Process(ctx, fmt.Sprintf("parallel %d", i), token)
			results <- result{token: got, err: err}
		}(i)
	}
	wg.Wait()
	close(results)

	for r := range results {
		require.NoError(t, r.err)
		require.Equal(t, token, r.token)
	}

	turns := history(t, store, token)
	require.Len(t, turns, 2+2*workers)
	for i := 0; i < len(turns); i += 2 {
		require.Equal(t, session.RoleUser, turns[i].Role)
		require.Equal(t, session.RoleAssistant, turns[i+1].Role)
	}
}

func TestProcess_SessionSurvivesNewStoreOnSameBackend(t *testing.T) {
	dir := t.TempDir()
	backend, err := session.NewFileBackend(dir)
	require.NoError(t, err)
	a := New(replyWith("ok"), testConfig(), session.NewStore(backend, time.Hour))

	token, _, err := a.Process(context.Background(), "remember me", "")
	require.NoError(t, err)

	reloaded := session.NewStore(backend, time.Hour)
	reloaded.LoadAll(context.Background())
	turns := history(t, reloaded, token)
	require.Len(t, turns, 2)
	require.True(t, strings.Contains(turns[0].Content, "remember me"))
}
