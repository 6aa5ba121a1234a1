package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qmuntal/stateless" // FSM library
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/leanchems-go/internal/config"
	"github.com/comigor/leanchems-go/internal/llm"
	"github.com/comigor/leanchems-go/internal/logger"
	"github.com/comigor/leanchems-go/internal/markdown"
	"github.com/comigor/leanchems-go/internal/prompts"
	"github.com/comigor/leanchems-go/internal/search"
	"github.com/comigor/leanchems-go/internal/session"
)

// FallbackResponse replaces the completion when the provider fails for any reason.
const FallbackResponse = "I'm sorry, I couldn't generate a response right now. Please try again in a moment."

const (
	// DefaultHistoryWindow is how many trailing turns are replayed to the model.
	DefaultHistoryWindow = 6
	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 30 * time.Second
)

// FSM States
type FSMState stateless.State

var (
	StateReadyToCallLLM FSMState = "ReadyToCallLLM"
	StateRendering      FSMState = "Rendering"
	StateFallback       FSMState = "Fallback"
	StateDone           FSMState = "Done" // Terminal: response ready to record
)

// FSM Triggers
type FSMTrigger stateless.Trigger

var (
	TriggerLLMRespondedWithContent FSMTrigger = "LLMRespondedWithContent"
	TriggerErrorOccurred           FSMTrigger = "ErrorOccurred" // any completion failure, including timeouts
	TriggerResponseReady           FSMTrigger = "ResponseReady"
)

// SessionStore is what the agent needs from the session layer.
type SessionStore interface {
	ResolveOrCreate(ctx context.Context, id string) (string, *session.Session)
	Persist(ctx context.Context, token string, sess *session.Session)
	Lock(token string) func()
}

// Agent runs conversation turns: it records history, bounds the context replayed to
// the model, and falls back to a fixed apology when the model is unavailable.
type Agent struct {
	llmClient     llm.Client
	cfg           config.LLMConfig
	store         SessionStore
	renderer      markdown.Renderer
	searcher      search.Provider
	systemPrompt  string
	historyWindow int
	timeout       time.Duration
}

// Option configures an Agent.
type Option func(*Agent)

// WithRenderer replaces the default goldmark renderer.
func WithRenderer(r markdown.Renderer) Option {
	return func(a *Agent) { a.renderer = r }
}

// WithSearch enables web insights on the specialized path.
func WithSearch(p search.Provider) Option {
	return func(a *Agent) { a.searcher = p }
}

// New creates a new agent.
func New(llmClient llm.Client, cfg config.LLMConfig, store SessionStore, opts ...Option) *Agent {
	a := &Agent{
		llmClient:     llmClient,
		cfg:           cfg,
		store:         store,
		renderer:      markdown.New(),
		systemPrompt:  prompts.AdvisorSystemPrompt,
		historyWindow: cfg.HistoryWindow,
		timeout:       cfg.Timeout,
	}
	if cfg.SystemPrompt != "" {
		a.systemPrompt = cfg.SystemPrompt // User-configured prompt overrides default
	}
	if a.historyWindow <= 0 {
		a.historyWindow = DefaultHistoryWindow
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Process handles one user message and returns the session token with the HTML
// response. Completion failures never surface as errors; the returned error is
// reserved for internal faults.
func (a *Agent) Process(ctx context.Context, message, sessionID string) (string, string, error) {
	// Requests for the same session run one at a time so no turn is lost.
	unlock := a.store.Lock(sessionID)
	defer unlock()

	token, sess := a.store.ResolveOrCreate(ctx, sessionID)
	sess.Append(session.RoleUser, message)

	var (
		response string
		failed   bool
	)
	if topics := prompts.Detect(message); len(topics) > 0 {
		logger.L.Info("specialized analysis requested", "session_id", token, "topics", len(topics))
		response, failed = a.assemble(ctx, message, topics)
	} else {
		var err error
		response, failed, err = a.converse(ctx, sess.History)
		if err != nil {
			return "", "", err
		}
	}

	if failed {
		sess.AppendFailed(response)
	} else {
		sess.Append(session.RoleAssistant, response)
	}
	a.store.Persist(ctx, token, sess)

	return token, response, nil
}

// converse answers with the bounded history as context. The turn moves
// ReadyToCallLLM -> Rendering|Fallback -> Done.
func (a *Agent) converse(ctx context.Context, history []session.Turn) (string, bool, error) {
	type turnContext struct {
		raw       string
		response  string
		failed    bool
		lastError error
	}
	tc := &turnContext{}

	fsm := stateless.NewStateMachine(StateReadyToCallLLM)

	fsm.Configure(StateReadyToCallLLM).
		Permit(TriggerLLMRespondedWithContent, StateRendering).
		Permit(TriggerErrorOccurred, StateFallback)

	fsm.Configure(StateRendering).
		OnEntry(func(_ context.Context, _ ...any) error {
			tc.response = a.renderer.Render(tc.raw)
			return nil
		}).
		Permit(TriggerResponseReady, StateDone)

	fsm.Configure(StateFallback).
		OnEntry(func(_ context.Context, _ ...any) error {
			logger.L.Warn("using fallback response", "error", tc.lastError)
			tc.response = FallbackResponse
			tc.failed = true
			return nil
		}).
		Permit(TriggerResponseReady, StateDone)

	raw, err := a.complete(ctx, a.buildContext(history))
	trigger := TriggerLLMRespondedWithContent
	if err != nil {
		tc.lastError = err
		trigger = TriggerErrorOccurred
	} else {
		tc.raw = raw
	}

	if err := fsm.Fire(trigger); err != nil {
		return "", false, fmt.Errorf("turn FSM: %w", err)
	}
	if err := fsm.Fire(TriggerResponseReady); err != nil {
		return "", false, fmt.Errorf("turn FSM: %w", err)
	}

	currentState, err := fsm.State(ctx)
	if err != nil {
		return "", false, fmt.Errorf("turn FSM internal error: %w", err)
	}
	if currentState != StateDone {
		return "", false, fmt.Errorf("turn FSM ended in an unexpected state: %v", currentState)
	}
	return tc.response, tc.failed, nil
}

// buildContext returns the system instruction followed by the last historyWindow
// turns. Older turns stay in the session but are not sent.
func (a *Agent) buildContext(history []session.Turn) []openai.ChatCompletionMessage {
	turns := history
	if a.cfg.ExcludeFailedTurns {
		turns = make([]session.Turn, 0, len(history))
		for _, t := range history {
			if !t.Failed {
				turns = append(turns, t)
			}
		}
	}
	if len(turns) > a.historyWindow {
		turns = turns[len(turns)-a.historyWindow:]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: a.systemPrompt,
	})
	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		if t.Role == session.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	return messages
}

// complete makes exactly one completion call bounded by the configured timeout.
func (a *Agent) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.llmClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Messages:    messages,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.L.Error("LLM call timed out", "timeout", a.timeout)
		} else {
			logger.L.Error("LLM call failed", "error", err)
		}
		return "", err
	}

	content, err := llm.Content(resp)
	if err != nil {
		logger.L.Error("LLM returned no content", "error", err)
		return "", err
	}
	logger.L.Debug("LLM response received", "chars", len(content))
	return content, nil
}
