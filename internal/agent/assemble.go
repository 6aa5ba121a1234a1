package agent

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/leanchems-go/internal/logger"
	"github.com/comigor/leanchems-go/internal/prompts"
	"github.com/comigor/leanchems-go/internal/search"
)

const fragmentSeparator = "\n\n"

// assemble builds the specialized response: one stateless completion per topic,
// rendered under the topic title and joined in topic order, plus titled web insights
// when search is enabled. A failed topic contributes the bare fallback text. The
// result is marked failed only when every topic call failed.
func (a *Agent) assemble(ctx context.Context, idea string, topics []prompts.Topic) (string, bool) {
	fragments := make([]string, 0, len(topics)+1)
	failures := 0

	for _, topic := range topics {
		raw, err := a.complete(ctx, []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.SpecialistSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: topic.Prompt(idea)},
		})
		if err != nil {
			logger.L.Warn("specialized analysis failed", "topic", topic.Name, "error", err)
			failures++
			fragments = append(fragments, FallbackResponse)
			continue
		}
		fragments = append(fragments, a.section(topic.Title, raw))
	}

	if a.searcher != nil {
		insights := search.Summarize(ctx, a.searcher, prompts.SearchQuery(idea))
		fragments = append(fragments, a.section(prompts.InsightsTitle, insights))
	}

	return strings.Join(fragments, fragmentSeparator), failures == len(topics)
}

// section renders body under a level-3 heading.
func (a *Agent) section(title, body string) string {
	return a.renderer.Render("### " + title + "\n\n" + body)
}
