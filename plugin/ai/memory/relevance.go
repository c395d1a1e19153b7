package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/CaptainCrouton89/iagent/plugin/ai"
	"github.com/CaptainCrouton89/iagent/store"
)

const relevanceSystemPrompt = `You judge whether content is worth remembering long-term about a user.
Score how valuable this content is for a personal assistant to remember: stable facts, preferences, plans, relationships, and recurring patterns score high; small talk, transient logistics, and filler score low.
Respond with a single number between 0 and 1. No explanation, no other text.`

// RelevanceEvaluator asks the LLM to score how worth-remembering a piece
// of content is.
type RelevanceEvaluator struct {
	llm ai.LLMService
}

// NewRelevanceEvaluator creates a relevance evaluator.
func NewRelevanceEvaluator(llm ai.LLMService) *RelevanceEvaluator {
	return &RelevanceEvaluator{llm: llm}
}

// Evaluate returns a relevance score in [0, 1] for the given content
// fields. A transport failure or an unparseable model reply is a hard
// error; there is no silent default score.
func (e *RelevanceEvaluator) Evaluate(ctx context.Context, source store.MemorySource, content map[string]string) (float32, error) {
	if len(content) == 0 {
		return 0, fmt.Errorf("no content fields to evaluate")
	}

	reply, err := e.llm.Chat(ctx, []ai.Message{
		ai.SystemPrompt(relevanceSystemPrompt),
		ai.UserMessage(formatContent(source, content)),
	})
	if err != nil {
		return 0, fmt.Errorf("relevance evaluation failed: %w", err)
	}

	score, err := parseScore(reply)
	if err != nil {
		return 0, fmt.Errorf("relevance evaluation returned unusable output: %w", err)
	}
	return score, nil
}

// formatContent renders the content fields deterministically, keyed and
// sorted so the same input always yields the same prompt.
func formatContent(source store.MemorySource, content map[string]string) string {
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Source: %s\n", source)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %s\n", k, content[k])
	}
	return sb.String()
}

// parseScore parses the model reply strictly: a single number in [0, 1].
func parseScore(reply string) (float32, error) {
	trimmed := strings.TrimSpace(reply)
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", truncate(trimmed, 80))
	}
	if value < 0 || value > 1 {
		return 0, fmt.Errorf("score %v out of range [0, 1]", value)
	}
	return float32(value), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
