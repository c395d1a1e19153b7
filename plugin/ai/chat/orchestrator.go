// Package chat wires memory retrieval and capture around LLM replies.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CaptainCrouton89/iagent/plugin/ai"
	"github.com/CaptainCrouton89/iagent/plugin/ai/memory"
	apierrors "github.com/CaptainCrouton89/iagent/internal/errors"
	"github.com/CaptainCrouton89/iagent/store"
)

const assistantSystemPrompt = `You are a personal assistant with long-term memory of the user.
Use the remembered context below when it is relevant; never mention the memory mechanism itself.`

// memoryTopK bounds how many memories are injected into the prompt.
const memoryTopK = 5

// Orchestrator produces assistant replies. Memory retrieval and capture
// are best-effort: any memory-path failure is logged and swallowed so the
// reply always returns.
type Orchestrator struct {
	llm       ai.LLMService
	memories  *memory.Service
	evaluator *memory.RelevanceEvaluator
	threshold float32
}

// NewOrchestrator creates a chat orchestrator.
func NewOrchestrator(llm ai.LLMService, memories *memory.Service, evaluator *memory.RelevanceEvaluator, relevanceThreshold float32) *Orchestrator {
	return &Orchestrator{
		llm:       llm,
		memories:  memories,
		evaluator: evaluator,
		threshold: relevanceThreshold,
	}
}

// Reply answers the conversation for one creator. The latest user message
// drives memory retrieval before the LLM call and relevance-gated capture
// after it.
func (o *Orchestrator) Reply(ctx context.Context, creatorID int32, messages []ai.Message) (string, error) {
	latest := latestUserMessage(messages)
	if latest == "" {
		return "", apierrors.InvalidArgument("conversation has no user message")
	}

	prompt := []ai.Message{ai.SystemPrompt(o.buildSystemPrompt(ctx, creatorID, latest))}
	prompt = append(prompt, messages...)

	reply, err := o.llm.Chat(ctx, prompt)
	if err != nil {
		return "", apierrors.UpstreamFailed("chat completion failed", err)
	}

	o.capture(ctx, creatorID, latest)
	return reply, nil
}

// buildSystemPrompt folds the top relevant memories into the system
// prompt. Retrieval failure degrades to a memory-free prompt.
func (o *Orchestrator) buildSystemPrompt(ctx context.Context, creatorID int32, query string) string {
	results, err := o.memories.SearchMemories(ctx, creatorID, query, o.threshold, memoryTopK)
	if err != nil {
		slog.Warn("memory retrieval failed, replying without context",
			"creator_id", creatorID, "error", err)
		return assistantSystemPrompt
	}
	if len(results) == 0 {
		return assistantSystemPrompt
	}

	var sb strings.Builder
	sb.WriteString(assistantSystemPrompt)
	sb.WriteString("\n\nRemembered context:\n")
	for _, result := range results {
		fmt.Fprintf(&sb, "- %s\n", result.Memory.Content)
	}
	return sb.String()
}

// capture runs relevance evaluation and storage for the latest user
// message. Failures are logged, never surfaced.
func (o *Orchestrator) capture(ctx context.Context, creatorID int32, content string) {
	score, err := o.evaluator.Evaluate(ctx, store.MemorySourceChat, map[string]string{"message": content})
	if err != nil {
		slog.Warn("relevance evaluation failed, message not captured",
			"creator_id", creatorID, "error", err)
		return
	}
	if score <= o.threshold {
		return
	}

	if _, err := o.memories.CreateMemory(ctx, &memory.CreateMemoryRequest{
		CreatorID:      creatorID,
		Content:        content,
		Source:         store.MemorySourceChat,
		RelevanceScore: score,
	}); err != nil {
		slog.Warn("memory capture failed", "creator_id", creatorID, "error", err)
	}
}

func latestUserMessage(messages []ai.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}
