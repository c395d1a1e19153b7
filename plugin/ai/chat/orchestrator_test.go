package chat

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaptainCrouton89/iagent/internal/profile"
	"github.com/CaptainCrouton89/iagent/plugin/ai"
	"github.com/CaptainCrouton89/iagent/plugin/ai/memory"
	"github.com/CaptainCrouton89/iagent/store"
	"github.com/CaptainCrouton89/iagent/store/db"
)

func newTestStore(t *testing.T) *store.Store {
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "iagent_test.db"),
	}

	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)

	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func memoryConfig() memory.Config {
	return memory.Config{
		RelevanceThreshold: 0.5,
		MergeThreshold:     0.85,
		ConfidenceFloor:    0.2,
		ConfidenceCap:      1.0,
		ReinforcementBonus: 0.1,
	}
}

func TestReply(t *testing.T) {
	ctx := context.Background()
	conversation := []ai.Message{
		ai.UserMessage("I just moved to Lisbon, any lunch suggestions?"),
	}

	t.Run("reply with relevance-gated capture", func(t *testing.T) {
		s := newTestStore(t)
		svc := memory.NewService(s, ai.NewMockEmbeddingService(4), memoryConfig())

		// First call scores relevance, second answers the user.
		llm := ai.NewMockLLMService("Try the tascas near the river.", "0.9")
		orchestrator := NewOrchestrator(llm, svc, memory.NewRelevanceEvaluator(llm), 0.5)

		reply, err := orchestrator.Reply(ctx, 1, conversation)
		require.NoError(t, err)
		assert.Equal(t, "Try the tascas near the river.", reply)

		creatorID := int32(1)
		rows, err := s.ListEpisodicMemories(ctx, &store.FindEpisodicMemory{CreatorID: &creatorID})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "I just moved to Lisbon, any lunch suggestions?", rows[0].Content)
	})

	t.Run("low relevance means no capture", func(t *testing.T) {
		s := newTestStore(t)
		svc := memory.NewService(s, ai.NewMockEmbeddingService(4), memoryConfig())

		llm := ai.NewMockLLMService("Sure.", "0.2")
		orchestrator := NewOrchestrator(llm, svc, memory.NewRelevanceEvaluator(llm), 0.5)

		_, err := orchestrator.Reply(ctx, 1, conversation)
		require.NoError(t, err)

		creatorID := int32(1)
		rows, err := s.ListEpisodicMemories(ctx, &store.FindEpisodicMemory{CreatorID: &creatorID})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("relevance failure never fails the reply", func(t *testing.T) {
		s := newTestStore(t)
		svc := memory.NewService(s, ai.NewMockEmbeddingService(4), memoryConfig())

		// The relevance call gets prose instead of a score.
		llm := ai.NewMockLLMService("Here is your answer.", "definitely worth remembering")
		orchestrator := NewOrchestrator(llm, svc, memory.NewRelevanceEvaluator(llm), 0.5)

		reply, err := orchestrator.Reply(ctx, 1, conversation)
		require.NoError(t, err)
		assert.Equal(t, "Here is your answer.", reply)
	})

	t.Run("embedding failure never fails the reply", func(t *testing.T) {
		s := newTestStore(t)
		embedder := ai.NewMockEmbeddingService(4)
		embedder.Err = assert.AnError
		svc := memory.NewService(s, embedder, memoryConfig())

		llm := ai.NewMockLLMService("Answered anyway.", "0.9")
		orchestrator := NewOrchestrator(llm, svc, memory.NewRelevanceEvaluator(llm), 0.5)

		reply, err := orchestrator.Reply(ctx, 1, conversation)
		require.NoError(t, err)
		assert.Equal(t, "Answered anyway.", reply)
	})

	t.Run("LLM failure does fail the reply", func(t *testing.T) {
		s := newTestStore(t)
		svc := memory.NewService(s, ai.NewMockEmbeddingService(4), memoryConfig())

		llm := ai.NewMockLLMService()
		llm.Err = assert.AnError
		orchestrator := NewOrchestrator(llm, svc, memory.NewRelevanceEvaluator(llm), 0.5)

		_, err := orchestrator.Reply(ctx, 1, conversation)
		require.Error(t, err)
	})

	t.Run("conversation without user message is rejected", func(t *testing.T) {
		s := newTestStore(t)
		svc := memory.NewService(s, ai.NewMockEmbeddingService(4), memoryConfig())
		llm := ai.NewMockLLMService("hi")
		orchestrator := NewOrchestrator(llm, svc, memory.NewRelevanceEvaluator(llm), 0.5)

		_, err := orchestrator.Reply(ctx, 1, []ai.Message{ai.SystemPrompt("system only")})
		require.Error(t, err)
	})

	t.Run("remembered context reaches the prompt", func(t *testing.T) {
		s := newTestStore(t)
		embedder := ai.NewMockEmbeddingService(4)
		svc := memory.NewService(s, embedder, memoryConfig())

		// Seed one memory whose embedding matches any query poorly but
		// passes a zero threshold.
		_, err := s.CreateEpisodicMemory(ctx, &store.EpisodicMemory{
			UID:            "seed",
			CreatorID:      1,
			Content:        "the user is vegetarian",
			Embedding:      mustEmbed(t, embedder, "the user is vegetarian"),
			Source:         store.MemorySourceChat,
			RelevanceScore: 0.9,
			CreatedTs:      100,
		})
		require.NoError(t, err)

		llm := ai.NewMockLLMService("Plenty of veggie spots.", "0.2")
		orchestrator := NewOrchestrator(llm, svc, memory.NewRelevanceEvaluator(llm), 0)

		_, err = orchestrator.Reply(ctx, 1, conversation)
		require.NoError(t, err)

		requests := llm.Requests()
		require.NotEmpty(t, requests)
		assert.Contains(t, requests[0][0].Content, "the user is vegetarian")
	})
}

func mustEmbed(t *testing.T, embedder ai.EmbeddingService, text string) []float32 {
	t.Helper()
	v, err := embedder.Embed(context.Background(), text)
	require.NoError(t, err)
	return v
}
