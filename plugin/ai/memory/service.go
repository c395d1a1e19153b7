package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/CaptainCrouton89/iagent/plugin/ai"
	apierrors "github.com/CaptainCrouton89/iagent/internal/errors"
	"github.com/CaptainCrouton89/iagent/store"
)

// Service orchestrates episodic memory capture and retrieval.
type Service struct {
	store    Store
	embedder ai.EmbeddingService
	config   Config
}

// NewService creates a memory service.
func NewService(s Store, embedder ai.EmbeddingService, config Config) *Service {
	return &Service{
		store:    s,
		embedder: embedder,
		config:   config,
	}
}

// CreateMemoryRequest is the input to CreateMemory. RelevanceScore must
// have been computed by a RelevanceEvaluator; the service re-checks it
// against the threshold regardless of the caller.
type CreateMemoryRequest struct {
	CreatorID      int32
	Content        string
	Source         store.MemorySource
	SourceID       *string
	RelevanceScore float32
}

// CreateMemory persists one episodic memory. The relevance threshold is
// enforced here, not just at the call site: requests at or below the
// threshold are rejected with a validation error.
func (s *Service) CreateMemory(ctx context.Context, req *CreateMemoryRequest) (*store.EpisodicMemory, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apierrors.InvalidArgument("memory content is empty")
	}
	if !req.Source.Valid() {
		return nil, apierrors.InvalidArgument(fmt.Sprintf("unknown memory source %q", req.Source))
	}
	if req.RelevanceScore <= s.config.RelevanceThreshold {
		return nil, apierrors.InvalidArgument(fmt.Sprintf(
			"relevance score %.2f does not exceed threshold %.2f",
			req.RelevanceScore, s.config.RelevanceThreshold))
	}
	if req.RelevanceScore > 1 {
		return nil, apierrors.InvalidArgument(fmt.Sprintf("relevance score %.2f above 1", req.RelevanceScore))
	}

	embedding, err := ai.EmbedContent(ctx, s.embedder, req.Content)
	if err != nil {
		return nil, apierrors.UpstreamFailed("failed to embed memory content", err)
	}

	created, err := s.store.CreateEpisodicMemory(ctx, &store.EpisodicMemory{
		UID:            shortuuid.New(),
		CreatorID:      req.CreatorID,
		Content:        req.Content,
		Embedding:      embedding,
		Source:         req.Source,
		SourceID:       req.SourceID,
		RelevanceScore: req.RelevanceScore,
		CreatedTs:      time.Now().Unix(),
	})
	if err != nil {
		return nil, apierrors.UpstreamFailed("failed to store episodic memory", err)
	}
	return created, nil
}

// ScoredMemory pairs a memory with its similarity to the search query.
type ScoredMemory struct {
	Memory     *store.EpisodicMemory
	Similarity float32
}

// SearchMemories ranks a creator's episodic memories against the query.
// Results below the threshold are dropped, the rest come back ordered by
// similarity descending with ties broken by most recent CreatedTs, capped
// at limit. An empty result is valid.
func (s *Service) SearchMemories(ctx context.Context, creatorID int32, query string, threshold float32, limit int) ([]ScoredMemory, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apierrors.InvalidArgument("search query is empty")
	}
	if limit <= 0 {
		limit = 10
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apierrors.UpstreamFailed("failed to embed search query", err)
	}

	memories, similarities, err := s.store.SearchEpisodicMemoriesByVector(ctx, creatorID, embedding, limit)
	if err != nil {
		return nil, apierrors.UpstreamFailed("vector search failed", err)
	}

	// The driver already orders by similarity desc, recency desc.
	results := make([]ScoredMemory, 0, len(memories))
	for i, memory := range memories {
		if similarities[i] < threshold {
			continue
		}
		results = append(results, ScoredMemory{Memory: memory, Similarity: similarities[i]})
	}
	return results, nil
}
