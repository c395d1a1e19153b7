// Package memory implements the episodic/semantic memory pipeline:
// relevance-gated capture, vector similarity search, periodic semantic
// extraction and confidence decay.
package memory

import (
	"context"
	"math"
	"time"

	"github.com/CaptainCrouton89/iagent/internal/profile"
	"github.com/CaptainCrouton89/iagent/store"
)

// Store is the subset of store operations the memory pipeline needs.
// Satisfied by *store.Store.
type Store interface {
	CreateEpisodicMemory(ctx context.Context, create *store.EpisodicMemory) (*store.EpisodicMemory, error)
	ListEpisodicMemories(ctx context.Context, find *store.FindEpisodicMemory) ([]*store.EpisodicMemory, error)
	SearchEpisodicMemoriesByVector(ctx context.Context, creatorID int32, embedding []float32, limit int) ([]*store.EpisodicMemory, []float32, error)

	CreateSemanticMemory(ctx context.Context, create *store.SemanticMemory) (*store.SemanticMemory, error)
	ListSemanticMemories(ctx context.Context, find *store.FindSemanticMemory) ([]*store.SemanticMemory, error)
	UpdateSemanticMemory(ctx context.Context, update *store.UpdateSemanticMemory) (*store.SemanticMemory, error)
	DeleteSemanticMemory(ctx context.Context, delete *store.DeleteSemanticMemory) error

	ListActiveCreatorIDs(ctx context.Context, cutoff time.Time) ([]int32, error)
}

// Config holds the tunable constants of the memory pipeline.
type Config struct {
	// RelevanceThreshold gates episodic capture: scores at or below it
	// are rejected.
	RelevanceThreshold float32
	// MergeThreshold is the cosine similarity above which an extracted
	// statement reinforces an existing semantic memory instead of
	// inserting a duplicate.
	MergeThreshold float32
	// ExtractionWindow bounds how far back a cycle looks for episodic
	// memories, ExtractionLimit how many per creator.
	ExtractionWindow time.Duration
	ExtractionLimit  int
	// DecayWindow is how long a semantic memory may go unreinforced
	// before its confidence is decremented by DecayDecrement.
	DecayWindow    time.Duration
	DecayDecrement float32
	// ConfidenceFloor triggers hard deletion; ConfidenceCap bounds
	// reinforcement.
	ConfidenceFloor    float32
	ConfidenceCap      float32
	ReinforcementBonus float32
}

// NewConfigFromProfile creates pipeline config from the server profile.
func NewConfigFromProfile(p *profile.Profile) Config {
	return Config{
		RelevanceThreshold: p.MemoryRelevanceThreshold,
		MergeThreshold:     p.MemoryMergeThreshold,
		ExtractionWindow:   p.MemoryExtractionWindow,
		ExtractionLimit:    p.MemoryExtractionLimit,
		DecayWindow:        p.MemoryDecayWindow,
		DecayDecrement:     p.MemoryDecayDecrement,
		ConfidenceFloor:    p.MemoryConfidenceFloor,
		ConfidenceCap:      p.MemoryConfidenceCap,
		ReinforcementBonus: p.MemoryReinforcementBonus,
	}
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
