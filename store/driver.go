package store

import (
	"context"
	"database/sql"
	"time"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// EpisodicMemory model related methods.
	CreateEpisodicMemory(ctx context.Context, create *EpisodicMemory) (*EpisodicMemory, error)
	ListEpisodicMemories(ctx context.Context, find *FindEpisodicMemory) ([]*EpisodicMemory, error)
	DeleteEpisodicMemory(ctx context.Context, delete *DeleteEpisodicMemory) error

	// SearchEpisodicMemoriesByVector performs semantic search using vector
	// similarity, scoped to a single creator. Returns memories and their
	// cosine similarity scores ordered most similar first.
	SearchEpisodicMemoriesByVector(ctx context.Context, creatorID int32, embedding []float32, limit int) ([]*EpisodicMemory, []float32, error)

	// SemanticMemory model related methods.
	CreateSemanticMemory(ctx context.Context, create *SemanticMemory) (*SemanticMemory, error)
	ListSemanticMemories(ctx context.Context, find *FindSemanticMemory) ([]*SemanticMemory, error)
	UpdateSemanticMemory(ctx context.Context, update *UpdateSemanticMemory) (*SemanticMemory, error)
	DeleteSemanticMemory(ctx context.Context, delete *DeleteSemanticMemory) error

	// ListActiveCreatorIDs returns the distinct creators with episodic
	// memories newer than the cutoff.
	ListActiveCreatorIDs(ctx context.Context, cutoff time.Time) ([]int32, error)
}
