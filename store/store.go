package store

import (
	"context"
	"fmt"
	"time"

	"github.com/CaptainCrouton89/iagent/internal/profile"
	"github.com/CaptainCrouton89/iagent/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// semanticCache caches per-creator semantic memory lists. Invalidated
	// on every semantic write since the batch pipeline is the only writer.
	semanticCache *cache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	cacheConfig := cache.Config{
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        1000,
	}

	return &Store{
		driver:        driver,
		profile:       profile,
		semanticCache: cache.New(cacheConfig),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	s.semanticCache.Close()
	return s.driver.Close()
}

// Migrate applies the schema if the database is not initialized yet.
func (s *Store) Migrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return err
	}
	if initialized {
		return nil
	}
	return s.driver.Migrate(ctx)
}

func (s *Store) CreateEpisodicMemory(ctx context.Context, create *EpisodicMemory) (*EpisodicMemory, error) {
	return s.driver.CreateEpisodicMemory(ctx, create)
}

func (s *Store) ListEpisodicMemories(ctx context.Context, find *FindEpisodicMemory) ([]*EpisodicMemory, error) {
	return s.driver.ListEpisodicMemories(ctx, find)
}

func (s *Store) DeleteEpisodicMemory(ctx context.Context, delete *DeleteEpisodicMemory) error {
	return s.driver.DeleteEpisodicMemory(ctx, delete)
}

func (s *Store) SearchEpisodicMemoriesByVector(ctx context.Context, creatorID int32, embedding []float32, limit int) ([]*EpisodicMemory, []float32, error) {
	return s.driver.SearchEpisodicMemoriesByVector(ctx, creatorID, embedding, limit)
}

func (s *Store) CreateSemanticMemory(ctx context.Context, create *SemanticMemory) (*SemanticMemory, error) {
	s.semanticCache.Delete(semanticCacheKey(create.CreatorID))
	return s.driver.CreateSemanticMemory(ctx, create)
}

// ListSemanticMemories lists semantic memories. Single-creator lookups
// without pagination are served from cache when possible.
func (s *Store) ListSemanticMemories(ctx context.Context, find *FindSemanticMemory) ([]*SemanticMemory, error) {
	cacheable := find != nil && find.CreatorID != nil &&
		find.ID == nil && find.UID == nil && find.LastReinforcedBefore == nil &&
		find.Limit == 0 && find.Offset == 0

	if cacheable {
		if cached, ok := s.semanticCache.Get(semanticCacheKey(*find.CreatorID)); ok {
			if list, ok := cached.([]*SemanticMemory); ok {
				return list, nil
			}
		}
	}

	list, err := s.driver.ListSemanticMemories(ctx, find)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.semanticCache.Set(semanticCacheKey(*find.CreatorID), list)
	}
	return list, nil
}

func (s *Store) UpdateSemanticMemory(ctx context.Context, update *UpdateSemanticMemory) (*SemanticMemory, error) {
	updated, err := s.driver.UpdateSemanticMemory(ctx, update)
	if err != nil {
		return nil, err
	}
	s.semanticCache.Delete(semanticCacheKey(updated.CreatorID))
	return updated, nil
}

func (s *Store) DeleteSemanticMemory(ctx context.Context, delete *DeleteSemanticMemory) error {
	if err := s.driver.DeleteSemanticMemory(ctx, delete); err != nil {
		return err
	}
	if delete.CreatorID != nil {
		s.semanticCache.Delete(semanticCacheKey(*delete.CreatorID))
	} else {
		// Bulk deletes (decay floor) can span creators.
		s.semanticCache.Clear()
	}
	return nil
}

func (s *Store) ListActiveCreatorIDs(ctx context.Context, cutoff time.Time) ([]int32, error) {
	return s.driver.ListActiveCreatorIDs(ctx, cutoff)
}

func semanticCacheKey(creatorID int32) string {
	return fmt.Sprintf("semantic:%d", creatorID)
}
