package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/CaptainCrouton89/iagent/store"
)

func (d *DB) CreateEpisodicMemory(ctx context.Context, create *store.EpisodicMemory) (*store.EpisodicMemory, error) {
	fields := []string{"uid", "creator_id", "content", "embedding", "source", "source_id", "relevance_score", "created_ts"}

	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}

	args := []any{
		create.UID,
		create.CreatorID,
		create.Content,
		float32SliceToBlob(create.Embedding),
		string(create.Source),
		create.SourceID,
		create.RelevanceScore,
		create.CreatedTs,
	}

	stmt := `INSERT INTO episodic_memory (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`

	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create episodic_memory: %w", err)
	}

	return create, nil
}

func (d *DB) ListEpisodicMemories(ctx context.Context, find *store.FindEpisodicMemory) ([]*store.EpisodicMemory, error) {
	if find == nil {
		return nil, fmt.Errorf("find parameter cannot be nil")
	}

	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if len(find.IDs) > 0 {
		marks := make([]string, len(find.IDs))
		for i, id := range find.IDs {
			marks[i] = "?"
			args = append(args, id)
		}
		where = append(where, "id IN ("+strings.Join(marks, ", ")+")")
	}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.CreatorID != nil {
		where, args = append(where, "creator_id = ?"), append(args, *find.CreatorID)
	}
	if find.Source != nil {
		where, args = append(where, "source = ?"), append(args, string(*find.Source))
	}
	if find.CreatedAfter != nil {
		where, args = append(where, "created_ts > ?"), append(args, *find.CreatedAfter)
	}

	query := `SELECT id, uid, creator_id, content, source, source_id, relevance_score, created_ts
		FROM episodic_memory WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC`

	limit := find.Limit
	if limit > 0 {
		if limit > 1000 {
			limit = 1000
		}
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	if find.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", find.Offset)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodic_memories: %w", err)
	}
	defer rows.Close()

	list := make([]*store.EpisodicMemory, 0)
	for rows.Next() {
		m := &store.EpisodicMemory{}
		var sourceID *string
		if err := rows.Scan(
			&m.ID,
			&m.UID,
			&m.CreatorID,
			&m.Content,
			&m.Source,
			&sourceID,
			&m.RelevanceScore,
			&m.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan episodic_memory: %w", err)
		}
		m.SourceID = sourceID
		list = append(list, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate episodic_memories: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteEpisodicMemory(ctx context.Context, delete *store.DeleteEpisodicMemory) error {
	where, args := []string{}, []any{}

	if delete.ID != nil {
		where, args = append(where, "id = ?"), append(args, *delete.ID)
	}
	if delete.CreatorID != nil {
		where, args = append(where, "creator_id = ?"), append(args, *delete.CreatorID)
	}
	if len(where) == 0 {
		return fmt.Errorf("refusing to delete episodic memories without conditions")
	}

	stmt := `DELETE FROM episodic_memory WHERE ` + strings.Join(where, " AND ")
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to delete episodic_memory: %w", err)
	}
	return nil
}

// SearchEpisodicMemoriesByVector loads the creator's embeddings and ranks
// them in process by cosine similarity. SQLite has no native vector index;
// this is acceptable at single-user scale.
func (d *DB) SearchEpisodicMemoriesByVector(ctx context.Context, creatorID int32, embedding []float32, limit int) ([]*store.EpisodicMemory, []float32, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT id, uid, creator_id, content, embedding, source, source_id, relevance_score, created_ts
		FROM episodic_memory
		WHERE creator_id = ? AND embedding IS NOT NULL`

	rows, err := d.db.QueryContext(ctx, query, creatorID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load episodic memories for ranking: %w", err)
	}
	defer rows.Close()

	type scored struct {
		memory     *store.EpisodicMemory
		similarity float32
	}
	candidates := []scored{}

	for rows.Next() {
		m := &store.EpisodicMemory{}
		var blob []byte
		var sourceID *string
		if err := rows.Scan(
			&m.ID,
			&m.UID,
			&m.CreatorID,
			&m.Content,
			&blob,
			&m.Source,
			&sourceID,
			&m.RelevanceScore,
			&m.CreatedTs,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan episodic_memory: %w", err)
		}
		m.SourceID = sourceID
		m.Embedding = blobToFloat32Slice(blob)
		candidates = append(candidates, scored{
			memory:     m,
			similarity: cosineSimilarity(embedding, m.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	// Most similar first, ties broken by most recent.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].similarity != candidates[j].similarity {
			return candidates[i].similarity > candidates[j].similarity
		}
		return candidates[i].memory.CreatedTs > candidates[j].memory.CreatedTs
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	memories := make([]*store.EpisodicMemory, len(candidates))
	similarities := make([]float32, len(candidates))
	for i, c := range candidates {
		memories[i] = c.memory
		similarities[i] = c.similarity
	}
	return memories, similarities, nil
}

func (d *DB) ListActiveCreatorIDs(ctx context.Context, cutoff time.Time) ([]int32, error) {
	query := `SELECT DISTINCT creator_id FROM episodic_memory WHERE created_ts > ?`

	rows, err := d.db.QueryContext(ctx, query, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list active creator IDs: %w", err)
	}
	defer rows.Close()

	ids := []int32{}
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan creator ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
