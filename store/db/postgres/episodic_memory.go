package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/CaptainCrouton89/iagent/store"
)

func (d *DB) CreateEpisodicMemory(ctx context.Context, create *store.EpisodicMemory) (*store.EpisodicMemory, error) {
	fields := []string{"uid", "creator_id", "content", "embedding", "source", "source_id", "relevance_score", "created_ts"}

	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}

	var embedding any
	if len(create.Embedding) > 0 {
		embedding = pgvector.NewVector(create.Embedding)
	}

	args := []any{
		create.UID,
		create.CreatorID,
		create.Content,
		embedding,
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
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if len(find.IDs) > 0 {
		where, args = append(where, "id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(find.IDs))
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.CreatorID != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *find.CreatorID)
	}
	if find.Source != nil {
		where, args = append(where, "source = "+placeholder(len(args)+1)), append(args, string(*find.Source))
	}
	if find.CreatedAfter != nil {
		where, args = append(where, "created_ts > "+placeholder(len(args)+1)), append(args, *find.CreatedAfter)
	}

	// The embedding column is intentionally not fetched here: list callers
	// (extraction, API reads) only need the text fields, and the column may
	// be NULL for manually inserted rows.
	query := `SELECT id, uid, creator_id, content, source, source_id, relevance_score, created_ts
		FROM episodic_memory WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC`

	limit := find.Limit
	if limit > 0 {
		if limit > 1000 {
			limit = 1000 // Cap to prevent excessive data retrieval
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
		m, err := scanEpisodicMemory(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate episodic_memories: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteEpisodicMemory(ctx context.Context, delete *store.DeleteEpisodicMemory) error {
	where, args := []string{"1 = 1"}, []any{}

	if delete.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *delete.ID)
	}
	if delete.CreatorID != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *delete.CreatorID)
	}
	if len(args) == 0 {
		return fmt.Errorf("refusing to delete episodic memories without conditions")
	}

	stmt := `DELETE FROM episodic_memory WHERE ` + strings.Join(where, " AND ")
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to delete episodic_memory: %w", err)
	}
	return nil
}

// SearchEpisodicMemoriesByVector performs vector similarity search using pgvector.
// The <=> operator computes cosine distance (1 - cosine_similarity), so rows
// are ordered by distance ascending; created_ts breaks ties most recent first.
func (d *DB) SearchEpisodicMemoriesByVector(ctx context.Context, creatorID int32, embedding []float32, limit int) ([]*store.EpisodicMemory, []float32, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, uid, creator_id, content, embedding, source, source_id, relevance_score, created_ts,
			1 - (embedding <=> ` + placeholder(1) + `) AS similarity
		FROM episodic_memory
		WHERE creator_id = ` + placeholder(2) + `
			AND embedding IS NOT NULL
		ORDER BY embedding <=> ` + placeholder(3) + `, created_ts DESC
		LIMIT ` + placeholder(4)

	vector := pgvector.NewVector(embedding)
	rows, err := d.db.QueryContext(ctx, query, vector, creatorID, vector, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to vector search episodic_memories: %w", err)
	}
	defer rows.Close()

	memories := []*store.EpisodicMemory{}
	similarities := []float32{}
	for rows.Next() {
		m := &store.EpisodicMemory{}
		var vec pgvector.Vector
		var sourceID *string
		var similarity float32
		if err := rows.Scan(
			&m.ID,
			&m.UID,
			&m.CreatorID,
			&m.Content,
			&vec,
			&m.Source,
			&sourceID,
			&m.RelevanceScore,
			&m.CreatedTs,
			&similarity,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan vector search result: %w", err)
		}
		m.Embedding = vec.Slice()
		m.SourceID = sourceID
		memories = append(memories, m)
		similarities = append(similarities, similarity)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return memories, similarities, nil
}

func (d *DB) ListActiveCreatorIDs(ctx context.Context, cutoff time.Time) ([]int32, error) {
	query := `SELECT DISTINCT creator_id FROM episodic_memory WHERE created_ts > $1`

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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEpisodicMemory(row rowScanner) (*store.EpisodicMemory, error) {
	m := &store.EpisodicMemory{}
	var sourceID *string
	if err := row.Scan(
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
	return m, nil
}
