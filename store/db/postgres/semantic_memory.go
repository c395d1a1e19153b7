package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/CaptainCrouton89/iagent/store"
)

func (d *DB) CreateSemanticMemory(ctx context.Context, create *store.SemanticMemory) (*store.SemanticMemory, error) {
	if len(create.DerivedFrom) == 0 {
		return nil, errors.New("semantic memory requires at least one source episodic memory")
	}
	if len(create.Embedding) == 0 {
		return nil, errors.New("semantic memory requires an embedding")
	}

	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	if create.LastReinforcedTs == 0 {
		create.LastReinforcedTs = create.CreatedTs
	}

	fields := []string{"uid", "creator_id", "statement", "embedding", "confidence", "derived_from", "created_ts", "last_reinforced_ts"}
	args := []any{
		create.UID,
		create.CreatorID,
		create.Statement,
		pgvector.NewVector(create.Embedding),
		create.Confidence,
		pq.Array(create.DerivedFrom),
		create.CreatedTs,
		create.LastReinforcedTs,
	}

	stmt := `INSERT INTO semantic_memory (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`

	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create semantic_memory")
	}

	return create, nil
}

func (d *DB) ListSemanticMemories(ctx context.Context, find *store.FindSemanticMemory) ([]*store.SemanticMemory, error) {
	if find == nil {
		return nil, errors.New("find parameter cannot be nil")
	}

	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.CreatorID != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *find.CreatorID)
	}
	if find.LastReinforcedBefore != nil {
		where, args = append(where, "last_reinforced_ts < "+placeholder(len(args)+1)), append(args, *find.LastReinforcedBefore)
	}

	query := `SELECT id, uid, creator_id, statement, embedding, confidence, derived_from, created_ts, last_reinforced_ts
		FROM semantic_memory WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC`

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
		return nil, errors.Wrap(err, "failed to list semantic_memories")
	}
	defer rows.Close()

	list := make([]*store.SemanticMemory, 0)
	for rows.Next() {
		m := &store.SemanticMemory{}
		var vec pgvector.Vector
		var derivedFrom pq.Int64Array
		if err := rows.Scan(
			&m.ID,
			&m.UID,
			&m.CreatorID,
			&m.Statement,
			&vec,
			&m.Confidence,
			&derivedFrom,
			&m.CreatedTs,
			&m.LastReinforcedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan semantic_memory")
		}
		m.Embedding = vec.Slice()
		m.DerivedFrom = []int64(derivedFrom)
		list = append(list, m)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate semantic_memories")
	}

	return list, nil
}

func (d *DB) UpdateSemanticMemory(ctx context.Context, update *store.UpdateSemanticMemory) (*store.SemanticMemory, error) {
	set, args := []string{}, []any{}

	if update.Confidence != nil {
		set, args = append(set, "confidence = "+placeholder(len(args)+1)), append(args, *update.Confidence)
	}
	if update.DerivedFrom != nil {
		set, args = append(set, "derived_from = "+placeholder(len(args)+1)), append(args, pq.Array(update.DerivedFrom))
	}
	if update.LastReinforcedTs != nil {
		set, args = append(set, "last_reinforced_ts = "+placeholder(len(args)+1)), append(args, *update.LastReinforcedTs)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE semantic_memory SET ` + strings.Join(set, ", ") + `
		WHERE id = ` + placeholder(len(args)) + `
		RETURNING id, uid, creator_id, statement, confidence, derived_from, created_ts, last_reinforced_ts`

	m := &store.SemanticMemory{}
	var derivedFrom pq.Int64Array
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&m.ID,
		&m.UID,
		&m.CreatorID,
		&m.Statement,
		&m.Confidence,
		&derivedFrom,
		&m.CreatedTs,
		&m.LastReinforcedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to update semantic_memory")
	}
	m.DerivedFrom = []int64(derivedFrom)

	return m, nil
}

func (d *DB) DeleteSemanticMemory(ctx context.Context, delete *store.DeleteSemanticMemory) error {
	where, args := []string{}, []any{}

	if delete.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *delete.ID)
	}
	if delete.CreatorID != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *delete.CreatorID)
	}
	if delete.ConfidenceAtOrBelow != nil {
		where, args = append(where, "confidence <= "+placeholder(len(args)+1)), append(args, *delete.ConfidenceAtOrBelow)
	}
	if len(where) == 0 {
		return errors.New("refusing to delete semantic memories without conditions")
	}

	stmt := `DELETE FROM semantic_memory WHERE ` + strings.Join(where, " AND ")
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to delete semantic_memory")
	}
	return nil
}
