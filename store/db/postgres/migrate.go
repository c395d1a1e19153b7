package postgres

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

const schemaTemplate = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS episodic_memory (
	id BIGSERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	creator_id INTEGER NOT NULL,
	content TEXT NOT NULL,
	embedding vector(%d),
	source TEXT NOT NULL DEFAULT 'other',
	source_id TEXT,
	relevance_score REAL NOT NULL,
	created_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_episodic_memory_creator_created
	ON episodic_memory (creator_id, created_ts DESC);

CREATE TABLE IF NOT EXISTS semantic_memory (
	id BIGSERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	creator_id INTEGER NOT NULL,
	statement TEXT NOT NULL,
	embedding vector(%d) NOT NULL,
	confidence REAL NOT NULL,
	derived_from BIGINT[] NOT NULL,
	created_ts BIGINT NOT NULL,
	last_reinforced_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_semantic_memory_creator
	ON semantic_memory (creator_id);
`

// Migrate applies the schema. Safe to run repeatedly.
func (d *DB) Migrate(ctx context.Context) error {
	dimension := d.profile.AIEmbeddingDimension
	if dimension <= 0 {
		dimension = 1536
	}

	stmt := fmt.Sprintf(schemaTemplate, dimension, dimension)
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	return nil
}
