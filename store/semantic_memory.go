package store

// SemanticMemory is a generalized, confidence-weighted distillation of
// recurring episodic content. Confidence decays over time absent
// reinforcement; rows whose confidence crosses the floor are hard deleted.
type SemanticMemory struct {
	ID        int64
	UID       string
	CreatorID int32
	Statement string
	Embedding []float32
	// Confidence is mutated only by the extraction and decay routines.
	Confidence float32
	// DerivedFrom holds the episodic memory ids this statement was
	// distilled from. Non-empty at creation.
	DerivedFrom      []int64
	CreatedTs        int64
	LastReinforcedTs int64
}

// FindSemanticMemory specifies the conditions for finding semantic memories.
type FindSemanticMemory struct {
	ID                   *int64
	UID                  *string
	CreatorID            *int32
	LastReinforcedBefore *int64
	Limit                int
	Offset               int
}

// UpdateSemanticMemory specifies a partial update of a semantic memory.
// Only non-nil fields are applied.
type UpdateSemanticMemory struct {
	ID               int64
	Confidence       *float32
	DerivedFrom      []int64
	LastReinforcedTs *int64
}

// DeleteSemanticMemory specifies the conditions for deleting semantic memories.
type DeleteSemanticMemory struct {
	ID        *int64
	CreatorID *int32
	// ConfidenceAtOrBelow deletes every row whose confidence is at or
	// below the given value (used by the decay routine).
	ConfidenceAtOrBelow *float32
}
