package store

// MemorySource identifies where a memory originated.
type MemorySource string

const (
	MemorySourceChat  MemorySource = "chat"
	MemorySourceEmail MemorySource = "email"
	MemorySourceOther MemorySource = "other"
)

// Valid reports whether the source is one of the known values.
func (s MemorySource) Valid() bool {
	switch s {
	case MemorySourceChat, MemorySourceEmail, MemorySourceOther:
		return true
	}
	return false
}

// EpisodicMemory is a raw, timestamped record of something said or observed.
// Rows are immutable after insert; there is no update path in the Driver.
type EpisodicMemory struct {
	ID        int64
	UID       string
	CreatorID int32
	Content   string
	Embedding []float32
	Source    MemorySource
	SourceID  *string
	// RelevanceScore is assigned once at creation and never changes.
	RelevanceScore float32
	CreatedTs      int64
}

// FindEpisodicMemory specifies the conditions for finding episodic memories.
type FindEpisodicMemory struct {
	ID           *int64
	IDs          []int64
	UID          *string
	CreatorID    *int32
	Source       *MemorySource
	CreatedAfter *int64
	Limit        int
	Offset       int
}

// DeleteEpisodicMemory specifies the conditions for deleting episodic memories.
type DeleteEpisodicMemory struct {
	ID        *int64
	CreatorID *int32
}
