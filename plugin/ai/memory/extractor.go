package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/CaptainCrouton89/iagent/plugin/ai"
	apierrors "github.com/CaptainCrouton89/iagent/internal/errors"
	"github.com/CaptainCrouton89/iagent/store"
)

// extractionConcurrency bounds the per-creator fan-out of a cycle.
const extractionConcurrency = 4

// ErrCycleRunning is returned when a cycle would overlap a running one.
var ErrCycleRunning = errors.New("extraction cycle already running")

const extractionSystemPrompt = `You distill episodic records about a user into generalized long-term statements.
Given the records below, produce the facts, preferences, and recurring patterns they support. Generalize; do not restate single events verbatim. Assign each statement a confidence between 0 and 1 reflecting how strongly the records support it.
Respond with a JSON array only, no other text: [{"statement": "...", "confidence": 0.8}]
Respond with [] if the records support no generalization.`

// Extractor runs the batch half of the pipeline: semantic extraction,
// confidence decay, and the per-cycle orchestration of both.
type Extractor struct {
	store    Store
	embedder ai.EmbeddingService
	llm      ai.LLMService
	config   Config

	// cycleMu serializes cycles within this process. Multi-instance
	// at-most-once is the scheduler's job, not ours.
	cycleMu sync.Mutex
	running bool
}

// NewExtractor creates an extractor.
func NewExtractor(s Store, embedder ai.EmbeddingService, llm ai.LLMService, config Config) *Extractor {
	return &Extractor{
		store:    s,
		embedder: embedder,
		llm:      llm,
		config:   config,
	}
}

type extractedStatement struct {
	Statement  string  `json:"statement"`
	Confidence float32 `json:"confidence"`
}

// ExtractSemanticMemories distills the given episodic memories into
// semantic statements for one creator. Statements similar to an existing
// semantic memory reinforce it; the rest are inserted. Every episodic id
// must exist and belong to creatorID or the whole call is rejected.
func (e *Extractor) ExtractSemanticMemories(ctx context.Context, episodicIDs []int64, creatorID int32) ([]*store.SemanticMemory, error) {
	if len(episodicIDs) == 0 {
		return nil, apierrors.InvalidArgument("no episodic memory ids given")
	}

	episodes, err := e.store.ListEpisodicMemories(ctx, &store.FindEpisodicMemory{IDs: episodicIDs})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load episodic memories")
	}
	if len(episodes) != len(episodicIDs) {
		return nil, apierrors.OwnershipMismatch(fmt.Sprintf(
			"requested %d episodic memories, found %d", len(episodicIDs), len(episodes)))
	}
	for _, episode := range episodes {
		if episode.CreatorID != creatorID {
			return nil, apierrors.OwnershipMismatch(fmt.Sprintf(
				"episodic memory %d does not belong to creator %d", episode.ID, creatorID))
		}
	}

	statements, err := e.distill(ctx, episodes)
	if err != nil {
		return nil, err
	}

	var results []*store.SemanticMemory
	for _, statement := range statements {
		record, err := e.mergeOrInsert(ctx, creatorID, episodicIDs, statement)
		if err != nil {
			return nil, err
		}
		results = append(results, record)
	}
	return results, nil
}

// distill prompts the LLM with the episodic contents and parses the
// returned statements. Unparseable output is a hard error.
func (e *Extractor) distill(ctx context.Context, episodes []*store.EpisodicMemory) ([]extractedStatement, error) {
	var sb strings.Builder
	for i, episode := range episodes {
		fmt.Fprintf(&sb, "[%d] (%s, %s) %s\n",
			i+1, episode.Source,
			time.Unix(episode.CreatedTs, 0).UTC().Format("2006-01-02"),
			episode.Content)
	}

	reply, err := e.llm.Chat(ctx, []ai.Message{
		ai.SystemPrompt(extractionSystemPrompt),
		ai.UserMessage(sb.String()),
	})
	if err != nil {
		return nil, apierrors.UpstreamFailed("semantic extraction failed", err)
	}

	var statements []extractedStatement
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &statements); err != nil {
		return nil, apierrors.UpstreamFailed("extraction output is not a JSON statement array",
			errors.Wrapf(err, "reply %q", truncate(reply, 120)))
	}

	valid := statements[:0]
	for _, statement := range statements {
		if strings.TrimSpace(statement.Statement) == "" {
			continue
		}
		if statement.Confidence <= 0 || statement.Confidence > 1 {
			return nil, apierrors.UpstreamFailed(
				fmt.Sprintf("extracted confidence %v out of range (0, 1]", statement.Confidence), nil)
		}
		valid = append(valid, statement)
	}
	return valid, nil
}

// mergeOrInsert reinforces the most similar existing semantic memory when
// similarity reaches the merge threshold, otherwise inserts a new one.
func (e *Extractor) mergeOrInsert(ctx context.Context, creatorID int32, episodicIDs []int64, statement extractedStatement) (*store.SemanticMemory, error) {
	embedding, err := e.embedder.Embed(ctx, statement.Statement)
	if err != nil {
		return nil, apierrors.UpstreamFailed("failed to embed statement", err)
	}

	existing, err := e.store.ListSemanticMemories(ctx, &store.FindSemanticMemory{CreatorID: &creatorID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list semantic memories")
	}

	var best *store.SemanticMemory
	var bestSimilarity float32
	for _, candidate := range existing {
		if similarity := cosineSimilarity(embedding, candidate.Embedding); similarity > bestSimilarity {
			best = candidate
			bestSimilarity = similarity
		}
	}

	if best != nil && bestSimilarity >= e.config.MergeThreshold {
		confidence := best.Confidence + e.config.ReinforcementBonus
		if confidence > e.config.ConfidenceCap {
			confidence = e.config.ConfidenceCap
		}
		now := time.Now().Unix()
		updated, err := e.store.UpdateSemanticMemory(ctx, &store.UpdateSemanticMemory{
			ID:               best.ID,
			Confidence:       &confidence,
			DerivedFrom:      unionIDs(best.DerivedFrom, episodicIDs),
			LastReinforcedTs: &now,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to reinforce semantic memory")
		}
		slog.Debug("semantic memory reinforced",
			"id", best.ID, "similarity", bestSimilarity, "confidence", confidence)
		return updated, nil
	}

	now := time.Now().Unix()
	created, err := e.store.CreateSemanticMemory(ctx, &store.SemanticMemory{
		UID:              shortuuid.New(),
		CreatorID:        creatorID,
		Statement:        statement.Statement,
		Embedding:        embedding,
		Confidence:       statement.Confidence,
		DerivedFrom:      episodicIDs,
		CreatedTs:        now,
		LastReinforcedTs: now,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create semantic memory")
	}
	return created, nil
}

// DecayStats reports what one decay pass did.
type DecayStats struct {
	Scanned int
	Decayed int
	Deleted int
}

// DecaySemanticMemories decrements the confidence of every semantic
// memory not reinforced within the decay window and sweeps rows at or
// below the floor. Deliberately time-based rather than idempotent: two
// immediate runs decrement twice.
func (e *Extractor) DecaySemanticMemories(ctx context.Context) (DecayStats, error) {
	var stats DecayStats

	cutoff := time.Now().Add(-e.config.DecayWindow).Unix()
	stale, err := e.store.ListSemanticMemories(ctx, &store.FindSemanticMemory{
		LastReinforcedBefore: &cutoff,
	})
	if err != nil {
		return stats, errors.Wrap(err, "failed to list stale semantic memories")
	}
	stats.Scanned = len(stale)

	for _, record := range stale {
		confidence := record.Confidence - e.config.DecayDecrement
		if confidence < 0 {
			confidence = 0
		}
		if _, err := e.store.UpdateSemanticMemory(ctx, &store.UpdateSemanticMemory{
			ID:         record.ID,
			Confidence: &confidence,
		}); err != nil {
			return stats, errors.Wrapf(err, "failed to decay semantic memory %d", record.ID)
		}
		stats.Decayed++
		if confidence <= e.config.ConfidenceFloor {
			stats.Deleted++
		}
	}

	// Sweep everything at or below the floor, including rows that were
	// already there before this pass.
	floor := e.config.ConfidenceFloor
	if err := e.store.DeleteSemanticMemory(ctx, &store.DeleteSemanticMemory{
		ConfidenceAtOrBelow: &floor,
	}); err != nil {
		return stats, errors.Wrap(err, "failed to sweep decayed semantic memories")
	}

	return stats, nil
}

// CreatorResult is the outcome of one creator's extraction in a cycle.
type CreatorResult struct {
	CreatorID      int32
	ProcessedCount int
	ExtractedCount int
	Err            error
}

// CycleResult is the outcome of one full decay+extraction cycle.
type CycleResult struct {
	Decay    DecayStats
	Creators []CreatorResult
}

// RunExtractionCycle runs one batch cycle: decay first, then semantic
// extraction for every creator with recent episodic memories. Creator
// failures are isolated; one bad owner never blocks the rest. A cycle
// that would overlap a running one returns ErrCycleRunning.
func (e *Extractor) RunExtractionCycle(ctx context.Context) (*CycleResult, error) {
	if !e.tryStartCycle() {
		slog.Warn("extraction cycle skipped, previous cycle still running")
		return nil, ErrCycleRunning
	}
	defer e.finishCycle()

	result := &CycleResult{}

	decayStats, err := e.DecaySemanticMemories(ctx)
	if err != nil {
		// Extraction can still proceed on an un-decayed store.
		slog.Warn("decay pass failed", "error", err)
	}
	result.Decay = decayStats

	cutoff := time.Now().Add(-e.config.ExtractionWindow)
	creatorIDs, err := e.store.ListActiveCreatorIDs(ctx, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active creators")
	}

	sem := semaphore.NewWeighted(extractionConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, creatorID := range creatorIDs {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(creatorID int32) {
			defer wg.Done()
			defer sem.Release(1)

			creatorResult := e.extractForCreator(ctx, creatorID, cutoff)
			if creatorResult.Err != nil {
				slog.Warn("extraction failed for creator",
					"creator_id", creatorID, "error", creatorResult.Err)
			}

			mu.Lock()
			result.Creators = append(result.Creators, creatorResult)
			mu.Unlock()
		}(creatorID)
	}
	wg.Wait()

	sort.Slice(result.Creators, func(i, j int) bool {
		return result.Creators[i].CreatorID < result.Creators[j].CreatorID
	})

	slog.Info("extraction cycle finished",
		"creators", len(result.Creators),
		"decay_scanned", decayStats.Scanned,
		"decay_deleted", decayStats.Deleted)
	return result, nil
}

func (e *Extractor) extractForCreator(ctx context.Context, creatorID int32, cutoff time.Time) CreatorResult {
	result := CreatorResult{CreatorID: creatorID}

	createdAfter := cutoff.Unix()
	episodes, err := e.store.ListEpisodicMemories(ctx, &store.FindEpisodicMemory{
		CreatorID:    &creatorID,
		CreatedAfter: &createdAfter,
		Limit:        e.config.ExtractionLimit,
	})
	if err != nil {
		result.Err = errors.Wrap(err, "failed to load recent episodic memories")
		return result
	}
	if len(episodes) == 0 {
		return result
	}

	ids := make([]int64, len(episodes))
	for i, episode := range episodes {
		ids[i] = episode.ID
	}
	result.ProcessedCount = len(ids)

	extracted, err := e.ExtractSemanticMemories(ctx, ids, creatorID)
	if err != nil {
		result.Err = err
		return result
	}
	result.ExtractedCount = len(extracted)
	return result
}

func (e *Extractor) tryStartCycle() bool {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()
	if e.running {
		return false
	}
	e.running = true
	return true
}

func (e *Extractor) finishCycle() {
	e.cycleMu.Lock()
	e.running = false
	e.cycleMu.Unlock()
}

// stripCodeFence removes a markdown code fence some models wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func unionIDs(a, b []int64) []int64 {
	seen := make(map[int64]struct{}, len(a)+len(b))
	result := make([]int64, 0, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			result = append(result, id)
		}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			result = append(result, id)
		}
	}
	return result
}
