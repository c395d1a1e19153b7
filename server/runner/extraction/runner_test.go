package extraction

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CaptainCrouton89/iagent/internal/profile"
	"github.com/CaptainCrouton89/iagent/plugin/ai"
	"github.com/CaptainCrouton89/iagent/plugin/ai/memory"
	"github.com/CaptainCrouton89/iagent/store"
	"github.com/CaptainCrouton89/iagent/store/db"
)

func TestRunnerRunsOnceOnStartAndStops(t *testing.T) {
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "iagent_test.db"),
	}
	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)
	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	config := memory.Config{
		RelevanceThreshold: 0.5,
		MergeThreshold:     0.85,
		ExtractionWindow:   24 * time.Hour,
		ExtractionLimit:    20,
		DecayWindow:        72 * time.Hour,
		DecayDecrement:     0.05,
		ConfidenceFloor:    0.2,
		ConfidenceCap:      1.0,
		ReinforcementBonus: 0.1,
	}
	extractor := memory.NewExtractor(s, ai.NewMockEmbeddingService(4), ai.NewMockLLMService(), config)
	runner := NewRunner(extractor, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	// The immediate cycle on an empty store finishes quickly; then the
	// runner should exit on cancellation long before the first tick.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}
}
