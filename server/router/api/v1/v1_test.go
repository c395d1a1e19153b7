package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaptainCrouton89/iagent/internal/profile"
	"github.com/CaptainCrouton89/iagent/plugin/ai"
	"github.com/CaptainCrouton89/iagent/plugin/ai/chat"
	"github.com/CaptainCrouton89/iagent/plugin/ai/memory"
	"github.com/CaptainCrouton89/iagent/server/middleware"
	"github.com/CaptainCrouton89/iagent/store"
	"github.com/CaptainCrouton89/iagent/store/db"
)

type testEnv struct {
	echo    *echo.Echo
	store   *store.Store
	llm     *ai.MockLLMService
	profile *profile.Profile
}

func newTestEnv(t *testing.T, replies ...string) *testEnv {
	p := &profile.Profile{
		Mode:                     "dev",
		Driver:                   "sqlite",
		DSN:                      filepath.Join(t.TempDir(), "iagent_test.db"),
		Secret:                   "test-secret",
		CronSecret:               "cron-secret",
		MemoryRelevanceThreshold: 0.5,
		MemoryMergeThreshold:     0.85,
		MemoryExtractionWindow:   24 * time.Hour,
		MemoryExtractionLimit:    20,
		MemoryDecayWindow:        72 * time.Hour,
		MemoryDecayDecrement:     0.05,
		MemoryConfidenceFloor:    0.2,
		MemoryConfidenceCap:      1.0,
		MemoryReinforcementBonus: 0.1,
	}

	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)
	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	embedder := ai.NewMockEmbeddingService(4)
	llm := ai.NewMockLLMService(replies...)
	config := memory.NewConfigFromProfile(p)
	memoryService := memory.NewService(s, embedder, config)
	evaluator := memory.NewRelevanceEvaluator(llm)
	extractor := memory.NewExtractor(s, embedder, llm, config)
	orchestrator := chat.NewOrchestrator(llm, memoryService, evaluator, p.MemoryRelevanceThreshold)

	e := echo.New()
	service := NewAPIV1Service(p.Secret, p, s, memoryService, evaluator, extractor, orchestrator)
	service.Register(e)

	return &testEnv{echo: e, store: s, llm: llm, profile: p}
}

func (env *testEnv) token(t *testing.T, userID int32) string {
	t.Helper()
	token, err := middleware.GenerateAccessToken(env.profile.Secret, userID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return token
}

func (env *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateMemoryEndpoint(t *testing.T) {
	t.Run("stores relevant content on a fresh store", func(t *testing.T) {
		env := newTestEnv(t, "0.9")
		body := `{"messages": [{"role": "user", "content": "my sister's name is Ana"}]}`

		rec := env.do(http.MethodPost, "/api/v1/memory", env.token(t, 1), body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp createMemoryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.True(t, resp.Stored)
		assert.InDelta(t, 0.9, resp.Relevance, 1e-6)

		creatorID := int32(1)
		rows, err := env.store.ListEpisodicMemories(context.Background(),
			&store.FindEpisodicMemory{CreatorID: &creatorID})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "my sister's name is Ana", rows[0].Content)
	})

	t.Run("low relevance is reported but not stored", func(t *testing.T) {
		env := newTestEnv(t, "0.2")
		body := `{"messages": [{"role": "user", "content": "ok thanks"}]}`

		rec := env.do(http.MethodPost, "/api/v1/memory", env.token(t, 1), body)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp createMemoryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.False(t, resp.Stored)

		creatorID := int32(1)
		rows, err := env.store.ListEpisodicMemories(context.Background(),
			&store.FindEpisodicMemory{CreatorID: &creatorID})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("empty messages are a 400", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(http.MethodPost, "/api/v1/memory", env.token(t, 1), `{"messages": []}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("assistant-only messages are a 400", func(t *testing.T) {
		env := newTestEnv(t)
		body := `{"messages": [{"role": "assistant", "content": "hello"}]}`
		rec := env.do(http.MethodPost, "/api/v1/memory", env.token(t, 1), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing token is a 401", func(t *testing.T) {
		env := newTestEnv(t)
		body := `{"messages": [{"role": "user", "content": "hello"}]}`
		rec := env.do(http.MethodPost, "/api/v1/memory", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unparseable relevance is a 500", func(t *testing.T) {
		env := newTestEnv(t, "maybe?")
		body := `{"messages": [{"role": "user", "content": "hello"}]}`
		rec := env.do(http.MethodPost, "/api/v1/memory", env.token(t, 1), body)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestSearchMemoriesEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, 1)

	t.Run("missing query is a 400", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/memory/search", token, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad threshold is a 400", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/memory/search?q=tea&threshold=2", token, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty store yields empty list", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/memory/search?q=tea&threshold=0.5&limit=5", token, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Memories []scoredMemoryResponse `json:"memories"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.Memories)
	})
}

func TestChatEndpoint(t *testing.T) {
	// Reply first, then the relevance score for capture.
	env := newTestEnv(t, "Nice to meet you, Ana!", "0.8")
	body := `{"messages": [{"role": "user", "content": "hi, I'm Ana and I live in Porto"}]}`

	rec := env.do(http.MethodPost, "/api/v1/chat", env.token(t, 5), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Nice to meet you, Ana!", resp.Reply)

	creatorID := int32(5)
	rows, err := env.store.ListEpisodicMemories(context.Background(),
		&store.FindEpisodicMemory{CreatorID: &creatorID})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCronEndpoint(t *testing.T) {
	seedStaleSemantic := func(t *testing.T, env *testEnv) *store.SemanticMemory {
		t.Helper()
		ctx := context.Background()
		episode, err := env.store.CreateEpisodicMemory(ctx, &store.EpisodicMemory{
			UID:            "ep-1",
			CreatorID:      1,
			Content:        "stale seed",
			Embedding:      []float32{1, 0, 0, 0},
			Source:         store.MemorySourceChat,
			RelevanceScore: 0.9,
			CreatedTs:      time.Now().Add(-200 * time.Hour).Unix(),
		})
		require.NoError(t, err)

		semantic, err := env.store.CreateSemanticMemory(ctx, &store.SemanticMemory{
			UID:              "sm-1",
			CreatorID:        1,
			Statement:        "the user exists",
			Embedding:        []float32{1, 0, 0, 0},
			Confidence:       0.8,
			DerivedFrom:      []int64{episode.ID},
			CreatedTs:        time.Now().Add(-200 * time.Hour).Unix(),
			LastReinforcedTs: time.Now().Add(-200 * time.Hour).Unix(),
		})
		require.NoError(t, err)
		return semantic
	}

	t.Run("wrong secret is a 401 with no side effects", func(t *testing.T) {
		env := newTestEnv(t)
		semantic := seedStaleSemantic(t, env)

		rec := env.do(http.MethodGet, "/cron/semantic-extraction", "wrong-secret", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		uid := semantic.UID
		rows, err := env.store.ListSemanticMemories(context.Background(),
			&store.FindSemanticMemory{UID: &uid})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.InDelta(t, 0.8, rows[0].Confidence, 1e-6, "no decay may run on auth failure")
	})

	t.Run("missing header is a 401", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(http.MethodGet, "/cron/semantic-extraction", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid secret runs decay and extraction", func(t *testing.T) {
		env := newTestEnv(t, `[{"statement": "the user enjoys hiking", "confidence": 0.7}]`)
		semantic := seedStaleSemantic(t, env)

		ctx := context.Background()
		_, err := env.store.CreateEpisodicMemory(ctx, &store.EpisodicMemory{
			UID:            "ep-recent",
			CreatorID:      2,
			Content:        "went hiking again this weekend",
			Embedding:      []float32{0, 1, 0, 0},
			Source:         store.MemorySourceChat,
			RelevanceScore: 0.9,
			CreatedTs:      time.Now().Unix(),
		})
		require.NoError(t, err)

		rec := env.do(http.MethodGet, "/cron/semantic-extraction", env.profile.CronSecret, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp cronResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, int32(2), resp.Results[0].UserID)
		assert.Equal(t, 1, resp.Results[0].ExtractedCount)
		assert.NotEmpty(t, resp.Timestamp)

		uid := semantic.UID
		rows, err := env.store.ListSemanticMemories(context.Background(),
			&store.FindSemanticMemory{UID: &uid})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.InDelta(t, 0.75, rows[0].Confidence, 1e-6, "stale row decayed once")
	})
}

func TestMintDevToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/auth/token", "", `{"userId": 9}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp mintTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	body := `{"messages": [{"role": "user", "content": "remember me"}]}`
	env.llm.Enqueue("0.9")
	logged := env.do(http.MethodPost, "/api/v1/memory", resp.Token, body)
	assert.Equal(t, http.StatusOK, logged.Code)
}
