// Package server assembles the HTTP server and background runners.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/CaptainCrouton89/iagent/internal/profile"
	"github.com/CaptainCrouton89/iagent/plugin/ai"
	"github.com/CaptainCrouton89/iagent/plugin/ai/chat"
	"github.com/CaptainCrouton89/iagent/plugin/ai/memory"
	"github.com/CaptainCrouton89/iagent/server/middleware"
	apiv1 "github.com/CaptainCrouton89/iagent/server/router/api/v1"
	"github.com/CaptainCrouton89/iagent/server/runner/extraction"
	"github.com/CaptainCrouton89/iagent/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	extractor  *memory.Extractor
}

// NewServer builds the server: AI clients, memory pipeline, routes.
// All dependencies are constructed here and injected; nothing reaches
// for globals.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	aiConfig := ai.NewConfigFromProfile(profile)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI config: %w", err)
	}
	embeddingService, err := ai.NewEmbeddingService(&aiConfig.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}
	llmService, err := ai.NewLLMService(&aiConfig.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM service: %w", err)
	}

	memoryConfig := memory.NewConfigFromProfile(profile)
	memoryService := memory.NewService(store, embeddingService, memoryConfig)
	evaluator := memory.NewRelevanceEvaluator(llmService)
	extractor := memory.NewExtractor(store, embeddingService, llmService, memoryConfig)
	orchestrator := chat.NewOrchestrator(llmService, memoryService, evaluator, profile.MemoryRelevanceThreshold)

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(echomiddleware.Recover())
	echoServer.Use(middleware.RequestID())

	apiService := apiv1.NewAPIV1Service(profile.Secret, profile, store,
		memoryService, evaluator, extractor, orchestrator)
	apiService.Register(echoServer)

	return &Server{
		Profile:    profile,
		Store:      store,
		echoServer: echoServer,
		extractor:  extractor,
	}, nil
}

// Start begins serving and launches the background extraction runner.
// It returns once the listener is up or fails.
func (s *Server) Start(ctx context.Context) error {
	if s.Profile.ExtractionInterval > 0 {
		runner := extraction.NewRunner(s.extractor, s.Profile.ExtractionInterval)
		go runner.Run(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.echoServer.Start(fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port))
	}()

	select {
	case err := <-errChan:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Shutdown drains in-flight requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.Store.Close()
}
