// Package v1 exposes the HTTP API: memory capture and search, chat, and
// the cron-triggered extraction cycle.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/CaptainCrouton89/iagent/internal/profile"
	"github.com/CaptainCrouton89/iagent/plugin/ai/chat"
	"github.com/CaptainCrouton89/iagent/plugin/ai/memory"
	apierrors "github.com/CaptainCrouton89/iagent/internal/errors"
	"github.com/CaptainCrouton89/iagent/server/middleware"
	"github.com/CaptainCrouton89/iagent/store"
)

// APIV1Service bundles the handlers and their dependencies.
type APIV1Service struct {
	Secret  string
	Profile *profile.Profile
	Store   *store.Store

	MemoryService *memory.Service
	Evaluator     *memory.RelevanceEvaluator
	Extractor     *memory.Extractor
	Orchestrator  *chat.Orchestrator
}

// NewAPIV1Service creates the API service.
func NewAPIV1Service(secret string, profile *profile.Profile, store *store.Store,
	memoryService *memory.Service, evaluator *memory.RelevanceEvaluator,
	extractor *memory.Extractor, orchestrator *chat.Orchestrator,
) *APIV1Service {
	return &APIV1Service{
		Secret:        secret,
		Profile:       profile,
		Store:         store,
		MemoryService: memoryService,
		Evaluator:     evaluator,
		Extractor:     extractor,
		Orchestrator:  orchestrator,
	}
}

// Register mounts all routes on the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	e.GET("/healthz", s.Healthz)

	// Cron endpoints authenticate with the shared cron secret, not a
	// user token.
	e.GET("/cron/semantic-extraction", s.RunSemanticExtraction)

	rateLimiter := middleware.NewRateLimiter(10, 20)
	apiV1 := e.Group("/api/v1")

	if s.Profile.Mode == "dev" {
		apiV1.POST("/auth/token", s.MintDevToken)
	}

	authed := apiV1.Group("", middleware.Auth(s.Secret), rateLimiter.Middleware())
	authed.POST("/memory", s.CreateMemory)
	authed.GET("/memory/search", s.SearchMemories)
	authed.POST("/chat", s.Chat)
}

// Healthz reports liveness.
func (s *APIV1Service) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// errorResponse maps service errors onto HTTP statuses. Only the message
// is leaked, never the cause chain.
func errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError

	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case apierrors.ErrCodeUnauthorized:
			status = http.StatusUnauthorized
		case apierrors.ErrCodeInvalidArgument:
			status = http.StatusBadRequest
		case apierrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apierrors.ErrCodeOwnershipMismatch:
			status = http.StatusForbidden
		case apierrors.ErrCodeRateLimitExceeded:
			status = http.StatusTooManyRequests
		case apierrors.ErrCodeTimeout:
			status = http.StatusGatewayTimeout
		}
		return c.JSON(status, map[string]string{"error": apiErr.Message})
	}

	return c.JSON(status, map[string]string{"error": "internal server error"})
}
