package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/CaptainCrouton89/iagent/plugin/ai/memory"
	apierrors "github.com/CaptainCrouton89/iagent/internal/errors"
	"github.com/CaptainCrouton89/iagent/server/middleware"
	"github.com/CaptainCrouton89/iagent/store"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type createMemoryRequest struct {
	Messages []chatMessage `json:"messages"`
	Source   string        `json:"source,omitempty"`
	SourceID string        `json:"sourceId,omitempty"`
}

type createMemoryResponse struct {
	Success   bool    `json:"success"`
	Stored    bool    `json:"stored"`
	Relevance float32 `json:"relevance"`
}

// CreateMemory evaluates the relevance of the user content and stores it
// as an episodic memory iff the score exceeds the threshold.
func (s *APIV1Service) CreateMemory(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return errorResponse(c, apierrors.Unauthorized("authentication required"))
	}

	var req createMemoryRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apierrors.InvalidArgument("malformed request body"))
	}

	content := joinUserContent(req.Messages)
	if content == "" {
		return errorResponse(c, apierrors.InvalidArgument("messages contain no user content"))
	}

	source := store.MemorySource(req.Source)
	if req.Source == "" {
		source = store.MemorySourceChat
	}
	if !source.Valid() {
		return errorResponse(c, apierrors.InvalidArgument("unknown source"))
	}

	score, err := s.Evaluator.Evaluate(c.Request().Context(), source, map[string]string{"message": content})
	if err != nil {
		return errorResponse(c, apierrors.UpstreamFailed("relevance evaluation failed", err))
	}

	stored := false
	if score > s.Profile.MemoryRelevanceThreshold {
		createReq := &memory.CreateMemoryRequest{
			CreatorID:      userID,
			Content:        content,
			Source:         source,
			RelevanceScore: score,
		}
		if req.SourceID != "" {
			createReq.SourceID = &req.SourceID
		}
		if _, err := s.MemoryService.CreateMemory(c.Request().Context(), createReq); err != nil {
			return errorResponse(c, err)
		}
		stored = true
	}

	return c.JSON(http.StatusOK, createMemoryResponse{
		Success:   true,
		Stored:    stored,
		Relevance: score,
	})
}

type scoredMemoryResponse struct {
	UID        string  `json:"uid"`
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Similarity float32 `json:"similarity"`
	CreatedTs  int64   `json:"createdTs"`
}

// SearchMemories ranks the caller's episodic memories against a query.
func (s *APIV1Service) SearchMemories(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return errorResponse(c, apierrors.Unauthorized("authentication required"))
	}

	query := c.QueryParam("q")
	if strings.TrimSpace(query) == "" {
		return errorResponse(c, apierrors.InvalidArgument("query parameter q is required"))
	}

	threshold := float32(0.5)
	if raw := c.QueryParam("threshold"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 || value > 1 {
			return errorResponse(c, apierrors.InvalidArgument("threshold must be a number in [0, 1]"))
		}
		threshold = float32(value)
	}

	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 || value > 100 {
			return errorResponse(c, apierrors.InvalidArgument("limit must be a positive integer up to 100"))
		}
		limit = value
	}

	results, err := s.MemoryService.SearchMemories(c.Request().Context(), userID, query, threshold, limit)
	if err != nil {
		return errorResponse(c, err)
	}

	response := make([]scoredMemoryResponse, 0, len(results))
	for _, result := range results {
		response = append(response, scoredMemoryResponse{
			UID:        result.Memory.UID,
			Content:    result.Memory.Content,
			Source:     string(result.Memory.Source),
			Similarity: result.Similarity,
			CreatedTs:  result.Memory.CreatedTs,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"memories": response})
}

// joinUserContent concatenates the user-role message contents.
func joinUserContent(messages []chatMessage) string {
	var parts []string
	for _, message := range messages {
		if message.Role != "user" {
			continue
		}
		if content := strings.TrimSpace(message.Content); content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n")
}
