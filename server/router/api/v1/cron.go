package v1

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/CaptainCrouton89/iagent/plugin/ai/memory"
	apierrors "github.com/CaptainCrouton89/iagent/internal/errors"
)

type creatorResultResponse struct {
	UserID         int32  `json:"userId"`
	ProcessedCount int    `json:"processedCount"`
	ExtractedCount int    `json:"extractedCount"`
	Error          string `json:"error,omitempty"`
}

type cronResponse struct {
	Success   bool                    `json:"success"`
	Message   string                  `json:"message"`
	Results   []creatorResultResponse `json:"results"`
	Timestamp string                  `json:"timestamp"`
}

// RunSemanticExtraction triggers one decay+extraction cycle. The caller
// authenticates with the shared cron secret; a mismatch is rejected
// before any side effect.
func (s *APIV1Service) RunSemanticExtraction(c echo.Context) error {
	if !s.cronAuthorized(c.Request().Header.Get("Authorization")) {
		return errorResponse(c, apierrors.Unauthorized("invalid cron secret"))
	}

	result, err := s.Extractor.RunExtractionCycle(c.Request().Context())
	if err != nil {
		if errors.Is(err, memory.ErrCycleRunning) {
			return c.JSON(http.StatusOK, cronResponse{
				Success:   true,
				Message:   "extraction cycle already running, skipped",
				Results:   []creatorResultResponse{},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		}
		return errorResponse(c, apierrors.UpstreamFailed("extraction cycle failed", err))
	}

	results := make([]creatorResultResponse, 0, len(result.Creators))
	for _, creator := range result.Creators {
		item := creatorResultResponse{
			UserID:         creator.CreatorID,
			ProcessedCount: creator.ProcessedCount,
			ExtractedCount: creator.ExtractedCount,
		}
		if creator.Err != nil {
			item.Error = creator.Err.Error()
		}
		results = append(results, item)
	}

	return c.JSON(http.StatusOK, cronResponse{
		Success:   true,
		Message:   "extraction cycle completed",
		Results:   results,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// cronAuthorized compares the bearer token against the cron secret in
// constant time.
func (s *APIV1Service) cronAuthorized(header string) bool {
	if s.Profile.CronSecret == "" {
		return false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.Profile.CronSecret)) == 1
}
