package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/CaptainCrouton89/iagent/plugin/ai"
	apierrors "github.com/CaptainCrouton89/iagent/internal/errors"
	"github.com/CaptainCrouton89/iagent/server/middleware"
)

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Chat answers a conversation through the memory-aware orchestrator.
func (s *APIV1Service) Chat(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return errorResponse(c, apierrors.Unauthorized("authentication required"))
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apierrors.InvalidArgument("malformed request body"))
	}
	if len(req.Messages) == 0 {
		return errorResponse(c, apierrors.InvalidArgument("messages are required"))
	}

	messages := make([]ai.Message, len(req.Messages))
	for i, message := range req.Messages {
		messages[i] = ai.Message{Role: message.Role, Content: message.Content}
	}

	reply, err := s.Orchestrator.Reply(c.Request().Context(), userID, messages)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, chatResponse{Reply: reply})
}
