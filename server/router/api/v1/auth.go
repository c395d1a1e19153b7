package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	apierrors "github.com/CaptainCrouton89/iagent/internal/errors"
	"github.com/CaptainCrouton89/iagent/server/middleware"
)

type mintTokenRequest struct {
	UserID int32 `json:"userId"`
}

type mintTokenResponse struct {
	Token string `json:"token"`
}

// MintDevToken issues an access token without credentials. Registered in
// dev mode only.
func (s *APIV1Service) MintDevToken(c echo.Context) error {
	var req mintTokenRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apierrors.InvalidArgument("malformed request body"))
	}
	if req.UserID <= 0 {
		return errorResponse(c, apierrors.InvalidArgument("userId must be positive"))
	}

	token, err := middleware.GenerateAccessToken(s.Secret, req.UserID,
		time.Now().Add(middleware.AccessTokenDuration))
	if err != nil {
		return errorResponse(c, apierrors.UpstreamFailed("failed to sign token", err))
	}
	return c.JSON(http.StatusOK, mintTokenResponse{Token: token})
}
