package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	connectdomain "github.com/pulseboard/pulseboard/internal/connect/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	"go.uber.org/zap"
)

// ConnectAuthorize starts the OAuth handshake and sends the merchant's
// browser to the provider consent screen.
func (s *Server) ConnectAuthorize(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	platform, ok := integrationdomain.ParsePlatform(c.Param("platform"))
	if !ok {
		AbortWithError(c, connectdomain.ErrUnsupportedPlatform)
		return
	}

	rawOrg := strings.TrimSpace(c.Query("organization_id"))
	if rawOrg == "" {
		AbortWithError(c, newValidationError("organization_id", "required", "organization is required"))
		return
	}
	orgID, err := snowflake.ParseString(rawOrg)
	if err != nil {
		AbortWithError(c, newValidationError("organization_id", "invalid", "invalid organization id"))
		return
	}

	authorizeURL, err := s.connectSvc.Authorize(c.Request.Context(), connectdomain.AuthorizeParams{
		OrgID:    orgID,
		UserID:   userID,
		Platform: platform,
		Shop:     c.Query("shop"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Redirect(http.StatusFound, authorizeURL)
}

// ConnectCallback lands the provider redirect. Every failure becomes a
// dashboard redirect with an oauth_result code; callback responses never
// carry JSON errors because the caller is a browser mid-redirect.
func (s *Server) ConnectCallback(c *gin.Context) {
	platform, ok := integrationdomain.ParsePlatform(c.Param("platform"))
	if !ok {
		s.redirectCallbackError(c, "unsupported_platform", "")
		return
	}

	result, err := s.connectSvc.Callback(c.Request.Context(), platform, c.Request.URL.Query())
	if err != nil {
		s.log.Warn("oauth callback failed",
			zap.String("platform", platform.String()),
			zap.Error(err),
		)
		s.redirectCallbackError(c, callbackErrorCode(err), strings.ToLower(platform.String()))
		return
	}

	params := url.Values{}
	params.Set("oauth_result", "success")
	params.Set("platform", strings.ToLower(result.Platform.String()))
	if result.Shop != "" {
		params.Set("shop", result.Shop)
	}
	s.redirectDashboard(c, params)
}

func (s *Server) redirectCallbackError(c *gin.Context, code, platform string) {
	params := url.Values{}
	params.Set("oauth_result", "error")
	params.Set("error", code)
	params.Set("message", callbackErrorMessage(code))
	if platform != "" {
		params.Set("platform", platform)
	}
	s.redirectDashboard(c, params)
}

func (s *Server) redirectDashboard(c *gin.Context, params url.Values) {
	c.Redirect(http.StatusFound, s.cfg.AppBaseURL+"/dashboard/integrations?"+params.Encode())
}

// callbackErrorCode folds state-machine failures and adapter failures
// into one redirect code namespace.
func callbackErrorCode(err error) string {
	switch {
	case errors.Is(err, integrationdomain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, integrationdomain.ErrStateExpired):
		return "state_expired"
	case errors.Is(err, integrationdomain.ErrShopMismatch):
		return "shop_mismatch"
	default:
		return connectdomain.RedirectErrorCode(err)
	}
}

// callbackErrorMessage is the human-readable counterpart shown on the
// dashboard. Codes stay machine-parseable; messages are for merchants.
func callbackErrorMessage(code string) string {
	switch code {
	case "invalid_state":
		return "The authorization state did not match. Please start the connection again."
	case "state_expired":
		return "The authorization request expired. Please start the connection again."
	case "shop_mismatch":
		return "The shop in the callback did not match the one that started the connection."
	case "provider_denied":
		return "The provider denied the authorization request."
	case "missing_params":
		return "The provider callback was missing required parameters."
	case "invalid_signature":
		return "The provider callback signature could not be verified."
	case "token_exchange_failed":
		return "Exchanging the authorization code for an access token failed."
	case "unsupported_platform":
		return "This platform is not supported."
	case "platform_not_configured":
		return "This platform is not configured on the server."
	default:
		return "Connecting the integration failed. Please try again."
	}
}

type ConnectWithKeyRequest struct {
	Credentials map[string]string `json:"credentials"`
}

// ConnectWithKey connects a key-based platform with merchant-supplied
// credentials.
func (s *Server) ConnectWithKey(c *gin.Context) {
	userID, _ := s.userID(c)
	orgID, ok := s.orgID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	platform, okPlatform := integrationdomain.ParsePlatform(c.Param("platform"))
	if !okPlatform {
		AbortWithError(c, connectdomain.ErrUnsupportedPlatform)
		return
	}

	var req ConnectWithKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Credentials) == 0 {
		AbortWithError(c, newValidationError("credentials", "required", "credentials are required"))
		return
	}

	result, err := s.connectSvc.ConnectWithKey(c.Request.Context(), connectdomain.ConnectWithKeyParams{
		OrgID:       orgID,
		UserID:      userID,
		Platform:    platform,
		Credentials: req.Credentials,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"platform": result.Platform,
		"status":   integrationdomain.StatusConnected,
	})
}
