// Package google implements Google Analytics connect via a
// service-account credential rather than a browser flow.
package google

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/pulseboard/pulseboard/internal/connect/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
)

type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Platform() integrationdomain.Platform {
	return integrationdomain.PlatformGoogleAnalytics
}

func (a *Adapter) UsesRedirectFlow() bool { return false }

func (a *Adapter) BuildAuthorizeURL(req domain.AuthorizeRequest) (string, error) {
	return "", domain.ErrUnsupportedFlow
}

func (a *Adapter) VerifyCallbackSignature(query url.Values) error {
	return domain.ErrUnsupportedFlow
}

func (a *Adapter) ExchangeToken(ctx context.Context, code, shop string) (*domain.TokenResult, error) {
	return nil, domain.ErrUnsupportedFlow
}

type serviceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

// ValidateCredentials checks the shape of a service-account JSON blob.
// The blob itself becomes the stored credential.
func (a *Adapter) ValidateCredentials(ctx context.Context, credentials map[string]string) (*domain.TokenResult, error) {
	raw := strings.TrimSpace(credentials["service_account_json"])
	if raw == "" {
		return nil, domain.ErrInvalidCredentials
	}

	var account serviceAccount
	if err := json.Unmarshal([]byte(raw), &account); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if account.Type != "service_account" || account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, domain.ErrInvalidCredentials
	}

	propertyID := strings.TrimSpace(credentials["property_id"])
	metadata := map[string]any{
		"project_id":   account.ProjectID,
		"client_email": account.ClientEmail,
	}
	if propertyID != "" {
		metadata["property_id"] = propertyID
	}

	return &domain.TokenResult{
		AccessToken: raw,
		Metadata:    metadata,
	}, nil
}

func (a *Adapter) FetchAccountInfo(ctx context.Context, token, shop string) (*domain.AccountInfo, error) {
	return nil, domain.ErrUnsupportedFlow
}

func (a *Adapter) RegisterWebhook(ctx context.Context, token, shop string) error {
	return nil
}
