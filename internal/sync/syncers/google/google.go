// Package google validates the stored Google Analytics service account
// on each run. Session and conversion series come from the reporting
// pipeline once the Data API client is wired in.
package google

import (
	"context"
	"encoding/json"
	"fmt"

	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	"github.com/pulseboard/pulseboard/internal/sync/domain"
)

type Syncer struct{}

func New() *Syncer { return &Syncer{} }

func (s *Syncer) Platform() integrationdomain.Platform {
	return integrationdomain.PlatformGoogleAnalytics
}

type serviceAccount struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

func (s *Syncer) Sync(ctx context.Context, integration *integrationdomain.Integration, token string, window domain.Window) (*domain.Result, error) {
	var account serviceAccount
	if err := json.Unmarshal([]byte(token), &account); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenDecrypt, err)
	}
	if account.Type != "service_account" || account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, domain.ErrMissingToken
	}
	return &domain.Result{}, nil
}
