package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/pulseboard/pulseboard/internal/alert/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
)

// SyncFailure describes one failed sync run for an integration.
func SyncFailure(integration integrationdomain.Integration, message string) domain.Draft {
	platform := strings.ToLower(integration.Platform.String())
	return domain.Draft{
		Type:        domain.TypeIntegration,
		Severity:    domain.SeverityHigh,
		Title:       fmt.Sprintf("Sync failed: %s", platform),
		Description: fmt.Sprintf("The %s data sync failed: %s", platform, message),
		Metadata: map[string]any{
			"integration_id": integration.ID.String(),
			"platform":       platform,
		},
		ActionURL:   "/dashboard/integrations",
		ActionLabel: "Check integration",
	}
}

// CheckIntegrationHealth emits a draft for an errored or stale
// integration. Disconnected slots are intentionally quiet.
func CheckIntegrationHealth(integration integrationdomain.Integration, now time.Time) []domain.Draft {
	platform := strings.ToLower(integration.Platform.String())

	if integration.Status == integrationdomain.StatusError {
		description := fmt.Sprintf("The %s integration reported an error.", platform)
		if integration.LastError != "" {
			description = fmt.Sprintf("The %s integration reported an error: %s", platform, integration.LastError)
		}
		return []domain.Draft{{
			Type:        domain.TypeIntegration,
			Severity:    domain.SeverityHigh,
			Title:       fmt.Sprintf("Integration error: %s", platform),
			Description: description,
			Metadata: map[string]any{
				"integration_id": integration.ID.String(),
				"platform":       platform,
			},
			ActionURL:   "/dashboard/integrations",
			ActionLabel: "Check integration",
		}}
	}

	if integration.Status != integrationdomain.StatusConnected {
		return nil
	}

	lastSync := integration.ConnectedAt
	if integration.LastSyncAt != nil {
		lastSync = integration.LastSyncAt
	}
	if lastSync == nil {
		return nil
	}

	age := now.Sub(*lastSync)
	var severity domain.Severity
	switch {
	case age > SyncStaleHigh:
		severity = domain.SeverityHigh
	case age > SyncStaleMedium:
		severity = domain.SeverityMedium
	default:
		return nil
	}

	return []domain.Draft{{
		Type:        domain.TypeIntegration,
		Severity:    severity,
		Title:       fmt.Sprintf("Stale data: %s", platform),
		Description: fmt.Sprintf("The %s integration has not synced in %d hours.", platform, int(age.Hours())),
		Metadata: map[string]any{
			"integration_id": integration.ID.String(),
			"platform":       platform,
			"hours_stale":    int(age.Hours()),
		},
		ActionURL:   "/dashboard/integrations",
		ActionLabel: "Check integration",
	}}
}
