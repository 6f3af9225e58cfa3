package rules

import (
	"fmt"

	"github.com/pulseboard/pulseboard/internal/alert/domain"
)

// CustomerSnapshot summarizes customer health for the current period.
type CustomerSnapshot struct {
	ChurnRate    float64 // ratio of customers lost this period
	NewCustomers int
	HasCustomers bool    // false when the org has no customer history yet
	AOVChange    float64 // average-order-value change ratio vs prior period
}

// CheckCustomers emits drafts for churn spikes, acquisition stalls, and
// falling order values.
func CheckCustomers(snapshot CustomerSnapshot) []domain.Draft {
	var drafts []domain.Draft

	switch {
	case snapshot.ChurnRate > ChurnRateCritical:
		drafts = append(drafts, churnDraft(snapshot.ChurnRate, domain.SeverityCritical))
	case snapshot.ChurnRate > ChurnRateHigh:
		drafts = append(drafts, churnDraft(snapshot.ChurnRate, domain.SeverityHigh))
	}

	if snapshot.HasCustomers {
		switch {
		case snapshot.NewCustomers == 0:
			drafts = append(drafts, domain.Draft{
				Type:        domain.TypeCustomer,
				Severity:    domain.SeverityHigh,
				Title:       "No new customers",
				Description: "No new customers were acquired this period.",
				Metadata:    map[string]any{"new_customers": 0},
			})
		case snapshot.NewCustomers < NewCustomersLow:
			drafts = append(drafts, domain.Draft{
				Type:        domain.TypeCustomer,
				Severity:    domain.SeverityMedium,
				Title:       "Customer acquisition is slowing",
				Description: fmt.Sprintf("Only %d new customers this period.", snapshot.NewCustomers),
				Metadata:    map[string]any{"new_customers": snapshot.NewCustomers},
			})
		}
	}

	switch {
	case snapshot.AOVChange < AOVDropHigh:
		drafts = append(drafts, aovDraft(snapshot.AOVChange, domain.SeverityHigh))
	case snapshot.AOVChange < AOVDropMedium:
		drafts = append(drafts, aovDraft(snapshot.AOVChange, domain.SeverityMedium))
	}

	return drafts
}

func churnDraft(rate float64, severity domain.Severity) domain.Draft {
	return domain.Draft{
		Type:        domain.TypeCustomer,
		Severity:    severity,
		Title:       "Churn rate is elevated",
		Description: fmt.Sprintf("Churn reached %.0f%% this period.", rate*100),
		Metadata:    map[string]any{"churn_rate": rate},
	}
}

func aovDraft(change float64, severity domain.Severity) domain.Draft {
	return domain.Draft{
		Type:        domain.TypeCustomer,
		Severity:    severity,
		Title:       "Average order value dropped",
		Description: fmt.Sprintf("Average order value is down %.0f%% against the previous period.", -change*100),
		Metadata:    map[string]any{"aov_change": change},
	}
}
