package rules

import (
	"fmt"

	"github.com/pulseboard/pulseboard/internal/alert/domain"
)

// PerformanceSnapshot compares the current period against the prior one.
type PerformanceSnapshot struct {
	RevenueChange  float64 // ratio: -0.25 means revenue fell 25%
	OrdersChange   float64
	ConversionRate float64 // current-period conversion as a ratio
	HasConversion  bool
}

// CheckPerformance emits drafts for revenue, order, and conversion
// regressions. A zero-value snapshot emits nothing.
func CheckPerformance(snapshot PerformanceSnapshot) []domain.Draft {
	var drafts []domain.Draft

	switch {
	case snapshot.RevenueChange < RevenueDropCritical:
		drafts = append(drafts, revenueDraft(snapshot.RevenueChange, domain.SeverityCritical))
	case snapshot.RevenueChange < RevenueDropHigh:
		drafts = append(drafts, revenueDraft(snapshot.RevenueChange, domain.SeverityHigh))
	}

	if snapshot.OrdersChange < OrdersDropHigh {
		drafts = append(drafts, domain.Draft{
			Type:        domain.TypePerformance,
			Severity:    domain.SeverityHigh,
			Title:       "Order volume dropped",
			Description: fmt.Sprintf("Orders are down %.0f%% against the previous period.", -snapshot.OrdersChange*100),
			Metadata: map[string]any{
				"orders_change": snapshot.OrdersChange,
			},
		})
	}

	if snapshot.HasConversion {
		switch {
		case snapshot.ConversionRate < ConversionCritical:
			drafts = append(drafts, conversionDraft(snapshot.ConversionRate, domain.SeverityCritical))
		case snapshot.ConversionRate < ConversionHigh:
			drafts = append(drafts, conversionDraft(snapshot.ConversionRate, domain.SeverityHigh))
		}
	}

	return drafts
}

func revenueDraft(change float64, severity domain.Severity) domain.Draft {
	return domain.Draft{
		Type:        domain.TypePerformance,
		Severity:    severity,
		Title:       "Revenue dropped",
		Description: fmt.Sprintf("Revenue is down %.0f%% against the previous period.", -change*100),
		Metadata: map[string]any{
			"revenue_change": change,
		},
	}
}

func conversionDraft(rate float64, severity domain.Severity) domain.Draft {
	return domain.Draft{
		Type:        domain.TypePerformance,
		Severity:    severity,
		Title:       "Conversion rate is low",
		Description: fmt.Sprintf("Conversion rate is %.2f%%.", rate*100),
		Metadata: map[string]any{
			"conversion_rate": rate,
		},
	}
}
