package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	datapointdomain "github.com/pulseboard/pulseboard/internal/datapoint/domain"
)

const (
	defaultSummaryDays = 30
	maxSummaryDays     = 365
)

// MetricsSummary rolls up the normalized series for the dashboard header
// cards over the requested trailing window.
func (s *Server) MetricsSummary(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	days := defaultSummaryDays
	if raw := strings.TrimSpace(c.Query("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxSummaryDays {
			AbortWithError(c, newValidationError("days", "invalid", "days must be between 1 and 365"))
			return
		}
		days = parsed
	}

	today := s.clock.Now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -days)
	to := today.AddDate(0, 0, 1)

	ctx := c.Request.Context()
	summary := gin.H{
		"from": from,
		"to":   to,
		"days": days,
	}

	revenue, err := s.dataPoints.SumByMetric(ctx, orgID, datapointdomain.MetricRevenue, from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	orders, err := s.dataPoints.SumByMetric(ctx, orgID, datapointdomain.MetricOrders, from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	customers, err := s.dataPoints.SumByMetric(ctx, orgID, datapointdomain.MetricCustomers, from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	adSpend, err := s.dataPoints.SumByMetric(ctx, orgID, datapointdomain.MetricAdSpend, from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	sessions, err := s.dataPoints.SumByMetric(ctx, orgID, datapointdomain.MetricSessions, from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary["revenue"] = revenue
	summary["orders"] = orders
	summary["customers"] = customers
	summary["ad_spend"] = adSpend
	summary["sessions"] = sessions

	if orders > 0 {
		summary["average_order_value"] = revenue / orders
	}
	if sessions > 0 {
		summary["conversion_rate"] = orders / sessions
	}

	c.JSON(http.StatusOK, summary)
}
