// Package stripe pulls charges from the Stripe API and normalizes them
// into daily revenue and order series.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	datapointdomain "github.com/pulseboard/pulseboard/internal/datapoint/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	"github.com/pulseboard/pulseboard/internal/sync/domain"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const pageLimit = 100

type Config struct {
	APIBaseURL string
}

type Syncer struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config, client *http.Client) *Syncer {
	if client == nil {
		client = http.DefaultClient
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "https://api.stripe.com"
	}
	return &Syncer{cfg: cfg, client: client}
}

func (s *Syncer) Platform() integrationdomain.Platform {
	return integrationdomain.PlatformStripe
}

type charge struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Created  int64  `json:"created"`
	Paid     bool   `json:"paid"`
	Status   string `json:"status"`
	Refunded bool   `json:"refunded"`
}

type chargeList struct {
	Data    []charge `json:"data"`
	HasMore bool     `json:"has_more"`
}

func (s *Syncer) Sync(ctx context.Context, integration *integrationdomain.Integration, token string, window domain.Window) (*domain.Result, error) {
	revenueByDay := map[time.Time]decimal.Decimal{}
	countByDay := map[time.Time]int{}

	startingAfter := ""
	for {
		page, err := s.listCharges(ctx, token, window, startingAfter)
		if err != nil {
			return nil, err
		}
		for _, c := range page.Data {
			if !c.Paid || c.Status != "succeeded" || c.Refunded {
				continue
			}
			day := time.Unix(c.Created, 0).UTC().Truncate(24 * time.Hour)
			if day.Before(window.From) || !day.Before(window.To) {
				continue
			}
			// Amounts arrive in the smallest currency unit.
			revenueByDay[day] = revenueByDay[day].Add(decimal.New(c.Amount, -2))
			countByDay[day]++
		}
		if !page.HasMore || len(page.Data) == 0 {
			break
		}
		startingAfter = page.Data[len(page.Data)-1].ID
	}

	var revenue, counts []datapointdomain.DataPoint
	for day, total := range revenueByDay {
		value, _ := total.Float64()
		revenue = append(revenue, datapointdomain.DataPoint{
			MetricType:   datapointdomain.MetricRevenue,
			Value:        value,
			DateRecorded: day,
			Metadata:     datatypes.JSONMap{"charges": countByDay[day]},
		})
	}
	for day, n := range countByDay {
		counts = append(counts, datapointdomain.DataPoint{
			MetricType:   datapointdomain.MetricOrders,
			Value:        float64(n),
			DateRecorded: day,
		})
	}

	return &domain.Result{
		Batches: []domain.Batch{
			{Metric: datapointdomain.MetricRevenue, Points: revenue},
			{Metric: datapointdomain.MetricOrders, Points: counts},
		},
	}, nil
}

func (s *Syncer) listCharges(ctx context.Context, key string, window domain.Window, startingAfter string) (*chargeList, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(pageLimit))
	params.Set("created[gte]", strconv.FormatInt(window.From.Unix(), 10))
	params.Set("created[lt]", strconv.FormatInt(window.To.Unix(), 10))
	if startingAfter != "" {
		params.Set("starting_after", startingAfter)
	}

	endpoint := strings.TrimRight(s.cfg.APIBaseURL, "/") + "/v1/charges?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list charges: status %d", resp.StatusCode)
	}

	var page chargeList
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	return &page, nil
}
