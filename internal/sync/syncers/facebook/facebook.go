// Package facebook pulls daily ad spend from the Marketing API insights
// endpoint for every ad account the stored token can see.
package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	datapointdomain "github.com/pulseboard/pulseboard/internal/datapoint/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	"github.com/pulseboard/pulseboard/internal/sync/domain"
	"github.com/pulseboard/pulseboard/pkg/secrets"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const graphVersion = "v18.0"

type Config struct {
	AppSecret   string
	GraphAPIURL string
}

type Syncer struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config, client *http.Client) *Syncer {
	if client == nil {
		client = http.DefaultClient
	}
	if strings.TrimSpace(cfg.GraphAPIURL) == "" {
		cfg.GraphAPIURL = "https://graph.facebook.com"
	}
	return &Syncer{cfg: cfg, client: client}
}

func (s *Syncer) Platform() integrationdomain.Platform {
	return integrationdomain.PlatformFacebookAds
}

type adAccountList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type insightList struct {
	Data []struct {
		Spend     string `json:"spend"`
		DateStart string `json:"date_start"`
	} `json:"data"`
}

func (s *Syncer) Sync(ctx context.Context, integration *integrationdomain.Integration, token string, window domain.Window) (*domain.Result, error) {
	accounts, err := s.listAdAccounts(ctx, token)
	if err != nil {
		return nil, err
	}

	spendByDay := map[time.Time]decimal.Decimal{}
	for _, account := range accounts.Data {
		insights, err := s.listInsights(ctx, token, account.ID, window)
		if err != nil {
			return nil, err
		}
		for _, row := range insights.Data {
			day, err := time.Parse("2006-01-02", row.DateStart)
			if err != nil {
				continue
			}
			spend, err := decimal.NewFromString(row.Spend)
			if err != nil {
				continue
			}
			spendByDay[day] = spendByDay[day].Add(spend)
		}
	}

	var points []datapointdomain.DataPoint
	for day, spend := range spendByDay {
		value, _ := spend.Float64()
		points = append(points, datapointdomain.DataPoint{
			MetricType:   datapointdomain.MetricAdSpend,
			Value:        value,
			DateRecorded: day,
			Metadata:     datatypes.JSONMap{"accounts": len(accounts.Data)},
		})
	}

	return &domain.Result{
		Batches: []domain.Batch{
			{Metric: datapointdomain.MetricAdSpend, Points: points},
		},
	}, nil
}

func (s *Syncer) listAdAccounts(ctx context.Context, token string) (*adAccountList, error) {
	params := url.Values{}
	params.Set("fields", "id")
	var accounts adAccountList
	if err := s.get(ctx, token, "/me/adaccounts", params, &accounts); err != nil {
		return nil, err
	}
	return &accounts, nil
}

func (s *Syncer) listInsights(ctx context.Context, token, accountID string, window domain.Window) (*insightList, error) {
	timeRange := fmt.Sprintf(`{"since":%q,"until":%q}`,
		window.From.UTC().Format("2006-01-02"),
		window.To.Add(-24*time.Hour).UTC().Format("2006-01-02"),
	)
	params := url.Values{}
	params.Set("fields", "spend")
	params.Set("time_increment", "1")
	params.Set("time_range", timeRange)

	var insights insightList
	if err := s.get(ctx, token, "/"+accountID+"/insights", params, &insights); err != nil {
		return nil, err
	}
	return &insights, nil
}

func (s *Syncer) get(ctx context.Context, token, path string, params url.Values, out any) error {
	params.Set("access_token", token)
	params.Set("appsecret_proof", secrets.SignHMAC([]byte(token), s.cfg.AppSecret))

	endpoint := strings.TrimRight(s.cfg.GraphAPIURL, "/") + "/" + graphVersion + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("graph api: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graph api: status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}
