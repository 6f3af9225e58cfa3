// Package woocommerce pulls orders from the WooCommerce REST API using
// the consumer key/secret stored at connect time.
package woocommerce

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
	APIPathPrefix string
}

type Syncer struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config, client *http.Client) *Syncer {
	if client == nil {
		client = http.DefaultClient
	}
	if strings.TrimSpace(cfg.APIPathPrefix) == "" {
		cfg.APIPathPrefix = "/wp-json/wc/v3"
	}
	return &Syncer{cfg: cfg, client: client}
}

func (s *Syncer) Platform() integrationdomain.Platform {
	return integrationdomain.PlatformWooCommerce
}

// storedCredential mirrors the blob the connect adapter encrypts.
type storedCredential struct {
	StoreURL       string `json:"store_url"`
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

type order struct {
	ID          int64  `json:"id"`
	Status      string `json:"status"`
	Total       string `json:"total"`
	DateCreated string `json:"date_created_gmt"`
}

func (s *Syncer) Sync(ctx context.Context, integration *integrationdomain.Integration, token string, window domain.Window) (*domain.Result, error) {
	var cred storedCredential
	if err := json.Unmarshal([]byte(token), &cred); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenDecrypt, err)
	}
	if cred.StoreURL == "" || cred.ConsumerKey == "" || cred.ConsumerSecret == "" {
		return nil, domain.ErrMissingToken
	}

	revenueByDay := map[time.Time]decimal.Decimal{}
	countByDay := map[time.Time]int{}

	for page := 1; ; page++ {
		orders, err := s.listOrders(ctx, cred, window, page)
		if err != nil {
			return nil, err
		}
		for _, o := range orders {
			if o.Status != "completed" && o.Status != "processing" {
				continue
			}
			created, err := time.Parse("2006-01-02T15:04:05", o.DateCreated)
			if err != nil {
				continue
			}
			day := created.UTC().Truncate(24 * time.Hour)
			if day.Before(window.From) || !day.Before(window.To) {
				continue
			}
			total, err := decimal.NewFromString(o.Total)
			if err != nil {
				continue
			}
			revenueByDay[day] = revenueByDay[day].Add(total)
			countByDay[day]++
		}
		if len(orders) < pageLimit {
			break
		}
	}

	var revenue, counts []datapointdomain.DataPoint
	for day, total := range revenueByDay {
		value, _ := total.Float64()
		revenue = append(revenue, datapointdomain.DataPoint{
			MetricType:   datapointdomain.MetricRevenue,
			Value:        value,
			DateRecorded: day,
			Metadata:     datatypes.JSONMap{"orders": countByDay[day]},
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

func (s *Syncer) listOrders(ctx context.Context, cred storedCredential, window domain.Window, page int) ([]order, error) {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(pageLimit))
	params.Set("page", strconv.Itoa(page))
	params.Set("after", window.From.UTC().Format("2006-01-02T15:04:05"))
	params.Set("before", window.To.UTC().Format("2006-01-02T15:04:05"))

	endpoint := strings.TrimRight(cred.StoreURL, "/") + s.cfg.APIPathPrefix + "/orders?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(cred.ConsumerKey, cred.ConsumerSecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list orders: status %d", resp.StatusCode)
	}

	var orders []order
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}
