// Package shopify pulls orders and product inventory from the Shopify
// Admin API and normalizes them into daily revenue, order and inventory
// series.
package shopify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	datapointdomain "github.com/pulseboard/pulseboard/internal/datapoint/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	"github.com/pulseboard/pulseboard/internal/sync/domain"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const pageLimit = 250

type Config struct {
	APIKey    string
	APISecret string
}

type Syncer struct {
	app    goshopify.App
	client *http.Client
}

func New(cfg Config, client *http.Client) *Syncer {
	return &Syncer{
		app: goshopify.App{
			ApiKey:    cfg.APIKey,
			ApiSecret: cfg.APISecret,
		},
		client: client,
	}
}

func (s *Syncer) Platform() integrationdomain.Platform {
	return integrationdomain.PlatformShopify
}

func (s *Syncer) Sync(ctx context.Context, integration *integrationdomain.Integration, token string, window domain.Window) (*domain.Result, error) {
	client, err := goshopify.NewClient(s.app, integration.ShopDomain, token)
	if err != nil {
		return nil, fmt.Errorf("shopify client: %w", err)
	}

	revenue, orders, err := s.pullOrders(ctx, client, window)
	if err != nil {
		return nil, err
	}

	inventory, stocks, err := s.pullInventory(ctx, client, window)
	if err != nil {
		return nil, err
	}

	return &domain.Result{
		Batches: []domain.Batch{
			{Metric: datapointdomain.MetricRevenue, Points: revenue},
			{Metric: datapointdomain.MetricOrders, Points: orders},
			{Metric: datapointdomain.MetricInventory, Points: inventory},
		},
		Stocks: stocks,
	}, nil
}

// pullOrders aggregates orders into one revenue and one order-count
// point per day inside the window.
func (s *Syncer) pullOrders(ctx context.Context, client *goshopify.Client, window domain.Window) ([]datapointdomain.DataPoint, []datapointdomain.DataPoint, error) {
	orders, err := client.Order.List(ctx, goshopify.OrderListOptions{
		ListOptions: goshopify.ListOptions{
			Limit:        pageLimit,
			CreatedAtMin: window.From,
			CreatedAtMax: window.To,
		},
		Status: "any",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list orders: %w", err)
	}

	revenueByDay := map[time.Time]decimal.Decimal{}
	countByDay := map[time.Time]int{}
	for _, order := range orders {
		if order.CreatedAt == nil {
			continue
		}
		day := order.CreatedAt.UTC().Truncate(24 * time.Hour)
		if day.Before(window.From) || !day.Before(window.To) {
			continue
		}
		countByDay[day]++
		if order.TotalPrice != nil {
			revenueByDay[day] = revenueByDay[day].Add(*order.TotalPrice)
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
	return revenue, counts, nil
}

// pullInventory snapshots current stock per product. The snapshot is
// dated at the window end so each run replaces the previous reading.
func (s *Syncer) pullInventory(ctx context.Context, client *goshopify.Client, window domain.Window) ([]datapointdomain.DataPoint, []domain.StockLevel, error) {
	products, err := client.Product.List(ctx, goshopify.ListOptions{Limit: pageLimit})
	if err != nil {
		return nil, nil, fmt.Errorf("list products: %w", err)
	}

	snapshotDay := window.To.Add(-24 * time.Hour)
	var points []datapointdomain.DataPoint
	var stocks []domain.StockLevel
	for _, product := range products {
		quantity := 0
		for _, variant := range product.Variants {
			quantity += variant.InventoryQuantity
		}
		stocks = append(stocks, domain.StockLevel{
			ProductID:   fmt.Sprintf("%d", product.Id),
			ProductName: product.Title,
			Quantity:    quantity,
		})
		points = append(points, datapointdomain.DataPoint{
			MetricType:   datapointdomain.MetricInventory,
			Value:        float64(quantity),
			DateRecorded: snapshotDay,
			Metadata: datatypes.JSONMap{
				"product_id":   fmt.Sprintf("%d", product.Id),
				"product_name": product.Title,
			},
		})
	}
	return points, stocks, nil
}
