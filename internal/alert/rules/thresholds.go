// Package rules holds the pure alert generators. Each function turns
// observed metrics into drafts; persistence and dedup happen elsewhere.
package rules

import "time"

// Inventory stock thresholds, checked from most to least severe.
const (
	StockOutOfStock   = 0
	StockCriticalLow  = 5
	StockLow          = 15
	StockRunningLow   = 25
	InventoryAlertTTL = 24 * time.Hour
)

// Performance drop thresholds. Changes are ratios against the prior
// period: -0.20 means a 20% decline.
const (
	RevenueDropCritical = -0.20
	RevenueDropHigh     = -0.10
	OrdersDropHigh      = -0.30
	ConversionCritical  = 0.005
	ConversionHigh      = 0.010
)

// Integration staleness thresholds.
const (
	SyncStaleHigh   = 72 * time.Hour
	SyncStaleMedium = 48 * time.Hour
)

// Customer health thresholds.
const (
	ChurnRateCritical = 0.25
	ChurnRateHigh     = 0.15
	NewCustomersLow   = 5
	AOVDropHigh       = -0.25
	AOVDropMedium     = -0.15
)
