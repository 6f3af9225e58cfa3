package rules

import (
	"fmt"

	"github.com/pulseboard/pulseboard/internal/alert/domain"
)

// ProductStock is one product's inventory position.
type ProductStock struct {
	ProductID   string
	ProductName string
	Quantity    int
}

// CheckInventory returns one draft per product at or below a threshold.
// Quantities above StockRunningLow produce nothing.
func CheckInventory(products []ProductStock) []domain.Draft {
	var drafts []domain.Draft
	for _, product := range products {
		severity, ok := stockSeverity(product.Quantity)
		if !ok {
			continue
		}

		title := fmt.Sprintf("Low stock: %s", product.ProductName)
		description := fmt.Sprintf("%q has %d units left.", product.ProductName, product.Quantity)
		if product.Quantity == StockOutOfStock {
			title = fmt.Sprintf("Out of stock: %s", product.ProductName)
			description = fmt.Sprintf("%q is out of stock.", product.ProductName)
		}

		drafts = append(drafts, domain.Draft{
			Type:        domain.TypeInventory,
			Severity:    severity,
			Title:       title,
			Description: description,
			Metadata: map[string]any{
				"product_id":   product.ProductID,
				"product_name": product.ProductName,
				"quantity":     product.Quantity,
			},
			ActionLabel: "Review inventory",
			TTL:         InventoryAlertTTL,
		})
	}
	return drafts
}

func stockSeverity(quantity int) (domain.Severity, bool) {
	switch {
	case quantity <= StockOutOfStock:
		return domain.SeverityCritical, true
	case quantity <= StockCriticalLow:
		return domain.SeverityHigh, true
	case quantity <= StockLow:
		return domain.SeverityMedium, true
	case quantity <= StockRunningLow:
		return domain.SeverityLow, true
	default:
		return "", false
	}
}
