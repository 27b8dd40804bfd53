package shopify

import (
	"context"
	"errors"
	"strings"

	"catalog-sync/internal/adapters/shopify/dto"
)

// QuantityInput sets the on-hand quantity of one inventory item at the
// sync location.
type QuantityInput struct {
	InventoryItemID string
	Quantity        int
}

const stockReferenceDocumentURI = "system://queues/stock"

// SetInventoryQuantities issues one inventorySetQuantities call covering
// every input. Quantities are absolute ("available"), prior values ignored.
// User errors that point at a specific quantity index are reported per item.
func (c *Client) SetInventoryQuantities(ctx context.Context, inputs []QuantityInput) (BulkResult, error) {
	if c == nil {
		return BulkResult{}, errors.New("shopify client is nil")
	}
	if len(inputs) == 0 {
		return BulkResult{}, nil
	}

	locationID, err := c.LocationID(ctx)
	if err != nil {
		return BulkResult{}, err
	}

	quantities := make([]map[string]any, 0, len(inputs))
	for _, input := range inputs {
		if strings.TrimSpace(input.InventoryItemID) == "" {
			return BulkResult{}, errors.New("shopify inventory item id is required")
		}
		quantities = append(quantities, map[string]any{
			"inventoryItemId": inventoryItemGID(input.InventoryItemID),
			"locationId":      locationGID(locationID),
			"quantity":        input.Quantity,
		})
	}

	query := `
	mutation inventorySetQuantities($input: InventorySetQuantitiesInput!) {
		inventorySetQuantities(input: $input) {
			inventoryAdjustmentGroup {
				reason
				referenceDocumentUri
				changes { name quantityAfterChange }
			}
			userErrors { code field message }
		}
	}`

	var data dto.InventorySetQuantitiesData
	status, err := c.graphqlRequest(ctx, query, map[string]any{
		"input": map[string]any{
			"ignoreCompareQuantity": true,
			"name":                  "available",
			"reason":                "correction",
			"referenceDocumentUri":  stockReferenceDocumentURI,
			"quantities":            quantities,
		},
	}, &data)
	if err != nil {
		return BulkResult{Throttle: status}, err
	}

	return BulkResult{
		ItemErrors: indexUserErrors(data.InventorySetQuantities.UserErrors, "quantities", len(inputs)),
		Throttle:   status,
	}, nil
}
