package shopify

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"catalog-sync/internal/adapters/shopify/dto"
)

// PriceUpdate targets one variant of a product. VariantID is the bare
// numeric id as stored in the mapping tables.
type PriceUpdate struct {
	VariantID string
	Price     float64
}

// UpdateVariantPrices issues one productVariantsBulkUpdate for the given
// product. User errors that point at a specific variant index are reported
// per item in the result; the remaining variants have committed.
func (c *Client) UpdateVariantPrices(ctx context.Context, productID string, updates []PriceUpdate) (BulkResult, error) {
	if c == nil {
		return BulkResult{}, errors.New("shopify client is nil")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return BulkResult{}, errors.New("shopify product id is required")
	}
	if len(updates) == 0 {
		return BulkResult{}, nil
	}

	variants := make([]map[string]any, 0, len(updates))
	for _, update := range updates {
		if strings.TrimSpace(update.VariantID) == "" {
			return BulkResult{}, errors.New("shopify variant id is required")
		}
		variants = append(variants, map[string]any{
			"id":    variantGID(update.VariantID),
			"price": formatMoneyAmount(update.Price),
		})
	}

	query := `
	mutation productVariantsBulkUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
		productVariantsBulkUpdate(productId: $productId, variants: $variants) {
			productVariants { id price }
			userErrors { field message }
		}
	}`

	var data dto.ProductVariantsBulkUpdateData
	status, err := c.graphqlRequest(ctx, query, map[string]any{
		"productId": productGID(productID),
		"variants":  variants,
	}, &data)
	if err != nil {
		return BulkResult{Throttle: status}, err
	}

	return BulkResult{
		ItemErrors: indexUserErrors(data.ProductVariantsBulkUpdate.UserErrors, "variants", len(updates)),
		Throttle:   status,
	}, nil
}

func formatMoneyAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
