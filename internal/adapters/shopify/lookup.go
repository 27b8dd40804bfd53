package shopify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"catalog-sync/internal/adapters/shopify/dto"
)

// VariantIdentifiers are the store-side ids resolved for one SKU, as bare
// numeric ids.
type VariantIdentifiers struct {
	ProductID       string
	VariantID       string
	InventoryItemID string
	ProductTitle    string
}

type variantNotFoundError struct {
	SKU string
}

func (e *variantNotFoundError) Error() string {
	sku := strings.TrimSpace(e.SKU)
	if sku == "" {
		return "shopify variant not found"
	}
	return fmt.Sprintf("shopify variant not found for sku %s", sku)
}

// IsVariantNotFound reports whether err means the SKU has no variant in the
// store, as opposed to a transport or query failure.
func IsVariantNotFound(err error) bool {
	var typed *variantNotFoundError
	return errors.As(err, &typed)
}

// NewVariantNotFoundError builds the error VariantBySKU returns when a SKU
// search comes back empty. Exported so fakes can produce the same shape.
func NewVariantNotFoundError(sku string) error {
	return &variantNotFoundError{SKU: sku}
}

// VariantBySKU resolves the product, variant and inventory item ids behind
// one SKU via the inventoryItems search.
func (c *Client) VariantBySKU(ctx context.Context, sku string) (VariantIdentifiers, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return VariantIdentifiers{}, errors.New("shopify sku is required")
	}

	query := `
	query inventoryItemBySku($q: String!) {
		inventoryItems(first: 1, query: $q) {
			edges {
				node {
					id
					variant { id title product { id title } }
				}
			}
		}
	}`

	var data dto.InventoryItemsQueryData
	if _, err := c.graphqlRequest(ctx, query, map[string]any{
		"q": buildSearchQuery("sku", sku),
	}, &data); err != nil {
		return VariantIdentifiers{}, err
	}

	edges := data.InventoryItems.Edges
	if len(edges) == 0 {
		return VariantIdentifiers{}, &variantNotFoundError{SKU: sku}
	}
	node := edges[0].Node
	if node.Variant == nil {
		return VariantIdentifiers{}, &variantNotFoundError{SKU: sku}
	}

	return VariantIdentifiers{
		ProductID:       gidTail(node.Variant.Product.ID),
		VariantID:       gidTail(node.Variant.ID),
		InventoryItemID: gidTail(node.ID),
		ProductTitle:    strings.TrimSpace(node.Variant.Product.Title),
	}, nil
}

func buildSearchQuery(field, value string) string {
	value = strings.ReplaceAll(value, `'`, `\'`)
	return fmt.Sprintf("%s:'%s'", field, value)
}
