package shopify

import (
	"strconv"
	"strings"

	"catalog-sync/internal/adapters/shopify/dto"
)

// Mapping tables store bare numeric ids; the GraphQL API speaks global ids.
// These helpers translate in both directions.

func productGID(id string) string       { return "gid://shopify/Product/" + id }
func variantGID(id string) string       { return "gid://shopify/ProductVariant/" + id }
func inventoryItemGID(id string) string { return "gid://shopify/InventoryItem/" + id }
func locationGID(id string) string      { return "gid://shopify/Location/" + id }

func gidTail(gid string) string {
	gid = strings.TrimSpace(gid)
	if gid == "" {
		return ""
	}
	if idx := strings.LastIndex(gid, "/"); idx >= 0 {
		return gid[idx+1:]
	}
	return gid
}

// indexUserErrors maps bulk-mutation user errors back to input indexes.
// Shopify encodes the index in the error field path, e.g.
// ["variants", "0", "price"] or ["input", "quantities", "3", "quantity"].
// Errors that carry no index, or an index out of range, apply to every item.
func indexUserErrors(errs []dto.ShopifyUserError, listField string, size int) map[int]string {
	if len(errs) == 0 {
		return nil
	}

	indexed := make(map[int]string)
	for _, e := range errs {
		message := strings.TrimSpace(e.Message)
		if message == "" {
			message = "user error returned"
		}
		if idx, ok := userErrorIndex(e.Field, listField); ok && idx >= 0 && idx < size {
			appendItemError(indexed, idx, message)
			continue
		}
		for i := 0; i < size; i++ {
			appendItemError(indexed, i, message)
		}
	}
	return indexed
}

func userErrorIndex(field []string, listField string) (int, bool) {
	for i, part := range field {
		if !strings.EqualFold(part, listField) {
			continue
		}
		if i+1 < len(field) {
			if idx, err := strconv.Atoi(field[i+1]); err == nil {
				return idx, true
			}
		}
		return 0, false
	}
	// Some mutations omit the list segment and lead with the index itself.
	for _, part := range field {
		if idx, err := strconv.Atoi(part); err == nil {
			return idx, true
		}
	}
	return 0, false
}

func appendItemError(indexed map[int]string, idx int, message string) {
	if existing, ok := indexed[idx]; ok && existing != "" {
		indexed[idx] = existing + "; " + message
		return
	}
	indexed[idx] = message
}
