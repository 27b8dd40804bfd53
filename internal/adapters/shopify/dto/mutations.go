package dto

type ProductVariantsBulkUpdateData struct {
	ProductVariantsBulkUpdate struct {
		ProductVariants []struct {
			ID    string `json:"id,omitempty"`
			Price string `json:"price,omitempty"`
		} `json:"productVariants,omitempty"`
		UserErrors []ShopifyUserError `json:"userErrors,omitempty"`
	} `json:"productVariantsBulkUpdate"`
}

type InventorySetQuantitiesData struct {
	InventorySetQuantities struct {
		InventoryAdjustmentGroup *struct {
			Reason               string `json:"reason,omitempty"`
			ReferenceDocumentURI string `json:"referenceDocumentUri,omitempty"`
			Changes              []struct {
				Name                string `json:"name,omitempty"`
				QuantityAfterChange int    `json:"quantityAfterChange,omitempty"`
			} `json:"changes,omitempty"`
		} `json:"inventoryAdjustmentGroup,omitempty"`
		UserErrors []ShopifyUserError `json:"userErrors,omitempty"`
	} `json:"inventorySetQuantities"`
}

type InventoryItemsQueryData struct {
	InventoryItems struct {
		Edges []struct {
			Node struct {
				ID      string `json:"id,omitempty"`
				Variant *struct {
					ID      string `json:"id,omitempty"`
					Title   string `json:"title,omitempty"`
					Product struct {
						ID    string `json:"id,omitempty"`
						Title string `json:"title,omitempty"`
					} `json:"product,omitempty"`
				} `json:"variant,omitempty"`
			} `json:"node"`
		} `json:"edges,omitempty"`
	} `json:"inventoryItems"`
}

type LocationsQueryData struct {
	Locations struct {
		Nodes []struct {
			ID       string `json:"id,omitempty"`
			Name     string `json:"name,omitempty"`
			IsActive bool   `json:"isActive,omitempty"`
		} `json:"nodes,omitempty"`
	} `json:"locations"`
}
