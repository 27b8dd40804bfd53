package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"catalog-sync/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.ShopifyConfig{
		ShopDomain:         srv.URL,
		Token:              "test-token",
		APIVer:             "2024-07",
		LocationID:         "55",
		MinRequestInterval: time.Millisecond,
	}, srv.Client())
}

func costExtension(available, maximum, restore float64) string {
	return fmt.Sprintf(`"extensions":{"cost":{"actualQueryCost":10,"throttleStatus":{"currentlyAvailable":%g,"maximumAvailable":%g,"restoreRate":%g}}}`,
		available, maximum, restore)
}

func TestUpdateVariantPricesSendsAuthAndCapturesThrottle(t *testing.T) {
	var gotToken string
	var gotVars map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Shopify-Access-Token")
		var payload struct {
			Variables map[string]any `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		gotVars = payload.Variables
		fmt.Fprintf(w, `{"data":{"productVariantsBulkUpdate":{"productVariants":[],"userErrors":[]}},%s}`,
			costExtension(1500, 2000, 100))
	})

	res, err := client.UpdateVariantPrices(context.Background(), "123", []PriceUpdate{
		{VariantID: "456", Price: 19.9},
	})
	if err != nil {
		t.Fatalf("UpdateVariantPrices: %v", err)
	}
	if gotToken != "test-token" {
		t.Errorf("token header = %q", gotToken)
	}
	if gotVars["productId"] != "gid://shopify/Product/123" {
		t.Errorf("productId = %v", gotVars["productId"])
	}
	variants, _ := gotVars["variants"].([]any)
	if len(variants) != 1 {
		t.Fatalf("variants = %v", gotVars["variants"])
	}
	first, _ := variants[0].(map[string]any)
	if first["id"] != "gid://shopify/ProductVariant/456" || first["price"] != "19.90" {
		t.Errorf("variant payload = %v", first)
	}
	if res.Throttle.CurrentlyAvailable != 1500 || res.Throttle.RestoreRate != 100 {
		t.Errorf("throttle = %+v", res.Throttle)
	}
	if len(res.ItemErrors) != 0 {
		t.Errorf("item errors = %v, want none", res.ItemErrors)
	}
}

func TestUpdateVariantPricesIndexesUserErrors(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"productVariantsBulkUpdate":{"productVariants":[],
			"userErrors":[{"field":["variants","1","price"],"message":"Price is invalid"}]}}}`)
	})

	res, err := client.UpdateVariantPrices(context.Background(), "123", []PriceUpdate{
		{VariantID: "1", Price: 10},
		{VariantID: "2", Price: -1},
		{VariantID: "3", Price: 12},
	})
	if err != nil {
		t.Fatalf("UpdateVariantPrices: %v", err)
	}
	if len(res.ItemErrors) != 1 {
		t.Fatalf("item errors = %v, want one", res.ItemErrors)
	}
	if msg, ok := res.ItemErrors[1]; !ok || msg != "Price is invalid" {
		t.Errorf("item errors = %v, want index 1", res.ItemErrors)
	}
}

func TestGraphqlRequestRetriesOn429(t *testing.T) {
	var calls int
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data":{"productVariantsBulkUpdate":{"productVariants":[],"userErrors":[]}}}`)
	})

	if _, err := client.UpdateVariantPrices(context.Background(), "1", []PriceUpdate{{VariantID: "2", Price: 5}}); err != nil {
		t.Fatalf("UpdateVariantPrices: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestGraphqlRequestRetriesThrottledErrors(t *testing.T) {
	var calls int
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, `{"errors":[{"message":"Throttled","extensions":{"code":"THROTTLED"}}]}`)
			return
		}
		fmt.Fprint(w, `{"data":{"productVariantsBulkUpdate":{"productVariants":[],"userErrors":[]}}}`)
	})

	if _, err := client.UpdateVariantPrices(context.Background(), "1", []PriceUpdate{{VariantID: "2", Price: 5}}); err != nil {
		t.Fatalf("UpdateVariantPrices: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestGraphqlRequestDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})

	if _, err := client.UpdateVariantPrices(context.Background(), "1", []PriceUpdate{{VariantID: "2", Price: 5}}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (401 is not retryable)", calls)
	}
}

func TestSetInventoryQuantitiesBuildsInput(t *testing.T) {
	var gotVars map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if gotVars == nil {
			gotVars = payload.Variables
		}
		fmt.Fprint(w, `{"data":{"inventorySetQuantities":{"userErrors":[]}}}`)
	})

	_, err := client.SetInventoryQuantities(context.Background(), []QuantityInput{
		{InventoryItemID: "77", Quantity: 4},
	})
	if err != nil {
		t.Fatalf("SetInventoryQuantities: %v", err)
	}

	input, _ := gotVars["input"].(map[string]any)
	if input == nil {
		t.Fatalf("variables = %v", gotVars)
	}
	if input["name"] != "available" || input["reason"] != "correction" {
		t.Errorf("input = %v", input)
	}
	if input["ignoreCompareQuantity"] != true {
		t.Errorf("ignoreCompareQuantity = %v, want true", input["ignoreCompareQuantity"])
	}
	quantities, _ := input["quantities"].([]any)
	if len(quantities) != 1 {
		t.Fatalf("quantities = %v", input["quantities"])
	}
	q, _ := quantities[0].(map[string]any)
	if q["inventoryItemId"] != "gid://shopify/InventoryItem/77" || q["locationId"] != "gid://shopify/Location/55" {
		t.Errorf("quantity payload = %v", q)
	}
}

func TestVariantBySKU(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Variables map[string]any `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if q, _ := payload.Variables["q"].(string); q != "sku:'A100/16'" {
			t.Errorf("search query = %q", q)
		}
		fmt.Fprint(w, `{"data":{"inventoryItems":{"edges":[{"node":{
			"id":"gid://shopify/InventoryItem/3",
			"variant":{"id":"gid://shopify/ProductVariant/2","title":"16",
				"product":{"id":"gid://shopify/Product/1","title":"Ring"}}}}]}}}`)
	})

	ids, err := client.VariantBySKU(context.Background(), "A100/16")
	if err != nil {
		t.Fatalf("VariantBySKU: %v", err)
	}
	want := VariantIdentifiers{ProductID: "1", VariantID: "2", InventoryItemID: "3", ProductTitle: "Ring"}
	if ids != want {
		t.Errorf("ids = %+v, want %+v", ids, want)
	}
}

func TestVariantBySKUNotFound(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"inventoryItems":{"edges":[]}}}`)
	})

	_, err := client.VariantBySKU(context.Background(), "GHOST")
	if !IsVariantNotFound(err) {
		t.Fatalf("err = %v, want variant-not-found", err)
	}
}
