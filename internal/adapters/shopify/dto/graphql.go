package dto

type GraphQLResponse[T any] struct {
	Data       T              `json:"data"`
	Errors     []GraphQLError `json:"errors,omitempty"`
	Extensions *Extensions    `json:"extensions,omitempty"`
}

type GraphQLError struct {
	Message    string                 `json:"message"`
	Path       []any                  `json:"path,omitempty"`
	Extensions map[string]any         `json:"extensions,omitempty"`
	Locations  []GraphQLErrorLocation `json:"locations,omitempty"`
}

type GraphQLErrorLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type ShopifyUserError struct {
	Code    string   `json:"code,omitempty"`
	Field   []string `json:"field,omitempty"`
	Message string   `json:"message"`
}

// Extensions carries the cost block Shopify attaches to every GraphQL
// response. ThrottleStatus is the token bucket the adaptive throttle reads.
type Extensions struct {
	Cost *CostExtension `json:"cost,omitempty"`
}

type CostExtension struct {
	RequestedQueryCost float64         `json:"requestedQueryCost"`
	ActualQueryCost    float64         `json:"actualQueryCost"`
	ThrottleStatus     *ThrottleStatus `json:"throttleStatus,omitempty"`
}

type ThrottleStatus struct {
	MaximumAvailable   float64 `json:"maximumAvailable"`
	CurrentlyAvailable float64 `json:"currentlyAvailable"`
	RestoreRate        float64 `json:"restoreRate"`
}
