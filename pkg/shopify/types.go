package shopify

import (
	"encoding/json"
	"fmt"
	"strings"
)

type productsPage struct {
	Products []product `json:"products"`
}

type product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Handle   string    `json:"handle"`
	Tags     string    `json:"tags"`
	Options  []option  `json:"options"`
	Variants []variant `json:"variants"`
}

type option struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type variant struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	SKU            string  `json:"sku"`
	Position       *int    `json:"position"`
	Price          string  `json:"price"`
	CompareAtPrice *string `json:"compare_at_price"`
}

// FetchError is returned when a listing page cannot be fetched. Status is 0
// when no usable response arrived; Err then holds the cause.
type FetchError struct {
	Status int
	Body   string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return "shopify: fetch products failed: " + e.Err.Error()
	}
	if e.Body == "" {
		return fmt.Sprintf("shopify: fetch products failed: %d", e.Status)
	}
	return fmt.Sprintf("shopify: fetch products failed: %d %s", e.Status, e.Body)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// UpdateError is returned when a single variant update is rejected.
type UpdateError struct {
	VariantID int64
	Status    int
	Body      string
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("shopify: update variant %d failed: %d %s", e.VariantID, e.Status, e.Body)
}

// splitTags turns Shopify's comma-separated tag string into a slice.
func splitTags(tags string) []string {
	if strings.TrimSpace(tags) == "" {
		return nil
	}
	parts := strings.Split(tags, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseNextLink extracts the rel="next" URL from a Link header.
func parseNextLink(header string) string {
	if header == "" {
		return ""
	}
	for _, part := range strings.Split(header, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		target := strings.TrimSpace(segs[0])
		for _, attr := range segs[1:] {
			if strings.TrimSpace(attr) == `rel="next"` {
				return strings.TrimSuffix(strings.TrimPrefix(target, "<"), ">")
			}
		}
	}
	return ""
}

// variantPayload is the body of a partial variant update. Only set fields are sent.
type variantPayload map[string]any

func (p variantPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"variant": map[string]any(p)})
}
