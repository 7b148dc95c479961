// Package shopify provides a client for the Shopify Admin REST API limited to
// listing active variants and updating a single variant's prices.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reprice/internal/model"
	"github.com/sells-group/reprice/internal/resilience"
)

// Client defines the catalog operations used by price runs.
type Client interface {
	// FetchActiveVariants returns every variant of every active product,
	// following pagination until exhausted.
	FetchActiveVariants(ctx context.Context) ([]model.Variant, error)
	// UpdateVariant applies a partial price update to one variant.
	UpdateVariant(ctx context.Context, variantID int64, upd VariantUpdate) error
}

// VariantUpdate is a partial update. Nil fields are left unchanged remotely;
// ClearCompareAt sends an explicit null compare-at price.
type VariantUpdate struct {
	Price          *model.Money
	CompareAtPrice *model.Money
	ClearCompareAt bool
}

// Option configures the Shopify client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPageSize sets the listing page size (Shopify caps it at 250).
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 && n <= 250 {
			c.pageSize = n
		}
	}
}

// WithPriceScale sets how many catalog price units make one currency unit.
// A scale of 1 reads "1500.00" as 1500; a scale of 100 reads it as 150000.
func WithPriceScale(scale int) Option {
	return func(c *httpClient) {
		if scale > 0 {
			c.priceScale = float64(scale)
		}
	}
}

// WithRetryConfig overrides the retry policy for transient failures.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	token      string
	baseURL    string
	pageSize   int
	priceScale float64
	retry      resilience.RetryConfig
	http       *http.Client
}

// NewClient creates a client for the given shop domain (e.g. "acme.myshopify.com").
func NewClient(store, token, apiVersion string, opts ...Option) Client {
	if apiVersion == "" {
		apiVersion = "2024-10"
	}
	c := &httpClient{
		token:      token,
		baseURL:    fmt.Sprintf("https://%s/admin/api/%s", store, apiVersion),
		pageSize:   250,
		priceScale: 1,
		retry:      resilience.DefaultRetryConfig(),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pageResult struct {
	page productsPage
	next string
}

func (c *httpClient) FetchActiveVariants(ctx context.Context) ([]model.Variant, error) {
	q := url.Values{}
	q.Set("status", "active")
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("fields", "id,title,handle,tags,options,variants")
	next := c.baseURL + "/products.json?" + q.Encode()

	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("shopify", "list_products")

	var all []model.Variant
	for next != "" {
		pageURL := next
		res, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (pageResult, error) {
			return c.fetchPage(ctx, pageURL)
		})
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) || ctx.Err() != nil {
				return nil, err
			}
			return nil, &FetchError{Err: err}
		}
		for _, p := range res.page.Products {
			vs, err := c.toVariants(p)
			if err != nil {
				return nil, err
			}
			all = append(all, vs...)
		}
		next = res.next
	}
	return all, nil
}

func (c *httpClient) fetchPage(ctx context.Context, pageURL string) (pageResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return pageResult{}, eris.Wrap(err, "shopify: create list request")
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return pageResult{}, eris.Wrap(err, "shopify: list products")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pageResult{}, eris.Wrap(err, "shopify: read list response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fe := &FetchError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			te := resilience.NewTransientError(fe, resp.StatusCode)
			te.RetryAfter = resilience.ParseRetryAfter(resp.Header)
			return pageResult{}, te
		}
		return pageResult{}, fe
	}

	var page productsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return pageResult{}, eris.Wrap(err, "shopify: unmarshal products")
	}
	return pageResult{page: page, next: parseNextLink(resp.Header.Get("Link"))}, nil
}

func (c *httpClient) toVariants(p product) ([]model.Variant, error) {
	optionNames := make([]string, 0, len(p.Options))
	for _, o := range p.Options {
		optionNames = append(optionNames, o.Name)
	}
	tags := splitTags(p.Tags)

	out := make([]model.Variant, 0, len(p.Variants))
	for _, v := range p.Variants {
		price, err := c.parseMoney(v.Price)
		if err != nil {
			return nil, eris.Wrapf(err, "shopify: variant %d price", v.ID)
		}
		var compareAt *model.Money
		if v.CompareAtPrice != nil && strings.TrimSpace(*v.CompareAtPrice) != "" {
			m, err := c.parseMoney(*v.CompareAtPrice)
			if err != nil {
				return nil, eris.Wrapf(err, "shopify: variant %d compare_at_price", v.ID)
			}
			compareAt = &m
		}
		out = append(out, model.Variant{
			ProductID:          p.ID,
			ProductTitle:       p.Title,
			Handle:             p.Handle,
			VariantID:          v.ID,
			VariantTitle:       v.Title,
			Position:           v.Position,
			SKU:                v.SKU,
			Price:              price,
			CompareAtPrice:     compareAt,
			ProductOptionNames: optionNames,
			ProductTags:        tags,
		})
	}
	return out, nil
}

func (c *httpClient) UpdateVariant(ctx context.Context, variantID int64, upd VariantUpdate) error {
	payload := variantPayload{"id": variantID}
	if upd.Price != nil {
		payload["price"] = c.formatMoney(*upd.Price)
	}
	switch {
	case upd.CompareAtPrice != nil:
		payload["compare_at_price"] = c.formatMoney(*upd.CompareAtPrice)
	case upd.ClearCompareAt:
		payload["compare_at_price"] = nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "shopify: marshal variant update")
	}

	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("shopify", "update_variant")
	endpoint := fmt.Sprintf("%s/variants/%d.json", c.baseURL, variantID)

	return resilience.Do(ctx, retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "shopify: create update request")
		}
		c.setHeaders(req)

		resp, err := c.http.Do(req)
		if err != nil {
			return eris.Wrapf(err, "shopify: update variant %d", variantID)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}

		respBody, _ := io.ReadAll(resp.Body)
		ue := &UpdateError{VariantID: variantID, Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			te := resilience.NewTransientError(ue, resp.StatusCode)
			te.RetryAfter = resilience.ParseRetryAfter(resp.Header)
			return te
		}
		return ue
	})
}

func (c *httpClient) setHeaders(req *http.Request) {
	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func (c *httpClient) parseMoney(s string) (model.Money, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse amount %q", s)
	}
	return model.Money(math.Round(f * c.priceScale)), nil
}

func (c *httpClient) formatMoney(m model.Money) string {
	return strconv.FormatFloat(float64(m)/c.priceScale, 'f', 2, 64)
}
