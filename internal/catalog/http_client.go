package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 5 * time.Second

// HTTPClient talks to the catalog REST API:
//
//	GET   /products
//	GET   /products/{id}
//	PATCH /products/{id}?price=&stock=
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// Client overrides the underlying HTTP client (tests).
	Client *http.Client
}

// NewHTTPClient creates a catalog client.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}
}

func (c *HTTPClient) List(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, &products); err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	return products, nil
}

func (c *HTTPClient) Get(ctx context.Context, id int) (*Product, error) {
	var p Product
	if err := c.do(ctx, http.MethodGet, "/products/"+strconv.Itoa(id), nil, &p); err != nil {
		return nil, fmt.Errorf("catalog: get product %d: %w", id, productNotFound(err))
	}
	return &p, nil
}

func (c *HTTPClient) Update(ctx context.Context, id int, upd Update) (*Product, error) {
	q := url.Values{}
	if upd.Price != nil {
		q.Set("price", strconv.FormatFloat(*upd.Price, 'f', -1, 64))
	}
	if upd.Stock != nil {
		q.Set("stock", strconv.Itoa(*upd.Stock))
	}
	if len(q) == 0 {
		return nil, fmt.Errorf("catalog: update product %d: empty update", id)
	}

	var p Product
	if err := c.do(ctx, http.MethodPatch, "/products/"+strconv.Itoa(id), q, &p); err != nil {
		return nil, fmt.Errorf("catalog: update product %d: %w", id, productNotFound(err))
	}
	return &p, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &statusError{code: resp.StatusCode, message: message}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError is a non-2xx catalog response.
type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.message)
}

// productNotFound maps a 404 on a per-product path to ErrNotFound. A 404 on
// the collection means a misconfigured catalog and stays a plain failure.
func productNotFound(err error) error {
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}
