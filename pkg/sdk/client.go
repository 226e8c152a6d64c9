package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout  = 30 * time.Second
	apiV1BasePath   = "/api/v1"
	principalHeader = "X-Catalog-Principal"
	jsonContent     = "application/json"
	jsonPatch       = "application/json-patch+json"
)

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	principal  string

	Pipelines *PipelineService
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithPrincipal sets the user recorded as updatedBy on every write.
func WithPrincipal(principal string) ClientOption {
	return func(c *Client) {
		c.principal = principal
	}
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid base URL: %q needs a scheme and host", baseURL)
	}

	client := &Client{
		baseURL: parsedURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	client.Pipelines = &PipelineService{client: client}
	return client, nil
}

// HealthCheck checks if the catalog service is healthy
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.checkStatus(ctx, "/health")
}

// ReadinessCheck checks if the catalog service is ready
func (c *Client) ReadinessCheck(ctx context.Context) error {
	return c.checkStatus(ctx, "/ready")
}

func (c *Client) checkStatus(ctx context.Context, path string) error {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s failed with status: %d", strings.TrimPrefix(path, "/"), resp.StatusCode)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(c.baseURL.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", jsonContent)
	if c.principal != "" {
		req.Header.Set(principalHeader, c.principal)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// doJSONRequest sends reqBody encoded as contentType and decodes the response
// into respBody. It returns the response status.
func (c *Client) doJSONRequest(ctx context.Context, method, path string, query url.Values, contentType string, reqBody, respBody any) (int, error) {
	var body io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	} else {
		contentType = ""
	}

	resp, err := c.doRequest(ctx, method, path, query, body, contentType)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp.StatusCode, c.handleErrorResponse(resp)
	}

	if respBody != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// handleErrorResponse decodes the error envelope. Bodies that are not an
// envelope become an APIError with code UNKNOWN and the raw body as message.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)

	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Code == "" {
		return &APIError{
			Code:       CodeUnknown,
			Message:    strings.TrimSpace(string(raw)),
			StatusCode: resp.StatusCode,
		}
	}

	apiErr := envelope.Error
	apiErr.StatusCode = resp.StatusCode
	return &apiErr
}
