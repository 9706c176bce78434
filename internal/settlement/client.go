package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxResponseSize caps the provider response kept as raw response.
const maxResponseSize = 1 << 20

// statusError is a provider answer that says nothing about the outcome.
type statusError struct {
	code int
	body []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider responded with status %d: %s", e.code, e.body)
}

// client posts JSON requests to a provider API.
type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newClient(baseURL, apiKey string, httpClient *http.Client) client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpClient,
	}
}

// post sends body to path and returns the raw response of a 2xx or 4xx answer.
//
// A 4xx answer is a definite provider decision and is returned with its code;
// 5xx answers and transport failures are errors.
func (c client) post(ctx context.Context, path, idempotencyKey string, body any) ([]byte, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, resp.StatusCode, &statusError{code: resp.StatusCode, body: raw}
	}

	return raw, resp.StatusCode, nil
}

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
