package recordsource

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/records"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
)

// StatusError is returned for any non-2xx answer from the backend.
type StatusError struct {
	Method string
	URL    string
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: bad status: %s", e.Method, e.URL, e.Status)
}

type recordsResponse struct {
	Type    string           `json:"type"`
	Count   int              `json:"count"`
	Records []map[string]any `json:"records"`
}

type writeRequest struct {
	Type   records.Category `json:"type"`
	Record map[string]any   `json:"record"`
}

func (c *Client) getRecords(ctx context.Context, category records.Category, filters Filters) ([]map[string]any, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("unknown record category %q", category)
	}

	q := buildParams(filters)
	q.Set("type", category.String())

	reqURL, err := c.endpoint(q)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	req = c.setHeaders(req)

	resp, err := c.request(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var response recordsResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode records response: %w", err)
	}

	c.logger.Debug("got records from record source",
		zap.String("category", category.String()),
		zap.Int("count", len(response.Records)),
	)

	return response.Records, nil
}

func (c *Client) postJSON(ctx context.Context, category records.Category, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	q := url.Values{}
	q.Set("type", category.String())

	reqURL, err := c.endpoint(q)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.request(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// The ack body is free-form; drain it so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// request performs req and turns non-2xx answers into *StatusError.
func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{
			Method: req.Method,
			URL:    req.URL.Redacted(),
			Status: resp.Status,
			Code:   resp.StatusCode,
		}
	}

	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

func (c *Client) endpoint(q url.Values) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse record source url: %w", err)
	}

	merged := u.Query()
	for key, values := range q {
		merged[key] = values
	}
	u.RawQuery = merged.Encode()

	return u.String(), nil
}

// readBody unwraps a gzip response. Closing the returned reader does not
// close resp.Body.
func readBody(resp *http.Response) (io.ReadCloser, error) {
	if resp.Header.Get("Content-Encoding") != contentEncoding {
		return io.NopCloser(resp.Body), nil
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	return gz, nil
}
