// Package recordsource talks to the spreadsheet backend that stores raw and
// structured mail records.
package recordsource

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/records"
)

const (
	userAgent      = "spigell/ses-matcher"
	defaultTimeout = 60 * time.Second
)

// Source is implemented by every record backend.
type Source interface {
	Fetch(ctx context.Context, category records.Category, filters Filters) ([]records.RawRecord, error)
	FetchStructured(ctx context.Context, category records.Category, filters Filters) ([]map[string]any, error)
	Write(ctx context.Context, category records.Category, record map[string]any) error
}

type Client struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	BaseURL    string
}

// New returns a client for the web-app endpoint at baseURL.
func New(logger *zap.Logger, baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("record source url is required")
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		logger:  logger,
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		UserAgent: userAgent,
	}, nil
}

// Fetch returns raw mail records of the given category.
func (c *Client) Fetch(ctx context.Context, category records.Category, filters Filters) ([]records.RawRecord, error) {
	items, err := c.getRecords(ctx, category, filters)
	if err != nil {
		return nil, err
	}

	return records.DecodeRaw(items)
}

// FetchStructured returns records as loose maps. Column names differ between
// sheets, so callers decode them with the helpers in package records.
func (c *Client) FetchStructured(ctx context.Context, category records.Category, filters Filters) ([]map[string]any, error) {
	return c.getRecords(ctx, category, filters)
}

// Write posts one structured record back to the backend.
func (c *Client) Write(ctx context.Context, category records.Category, record map[string]any) error {
	payload := writeRequest{
		Type:   category,
		Record: record,
	}

	return c.postJSON(ctx, category, payload)
}
