// internal/api/client.go
//
// HTTP client for the record persistence service. The editor treats the
// service as a black-box CRUD/PATCH collaborator; this client only shapes
// requests and decodes outcomes.

package api

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/drvillela/expediente/internal/expedient"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client talks to the expediente persistence API.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json")
	c := &Client{http: httpClient, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createResponse struct {
	ID int `json:"id"`
}

type uploadResponse struct {
	ImageID string `json:"imageId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateRecord creates a record from the given section payloads and returns
// the server-assigned id.
func (c *Client) CreateRecord(ctx context.Context, secciones expedient.RecordValues) (int, error) {
	var out createResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"secciones": secciones}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/expedientes")
	if err != nil {
		return 0, fmt.Errorf("api: create record: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("api: create record: %s", serverMessage(resp, apiErr))
	}
	c.logger.Debug("record created", zap.Int("record_id", out.ID))
	return out.ID, nil
}

// PatchSection overwrites one sub-form's data on the server. Resubmission
// replaces field values, it never appends.
func (c *Client) PatchSection(ctx context.Context, recordID int, section expedient.SectionKey, kind expedient.Kind, values expedient.Values) error {
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(expedient.SectionValues{kind: values}).
		SetError(&apiErr).
		Patch(fmt.Sprintf("/api/expedientes/%d/secciones/%s", recordID, section))
	if err != nil {
		return fmt.Errorf("api: patch %s/%s: %w", section, kind, err)
	}
	if resp.IsError() {
		return fmt.Errorf("api: patch %s/%s: %s", section, kind, serverMessage(resp, apiErr))
	}
	return nil
}

// UploadImage pushes one attachment and returns the server image id.
func (c *Client) UploadImage(ctx context.Context, recordID int, slot expedient.Slot, fileName string, data []byte) (string, error) {
	var out uploadResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", fileName, bytes.NewReader(data)).
		SetFormData(map[string]string{"slot": string(slot)}).
		SetResult(&out).
		SetError(&apiErr).
		Post(fmt.Sprintf("/api/expedientes/%d/imagenes", recordID))
	if err != nil {
		return "", fmt.Errorf("api: upload %s: %w", slot, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("api: upload %s: %s", slot, serverMessage(resp, apiErr))
	}
	c.logger.Debug("image uploaded",
		zap.String("slot", string(slot)),
		zap.String("image_id", out.ImageID),
	)
	return out.ImageID, nil
}

// GetRecord fetches the authoritative record snapshot.
func (c *Client) GetRecord(ctx context.Context, recordID int) (expedient.Record, error) {
	var out expedient.Record
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiErr).
		Get(fmt.Sprintf("/api/expedientes/%d", recordID))
	if err != nil {
		return expedient.Record{}, fmt.Errorf("api: get record %d: %w", recordID, err)
	}
	if resp.IsError() {
		return expedient.Record{}, fmt.Errorf("api: get record %d: %s", recordID, serverMessage(resp, apiErr))
	}
	return out, nil
}

func serverMessage(resp *resty.Response, apiErr errorResponse) string {
	if apiErr.Error != "" {
		return apiErr.Error
	}
	return resp.Status()
}
