// Package ocr calls the remote OCR and metadata-extraction backend.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/starford/docvault/internal/apperr"
)

// Backend endpoints.
const (
	UploadPath  = "/upload-pdf/"
	ExtractPath = "/extract-meta/"
)

// maxErrorBody caps how much of an upstream error body ends up in errors.
const maxErrorBody = 512

// Client talks to the OCR backend over multipart HTTP.
type Client struct {
	http *resty.Client
}

// New creates a Client for baseURL. A zero timeout means requests never
// time out on their own; callers bound them through the context.
func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &Client{http: c}
}

type uploadResponse struct {
	OCRText string `json:"ocr_text"`
}

type extractResponse struct {
	Metadata map[string]any `json:"metadata"`
}

// Digitize uploads a PDF and returns the recognised text.
func (c *Client) Digitize(ctx context.Context, filename string, pdf []byte) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(pdf)).
		Post(UploadPath)
	if err != nil {
		return "", fmt.Errorf("ocr: upload: %w", err)
	}
	if !resp.IsSuccess() {
		return "", upstream(UploadPath, resp)
	}

	var ur uploadResponse
	if err := json.Unmarshal(resp.Body(), &ur); err != nil {
		return "", fmt.Errorf("ocr: decode upload response: %w", err)
	}
	return ur.OCRText, nil
}

// Extract sends OCR text and returns the extracted metadata object.
func (c *Client) Extract(ctx context.Context, text, filename string) (map[string]any, error) {
	fields := map[string]string{"text": text}
	if filename != "" {
		fields["filename"] = filename
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(fields).
		Post(ExtractPath)
	if err != nil {
		return nil, fmt.Errorf("ocr: extract: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, upstream(ExtractPath, resp)
	}

	var er extractResponse
	if err := json.Unmarshal(resp.Body(), &er); err != nil {
		return nil, fmt.Errorf("ocr: decode extract response: %w", err)
	}
	if er.Metadata == nil {
		er.Metadata = map[string]any{}
	}
	return er.Metadata, nil
}

func upstream(endpoint string, resp *resty.Response) error {
	body := resp.String()
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &apperr.UpstreamError{Endpoint: endpoint, StatusCode: resp.StatusCode(), Body: body}
}
