package transformapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/httpclient"
)

const (
	pathTransformInvoice = "/api/v1/transform/invoice"
	pathTransformManual  = "/api/v1/transform/manual"
	pathDemoInvoice      = "/api/v1/demo/invoice"
	pathDemoManual       = "/api/v1/demo/manual"
)

// Client talks to the document transform backend.
type Client struct {
	http *httpclient.Client
}

func New(http *httpclient.Client) *Client {
	return &Client{http: http}
}

func (c *Client) TransformInvoice(ctx context.Context, file domain.UploadFile, onProgress domain.ProgressFunc) (*domain.ParsedDocument, error) {
	return c.transform(ctx, transformRequest{
		operation:     "transform invoice",
		path:          pathTransformInvoice,
		file:          file,
		authenticated: true,
		onProgress:    onProgress,
	})
}

// UploadManual sends the selected pages as a JSON array string, e.g. "[1,2]".
func (c *Client) UploadManual(ctx context.Context, file domain.UploadFile, pageNumbers []int, onProgress domain.ProgressFunc) (*domain.ParsedDocument, error) {
	fields, err := pageNumberFields(pageNumbers)
	if err != nil {
		return nil, err
	}
	return c.transform(ctx, transformRequest{
		operation:     "transform manual",
		path:          pathTransformManual,
		file:          file,
		fields:        fields,
		authenticated: true,
		onProgress:    onProgress,
	})
}

func (c *Client) DemoInvoice(ctx context.Context, file domain.UploadFile, onProgress domain.ProgressFunc) (*domain.ParsedDocument, error) {
	return c.transform(ctx, transformRequest{
		operation:  "demo invoice",
		path:       pathDemoInvoice,
		file:       file,
		onProgress: onProgress,
	})
}

func (c *Client) DemoManual(ctx context.Context, file domain.UploadFile, pageNumbers []int, onProgress domain.ProgressFunc) (*domain.ParsedDocument, error) {
	fields, err := pageNumberFields(pageNumbers)
	if err != nil {
		return nil, err
	}
	return c.transform(ctx, transformRequest{
		operation:  "demo manual",
		path:       pathDemoManual,
		file:       file,
		fields:     fields,
		onProgress: onProgress,
	})
}

func pageNumberFields(pageNumbers []int) ([]formField, error) {
	if len(pageNumbers) == 0 {
		return nil, domain.NewValidationError("pageNumbers", "Enter at least one page number")
	}
	for _, n := range pageNumbers {
		if n <= 0 {
			return nil, domain.NewValidationError("pageNumbers", fmt.Sprintf("Page %d is not a positive number", n))
		}
	}
	encoded, err := json.Marshal(pageNumbers)
	if err != nil {
		return nil, fmt.Errorf("marshal page numbers: %w", err)
	}
	return []formField{{name: "pageNumbers", value: string(encoded)}}, nil
}
