// ABOUTME: CSV import endpoint
// ABOUTME: Streams a CSV file as multipart form data with an optional primary key

package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// UploadResult is the backend's answer to a CSV import.
type UploadResult struct {
	Message string
}

// BuildUploadForm encodes the multipart body of a CSV import. primary_key is
// only included when primaryKey is non-empty.
func BuildUploadForm(filename string, file io.Reader, primaryKey string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("copying file: %w", err)
	}

	if primaryKey != "" {
		if err := w.WriteField("primary_key", primaryKey); err != nil {
			return nil, "", fmt.Errorf("writing primary_key: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// UploadCSV imports file into dbName. Only an explicit "success": false in
// the reply is a failure; the backend may answer with just a message.
func (c *Client) UploadCSV(ctx context.Context, dbName, filename string, file io.Reader, primaryKey string) (*UploadResult, error) {
	body, contentType, err := BuildUploadForm(filename, file, primaryKey)
	if err != nil {
		return nil, fmt.Errorf("upload csv: %w", err)
	}

	var resp Envelope
	if err := c.do(ctx, "upload csv", http.MethodPost, tenantPath("/upload_csv", dbName), body, contentType, &resp, rejectExplicitFailure); err != nil {
		return nil, err
	}
	return &UploadResult{Message: resp.Message}, nil
}
