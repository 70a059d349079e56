// Package docparse talks to the external document-parse API and splits the
// parsed elements of an inquiry plan into its labeled sections.
package docparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Element is one parsed unit of the uploaded document, in reading order.
type Element struct {
	Category string `json:"category"`
	Content  struct {
		Text string `json:"text"`
	} `json:"content"`
}

type parseResponse struct {
	Elements []Element `json:"elements"`
}

// Client calls the document-parse endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a document-parse client. baseURL is the full endpoint URL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// Parse uploads the file at path and returns its elements in reading
// order. Only the plain-text rendition is requested.
func (c *Client) Parse(ctx context.Context, path string) ([]Element, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if err := w.WriteField("output_formats", "['text']"); err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("document-parse call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("document-parse returned %s: %s", resp.Status, msg)
	}

	var parsed parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode document-parse response: %w", err)
	}
	return parsed.Elements, nil
}
