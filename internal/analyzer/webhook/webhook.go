// Package webhook talks to the hosted food-recognition workflow: a single
// multipart POST with the image, answered by a JSON envelope.
package webhook

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/kingpromise/promeals/internal/analyzer"
)

// DefaultURL is the hosted recognition workflow endpoint. Deployments point
// ANALYZER_URL elsewhere.
const DefaultURL = "https://kingpromise007.app.n8n.cloud/webhook/food-ai"

type Client struct {
	url    string
	client *http.Client
}

func New(url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url: url,
		// The workflow runs a vision model; allow it a full minute.
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Analyze(ctx context.Context, imageData []byte, mimeType string) analyzer.Outcome {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="meal.jpg"`)
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return analyzer.Failedf("failed to build request: %v", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return analyzer.Failedf("failed to build request: %v", err)
	}
	if err := w.Close(); err != nil {
		return analyzer.Failedf("failed to build request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return analyzer.Failedf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return analyzer.Failedf("failed to reach analyzer: %v", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close analyzer response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return analyzer.Failedf("analyzer returned status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return analyzer.Failedf("failed to read analyzer response: %v", err)
	}

	return analyzer.Classify(respBody)
}
