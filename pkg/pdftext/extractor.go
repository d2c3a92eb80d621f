// Package pdftext fetches a PDF by URL and extracts its plain text,
// one page after another with page markers, for prompt building.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

const defaultMaxFetchBytes = 64 << 20

// Extractor turns a document URL into extracted plain text.
type Extractor interface {
	ExtractFromURL(ctx context.Context, url string) (string, error)
}

// HTTPExtractor downloads the PDF over HTTP and parses it in memory.
type HTTPExtractor struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewHTTPExtractor builds an extractor with sane fetch limits.
func NewHTTPExtractor() *HTTPExtractor {
	return &HTTPExtractor{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxBytes:   defaultMaxFetchBytes,
	}
}

// ExtractFromURL fetches the document and returns its page-joined text.
func (e *HTTPExtractor) ExtractFromURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build pdf request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch pdf: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch pdf: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read pdf body: %w", err)
	}
	return ExtractText(data)
}

// ExtractText parses PDF bytes and concatenates the text of every page,
// each followed by a "Page number N" marker. Pages that fail to decode
// are skipped rather than failing the whole document.
func ExtractText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var sb strings.Builder
	totalPages := reader.NumPage()
	extracted := false
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		extracted = true
		sb.WriteString(text)
		sb.WriteString(fmt.Sprintf("\nPage number %d\n", i))
	}
	if !extracted {
		return "", fmt.Errorf("no text extracted from pdf")
	}
	return sb.String(), nil
}
