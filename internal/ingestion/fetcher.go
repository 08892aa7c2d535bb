package ingestion

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/helpdeck/helpdeck/internal/domain"
)

const fetcherUserAgent = "helpdeck-ingest/1.0"

// fetchableTypes is the content-type allowlist for URL ingestion.
var fetchableTypes = map[string]struct{}{
	"text/html":             {},
	"application/xhtml+xml": {},
	"text/plain":            {},
	"text/markdown":         {},
	"application/pdf":       {},
}

// FetchResult is the raw payload of a fetched URL plus the negotiated type.
type FetchResult struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

// Fetcher downloads remote documents with a hard timeout and size cap so a
// slow or hostile origin cannot stall the pipeline.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return FetchResult{}, domain.ValidationError(fmt.Sprintf("invalid url %q", rawURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return FetchResult{}, domain.ValidationError(fmt.Sprintf("invalid url %q", rawURL))
	}
	req.Header.Set("User-Agent", fetcherUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, domain.UpstreamError(fmt.Sprintf("failed to fetch %s", rawURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return FetchResult{}, domain.UpstreamError(fmt.Sprintf("%s returned status %d", rawURL, resp.StatusCode), nil)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/html"
	}

	if _, ok := fetchableTypes[mediaType]; !ok {
		return FetchResult{}, domain.IngestionError(fmt.Sprintf("unsupported content type %q", mediaType), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return FetchResult{}, domain.UpstreamError(fmt.Sprintf("failed to read body of %s", rawURL), err)
	}

	if int64(len(body)) > f.maxBytes {
		return FetchResult{}, domain.IngestionError(fmt.Sprintf("document at %s exceeds %d bytes", rawURL, f.maxBytes), nil)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return FetchResult{
		Body:        body,
		ContentType: mediaType,
		FinalURL:    finalURL,
	}, nil
}
