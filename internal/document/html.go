package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const (
	fetchTimeout = 30 * time.Second
	maxPageSize  = 10 << 20 // 10 MiB
)

// loadHTMLFile extracts readable article text from a local HTML file.
func loadHTMLFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	base := &url.URL{Scheme: "file", Path: path}
	return extractHTML(data, base)
}

// LoadURL fetches a web page and extracts its readable text. The unit is
// the page host; the stem is derived from the URL path.
func LoadURL(ctx context.Context, rawURL string) (*File, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme: %q", parsed.Scheme)
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	text, err := extractHTML(data, parsed)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", rawURL, err)
	}

	name := urlStem(parsed) + ".html"
	return &File{
		Name: name,
		Stem: strings.TrimSuffix(name, ".html"),
		Unit: parsed.Host,
		Text: header(parsed.Host, name) + text,
	}, nil
}

// extractHTML runs readability extraction, falling back to the page title
// from goquery when the article parser finds none.
func extractHTML(data []byte, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil {
		return "", fmt.Errorf("extracting article: %w", err)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		if doc, qerr := goquery.NewDocumentFromReader(bytes.NewReader(data)); qerr == nil {
			title = strings.TrimSpace(doc.Find("title").First().Text())
		}
	}

	body := strings.TrimSpace(article.TextContent)
	if body == "" {
		return "", fmt.Errorf("no readable content")
	}

	if title != "" {
		return title + "\n\n" + body, nil
	}
	return body, nil
}

// urlStem derives a file-name-like stem from a URL, used as the chunk ID
// prefix for web sources.
func urlStem(u *url.URL) string {
	stem := strings.Trim(u.Path, "/")
	if stem == "" {
		stem = u.Host
	} else {
		stem = strings.TrimSuffix(stem, filepath.Ext(stem))
	}
	replacer := strings.NewReplacer("/", "-", ".", "-", ":", "-")
	return replacer.Replace(stem)
}
