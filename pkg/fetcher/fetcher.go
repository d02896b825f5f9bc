package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"docmill/internal/models"
	"docmill/pkg/processor"
	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type FetcherConfig struct {
	BaseURL        string
	OutputDir      string
	Extensions     []string // document extensions to download
	MaxDepth       int
	RateLimit      float64 // requests per second
	MaxFileSize    int64   // bytes; larger documents are skipped
	Timeout        time.Duration
	IgnorePatterns []string
	OnFetched      func(doc models.FetchedDocument)
}

// Fetcher crawls pages under one host and downloads the documents they link
// to into the output directory.
type Fetcher struct {
	config   FetcherConfig
	client   *http.Client
	visited  map[string]bool
	limiter  *rate.Limiter
	baseHost string
}

func NewWithConfig(config FetcherConfig) (*Fetcher, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 2
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if len(config.Extensions) == 0 {
		config.Extensions = processor.SupportedExtensions()
	}
	if config.OutputDir == "" {
		config.OutputDir = "."
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, err
	}

	return &Fetcher{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		visited:  make(map[string]bool),
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
	}, nil
}

func New(baseURL string) *Fetcher {
	f, _ := NewWithConfig(FetcherConfig{
		BaseURL: baseURL,
	})
	return f
}

// Fetch crawls from the base URL and downloads every linked document with a
// supported extension. Per-link failures are logged and skipped.
func (f *Fetcher) Fetch(ctx context.Context) ([]models.FetchedDocument, error) {
	var fetched []models.FetchedDocument
	if err := f.crawl(ctx, f.config.BaseURL, 0, &fetched); err != nil {
		return fetched, err
	}
	return fetched, nil
}

func (f *Fetcher) shouldVisit(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsedURL.Host != f.baseHost {
		return false
	}

	for _, pattern := range f.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

func (f *Fetcher) isDocumentLink(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	ext := strings.ToLower(path.Ext(parsedURL.Path))
	for _, allowed := range f.config.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (f *Fetcher) crawl(ctx context.Context, urlStr string, depth int, fetched *[]models.FetchedDocument) error {
	if depth > f.config.MaxDepth || f.visited[urlStr] {
		return nil
	}
	if !f.shouldVisit(urlStr) {
		return nil
	}
	f.visited[urlStr] = true

	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	page, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return err
	}

	page.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, exists := selection.Attr("href")
		if !exists {
			return
		}

		link, err := url.Parse(href)
		if err != nil {
			log.WithError(err).WithField("href", href).Warn("skipping unparseable link")
			return
		}
		if !link.IsAbs() {
			base, err := url.Parse(urlStr)
			if err != nil {
				return
			}
			link = base.ResolveReference(link)
		}

		target := link.String()
		if !f.shouldVisit(target) || f.visited[target] {
			return
		}

		if f.isDocumentLink(target) {
			f.visited[target] = true
			doc, err := f.download(ctx, target, depth)
			if err != nil {
				log.WithError(err).WithField("url", target).Error("failed to fetch document")
				return
			}
			*fetched = append(*fetched, doc)
			if f.config.OnFetched != nil {
				f.config.OnFetched(doc)
			}
			return
		}

		if err := f.crawl(ctx, target, depth+1, fetched); err != nil {
			log.WithError(err).WithField("url", target).Warn("failed to crawl page")
		}
	})

	return nil
}

// download streams one document into the output directory. Documents larger
// than MaxFileSize are discarded.
func (f *Fetcher) download(ctx context.Context, urlStr string, depth int) (models.FetchedDocument, error) {
	var doc models.FetchedDocument

	if err := f.limiter.Wait(ctx); err != nil {
		return doc, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return doc, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return doc, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return doc, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}
	if max := f.config.MaxFileSize; max > 0 && resp.ContentLength > max {
		return doc, fmt.Errorf("document is %d bytes, over the %d byte limit", resp.ContentLength, max)
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return doc, err
	}
	dest := filepath.Join(f.config.OutputDir, sanitizeFilename(path.Base(parsedURL.Path)))

	out, err := os.Create(dest)
	if err != nil {
		return doc, err
	}
	defer out.Close()

	body := io.Reader(resp.Body)
	if max := f.config.MaxFileSize; max > 0 {
		// One extra byte so the limit check below can tell "at the
		// limit" from "over it".
		body = io.LimitReader(resp.Body, max+1)
	}
	written, err := io.Copy(out, body)
	if err != nil {
		os.Remove(dest)
		return doc, err
	}
	if max := f.config.MaxFileSize; max > 0 && written > max {
		os.Remove(dest)
		return doc, fmt.Errorf("document exceeds the %d byte limit", max)
	}

	doc = models.FetchedDocument{
		URL:         urlStr,
		Path:        dest,
		Size:        written,
		ContentType: resp.Header.Get("Content-Type"),
		Metadata: map[string]interface{}{
			"depth":        depth,
			"lastModified": resp.Header.Get("Last-Modified"),
		},
	}

	log.WithFields(log.Fields{"url": urlStr, "file": dest, "bytes": written}).Info("fetched document")
	return doc, nil
}

func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." {
		name = "document"
	}
	return name
}
