package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docmill/internal/models"
	"docmill/pkg/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherConfigDefaults(t *testing.T) {
	f, err := NewWithConfig(FetcherConfig{
		BaseURL: "http://example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, f.config.MaxDepth)
	assert.Equal(t, float64(2), f.config.RateLimit)
	assert.Equal(t, ".", f.config.OutputDir)
	assert.Equal(t, processor.SupportedExtensions(), f.config.Extensions)
	assert.Equal(t, "example.com", f.baseHost)
	assert.NotNil(t, f.client)
}

func TestIsDocumentLink(t *testing.T) {
	f, err := NewWithConfig(FetcherConfig{
		BaseURL: "http://example.com",
	})
	require.NoError(t, err)

	tests := []struct {
		url  string
		want bool
	}{
		{"http://example.com/files/report.pdf", true},
		{"http://example.com/files/notes.txt", true},
		{"http://example.com/files/NOTES.TXT", true},
		{"http://example.com/files/report.pdf?download=1", true},
		{"http://example.com/files/data.csv", false},
		{"http://example.com/about", false},
		{"http://example.com/", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, f.isDocumentLink(tt.url), "url: %s", tt.url)
	}
}

func TestShouldVisit(t *testing.T) {
	f, err := NewWithConfig(FetcherConfig{
		BaseURL:        "http://example.com",
		IgnorePatterns: []string{"/private/"},
	})
	require.NoError(t, err)

	assert.True(t, f.shouldVisit("http://example.com/docs"))
	assert.False(t, f.shouldVisit("http://other.com/docs"))
	assert.False(t, f.shouldVisit("http://example.com/private/docs"))
	assert.False(t, f.shouldVisit("://bad"))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{`a:b?c"d.txt`, "a_b_c_d.txt"},
		{"", "document"},
		{".", "document"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in))
	}
}

func TestFetchWithMockServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="/files/sample.txt">Sample</a>
			<a href="/files/huge.txt">Huge</a>
			<a href="https://other.example.com/files/offsite.txt">Offsite</a>
			<a href="/more.html">More</a>
		</body></html>`)
	})
	mux.HandleFunc("/more.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/files/nested.txt">Nested</a></body></html>`)
	})
	mux.HandleFunc("/files/sample.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "sample document body")
	})
	mux.HandleFunc("/files/nested.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "nested document body")
	})
	mux.HandleFunc("/files/huge.txt", func(w http.ResponseWriter, r *http.Request) {
		body := strings.Repeat("x", 2048)
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		fmt.Fprint(w, body)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	outputDir := t.TempDir()
	var seen []models.FetchedDocument
	f, err := NewWithConfig(FetcherConfig{
		BaseURL:     server.URL,
		OutputDir:   outputDir,
		MaxDepth:    2,
		RateLimit:   100,
		MaxFileSize: 1024,
		OnFetched: func(doc models.FetchedDocument) {
			seen = append(seen, doc)
		},
	})
	require.NoError(t, err)

	docs, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Len(t, seen, 2)

	var names []string
	for _, doc := range docs {
		names = append(names, filepath.Base(doc.Path))
		assert.Greater(t, doc.Size, int64(0))
		assert.Contains(t, doc.Metadata, "depth")
	}
	assert.ElementsMatch(t, []string{"sample.txt", "nested.txt"}, names)

	content, err := os.ReadFile(filepath.Join(outputDir, "sample.txt"))
	require.NoError(t, err)
	assert.Equal(t, "sample document body", string(content))

	_, err = os.Stat(filepath.Join(outputDir, "huge.txt"))
	assert.True(t, os.IsNotExist(err), "oversized document should not be kept")
}

func TestFetchBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	f, err := NewWithConfig(FetcherConfig{
		BaseURL:   server.URL,
		OutputDir: t.TempDir(),
		RateLimit: 100,
	})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 403")
}
