package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docmill/pkg/loaders"
	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

var (
	// ErrNotFound reports a missing file or directory.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedType reports a file extension outside the loader table.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// LoaderError wraps a failure inside a format loader.
type LoaderError struct {
	Path string
	Err  error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoaderError) Unwrap() error { return e.Err }

type loaderFunc func(r io.ReaderAt, size int64) documentloaders.Loader

// Loader table keyed by lowercased extension. Note that .doc is wired to
// the Markdown loader; there is no Word 97 binary loader here.
var supportedLoaders = map[string]loaderFunc{
	".pdf": func(r io.ReaderAt, size int64) documentloaders.Loader {
		return documentloaders.NewPDF(r, size)
	},
	".txt": func(r io.ReaderAt, size int64) documentloaders.Loader {
		return documentloaders.NewText(io.NewSectionReader(r, 0, size))
	},
	".docx": func(r io.ReaderAt, size int64) documentloaders.Loader {
		return loaders.NewDocx(r, size)
	},
	".doc": func(r io.ReaderAt, size int64) documentloaders.Loader {
		return loaders.NewMarkdown(io.NewSectionReader(r, 0, size))
	},
}

// SupportedExtensions lists the extensions in the loader table, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedLoaders))
	for ext := range supportedLoaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// DocumentProcessor loads supported files into document records and splits
// them into overlapping chunks. It holds no state beyond its configuration,
// so every call is independent.
type DocumentProcessor struct {
	config   Config
	splitter textsplitter.RecursiveCharacter
}

// New returns a DocumentProcessor with the default chunking configuration.
func New() *DocumentProcessor {
	return NewWithConfig(Config{})
}

// NewWithConfig returns a DocumentProcessor for the given chunk parameters.
func NewWithConfig(config Config) *DocumentProcessor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}

	// Break at paragraphs first, then lines, then sentence ends, then
	// words, then single characters.
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(config.ChunkSize),
		textsplitter.WithChunkOverlap(config.ChunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}),
	)

	return &DocumentProcessor{
		config:   config,
		splitter: splitter,
	}
}

// SupportedExtensions lists the file extensions this processor accepts.
func (p *DocumentProcessor) SupportedExtensions() []string {
	return SupportedExtensions()
}

// LoadDocument reads one file into document records. The loader is picked by
// the lowercased file extension; every returned record carries source,
// file_path and file_type metadata. Loader failures are logged and returned
// as *LoaderError.
func (p *DocumentProcessor) LoadDocument(ctx context.Context, path string) ([]schema.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		log.WithField("file", path).Error("document does not exist")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	newLoader, ok := supportedLoaders[ext]
	if !ok {
		log.WithFields(log.Fields{"file": path, "type": ext}).Error("unsupported file type")
		return nil, fmt.Errorf("%w %q, supported types: %s",
			ErrUnsupportedType, ext, strings.Join(SupportedExtensions(), ", "))
	}

	f, err := os.Open(path)
	if err != nil {
		log.WithError(err).WithField("file", path).Error("failed to open document")
		return nil, &LoaderError{Path: path, Err: err}
	}
	defer f.Close()

	docs, err := newLoader(f, info.Size()).Load(ctx)
	if err != nil {
		log.WithError(err).WithField("file", path).Error("failed to load document")
		return nil, &LoaderError{Path: path, Err: err}
	}

	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]any)
		}
		docs[i].Metadata["source"] = filepath.Base(path)
		docs[i].Metadata["file_path"] = path
		docs[i].Metadata["file_type"] = ext
	}

	log.WithFields(log.Fields{"file": path, "records": len(docs)}).Info("loaded document")
	return docs, nil
}

// SplitDocuments chunks every record with the configured splitter. Chunks
// inherit a copy of the parent metadata and keep the input order.
func (p *DocumentProcessor) SplitDocuments(docs []schema.Document) ([]schema.Document, error) {
	if len(docs) == 0 {
		log.Warn("no documents to split")
		return []schema.Document{}, nil
	}

	chunks, err := textsplitter.SplitDocuments(p.splitter, docs)
	if err != nil {
		return nil, fmt.Errorf("splitting documents: %w", err)
	}

	totalChars := 0
	for _, chunk := range chunks {
		totalChars += len(chunk.PageContent)
	}
	avgSize := 0.0
	if len(chunks) > 0 {
		avgSize = float64(totalChars) / float64(len(chunks))
	}
	log.WithFields(log.Fields{
		"documents":   len(docs),
		"chunks":      len(chunks),
		"total_chars": totalChars,
	}).Infof("split documents, avg. chunk size %.1f chars", avgSize)

	return chunks, nil
}

// ProcessDirectory loads every supported file directly inside dir.
// Subdirectories are not descended into. Files that fail to load are logged
// and skipped; the returned records follow directory order.
func (p *DocumentProcessor) ProcessDirectory(ctx context.Context, dir string) ([]schema.Document, error) {
	if _, err := os.Stat(dir); err != nil {
		log.WithField("dir", dir).Error("directory does not exist")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var all []schema.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := supportedLoaders[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		docs, err := p.LoadDocument(ctx, path)
		if err != nil {
			log.WithError(err).WithField("file", path).Error("skipping document")
			continue
		}
		all = append(all, docs...)
	}

	log.WithFields(log.Fields{"dir": dir, "records": len(all)}).Info("processed directory")
	return all, nil
}
