package types

import (
	"context"

	"github.com/tmc/langchaingo/schema"
)

// DocumentProcessor turns raw files into document records and document
// records into chunks. The intake server depends on this interface so tests
// can substitute the processing stage.
type DocumentProcessor interface {
	LoadDocument(ctx context.Context, path string) ([]schema.Document, error)
	SplitDocuments(docs []schema.Document) ([]schema.Document, error)
	ProcessDirectory(ctx context.Context, dir string) ([]schema.Document, error)
	SupportedExtensions() []string
}
