package loaders

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// Docx loads the text of a Word document from the word/document.xml part of
// its archive.
type Docx struct {
	r    io.ReaderAt
	size int64
}

var _ documentloaders.Loader = Docx{}

// NewDocx creates a loader over an open .docx archive.
func NewDocx(r io.ReaderAt, size int64) Docx {
	return Docx{r: r, size: size}
}

// Load returns a single record holding the document text, with one blank
// line between paragraphs.
func (d Docx) Load(_ context.Context) ([]schema.Document, error) {
	zr, err := zip.NewReader(d.r, d.size)
	if err != nil {
		return nil, fmt.Errorf("opening docx archive: %w", err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			part = f
			break
		}
	}
	if part == nil {
		return nil, fmt.Errorf("docx archive has no word/document.xml part")
	}

	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("opening word/document.xml: %w", err)
	}
	defer rc.Close()

	paragraphs, err := extractParagraphs(rc)
	if err != nil {
		return nil, fmt.Errorf("parsing word/document.xml: %w", err)
	}

	return []schema.Document{
		{
			PageContent: strings.Join(paragraphs, "\n\n"),
			Metadata:    map[string]any{},
		},
	}, nil
}

// LoadAndSplit loads the document and splits it with the given splitter.
func (d Docx) LoadAndSplit(ctx context.Context, splitter textsplitter.TextSplitter) ([]schema.Document, error) {
	docs, err := d.Load(ctx)
	if err != nil {
		return nil, err
	}
	return textsplitter.SplitDocuments(splitter, docs)
}

// extractParagraphs walks the WordprocessingML token stream. Every w:p
// element becomes one paragraph; w:t elements hold the runs of text, w:tab
// and w:br count as spacing.
func extractParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var paragraphs []string
	var para strings.Builder
	inParagraph := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				para.Reset()
			case "t":
				if inParagraph {
					var text string
					if err := dec.DecodeElement(&text, &t); err != nil {
						return nil, err
					}
					para.WriteString(text)
				}
			case "tab":
				if inParagraph {
					para.WriteString("\t")
				}
			case "br", "cr":
				if inParagraph {
					para.WriteString("\n")
				}
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				inParagraph = false
				if text := strings.TrimSpace(para.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
			}
		}
	}

	return paragraphs, nil
}
