package loaders

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// Markdown loads Markdown text as plain paragraphs. Heading markers, list
// bullets and code fences are stripped so the chunker sees prose instead of
// markup.
type Markdown struct {
	r io.Reader
}

var _ documentloaders.Loader = Markdown{}

// NewMarkdown creates a loader that reads Markdown from r.
func NewMarkdown(r io.Reader) Markdown {
	return Markdown{r: r}
}

// Load returns a single record with the flattened text.
func (m Markdown) Load(_ context.Context) ([]schema.Document, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, m.r); err != nil {
		return nil, err
	}

	return []schema.Document{
		{
			PageContent: normalizeMarkdown(buf.String()),
			Metadata:    map[string]any{},
		},
	}, nil
}

// LoadAndSplit loads the document and splits it with the given splitter.
func (m Markdown) LoadAndSplit(ctx context.Context, splitter textsplitter.TextSplitter) ([]schema.Document, error) {
	docs, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	return textsplitter.SplitDocuments(splitter, docs)
}

// normalizeMarkdown flattens markup into plain text lines, collapsing runs
// of blank lines into a single paragraph break.
func normalizeMarkdown(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var out []string
	blank := true
	inFence := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if !inFence {
			trimmed = stripHeading(trimmed)
			trimmed = stripBullet(trimmed)
		}

		if trimmed == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, trimmed)
		blank = false
	}

	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}

	return strings.Join(out, "\n")
}

func stripHeading(line string) string {
	i := 0
	for i < len(line) && line[i] == '#' {
		i++
	}
	if i == 0 || i > 6 || i >= len(line) || line[i] != ' ' {
		return line
	}
	return strings.TrimSpace(line[i+1:])
}

func stripBullet(line string) string {
	for _, marker := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(line[len(marker):])
		}
	}
	return line
}
