// Package ownership pulls the beneficial-ownership disclosure out of a proxy
// filing, compressing it when the first extraction is too long.
package ownership

import (
	"context"
	"float_share/pkg/core/domain"
	"float_share/pkg/core/llm"
	"float_share/pkg/core/logging"
	"fmt"
	"log/slog"
	"os"
	"unicode/utf8"
)

// DefaultCompressionThreshold is the excerpt length, in characters, at which
// a second compression call is issued.
const DefaultCompressionThreshold = 8000

const LocatePrompt = `Find and extract ONLY the "Security Ownership by Certain Beneficial Owners and Management" section.
Look for tables showing share ownership, including:
- Number of shares owned by officers and directors
- Percentage of ownership
- Beneficial ownership information
Return ONLY this section, nothing else.`

const CompressPrompt = `Compress the ownership information to focus only on:
1. Total shares outstanding
2. Shares owned by officers and directors (with names and share counts)
3. Percentage ownership for each person
4. Any beneficial ownership disclosures
Remove all other text, footnotes, and legal disclaimers.`

const CompressedFormatPrompt = `Extract ONLY the essential ownership data in this exact format:

TOTAL SHARES OUTSTANDING: [number]

OFFICERS AND DIRECTORS:
- [Name]: [shares] shares ([percentage]%)
- [Name]: [shares] shares ([percentage]%)

BENEFICIAL OWNERS (>5%):
- [Name]: [shares] shares ([percentage]%)

Return ONLY this structured data, no other text.`

// Excerpt is the ownership text for one filing. Compressed reports whether
// the text came from a compression pass rather than the located section.
type Excerpt struct {
	Text       string
	Compressed bool
}

type Extractor struct {
	gen         llm.Generator
	threshold   int
	temperature float32
	logger      *slog.Logger
}

func NewExtractor(gen llm.Generator, threshold int, temperature float32, logger *slog.Logger) *Extractor {
	if threshold <= 0 {
		threshold = DefaultCompressionThreshold
	}
	return &Extractor{
		gen:         gen,
		threshold:   threshold,
		temperature: temperature,
		logger:      logging.OrDefault(logger),
	}
}

// Extract locates the ownership section and, when it is at least the
// threshold length in characters (not bytes), replaces it with a compressed
// version.
func (e *Extractor) Extract(ctx context.Context, docPath string) (Excerpt, error) {
	doc, err := e.upload(ctx, docPath, "ownership.extract")
	if err != nil {
		return Excerpt{}, err
	}

	e.logger.Info("locating_ownership_section", "document", docPath)
	section, err := e.gen.Generate(ctx, llm.Request{
		Parts:       []llm.Part{llm.Text(LocatePrompt), llm.Doc(doc)},
		Temperature: e.temperature,
	})
	if err != nil {
		return Excerpt{}, fmt.Errorf("failed to locate ownership section: %w", err)
	}

	chars := utf8.RuneCountInString(section)
	if chars < e.threshold {
		return Excerpt{Text: section}, nil
	}

	e.logger.Info("compressing_ownership_section", "document", docPath, "chars", chars, "threshold", e.threshold)
	compressed, err := e.gen.Generate(ctx, llm.Request{
		Parts:       []llm.Part{llm.Text(CompressPrompt), llm.Text(section)},
		Temperature: e.temperature,
	})
	if err != nil {
		return Excerpt{}, fmt.Errorf("failed to compress ownership section: %w", err)
	}
	return Excerpt{Text: compressed, Compressed: true}, nil
}

// ExtractCompressed is the single-call path for filings too large for
// Extract. The output follows the fixed line format of CompressedFormatPrompt.
func (e *Extractor) ExtractCompressed(ctx context.Context, docPath string) (string, error) {
	doc, err := e.upload(ctx, docPath, "ownership.extract_compressed")
	if err != nil {
		return "", err
	}

	e.logger.Info("extracting_compressed_ownership", "document", docPath)
	text, err := e.gen.Generate(ctx, llm.Request{
		Parts:       []llm.Part{llm.Text(CompressedFormatPrompt), llm.Doc(doc)},
		Temperature: e.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to extract compressed ownership: %w", err)
	}
	return text, nil
}

func (e *Extractor) upload(ctx context.Context, docPath, op string) (*llm.Document, error) {
	if _, err := os.Stat(docPath); err != nil {
		return nil, domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("proxy document %s: %w", docPath, err))
	}
	doc, err := e.gen.Upload(ctx, docPath)
	if err != nil {
		return nil, fmt.Errorf("failed to upload proxy document: %w", err)
	}
	return doc, nil
}
