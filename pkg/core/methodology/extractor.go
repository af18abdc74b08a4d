// Package methodology summarizes the index provider's float methodology
// document and extracts its D+O ownership rule, caching both as artifacts.
package methodology

import (
	"context"
	"errors"
	"float_share/pkg/core/artifact"
	"float_share/pkg/core/domain"
	"float_share/pkg/core/llm"
	"float_share/pkg/core/logging"
	"fmt"
	"log/slog"
	"os"
)

const (
	SummaryPrompt = "Summarize the float share adjustment methodology used by S&P"
	DnoRulePrompt = "What is the 5% rule for D+O holders specified in the document"
)

// Extractor produces methodology artifacts. It is not safe for concurrent use.
type Extractor struct {
	gen         llm.Generator
	store       artifact.Store
	temperature float32
	logger      *slog.Logger

	// single-slot upload cache: the last uploaded document and its path
	lastPath string
	lastDoc  *llm.Document
}

func NewExtractor(gen llm.Generator, store artifact.Store, temperature float32, logger *slog.Logger) *Extractor {
	return &Extractor{
		gen:         gen,
		store:       store,
		temperature: temperature,
		logger:      logging.OrDefault(logger),
	}
}

// Summary returns the methodology summary for docPath, from cache when present.
func (e *Extractor) Summary(ctx context.Context, docPath string) (string, error) {
	return e.artifact(ctx, docPath, artifact.KindMethodology, SummaryPrompt)
}

// DnoRule returns the D+O threshold rule excerpt for docPath, from cache when present.
func (e *Extractor) DnoRule(ctx context.Context, docPath string) (string, error) {
	return e.artifact(ctx, docPath, artifact.KindDnoRule, DnoRulePrompt)
}

func (e *Extractor) artifact(ctx context.Context, docPath, kind, prompt string) (string, error) {
	if _, err := os.Stat(docPath); err != nil {
		return "", domain.WrapError(domain.ErrNotFound, "methodology."+kind,
			fmt.Errorf("methodology document %s: %w", docPath, err))
	}

	key := artifact.KeyFor(docPath, kind)
	if e.store != nil {
		text, ok, err := e.store.Get(key)
		if err != nil {
			e.logger.Warn("artifact_lookup_failed", "document", key.Document, "kind", kind, "error", err)
		} else if ok {
			e.logger.Info("using_cached_artifact", "document", key.Document, "kind", kind)
			return text, nil
		}
	}

	doc, err := e.document(ctx, docPath)
	if err != nil {
		return "", fmt.Errorf("failed to upload methodology document: %w", err)
	}

	e.logger.Info("generating_artifact", "document", key.Document, "kind", kind)
	text, err := e.gen.Generate(ctx, llm.Request{
		Parts:       []llm.Part{llm.Text(prompt), llm.Doc(doc)},
		Temperature: e.temperature,
		Mode:        llm.OutputText,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", kind, err)
	}

	if e.store != nil {
		if err := e.store.Put(key, text); err != nil {
			// The text is still valid; only the cache write failed.
			e.logger.Warn("artifact_save_failed", "document", key.Document, "kind", kind, "error", err)
		}
	}
	return text, nil
}

// document uploads docPath unless it was the last document uploaded.
func (e *Extractor) document(ctx context.Context, docPath string) (*llm.Document, error) {
	if e.lastDoc != nil && e.lastPath == docPath {
		return e.lastDoc, nil
	}
	doc, err := e.gen.Upload(ctx, docPath)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("upload returned no document")
	}
	e.lastPath, e.lastDoc = docPath, doc
	return doc, nil
}
