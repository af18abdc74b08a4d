package llm

import (
	"context"
	"errors"
	"float_share/pkg/core/domain"
	"float_share/pkg/core/logging"
	"float_share/pkg/core/resilience"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/genai"
)

// backend is the slice of the GenAI SDK the client uses. Swapped in tests.
type backend interface {
	UploadFile(ctx context.Context, path string, cfg *genai.UploadFileConfig) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type sdkBackend struct {
	client *genai.Client
}

func (b *sdkBackend) UploadFile(ctx context.Context, path string, cfg *genai.UploadFileConfig) (*genai.File, error) {
	return b.client.Files.UploadFromPath(ctx, path, cfg)
}

func (b *sdkBackend) GetFile(ctx context.Context, name string) (*genai.File, error) {
	return b.client.Files.Get(ctx, name, nil)
}

func (b *sdkBackend) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return b.client.Models.GenerateContent(ctx, model, contents, cfg)
}

// GeminiConfig is everything the client needs; nothing is read from the environment.
type GeminiConfig struct {
	APIKey      string
	Model       string // e.g. "gemini-2.5-flash"
	MaxAttempts int
	Delays      RetryDelays
	Logger      *slog.Logger
}

const DefaultModel = "gemini-2.5-flash"

// GeminiClient implements Generator on top of the official GenAI SDK.
type GeminiClient struct {
	backend backend
	model   string
	retry   *resilience.Policy
	delays  RetryDelays
	logger  *slog.Logger
}

// Ensure interface compliance
var _ Generator = (*GeminiClient)(nil)

// NewGeminiClient creates the SDK client for the Gemini Developer API.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, domain.WrapError(domain.ErrValidation, "llm.new_client", errors.New("API key is empty"))
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGeminiClient(&sdkBackend{client: client}, cfg), nil
}

func newGeminiClient(b backend, cfg GeminiConfig) *GeminiClient {
	logger := logging.OrDefault(cfg.Logger)
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	delays := cfg.Delays
	if delays.NotReady <= 0 {
		delays.NotReady = DefaultRetryDelays.NotReady
	}
	if delays.Transient <= 0 {
		delays.Transient = DefaultRetryDelays.Transient
	}
	return &GeminiClient{
		backend: b,
		model:   model,
		retry:   resilience.NewPolicy(cfg.MaxAttempts, logger),
		delays:  delays,
		logger:  logger,
	}
}

// Upload sends a local file to the service and waits, within the retry
// budget, for it to become ACTIVE. A missing local file fails before any
// network call.
func (c *GeminiClient) Upload(ctx context.Context, path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if err == nil {
			err = errors.New("is a directory")
		}
		return nil, domain.WrapError(domain.ErrNotFound, "llm.upload", fmt.Errorf("%s: %w", path, err))
	}

	mimeType := detectMIMEType(path)
	var file *genai.File

	err = c.retry.Do(ctx, "llm.upload", func(ctx context.Context) error {
		if file == nil {
			f, err := c.backend.UploadFile(ctx, path, &genai.UploadFileConfig{
				MIMEType:    mimeType,
				DisplayName: filepath.Base(path),
			})
			if err != nil {
				return classifyError("llm.upload", err)
			}
			file = f
		} else {
			f, err := c.backend.GetFile(ctx, file.Name)
			if err != nil {
				return classifyError("llm.upload", err)
			}
			file = f
		}
		return fileStateError(file)
	}, c.delays.classifier())
	if err != nil {
		return nil, err
	}

	c.logger.Debug("document_uploaded", "path", path, "name", file.Name, "mime_type", file.MIMEType)
	doc := &Document{
		Name:      file.Name,
		URI:       file.URI,
		MIMEType:  file.MIMEType,
		LocalPath: path,
	}
	if doc.MIMEType == "" {
		doc.MIMEType = mimeType
	}
	return doc, nil
}

func fileStateError(f *genai.File) error {
	switch f.State {
	case genai.FileStateActive, genai.FileStateUnspecified, "":
		return nil
	case genai.FileStateFailed:
		reason := "processing failed"
		if f.Error != nil && f.Error.Message != "" {
			reason = f.Error.Message
		}
		return domain.WrapError(domain.ErrRejected, "llm.upload", fmt.Errorf("file %s: %s", f.Name, reason))
	default:
		return domain.WrapError(domain.ErrResourceNotReady, "llm.upload", fmt.Errorf("file %s is %s", f.Name, f.State))
	}
}

// Generate issues one generation call with the shared retry policy.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	contents, err := buildContents(req.Parts)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.Mode == OutputJSON {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = req.Schema
	}

	var text string
	err = c.retry.Do(ctx, "llm.generate", func(ctx context.Context) error {
		resp, err := c.backend.GenerateContent(ctx, c.model, contents, config)
		if err != nil {
			return classifyError("llm.generate", err)
		}
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return domain.WrapError(domain.ErrRejected, "llm.generate",
				fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
		}
		if resp != nil {
			text = resp.Text()
		}
		return nil
	}, c.delays.classifier())
	if err != nil {
		return "", err
	}

	c.logger.Debug("generation_complete", "model", c.model, "mode", req.Mode.String(), "chars", len(text))
	return text, nil
}

func buildContents(parts []Part) ([]*genai.Content, error) {
	if len(parts) == 0 {
		return nil, domain.WrapError(domain.ErrValidation, "llm.generate", errors.New("request has no content"))
	}
	out := make([]*genai.Part, 0, len(parts))
	for i, p := range parts {
		switch {
		case p.Doc != nil:
			out = append(out, genai.NewPartFromURI(p.Doc.URI, p.Doc.MIMEType))
		case p.Text != "":
			out = append(out, genai.NewPartFromText(p.Text))
		default:
			return nil, domain.WrapError(domain.ErrValidation, "llm.generate", fmt.Errorf("content item %d is empty", i))
		}
	}
	return []*genai.Content{genai.NewContentFromParts(out, genai.RoleUser)}, nil
}

func detectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".htm", ".html":
		return "text/html"
	case ".txt":
		return "text/plain"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "application/pdf"
}
