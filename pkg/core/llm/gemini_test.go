package llm

import (
	"context"
	"errors"
	"float_share/pkg/core/domain"
	"float_share/pkg/core/logging"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// --- Mocks ---

type MockBackend struct {
	UploadFileFunc      func(ctx context.Context, path string, cfg *genai.UploadFileConfig) (*genai.File, error)
	GetFileFunc         func(ctx context.Context, name string) (*genai.File, error)
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

	UploadCalls   int
	GetCalls      int
	GenerateCalls int
}

func (m *MockBackend) UploadFile(ctx context.Context, path string, cfg *genai.UploadFileConfig) (*genai.File, error) {
	m.UploadCalls++
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, path, cfg)
	}
	return &genai.File{Name: "files/doc", URI: "https://example.test/files/doc", MIMEType: cfg.MIMEType, State: genai.FileStateActive}, nil
}

func (m *MockBackend) GetFile(ctx context.Context, name string) (*genai.File, error) {
	m.GetCalls++
	if m.GetFileFunc != nil {
		return m.GetFileFunc(ctx, name)
	}
	return &genai.File{Name: name, State: genai.FileStateActive}, nil
}

func (m *MockBackend) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.GenerateCalls++
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, model, contents, cfg)
	}
	return textResponse("ok"), nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
	}
}

type sleepLog struct{ delays []time.Duration }

func newTestClient(b backend) (*GeminiClient, *sleepLog) {
	c := newGeminiClient(b, GeminiConfig{Model: "test-model", MaxAttempts: 3, Logger: logging.Discard()})
	log := &sleepLog{}
	c.retry.Sleep = func(_ context.Context, d time.Duration) error {
		log.delays = append(log.delays, d)
		return nil
	}
	return c, log
}

func writeTempDoc(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0644))
	return path
}

var notActive = genai.APIError{
	Code:    400,
	Status:  "FAILED_PRECONDITION",
	Message: "The File abc is not in an ACTIVE state and usage is not allowed.",
}

// --- Tests ---

func TestGenerate_NotReadyTwiceThenSucceeds(t *testing.T) {
	b := &MockBackend{}
	b.GenerateContentFunc = func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		if b.GenerateCalls < 3 {
			return nil, notActive
		}
		return textResponse("methodology summary"), nil
	}
	c, sleeps := newTestClient(b)

	text, err := c.Generate(context.Background(), Request{Parts: []Part{Text("Summarize")}})

	require.NoError(t, err)
	assert.Equal(t, "methodology summary", text)
	assert.Equal(t, 3, b.GenerateCalls)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, sleeps.delays)
}

func TestGenerate_ExhaustionReturnsFinalError(t *testing.T) {
	b := &MockBackend{}
	b.GenerateContentFunc = func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return nil, &genai.APIError{Code: 503, Status: "UNAVAILABLE", Message: "overloaded"}
	}
	c, sleeps := newTestClient(b)

	_, err := c.Generate(context.Background(), Request{Parts: []Part{Text("Summarize")}})

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrTransient))
	assert.Contains(t, err.Error(), "overloaded")
	assert.Equal(t, 3, b.GenerateCalls)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, sleeps.delays)
}

func TestGenerate_ContentTooLargeNotRetried(t *testing.T) {
	b := &MockBackend{}
	b.GenerateContentFunc = func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return nil, genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "The input token count exceeds the maximum number of tokens allowed"}
	}
	c, _ := newTestClient(b)

	_, err := c.Generate(context.Background(), Request{Parts: []Part{Text("x")}})

	assert.True(t, domain.IsKind(err, domain.ErrContentTooLarge))
	assert.Equal(t, 1, b.GenerateCalls)
}

func TestGenerate_JSONModeConfig(t *testing.T) {
	schema := &genai.Schema{Type: genai.TypeObject}
	var gotCfg *genai.GenerateContentConfig
	var gotContents []*genai.Content
	var gotModel string

	b := &MockBackend{}
	b.GenerateContentFunc = func(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		gotModel, gotContents, gotCfg = model, contents, cfg
		return textResponse(`{"float_shares": 1}`), nil
	}
	c, _ := newTestClient(b)

	doc := &Document{Name: "files/x", URI: "https://example.test/files/x", MIMEType: "application/pdf"}
	_, err := c.Generate(context.Background(), Request{
		Parts:  []Part{Text("prompt"), Doc(doc), Text("prior text")},
		Mode:   OutputJSON,
		Schema: schema,
	})
	require.NoError(t, err)

	assert.Equal(t, "test-model", gotModel)
	require.NotNil(t, gotCfg)
	assert.Equal(t, "application/json", gotCfg.ResponseMIMEType)
	assert.Same(t, schema, gotCfg.ResponseSchema)
	require.NotNil(t, gotCfg.Temperature)
	assert.Equal(t, float32(0), *gotCfg.Temperature)

	require.Len(t, gotContents, 1)
	parts := gotContents[0].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, "prompt", parts[0].Text)
	require.NotNil(t, parts[1].FileData)
	assert.Equal(t, doc.URI, parts[1].FileData.FileURI)
	assert.Equal(t, "prior text", parts[2].Text)
}

func TestGenerate_TextModeHasNoSchema(t *testing.T) {
	var gotCfg *genai.GenerateContentConfig
	b := &MockBackend{}
	b.GenerateContentFunc = func(_ context.Context, _ string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		gotCfg = cfg
		return textResponse("plain"), nil
	}
	c, _ := newTestClient(b)

	_, err := c.Generate(context.Background(), Request{Parts: []Part{Text("p")}, Schema: &genai.Schema{}})
	require.NoError(t, err)
	assert.Empty(t, gotCfg.ResponseMIMEType)
	assert.Nil(t, gotCfg.ResponseSchema)
}

func TestGenerate_EmptyRequest(t *testing.T) {
	b := &MockBackend{}
	c, _ := newTestClient(b)

	_, err := c.Generate(context.Background(), Request{})
	assert.True(t, domain.IsKind(err, domain.ErrValidation))
	assert.Zero(t, b.GenerateCalls)
}

func TestUpload_MissingFileMakesNoCalls(t *testing.T) {
	b := &MockBackend{}
	c, _ := newTestClient(b)

	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))

	assert.True(t, domain.IsKind(err, domain.ErrNotFound))
	assert.Zero(t, b.UploadCalls)
	assert.Zero(t, b.GetCalls)
}

func TestUpload_WaitsForActiveState(t *testing.T) {
	path := writeTempDoc(t, "sp_float.pdf")
	b := &MockBackend{}
	b.UploadFileFunc = func(_ context.Context, _ string, cfg *genai.UploadFileConfig) (*genai.File, error) {
		return &genai.File{Name: "files/sp", URI: "https://example.test/files/sp", MIMEType: cfg.MIMEType, State: genai.FileStateProcessing}, nil
	}
	b.GetFileFunc = func(_ context.Context, name string) (*genai.File, error) {
		return &genai.File{Name: name, URI: "https://example.test/files/sp", MIMEType: "application/pdf", State: genai.FileStateActive}, nil
	}
	c, sleeps := newTestClient(b)

	doc, err := c.Upload(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "files/sp", doc.Name)
	assert.Equal(t, path, doc.LocalPath)
	assert.Equal(t, 1, b.UploadCalls, "the file is uploaded once")
	assert.Equal(t, 1, b.GetCalls)
	assert.Equal(t, []time.Duration{10 * time.Second}, sleeps.delays)
}

func TestUpload_TransientFailureRetried(t *testing.T) {
	path := writeTempDoc(t, "proxy.htm")
	b := &MockBackend{}
	var gotMIME string
	b.UploadFileFunc = func(_ context.Context, _ string, cfg *genai.UploadFileConfig) (*genai.File, error) {
		gotMIME = cfg.MIMEType
		if b.UploadCalls == 1 {
			return nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		return &genai.File{Name: "files/p", URI: "u", State: genai.FileStateActive}, nil
	}
	c, sleeps := newTestClient(b)

	doc, err := c.Upload(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "text/html", gotMIME)
	assert.Equal(t, "text/html", doc.MIMEType)
	assert.Equal(t, 2, b.UploadCalls)
	assert.Equal(t, []time.Duration{5 * time.Second}, sleeps.delays)
}

func TestUpload_FailedStateIsRejected(t *testing.T) {
	path := writeTempDoc(t, "bad.pdf")
	b := &MockBackend{}
	b.UploadFileFunc = func(context.Context, string, *genai.UploadFileConfig) (*genai.File, error) {
		return &genai.File{Name: "files/bad", State: genai.FileStateFailed}, nil
	}
	c, _ := newTestClient(b)

	_, err := c.Upload(context.Background(), path)
	assert.True(t, domain.IsKind(err, domain.ErrRejected))
	assert.Equal(t, 1, b.UploadCalls)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not active", notActive, domain.ErrResourceNotReady},
		{"not active pointer", &notActive, domain.ErrResourceNotReady},
		{"payload too large", genai.APIError{Code: 413}, domain.ErrContentTooLarge},
		{"token limit", genai.APIError{Code: 400, Message: "Request exceeds token limit"}, domain.ErrContentTooLarge},
		{"too long", genai.APIError{Code: 400, Message: "prompt is too long"}, domain.ErrContentTooLarge},
		{"not found", genai.APIError{Code: 404, Message: "model not found"}, domain.ErrNotFound},
		{"rate limited", genai.APIError{Code: 429}, domain.ErrTransient},
		{"server", genai.APIError{Code: 500}, domain.ErrTransient},
		{"bad key", genai.APIError{Code: 403, Message: "API key not valid"}, domain.ErrRejected},
		{"network", &net.OpError{Op: "read", Err: errors.New("reset")}, domain.ErrConnection},
		{"unknown", errors.New("boom"), domain.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError("op", tt.err)
			assert.Equal(t, tt.want, domain.KindOf(got))
			assert.Contains(t, got.Error(), tt.err.Error())
		})
	}
}

func TestClassifyError_LeavesTaggedAndContextErrors(t *testing.T) {
	tagged := domain.WrapError(domain.ErrParse, "x", errors.New("y"))
	assert.Equal(t, tagged, classifyError("op", tagged))
	assert.Equal(t, context.Canceled, classifyError("op", context.Canceled))
}

func TestDetectMIMEType(t *testing.T) {
	assert.Equal(t, "application/pdf", detectMIMEType("doc.PDF"))
	assert.Equal(t, "text/html", detectMIMEType("proxy_20240101_120000_def14a.htm"))
	assert.Equal(t, "text/plain", detectMIMEType("notes.txt"))
	assert.Equal(t, "application/pdf", detectMIMEType("no_extension"))
}
