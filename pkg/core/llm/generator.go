package llm

import (
	"context"

	"google.golang.org/genai"
)

// Document is a file uploaded to the generation service. It is only valid
// for the process that uploaded it; nothing persists the handle.
type Document struct {
	Name      string // service-side name, e.g. "files/abc123"
	URI       string
	MIMEType  string
	LocalPath string
}

// Part is one content item of a request: prompt text, prior text, or a document.
type Part struct {
	Text string
	Doc  *Document
}

func Text(s string) Part   { return Part{Text: s} }
func Doc(d *Document) Part { return Part{Doc: d} }

// OutputMode selects plain text or schema-constrained JSON text.
type OutputMode int

const (
	OutputText OutputMode = iota
	OutputJSON
)

func (m OutputMode) String() string {
	if m == OutputJSON {
		return "json"
	}
	return "text"
}

// Request is one generation call.
type Request struct {
	Parts       []Part
	Temperature float32
	Mode        OutputMode
	Schema      *genai.Schema // only used with OutputJSON
}

// Generator is the analyzer's view of the generation service. Errors are
// tagged with domain kinds (see classifyError).
type Generator interface {
	Upload(ctx context.Context, path string) (*Document, error)
	Generate(ctx context.Context, req Request) (string, error)
}
