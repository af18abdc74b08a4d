// Package artifact caches generated analysis text as flat files.
package artifact

import (
	"bufio"
	"errors"
	"float_share/pkg/core/logging"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Artifact kinds produced by the extractors.
const (
	KindMethodology = "methodology"
	KindDnoRule     = "dno_rule"
)

// Delimiter separates the metadata header from the artifact text.
var Delimiter = strings.Repeat("=", 80)

const timestampLayout = "20060102_150405"

// Key identifies an artifact by (Document, Kind). Source is the path the
// document was read from; it is written to the header but never matched.
type Key struct {
	Document string
	Kind     string
	Source   string
}

// KeyFor builds a key from a document path: the base name without extension.
func KeyFor(docPath, kind string) Key {
	base := filepath.Base(docPath)
	return Key{
		Document: strings.TrimSuffix(base, filepath.Ext(base)),
		Kind:     kind,
		Source:   docPath,
	}
}

// Store is a key-value cache for generated text.
type Store interface {
	// Get returns the most recently created text for key, if any.
	Get(key Key) (string, bool, error)
	Put(key Key, text string) error
}

// Entry describes one stored artifact file.
type Entry struct {
	Document string
	Kind     string
	Path     string
	Created  time.Time
}

// FileStore keeps artifacts as timestamped text files in one directory.
type FileStore struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir. The directory is created on first write.
func NewFileStore(dir string, logger *slog.Logger) *FileStore {
	return &FileStore{dir: dir, now: time.Now, logger: logging.OrDefault(logger)}
}

// Dir returns the store's directory.
func (s *FileStore) Dir() string { return s.dir }

func (k Key) validate() error {
	if k.Document == "" || k.Kind == "" {
		return fmt.Errorf("artifact key needs document and kind, got %q/%q", k.Document, k.Kind)
	}
	return nil
}

func (k Key) prefix() string {
	return k.Document + "_" + k.Kind + "_analysis_"
}

func (k Key) pattern() *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(k.prefix()) + `\d{8}_\d{6}(_\d+)?\.txt$`)
}

// Put writes a new artifact file. Existing files are never overwritten.
func (s *FileStore) Put(key Key, text string) error {
	if err := key.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}

	now := s.now()
	stamp := now.Format(timestampLayout)
	content := header(key, now) + Delimiter + "\n\n" + text

	for n := 0; n < 1000; n++ {
		name := key.prefix() + stamp
		if n > 0 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		path := filepath.Join(s.dir, name+".txt")

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to create artifact %s: %w", path, err)
		}
		if _, err := f.WriteString(content); err != nil {
			f.Close()
			return fmt.Errorf("failed to write artifact %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close artifact %s: %w", path, err)
		}
		s.logger.Info("artifact_saved", "document", key.Document, "kind", key.Kind, "path", path)
		return nil
	}
	return fmt.Errorf("too many artifacts for %s at %s", key.prefix(), stamp)
}

func header(key Key, now time.Time) string {
	var b strings.Builder
	b.WriteString(title(key.Kind) + "\n")
	b.WriteString("Generated: " + now.Format(time.RFC3339) + "\n")
	b.WriteString("Source Document: " + key.Source + "\n")
	b.WriteString("Document: " + key.Document + "\n")
	b.WriteString("Analysis Type: " + key.Kind + "\n")
	return b.String()
}

func title(kind string) string {
	switch kind {
	case KindMethodology:
		return "S&P Float Methodology Analysis"
	case KindDnoRule:
		return "S&P Float D+O Rule Analysis"
	default:
		return "Float Share Analysis Artifact"
	}
}

// Get returns the text of the newest matching artifact. A file whose
// Document header disagrees with the key is ignored even if its name matches.
func (s *FileStore) Get(key Key) (string, bool, error) {
	if err := key.validate(); err != nil {
		return "", false, err
	}
	entries, err := s.candidates(key)
	if err != nil {
		return "", false, err
	}

	for _, e := range entries {
		doc, text, err := readArtifact(e.Path)
		if err != nil {
			s.logger.Warn("artifact_unreadable", "path", e.Path, "error", err)
			continue
		}
		if doc != key.Document {
			s.logger.Warn("artifact_document_mismatch", "path", e.Path, "want", key.Document, "got", doc)
			continue
		}
		s.logger.Debug("artifact_cache_hit", "document", key.Document, "kind", key.Kind, "path", e.Path)
		return text, true, nil
	}
	return "", false, nil
}

// candidates lists files named for key, newest first.
func (s *FileStore) candidates(key Key) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact dir: %w", err)
	}

	re := key.pattern()
	var out []Entry
	for _, de := range dirEntries {
		if de.IsDir() || !re.MatchString(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Document: key.Document,
			Kind:     key.Kind,
			Path:     filepath.Join(s.dir, de.Name()),
			Created:  info.ModTime(),
		})
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Created.Equal(entries[j].Created) {
			return entries[i].Created.After(entries[j].Created)
		}
		return filepath.Base(entries[i].Path) > filepath.Base(entries[j].Path)
	})
}

var listPattern = regexp.MustCompile(`^(.+)_(methodology|dno_rule)_analysis_\d{8}_\d{6}(_\d+)?\.txt$`)

// List returns stored artifacts, newest first. An empty kind lists all kinds.
func (s *FileStore) List(kind string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact dir: %w", err)
	}

	var out []Entry
	for _, de := range dirEntries {
		m := listPattern.FindStringSubmatch(de.Name())
		if de.IsDir() || m == nil {
			continue
		}
		if kind != "" && m[2] != kind {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Document: m[1],
			Kind:     m[2],
			Path:     filepath.Join(s.dir, de.Name()),
			Created:  info.ModTime(),
		})
	}
	sortNewestFirst(out)
	return out, nil
}

// readArtifact splits a stored file into its Document header value and body.
func readArtifact(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	content := string(data)

	sep := "\n" + Delimiter + "\n"
	idx := strings.Index(content, sep)
	if idx < 0 {
		return "", "", fmt.Errorf("no delimiter in %s", filepath.Base(path))
	}

	var doc string
	sc := bufio.NewScanner(strings.NewReader(content[:idx]))
	for sc.Scan() {
		if v, ok := strings.CutPrefix(sc.Text(), "Document: "); ok {
			doc = v
			break
		}
	}

	body := content[idx+len(sep):]
	body = strings.TrimPrefix(body, "\n")
	return doc, body, nil
}
