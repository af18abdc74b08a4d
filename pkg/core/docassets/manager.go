// Package docassets manages downloaded proxy documents in the asset directory.
package docassets

import (
	"errors"
	"float_share/pkg/core/logging"
	"float_share/pkg/models"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const (
	ProxyPrefix       = "proxy_"
	DefaultMaxAgeDays = 30
	pdfExtension      = ".pdf"
)

type Manager struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

func NewManager(dir string, logger *slog.Logger) *Manager {
	return &Manager{dir: dir, now: time.Now, logger: logging.OrDefault(logger)}
}

func (m *Manager) Dir() string { return m.dir }

// List returns downloaded proxy documents, newest first.
func (m *Manager) List() ([]models.DocumentInfo, error) {
	files, err := m.proxies()
	if err != nil {
		return nil, err
	}

	docs := make([]models.DocumentInfo, 0, len(files))
	for _, f := range files {
		doc := models.DocumentInfo{
			Name:      f.name,
			Path:      filepath.Join(m.dir, f.name),
			SizeBytes: f.size,
			Modified:  f.modified,
		}
		if strings.EqualFold(filepath.Ext(f.name), pdfExtension) {
			doc.Pages = pageCount(m.logger, doc.Path)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Cleanup removes proxy documents older than days. Non-positive days uses
// DefaultMaxAgeDays. Analysis artifacts are never touched.
func (m *Manager) Cleanup(days int) ([]string, error) {
	if days <= 0 {
		days = DefaultMaxAgeDays
	}
	cutoff := m.now().Add(-time.Duration(days) * 24 * time.Hour)

	files, err := m.proxies()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, f := range files {
		if !f.modified.Before(cutoff) {
			continue
		}
		path := filepath.Join(m.dir, f.name)
		if err := os.Remove(path); err != nil {
			m.logger.Warn("cleanup_remove_failed", "path", path, "error", err)
			continue
		}
		removed = append(removed, f.name)
	}
	m.logger.Info("cleanup_complete", "removed", len(removed), "max_age_days", days)
	return removed, nil
}

// Usage totals every regular file in the asset directory.
func (m *Manager) Usage() (*models.StorageUsage, error) {
	usage := &models.StorageUsage{Directory: m.dir}

	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return usage, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", m.dir, err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		usage.Files++
		usage.TotalBytes += info.Size()
	}
	return usage, nil
}

type fileStat struct {
	name     string
	size     int64
	modified time.Time
}

func (m *Manager) proxies() ([]fileStat, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", m.dir, err)
	}

	var out []fileStat
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasPrefix(e.Name(), ProxyPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, fileStat{name: e.Name(), size: info.Size(), modified: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].modified.Equal(out[j].modified) {
			return out[i].modified.After(out[j].modified)
		}
		return out[i].name > out[j].name
	})
	return out, nil
}

func pageCount(logger *slog.Logger, path string) *int {
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("failed to open PDF", "path", path, "error", err)
		return nil
	}
	defer f.Close()

	count, err := api.PageCount(f, nil)
	if err != nil {
		logger.Warn("failed to extract PDF page count", "path", path, "error", err)
		return nil
	}
	return &count
}
