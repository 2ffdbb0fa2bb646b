package service

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/quarkcity/meal-ledger/internal/extraction"
)

// Source supplies the receipt images for one month's run.
type Source interface {
	// Images returns every receipt image for the month folder name,
	// e.g. "October 2025"
	Images(ctx context.Context, monthFolder string) ([]extraction.SourceImage, error)
}

// LocalSource implements Source over an already-downloaded directory
// tree laid out as <base>/<employee>/<month>/<file>.
type LocalSource struct {
	basePath string
}

// NewLocalSource creates a LocalSource rooted at basePath.
func NewLocalSource(basePath string) (*LocalSource, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("opening image directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("image path %s is not a directory", basePath)
	}
	return &LocalSource{basePath: basePath}, nil
}

// Images walks the tree and returns the files under each employee's
// month folder. The month segment is matched case-insensitively, and
// returned paths use the images/<employee>/<month>/<file> convention.
func (l *LocalSource) Images(ctx context.Context, monthFolder string) ([]extraction.SourceImage, error) {
	var images []extraction.SourceImage

	err := filepath.WalkDir(l.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}

		segments := strings.Split(filepath.ToSlash(rel), "/")
		if len(segments) < 3 || !strings.EqualFold(segments[1], monthFolder) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rel, err)
		}

		images = append(images, extraction.SourceImage{
			Path:        "images/" + filepath.ToSlash(rel),
			Data:        data,
			ContentType: contentTypeForFile(path),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking image directory: %w", err)
	}

	return images, nil
}

// EmployeeNames returns the top-level employee folder names.
func (l *LocalSource) EmployeeNames(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("listing employee folders: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// contentTypeForFile maps a filename extension to the receipt MIME
// types the decoder understands.
func contentTypeForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
