// Package storage persists fetched media files under the downloads directory.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/justmiho/XHS-Downloader-Android/internal/config"
	"github.com/justmiho/XHS-Downloader-Android/internal/errs"
)

// Storer defines the interface for media file storage.
type Storer interface {
	// Save streams r into a file under the downloads directory and returns
	// the absolute path actually used plus the number of bytes written.
	// Name collisions get a numeric suffix instead of overwriting.
	Save(ctx context.Context, filename string, r io.Reader) (string, int64, error)

	// Dir returns the absolute downloads directory.
	Dir() string
}

type storage struct {
	log *slog.Logger
	dir string
}

// New creates a file-backed store rooted at the configured downloads dir.
func New(log *slog.Logger, cfg *config.Config) Storer {
	return &storage{
		log: log.With(slog.String("package", "storage")),
		dir: cfg.Dir.Downloads,
	}
}

func (stg *storage) Dir() string {
	return stg.dir
}

func (stg *storage) Save(ctx context.Context, filename string, r io.Reader) (string, int64, error) {
	filename = Sanitize(filename)
	if filename == "" {
		return "", 0, errs.ErrEmptyFilename
	}

	if err := os.MkdirAll(stg.dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("mkdir downloads: %w", err)
	}

	file, path, err := stg.create(filename)
	if err != nil {
		return "", 0, err
	}

	written, err := io.Copy(file, r)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		os.Remove(path)

		return "", 0, fmt.Errorf("write %s: %w", path, err)
	}

	stg.log.DebugContext(ctx, "file stored",
		slog.String("path", path),
		slog.Int64("bytes", written))

	return path, written, nil
}

// create opens a fresh file for filename, suffixing " (n)" before the
// extension until an unused name is found. O_EXCL keeps concurrent savers
// from racing for the same path.
func (stg *storage) create(filename string) (*os.File, string, error) {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	for attempt := 0; ; attempt++ {
		name := filename
		if attempt > 0 {
			name = fmt.Sprintf("%s (%d)%s", stem, attempt, ext)
		}

		path := filepath.Join(stg.dir, name)

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return file, path, nil
		}

		if !os.IsExist(err) {
			return nil, "", fmt.Errorf("create %s: %w", path, err)
		}
	}
}

// maxFilenameLen caps names at the common filesystem limit.
const maxFilenameLen = 255

// Sanitize strips path separators and characters that are forbidden on at
// least one mainstream filesystem, then trims the result to a storable
// length. It returns "" when nothing usable remains.
func Sanitize(filename string) string {
	var b strings.Builder

	for _, r := range filename {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			// skip
		case r < 0x20:
			// skip control characters
		default:
			b.WriteRune(r)
		}
	}

	name := strings.TrimSpace(b.String())
	if name == "." || name == ".." {
		return ""
	}

	for len(name) > maxFilenameLen {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}

	return name
}
