// Package archive bundles a session's downloaded files into a tar.xz file
// for sharing or moving off-device in one piece.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/justmiho/XHS-Downloader-Android/internal/errs"
)

// Bundle writes the named files into a tar.xz archive at dest. Entries keep
// their base names only; duplicate base names keep the first occurrence.
// Returns the number of files written.
func Bundle(dest string, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, errs.ErrNothingToBundle
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dest, err)
	}

	count, err := writeAll(out, paths)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		os.Remove(dest)

		return 0, err
	}

	return count, nil
}

func writeAll(out io.Writer, paths []string) (int, error) {
	xzw, err := xz.NewWriter(out)
	if err != nil {
		return 0, fmt.Errorf("xz writer: %w", err)
	}

	tw := tar.NewWriter(xzw)
	seen := make(map[string]struct{}, len(paths))
	count := 0

	for _, path := range paths {
		name := filepath.Base(path)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		if err := writeFile(tw, path, name); err != nil {
			return count, err
		}
		count++
	}

	if err := tw.Close(); err != nil {
		return count, fmt.Errorf("close tar: %w", err)
	}

	if err := xzw.Close(); err != nil {
		return count, fmt.Errorf("close xz: %w", err)
	}

	return count, nil
}

func writeFile(tw *tar.Writer, path, name string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("header %s: %w", path, err)
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}

	if _, err := io.Copy(tw, file); err != nil {
		return fmt.Errorf("copy %s: %w", path, err)
	}

	return nil
}
