package archive_test

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ulikunitz/xz"

	"github.com/justmiho/XHS-Downloader-Android/internal/archive"
	"github.com/justmiho/XHS-Downloader-Android/internal/errs"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}

	return path
}

func TestBundleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeTempFile(t, dir, "abc_1.jpg", "image-one"),
		writeTempFile(t, dir, "abc_2.jpg", "image-two"),
		writeTempFile(t, dir, "abc_3.mp4", "video-bytes"),
	}

	dest := filepath.Join(dir, "session.tar.xz")

	count, err := archive.Bundle(dest, paths)
	if err != nil {
		t.Fatalf("Bundle() failed: %v", err)
	}

	if count != 3 {
		t.Errorf("Bundle() count = %d, want 3", count)
	}

	file, err := os.Open(dest)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer file.Close()

	xzr, err := xz.NewReader(file)
	if err != nil {
		t.Fatalf("xz reader: %v", err)
	}

	got := make(map[string]string)
	tr := tar.NewReader(xzr)

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			t.Fatalf("tar next: %v", err)
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("read entry %s: %v", header.Name, err)
		}

		got[header.Name] = string(data)
	}

	want := map[string]string{
		"abc_1.jpg": "image-one",
		"abc_2.jpg": "image-two",
		"abc_3.mp4": "video-bytes",
	}

	for name, content := range want {
		if got[name] != content {
			t.Errorf("entry %s = %q, want %q", name, got[name], content)
		}
	}

	if len(got) != len(want) {
		t.Errorf("archive has %d entries, want %d", len(got), len(want))
	}
}

func TestBundleEmpty(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "empty.tar.xz")

	if _, err := archive.Bundle(dest, nil); !errors.Is(err, errs.ErrNothingToBundle) {
		t.Errorf("Bundle() error = %v, want ErrNothingToBundle", err)
	}

	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("Bundle() left a file behind for an empty batch")
	}
}

func TestBundleMissingFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "broken.tar.xz")

	_, err := archive.Bundle(dest, []string{filepath.Join(dir, "absent.jpg")})
	if err == nil {
		t.Fatal("Bundle() succeeded, want error for missing file")
	}

	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Errorf("Bundle() left a partial archive behind")
	}
}
