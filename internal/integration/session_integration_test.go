//go:build integration
// +build integration

package integration_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/justmiho/XHS-Downloader-Android/internal/archive"
	"github.com/justmiho/XHS-Downloader-Android/internal/consts"
	"github.com/justmiho/XHS-Downloader-Android/internal/entity"
)

func TestSessionEndToEnd(t *testing.T) {
	pages := map[string]string{}
	fx := newSessionFixture(t, pages)

	imageURLs := []string{
		fx.server.URL + "/media/one",
		fx.server.URL + "/media/two",
	}
	pages["/explore/"+noteID] = notePage(noteID, imageURLs)

	noteURL := fx.server.URL + "/explore/" + noteID

	desc, err := fx.orch.NoteDescription(t.Context(), noteURL)
	if err != nil {
		t.Fatalf("describe note: %v", err)
	}

	if want := "测试笔记\n\n一段描述"; desc != want {
		t.Errorf("expected description %q, got: %q", want, desc)
	}

	sub, cancelSub := fx.orch.Subscribe()
	defer cancelSub()

	if err := fx.orch.StartSession(noteURL); err != nil {
		t.Fatalf("start session: %v", err)
	}

	snap := awaitSettled(t, sub)

	if got := snap.LastStatus(); got != consts.StatusAllComplete {
		t.Errorf("expected %q, got: %q", consts.StatusAllComplete, got)
	}

	if len(snap.Media) != 2 {
		t.Fatalf("expected 2 media entries, got: %v", snap.Media)
	}

	if snap.ProgressLabel != "2/2" {
		t.Errorf("expected 2/2 progress, got: %s", snap.ProgressLabel)
	}

	for i, entry := range snap.Media {
		if !strings.HasPrefix(entry.Path, fx.cfg.Dir.Downloads) {
			t.Errorf("expected %s under %s", entry.Path, fx.cfg.Dir.Downloads)
		}

		wantName := fmt.Sprintf("%s_%d.jpg", noteID, i+1)
		if got := filepath.Base(entry.Path); got != wantName {
			t.Errorf("expected filename %q, got: %q", wantName, got)
		}

		body, err := os.ReadFile(entry.Path)
		if err != nil {
			t.Fatalf("read stored file: %v", err)
		}

		if want := "bytes of /media/"; !strings.HasPrefix(string(body), want) {
			t.Errorf("expected stored body prefix %q, got: %q", want, body)
		}
	}

	// bundle the session output and make sure something real landed
	dest := filepath.Join(t.TempDir(), noteID+".tar.xz")
	paths := []string{snap.Media[0].Path, snap.Media[1].Path}

	n, err := archive.Bundle(dest, paths)
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}

	if n != 2 {
		t.Errorf("expected 2 bundled files, got: %d", n)
	}

	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat bundle: %v", err)
	}

	if info.Size() == 0 {
		t.Errorf("expected non-empty bundle")
	}
}

func TestSessionFallbackEndToEnd(t *testing.T) {
	pages := map[string]string{}
	fx := newSessionFixture(t, pages)

	// a note page with no media at all forces the fallback suggestion
	pages["/explore/"+noteID] = notePage(noteID, nil)

	noteURL := fx.server.URL + "/explore/" + noteID

	sub, cancelSub := fx.orch.Subscribe()
	defer cancelSub()

	if err := fx.orch.StartSession(noteURL); err != nil {
		t.Fatalf("start session: %v", err)
	}

	snap := awaitSettled(t, sub)

	if got := snap.LastStatus(); got != consts.StatusDownloadFailed {
		t.Errorf("expected %q, got: %q", consts.StatusDownloadFailed, got)
	}

	if !snap.FallbackSuggested {
		t.Fatalf("expected fallback suggested, status: %v", snap.Status)
	}

	batch := entity.FallbackBatch{
		URLs: []string{
			fx.server.URL + "/media/fb_one.png",
			fx.server.URL + "/media/fb_two",
		},
		Content: "手动找到的链接",
	}

	if err := fx.orch.IngestFallback(t.Context(), batch); err != nil {
		t.Fatalf("ingest fallback: %v", err)
	}

	snap = awaitSettled(t, sub)

	if got := snap.LastStatus(); got != consts.StatusFallbackComplete {
		t.Errorf("expected %q, got: %q", consts.StatusFallbackComplete, got)
	}

	if snap.FallbackSuggested {
		t.Errorf("expected fallback flag cleared")
	}

	if len(snap.Media) != 2 {
		t.Fatalf("expected 2 media entries, got: %v", snap.Media)
	}

	wantNames := map[string]bool{
		noteID + "_1.png": false,
		noteID + "_2.jpg": false,
	}

	for _, entry := range snap.Media {
		name := filepath.Base(entry.Path)
		if _, ok := wantNames[name]; !ok {
			t.Errorf("unexpected filename %q", name)

			continue
		}

		wantNames[name] = true

		if _, err := os.Stat(entry.Path); err != nil {
			t.Errorf("stat stored file: %v", err)
		}
	}

	for name, seen := range wantNames {
		if !seen {
			t.Errorf("expected file %q in media list", name)
		}
	}

	if texts := fx.clip.Texts(); len(texts) != 1 || texts[0] != batch.Content {
		t.Errorf("expected note text on the clipboard, got: %v", texts)
	}
}
