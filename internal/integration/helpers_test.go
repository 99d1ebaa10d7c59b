//go:build integration
// +build integration

package integration_test

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/justmiho/XHS-Downloader-Android/internal/clipboard"
	"github.com/justmiho/XHS-Downloader-Android/internal/config"
	"github.com/justmiho/XHS-Downloader-Android/internal/entity"
	"github.com/justmiho/XHS-Downloader-Android/internal/fetch"
	"github.com/justmiho/XHS-Downloader-Android/internal/observability"
	"github.com/justmiho/XHS-Downloader-Android/internal/session"
	"github.com/justmiho/XHS-Downloader-Android/internal/storage"
)

const noteID = "65f1a2b3000000001203b7c9"

type sessionFixture struct {
	cfg    *config.Config
	orch   session.Orchestrator
	clip   *clipboard.Memory
	server *httptest.Server
}

// newSessionFixture wires the full stack against a local note server: real
// fetcher, real storage in a temp dir, real orchestrator. The pages map
// routes note paths to HTML bodies; every path under /media/ serves its own
// name as body.
func newSessionFixture(t *testing.T, pages map[string]string) *sessionFixture {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if body, ok := pages[r.URL.Path]; ok {
			fmt.Fprint(w, body)

			return
		}

		if strings.HasPrefix(r.URL.Path, "/media/") {
			fmt.Fprintf(w, "bytes of %s", r.URL.Path)

			return
		}

		http.NotFound(w, r)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config new: %v", err)
	}

	cfg.Dir.Downloads = t.TempDir()
	cfg.Session.Timeout = 30 * time.Second
	cfg.Session.EventBuffer = 32
	cfg.Session.FallbackWorkers = 2
	cfg.HTTP.Timeout = 5 * time.Second

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.New(nil)
	storer := storage.New(log, cfg)

	fetcher, err := fetch.NewXHS(log, cfg, storer, metrics)
	if err != nil {
		t.Fatalf("fetcher init: %v", err)
	}

	clip := &clipboard.Memory{}
	orch := session.New(cfg, log, fetcher, clip, metrics)
	orch.Start(t.Context())

	return &sessionFixture{
		cfg:    cfg,
		orch:   orch,
		clip:   clip,
		server: server,
	}
}

// notePage renders a minimal note document with the given media URLs
// embedded in the initial state blob.
func notePage(id string, imageURLs []string) string {
	images := make([]string, 0, len(imageURLs))
	for _, u := range imageURLs {
		images = append(images, fmt.Sprintf(`{"urlDefault":%q,"infoList":[]}`, u))
	}

	state := fmt.Sprintf(
		`{"note":{"noteDetailMap":{%q:{"note":{"noteId":%q,"type":"normal","title":"测试笔记","desc":"一段描述","imageList":[%s]}}}}}`,
		id, id, strings.Join(images, ","))

	return fmt.Sprintf(
		`<html><head><title>note</title></head><body><div id="app"></div><script>window.__INITIAL_STATE__=%s;</script></body></html>`,
		state)
}

// awaitSettled drains the subscription until the session reaches a verdict.
func awaitSettled(t *testing.T, sub <-chan entity.Snapshot) entity.Snapshot {
	t.Helper()

	deadline := time.After(15 * time.Second)

	for {
		select {
		case <-deadline:
			t.Fatalf("session did not settle in time")

			return entity.Snapshot{}
		case snap := <-sub:
			if snap.URL != "" && !snap.InProgress && len(snap.Status) > 1 {
				return snap
			}
		}
	}
}
