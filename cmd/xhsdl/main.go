// entry point of the desktop helper
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/justmiho/XHS-Downloader-Android/internal/archive"
	"github.com/justmiho/XHS-Downloader-Android/internal/clipboard"
	"github.com/justmiho/XHS-Downloader-Android/internal/config"
	"github.com/justmiho/XHS-Downloader-Android/internal/consts"
	"github.com/justmiho/XHS-Downloader-Android/internal/entity"
	"github.com/justmiho/XHS-Downloader-Android/internal/fetch"
	"github.com/justmiho/XHS-Downloader-Android/internal/observability"
	"github.com/justmiho/XHS-Downloader-Android/internal/session"
	"github.com/justmiho/XHS-Downloader-Android/internal/storage"
	httpserver "github.com/justmiho/XHS-Downloader-Android/pkg/http/server"
	"github.com/justmiho/XHS-Downloader-Android/pkg/logger"
	"github.com/justmiho/XHS-Downloader-Android/pkg/xurl"
)

type arguments struct {
	Input        []string `arg:"positional" help:"note link or pasted share text"`
	Note         bool     `arg:"-n,--note" help:"print the note description and exit"`
	Dir          string   `arg:"-d,--dir" help:"download directory"`
	FallbackFile string   `arg:"--fallback-file" help:"file with one media url per line, ingested when fallback is suggested"`
	Bundle       string   `arg:"-b,--bundle" help:"bundle downloaded media into a .tar.xz at this path"`
	MetricsAddr  string   `arg:"--metrics-addr" help:"expose prometheus metrics on this address"`
	LogLevel     string   `arg:"--log-level" help:"debug, info, warn or error"`
}

func (arguments) Description() string {
	return "xhsdl fetches images and video from xiaohongshu note links"
}

func main() {
	var args arguments
	p := arg.MustParse(&args)

	if len(args.Input) == 0 {
		p.Fail("provide a note link or pasted share text")
	}

	noteURL := xurl.ExtractLink(strings.Join(args.Input, " "))
	if noteURL == "" {
		p.Fail("no http(s) link found in the input")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		slog.Error("config new", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	if args.Dir != "" {
		cfg.Dir.Downloads = args.Dir

		if err := cfg.Dir.SetAbsPaths(); err != nil {
			slog.Error("set absolute paths", slog.Any("error", err))
			stop()
			os.Exit(1)
		}
	}

	if args.MetricsAddr != "" {
		cfg.Metrics.Addr = args.MetricsAddr
	}

	if args.LogLevel != "" {
		cfg.App.LogLevel = args.LogLevel
	}

	log, err := logger.New(&logger.Options{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.LogFormat,
	})
	if err != nil {
		slog.WarnContext(ctx, "logger level invalid; defaulting to info", slog.Any("error", err))
	}

	metrics := observability.New(prometheus.DefaultRegisterer)
	storer := storage.New(log, cfg)

	fetcher, err := fetch.NewXHS(log, cfg, storer, metrics)
	if err != nil {
		log.ErrorContext(ctx, "fetcher init", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	orch := session.New(cfg, log, fetcher, clipboard.NewLogged(log), metrics)
	orch.Start(ctx)

	if args.Note {
		desc, err := orch.NoteDescription(ctx, noteURL)
		if err != nil {
			log.ErrorContext(ctx, "describe note", slog.Any("error", err))
			stop()
			os.Exit(1)
		}

		fmt.Println(desc)

		return
	}

	var metricsSrv *httpserver.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())

		metricsSrv = httpserver.New(mux, httpserver.Options{
			Addr:            cfg.Metrics.Addr,
			ShutdownTimeout: cfg.Metrics.ShutdownTimeout,
		})

		log.InfoContext(ctx, "metrics listening", slog.String("addr", cfg.Metrics.Addr))
	}

	sub, cancelSub := orch.Subscribe()
	defer cancelSub()

	if err := orch.StartSession(noteURL); err != nil {
		log.ErrorContext(ctx, "start session", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	final := consume(ctx, log, orch, sub, args.FallbackFile)

	if args.Bundle != "" && len(final.Media) > 0 {
		paths := make([]string, 0, len(final.Media))
		for _, entry := range final.Media {
			paths = append(paths, entry.Path)
		}

		n, err := archive.Bundle(args.Bundle, paths)
		if err != nil {
			log.ErrorContext(ctx, "bundle media", slog.Any("error", err))
		} else {
			fmt.Printf("bundled %d files into %s\n", n, args.Bundle)
		}
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(); err != nil {
			log.Error(err.Error())
		}
	}

	if final.LastStatus() == consts.StatusDownloadFailed {
		if final.FallbackSuggested {
			log.InfoContext(ctx, "fallback suggested; rerun with --fallback-file to ingest discovered urls")
		}

		stop()
		os.Exit(1)
	}

	fmt.Printf("saved %d files to %s\n", len(final.Media), cfg.Dir.Downloads)
}

// consume prints status lines as they appear and returns the final snapshot.
// When the session settles fallback-suggested and a fallback file was given,
// its urls are ingested once and consumption continues to the next terminal
// state.
func consume(ctx context.Context, log *slog.Logger, orch session.Orchestrator, sub <-chan entity.Snapshot, fallbackFile string) entity.Snapshot {
	var (
		last     entity.Snapshot
		printed  int
		started  bool
		ingested bool
	)

	for {
		select {
		case <-ctx.Done():
			log.InfoContext(ctx, "interrupted", slog.Any("error", ctx.Err()))

			return last
		case snap := <-sub:
			last = snap

			if snap.URL != "" {
				started = true
			}

			if printed > len(snap.Status) {
				printed = len(snap.Status)
			}

			for _, line := range snap.Status[printed:] {
				fmt.Println(line)
			}

			printed = len(snap.Status)

			// terminal means a settled session with a verdict line past
			// the initial processing entry
			if !started || snap.InProgress || len(snap.Status) < 2 {
				continue
			}

			if snap.FallbackSuggested && fallbackFile != "" && !ingested {
				batch, err := readFallbackBatch(fallbackFile)
				if err != nil {
					log.ErrorContext(ctx, "read fallback file", slog.Any("error", err))

					return last
				}

				if err := orch.IngestFallback(ctx, batch); err != nil {
					log.ErrorContext(ctx, "ingest fallback", slog.Any("error", err))

					return last
				}

				ingested = true

				continue
			}

			return last
		}
	}
}

// readFallbackBatch parses a fallback file: one url per line, blank lines
// and #-comments skipped.
func readFallbackBatch(path string) (entity.FallbackBatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.FallbackBatch{}, fmt.Errorf("read %s: %w", path, err)
	}

	var batch entity.FallbackBatch

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		batch.URLs = append(batch.URLs, line)
	}

	return batch, nil
}
