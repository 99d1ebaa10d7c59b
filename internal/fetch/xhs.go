package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/justmiho/XHS-Downloader-Android/internal/config"
	"github.com/justmiho/XHS-Downloader-Android/internal/consts"
	"github.com/justmiho/XHS-Downloader-Android/internal/errs"
	"github.com/justmiho/XHS-Downloader-Android/internal/media"
	"github.com/justmiho/XHS-Downloader-Android/internal/observability"
	"github.com/justmiho/XHS-Downloader-Android/internal/storage"
)

const (
	// initialStateMarker precedes the JSON blob embedded in every note page.
	initialStateMarker = "window.__INITIAL_STATE__"

	// transformBase serves re-encoded images for a bare CDN token.
	transformBase = "https://ci.xiaohongshu.com/"
	// transformQuery asks the image service for a PNG rendition.
	transformQuery = "?imageView2/format/png"

	refererXHS = "https://www.xiaohongshu.com/"
)

// noteIDPattern matches bare 24-hex note identifiers.
var noteIDPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

type xhs struct {
	log     *slog.Logger
	cfg     *config.Config
	storer  storage.Storer
	metrics *observability.Metrics
	client  *http.Client
}

var _ Fetcher = (*xhs)(nil)

// NewXHS creates the native xiaohongshu fetcher. The client follows
// xhslink.com share redirects; an optional proxy and cookie come from config.
func NewXHS(log *slog.Logger, cfg *config.Config, storer storage.Storer, metrics *observability.Metrics) (Fetcher, error) {
	timeout := cfg.HTTP.Timeout
	if timeout <= 0 {
		timeout = consts.DefaultHTTPTimeout
	}

	client := &http.Client{Timeout: timeout}

	if cfg.HTTP.Proxy != "" {
		proxyURL, err := url.Parse(cfg.HTTP.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}

		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	return &xhs{
		log:     log.With(slog.String("package", "fetch"), slog.String("fetcher", consts.FetcherXHS)),
		cfg:     cfg,
		storer:  storer,
		metrics: metrics,
		client:  client,
	}, nil
}

func (x *xhs) ProbeCount(ctx context.Context, rawURL string) (int, error) {
	note, err := x.fetchNote(ctx, rawURL)
	if err != nil {
		return 0, err
	}

	urls := note.mediaURLs()
	if len(urls) == 0 {
		return 0, errs.ErrNoMediaURLs
	}

	return len(urls), nil
}

func (x *xhs) Stream(ctx context.Context, rawURL string, emit EmitFunc) error {
	log := x.log.With(slog.String("func", "Stream"), slog.String("url", rawURL))

	note, err := x.fetchNote(ctx, rawURL)
	if err != nil {
		emit(Event{Kind: EventItemError, Err: err, URL: rawURL})

		return err
	}

	urls := note.mediaURLs()
	if len(urls) == 0 {
		emit(Event{Kind: EventItemError, Err: errs.ErrNoMediaURLs, URL: rawURL})

		return errs.ErrNoMediaURLs
	}

	postID := note.id
	if postID == "" {
		postID = x.PostID(rawURL)
	}

	if postID == "" {
		emit(Event{Kind: EventItemError, Err: errs.ErrPostID, URL: rawURL})

		return errs.ErrPostID
	}

	failures := 0

	for i, mediaURL := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}

		target := x.TransformURL(mediaURL)
		if target == "" {
			target = mediaURL
		}

		filename := fmt.Sprintf("%s_%d.%s", postID, i+1, media.ResolveExtension(target))

		path, err := x.Download(ctx, target, filename)
		if err != nil {
			failures++

			log.WarnContext(ctx, "item transfer failed",
				slog.Any("error", err),
				slog.String("error_type", classifyFetchError(err)),
				slog.String("media_url", mediaURL))
			emit(Event{Kind: EventItemError, Err: err, URL: mediaURL})

			continue
		}

		emit(Event{Kind: EventFileCompleted, Path: path})
	}

	if failures == len(urls) {
		return fmt.Errorf("%w: %d of %d", errs.ErrAllItemsFailed, failures, len(urls))
	}

	log.InfoContext(ctx, "stream finished",
		slog.Int("items", len(urls)),
		slog.Int("failures", failures))

	return nil
}

func (x *xhs) Describe(ctx context.Context, rawURL string) (string, error) {
	note, err := x.fetchNote(ctx, rawURL)
	if err != nil {
		return "", err
	}

	return note.description(), nil
}

func (x *xhs) PostID(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })

	for i, seg := range segments {
		// /explore/<id>, /item/<id> and /discovery/item/<id> all put the
		// id right after an "explore" or "item" segment.
		if (seg == "explore" || seg == "item") && i+1 < len(segments) {
			return segments[i+1]
		}
	}

	for _, seg := range segments {
		if noteIDPattern.MatchString(seg) {
			return seg
		}
	}

	return ""
}

func (x *xhs) TransformURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	if !strings.Contains(host, "xhscdn") || strings.Contains(host, "video") {
		return ""
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return ""
	}

	// Strip style suffixes like "!nd_dft_wlteh_webp_3" off the CDN token.
	token, _, _ := strings.Cut(segments[len(segments)-1], "!")
	if token == "" {
		return ""
	}

	return transformBase + token + transformQuery
}

func (x *xhs) Download(ctx context.Context, rawURL, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}

	x.decorate(req)

	resp, err := x.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: %s for %s", errs.ErrUnexpectedStatus, resp.Status, rawURL)
	}

	path, written, err := x.storer.Save(ctx, filename, resp.Body)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", filename, err)
	}

	x.metrics.RecordDownloadBytes(written)

	return path, nil
}

// decorate applies the headers xiaohongshu expects from a mobile browser.
func (x *xhs) decorate(req *http.Request) {
	req.Header.Set("User-Agent", x.cfg.HTTP.UserAgent)
	req.Header.Set("Referer", refererXHS)

	if x.cfg.HTTP.Cookie != "" {
		req.Header.Set("Cookie", x.cfg.HTTP.Cookie)
	}
}

// noteDetail is the decoded view of one note page.
type noteDetail struct {
	id   string
	data noteData
}

// initialState mirrors the fragment of window.__INITIAL_STATE__ this fetcher
// reads. The blob is real JS, not JSON: literal undefined values appear and
// are normalized before decoding.
type initialState struct {
	Note struct {
		NoteDetailMap map[string]struct {
			Note noteData `json:"note"`
		} `json:"noteDetailMap"`
	} `json:"note"`
}

type noteData struct {
	NoteID    string      `json:"noteId"`
	Type      string      `json:"type"`
	Title     *string     `json:"title"`
	Desc      *string     `json:"desc"`
	ImageList []imageItem `json:"imageList"`
	Video     *videoItem  `json:"video"`
}

type imageItem struct {
	URLDefault *string `json:"urlDefault"`
	InfoList   []struct {
		ImageScene string `json:"imageScene"`
		URL        string `json:"url"`
	} `json:"infoList"`
}

type videoItem struct {
	Media struct {
		Stream struct {
			H264 []streamItem `json:"h264"`
			H265 []streamItem `json:"h265"`
		} `json:"stream"`
	} `json:"media"`
}

type streamItem struct {
	MasterURL  *string  `json:"masterUrl"`
	BackupURLs []string `json:"backupUrls"`
}

func (n *noteDetail) mediaURLs() []string {
	if n.data.Type == "video" && n.data.Video != nil {
		streams := n.data.Video.Media.Stream
		for _, s := range append(streams.H264, streams.H265...) {
			if u := deref(s.MasterURL); u != "" {
				return []string{u}
			}

			if len(s.BackupURLs) > 0 && s.BackupURLs[0] != "" {
				return []string{s.BackupURLs[0]}
			}
		}

		return nil
	}

	urls := make([]string, 0, len(n.data.ImageList))

	for _, item := range n.data.ImageList {
		u := deref(item.URLDefault)
		if u == "" && len(item.InfoList) > 0 {
			u = item.InfoList[0].URL
		}

		if u != "" {
			urls = append(urls, u)
		}
	}

	return urls
}

func (n *noteDetail) description() string {
	title := strings.TrimSpace(deref(n.data.Title))
	desc := strings.TrimSpace(deref(n.data.Desc))

	switch {
	case title != "" && desc != "":
		return title + "\n\n" + desc
	case title != "":
		return title
	default:
		return desc
	}
}

func (x *xhs) fetchNote(ctx context.Context, rawURL string) (*noteDetail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(rawURL), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrPostDetails, err)
	}

	x.decorate(req)

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrPostDetails, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", errs.ErrPostDetails, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", errs.ErrPostDetails, err)
	}

	payload := extractInitialState(doc)
	if payload == "" {
		return nil, fmt.Errorf("%w: initial state script not found", errs.ErrPostDetails)
	}

	var state initialState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("%w: decode initial state: %v", errs.ErrPostDetails, err)
	}

	// Share links redirect to the canonical note URL, so derive the id from
	// where the request actually landed.
	id := x.PostID(resp.Request.URL.String())
	if id == "" {
		id = x.PostID(rawURL)
	}

	if detail, ok := state.Note.NoteDetailMap[id]; ok {
		return &noteDetail{id: id, data: detail.Note}, nil
	}

	for key, detail := range state.Note.NoteDetailMap {
		if detail.Note.Type != "" || len(detail.Note.ImageList) > 0 {
			return &noteDetail{id: key, data: detail.Note}, nil
		}
	}

	return nil, fmt.Errorf("%w: note detail missing", errs.ErrPostDetails)
}

// extractInitialState pulls the JS object assigned to the marker out of the
// first script element that carries it, normalized to valid JSON.
func extractInitialState(doc *goquery.Document) string {
	var payload string

	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()

		idx := strings.Index(text, initialStateMarker)
		if idx < 0 {
			return true
		}

		rest := text[idx+len(initialStateMarker):]
		if eq := strings.Index(rest, "="); eq >= 0 {
			rest = rest[eq+1:]
		}

		payload = strings.TrimSuffix(strings.TrimSpace(rest), ";")

		return false
	})

	return strings.ReplaceAll(payload, "undefined", "null")
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T

		return zero
	}

	return *p
}
