package pipelines

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"grapplersguide-dl/internal/catalog"
	"grapplersguide-dl/internal/components/assert"
	"grapplersguide-dl/internal/components/chrono"
	"grapplersguide-dl/internal/components/telemetry"
	"grapplersguide-dl/internal/crawler"
	"grapplersguide-dl/internal/manifest"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_video_files_download = "video-files.download"
	report_video_files_skip     = "video-files.skip"
	report_video_files_manifest = "video-files.manifest"
)

var meter = otel.Meter("grapplersguide-dl/pipelines")

type VideoFilesOptions struct {
	// Dir is the output directory every video path is relative to.
	Dir    string
	Layout catalog.Layout
	// Retries is how many times a failed download is attempted again.
	Retries int
	// RetryWait is the initial backoff between attempts.
	RetryWait time.Duration
	UserAgent string
	// Manifest is optional, without it every video is downloaded.
	Manifest *manifest.Manifest
	// Clock stamps manifest entries, defaults to the system clock.
	Clock chrono.API
}

// VideoFiles downloads every video to its place in the output directory.
type VideoFiles struct {
	opts VideoFilesOptions
	http *resty.Client
	tel  telemetry.API

	bytesCounter  metric.Int64Counter
	videosCounter metric.Int64Counter
	// running totals per outcome
	totals map[string]*atomic.Int64
}

func NewVideoFiles(opts VideoFilesOptions, tel telemetry.API) (*VideoFiles, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Dir)
	assert.NonNegative("retries", opts.Retries)
	tel = telemetry.NewScopedAPI("pipelines", tel)

	if opts.UserAgent == "" {
		opts.UserAgent = crawler.DefaultUserAgent
	}
	if opts.Clock == nil {
		opts.Clock = chrono.StandardImpl{}
	}
	if opts.RetryWait == 0 {
		opts.RetryWait = time.Second
	}

	client := resty.New()
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetDoNotParseResponse(true)
	client.SetRetryCount(opts.Retries)
	client.SetRetryWaitTime(opts.RetryWait)
	client.SetRetryMaxWaitTime(time.Second * 30)
	client.AddRetryCondition(crawler.RetryOnServerError)
	client.AddRetryHook(func(res *resty.Response, _ error) {
		// bodies of retried attempts are never read
		if res != nil && res.RawBody() != nil {
			res.RawBody().Close()
		}
	})
	telemetry.InstrumentResty(client, tel, nil)

	bytesCounter, err := meter.Int64Counter(
		"download.bytes",
		metric.WithUnit("By"),
		metric.WithDescription("bytes of video written to disk"),
	)
	if err != nil {
		return nil, err
	}
	videosCounter, err := meter.Int64Counter(
		"download.videos",
		metric.WithDescription("videos handled, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &VideoFiles{
		opts:          opts,
		http:          client,
		tel:           tel,
		bytesCounter:  bytesCounter,
		videosCounter: videosCounter,
		totals: map[string]*atomic.Int64{
			"downloaded": {},
			"skipped":    {},
			"dropped":    {},
		},
	}, nil
}

func (p *VideoFiles) count(ctx context.Context, outcome string) {
	p.videosCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	p.tel.ReportCount("video-files."+outcome, p.totals[outcome].Add(1))
}

func (p *VideoFiles) ProcessItem(ctx context.Context, item any) (any, error) {
	video, ok := item.(catalog.Video)
	if !ok {
		return item, nil
	}

	dest := filepath.Join(p.opts.Dir, video.RelativePath(p.opts.Layout))

	if path, ok := p.alreadyDownloaded(ctx, video); ok {
		p.tel.ReportDebug(report_video_files_skip, video.VideoFileId, path)
		p.count(ctx, "skipped")
		return video.WithDownloadPath(path), nil
	}

	if video.DownloadUrl == "" {
		p.count(ctx, "dropped")
		return nil, fmt.Errorf("%w: video %s has no download url", ErrDropItem, video.VideoFileId)
	}

	sum, err := p.download(ctx, video.DownloadUrl, dest)
	if err != nil {
		if !crawler.IsFatal(err) {
			p.count(ctx, "dropped")
		}
		return nil, err
	}

	video = video.WithDownloadPath(dest)
	if p.opts.Manifest != nil {
		err = p.opts.Manifest.Put(ctx, manifest.EntryFromVideo(video, sum, p.opts.Clock.Now()))
		if err != nil {
			return nil, crawler.Fatal(err)
		}
	}
	p.count(ctx, "downloaded")

	return video, nil
}

func (p *VideoFiles) alreadyDownloaded(ctx context.Context, video catalog.Video) (string, bool) {
	if p.opts.Manifest == nil || video.VideoFileId == "" {
		return "", false
	}
	entry, found, err := p.opts.Manifest.Get(ctx, video.VideoFileId)
	if err != nil {
		p.tel.ReportWarning(report_video_files_manifest, err)
		return "", false
	}
	if !found {
		return "", false
	}
	_, err = os.Stat(entry.Path)
	if err != nil {
		return "", false
	}
	return entry.Path, true
}

// writeTracker remembers a failed write so a failing disk can be told apart
// from a failing connection.
type writeTracker struct {
	w   io.Writer
	err error
}

func (t *writeTracker) Write(b []byte) (int, error) {
	n, err := t.w.Write(b)
	if err != nil {
		t.err = err
	}
	return n, err
}

// download streams the file to `<dest>.part` and renames it into place once
// complete. It returns the hex sha256 of the file.
func (p *VideoFiles) download(ctx context.Context, link, dest string) (string, error) {
	err := os.MkdirAll(filepath.Dir(dest), 0777)
	if err != nil {
		return "", crawler.Fatal(fmt.Errorf("create video directory: %w", err))
	}

	res, err := p.http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		p.tel.ReportWarning(report_video_files_download, fmt.Errorf("fetch: %w", err), link)
		return "", fmt.Errorf("%w: fetch %s: %w", ErrDropItem, link, err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.IsError() {
		statusErr := &crawler.StatusError{Method: "GET", Url: link, Status: res.StatusCode()}
		p.tel.ReportWarning(report_video_files_download, statusErr)
		return "", fmt.Errorf("%w: %w", ErrDropItem, statusErr)
	}

	part := dest + ".part"
	f, err := os.Create(part)
	if err != nil {
		return "", crawler.Fatal(fmt.Errorf("create video file: %w", err))
	}

	hash := sha256.New()
	out := &writeTracker{w: io.MultiWriter(f, hash)}
	written, copyErr := io.Copy(out, body)
	closeErr := f.Close()
	p.bytesCounter.Add(ctx, written)

	if copyErr != nil || closeErr != nil {
		os.Remove(part)
		switch {
		case out.err != nil:
			return "", crawler.Fatal(fmt.Errorf("write video file: %w", out.err))
		case closeErr != nil:
			return "", crawler.Fatal(fmt.Errorf("write video file: %w", closeErr))
		case errors.Is(copyErr, context.Canceled):
			return "", copyErr
		}
		p.tel.ReportWarning(report_video_files_download, fmt.Errorf("read body: %w", copyErr), link)
		return "", fmt.Errorf("%w: read %s: %w", ErrDropItem, link, copyErr)
	}

	err = os.Rename(part, dest)
	if err != nil {
		os.Remove(part)
		return "", crawler.Fatal(fmt.Errorf("move video into place: %w", err))
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
