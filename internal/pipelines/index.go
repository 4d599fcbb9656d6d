package pipelines

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"grapplersguide-dl/internal/catalog"
	"grapplersguide-dl/internal/components/assert"
	"grapplersguide-dl/internal/components/telemetry"
	"grapplersguide-dl/internal/crawler"
)

const report_index_write = "index.write"

// IndexMode decides when a course header is written.
type IndexMode int

const (
	// IndexPerCourse writes a header the first time each course is seen.
	IndexPerCourse IndexMode = iota
	// IndexLegacy writes a single header, for the first course, and only
	// while the file is still empty.
	IndexLegacy
)

func ParseIndexMode(s string) (IndexMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "per-course":
		return IndexPerCourse, nil
	case "legacy":
		return IndexLegacy, nil
	}
	return 0, fmt.Errorf("unknown index mode %q, want per-course or legacy", s)
}

func (m IndexMode) String() string {
	if m == IndexLegacy {
		return "legacy"
	}
	return "per-course"
}

// Index writes a markdown listing of every downloaded video.
type Index struct {
	path string
	mode IndexMode
	tel  telemetry.API

	mutex   sync.Mutex
	file    *os.File
	written int64
	seen    map[catalog.Course]struct{}
}

// NewIndex truncates the file at `path`, each run starts a new index.
func NewIndex(path string, mode IndexMode, tel telemetry.API) (*Index, error) {
	assert.NotNil(tel)

	err := os.MkdirAll(filepath.Dir(path), 0777)
	if err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &Index{
		path: path,
		mode: mode,
		tel:  telemetry.NewScopedAPI("pipelines", tel),
		file: f,
		seen: map[catalog.Course]struct{}{},
	}, nil
}

func courseHeader(course catalog.Course) string {
	return fmt.Sprintf("# %s\nExpert: %s\n\n", course.Title, course.Expert.Name)
}

// entryLine renders `- [SS.LL - title](<path>)` with the tags appended when
// the lesson has any.
func entryLine(video catalog.Video, link string) string {
	lesson := video.Lesson
	var b strings.Builder
	fmt.Fprintf(
		&b, "- [%02d.%02d - %s](<%s>)",
		lesson.Section.Position, lesson.Position, lesson.Title, link,
	)
	if len(lesson.Tags) > 0 {
		b.WriteString(" · tags: ")
		b.WriteString(strings.Join(lesson.Tags, ", "))
	}
	b.WriteString("\n")
	return b.String()
}

func (p *Index) link(video catalog.Video) string {
	rel, err := filepath.Rel(filepath.Dir(p.path), video.DownloadPath)
	if err != nil {
		rel = video.DownloadPath
	}
	return filepath.ToSlash(rel)
}

func (p *Index) ProcessItem(ctx context.Context, item any) (any, error) {
	video, ok := item.(catalog.Video)
	if !ok || !video.Downloaded() {
		return item, nil
	}

	var b strings.Builder
	p.mutex.Lock()
	defer p.mutex.Unlock()

	course := video.Course()
	switch p.mode {
	case IndexLegacy:
		if p.written == 0 {
			b.WriteString(courseHeader(course))
		}
	default:
		if _, ok := p.seen[course]; !ok {
			p.seen[course] = struct{}{}
			if p.written > 0 {
				b.WriteString("\n")
			}
			b.WriteString(courseHeader(course))
		}
	}
	b.WriteString(entryLine(video, p.link(video)))

	n, err := p.file.WriteString(b.String())
	p.written += int64(n)
	if err != nil {
		p.tel.ReportBroken(report_index_write, err, p.path)
		return nil, crawler.Fatal(fmt.Errorf("write index: %w", err))
	}
	return video, nil
}

func (p *Index) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.file.Close()
}
