// Package manifest records every video that has been written to disk so a
// later run can skip it.
package manifest

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"grapplersguide-dl/internal/catalog"
)

//go:embed schema.sql
var Schema string

type Entry struct {
	VideoFileId     string
	Expert          string
	Course          string
	SectionPosition int
	SectionTitle    string
	LessonPosition  int
	LessonTitle     string
	PublicName      string
	Height          int
	Width           int
	Size            string
	Path            string
	Sha256          string
	DownloadedAt    time.Time
}

// EntryFromVideo describes a video that has been written to v.DownloadPath.
func EntryFromVideo(v catalog.Video, sha256 string, downloadedAt time.Time) Entry {
	return Entry{
		VideoFileId:     v.VideoFileId,
		Expert:          v.Expert().Name,
		Course:          v.Course().Title,
		SectionPosition: v.Lesson.Section.Position,
		SectionTitle:    v.Lesson.Section.Title,
		LessonPosition:  v.Lesson.Position,
		LessonTitle:     v.Lesson.Title,
		PublicName:      v.PublicName,
		Height:          v.Height,
		Width:           v.Width,
		Size:            v.Size,
		Path:            v.DownloadPath,
		Sha256:          sha256,
		DownloadedAt:    downloadedAt,
	}
}

type Manifest struct {
	db *sql.DB
}

func Open(config Config) (*Manifest, error) {
	db, err := config.OpenDB()
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	_, err = db.Exec(Schema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create manifest schema: %w", err)
	}
	return &Manifest{db: db}, nil
}

func (m *Manifest) Close() error {
	return m.db.Close()
}

const columns = `video_file_id, expert, course, section_position, section_title,
lesson_position, lesson_title, public_name, height, width, size, path, sha256, downloaded_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var downloadedAt int64
	err := row.Scan(
		&e.VideoFileId, &e.Expert, &e.Course,
		&e.SectionPosition, &e.SectionTitle,
		&e.LessonPosition, &e.LessonTitle,
		&e.PublicName, &e.Height, &e.Width, &e.Size,
		&e.Path, &e.Sha256, &downloadedAt,
	)
	if err != nil {
		return Entry{}, err
	}
	e.DownloadedAt = time.Unix(downloadedAt, 0)
	return e, nil
}

// Get returns the entry for a video file, found is false if there is none.
func (m *Manifest) Get(ctx context.Context, videoFileId string) (entry Entry, found bool, err error) {
	row := m.db.QueryRowContext(
		ctx,
		"select "+columns+" from video where video_file_id = ?",
		videoFileId,
	)
	entry, err = scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get manifest entry %s: %w", videoFileId, err)
	}
	return entry, true, nil
}

// Put inserts the entry or replaces the one with the same video file id.
func (m *Manifest) Put(ctx context.Context, e Entry) error {
	_, err := m.db.ExecContext(
		ctx,
		`insert into video (`+columns+`)
values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict (video_file_id) do update set
	expert = excluded.expert,
	course = excluded.course,
	section_position = excluded.section_position,
	section_title = excluded.section_title,
	lesson_position = excluded.lesson_position,
	lesson_title = excluded.lesson_title,
	public_name = excluded.public_name,
	height = excluded.height,
	width = excluded.width,
	size = excluded.size,
	path = excluded.path,
	sha256 = excluded.sha256,
	downloaded_at = excluded.downloaded_at`,
		e.VideoFileId, e.Expert, e.Course,
		e.SectionPosition, e.SectionTitle,
		e.LessonPosition, e.LessonTitle,
		e.PublicName, e.Height, e.Width, e.Size,
		e.Path, e.Sha256, e.DownloadedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("put manifest entry %s: %w", e.VideoFileId, err)
	}
	return nil
}

// List returns every entry ordered by expert, course, section and lesson.
func (m *Manifest) List(ctx context.Context) ([]Entry, error) {
	rows, err := m.db.QueryContext(
		ctx,
		"select "+columns+` from video
order by expert, course, section_position, lesson_position, video_file_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list manifest: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list manifest: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
