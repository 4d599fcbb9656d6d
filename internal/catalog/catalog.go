// Package catalog holds the records produced while walking the site, from the
// expert at the root down to a single downloadable video.
//
// Every record is a value: deriving an updated record (a lesson with its details
// resolved, a video with its download path) returns a copy and leaves the
// original untouched.
package catalog

import (
	"cmp"
	"errors"
	"slices"
	"strings"
)

var ErrEmptyExpertName = errors.New("expert name is empty")

type Expert struct {
	Name string
}

func (e Expert) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyExpertName
	}
	return nil
}

type Course struct {
	Title  string
	Expert Expert
}

type Section struct {
	// 1-based, in document order
	Position int
	Title    string
	Course   Course
}

type Lesson struct {
	// 1-based within the section, in document order
	Position int
	Title    string
	Url      string
	Section  Section

	// Breadcrumbs and Tags are nil until the lesson page has been parsed.
	Breadcrumbs []string
	Tags        Tags
}

// Resolved reports whether the lesson page has been parsed.
func (l Lesson) Resolved() bool {
	return l.Breadcrumbs != nil && l.Tags != nil
}

// WithDetails returns a copy of the lesson carrying the breadcrumb trail and
// tags found on its page. Nil inputs are stored as empty, not absent.
func (l Lesson) WithDetails(breadcrumbs []string, tags Tags) Lesson {
	if breadcrumbs == nil {
		breadcrumbs = []string{}
	}
	if tags == nil {
		tags = Tags{}
	}
	l.Breadcrumbs = slices.Clone(breadcrumbs)
	l.Tags = slices.Clone(tags)
	return l
}

// Tags is a set of tag names kept sorted so two sets with the same contents
// compare equal.
type Tags []string

// NewTags trims every name and drops blanks and duplicates.
func NewTags(names ...string) Tags {
	tags := Tags{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		tags = append(tags, n)
	}
	slices.Sort(tags)
	return slices.Compact(tags)
}

func (t Tags) Contains(name string) bool {
	_, found := slices.BinarySearch(t, name)
	return found
}

type Video struct {
	FileName     string
	PublicName   string
	BaseFileName string
	Extension    string
	DownloadName string
	Size         string
	Height       int
	Width        int
	VideoFileId  string
	DownloadUrl  string
	Lesson       Lesson

	// DownloadPath is empty until the file has been written to disk.
	DownloadPath string
}

func (v Video) Downloaded() bool {
	return v.DownloadPath != ""
}

func (v Video) WithDownloadPath(path string) Video {
	v.DownloadPath = path
	return v
}

func (v Video) Course() Course {
	return v.Lesson.Section.Course
}

func (v Video) Expert() Expert {
	return v.Lesson.Section.Course.Expert
}

// Compare orders videos by expert name, course title, section position,
// lesson position and file name.
func Compare(a, b Video) int {
	return cmp.Or(
		cmp.Compare(a.Expert().Name, b.Expert().Name),
		cmp.Compare(a.Course().Title, b.Course().Title),
		cmp.Compare(a.Lesson.Section.Position, b.Lesson.Section.Position),
		cmp.Compare(a.Lesson.Position, b.Lesson.Position),
		cmp.Compare(a.FileName, b.FileName),
	)
}

func SortVideos(videos []Video) {
	slices.SortStableFunc(videos, Compare)
}
