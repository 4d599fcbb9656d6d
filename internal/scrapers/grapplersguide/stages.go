package grapplersguide

import (
	"fmt"

	"grapplersguide-dl/internal/catalog"
	"grapplersguide-dl/internal/crawler"
)

// stage is the context a request carries from the page that issued it. There
// is one variant per kind of page, HandleResponse dispatches on it.
type stage interface {
	stageName() string
}

type loginPage struct{}

type expertListing struct{}

type courseListing struct {
	Expert catalog.Expert
}

type courseDetail struct {
	Course catalog.Course
}

type lessonDetail struct {
	Lesson catalog.Lesson
}

type downloadPage struct {
	Lesson catalog.Lesson
}

type downloadData struct {
	Lesson catalog.Lesson
}

func (loginPage) stageName() string     { return "login" }
func (expertListing) stageName() string { return "expert-listing" }
func (courseListing) stageName() string { return "course-listing" }
func (courseDetail) stageName() string  { return "course-detail" }
func (lessonDetail) stageName() string  { return "lesson-detail" }
func (downloadPage) stageName() string  { return "download-page" }
func (downloadData) stageName() string  { return "download-data" }

func (s courseListing) String() string {
	return fmt.Sprintf("expert=%q", s.Expert.Name)
}

func (s courseDetail) String() string {
	return fmt.Sprintf("expert=%q course=%q", s.Course.Expert.Name, s.Course.Title)
}

func describeLesson(l catalog.Lesson) string {
	return fmt.Sprintf(
		"expert=%q course=%q section=%d %q lesson=%d %q",
		l.Section.Course.Expert.Name,
		l.Section.Course.Title,
		l.Section.Position, l.Section.Title,
		l.Position, l.Title,
	)
}

func (s lessonDetail) String() string { return describeLesson(s.Lesson) }
func (s downloadPage) String() string { return describeLesson(s.Lesson) }
func (s downloadData) String() string { return describeLesson(s.Lesson) }

// step is what handling one page produced.
type step struct {
	requests []*crawler.Request
	items    []any
}

func (s *step) request(req *crawler.Request) {
	s.requests = append(s.requests, req)
}

func (s *step) save(item any) {
	s.items = append(s.items, item)
}
