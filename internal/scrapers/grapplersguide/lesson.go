package grapplersguide

import (
	"fmt"
	"net/url"
	"strings"

	"grapplersguide-dl/internal/catalog"
	"grapplersguide-dl/internal/crawler"
	"grapplersguide-dl/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// parseCourse lists the lessons of a course page. Sections and lessons are
// numbered by their place in the document, starting at 1.
func parseCourse(res *crawler.Response, course catalog.Course) ([]catalog.Lesson, error) {
	doc, err := res.Document()
	if err != nil {
		return nil, err
	}

	var lessons []catalog.Lesson
	doc.Find("div.block-container").Each(func(i int, block *goquery.Selection) {
		section := catalog.Section{
			Position: i + 1,
			Title:    htmlutil.NormalizeText(block.Find("h2.block-header > a").First().Text()),
			Course:   course,
		}
		block.Find("h3.node-title > a").Each(func(j int, link *goquery.Selection) {
			href, ok := link.Attr("href")
			if !ok {
				return
			}
			u, err := res.Join(strings.TrimSpace(href))
			if err != nil {
				return
			}
			lessons = append(lessons, catalog.Lesson{
				Position: j + 1,
				Title:    htmlutil.NodeText(link.Get(0)),
				Url:      u.String(),
				Section:  section,
			})
		})
	})
	return lessons, nil
}

func (s *Spider) handleCourseDetail(res *crawler.Response, st courseDetail) (step, error) {
	lessons, err := parseCourse(res, st.Course)
	if err != nil {
		return step{}, err
	}

	var out step
	for _, l := range lessons {
		// already resolved by parseCourse
		u, _ := url.Parse(l.Url)
		out.request(crawler.GETRequest(u, lessonDetail{Lesson: l}))
	}
	s.tel.ReportCount(report_spider_course_detail, int64(len(lessons)))
	return out, nil
}

type lessonPage struct {
	Breadcrumbs  []string
	Tags         catalog.Tags
	DownloadPath string
}

func parseLesson(doc *goquery.Document) lessonPage {
	var page lessonPage

	breadcrumbs := []string{}
	doc.Find("ul.p-breadcrumbs").First().
		Find("li > a span[itemprop=name]").
		Each(func(_ int, span *goquery.Selection) {
			name := htmlutil.NodeText(span.Get(0))
			if name == "" || name == "Home" {
				return
			}
			breadcrumbs = append(breadcrumbs, name)
		})
	page.Breadcrumbs = breadcrumbs

	var tags []string
	doc.Find("dl.tagList dd a.tagItem").Each(func(_ int, a *goquery.Selection) {
		tags = append(tags, a.Text())
	})
	page.Tags = catalog.NewTags(tags...)

	page.DownloadPath = strings.TrimSpace(
		doc.Find("li#lesson-actions a[href*='/download']").First().AttrOr("href", ""),
	)
	return page
}

func (s *Spider) handleLessonDetail(res *crawler.Response, st lessonDetail) (step, error) {
	doc, err := res.Document()
	if err != nil {
		return step{}, err
	}

	page := parseLesson(doc)
	if page.DownloadPath == "" {
		return step{}, ErrNoDownloadLink
	}
	link, err := res.Join(page.DownloadPath)
	if err != nil {
		return step{}, fmt.Errorf("resolve download link: %w", err)
	}

	lesson := st.Lesson.WithDetails(page.Breadcrumbs, page.Tags)
	s.tel.ReportDebug(report_spider_lesson_detail, lesson.Title, lesson.Breadcrumbs, lesson.Tags)

	var out step
	out.request(crawler.GETRequest(link, downloadPage{Lesson: lesson}))
	return out, nil
}
