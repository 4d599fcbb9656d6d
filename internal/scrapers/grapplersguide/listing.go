package grapplersguide

import (
	"fmt"
	"strings"

	"grapplersguide-dl/internal/catalog"
	"grapplersguide-dl/internal/crawler"
	"grapplersguide-dl/pkg/htmlutil"
	"grapplersguide-dl/pkg/textutil"

	"github.com/PuerkitoBio/goquery"
)

type expertOption struct {
	Expert catalog.Expert
	Path   string
}

func parseExperts(doc *goquery.Document) []expertOption {
	var options []expertOption
	doc.Find("select#expert option").Each(func(_ int, option *goquery.Selection) {
		value := strings.TrimSpace(option.AttrOr("value", ""))
		if value == "" {
			return
		}
		expert := catalog.Expert{Name: htmlutil.NodeText(option.Get(0))}
		if expert.Validate() != nil {
			return
		}
		options = append(options, expertOption{Expert: expert, Path: value})
	})
	return options
}

func (s *Spider) handleExpertListing(res *crawler.Response) (step, error) {
	doc, err := res.Document()
	if err != nil {
		return step{}, err
	}
	// a successful login never renders the login form again
	if doc.Find("input[name=password]").Length() > 0 {
		return step{}, crawler.Fatal(ErrLoginFailed)
	}

	options := parseExperts(doc)

	var out step
	var names []string
	for _, opt := range options {
		names = append(names, opt.Expert.Name)
		if !s.expertPattern.MatchString(opt.Expert.Name) {
			continue
		}
		if s.expertsOnly {
			out.save(opt.Expert)
			continue
		}
		link, err := res.Join(opt.Path)
		if err != nil {
			s.tel.ReportWarning(
				report_spider_expert_listing,
				fmt.Errorf("resolve course listing of %q: %w", opt.Expert.Name, err),
			)
			continue
		}
		out.request(crawler.GETRequest(link, courseListing{Expert: opt.Expert}))
	}

	if len(options) > 0 && len(out.requests) == 0 && len(out.items) == 0 {
		s.tel.ReportWarning(
			report_spider_expert_listing,
			fmt.Errorf("no expert matches %q", s.rawExpertPattern),
			"did you mean",
			textutil.Suggest(s.rawExpertPattern, names, 3, 0.6),
		)
	}
	s.tel.ReportCount(report_spider_expert_listing, int64(len(options)))

	return out, nil
}

func (s *Spider) handleCourseListing(res *crawler.Response, st courseListing) (step, error) {
	doc, err := res.Document()
	if err != nil {
		return step{}, err
	}

	anchors := htmlutil.GetAnchors(res.Url, doc.Find("div.node-main div.node-title > a"))

	var out step
	for _, a := range anchors {
		if a.Name == "" || !s.coursePattern.MatchString(a.Name) {
			continue
		}
		course := catalog.Course{Title: a.Name, Expert: st.Expert}
		out.request(crawler.GETRequest(a.Url, courseDetail{Course: course}))
	}
	s.tel.ReportCount(report_spider_course_listing, int64(len(out.requests)))

	return out, nil
}
