// Package grapplersguide walks a grapplersguide-platform site from the login
// page down to the download data of every lesson and emits one catalog.Video
// per lesson.
package grapplersguide

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"grapplersguide-dl/internal/components/assert"
	"grapplersguide-dl/internal/components/telemetry"
	"grapplersguide-dl/internal/crawler"
	"grapplersguide-dl/pkg/textutil"
)

const (
	report_spider_expert_listing = "spider.expert-listing"
	report_spider_course_listing = "spider.course-listing"
	report_spider_course_detail  = "spider.course-detail"
	report_spider_lesson_detail  = "spider.lesson-detail"
)

const (
	DefaultBaseUrl   = "https://grapplersguide.com"
	DefaultLoginPath = "/second-portal/login"
)

// AllowedDomains are the sites running the platform, plus the video host.
var AllowedDomains = []string{
	"grapplersguide.com",
	"thestrikersguide.com",
	"theweaponsguide.com",
	"vimeo.com",
}

var (
	ErrLoginFailed     = errors.New("login failed")
	ErrNoLoginForm     = errors.New("could not find login form")
	ErrNoDownloadLink  = errors.New("could not find download link")
	ErrUnexpectedPath  = errors.New("unexpected download page path")
	ErrNoVideoFiles    = errors.New("download data lists no files")
	ErrUnexpectedStage = errors.New("response carries no known stage")
)

type Options struct {
	BaseUrl   string
	LoginPath string
	Username  string
	Password  string
	// ExpertPattern and CoursePattern are matched case-insensitively,
	// empty matches everything.
	ExpertPattern string
	CoursePattern string
	// ExpertsOnly stops at the expert listing and emits catalog.Expert items.
	ExpertsOnly bool
}

// Spider implements crawler.Spider.
type Spider struct {
	loginUrl *url.URL
	username string
	password string

	expertPattern *regexp.Regexp
	coursePattern *regexp.Regexp
	// kept for suggestions when nothing matches
	rawExpertPattern string
	expertsOnly      bool

	tel telemetry.API
}

func NewSpider(opts Options, tel telemetry.API) (*Spider, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Username)
	assert.NotEmptyStr(opts.Password)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.LoginPath == "" {
		opts.LoginPath = DefaultLoginPath
	}

	base, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	loginPath, err := url.Parse(opts.LoginPath)
	if err != nil {
		return nil, fmt.Errorf("parse login path: %w", err)
	}

	expertPattern, err := textutil.CompilePattern(opts.ExpertPattern)
	if err != nil {
		return nil, fmt.Errorf("compile expert pattern: %w", err)
	}
	coursePattern, err := textutil.CompilePattern(opts.CoursePattern)
	if err != nil {
		return nil, fmt.Errorf("compile course pattern: %w", err)
	}

	return &Spider{
		loginUrl:         base.ResolveReference(loginPath),
		username:         opts.Username,
		password:         opts.Password,
		expertPattern:    expertPattern,
		coursePattern:    coursePattern,
		rawExpertPattern: opts.ExpertPattern,
		expertsOnly:      opts.ExpertsOnly,
		tel:              telemetry.NewScopedAPI("grapplersguide", tel),
	}, nil
}

func (s *Spider) StartingRequests() []*crawler.Request {
	req := crawler.GETRequest(s.loginUrl, loginPage{})
	// the login page is fetched again if a session expires mid-run
	req.DontFilter = true
	req.FatalOnError = true
	return []*crawler.Request{req}
}

func (s *Spider) HandleResponse(nav crawler.Navigator, res *crawler.Response) error {
	st, ok := res.Request.Meta.(stage)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnexpectedStage, res.Request.Meta)
	}
	s.tel.ReportDebug("handle "+st.stageName(), res.Url.String(), st)

	var (
		out step
		err error
	)
	switch st := st.(type) {
	case loginPage:
		out, err = s.handleLoginPage(res)
	case expertListing:
		out, err = s.handleExpertListing(res)
	case courseListing:
		out, err = s.handleCourseListing(res, st)
	case courseDetail:
		out, err = s.handleCourseDetail(res, st)
	case lessonDetail:
		out, err = s.handleLessonDetail(res, st)
	case downloadPage:
		out, err = s.handleDownloadPage(res, st)
	case downloadData:
		out, err = s.handleDownloadData(res, st)
	default:
		err = fmt.Errorf("%w: %T", ErrUnexpectedStage, st)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", st.stageName(), err)
	}

	for _, req := range out.requests {
		nav.Request(req)
	}
	for _, item := range out.items {
		nav.SaveItem(item)
	}
	return nil
}
