package grapplersguide

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"grapplersguide-dl/internal/catalog"
	"grapplersguide-dl/internal/components/telemetry"
	"grapplersguide-dl/internal/crawler"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func readFixture(t testing.TB, name string) []byte {
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return body
}

func fixtureResponse(t testing.TB, body []byte, rawUrl string, meta any) *crawler.Response {
	u := crawler.MustParseUrl(rawUrl)
	return &crawler.Response{
		Request: crawler.GETRequest(u, meta),
		Url:     u,
		Status:  http.StatusOK,
		Header:  http.Header{},
		Body:    body,
	}
}

func newTestSpider(t testing.TB, opts Options, tel telemetry.API) *Spider {
	opts.Username = "user"
	opts.Password = "hunter2"
	if tel == nil {
		tel = &telemetry.Recorder{}
	}
	spider, err := NewSpider(opts, tel)
	require.NoError(t, err)
	return spider
}

var testCourse = catalog.Course{
	Title:  "Leg Locks",
	Expert: catalog.Expert{Name: "John Danaher"},
}

func TestStartingRequests(t *testing.T) {
	spider := newTestSpider(t, Options{}, nil)
	reqs := spider.StartingRequests()
	require.Len(t, reqs, 1)
	require.Equal(t, "https://grapplersguide.com/second-portal/login", reqs[0].Url.String())
	require.Equal(t, loginPage{}, reqs[0].Meta)
	require.True(t, reqs[0].FatalOnError)

	spider = newTestSpider(t, Options{BaseUrl: "https://thestrikersguide.com/"}, nil)
	require.Equal(t, "https://thestrikersguide.com/second-portal/login", spider.StartingRequests()[0].Url.String())
}

func TestNewSpiderRejectsBadPattern(t *testing.T) {
	_, err := NewSpider(Options{
		Username:      "user",
		Password:      "hunter2",
		ExpertPattern: "(unclosed",
	}, &telemetry.Recorder{})
	require.Error(t, err)
}

func TestLoginForm(t *testing.T) {
	spider := newTestSpider(t, Options{}, nil)
	res := fixtureResponse(t, readFixture(t, "login.html"), "https://grapplersguide.com/second-portal/login", loginPage{})

	out, err := spider.handleLoginPage(res)
	require.NoError(t, err)
	require.Len(t, out.requests, 1)
	require.Empty(t, out.items)

	req := out.requests[0]
	require.Equal(t, http.MethodPost, req.Method)
	require.Equal(t, "https://grapplersguide.com/login/login", req.Url.String())
	require.Equal(t, expertListing{}, req.Meta)
	require.True(t, req.FatalOnError)

	expected := url.Values{
		"_xfToken":    {"1700000000,abcdef"},
		"_xfRedirect": {"/second-portal/"},
		"login":       {"user"},
		"password":    {"hunter2"},
		"remember":    {"1"},
	}
	if diff := cmp.Diff(expected, req.Form); diff != "" {
		t.Fatal("unexpected login form (-want +got)\n", diff)
	}
}

func TestLoginFormActionDefaultsToPage(t *testing.T) {
	spider := newTestSpider(t, Options{}, nil)
	body := []byte(`<form method="post"><input name="login"><input type="password" name="password"></form>`)
	res := fixtureResponse(t, body, "https://grapplersguide.com/second-portal/login", loginPage{})

	out, err := spider.handleLoginPage(res)
	require.NoError(t, err)
	require.Equal(t, "https://grapplersguide.com/second-portal/login", out.requests[0].Url.String())
}

func TestLoginPageWithoutForm(t *testing.T) {
	spider := newTestSpider(t, Options{}, nil)
	res := fixtureResponse(t, []byte(`<html><body>maintenance</body></html>`), "https://grapplersguide.com/second-portal/login", loginPage{})

	_, err := spider.handleLoginPage(res)
	require.ErrorIs(t, err, ErrNoLoginForm)
	require.True(t, crawler.IsFatal(err))
}

func TestExpertListing(t *testing.T) {
	body := readFixture(t, "experts.html")

	cases := []struct {
		pattern  string
		expected []string
	}{
		{pattern: "", expected: []string{"John Danaher", "john smith", "Gordon Ryan"}},
		{pattern: "^John", expected: []string{"John Danaher", "john smith"}},
		{pattern: "gordon", expected: []string{"Gordon Ryan"}},
		{pattern: "^Danaher", expected: nil},
	}

	for _, test := range cases {
		t.Run(test.pattern, func(t *testing.T) {
			spider := newTestSpider(t, Options{ExpertPattern: test.pattern}, nil)
			res := fixtureResponse(t, body, "https://grapplersguide.com/second-portal/", expertListing{})

			out, err := spider.handleExpertListing(res)
			require.NoError(t, err)

			var names []string
			for _, req := range out.requests {
				st, ok := req.Meta.(courseListing)
				require.True(t, ok)
				names = append(names, st.Expert.Name)
			}
			if diff := cmp.Diff(test.expected, names); diff != "" {
				t.Fatal("unexpected experts (-want +got)\n", diff)
			}
		})
	}
}

func TestExpertListingUrls(t *testing.T) {
	spider := newTestSpider(t, Options{ExpertPattern: "^John"}, nil)
	res := fixtureResponse(t, readFixture(t, "experts.html"), "https://grapplersguide.com/second-portal/", expertListing{})

	out, err := spider.handleExpertListing(res)
	require.NoError(t, err)
	require.Len(t, out.requests, 2)
	require.Equal(t, "https://grapplersguide.com/experts/john-danaher/", out.requests[0].Url.String())
	require.Equal(t, "https://grapplersguide.com/experts/john-smith/", out.requests[1].Url.String())
}

func TestExpertListingSuggestsNames(t *testing.T) {
	tel := &telemetry.Recorder{}
	spider := newTestSpider(t, Options{ExpertPattern: "Jon Danaher"}, tel)
	res := fixtureResponse(t, readFixture(t, "experts.html"), "https://grapplersguide.com/second-portal/", expertListing{})

	out, err := spider.handleExpertListing(res)
	require.NoError(t, err)
	require.Empty(t, out.requests)

	warnings := tel.Reports("warning", report_spider_expert_listing)
	require.Len(t, warnings, 1)
	suggestions, ok := warnings[0].Params[2].([]string)
	require.True(t, ok)
	require.NotEmpty(t, suggestions)
	require.Equal(t, "John Danaher", suggestions[0])
}

func TestExpertListingAfterFailedLogin(t *testing.T) {
	spider := newTestSpider(t, Options{}, nil)
	res := fixtureResponse(t, readFixture(t, "login.html"), "https://grapplersguide.com/login/login", expertListing{})

	_, err := spider.handleExpertListing(res)
	require.ErrorIs(t, err, ErrLoginFailed)
	require.True(t, crawler.IsFatal(err))
}

func TestExpertsOnly(t *testing.T) {
	spider := newTestSpider(t, Options{ExpertsOnly: true}, nil)
	res := fixtureResponse(t, readFixture(t, "experts.html"), "https://grapplersguide.com/second-portal/", expertListing{})

	out, err := spider.handleExpertListing(res)
	require.NoError(t, err)
	require.Empty(t, out.requests)

	expected := []any{
		catalog.Expert{Name: "John Danaher"},
		catalog.Expert{Name: "john smith"},
		catalog.Expert{Name: "Gordon Ryan"},
	}
	if diff := cmp.Diff(expected, out.items); diff != "" {
		t.Fatal("unexpected experts (-want +got)\n", diff)
	}
}

func TestCourseListing(t *testing.T) {
	body := readFixture(t, "courses.html")
	expert := catalog.Expert{Name: "John Danaher"}

	cases := []struct {
		pattern  string
		expected []string
	}{
		{pattern: "", expected: []string{"Leg Locks", "Back Attacks"}},
		{pattern: "LEG", expected: []string{"Leg Locks"}},
		{pattern: "guard", expected: nil},
	}

	for _, test := range cases {
		t.Run(test.pattern, func(t *testing.T) {
			spider := newTestSpider(t, Options{CoursePattern: test.pattern}, nil)
			res := fixtureResponse(t, body, "https://grapplersguide.com/experts/john-danaher/", courseListing{Expert: expert})

			out, err := spider.handleCourseListing(res, courseListing{Expert: expert})
			require.NoError(t, err)

			var titles []string
			for _, req := range out.requests {
				st, ok := req.Meta.(courseDetail)
				require.True(t, ok)
				require.Equal(t, expert, st.Course.Expert)
				require.True(t, strings.HasPrefix(req.Url.String(), "https://grapplersguide.com/courses/"))
				titles = append(titles, st.Course.Title)
			}
			if diff := cmp.Diff(test.expected, titles); diff != "" {
				t.Fatal("unexpected courses (-want +got)\n", diff)
			}
		})
	}
}

func TestParseCourse(t *testing.T) {
	res := fixtureResponse(t, readFixture(t, "course.html"), "https://grapplersguide.com/courses/leg-locks/", courseDetail{Course: testCourse})

	lessons, err := parseCourse(res, testCourse)
	require.NoError(t, err)

	intro := catalog.Section{Position: 1, Title: "Introduction", Course: testCourse}
	heelHooks := catalog.Section{Position: 2, Title: "Heel Hooks", Course: testCourse}
	expected := []catalog.Lesson{
		{Position: 1, Title: "Welcome", Url: "https://grapplersguide.com/lessons/1/", Section: intro},
		// the second link has no href but still takes up a position
		{Position: 3, Title: "Basic Concepts", Url: "https://grapplersguide.com/lessons/2/", Section: intro},
		{Position: 1, Title: "Outside Heel Hook", Url: "https://grapplersguide.com/lessons/3/", Section: heelHooks},
		{Position: 2, Title: "Inside Heel Hook", Url: "https://grapplersguide.com/lessons/4/", Section: heelHooks},
	}
	if diff := cmp.Diff(expected, lessons); diff != "" {
		t.Fatal("unexpected lessons (-want +got)\n", diff)
	}
	for _, l := range lessons {
		require.False(t, l.Resolved())
	}
}

func TestCourseDetailRequestsLessons(t *testing.T) {
	spider := newTestSpider(t, Options{}, nil)
	res := fixtureResponse(t, readFixture(t, "course.html"), "https://grapplersguide.com/courses/leg-locks/", courseDetail{Course: testCourse})

	out, err := spider.handleCourseDetail(res, courseDetail{Course: testCourse})
	require.NoError(t, err)
	require.Len(t, out.requests, 4)
	for _, req := range out.requests {
		st, ok := req.Meta.(lessonDetail)
		require.True(t, ok)
		require.Equal(t, st.Lesson.Url, req.Url.String())
	}
}

func TestEmptyCoursePage(t *testing.T) {
	spider := newTestSpider(t, Options{}, nil)
	res := fixtureResponse(t, []byte(`<html><body></body></html>`), "https://grapplersguide.com/courses/empty/", courseDetail{Course: testCourse})

	out, err := spider.handleCourseDetail(res, courseDetail{Course: testCourse})
	require.NoError(t, err)
	require.Empty(t, out.requests)
}

func TestLessonDetail(t *testing.T) {
	spider := newTestSpider(t, Options{}, nil)
	lesson := catalog.Lesson{
		Position: 3,
		Title:    "Inside Heel Hook",
		Url:      "https://grapplersguide.com/lessons/4/",
		Section:  catalog.Section{Position: 2, Title: "Heel Hooks", Course: testCourse},
	}
	res := fixtureResponse(t, readFixture(t, "lesson.html"), lesson.Url, lessonDetail{Lesson: lesson})

	out, err := spider.handleLessonDetail(res, lessonDetail{Lesson: lesson})
	require.NoError(t, err)
	require.Len(t, out.requests, 1)

	req := out.requests[0]
	require.Equal(t, "https://grapplersguide.com/123/download/45/678", req.Url.String())

	st, ok := req.Meta.(downloadPage)
	require.True(t, ok)
	require.True(t, st.Lesson.Resolved())
	require.Equal(t, []string{"John Danaher", "Leg Locks"}, st.Lesson.Breadcrumbs)
	require.Equal(t, catalog.Tags{"heel hook", "nogi"}, st.Lesson.Tags)
	require.NotContains(t, st.Lesson.Breadcrumbs, "Home")

	// the lesson the request came from is left as it was
	require.False(t, lesson.Resolved())
}

func TestLessonDetailWithoutExtras(t *testing.T) {
	spider := newTestSpider(t, Options{}, nil)
	lesson := catalog.Lesson{Position: 1, Title: "Welcome", Url: "https://grapplersguide.com/lessons/1/"}
	body := []byte(`<ul id="nav"><li id="lesson-actions"><a href="/9/download/8/7">Download</a></li></ul>`)
	res := fixtureResponse(t, body, lesson.Url, lessonDetail{Lesson: lesson})

	out, err := spider.handleLessonDetail(res, lessonDetail{Lesson: lesson})
	require.NoError(t, err)

	st := out.requests[0].Meta.(downloadPage)
	require.Equal(t, []string{}, st.Lesson.Breadcrumbs)
	require.Equal(t, catalog.Tags{}, st.Lesson.Tags)
	require.True(t, st.Lesson.Resolved())
}

func TestLessonDetailWithoutDownloadLink(t *testing.T) {
	spider := newTestSpider(t, Options{}, nil)
	lesson := catalog.Lesson{Position: 1, Title: "Welcome", Url: "https://grapplersguide.com/lessons/1/"}
	body := []byte(`<ul><li id="lesson-actions"><a href="/bookmark/1/">Bookmark</a></li></ul>`)
	res := fixtureResponse(t, body, lesson.Url, lessonDetail{Lesson: lesson})

	_, err := spider.handleLessonDetail(res, lessonDetail{Lesson: lesson})
	require.ErrorIs(t, err, ErrNoDownloadLink)
	require.False(t, crawler.IsFatal(err))
}

func TestDownloadDataUrl(t *testing.T) {
	cases := []struct {
		path     string
		expected string
	}{
		{
			path:     "/123/download/45/678",
			expected: "https://grapplersguide.com/123/download/data/45/678?action=load_download_data",
		},
		{path: "/123/downloads/45/678"},
		{path: "/123/download/45"},
		{path: "/123/download/45/678/extra"},
		{path: "/123/download//678"},
		{path: "/"},
	}

	for _, test := range cases {
		t.Run(test.path, func(t *testing.T) {
			u := crawler.MustParseUrl("https://grapplersguide.com" + test.path)
			got, err := downloadDataUrl(u)
			if test.expected == "" {
				require.ErrorIs(t, err, ErrUnexpectedPath)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expected, got.String())
		})
	}
}

func TestDownloadPage(t *testing.T) {
	spider := newTestSpider(t, Options{}, nil)
	lesson := catalog.Lesson{Position: 1, Title: "Welcome"}

	res := fixtureResponse(t, []byte(`<html></html>`), "https://grapplersguide.com/123/download/45/678", downloadPage{Lesson: lesson})
	out, err := spider.handleDownloadPage(res, downloadPage{Lesson: lesson})
	require.NoError(t, err)
	require.Len(t, out.requests, 1)
	require.Equal(t, "XMLHttpRequest", out.requests[0].Header.Get("X-Requested-With"))
	require.Equal(t, downloadData{Lesson: lesson}, out.requests[0].Meta)

	res = fixtureResponse(t, []byte(`<html></html>`), "https://grapplersguide.com/login/", downloadPage{Lesson: lesson})
	out, err = spider.handleDownloadPage(res, downloadPage{Lesson: lesson})
	require.ErrorIs(t, err, ErrUnexpectedPath)
	require.Empty(t, out.requests)
}

func TestHighestQuality(t *testing.T) {
	cases := []struct {
		heights  []int
		expected int
	}{
		{heights: []int{480, 1080, 1080, 720}, expected: 1},
		{heights: []int{720}, expected: 0},
		{heights: []int{360, 360}, expected: 0},
		{heights: []int{240, 480, 2160}, expected: 2},
		{heights: nil, expected: -1},
	}

	for _, test := range cases {
		files := make([]videoFile, len(test.heights))
		for i, h := range test.heights {
			files[i] = videoFile{Height: looseInt(h)}
		}
		require.Equal(t, test.expected, highestQuality(files), "heights %v", test.heights)
	}
}

func TestDownloadData(t *testing.T) {
	spider := newTestSpider(t, Options{}, nil)
	lesson := catalog.Lesson{Position: 1, Title: "Welcome"}.WithDetails(nil, nil)
	res := fixtureResponse(t, readFixture(t, "download_data.json"), "https://grapplersguide.com/123/download/data/45/678?action=load_download_data", downloadData{Lesson: lesson})

	out, err := spider.handleDownloadData(res, downloadData{Lesson: lesson})
	require.NoError(t, err)
	require.Empty(t, out.requests)
	require.Len(t, out.items, 1)

	expected := catalog.Video{
		FileName:     "lesson_hd.mp4",
		PublicName:   "HD 1080p",
		BaseFileName: "lesson",
		Extension:    "mp4",
		DownloadName: "lesson (HD 1080p).mp4",
		Size:         "1.2 GB",
		Height:       1080,
		Width:        1920,
		VideoFileId:  "1002",
		DownloadUrl:  "https://player.vimeo.com/play/1002",
		Lesson:       lesson,
	}
	if diff := cmp.Diff(expected, out.items[0]); diff != "" {
		t.Fatal("unexpected video (-want +got)\n", diff)
	}
	require.False(t, out.items[0].(catalog.Video).Downloaded())
}

func TestDownloadDataWithoutFiles(t *testing.T) {
	spider := newTestSpider(t, Options{}, nil)
	res := fixtureResponse(t, []byte(`{"download_config": {"files": []}}`), "https://grapplersguide.com/1/download/data/2/3", downloadData{})

	_, err := spider.handleDownloadData(res, downloadData{})
	require.ErrorIs(t, err, ErrNoVideoFiles)

	res = fixtureResponse(t, []byte(`<html>not json</html>`), "https://grapplersguide.com/1/download/data/2/3", downloadData{})
	_, err = spider.handleDownloadData(res, downloadData{})
	require.Error(t, err)
}

func TestLooseDecoding(t *testing.T) {
	var file videoFile
	err := (&crawler.Response{Url: crawler.MustParseUrl("https://grapplersguide.com"), Body: []byte(`{
		"size": 1024,
		"height": "720",
		"width": 1280.0,
		"video_file_id": null,
		"download_url": []
	}`)}).JSON(&file)
	require.NoError(t, err)
	require.Equal(t, looseString("1024"), file.Size)
	require.Equal(t, looseInt(720), file.Height)
	require.Equal(t, looseInt(1280), file.Width)
	require.Equal(t, looseString(""), file.VideoFileId)
	require.Equal(t, "", file.DownloadUrl.first())

	err = (&crawler.Response{Url: crawler.MustParseUrl("https://grapplersguide.com"), Body: []byte(`{"height": "tall"}`)}).JSON(&file)
	require.Error(t, err)
}

func TestHandleResponseUnknownMeta(t *testing.T) {
	spider := newTestSpider(t, Options{}, nil)
	res := fixtureResponse(t, []byte(`<html></html>`), "https://grapplersguide.com/", "not a stage")

	err := spider.HandleResponse(nil, res)
	require.ErrorIs(t, err, ErrUnexpectedStage)
}

type collector struct {
	mutex sync.Mutex
	items []any
}

func (c *collector) Process(ctx context.Context, item any) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items = append(c.items, item)
	return nil
}

// newFakeSite serves the fixtures the way the real site links them together.
func newFakeSite(t testing.TB) *httptest.Server {
	serve := func(name string) http.HandlerFunc {
		body := readFixture(t, name)
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("content-type", "text/html; charset=utf-8")
			w.Write(body)
		}
	}
	loggedIn := func(r *http.Request) bool {
		cookie, err := r.Cookie("xf_session")
		return err == nil && cookie.Value == "ok"
	}
	lesson := string(readFixture(t, "lesson.html"))
	downloadData := readFixture(t, "download_data.json")

	mux := http.NewServeMux()
	mux.HandleFunc("/second-portal/login", serve("login.html"))
	mux.HandleFunc("/login/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		err := r.ParseForm()
		if err != nil ||
			r.PostForm.Get("login") != "user" ||
			r.PostForm.Get("password") != "hunter2" ||
			r.PostForm.Get("_xfToken") != "1700000000,abcdef" {
			serve("login.html")(w, r)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "xf_session", Value: "ok", Path: "/"})
		http.Redirect(w, r, "/experts/", http.StatusSeeOther)
	})
	mux.HandleFunc("/experts/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case !loggedIn(r):
			serve("login.html")(w, r)
		case r.URL.Path == "/experts/":
			serve("experts.html")(w, r)
		default:
			serve("courses.html")(w, r)
		}
	})
	mux.HandleFunc("/courses/", serve("course.html"))
	mux.HandleFunc("/lessons/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/lessons/"), "/")
		w.Write([]byte(strings.ReplaceAll(lesson, "/123/download/45/678", "/123/download/45/"+id)))
	})
	mux.HandleFunc("/123/download/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/123/download/data/") {
			w.Write([]byte(`<html><body>download</body></html>`))
			return
		}
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" ||
			r.URL.Query().Get("action") != "load_download_data" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("content-type", "application/json")
		w.Write(downloadData)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func runSpider(t testing.TB, server *httptest.Server, opts Options) ([]any, error) {
	tel := &telemetry.Recorder{}
	opts.BaseUrl = server.URL

	spider := newTestSpider(t, opts, tel)
	if opts.Password != "" {
		// newTestSpider always logs in with the right password
		spider.password = opts.Password
	}

	fetcher, err := crawler.NewHttpFetcher(crawler.HttpFetcherOptions{}, tel)
	require.NoError(t, err)

	items := &collector{}
	engine := crawler.NewEngine(fetcher, items, tel, crawler.EngineOptions{
		Concurrency:    3,
		AllowedDomains: []string{crawler.MustParseUrl(server.URL).Hostname()},
	})
	err = engine.Run(context.Background(), spider)
	return items.items, err
}

func TestSpiderWalksSite(t *testing.T) {
	server := newFakeSite(t)

	items, err := runSpider(t, server, Options{
		ExpertPattern: "danaher",
		CoursePattern: "leg",
	})
	require.NoError(t, err)

	var videos []catalog.Video
	for _, item := range items {
		v, ok := item.(catalog.Video)
		require.True(t, ok, "unexpected item %#v", item)
		videos = append(videos, v)
	}
	catalog.SortVideos(videos)

	// the fourth lesson links to another host and is filtered
	require.Len(t, videos, 3)
	type summary struct {
		Section int
		Lesson  int
		Title   string
	}
	var got []summary
	for _, v := range videos {
		require.Equal(t, "John Danaher", v.Expert().Name)
		require.Equal(t, "Leg Locks", v.Course().Title)
		require.Equal(t, "1002", v.VideoFileId)
		require.Equal(t, catalog.Tags{"heel hook", "nogi"}, v.Lesson.Tags)
		got = append(got, summary{v.Lesson.Section.Position, v.Lesson.Position, v.Lesson.Title})
	}
	expected := []summary{
		{1, 1, "Welcome"},
		{1, 3, "Basic Concepts"},
		{2, 1, "Outside Heel Hook"},
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Fatal("unexpected videos (-want +got)\n", diff)
	}
}

func TestSpiderAbortsOnFailedLogin(t *testing.T) {
	server := newFakeSite(t)

	items, err := runSpider(t, server, Options{Password: "wrong"})
	require.True(t, errors.Is(err, ErrLoginFailed), "got %v", err)
	require.Empty(t, items)
}

func TestSpiderAbortsWhenLoginPageFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	items, err := runSpider(t, server, Options{})
	require.True(t, crawler.IsFatal(err), "got %v", err)
	var statusErr *crawler.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusForbidden, statusErr.Status)
	require.Empty(t, items)
}

func TestSpiderAbortsWhenLoginPostFails(t *testing.T) {
	login := readFixture(t, "login.html")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write(login)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	items, err := runSpider(t, server, Options{})
	var statusErr *crawler.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.MethodPost, statusErr.Method)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
	require.Empty(t, items)
}
