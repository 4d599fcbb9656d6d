package grapplersguide

import (
	"fmt"
	"net/url"
	"strings"

	"grapplersguide-dl/internal/crawler"

	"github.com/PuerkitoBio/goquery"
)

// loginForm fills in the form holding the password field the way a browser
// submit would: every named input is sent with its current value, unchecked
// boxes and buttons are left out.
func loginForm(res *crawler.Response, username, password string) (*url.URL, url.Values, error) {
	doc, err := res.Document()
	if err != nil {
		return nil, nil, err
	}

	form := doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("input[name=password]").Length() > 0
	}).First()
	if form.Length() == 0 {
		return nil, nil, ErrNoLoginForm
	}

	action := res.Url
	if href := strings.TrimSpace(form.AttrOr("action", "")); href != "" {
		action, err = res.Join(href)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve form action: %w", err)
		}
	}

	values := url.Values{}
	form.Find("input[name]").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		switch strings.ToLower(input.AttrOr("type", "text")) {
		case "submit", "image", "button", "reset", "file":
			return
		case "checkbox", "radio":
			if _, checked := input.Attr("checked"); !checked {
				return
			}
			values.Add(name, input.AttrOr("value", "on"))
			return
		}
		values.Add(name, input.AttrOr("value", ""))
	})
	values.Set("login", username)
	values.Set("password", password)

	return action, values, nil
}

func (s *Spider) handleLoginPage(res *crawler.Response) (step, error) {
	action, form, err := loginForm(res, s.username, s.password)
	if err != nil {
		// nothing downstream can work without a session
		return step{}, crawler.Fatal(err)
	}

	req := crawler.FormRequest(action, form, expertListing{})
	req.FatalOnError = true

	var out step
	out.request(req)
	return out, nil
}
