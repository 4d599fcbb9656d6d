package crawler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// Request is a single fetch scheduled by a spider.
type Request struct {
	Method string
	Url    *url.URL
	Header http.Header
	// Form is sent url-encoded as the request body when non-nil.
	Form url.Values

	// Meta is carried unchanged to the Response, spiders keep the context of
	// the branch that issued the request in it.
	Meta any

	// DontFilter lets the request through the duplicate filter.
	DontFilter bool
	// FatalOnError aborts the run when the request cannot be fetched.
	FatalOnError bool
}

func GETRequest(u *url.URL, meta any) *Request {
	return &Request{
		Method: http.MethodGet,
		Url:    u,
		Header: http.Header{},
		Meta:   meta,
	}
}

func FormRequest(u *url.URL, form url.Values, meta any) *Request {
	return &Request{
		Method: http.MethodPost,
		Url:    u,
		Header: http.Header{},
		Form:   form,
		Meta:   meta,
	}
}

func (r *Request) fingerprint() string {
	return r.Method + " " + r.Url.String()
}

func (r *Request) String() string {
	return r.fingerprint()
}

// Response is a fetched page.
type Response struct {
	Request *Request
	// Url is the final url after redirects.
	Url    *url.URL
	Status int
	Header http.Header
	Body   []byte

	doc *goquery.Document
}

// Document parses the body as html, the result is cached.
func (r *Response) Document() (*goquery.Document, error) {
	if r.doc != nil {
		return r.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(r.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html from %s: %w", r.Url, err)
	}
	r.doc = doc
	return doc, nil
}

func (r *Response) JSON(v any) error {
	err := json.Unmarshal(r.Body, v)
	if err != nil {
		return fmt.Errorf("parse json from %s: %w", r.Url, err)
	}
	return nil
}

// Join resolves a reference relative to the response's url.
func (r *Response) Join(ref string) (*url.URL, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return r.Url.ResolveReference(parsed), nil
}

// MustParseUrl is for urls known at compile time.
func MustParseUrl(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}
