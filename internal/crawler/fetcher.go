package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"grapplersguide-dl/internal/components/assert"
	"grapplersguide-dl/internal/components/telemetry"
	"grapplersguide-dl/pkg/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type HttpFetcherOptions struct {
	UserAgent string
	Timeout   time.Duration
	// Retries is how many times a request is retried on transport errors, 429 and 5xx.
	Retries int
	// RequestsPerSecond limits the request rate, 0 means unlimited.
	RequestsPerSecond float64
	// AllowedDomains limits where redirects may lead, empty means anywhere.
	AllowedDomains []string
	// Dump receives every http exchange when set.
	Dump restyutil.Output
}

// HttpFetcher fetches requests with a single cookie-keeping http session.
type HttpFetcher struct {
	Http *resty.Client
}

// RetryOnServerError retries transport errors, 429 and 5xx responses.
func RetryOnServerError(res *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if res == nil {
		return false
	}
	status := res.StatusCode()
	return status == http.StatusTooManyRequests || status >= 500
}

func NewHttpFetcher(opts HttpFetcherOptions, tel telemetry.API) (HttpFetcher, error) {
	assert.NotNil(tel)
	assert.NonNegative("retries", opts.Retries)
	tel = telemetry.NewScopedAPI("http", tel)

	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}

	client := resty.New()
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return HttpFetcher{}, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", opts.UserAgent)
	client.SetTimeout(opts.Timeout)
	client.SetRedirectPolicy(redirectPolicy(opts.AllowedDomains))

	client.SetRetryCount(opts.Retries)
	client.SetRetryWaitTime(time.Millisecond * 500)
	client.SetRetryMaxWaitTime(time.Second * 10)
	client.AddRetryCondition(RetryOnServerError)

	if opts.RequestsPerSecond > 0 {
		// burst of 1 so requests are spread evenly
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(client, tel, opts.Dump)

	return HttpFetcher{Http: client}, nil
}

func redirectPolicy(domains []string) resty.RedirectPolicy {
	return resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("stopped after 10 redirects")
		}
		if len(domains) > 0 && !HostAllowed(req.URL.Hostname(), domains) {
			return fmt.Errorf("redirect to offsite host %s", req.URL.Hostname())
		}
		return nil
	})
}

func (f HttpFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	r := f.Http.R().SetContext(ctx)
	for key, values := range req.Header {
		for _, v := range values {
			r.Header.Add(key, v)
		}
	}
	if req.Form != nil {
		r.SetFormDataFromValues(req.Form)
	}

	res, err := r.Execute(req.Method, req.Url.String())
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Url, err)
	}
	if res.IsError() {
		return nil, &StatusError{
			Method: req.Method,
			Url:    req.Url.String(),
			Status: res.StatusCode(),
		}
	}

	finalUrl := req.Url
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalUrl = res.RawResponse.Request.URL
	}

	return &Response{
		Request: req,
		Url:     finalUrl,
		Status:  res.StatusCode(),
		Header:  res.Header(),
		Body:    res.Body(),
	}, nil
}
