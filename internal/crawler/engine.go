package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"grapplersguide-dl/internal/components/assert"
	"grapplersguide-dl/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
)

const (
	report_engine_fetch        = "engine.fetch"
	report_engine_handle       = "engine.handle"
	report_engine_process_item = "engine.process-item"
	report_engine_filter       = "engine.filter"
)

var tracer = otel.Tracer("grapplersguide-dl/crawler")

// Fetcher performs a Request.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

type EngineOptions struct {
	// Concurrency is the max amount of branches fetching or processing at once.
	Concurrency int
	// AllowedDomains restricts requests to these hosts and their subdomains,
	// empty means every host is allowed.
	AllowedDomains []string
}

// Engine drives a spider: it fetches every scheduled request, hands the response
// to the spider and passes saved items to the processor.
type Engine struct {
	fetcher   Fetcher
	processor ItemProcessor
	tel       telemetry.API
	opts      EngineOptions

	stats Stats
}

func NewEngine(fetcher Fetcher, processor ItemProcessor, tel telemetry.API, opts EngineOptions) *Engine {
	assert.NotNil(fetcher)
	assert.NotNil(processor)
	assert.NotNil(tel)
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	return &Engine{
		fetcher:   fetcher,
		processor: processor,
		tel:       telemetry.NewScopedAPI("crawler", tel),
		opts:      opts,
	}
}

// Stats counts what happened during runs of an engine.
type Stats struct {
	Requests atomic.Int64
	Filtered atomic.Int64
	Failed   atomic.Int64
	Items    atomic.Int64
	Dropped  atomic.Int64
}

func (e *Engine) Stats() *Stats {
	return &e.stats
}

// Run blocks until every branch of the spider has finished or a fatal error
// occurs. It returns the fatal error, or the context's error if it was canceled.
func (e *Engine) Run(ctx context.Context, spider Spider) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		engine: e,
		spider: spider,
		ctx:    ctx,
		cancel: cancel,
		sem:    semaphore.NewWeighted(int64(e.opts.Concurrency)),
		seen:   map[string]struct{}{},
	}
	for _, req := range spider.StartingRequests() {
		r.schedule(req)
	}
	r.wg.Wait()

	if r.fatal != nil {
		return r.fatal
	}
	return context.Cause(ctx)
}

type run struct {
	engine *Engine
	spider Spider

	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	wg     sync.WaitGroup

	seenLock sync.Mutex
	seen     map[string]struct{}

	fatalOnce sync.Once
	fatal     error
}

func (r *run) fail(err error) {
	r.fatalOnce.Do(func() {
		r.fatal = err
		r.cancel()
	})
}

func (r *run) allowed(req *Request) bool {
	if len(r.engine.opts.AllowedDomains) == 0 {
		return true
	}
	return HostAllowed(req.Url.Hostname(), r.engine.opts.AllowedDomains)
}

// HostAllowed reports whether host is one of the domains or a subdomain of one.
func HostAllowed(host string, domains []string) bool {
	host = strings.ToLower(host)
	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (r *run) duplicate(req *Request) bool {
	if req.DontFilter || req.Method != "GET" {
		return false
	}
	key := req.fingerprint()

	r.seenLock.Lock()
	defer r.seenLock.Unlock()
	if _, ok := r.seen[key]; ok {
		return true
	}
	r.seen[key] = struct{}{}
	return false
}

func (r *run) schedule(req *Request) {
	if r.ctx.Err() != nil {
		return
	}
	if !r.allowed(req) {
		r.engine.stats.Filtered.Add(1)
		r.engine.tel.ReportWarning(report_engine_filter, fmt.Errorf("offsite request: %s", req.Url), req.Meta)
		return
	}
	if r.duplicate(req) {
		r.engine.stats.Filtered.Add(1)
		r.engine.tel.ReportDebug("duplicate request filtered", req.String())
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.handle(req)
	}()
}

func (r *run) handle(req *Request) {
	err := r.sem.Acquire(r.ctx, 1)
	if err != nil {
		return
	}
	defer r.sem.Release(1)

	stage := fmt.Sprintf("%T", req.Meta)
	ctx, span := tracer.Start(r.ctx, "crawl "+stage)
	defer span.End()
	span.SetAttributes(
		attribute.String("request.method", req.Method),
		attribute.String("request.url", req.Url.String()),
	)

	r.engine.stats.Requests.Add(1)
	res, err := r.engine.fetcher.Fetch(ctx, req)
	if err != nil {
		if r.ctx.Err() != nil {
			return
		}
		r.engine.stats.Failed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		r.engine.tel.ReportBroken(report_engine_fetch, err, req.Meta)
		if req.FatalOnError {
			err = Fatal(err)
		}
		if IsFatal(err) {
			r.fail(err)
		}
		return
	}

	nav := &navigator{run: r}
	err = r.spider.HandleResponse(nav, res)
	if err != nil {
		r.engine.stats.Failed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "handle response failed")
		r.engine.tel.ReportBroken(report_engine_handle, err, res.Url.String(), req.Meta)
		if IsFatal(err) {
			r.fail(err)
			return
		}
	}

	for _, item := range nav.items {
		if r.ctx.Err() != nil {
			return
		}
		r.process(ctx, item)
	}
}

func (r *run) process(ctx context.Context, item any) {
	r.engine.stats.Items.Add(1)
	err := r.engine.processor.Process(ctx, item)
	if err == nil {
		return
	}
	if IsFatal(err) {
		r.engine.tel.ReportBroken(report_engine_process_item, err, item)
		r.fail(err)
		return
	}
	r.engine.stats.Dropped.Add(1)
	r.engine.tel.ReportWarning(report_engine_process_item, fmt.Errorf("dropped item: %w", err), item)
}

type navigator struct {
	run   *run
	items []any
}

func (n *navigator) Request(req *Request) {
	n.run.schedule(req)
}

func (n *navigator) SaveItem(item any) {
	n.items = append(n.items, item)
}
