// Package clienttest runs an in-memory fasthttp backend for tests.
package clienttest

import (
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// Request is what the backend saw for one call.
type Request struct {
	Method  string
	Path    string
	Query   string
	Headers map[string]string
}

// Header looks a header up case-insensitively; fasthttp normalizes key casing.
func (r Request) Header(name string) string {
	for key, value := range r.Headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

type Backend struct {
	listener *fasthttputil.InmemoryListener
	server   *fasthttp.Server
	handler  atomic.Pointer[fasthttp.RequestHandler]

	mu       sync.Mutex
	requests []Request
	uris     []string
}

// NewBackend starts serving handler. Callers must Close the backend.
func NewBackend(handler fasthttp.RequestHandler) *Backend {
	b := &Backend{
		listener: fasthttputil.NewInmemoryListener(),
	}
	b.SetHandler(handler)

	b.server = &fasthttp.Server{
		Handler: b.serve,
	}

	go func() {
		_ = b.server.Serve(b.listener)
	}()

	return b
}

func (b *Backend) SetHandler(handler fasthttp.RequestHandler) {
	b.handler.Store(&handler)
}

// Doer sends every request to this backend over plain HTTP, whatever host
// and scheme the request URI names. The original URI is recorded first.
func (b *Backend) Doer() *Doer {
	return &Doer{
		backend: b,
		client: &fasthttp.Client{
			Dial: func(_ string) (net.Conn, error) {
				return b.listener.Dial()
			},
		},
	}
}

type Doer struct {
	backend *Backend
	client  *fasthttp.Client
}

func (d *Doer) DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error {
	d.backend.mu.Lock()
	d.backend.uris = append(d.backend.uris, req.URI().String())
	d.backend.mu.Unlock()

	req.URI().SetScheme("http")
	return d.client.DoTimeout(req, resp, timeout)
}

// URIs lists the full request URIs as the client built them, scheme included.
func (b *Backend) URIs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.uris))
	copy(out, b.uris)
	return out
}

func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.requests))
	copy(out, b.requests)
	return out
}

func (b *Backend) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *Backend) Close() {
	_ = b.server.Shutdown()
	_ = b.listener.Close()
}

func (b *Backend) serve(ctx *fasthttp.RequestCtx) {
	headers := make(map[string]string)
	ctx.Request.Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = string(value)
	})

	b.mu.Lock()
	b.requests = append(b.requests, Request{
		Method:  string(ctx.Method()),
		Path:    string(ctx.Path()),
		Query:   string(ctx.QueryArgs().QueryString()),
		Headers: headers,
	})
	b.mu.Unlock()

	handler := *b.handler.Load()
	handler(ctx)
}

// JSON responds with status and a raw JSON body.
func JSON(status int, body string) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(status)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(body)
	}
}

// Routes dispatches on exact path; unknown paths get 404.
func Routes(routes map[string]fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if handler, ok := routes[string(ctx.Path())]; ok {
			handler(ctx)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetBodyString(`{"detail":"not found"}`)
	}
}
