// Package httpxtest provides an in-memory transport for tests that exercise
// code built on httpx.Client.
package httpxtest

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Route answers every request whose method matches (empty matches any) and
// whose URL contains Contains.
type Route struct {
	Method   string
	Contains string
	Status   int
	Body     string
	Err      error
}

// Call records one request seen by the Doer.
type Call struct {
	Method string
	URL    string
	Header http.Header
	Body   string
}

// Doer implements httpx.HTTPClient. Routes are matched in registration
// order; unmatched requests get a 404.
type Doer struct {
	mu     sync.Mutex
	routes []Route
	calls  []Call
}

func New() *Doer { return &Doer{} }

// Handle registers a route answering with status and body.
func (d *Doer) Handle(method, contains string, status int, body string) *Doer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes = append(d.routes, Route{Method: method, Contains: contains, Status: status, Body: body})
	return d
}

// Fail registers a route answering with a transport error.
func (d *Doer) Fail(method, contains string) *Doer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes = append(d.routes, Route{Method: method, Contains: contains, Err: errors.New("connection refused")})
	return d
}

func (d *Doer) Do(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	url := req.URL.String()

	d.mu.Lock()
	d.calls = append(d.calls, Call{Method: req.Method, URL: url, Header: req.Header.Clone(), Body: body})
	var match *Route
	for i := range d.routes {
		r := d.routes[i]
		if r.Method != "" && r.Method != req.Method {
			continue
		}
		if strings.Contains(url, r.Contains) {
			match = &r
			break
		}
	}
	d.mu.Unlock()

	if match == nil {
		return respond(req, http.StatusNotFound, "not found"), nil
	}
	if match.Err != nil {
		return nil, match.Err
	}
	return respond(req, match.Status, match.Body), nil
}

// Calls returns a copy of every request seen so far.
func (d *Doer) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Count returns how many requests had a URL containing contains.
func (d *Doer) Count(contains string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if strings.Contains(c.URL, contains) {
			n++
		}
	}
	return n
}

func respond(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}
