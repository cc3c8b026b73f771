package checkout

import (
	"context"
	"sync"

	"github.com/velluxe/storefront-core/types"
)

// fakeAPI routes requests by "METHOD path" and records calls.
type fakeAPI struct {
	mu       sync.Mutex
	routes   map[string]fakeResponse
	calls    map[string]int
	payloads map[string]interface{}
}

type fakeResponse struct {
	body   []byte
	status int
	err    error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		routes:   make(map[string]fakeResponse),
		calls:    make(map[string]int),
		payloads: make(map[string]interface{}),
	}
}

func (f *fakeAPI) respond(route string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route] = fakeResponse{body: []byte(body), status: status}
}

func (f *fakeAPI) fail(route string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route] = fakeResponse{err: err, status: 500}
}

func (f *fakeAPI) callCount(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

func (f *fakeAPI) lastPayload(route string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payloads[route]
}

func (f *fakeAPI) handle(route string, data interface{}) ([]byte, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[route]++
	if data != nil {
		f.payloads[route] = data
	}

	resp, ok := f.routes[route]
	if !ok {
		return nil, 404, types.NewHTTPError(404, []byte("no route "+route))
	}
	if resp.err != nil {
		return nil, resp.status, resp.err
	}
	return resp.body, resp.status, nil
}

func (f *fakeAPI) Get(ctx context.Context, path string, opts *types.CallOptions) ([]byte, int, error) {
	return f.handle("GET "+path, nil)
}

func (f *fakeAPI) Post(ctx context.Context, path string, data interface{}, opts *types.CallOptions) ([]byte, int, error) {
	return f.handle("POST "+path, data)
}

func (f *fakeAPI) Put(ctx context.Context, path string, data interface{}, opts *types.CallOptions) ([]byte, int, error) {
	return f.handle("PUT "+path, data)
}

func (f *fakeAPI) Delete(ctx context.Context, path string, opts *types.CallOptions) ([]byte, int, error) {
	return f.handle("DELETE "+path, nil)
}
