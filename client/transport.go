package client

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/valyala/fasthttp"

	"github.com/velluxe/storefront-core/types"
)

// Transport performs one HTTP round trip. The fasthttp implementation
// is the production transport; tests substitute their own.
type Transport interface {
	RoundTrip(ctx context.Context, req *TransportRequest) (*TransportResponse, error)
}

type TransportRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

type TransportResponse struct {
	Status int
	Body   []byte
}

type fasthttpTransport struct {
	client *fasthttp.Client
}

func NewFastHTTPTransport(timeout time.Duration) Transport {
	return &fasthttpTransport{
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
	}
}

func (t *fasthttpTransport) RoundTrip(ctx context.Context, treq *TransportRequest) (*TransportResponse, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	req.SetRequestURI(treq.URL)
	req.Header.SetMethod(treq.Method)
	req.Header.Set(fasthttp.HeaderAcceptEncoding, "br, gzip")

	for key, value := range treq.Headers {
		req.Header.Set(key, value)
	}

	if treq.Body != nil {
		req.SetBody(treq.Body)
		req.Header.SetContentType("application/json")
	}

	type result struct {
		response *TransportResponse
		err      error
	}

	// The goroutine owns req and resp until DoTimeout settles; a call
	// abandoned on ctx expiry may still be writing to them.
	done := make(chan result, 1)
	go func() {
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		err := t.client.DoTimeout(req, resp, treq.Timeout)
		if err != nil {
			done <- result{err: err}
			return
		}

		body, err := decodeResponseBody(resp)
		if err != nil {
			done <- result{err: types.WrapError(err, "failed to decode response body")}
			return
		}

		done <- result{response: &TransportResponse{
			Status: resp.StatusCode(),
			Body:   body,
		}}
	}()

	select {
	case res := <-done:
		return res.response, res.err
	case <-ctx.Done():
		return nil, types.Errorf(types.ErrClientTimeout, "%v", ctx.Err())
	}
}

func decodeResponseBody(resp *fasthttp.Response) ([]byte, error) {
	encoding := string(resp.Header.ContentEncoding())

	switch encoding {
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(resp.Body())))
	case "gzip":
		return resp.BodyGunzip()
	default:
		body := make([]byte, len(resp.Body()))
		copy(body, resp.Body())
		return body, nil
	}
}
