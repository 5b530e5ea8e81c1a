package transport

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// acceptedEncodings is advertised on every outbound request; both the
// metadata and subtitle index services serve compressed JSON.
const acceptedEncodings = "gzip, br, zstd"

// decodingTransport negotiates compressed responses and transparently decodes
// them, so the API clients always read plain bytes.
type decodingTransport struct {
	next http.RoundTripper
}

// NewCompressionTransport wraps base with transparent response decompression.
// A nil base falls back to http.DefaultTransport.
func NewCompressionTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &decodingTransport{next: base}
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Never mutate the caller's request
	req = cloneRequest(req)
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", acceptedEncodings)
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// HEAD, 204 and 304 responses carry nothing to decode
	if resp.Body == nil || resp.Body == http.NoBody {
		return resp, nil
	}

	encoding := parseContentEncoding(resp.Header.Get("Content-Encoding"))
	decoder, err := newDecoder(encoding, resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	if decoder == nil {
		// Identity or unknown encoding, hand the body through untouched
		return resp, nil
	}

	resp.Body = &decodedBody{decoder: decoder, raw: resp.Body}

	// The decoded stream invalidates the encoding and length metadata
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1

	return resp, nil
}

// newDecoder returns a reader decoding body for the given encoding, or nil
// when the encoding needs no decoding here.
func newDecoder(encoding string, body io.Reader) (io.ReadCloser, error) {
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, err
		}
		return gz, nil
	case "br":
		return io.NopCloser(brotli.NewReader(body)), nil
	case "zstd":
		zr, err := zstd.NewReader(body)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	}
	return nil, nil
}

// decodedBody closes both the decoder and the underlying network body.
type decodedBody struct {
	decoder io.ReadCloser
	raw     io.ReadCloser
}

func (b *decodedBody) Read(p []byte) (int, error) {
	return b.decoder.Read(p)
}

func (b *decodedBody) Close() error {
	return errors.Join(b.decoder.Close(), b.raw.Close())
}

// cloneRequest makes a shallow request copy with its own header map.
func cloneRequest(req *http.Request) *http.Request {
	r := new(http.Request)
	*r = *req
	r.Header = make(http.Header, len(req.Header))
	for k, v := range req.Header {
		r.Header[k] = append([]string(nil), v...)
	}
	return r
}

// parseContentEncoding returns the outermost applied encoding from a
// Content-Encoding header ("gzip, br" was encoded with br last), normalized
// to lowercase. Empty when the header is absent.
func parseContentEncoding(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.Split(header, ",")
	return strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))
}
