package httpclient

import (
	"io"
	"net/url"
)

// Request describes an outbound HTTP request.
type Request struct {
	// Method is the HTTP method.
	Method string
	// Path is appended to BaseURL. Absolute URLs are used as-is.
	Path string
	// Headers are merged over the adapter defaults.
	Headers map[string]string
	// Query holds URL query parameters. Repeated keys are preserved.
	Query url.Values
	// Body accepts io.Reader, []byte, string, url.Values (form encoded),
	// *MultipartBody, or any value that will be JSON-encoded.
	Body any
	// Auth overrides the adapter-level auth for this request.
	Auth *AuthConfig
}

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StreamResponse is an unbuffered response. The caller must close Body.
type StreamResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       io.ReadCloser
}
