// Package request builds encoded API requests.
//
// A Request owns an ordered parameter set and the body and headers derived
// from it. Every mutation re-encodes both, so the value handed to the
// transport always matches the parameters. The result format is pinned to
// JSON and can not be changed by callers.
//
// A Request is not safe for concurrent use; use one per logical call and
// Clone it when a query has to be replayed with different parameters.
package request

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
)

// FormatJSON is the only result format requested from the server.
const FormatJSON = "json"

// DisableMaxLag turns off the maxlag parameter.
const DisableMaxLag = -1

// Site carries the per-site settings that shape every request.
type Site struct {
	// Endpoint is the API URL requests are posted to.
	Endpoint string

	// UserAgent is sent with every request.
	UserAgent string

	// MaxLag is sent as the maxlag parameter unless negative or already set.
	MaxLag int

	// Assert is added as the assert parameter on write requests.
	Assert string

	// Username and Password enable HTTP basic authentication.
	Username string
	Password string

	// NoMultipart rejects multipart encoding with ErrMultipartUnsupported.
	NoMultipart bool
}

// Request is an encoded API call.
type Request struct {
	site   Site
	params *Params
	write  bool
	mode   Mode

	body   []byte
	header http.Header
}

// New builds a request from params. params is copied; later changes to it do
// not affect the request. Write marks a mutating request, which is never
// retried blindly by the transport.
func New(site Site, params *Params, write bool, mode Mode) (*Request, error) {
	var p *Params
	if params != nil {
		p = params.Clone()
	} else {
		p = &Params{}
	}
	p.Set("format", FormatJSON)
	if write && site.Assert != "" {
		p.Set("assert", site.Assert)
	}
	if _, ok := p.Get("maxlag"); !ok && site.MaxLag >= 0 {
		p.Set("maxlag", site.MaxLag)
	}

	r := &Request{site: site, params: p, write: write, mode: mode}
	if err := r.encode(p, mode); err != nil {
		return nil, err
	}
	return r, nil
}

// SetParam changes or adds a parameter and re-encodes the request. File
// values require multipart mode. On error the request is left unchanged.
func (r *Request) SetParam(key string, value any) error {
	if key == "format" {
		return ErrFormatOverride
	}
	next := r.params.Clone()
	next.Set(key, value)
	return r.encode(next, r.mode)
}

// DelParam removes a parameter and re-encodes the request.
func (r *Request) DelParam(key string) error {
	if key == "format" {
		return ErrFormatOverride
	}
	if _, ok := r.params.Get(key); !ok {
		return nil
	}
	next := r.params.Clone()
	next.Del(key)
	return r.encode(next, r.mode)
}

// SetMultipart switches between multipart and form encoding. Multipart must
// be enabled before any File parameter is set.
func (r *Request) SetMultipart(multipart bool) error {
	mode := ModeForm
	if multipart {
		mode = ModeMultipart
	}
	return r.encode(r.params, mode)
}

// Param returns the current value of a parameter.
func (r *Request) Param(key string) (any, bool) {
	return r.params.Get(key)
}

// Params returns a copy of the parameter set.
func (r *Request) Params() *Params {
	return r.params.Clone()
}

// Action returns the action parameter, if it is a string.
func (r *Request) Action() string {
	v, _ := r.params.Get("action")
	s, _ := v.(string)
	return s
}

// IsWrite reports whether the request mutates server state.
func (r *Request) IsWrite() bool { return r.write }

// Mode returns the body encoding.
func (r *Request) Mode() Mode { return r.mode }

// Endpoint returns the target URL.
func (r *Request) Endpoint() string { return r.site.Endpoint }

// Body returns a copy of the encoded body.
func (r *Request) Body() []byte { return bytes.Clone(r.body) }

// Header returns a copy of the derived headers.
func (r *Request) Header() http.Header { return r.header.Clone() }

// Clone returns an independent copy of the request.
func (r *Request) Clone() *Request {
	return &Request{
		site:   r.site,
		params: r.params.Clone(),
		write:  r.write,
		mode:   r.mode,
		body:   bytes.Clone(r.body),
		header: r.header.Clone(),
	}
}

// HTTPRequest builds a fresh *http.Request for one exchange.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.site.Endpoint, bytes.NewReader(r.body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range r.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.ContentLength = int64(len(r.body))
	return req, nil
}

// encode derives body and headers from params and commits all three on success.
func (r *Request) encode(params *Params, mode Mode) error {
	var (
		body        []byte
		contentType string
	)
	switch mode {
	case ModeForm:
		s, err := EncodeForm(params)
		if err != nil {
			return err
		}
		body, contentType = []byte(s), formContentType
	case ModeMultipart:
		if r.site.NoMultipart {
			return ErrMultipartUnsupported
		}
		b, ct, err := EncodeMultipart(params)
		if err != nil {
			return err
		}
		body, contentType = b, ct
	default:
		return fmt.Errorf("%w: unknown encoding mode %v", ErrConfig, mode)
	}

	header := make(http.Header)
	header.Set("Content-Type", contentType)
	header.Set("Content-Length", strconv.Itoa(len(body)))
	header.Set("User-Agent", r.site.UserAgent)
	header.Set("Accept-Encoding", "gzip")
	if r.site.Username != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(r.site.Username + ":" + r.site.Password))
		header.Set("Authorization", "Basic "+creds)
	}

	r.params, r.mode, r.body, r.header = params, mode, body, header
	return nil
}
