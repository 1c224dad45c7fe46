package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/mwapi-client/pkg/request"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

// Authenticator decorates an outgoing request with credentials, for example
// digest or OAuth headers.
type Authenticator interface {
	Authenticate(req *http.Request) error
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(req *http.Request) error

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(req *http.Request) error {
	return f(req)
}

// exchange performs one logical HTTP exchange with transport retries and
// returns the (decompressed) body and the response headers. b carries the
// backoff of the whole call.
func (c *Client) exchange(ctx context.Context, req *request.Request, b *backoff, logger zerolog.Logger) ([]byte, http.Header, error) {
	var (
		body   []byte
		header http.Header
	)
	err := retryWithBackoff(ctx, b, req.IsWrite(), c.sleep, logger, func() error {
		var err error
		body, header, err = c.roundTrip(ctx, req, logger)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return body, header, nil
}

// roundTrip sends req once.
func (c *Client) roundTrip(ctx context.Context, req *request.Request, logger zerolog.Logger) ([]byte, http.Header, error) {
	action := req.Action()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limit wait: %w", err)
	}

	httpReq, err := req.HTTPRequest(ctx)
	if err != nil {
		return nil, nil, err
	}
	if c.config.Authenticator != nil {
		if err := c.config.Authenticator.Authenticate(httpReq); err != nil {
			return nil, nil, fmt.Errorf("authenticate request: %w", err)
		}
	}

	logger.Debug().
		Str("endpoint", req.Endpoint()).
		Str("mode", req.Mode().String()).
		Int("body_bytes", len(req.Body())).
		Msg("Executing API request")

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	requestDuration.WithLabelValues(action).Observe(time.Since(startTime).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctxErr)
		}
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(action, "network_error").Inc()
		return nil, nil, &TransportError{
			ErrorClass: ErrorClassNetwork,
			Message:    "exchange failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(action, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil, &TransportError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    resp.Status,
		}
	}

	var reader io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return nil, nil, &TransportError{
				StatusCode: resp.StatusCode,
				ErrorClass: ErrorClassNetwork,
				Message:    "open gzip body",
				Err:        err,
			}
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, nil, &TransportError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	return body, resp.Header, nil
}

// classifyStatus categorizes an HTTP error status.
func classifyStatus(status int) ErrorClass {
	if status >= 500 {
		return ErrorClassServer
	}
	return ErrorClassClient
}
