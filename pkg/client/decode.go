package client

import (
	"bytes"
	"context"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/mwapi-client/pkg/request"
	"github.com/Sternrassler/mwapi-client/pkg/result"
	"github.com/rs/zerolog"
)

// apiDisabledSentinel is part of the page served when the API is switched off.
const apiDisabledSentinel = "MediaWiki API is not enabled for this site"

// lagPattern extracts the lag from a maxlag error text such as
// "Waiting for db1: 7 seconds lagged".
var lagPattern = regexp.MustCompile(`(\d+(?:\.\d+)?) seconds`)

// minLagSleep is the shortest wait after a maxlag reply, so a zero lag or a
// zero MaxWait never sends the request again at once.
const minLagSleep = 500 * time.Millisecond

// decodeOutcome tells Execute what to do with a response.
type decodeOutcome int

const (
	outcomeDone decodeOutcome = iota
	outcomeRetry
)

// decode classifies a response body. A retry outcome means the same request
// has to be sent again.
func (c *Client) decode(ctx context.Context, req *request.Request, body []byte, header http.Header, logger zerolog.Logger) (*result.Result, decodeOutcome, error) {
	res, err := result.Decode(body, header)
	if err != nil {
		if bytes.Contains(body, []byte(apiDisabledSentinel)) {
			logger.Error().Msg("API is not enabled on this site")
			return nil, outcomeDone, ErrAPIDisabled
		}
		invalidJSONTotal.Inc()
		logger.Warn().
			Err(err).
			Int("body_bytes", len(body)).
			Msg("Invalid JSON, trying request again")
		return nil, outcomeRetry, nil
	}

	code, info, isErr := res.ErrorInfo()
	if !isErr {
		return res, outcomeDone, nil
	}

	if code == "maxlag" {
		lag := c.lagDuration(info, header)
		maxlagTotal.Inc()
		maxlagSleepSeconds.Observe(lag.Seconds())

		if err := c.lag.Record(ctx, lag); err != nil {
			logger.Warn().Err(err).Msg("Failed to record server lag")
		}

		wait := max(lag, minLagSleep)
		logger.Warn().
			Dur("lag", lag).
			Dur("wait", wait).
			Str("info", info).
			Msg("Server lag, sleeping before trying again")

		if err := c.sleep(ctx, wait); err != nil {
			return nil, outcomeDone, err
		}
		return nil, outcomeRetry, nil
	}

	apiErrorsTotal.WithLabelValues(code).Inc()
	logger.Debug().Str("code", code).Str("info", info).Msg("API error response")

	if req.IsWrite() && code == "blocked" {
		return nil, outcomeDone, &UserBlockedError{Info: info}
	}
	return nil, outcomeDone, &APIError{Code: code, Info: info}
}

// lagDuration reads the lag from the error text, rounded up to whole
// seconds, falling back to the Retry-After header and then to the maximum
// wait. The result never exceeds the maximum wait.
func (c *Client) lagDuration(info string, header http.Header) time.Duration {
	lag := c.config.MaxWait

	if m := lagPattern.FindStringSubmatch(info); m != nil {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil {
			lag = time.Duration(math.Ceil(secs)) * time.Second
		}
	} else if ra := strings.TrimSpace(header.Get("Retry-After")); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
			lag = time.Duration(secs) * time.Second
		}
	}

	return min(lag, c.config.MaxWait)
}
