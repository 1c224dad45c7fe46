package request

import (
	"errors"
	"fmt"
)

// Configuration errors. They are raised before any network activity and are
// never retried.
var (
	// ErrConfig is wrapped by every configuration error of this package.
	ErrConfig = errors.New("request configuration error")

	// ErrFormatOverride is returned when a caller tries to change the result format.
	ErrFormatOverride = fmt.Errorf("%w: the result format can not be changed", ErrConfig)

	// ErrMultipartRequired is returned when a File value is encoded without multipart mode.
	ErrMultipartRequired = fmt.Errorf("%w: file payloads require multipart encoding", ErrConfig)

	// ErrMultipartUnsupported is returned when multipart encoding is disabled for the site.
	ErrMultipartUnsupported = fmt.Errorf("%w: multipart encoding is not available", ErrConfig)

	// ErrUnsupportedValue is returned for parameter values that have no wire encoding.
	ErrUnsupportedValue = fmt.Errorf("%w: unsupported parameter value", ErrConfig)
)
