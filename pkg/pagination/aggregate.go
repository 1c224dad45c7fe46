package pagination

import (
	"context"
	"fmt"

	"github.com/Sternrassler/mwapi-client/pkg/logging"
	"github.com/Sternrassler/mwapi-client/pkg/request"
	"github.com/Sternrassler/mwapi-client/pkg/result"
)

// Aggregate follows the legacy query-continue protocol starting from first,
// the response to req, and merges every further page into first.
//
// Each round advances exactly one continuation key. Once a generator key is
// advanced, the plain continuation keys sent so far are dropped from later
// requests. On any error the partially merged result is discarded and
// (nil, err) is returned.
func Aggregate(ctx context.Context, exec Executor, req *request.Request, first *result.Result) (*result.Result, error) {
	cont, err := ContinuationOf(first)
	if err != nil {
		return nil, err
	}
	legacy, ok := cont.(LegacyContinuation)
	if !ok {
		return first, nil
	}

	logger := logging.NewLogger(logging.ComponentPagination).With().
		Str("protocol", "legacy").
		Logger()

	next := req.Clone()
	total := first
	tracked := make(map[string]struct{})
	generator := ""

	for page := 1; ; page++ {
		outer, inner, err := legacy.Select()
		if err != nil {
			return nil, fmt.Errorf("continuation page %d: %w", page, err)
		}
		value := continuationValue(legacy.Keys[outer][inner])

		if IsGeneratorKey(inner) {
			generator = inner
			for key := range tracked {
				if err := next.DelParam(key); err != nil {
					return nil, fmt.Errorf("continuation page %d: drop %s: %w", page, key, err)
				}
			}
			clear(tracked)
		} else {
			tracked[inner] = struct{}{}
		}

		if err := next.SetParam(inner, value); err != nil {
			return nil, fmt.Errorf("continuation page %d: set %s: %w", page, inner, err)
		}

		logger.Debug().
			Int("page", page).
			Str("module", outer).
			Str("key", inner).
			Str("generator", generator).
			Interface("value", value).
			Msg("Following continuation")

		res, err := exec.Execute(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("continuation page %d: %w", page, err)
		}
		continuationPagesTotal.WithLabelValues("legacy").Inc()

		for _, queryType := range sortedKeys(legacy.Keys) {
			if err := result.Merge(queryType, total, res); err != nil {
				return nil, fmt.Errorf("continuation page %d: merge %s: %w", page, queryType, err)
			}
		}

		cont, err := ContinuationOf(res)
		if err != nil {
			return nil, fmt.Errorf("continuation page %d: %w", page, err)
		}
		legacy, ok = cont.(LegacyContinuation)
		if !ok {
			break
		}
	}

	// The aggregate no longer has anything to continue.
	delete(total.Object(), LegacyKey)
	return total, nil
}
