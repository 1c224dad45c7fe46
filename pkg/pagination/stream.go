package pagination

import (
	"context"
	"fmt"
	"iter"

	"github.com/Sternrassler/mwapi-client/pkg/logging"
	"github.com/Sternrassler/mwapi-client/pkg/request"
	"github.com/Sternrassler/mwapi-client/pkg/result"
)

// Pages follows the continue protocol and yields every page as soon as it
// arrives. The sequence is lazy: no request is sent before the consumer asks
// for the next page, and breaking out of the loop stops all further requests.
// Every iteration of the returned sequence starts over from req, which is
// never modified.
//
// A failed page is yielded as (nil, err) and ends the sequence.
func Pages(ctx context.Context, exec Executor, req *request.Request) iter.Seq2[*result.Result, error] {
	return func(yield func(*result.Result, error) bool) {
		template := req.Clone()

		current := template.Clone()
		if err := current.SetParam(ModernKey, ""); err != nil {
			yield(nil, err)
			return
		}

		logger := logging.NewLogger(logging.ComponentPagination).With().
			Str("protocol", "modern").
			Logger()

		for page := 0; ; page++ {
			res, err := exec.Execute(ctx, current)
			if err != nil {
				yield(nil, fmt.Errorf("page %d: %w", page, err))
				return
			}
			continuationPagesTotal.WithLabelValues("modern").Inc()

			if !yield(res, nil) {
				logger.Debug().Int("page", page).Msg("Consumer stopped")
				return
			}

			cont, err := ContinuationOf(res)
			if err != nil {
				yield(nil, fmt.Errorf("page %d: %w", page, err))
				return
			}
			modern, ok := cont.(ModernContinuation)
			if !ok {
				return
			}

			current = template.Clone()
			for _, key := range sortedKeys(modern.Params) {
				if err := current.SetParam(key, continuationValue(modern.Params[key])); err != nil {
					yield(nil, fmt.Errorf("page %d: set %s: %w", page, key, err))
					return
				}
			}

			logger.Debug().
				Int("page", page+1).
				Interface("continue", modern.Params).
				Msg("Following continuation")
		}
	}
}

// Collect drains a page sequence into a slice. It stops at the first error.
func Collect(seq iter.Seq2[*result.Result, error]) ([]*result.Result, error) {
	var pages []*result.Result
	for page, err := range seq {
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}
