// Package pagination drives the two continuation protocols of the API.
//
// The API pages list-style queries with server-issued continuation state
// instead of offsets. Two incompatible protocols exist:
//
//   - The legacy protocol returns a "query-continue" section that maps query
//     modules to ambiguous continuation parameters. Aggregate follows it one
//     key at a time and merges every page into a single result.
//   - The current protocol returns a "continue" section holding the exact
//     parameters for the next request. Pages follows it lazily and yields each
//     page as it arrives; merging is left to the caller.
//
// Example usage:
//
//	req, _ := c.NewRequest(request.NewParams("action", "query", "list", "allpages"), false)
//	for page, err := range pagination.Pages(ctx, c, req) {
//		if err != nil {
//			return err
//		}
//		handle(page)
//	}
//
// Pages are always requested strictly in server order; no page is requested
// before the continuation state of the previous one is known.
package pagination
