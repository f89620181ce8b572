// Package fetch turns search hits into document text.
//
// A Fetcher resolves each hit's record to a content reference, fetches every
// distinct reference once through an injected Source, and expands the results
// back to one Outcome per hit in input order. Fetches run concurrently up to
// a bounded limit; each one has its own timeout, and a failure is recorded on
// the affected outcomes only.
//
//	f := fetch.New(store, func(o *fetch.Options) {
//	    o.MaxConcurrency = 4
//	    o.FetchTimeout = 5 * time.Second
//	})
//	for _, out := range f.Fetch(ctx, hits) {
//	    if out.Err != nil {
//	        log.Printf("%s: %v", out.Reference, out.Err)
//	        continue
//	    }
//	    use(out.Content)
//	}
//
// # Failure Classification
//
// Every failed outcome carries an *Error with one of three kinds:
//
//   - KindNotFound: the source reported ErrNotFound
//   - KindMalformed: empty body, invalid UTF-8, a failed content check, or an
//     anchor that does not match the content
//   - KindNetwork: everything else, including timeouts and cancellation
//
// # Anchors
//
// A range anchor selects bytes [Start, End) of the content. A heading anchor
// selects the markdown section that starts at a matching ATX heading and ends
// before the next heading of the same or a higher level.
package fetch
