// Package docdb provides a retrieval index over a static document corpus.
//
// A Service decodes a single immutable index blob holding an embedding
// matrix and one record per row, answers exact cosine top-K queries against
// it, and fetches the referenced document text on demand. Document bodies are
// never part of the index.
//
// # Quick Start
//
//	ctx := context.Background()
//	svc := docdb.New(blobstore.NewLocalStore("./site"),
//	    docdb.WithMaxConcurrency(4),
//	    docdb.WithFetchTimeout(5*time.Second),
//	)
//	defer svc.Close()
//
//	if err := svc.LoadFrom(ctx, blobstore.NewLocalStore("."), "index.ddb"); err != nil {
//	    log.Fatal(err)
//	}
//
//	hits, err := svc.Search(ctx, embedding, 5, docdb.WithMinScore(0.2))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, out := range svc.FetchContents(ctx, hits) {
//	    if out.OK() {
//	        fmt.Println(out.Content)
//	    }
//	}
//
// # Lifecycle
//
// A Service starts Unloaded. Load moves it through Loading to Ready, or to
// Failed if the blob is rejected. A failed service may be loaded again; a
// ready one may not. Search and FetchContents require Ready.
//
// # Errors
//
// Load-time errors match ErrMalformedBlob, ErrShapeMismatch, ErrInvalidVector
// or ErrDuplicateIdentifier. Search fails with *ErrDimensionMismatch for a
// query of the wrong length. Fetch failures never fail the call; they are
// reported per hit on the returned outcomes.
package docdb
