// Package httpstore provides a blobstore.Store that fetches blobs over
// HTTP(S) with plain GET requests.
//
// Names are resolved against a base URL; absolute http(s) URLs are used as
// is. 404 and 410 responses map to blobstore.ErrNotFound.
//
//	store, err := httpstore.New("https://docs.example.com/corpus/",
//	    httpstore.WithHeader("Authorization", "Bearer "+token),
//	)
package httpstore
