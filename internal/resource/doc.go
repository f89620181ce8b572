// Package resource provides the Controller that bounds what a retrieval
// service may hold and how fast it may fetch.
//
// Memory reservations are fail-fast: the decoded index reserves its size on
// load and the content cache reserves every cached byte, so a service with
// MemoryLimitBytes set refuses an index or cache entry that does not fit
// instead of growing past the limit.
//
//	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 30})
//	if err := rc.AcquireMemory(idx.MemoryBytes()); err != nil {
//	    return err // ErrMemoryLimitExceeded
//	}
//
// Fetches go through a token bucket when FetchRate is set:
//
//	rc := resource.NewController(resource.Config{FetchRate: 20, FetchBurst: 5})
//	if err := rc.AcquireFetch(ctx); err != nil {
//	    return err
//	}
//
// Every method works on a nil *Controller and then admits everything.
package resource
