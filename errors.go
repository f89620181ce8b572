package docdb

import (
	"errors"
	"fmt"

	"github.com/hupe1980/docdb/codec"
	"github.com/hupe1980/docdb/fetch"
	"github.com/hupe1980/docdb/index"
	"github.com/hupe1980/docdb/internal/resource"
)

var (
	// ErrNotReady is returned when an operation needs a loaded index.
	ErrNotReady = errors.New("index not ready")
	// ErrAlreadyLoaded is returned by Load once the index is ready.
	ErrAlreadyLoaded = errors.New("index already loaded")
	// ErrLoadInProgress is returned by Load while another load is running.
	ErrLoadInProgress = errors.New("index load in progress")
	// ErrIndexUnavailable is returned when the index blob cannot be retrieved.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrMemoryLimitExceeded is returned when the decoded index does not fit
	// the configured memory limit.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
)

// Load-time errors.
var (
	ErrMalformedBlob       = codec.ErrMalformedBlob
	ErrShapeMismatch       = codec.ErrShapeMismatch
	ErrInvalidVector       = codec.ErrInvalidVector
	ErrDuplicateIdentifier = codec.ErrDuplicateIdentifier
)

// Query and fetch errors.
var (
	ErrInvalidQuery     = index.ErrInvalidQuery
	ErrNotFound         = fetch.ErrNotFound
	ErrNetworkFailure   = fetch.ErrNetworkFailure
	ErrMalformedContent = fetch.ErrMalformedContent
)

// ErrDimensionMismatch indicates a query of the wrong length.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	return err
}
