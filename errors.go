package fireblob

import (
	"errors"
	"fmt"
)

// NoBody is recorded in StorageError.Body when the failure happened before
// any response content was received.
const NoBody = "N/A"

// ErrNoDownloadToken indicates a response that parsed cleanly but carries no
// downloadTokens field, so no download URL can be derived from it.
var ErrNoDownloadToken = errors.New("response contains no download token")

// StorageError describes a failed call against the Storage REST API. It
// keeps the endpoint and the raw response content so callers can see exactly
// what the server said; nothing is retried or logged on their behalf.
type StorageError struct {
	// URL is the endpoint that was being invoked.
	URL string
	// StatusCode is the HTTP status of the response, 0 if none was received.
	StatusCode int
	// Body is the raw response content, NoBody if none was received.
	Body string
	// Err is the underlying transport, status or decode failure.
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage request %s: %v (body: %s)", e.URL, e.Err, e.Body)
}

func (e *StorageError) Unwrap() error { return e.Err }
