// Package fireblob is a small client for the Firebase Cloud Storage REST
// API. It covers the object operations a client app needs: streaming
// uploads with coarse progress reporting, metadata and download URL
// lookups, deletes, and paged listing of objects and prefixes.
//
// The package never logs and never retries. Every failure is returned to
// the caller, remote ones as a *StorageError carrying the raw response.
package fireblob

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultEndpoint is the production Firebase Storage REST base URL.
	DefaultEndpoint = "https://firebasestorage.googleapis.com/v0/b"

	// DefaultProgressInterval is how often an upload task samples its byte
	// counter when Options.ProgressInterval is zero.
	DefaultProgressInterval = 500 * time.Millisecond
)

// TokenSource supplies the auth token attached to outgoing requests.
// Acquiring a token may itself be a round trip, so it takes a context.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a plain function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticTokenSource returns a TokenSource that always yields tok.
func StaticTokenSource(tok string) TokenSource {
	return TokenSourceFunc(func(context.Context) (string, error) { return tok, nil })
}

// Options configures a Storage client. The zero value talks to the
// production endpoint as an unauthenticated caller.
type Options struct {
	// Endpoint overrides the REST base URL, e.g. to point at an emulator.
	// Defaults to DefaultEndpoint.
	Endpoint string

	// HTTPClient performs all requests. Defaults to a plain http.Client;
	// request lifetimes are bounded by the caller's context rather than a
	// client timeout, so long uploads are not cut off.
	HTTPClient *http.Client

	// TokenSource, when set, supplies the token sent as
	// "Authorization: Firebase <token>" on every request.
	TokenSource TokenSource

	// StrictCancel selects the cancellation policy for uploads. When false,
	// the default, a canceled upload resolves successfully with an empty
	// download URL. When true it fails with the context's error.
	StrictCancel bool

	// ProgressInterval is the spacing between progress samples during an
	// upload. Defaults to DefaultProgressInterval.
	ProgressInterval time.Duration
}

// Storage is a client bound to a single bucket. It is safe for concurrent
// use.
type Storage struct {
	bucket string
	opts   Options
}

// New returns a Storage client for the named bucket, e.g.
// "myapp.appspot.com".
func New(bucket string, opts Options) *Storage {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	opts.Endpoint = strings.TrimRight(opts.Endpoint, "/")
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	return &Storage{bucket: bucket, opts: opts}
}

// Bucket returns the bucket name this client is bound to.
func (s *Storage) Bucket() string { return s.bucket }

// Ref returns a reference to path within the bucket. Segments are separated
// by "/"; empty segments are dropped, so "a//b" and "/a/b/" both address
// "a/b".
func (s *Storage) Ref(path string) *Reference {
	return &Reference{storage: s, segments: splitPath(path)}
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}
