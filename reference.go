package fireblob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Reference addresses one object path within a bucket. References are
// immutable: Child returns a fresh value and never mutates its receiver, so
// a reference can be shared and branched from freely.
type Reference struct {
	storage  *Storage
	segments []string
}

// Child returns a reference to name below r. Name may itself contain
// slashes, e.g. "thumbs/small.png".
func (r *Reference) Child(name string) *Reference {
	child := splitPath(name)
	segments := make([]string, 0, len(r.segments)+len(child))
	segments = append(segments, r.segments...)
	segments = append(segments, child...)
	return &Reference{storage: r.storage, segments: segments}
}

// Path returns the slash-joined object path without a leading slash.
func (r *Reference) Path() string { return strings.Join(r.segments, "/") }

// Bucket returns the name of the bucket containing this reference.
func (r *Reference) Bucket() string { return r.storage.bucket }

func (r *Reference) bucketURL() string {
	return r.storage.opts.Endpoint + "/" + r.storage.bucket
}

// objectURL escapes the whole path as a single segment (slashes become
// %2F), which is how the REST API addresses objects.
func (r *Reference) objectURL() string {
	return r.bucketURL() + "/o/" + url.PathEscape(r.Path())
}

// uploadURL carries the object path in the name query parameter instead of
// the URL path.
func (r *Reference) uploadURL() string {
	q := url.Values{"name": {r.Path()}}
	return r.bucketURL() + "/o?" + q.Encode()
}

// downloadURLBase is the object's public URL missing only the token value.
func (r *Reference) downloadURLBase() string {
	return r.objectURL() + "?alt=media&token="
}

// Put starts uploading size bytes from src to this reference and returns
// the running task. The transfer and its progress sampling begin
// immediately; cancel ctx to abort. contentType may be empty. size must be
// the exact byte count of src; pass -1 only if it is genuinely unknown, in
// which case the body is sent chunked and progress totals are unusable.
func (r *Reference) Put(ctx context.Context, src io.Reader, size int64, contentType string) *UploadTask {
	return newUploadTask(ctx, r.storage, r.uploadURL(), r.downloadURLBase(), src, size, contentType)
}

// Metadata fetches the object's stored metadata document.
func (r *Reference) Metadata(ctx context.Context) (*ObjectMetadata, error) {
	requestURL := r.objectURL()
	status, body, err := r.storage.fetch(ctx, http.MethodGet, requestURL)
	if err != nil {
		return nil, err
	}
	var meta ObjectMetadata
	if err := json.Unmarshal([]byte(body), &meta); err != nil {
		return nil, &StorageError{
			URL:        requestURL,
			StatusCode: status,
			Body:       body,
			Err:        fmt.Errorf("decode metadata: %w", err),
		}
	}
	return &meta, nil
}

// DownloadURL resolves the object's public download URL from its stored
// download token. Objects without a token fail with a *StorageError
// wrapping ErrNoDownloadToken.
func (r *Reference) DownloadURL(ctx context.Context) (string, error) {
	requestURL := r.objectURL()
	status, body, err := r.storage.fetch(ctx, http.MethodGet, requestURL)
	if err != nil {
		return "", err
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return "", &StorageError{
			URL:        requestURL,
			StatusCode: status,
			Body:       body,
			Err:        fmt.Errorf("decode metadata: %w", err),
		}
	}
	token, _ := fields["downloadTokens"].(string)
	if token == "" {
		return "", &StorageError{
			URL:        requestURL,
			StatusCode: status,
			Body:       body,
			Err:        ErrNoDownloadToken,
		}
	}
	return r.downloadURLBase() + token, nil
}

// Delete removes the object at this reference.
func (r *Reference) Delete(ctx context.Context) error {
	_, _, err := r.storage.fetch(ctx, http.MethodDelete, r.objectURL())
	return err
}
