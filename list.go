package fireblob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// maxListResults is the page-size cap the REST API enforces. Larger
// requests are clamped rather than rejected.
const maxListResults = 1000

// ObjectSummary is the abbreviated per-object record returned by listings.
type ObjectSummary struct {
	Name   string `json:"name"`
	Bucket string `json:"bucket"`
}

// FileList is one page of objects directly below a prefix.
type FileList struct {
	Objects       []ObjectSummary
	NextPageToken string
}

// PrefixList is one page of immediate child prefixes below a prefix.
type PrefixList struct {
	Prefixes      []string
	NextPageToken string
}

type listResponse struct {
	Prefixes      []string        `json:"prefixes"`
	Items         []ObjectSummary `json:"items"`
	NextPageToken string          `json:"nextPageToken"`
}

// ListFiles returns up to maxResults objects directly below this reference.
// Values above 1000 are clamped to 1000; zero or negative leaves the page
// size to the server. pageToken resumes a listing from a previous page.
func (r *Reference) ListFiles(ctx context.Context, maxResults int, pageToken string) (*FileList, error) {
	page, err := r.listPage(ctx, maxResults, pageToken)
	if err != nil {
		return nil, err
	}
	return &FileList{Objects: page.Items, NextPageToken: page.NextPageToken}, nil
}

// ListPrefixes returns up to maxResults immediate child prefixes below this
// reference, with the same paging rules as ListFiles.
func (r *Reference) ListPrefixes(ctx context.Context, maxResults int, pageToken string) (*PrefixList, error) {
	page, err := r.listPage(ctx, maxResults, pageToken)
	if err != nil {
		return nil, err
	}
	return &PrefixList{Prefixes: page.Prefixes, NextPageToken: page.NextPageToken}, nil
}

func (r *Reference) listPage(ctx context.Context, maxResults int, pageToken string) (*listResponse, error) {
	q := url.Values{"delimiter": {"/"}}
	if p := r.Path(); p != "" {
		q.Set("prefix", p+"/")
	}
	if maxResults > maxListResults {
		maxResults = maxListResults
	}
	if maxResults > 0 {
		q.Set("maxResults", strconv.Itoa(maxResults))
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	requestURL := r.bucketURL() + "/o?" + q.Encode()

	status, body, err := r.storage.fetch(ctx, http.MethodGet, requestURL)
	if err != nil {
		return nil, err
	}
	var page listResponse
	if err := json.Unmarshal([]byte(body), &page); err != nil {
		return nil, &StorageError{
			URL:        requestURL,
			StatusCode: status,
			Body:       body,
			Err:        fmt.Errorf("decode listing: %w", err),
		}
	}
	return &page, nil
}
